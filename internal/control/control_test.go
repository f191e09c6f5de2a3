package control

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"gotest.tools/v3/assert"

	"github.com/corapoid/homeassistant-ever-powerline-ups/internal/eventlog"
	"github.com/corapoid/homeassistant-ever-powerline-ups/internal/register"
)

type write struct {
	addr   uint16
	values []uint16
}

type fakeDevice struct {
	regs      map[uint16]uint16
	writes    []write
	err       error
	refreshes int
}

func newFakeDevice() *fakeDevice {
	return &fakeDevice{regs: map[uint16]uint16{}}
}

func (f *fakeDevice) ReadRegisters(_ context.Context, address, count uint16) ([]uint16, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([]uint16, count)
	for i := range out {
		out[i] = f.regs[address+uint16(i)]
	}
	return out, nil
}

func (f *fakeDevice) WriteRegister(ctx context.Context, address, value uint16) error {
	return f.WriteRegisters(ctx, address, []uint16{value})
}

func (f *fakeDevice) WriteRegisters(_ context.Context, address uint16, values []uint16) error {
	if f.err != nil {
		return f.err
	}
	f.writes = append(f.writes, write{addr: address, values: append([]uint16(nil), values...)})
	for i, v := range values {
		f.regs[address+uint16(i)] = v
	}
	return nil
}

func (f *fakeDevice) RequestRefresh() { f.refreshes++ }

type sink struct{ events []eventlog.Event }

func (s *sink) Record(e eventlog.Event) { s.events = append(s.events, e) }

func TestPress(t *testing.T) {
	dev := newFakeDevice()
	s := &sink{}
	c := New(dev, s, zerolog.Nop())

	assert.NilError(t, c.StartBatteryTest(context.Background()))
	assert.NilError(t, c.CancelBatteryTest(context.Background()))

	assert.Equal(t, len(dev.writes), 2)
	assert.Equal(t, dev.writes[0].addr, uint16(0x00F0))
	assert.DeepEqual(t, dev.writes[0].values, []uint16{1})
	assert.DeepEqual(t, dev.writes[1].values, []uint16{3})
	assert.Equal(t, dev.refreshes, 2)

	assert.Equal(t, len(s.events), 2)
	assert.Equal(t, s.events[0].Kind, eventlog.KindCommand)
	assert.Equal(t, s.events[0].Key, "battery_test_start")
	assert.Equal(t, s.events[0].Detail, "ok")
}

func TestPress_FailureSkipsRefresh(t *testing.T) {
	dev := newFakeDevice()
	dev.err = errors.New("poller: connect ups:502: refused")
	s := &sink{}
	c := New(dev, s, zerolog.Nop())

	err := c.StartBatteryTest(context.Background())
	assert.ErrorContains(t, err, "refused")
	assert.Equal(t, dev.refreshes, 0)
	assert.Equal(t, s.events[0].Detail, dev.err.Error())
}

func TestSetDelay_SplitsMSBFirst(t *testing.T) {
	dev := newFakeDevice()
	c := New(dev, nil, zerolog.Nop())

	assert.NilError(t, c.SetDelay(context.Background(), ShutdownDelay, 3661))

	assert.Equal(t, len(dev.writes), 1)
	assert.Equal(t, dev.writes[0].addr, register.ShutdownDelay)
	assert.DeepEqual(t, dev.writes[0].values, []uint16{0, 3661})

	v, ok := c.Delay(ShutdownDelay)
	assert.Assert(t, ok)
	assert.Equal(t, v, uint32(3661))

	_, ok = c.Delay(StartupDelay)
	assert.Assert(t, !ok)
}

func TestSetDelay_Range(t *testing.T) {
	dev := newFakeDevice()
	c := New(dev, nil, zerolog.Nop())

	assert.Assert(t, errors.Is(c.SetDelay(context.Background(), StartupDelay, -1), ErrDelayRange))
	assert.Assert(t, errors.Is(c.SetDelay(context.Background(), StartupDelay, 65536), ErrDelayRange))
	assert.NilError(t, c.SetDelay(context.Background(), StartupDelay, 65535))
	assert.Equal(t, len(dev.writes), 1)
	assert.Equal(t, dev.refreshes, 0)
}

func TestSetDelay_FailureKeepsCache(t *testing.T) {
	dev := newFakeDevice()
	c := New(dev, nil, zerolog.Nop())

	assert.NilError(t, c.SetDelay(context.Background(), StartupDelay, 30))
	dev.err = errors.New("boom")
	assert.Assert(t, c.SetDelay(context.Background(), StartupDelay, 60) != nil)

	v, _ := c.Delay(StartupDelay)
	assert.Equal(t, v, uint32(30))
}

func TestReadDelay_Joins(t *testing.T) {
	dev := newFakeDevice()
	dev.regs[register.StartupDelay] = 0x0001
	dev.regs[register.StartupDelay+1] = 0x0002
	c := New(dev, nil, zerolog.Nop())

	v, err := c.ReadDelay(context.Background(), StartupDelay)
	assert.NilError(t, err)
	assert.Equal(t, v, uint32(0x00010002))

	cached, ok := c.Delay(StartupDelay)
	assert.Assert(t, ok)
	assert.Equal(t, cached, v)
}

func TestLoadDelays(t *testing.T) {
	dev := newFakeDevice()
	dev.regs[register.ShutdownDelay+1] = 120
	c := New(dev, nil, zerolog.Nop())

	assert.NilError(t, c.LoadDelays(context.Background()))
	v, _ := c.Delay(ShutdownDelay)
	assert.Equal(t, v, uint32(120))

	dev.err = errors.New("down")
	err := c.LoadDelays(context.Background())
	assert.ErrorContains(t, err, "shutdown_delay")
	assert.ErrorContains(t, err, "startup_delay")
}

func TestLookup(t *testing.T) {
	b, ok := ButtonByKey("battery_test_cancel")
	assert.Assert(t, ok)
	assert.Equal(t, b.Value, uint16(3))
	assert.Assert(t, b.Disabled)

	d, ok := DelayByKey("startup_delay")
	assert.Assert(t, ok)
	assert.Equal(t, d.Address, uint16(0x0102))

	_, ok = DelayByKey("reboot_delay")
	assert.Assert(t, !ok)
}
