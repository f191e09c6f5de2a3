package poller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"gotest.tools/v3/assert"

	pmodbus "github.com/corapoid/homeassistant-ever-powerline-ups/internal/poller/modbus"
	"github.com/corapoid/homeassistant-ever-powerline-ups/internal/register"
)

func TestReadRegisters(t *testing.T) {
	d := newFakeDevice()
	p, _ := newTestPoller(t, d)

	regs, err := p.ReadRegisters(context.Background(), register.Rated.Base, register.Rated.Words)
	assert.NilError(t, err)
	assert.Equal(t, len(regs), 16)
	assert.Equal(t, regs[register.OffRatedApparentPower], uint16(60))
}

func TestReadRegisters_Range(t *testing.T) {
	d := newFakeDevice()
	p, _ := newTestPoller(t, d)

	for _, c := range []struct {
		addr, count uint16
	}{
		{0, 0},
		{0, 126},
		{0xFFFF, 2},
	} {
		_, err := p.ReadRegisters(context.Background(), c.addr, c.count)
		assert.Assert(t, errors.Is(err, ErrRange), "addr=%d count=%d", c.addr, c.count)
	}
	assert.Equal(t, d.dials, 0, "range errors never touch the device")
}

func TestWriteRegisters_Success(t *testing.T) {
	d := newFakeDevice()
	p, _ := newTestPoller(t, d)

	assert.NilError(t, p.WriteRegister(context.Background(), register.BatteryTest, register.BatteryTestStart))
	assert.NilError(t, p.WriteRegisters(context.Background(), register.ShutdownDelay, []uint16{0, 3661}))

	assert.DeepEqual(t, d.writes, [][]uint16{
		{register.BatteryTest, 1},
		{register.ShutdownDelay, 0, 3661},
	})
	assert.Equal(t, d.dials, 1, "writes share one session")
}

func TestWriteRegisters_ExceptionKeepsSession(t *testing.T) {
	d := newFakeDevice()
	p, _ := newTestPoller(t, d)
	d.writeErr = &pmodbus.ExceptionError{Function: 6, Exception: 3}

	err := p.WriteRegister(context.Background(), register.BatteryTest, 9)

	var pe *ProtocolError
	assert.Assert(t, errors.As(err, &pe))
	assert.Equal(t, pe.Code(), uint16(3))
	assert.Equal(t, d.closes, 0)
}

func TestWriteRegisters_TransportErrorDropsSession(t *testing.T) {
	d := newFakeDevice()
	p, _ := newTestPoller(t, d)
	d.writeErr = errors.New("write tcp: broken pipe")

	err := p.WriteRegister(context.Background(), register.BatteryTest, 1)

	var ce *ConnectionError
	assert.Assert(t, errors.As(err, &ce))
	assert.Equal(t, d.closes, 1)

	d.writeErr = nil
	assert.NilError(t, p.WriteRegister(context.Background(), register.BatteryTest, 1))
	assert.Equal(t, d.dials, 2)
}

func TestWriteRegisters_EmptyRejected(t *testing.T) {
	d := newFakeDevice()
	p, _ := newTestPoller(t, d)

	err := p.WriteRegisters(context.Background(), register.ShutdownDelay, nil)
	assert.Assert(t, errors.Is(err, ErrRange))
}

func TestWriteRegisters_WaitsForPollCycle(t *testing.T) {
	d := newFakeDevice()
	p, _ := newTestPoller(t, d)

	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	d.onRead = func(addr uint16) {
		if addr == register.Measurements.Base {
			once.Do(func() { close(entered) })
			<-release
		}
	}

	polled := make(chan Result, 1)
	go func() { polled <- p.PollOnce(context.Background()) }()
	<-entered

	written := make(chan error, 1)
	go func() {
		written <- p.WriteRegisters(context.Background(), register.ShutdownDelay, []uint16{0, 60})
	}()

	select {
	case err := <-written:
		t.Fatalf("write finished while the cycle was mid-read: err=%v", err)
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	assert.NilError(t, recv(t, polled).Err)
	select {
	case err := <-written:
		assert.NilError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatalf("write did not complete after the cycle")
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	n := len(d.trace)
	assert.Assert(t, n >= 2)
	assert.Equal(t, d.trace[n-2], fmt.Sprintf("read 0x%04X", register.Measurements.Base))
	assert.Equal(t, d.trace[n-1], fmt.Sprintf("write 0x%04X", register.ShutdownDelay))
}

func TestRun_ImmediateTickAndRefresh(t *testing.T) {
	d := newFakeDevice()
	p, _ := newTestPoller(t, d, func(c *Config) { c.Interval = time.Hour })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out := make(chan Result)
	done := make(chan struct{})
	go func() {
		p.Run(ctx, out)
		close(done)
	}()

	first := recv(t, out)
	assert.NilError(t, first.Err)

	p.RequestRefresh()
	p.RequestRefresh() // merged with the pending one
	second := recv(t, out)
	assert.NilError(t, second.Err)
	assert.Equal(t, second.Previous, first.Snapshot)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("Run did not stop after cancel")
	}
}

func TestClose_Idempotent(t *testing.T) {
	d := newFakeDevice()
	p, _ := newTestPoller(t, d)

	_ = p.PollOnce(context.Background())
	assert.NilError(t, p.Close())
	assert.NilError(t, p.Close())
	assert.Equal(t, d.closes, 1)
}

func recv(t *testing.T, out <-chan Result) Result {
	t.Helper()
	select {
	case r := <-out:
		return r
	case <-time.After(2 * time.Second):
		t.Fatalf("no result within 2s")
	}
	return Result{}
}
