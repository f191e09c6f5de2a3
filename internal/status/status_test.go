package status

import (
	"errors"
	"fmt"
	"testing"

	"gotest.tools/v3/assert"

	"github.com/corapoid/homeassistant-ever-powerline-ups/internal/register"
)

type codedErr struct{ code uint16 }

func (e codedErr) Error() string { return fmt.Sprintf("code %d", e.code) }
func (e codedErr) Code() uint16  { return e.code }

func TestLinkObserve(t *testing.T) {
	var l Link

	assert.Assert(t, l.Observe(nil))
	assert.Equal(t, l.Health, HealthOK)
	assert.Assert(t, !l.Observe(nil), "no change expected on repeated success")

	err := fmt.Errorf("poll: %w", codedErr{code: 2})
	assert.Assert(t, l.Observe(err))
	assert.Equal(t, l.Health, HealthError)
	assert.Equal(t, l.LastErrorCode, uint16(2))

	assert.Assert(t, l.Tick())
	assert.Assert(t, l.Tick())
	assert.Equal(t, l.SecondsInError, uint16(2))

	// same error leaves counter alone
	assert.Assert(t, !l.Observe(err))
	assert.Equal(t, l.SecondsInError, uint16(2))

	assert.Assert(t, l.Observe(nil))
	assert.Equal(t, l, Link{Health: HealthOK})
	assert.Assert(t, !l.Tick())
}

func TestLinkTickSaturates(t *testing.T) {
	l := Link{Health: HealthError, SecondsInError: MaxSecondsInError}
	assert.Assert(t, !l.Tick())
	assert.Equal(t, l.SecondsInError, MaxSecondsInError)
}

func TestErrorCode(t *testing.T) {
	assert.Equal(t, ErrorCode(nil), uint16(0))
	assert.Equal(t, ErrorCode(errors.New("boom")), uint16(1))
	assert.Equal(t, ErrorCode(fmt.Errorf("wrap: %w", codedErr{code: 11})), uint16(11))
}

func TestIdentity(t *testing.T) {
	assert.Equal(t, DefaultIdentity().Manufacturer, "EVER")
	assert.Equal(t, Identity{}.DisplayName(), "Ever Powerline UPS")
	assert.Equal(t, Identity{Model: "Powerline RT Plus 6000"}.DisplayName(), "Ever Powerline RT Plus 6000")
	assert.Equal(t, Identity{Serial: "SN123"}.UniqueID("10.0.0.5"), "SN123")
	assert.Equal(t, Identity{}.UniqueID("10.0.0.5"), "10.0.0.5")
}

func TestSnapshotFields(t *testing.T) {
	v := 230.5
	p := 1200
	s := &Snapshot{
		Warnings:          [3]uint16{0x8000, 0, 0x1000},
		OperatingMode:     4,
		OperatingModeName: "Online",
		InputVoltage:      Phases[float64]{&v, nil, nil},
		ActivePower:       Phases[int]{&p, nil, nil},
		ActivePowerTotal:  &p,
	}
	f := s.Fields()

	assert.Equal(t, f["warnings_0"], any(uint16(0x8000)))
	assert.Equal(t, f["operating_mode"], any(4))
	assert.Equal(t, f["operating_mode_name"], any("Online"))
	assert.Equal(t, f["input_voltage_l1"], any(230.5))
	assert.Assert(t, f["input_voltage_l2"] == nil)
	assert.Assert(t, f["load_total"] == nil)
	assert.Equal(t, f["active_power_total"], any(1200))

	_, ok := f["apparent_power_l3"]
	assert.Assert(t, ok, "absent fields are still keyed")

	pf, _ := register.FlagByKey("power_fail")
	assert.Assert(t, s.Flag(pf))
	lb, _ := register.FlagByKey("low_battery")
	assert.Assert(t, !s.Flag(lb))
	cf, _ := register.FlagByKey("charger_fault")
	assert.Assert(t, s.Flag(cf))
}

func TestFormatValue(t *testing.T) {
	assert.Equal(t, FormatValue(nil), "None")
	assert.Equal(t, FormatValue(5.5), "5.5")
	assert.Equal(t, FormatValue(230.0), "230")
	assert.Equal(t, FormatValue(1200), "1200")
	assert.Equal(t, FormatValue(uint16(7)), "7")
	assert.Equal(t, FormatValue("Online"), "Online")
	assert.Equal(t, FormatValue(true), "ON")
}

func TestStore(t *testing.T) {
	var s Store
	assert.Assert(t, s.Snapshot() == nil)
	assert.Equal(t, s.Link().Health, HealthUnknown)

	a := &Snapshot{OperatingModeName: "Online"}
	assert.Assert(t, s.Publish(a) == nil)
	b := &Snapshot{OperatingModeName: "Bypass"}
	assert.Equal(t, s.Publish(b), a)
	assert.Equal(t, s.Snapshot(), b)

	s.SetLink(Link{Health: HealthError, LastErrorCode: 4})
	assert.Equal(t, s.Link().LastErrorCode, uint16(4))
}
