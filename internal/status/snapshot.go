// internal/status/snapshot.go
package status

import (
	"time"

	"github.com/corapoid/homeassistant-ever-powerline-ups/internal/codec"
	"github.com/corapoid/homeassistant-ever-powerline-ups/internal/register"
)

// Phases holds one optional value per phase, L1 first.
type Phases[T codec.Number] [3]*T

// Snapshot is the decoded result of one successful poll cycle.
// It is never mutated after it has been published to a Store.
// nil pointers mean the device reported the value as unavailable.
type Snapshot struct {
	At time.Time `json:"at"`

	// Raw warning words, decoded per flag by Flag.
	Warnings [register.WarningWords]uint16 `json:"warnings"`

	// Status block.
	UPSType           uint8  `json:"ups_type"`
	OperatingMode     uint8  `json:"operating_mode"`
	OperatingModeName string `json:"operating_mode_name"`
	InputPhases       uint8  `json:"input_phases"`
	OutputPhases      uint8  `json:"output_phases"`
	BatteryStatus     uint8  `json:"battery_status"`
	BatteryStatusName string `json:"battery_status_name"`
	TestResult        uint8  `json:"test_result"`
	TestResultName    string `json:"test_result_name"`
	InputSource       uint8  `json:"input_source"`
	BypassPhases      uint8  `json:"bypass_phases"`
	ABMStatus         uint8  `json:"abm_status"`
	ABMStatusName     string `json:"abm_status_name"`

	// Measurement block.
	Temperature    *float64 `json:"temperature"`
	InputFrequency *float64 `json:"input_frequency"`

	InputVoltage  Phases[float64] `json:"input_voltage"`
	OutputVoltage Phases[float64] `json:"output_voltage"`
	OutputCurrent Phases[float64] `json:"output_current"`

	ActivePower        Phases[int] `json:"active_power"`
	ActivePowerTotal   *int        `json:"active_power_total"`
	ApparentPower      Phases[int] `json:"apparent_power"`
	ApparentPowerTotal *int        `json:"apparent_power_total"`
	Load               Phases[int] `json:"load"`
	LoadTotal          *int        `json:"load_total"`

	RuntimeMinutes   *int     `json:"runtime_minutes"`
	RuntimeSeconds   *int     `json:"runtime_seconds"`
	RuntimeRemaining *float64 `json:"runtime_remaining"`

	BatteryCharge     *int     `json:"battery_charge"`
	BatteryVoltage    *float64 `json:"battery_voltage"`
	BatteryVoltagePos *float64 `json:"battery_voltage_pos"`
	BatteryVoltageNeg *float64 `json:"battery_voltage_neg"`

	BypassFrequency *float64 `json:"bypass_frequency"`
	BypassVoltage   *float64 `json:"bypass_voltage"`
}

// Flag reports whether a warning bit is raised.
func (s *Snapshot) Flag(f register.Flag) bool {
	if f.Word < 0 || f.Word >= len(s.Warnings) {
		return false
	}
	return codec.Bitmask(s.Warnings[f.Word], f.Mask)
}
