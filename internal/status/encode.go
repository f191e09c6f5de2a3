// internal/status/encode.go
package status

import (
	"fmt"
	"strconv"

	"github.com/corapoid/homeassistant-ever-powerline-ups/internal/codec"
)

// Absent is the rendering of a value the device reported as unavailable.
const Absent = "None"

// Fields flattens a Snapshot into the named-field mapping consumers key on.
// Values are nil, int, float64, uint16 or string. No IO. No side effects.
func (s *Snapshot) Fields() map[string]any {
	f := make(map[string]any, 64)

	for i, w := range s.Warnings {
		f[fmt.Sprintf("warnings_%d", i)] = w
	}

	f["ups_type"] = int(s.UPSType)
	f["operating_mode"] = int(s.OperatingMode)
	f["operating_mode_name"] = s.OperatingModeName
	f["input_phases"] = int(s.InputPhases)
	f["output_phases"] = int(s.OutputPhases)
	f["battery_status"] = int(s.BatteryStatus)
	f["battery_status_name"] = s.BatteryStatusName
	f["test_result"] = int(s.TestResult)
	f["test_result_name"] = s.TestResultName
	f["input_source"] = int(s.InputSource)
	f["bypass_phases"] = int(s.BypassPhases)
	f["abm_status"] = int(s.ABMStatus)
	f["abm_status_name"] = s.ABMStatusName

	f["temperature"] = opt(s.Temperature)
	f["input_frequency"] = opt(s.InputFrequency)
	phases(f, "input_voltage", s.InputVoltage)
	phases(f, "output_voltage", s.OutputVoltage)
	phases(f, "output_current", s.OutputCurrent)
	phases(f, "active_power", s.ActivePower)
	f["active_power_total"] = opt(s.ActivePowerTotal)
	phases(f, "apparent_power", s.ApparentPower)
	f["apparent_power_total"] = opt(s.ApparentPowerTotal)
	phases(f, "load", s.Load)
	f["load_total"] = opt(s.LoadTotal)

	f["runtime_minutes"] = opt(s.RuntimeMinutes)
	f["runtime_seconds"] = opt(s.RuntimeSeconds)
	f["runtime_remaining"] = opt(s.RuntimeRemaining)

	f["battery_charge"] = opt(s.BatteryCharge)
	f["battery_voltage"] = opt(s.BatteryVoltage)
	f["battery_voltage_pos"] = opt(s.BatteryVoltagePos)
	f["battery_voltage_neg"] = opt(s.BatteryVoltageNeg)

	f["bypass_frequency"] = opt(s.BypassFrequency)
	f["bypass_voltage"] = opt(s.BypassVoltage)

	return f
}

// opt turns a nil pointer into an untyped nil so map readers can test v == nil.
func opt[T codec.Number](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}

func phases[T codec.Number](f map[string]any, prefix string, p Phases[T]) {
	for i, v := range p {
		f[fmt.Sprintf("%s_l%d", prefix, i+1)] = opt(v)
	}
}

// FormatValue renders one field value as text.
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return Absent
	case string:
		return x
	case int:
		return strconv.Itoa(x)
	case uint16:
		return strconv.FormatUint(uint64(x), 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		if x {
			return "ON"
		}
		return "OFF"
	default:
		return fmt.Sprint(x)
	}
}

// Numeric returns v as a float64 when it is a present number.
func Numeric(v any) (float64, bool) {
	switch x := v.(type) {
	case int:
		return float64(x), true
	case uint16:
		return float64(x), true
	case float64:
		return x, true
	default:
		return 0, false
	}
}
