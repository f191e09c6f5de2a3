// internal/publisher/entities.go
package publisher

import "github.com/corapoid/homeassistant-ever-powerline-ups/internal/register"

// Sensor maps one snapshot field onto a Home Assistant sensor.
type Sensor struct {
	Key   string // object id and state topic suffix
	Field string // key in status.Snapshot.Fields()

	Unit        string
	DeviceClass string
	StateClass  string
	Icon        string
	Options     []string // enum sensors only

	Disabled bool // not enabled by default
}

const (
	measurement = "measurement"

	unitVolt    = "V"
	unitAmpere  = "A"
	unitWatt    = "W"
	unitVA      = "VA"
	unitHertz   = "Hz"
	unitCelsius = "°C"
	unitPercent = "%"
	unitMinutes = "min"
	unitSeconds = "s"
)

func voltage(key string, disabled bool) Sensor {
	return Sensor{Key: key, Field: key, Unit: unitVolt, DeviceClass: "voltage", StateClass: measurement, Disabled: disabled}
}

func current(key string, disabled bool) Sensor {
	return Sensor{Key: key, Field: key, Unit: unitAmpere, DeviceClass: "current", StateClass: measurement, Disabled: disabled}
}

func power(key string, disabled bool) Sensor {
	return Sensor{Key: key, Field: key, Unit: unitWatt, DeviceClass: "power", StateClass: measurement, Disabled: disabled}
}

func apparent(key string, disabled bool) Sensor {
	return Sensor{Key: key, Field: key, Unit: unitVA, DeviceClass: "apparent_power", StateClass: measurement, Disabled: disabled}
}

func load(key string, disabled bool) Sensor {
	return Sensor{Key: key, Field: key, Unit: unitPercent, StateClass: measurement, Disabled: disabled}
}

// Sensors is the full sensor table in display order.
var Sensors = []Sensor{
	{Key: "temperature", Field: "temperature", Unit: unitCelsius, DeviceClass: "temperature", StateClass: measurement},
	{Key: "input_frequency", Field: "input_frequency", Unit: unitHertz, DeviceClass: "frequency", StateClass: measurement},

	voltage("input_voltage_l1", false),
	voltage("input_voltage_l2", true),
	voltage("input_voltage_l3", true),
	voltage("output_voltage_l1", false),
	voltage("output_voltage_l2", true),
	voltage("output_voltage_l3", true),

	current("output_current_l1", false),
	current("output_current_l2", true),
	current("output_current_l3", true),

	power("active_power_l1", true),
	power("active_power_l2", true),
	power("active_power_l3", true),
	power("active_power_total", false),

	apparent("apparent_power_l1", true),
	apparent("apparent_power_l2", true),
	apparent("apparent_power_l3", true),
	apparent("apparent_power_total", false),

	load("load_l1", true),
	load("load_l2", true),
	load("load_l3", true),
	{Key: "load_total", Field: "load_total", Unit: unitPercent, StateClass: measurement, Icon: "mdi:gauge"},

	{Key: "battery_charge", Field: "battery_charge", Unit: unitPercent, DeviceClass: "battery", StateClass: measurement},
	voltage("battery_voltage", false),
	voltage("battery_voltage_pos", true),
	voltage("battery_voltage_neg", true),
	{Key: "runtime_remaining", Field: "runtime_remaining", Unit: unitMinutes, DeviceClass: "duration", StateClass: measurement, Icon: "mdi:timer-outline"},

	{Key: "bypass_frequency", Field: "bypass_frequency", Unit: unitHertz, DeviceClass: "frequency", StateClass: measurement, Disabled: true},
	voltage("bypass_voltage", true),

	{Key: "operating_mode", Field: "operating_mode_name", DeviceClass: "enum", Icon: "mdi:state-machine", Options: register.OperatingModeOptions()},
	{Key: "battery_status", Field: "battery_status_name", DeviceClass: "enum", Icon: "mdi:battery-heart-variant", Options: register.BatteryStatusOptions()},
	{Key: "battery_test_result", Field: "test_result_name", DeviceClass: "enum", Icon: "mdi:clipboard-check-outline", Options: register.TestResultOptions(), Disabled: true},
	{Key: "abm_status", Field: "abm_status_name", DeviceClass: "enum", Icon: "mdi:battery-charging", Options: register.ABMStatusOptions(), Disabled: true},
}

// Link diagnostics. Published from status.Link, never from a snapshot.
const (
	KeyLinkHealth         = "link_health"
	KeyLinkLastErrorCode  = "link_last_error_code"
	KeyLinkSecondsInError = "link_seconds_in_error"
)

var linkSensors = []Sensor{
	{Key: KeyLinkHealth, Icon: "mdi:lan-connect"},
	{Key: KeyLinkLastErrorCode, Icon: "mdi:alert-octagon-outline", Disabled: true},
	{Key: KeyLinkSecondsInError, Unit: unitSeconds, DeviceClass: "duration", StateClass: measurement, Disabled: true},
}
