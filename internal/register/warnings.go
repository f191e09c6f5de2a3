package register

// Flag is one warning bit inside one of the three warning words.
type Flag struct {
	Key  string
	Word int
	Mask uint16

	// Home Assistant metadata.
	DeviceClass string
	Icon        string
	Disabled    bool // not enabled by default
}

// Flags is the full warning table in register order.
var Flags = []Flag{
	// Word 0 (0x0060)
	{Key: "power_fail", Word: 0, Mask: 0x8000, DeviceClass: "problem", Icon: "mdi:power-plug-off"},
	{Key: "low_battery", Word: 0, Mask: 0x4000, DeviceClass: "battery"},
	{Key: "ups_failed", Word: 0, Mask: 0x2000, DeviceClass: "problem", Icon: "mdi:alert-circle"},
	{Key: "on_battery", Word: 0, Mask: 0x1000, DeviceClass: "running", Icon: "mdi:battery-arrow-down"},
	{Key: "test_in_progress", Word: 0, Mask: 0x0800, DeviceClass: "running", Icon: "mdi:test-tube", Disabled: true},
	{Key: "bypass_active", Word: 0, Mask: 0x0400, DeviceClass: "running", Icon: "mdi:swap-horizontal"},
	{Key: "communication_lost", Word: 0, Mask: 0x0200, DeviceClass: "connectivity", Disabled: true},
	{Key: "going_shutdown", Word: 0, Mask: 0x0100, DeviceClass: "running", Icon: "mdi:power-standby", Disabled: true},
	{Key: "over_temperature", Word: 0, Mask: 0x0010, DeviceClass: "heat"},
	{Key: "overload", Word: 0, Mask: 0x0008, DeviceClass: "problem", Icon: "mdi:flash-alert"},

	// Word 1 (0x0061)
	{Key: "epo_active", Word: 1, Mask: 0x0400, DeviceClass: "safety", Icon: "mdi:stop-circle", Disabled: true},
	{Key: "main_neutral_loss", Word: 1, Mask: 0x0100, DeviceClass: "problem", Icon: "mdi:flash-off", Disabled: true},
	{Key: "main_phase_error", Word: 1, Mask: 0x0080, DeviceClass: "problem", Icon: "mdi:flash-off", Disabled: true},
	{Key: "site_fault", Word: 1, Mask: 0x0040, DeviceClass: "problem", Icon: "mdi:swap-horizontal-variant", Disabled: true},
	{Key: "bypass_abnormal", Word: 1, Mask: 0x0020, DeviceClass: "problem", Icon: "mdi:swap-horizontal", Disabled: true},
	{Key: "bypass_phase_error", Word: 1, Mask: 0x0010, DeviceClass: "problem", Disabled: true},
	{Key: "battery_open", Word: 1, Mask: 0x0008, DeviceClass: "problem", Icon: "mdi:battery-off"},
	{Key: "battery_over_charge", Word: 1, Mask: 0x0004, DeviceClass: "problem", Icon: "mdi:battery-alert", Disabled: true},

	// Word 2 (0x0062)
	{Key: "overload_warning", Word: 2, Mask: 0x8000, DeviceClass: "problem", Icon: "mdi:flash-alert-outline", Disabled: true},
	{Key: "fan_fault", Word: 2, Mask: 0x4000, DeviceClass: "problem", Icon: "mdi:fan-alert"},
	{Key: "maintenance_cover_open", Word: 2, Mask: 0x2000, DeviceClass: "door", Disabled: true},
	{Key: "charger_fault", Word: 2, Mask: 0x1000, DeviceClass: "problem", Icon: "mdi:battery-charging-wireless-alert"},
}

// FlagByKey returns the flag with the given key.
func FlagByKey(key string) (Flag, bool) {
	for _, f := range Flags {
		if f.Key == key {
			return f, true
		}
	}
	return Flag{}, false
}
