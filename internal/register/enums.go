package register

import "fmt"

// Enumerations carried in the status block. Codes missing from a table
// render as "Unknown (<n>)".

var upsTypeNames = map[uint8]string{
	0: "Online",
	1: "Offline",
}

var operatingModeNames = map[uint8]string{
	1:  "Initialization",
	2:  "Standby",
	3:  "Bypass",
	4:  "Online",
	5:  "On Battery",
	6:  "Battery Test",
	8:  "Converter",
	9:  "ECO",
	10: "Shutdown",
	11: "Boost",
	12: "Buck",
	13: "Other",
}

var batteryStatusNames = map[uint8]string{
	2: "Normal",
	3: "Low",
	4: "Depleted",
	5: "Discharging",
	6: "Fault",
}

var testResultNames = map[uint8]string{
	1: "No Test Performed",
	2: "In Progress",
	3: "Passed",
	4: "Failed",
	6: "Cancelled",
}

var abmStatusNames = map[uint8]string{
	1: "Charging",
	2: "Float Charging",
	3: "Resting",
	4: "Discharging",
	5: "Disabled",
}

func lookup(names map[uint8]string, code uint8) string {
	if name, ok := names[code]; ok {
		return name
	}
	return fmt.Sprintf("Unknown (%d)", code)
}

func options(names map[uint8]string) []string {
	out := make([]string, 0, len(names))
	for code := 0; code <= 0xFF; code++ {
		if name, ok := names[uint8(code)]; ok {
			out = append(out, name)
		}
	}
	return out
}

func UPSTypeName(code uint8) string       { return lookup(upsTypeNames, code) }
func OperatingModeName(code uint8) string { return lookup(operatingModeNames, code) }
func BatteryStatusName(code uint8) string { return lookup(batteryStatusNames, code) }
func TestResultName(code uint8) string    { return lookup(testResultNames, code) }
func ABMStatusName(code uint8) string     { return lookup(abmStatusNames, code) }

// Option lists in code order, used for enum sensor discovery.
func OperatingModeOptions() []string { return options(operatingModeNames) }
func BatteryStatusOptions() []string { return options(batteryStatusNames) }
func TestResultOptions() []string    { return options(testResultNames) }
func ABMStatusOptions() []string     { return options(abmStatusNames) }
