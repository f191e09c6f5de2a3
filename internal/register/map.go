// Package register holds the Ever Powerline register map.
// These values are manufacturer data and MUST NOT be configurable.
package register

// Block describes one contiguous holding-register range.
// Geometry only: decoding lives in the poller.
type Block struct {
	Name  string
	Base  uint16
	Words uint16
}

// ---- BLOCKS ----

var (
	Identifiers  = Block{Name: "identifiers", Base: 0x0000, Words: 80}
	Warnings     = Block{Name: "warnings", Base: 0x0060, Words: 6}
	Status       = Block{Name: "status", Base: 0x0070, Words: 10}
	Measurements = Block{Name: "measurements", Base: 0x0080, Words: 80}
	Rated        = Block{Name: "rated", Base: 0x00E0, Words: 16}
	Settings     = Block{Name: "settings", Base: 0x00F0, Words: 16}
	Timers       = Block{Name: "timers", Base: 0x0100, Words: 4}
)

// Blocks lists every block of the map in address order.
var Blocks = []Block{Identifiers, Warnings, Status, Measurements, Rated, Settings, Timers}

// ---- IDENTIFIERS (offsets from Identifiers.Base) ----

// Each identifier is a packed ASCII string, two characters per word.
const (
	OffManufacturer   = 0
	WordsManufacturer = 16
	MaxManufacturer   = 31

	OffModel   = 16
	WordsModel = 32
	MaxModel   = 63

	OffFirmware   = 48
	WordsFirmware = 8
	MaxFirmware   = 15

	OffSerial   = 56
	WordsSerial = 8
	MaxSerial   = 15
)

// DefaultManufacturer is reported when the manufacturer string decodes empty.
const DefaultManufacturer = "EVER"

// ---- WARNINGS ----

// WarningWords is the number of warning words decoded out of the Warnings block.
const WarningWords = 3

// ---- STATUS (offsets from Status.Base) ----

// Every status word packs two 8-bit fields: MSB first, LSB second.
const (
	OffUPSType    = 0 // MSB: UPS type, LSB: operating mode
	OffPhaseCount = 1 // MSB: input phases, LSB: output phases
	OffBattery    = 2 // MSB: battery status, LSB: test result
	OffInput      = 3 // MSB: input source, LSB: bypass phases
	OffABM        = 4 // MSB: cell position, LSB: ABM status
)

// ---- MEASUREMENTS (offsets from Measurements.Base) ----

// 0xFFFF in any of these words means the value is unavailable.
const (
	OffTemperature    = 0  // 0.1 C
	OffInputFrequency = 1  // 0.1 Hz
	OffInputVoltageL1 = 4  // 0.1 V
	OffInputVoltageL2 = 5  // 0.1 V
	OffInputVoltageL3 = 6  // 0.1 V

	OffOutputVoltageL1 = 19 // 0.1 V
	OffOutputVoltageL2 = 20 // 0.1 V
	OffOutputVoltageL3 = 21 // 0.1 V
	OffOutputCurrentL1 = 25 // 0.1 A
	OffOutputCurrentL2 = 26 // 0.1 A
	OffOutputCurrentL3 = 27 // 0.1 A

	OffActivePowerL1   = 28 // 100 W
	OffActivePowerL2   = 29 // 100 W
	OffActivePowerL3   = 30 // 100 W
	OffApparentPowerL1 = 31 // 100 VA
	OffApparentPowerL2 = 32 // 100 VA
	OffApparentPowerL3 = 33 // 100 VA

	OffLoadL1 = 34 // %
	OffLoadL2 = 35 // %
	OffLoadL3 = 36 // %

	OffRuntimeMinutes = 37
	OffRuntimeSeconds = 38

	OffBatteryCharge     = 41 // %
	OffBatteryVoltagePos = 42 // 0.1 V
	OffBatteryVoltageNeg = 43 // 0.1 V

	OffBypassFrequency = 45 // 0.1 Hz
	OffBypassVoltage   = 48 // 0.1 V
)

// Scale factors used by the measurement and rated blocks.
const (
	TenthScale      = 10.0
	HundredMultiple = 100
)

// ---- RATED (offsets from Rated.Base) ----

const (
	OffRatedApparentPower   = 1  // 100 VA
	OffRatedBatteryVoltage  = 2  // 0.1 V
	OffRatedOutputVoltage   = 4  // 0.1 V
	OffRatedOutputFrequency = 5  // 0.1 Hz
	OffRatedActivePower     = 6  // 100 W
	OffLoadSegmentSupport   = 11 // 1 = yes, 0 = no (not decoded)
	OffLoadSegmentCount     = 12 // 0, 1 or 2 (not decoded)
)

// ---- CONTROL ----

// BatteryTest is the battery test command register.
const BatteryTest uint16 = 0x00F0

// Battery test command values.
const (
	BatteryTestStart  uint16 = 1
	BatteryTestCancel uint16 = 3
)

// Delay timers are 32-bit values split across two words, MSB first.
const (
	ShutdownDelay uint16 = 0x0100
	StartupDelay  uint16 = 0x0102
	DelayWords    uint16 = 2
)
