package status

import "github.com/corapoid/homeassistant-ever-powerline-ups/internal/register"

// Identity is the device identification block.
type Identity struct {
	Manufacturer string `json:"manufacturer"`
	Model        string `json:"model"`
	Firmware     string `json:"firmware"`
	Serial       string `json:"serial"`
}

// DefaultIdentity is reported until the identifier block has been read.
func DefaultIdentity() Identity {
	return Identity{Manufacturer: register.DefaultManufacturer}
}

// DisplayName is the human name of the device.
func (id Identity) DisplayName() string {
	if id.Model == "" {
		return "Ever Powerline UPS"
	}
	return "Ever " + id.Model
}

// UniqueID returns the stable prefix used for per-entity identifiers.
// The serial number wins; host is the fallback.
func (id Identity) UniqueID(host string) string {
	if id.Serial != "" {
		return id.Serial
	}
	return host
}

// Rating is the nameplate data of the device.
type Rating struct {
	ApparentPower   int     `json:"apparent_power_va"`
	ActivePower     int     `json:"active_power_w"`
	BatteryVoltage  float64 `json:"battery_voltage"`
	OutputVoltage   float64 `json:"output_voltage"`
	OutputFrequency float64 `json:"output_frequency"`
}
