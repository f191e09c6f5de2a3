// internal/poller/decode.go
package poller

import (
	"time"

	"github.com/corapoid/homeassistant-ever-powerline-ups/internal/codec"
	"github.com/corapoid/homeassistant-ever-powerline-ups/internal/register"
	"github.com/corapoid/homeassistant-ever-powerline-ups/internal/status"
)

// Pure block decoders. Callers guarantee each slice holds at least the
// block's word count.

func decodeIdentity(regs []uint16) status.Identity {
	str := func(off, words, n int) string {
		return codec.PackedASCII(regs[off:off+words], n)
	}

	id := status.Identity{
		Manufacturer: str(register.OffManufacturer, register.WordsManufacturer, register.MaxManufacturer),
		Model:        str(register.OffModel, register.WordsModel, register.MaxModel),
		Firmware:     str(register.OffFirmware, register.WordsFirmware, register.MaxFirmware),
		Serial:       str(register.OffSerial, register.WordsSerial, register.MaxSerial),
	}
	if id.Manufacturer == "" {
		id.Manufacturer = register.DefaultManufacturer
	}
	return id
}

// Rated words carry no sentinel.
func decodeRating(regs []uint16) status.Rating {
	return status.Rating{
		ApparentPower:   int(regs[register.OffRatedApparentPower]) * register.HundredMultiple,
		ActivePower:     int(regs[register.OffRatedActivePower]) * register.HundredMultiple,
		BatteryVoltage:  float64(regs[register.OffRatedBatteryVoltage]) / register.TenthScale,
		OutputVoltage:   float64(regs[register.OffRatedOutputVoltage]) / register.TenthScale,
		OutputFrequency: float64(regs[register.OffRatedOutputFrequency]) / register.TenthScale,
	}
}

// decodeCycle builds a snapshot from the three per-cycle blocks.
// Same inputs always give an equal snapshot.
func decodeCycle(at time.Time, warnings, st, meas []uint16) *status.Snapshot {
	s := &status.Snapshot{At: at}

	copy(s.Warnings[:], warnings[:register.WarningWords])

	s.UPSType, s.OperatingMode = codec.BytePair(st[register.OffUPSType])
	s.InputPhases, s.OutputPhases = codec.BytePair(st[register.OffPhaseCount])
	s.BatteryStatus, s.TestResult = codec.BytePair(st[register.OffBattery])
	s.InputSource, s.BypassPhases = codec.BytePair(st[register.OffInput])
	_, s.ABMStatus = codec.BytePair(st[register.OffABM])

	s.OperatingModeName = register.OperatingModeName(s.OperatingMode)
	s.BatteryStatusName = register.BatteryStatusName(s.BatteryStatus)
	s.TestResultName = register.TestResultName(s.TestResult)
	s.ABMStatusName = register.ABMStatusName(s.ABMStatus)

	tenth := func(off int) *float64 { return codec.Scaled(meas[off], register.TenthScale) }
	hundred := func(off int) *int { return codec.Multiplied(meas[off], register.HundredMultiple) }
	raw := func(off int) *int { return codec.RawOrAbsent(meas[off]) }

	s.Temperature = tenth(register.OffTemperature)
	s.InputFrequency = tenth(register.OffInputFrequency)

	s.InputVoltage = status.Phases[float64]{
		tenth(register.OffInputVoltageL1), tenth(register.OffInputVoltageL2), tenth(register.OffInputVoltageL3),
	}
	s.OutputVoltage = status.Phases[float64]{
		tenth(register.OffOutputVoltageL1), tenth(register.OffOutputVoltageL2), tenth(register.OffOutputVoltageL3),
	}
	s.OutputCurrent = status.Phases[float64]{
		tenth(register.OffOutputCurrentL1), tenth(register.OffOutputCurrentL2), tenth(register.OffOutputCurrentL3),
	}

	s.ActivePower = status.Phases[int]{
		hundred(register.OffActivePowerL1), hundred(register.OffActivePowerL2), hundred(register.OffActivePowerL3),
	}
	s.ApparentPower = status.Phases[int]{
		hundred(register.OffApparentPowerL1), hundred(register.OffApparentPowerL2), hundred(register.OffApparentPowerL3),
	}
	s.Load = status.Phases[int]{
		raw(register.OffLoadL1), raw(register.OffLoadL2), raw(register.OffLoadL3),
	}

	s.ActivePowerTotal = codec.Sum(s.ActivePower[:]...)
	s.ApparentPowerTotal = codec.Sum(s.ApparentPower[:]...)
	s.LoadTotal = codec.Max(s.Load[:]...)

	s.RuntimeMinutes = raw(register.OffRuntimeMinutes)
	s.RuntimeSeconds = raw(register.OffRuntimeSeconds)
	s.RuntimeRemaining = codec.Runtime(s.RuntimeMinutes, s.RuntimeSeconds)

	s.BatteryCharge = raw(register.OffBatteryCharge)
	s.BatteryVoltagePos = tenth(register.OffBatteryVoltagePos)
	s.BatteryVoltageNeg = tenth(register.OffBatteryVoltageNeg)
	s.BatteryVoltage = codec.BatteryVoltage(meas[register.OffBatteryVoltagePos], meas[register.OffBatteryVoltageNeg])

	s.BypassFrequency = tenth(register.OffBypassFrequency)
	s.BypassVoltage = tenth(register.OffBypassVoltage)

	return s
}
