// internal/publisher/builder.go
package publisher

import (
	"strings"

	"github.com/corapoid/homeassistant-ever-powerline-ups/internal/control"
	"github.com/corapoid/homeassistant-ever-powerline-ups/internal/register"
	"github.com/corapoid/homeassistant-ever-powerline-ups/internal/status"
)

const (
	componentSensor       = "sensor"
	componentBinarySensor = "binary_sensor"
	componentButton       = "button"
	componentNumber       = "number"

	categoryConfig     = "config"
	categoryDiagnostic = "diagnostic"

	payloadOn    = "ON"
	payloadOff   = "OFF"
	payloadPress = "PRESS"
)

// BuildPlan converts a device identity into a discovery Plan.
// host is the fallback unique id when the serial number is unknown.
func BuildPlan(t Topics, id status.Identity, host string) Plan {
	uid := id.UniqueID(host)
	dev := DeviceConfig{
		IDs:          []string{uid},
		Name:         id.DisplayName(),
		Manufacturer: id.Manufacturer,
		Model:        id.Model,
		SWVersion:    id.Firmware,
		SerialNumber: id.Serial,
	}

	plan := Plan{DeviceID: uid}

	add := func(component, key string, c EntityConfig) {
		c.Name = displayName(key)
		c.UniqueID = uid + "_" + key
		c.ObjectID = t.NodeID + "_" + key
		c.Device = dev
		plan.Announcements = append(plan.Announcements, Announcement{
			Topic:  t.Discovery(component, key),
			Config: c,
		})
	}

	for _, s := range Sensors {
		add(componentSensor, s.Key, EntityConfig{
			StateTopic:        t.State(s.Key),
			AvailabilityTopic: t.Availability(),
			DeviceClass:       s.DeviceClass,
			StateClass:        s.StateClass,
			UnitOfMeasurement: s.Unit,
			Icon:              s.Icon,
			Options:           s.Options,
			EnabledByDefault:  enabled(s.Disabled),
		})
	}

	// No availability topic: link diagnostics describe the outage itself.
	for _, s := range linkSensors {
		add(componentSensor, s.Key, EntityConfig{
			StateTopic:        t.State(s.Key),
			DeviceClass:       s.DeviceClass,
			StateClass:        s.StateClass,
			UnitOfMeasurement: s.Unit,
			Icon:              s.Icon,
			EntityCategory:    categoryDiagnostic,
			EnabledByDefault:  enabled(s.Disabled),
		})
	}

	for _, f := range register.Flags {
		add(componentBinarySensor, f.Key, EntityConfig{
			StateTopic:        t.State(f.Key),
			AvailabilityTopic: t.Availability(),
			DeviceClass:       f.DeviceClass,
			Icon:              f.Icon,
			PayloadOn:         payloadOn,
			PayloadOff:        payloadOff,
			EnabledByDefault:  enabled(f.Disabled),
		})
	}

	for _, b := range control.Buttons {
		add(componentButton, b.Key, EntityConfig{
			CommandTopic:      t.Command(b.Key),
			AvailabilityTopic: t.Availability(),
			Icon:              b.Icon,
			PayloadPress:      payloadPress,
			EntityCategory:    categoryConfig,
			EnabledByDefault:  enabled(b.Disabled),
		})
	}

	for _, d := range control.Delays {
		lo, hi := float64(control.MinDelay), float64(control.MaxDelay)
		add(componentNumber, d.Key, EntityConfig{
			StateTopic:        t.State(d.Key),
			CommandTopic:      t.Command(d.Key),
			AvailabilityTopic: t.Availability(),
			DeviceClass:       "duration",
			UnitOfMeasurement: unitSeconds,
			Icon:              d.Icon,
			EntityCategory:    categoryConfig,
			Min:               &lo,
			Max:               &hi,
			Step:              1,
			Mode:              "box",
		})
	}

	return plan
}

// enabled is nil for entities enabled by default, so the key is omitted.
func enabled(disabled bool) *bool {
	if !disabled {
		return nil
	}
	f := false
	return &f
}

// displayName turns "input_voltage_l1" into "Input voltage L1".
func displayName(key string) string {
	words := strings.Split(key, "_")
	for i, w := range words {
		switch {
		case len(w) == 2 && w[0] == 'l' && w[1] >= '1' && w[1] <= '3':
			words[i] = strings.ToUpper(w)
		case w == "ups" || w == "abm" || w == "epo":
			words[i] = strings.ToUpper(w)
		case i == 0:
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}
