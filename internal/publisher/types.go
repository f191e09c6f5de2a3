// internal/publisher/types.go
package publisher

import "strings"

// Topics is the topic layout of one bridge.
type Topics struct {
	Prefix          string // state and command topics
	DiscoveryPrefix string // usually "homeassistant"
	NodeID          string
}

// Availability is the device availability topic, also the broker will.
func (t Topics) Availability() string { return t.Prefix + "/status" }

// State is the state topic of one entity.
func (t Topics) State(key string) string { return t.Prefix + "/" + key }

// Command is the command topic of one writable entity.
func (t Topics) Command(key string) string { return t.Prefix + "/" + key + "/set" }

// Discovery is the retained config topic of one entity.
func (t Topics) Discovery(component, key string) string {
	return strings.Join([]string{t.DiscoveryPrefix, component, t.NodeID, key, "config"}, "/")
}

// commandKey extracts the entity key from a command topic.
func (t Topics) commandKey(topic string) (string, bool) {
	rest, ok := strings.CutPrefix(topic, t.Prefix+"/")
	if !ok {
		return "", false
	}
	key, ok := strings.CutSuffix(rest, "/set")
	if !ok || key == "" || strings.Contains(key, "/") {
		return "", false
	}
	return key, true
}

// Entity payloads, with the abbreviated keys Home Assistant accepts.
type EntityConfig struct {
	Name              string `json:"name"`
	UniqueID          string `json:"uniq_id"`
	ObjectID          string `json:"obj_id"`
	StateTopic        string `json:"stat_t,omitempty"`
	CommandTopic      string `json:"cmd_t,omitempty"`
	AvailabilityTopic string `json:"avty_t,omitempty"`

	DeviceClass       string   `json:"dev_cla,omitempty"`
	StateClass        string   `json:"stat_cla,omitempty"`
	UnitOfMeasurement string   `json:"unit_of_meas,omitempty"`
	Icon              string   `json:"ic,omitempty"`
	EntityCategory    string   `json:"ent_cat,omitempty"`
	EnabledByDefault  *bool    `json:"en,omitempty"`
	Options           []string `json:"ops,omitempty"`

	// binary_sensor
	PayloadOn  string `json:"pl_on,omitempty"`
	PayloadOff string `json:"pl_off,omitempty"`

	// button
	PayloadPress string `json:"pl_prs,omitempty"`

	// number
	Min  *float64 `json:"min,omitempty"`
	Max  *float64 `json:"max,omitempty"`
	Step float64  `json:"step,omitempty"`
	Mode string   `json:"mode,omitempty"`

	Device DeviceConfig `json:"dev"`
}

type DeviceConfig struct {
	IDs          []string `json:"ids"`
	Name         string   `json:"name"`
	Manufacturer string   `json:"mf,omitempty"`
	Model        string   `json:"mdl,omitempty"`
	SWVersion    string   `json:"sw,omitempty"`
	SerialNumber string   `json:"sn,omitempty"`
}

// Announcement is one retained discovery message.
type Announcement struct {
	Topic  string
	Config EntityConfig
}

// Plan is the fully-built discovery plan for one device identity.
type Plan struct {
	DeviceID      string
	Announcements []Announcement
}
