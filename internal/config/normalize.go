// internal/config/normalize.go
package config

import "github.com/google/uuid"

// Defaults applied by Normalize.
const (
	DefaultPort            = 502
	DefaultSlaveID         = 1
	DefaultTimeoutMs       = 10000
	DefaultIntervalMs      = 10000
	DefaultTopicPrefix     = "ever_ups"
	DefaultDiscoveryPrefix = "homeassistant"
	DefaultNodeID          = "ever_ups"
	DefaultListen          = ":8080"
	DefaultEventLogPath    = "ever-ups-events.db"
	DefaultLogLevel        = "info"
	DefaultLogFormat       = "console"
)

// Normalize applies post-validation defaults.
// It is allowed to mutate configuration.
// It MUST be called only after Validate().
func Normalize(cfg *Config) {
	if cfg == nil {
		return
	}

	// ------------------------------------------------------------
	// DEVICE
	// ------------------------------------------------------------

	if cfg.Device.Port == 0 {
		cfg.Device.Port = DefaultPort
	}
	if cfg.Device.SlaveID == 0 {
		cfg.Device.SlaveID = DefaultSlaveID
	}
	if cfg.Device.TimeoutMs == 0 {
		cfg.Device.TimeoutMs = DefaultTimeoutMs
	}
	if cfg.Poll.IntervalMs == 0 {
		cfg.Poll.IntervalMs = DefaultIntervalMs
	}

	// ------------------------------------------------------------
	// MQTT
	// ------------------------------------------------------------

	if cfg.MQTT.TopicPrefix == "" {
		cfg.MQTT.TopicPrefix = DefaultTopicPrefix
	}
	if cfg.MQTT.DiscoveryPrefix == "" {
		cfg.MQTT.DiscoveryPrefix = DefaultDiscoveryPrefix
	}
	if cfg.MQTT.NodeID == "" {
		cfg.MQTT.NodeID = DefaultNodeID
	}
	if cfg.MQTT.ClientID == "" {
		// Client ids must be unique per broker.
		cfg.MQTT.ClientID = "ever-ups-" + uuid.NewString()[:8]
	}

	// ------------------------------------------------------------
	// HTTP / EVENT LOG / LOG
	// ------------------------------------------------------------

	if cfg.HTTP.Listen == "" {
		cfg.HTTP.Listen = DefaultListen
	}
	if cfg.EventLog.Path == "" {
		cfg.EventLog.Path = DefaultEventLogPath
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = DefaultLogFormat
	}
}
