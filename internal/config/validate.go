// internal/config/validate.go
package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/rs/zerolog"
)

// Validate checks configuration correctness.
// It performs declarative validation only. Zero values mean "use the
// default" and are accepted.
// It MUST NOT mutate configuration.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}

	// ------------------------------------------------------------
	// DEVICE
	// ------------------------------------------------------------

	d := cfg.Device
	if strings.TrimSpace(d.Host) == "" {
		return fmt.Errorf("device.host is required")
	}
	if d.Port < 0 || d.Port > 65535 {
		return fmt.Errorf("device.port %d out of range 1..65535", d.Port)
	}
	if d.SlaveID > 247 {
		return fmt.Errorf("device.slave_id %d out of range 1..247", d.SlaveID)
	}
	if d.TimeoutMs < 0 {
		return fmt.Errorf("device.timeout_ms must be >= 0")
	}
	if cfg.Poll.IntervalMs < 0 {
		return fmt.Errorf("poll.interval_ms must be >= 0")
	}
	if cfg.Poll.IntervalMs > 0 && cfg.Poll.IntervalMs < 1000 {
		return fmt.Errorf("poll.interval_ms %d below minimum 1000", cfg.Poll.IntervalMs)
	}

	// ------------------------------------------------------------
	// MQTT (OPT-IN)
	// ------------------------------------------------------------

	if cfg.MQTT.Enabled {
		if cfg.MQTT.Broker == "" {
			return fmt.Errorf("mqtt.broker is required when mqtt is enabled")
		}
		u, err := url.Parse(cfg.MQTT.Broker)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("mqtt.broker %q must be a URL like tcp://host:1883", cfg.MQTT.Broker)
		}
		for name, topic := range map[string]string{
			"mqtt.topic_prefix":     cfg.MQTT.TopicPrefix,
			"mqtt.discovery_prefix": cfg.MQTT.DiscoveryPrefix,
			"mqtt.node_id":          cfg.MQTT.NodeID,
		} {
			if strings.ContainsAny(topic, "#+") {
				return fmt.Errorf("%s %q must not contain MQTT wildcards", name, topic)
			}
		}
		if strings.Contains(cfg.MQTT.NodeID, "/") {
			return fmt.Errorf("mqtt.node_id %q must not contain '/'", cfg.MQTT.NodeID)
		}
	}

	// ------------------------------------------------------------
	// HTTP (OPT-IN)
	// ------------------------------------------------------------

	if !cfg.HTTP.Enabled && (cfg.HTTP.Metrics || cfg.HTTP.MCP) {
		return fmt.Errorf("http.metrics and http.mcp require http.enabled")
	}

	// ------------------------------------------------------------
	// LOG
	// ------------------------------------------------------------

	if cfg.Log.Level != "" {
		if _, err := zerolog.ParseLevel(cfg.Log.Level); err != nil {
			return fmt.Errorf("log.level %q: %w", cfg.Log.Level, err)
		}
	}
	switch cfg.Log.Format {
	case "", "console", "json":
	default:
		return fmt.Errorf("log.format %q must be console or json", cfg.Log.Format)
	}

	return nil
}
