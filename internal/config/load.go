package config

import (
	"fmt"
	"net"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Load reads and parses a YAML configuration file.
// Missing sections stay zero; Normalize fills defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// ApplyEnvOverrides updates cfg in place with values from environment variables.
// Recognized variables:
//   - EVER_UPS_ENDPOINT (host or host:port) overrides device.host / device.port
//   - EVER_UPS_MQTT_BROKER overrides mqtt.broker and enables MQTT
//   - EVER_UPS_MQTT_USERNAME and EVER_UPS_MQTT_PASSWORD override the credentials
//   - EVER_UPS_HTTP_TOKEN overrides http.token
func ApplyEnvOverrides(cfg *Config) error {
	if ep := os.Getenv("EVER_UPS_ENDPOINT"); ep != "" {
		host, port, err := net.SplitHostPort(ep)
		if err != nil {
			// bare host
			cfg.Device.Host = ep
		} else {
			n, err := strconv.Atoi(port)
			if err != nil {
				return fmt.Errorf("EVER_UPS_ENDPOINT: invalid port %q", port)
			}
			cfg.Device.Host = host
			cfg.Device.Port = n
		}
	}
	if broker := os.Getenv("EVER_UPS_MQTT_BROKER"); broker != "" {
		cfg.MQTT.Broker = broker
		cfg.MQTT.Enabled = true
	}
	if user := os.Getenv("EVER_UPS_MQTT_USERNAME"); user != "" {
		cfg.MQTT.Username = user
	}
	if pass := os.Getenv("EVER_UPS_MQTT_PASSWORD"); pass != "" {
		cfg.MQTT.Password = pass
	}
	if token := os.Getenv("EVER_UPS_HTTP_TOKEN"); token != "" {
		cfg.HTTP.Token = token
	}
	return nil
}
