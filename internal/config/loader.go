package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	data = substituteEnvVars(data)

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyMeterDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func LoadOrDefault(path string) *Config {
	if path == "" {
		return Default()
	}

	cfg, err := Load(path)
	if err != nil {
		return Default()
	}

	return cfg
}

// applyMeterDefaults fills the fields a meter entry left out. yaml.v3
// decodes list items into zero values, so the PDU defaults do not carry
// over on their own.
func (c *Config) applyMeterDefaults() {
	for i := range c.Power.Meters {
		m := &c.Power.Meters[i]
		if m.Name == "" {
			m.Name = fmt.Sprintf("meter%d", i)
		}
		if m.Type == "" {
			m.Type = "snmp"
		}
		if m.Type != "snmp" {
			continue
		}
		if m.Port == 0 {
			m.Port = 161
		}
		if m.Community == "" {
			m.Community = "public"
		}
		if m.OID == "" {
			m.OID = "1.3.6.1.4.1.23273.4.4.0"
		}
		if m.Version == "" {
			m.Version = "1"
		}
		if m.Scale == 0 {
			m.Scale = 0.1
		}
	}
}
