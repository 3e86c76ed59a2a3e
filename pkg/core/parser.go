package core

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// configFile is the platform config.json envelope.
type configFile struct {
	Parameters yaml.Node `yaml:"parameters"`
}

// LoadConfigFromFile reads a config.json (with a "parameters" object) or a
// bare configuration in YAML or JSON and validates it.
func LoadConfigFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file %q: %w", path, err)
	}
	cfg, err := ParseConfig(data)
	if err != nil {
		return nil, fmt.Errorf("parsing config file %q: %w", path, err)
	}
	if err := ValidateConfig(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// ParseConfig decodes data on top of DefaultConfig.
func ParseConfig(data []byte) (*Config, error) {
	cfg := DefaultConfig()

	var envelope configFile
	if err := yaml.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if envelope.Parameters.Kind != 0 {
		if err := envelope.Parameters.Decode(&cfg); err != nil {
			return nil, fmt.Errorf("parsing config parameters: %w", err)
		}
		return &cfg, nil
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return &cfg, nil
}
