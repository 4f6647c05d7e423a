// Package config loads the strata.json project configuration used by the
// strata CLI.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

const (
	// ConfigFileName is the name of the configuration file.
	ConfigFileName = "strata.json"

	// DefaultAddr is the default inspector listen address.
	DefaultAddr = "localhost:4600"

	// DefaultStoreName is the name given to the store seeded at startup.
	DefaultStoreName = "app"
)

// Config represents the complete strata.json configuration.
type Config struct {
	// Name is the name of the store the inspector seeds at startup.
	Name string `json:"name,omitempty"`

	// Addr is the inspector listen address.
	Addr string `json:"addr,omitempty"`

	// Seed is a path to a JSON file holding the store's initial state.
	Seed string `json:"seed,omitempty"`

	// Metrics enables the Prometheus instrument and /metrics endpoint.
	Metrics bool `json:"metrics,omitempty"`
}

// Default returns the configuration used when no strata.json exists.
func Default() *Config {
	return &Config{
		Name:    DefaultStoreName,
		Addr:    DefaultAddr,
		Metrics: true,
	}
}

// Load reads strata.json from dir, falling back to defaults when the file
// does not exist. Fields absent from the file keep their default values.
func Load(dir string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(filepath.Join(dir, ConfigFileName))
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", ConfigFileName, err)
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", ConfigFileName, err)
	}
	if cfg.Name == "" {
		cfg.Name = DefaultStoreName
	}
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	return cfg, nil
}

// Save writes the configuration to strata.json in dir.
func (c *Config) Save(dir string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, ConfigFileName), append(data, '\n'), 0o644)
}
