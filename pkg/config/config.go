// Package config loads the server's ambient settings: the key/value field
// length limit, the metrics HTTP listen address, and the log level. Shaped
// after the teacher's yaml-backed Config/LoadConfig/DefaultConfig trio.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/leishu-qiu/kvlined/pkg/kvindex"
)

// Config holds the server's ambient settings.
type Config struct {
	FieldLimit  int    `yaml:"field_limit"`
	MetricsAddr string `yaml:"metrics_addr"`
	LogLevel    string `yaml:"log_level"`
}

// Default returns the configuration used when no file is given. MetricsAddr
// is left empty: the metrics/health surface is opt-in, enabled only by
// setting --metrics-addr or metrics_addr explicitly.
func Default() *Config {
	return &Config{
		FieldLimit:  kvindex.DefaultFieldLimit,
		MetricsAddr: "",
		LogLevel:    "info",
	}
}

// Load reads and parses a YAML config file at path, filling in Default()
// for any field the file omits.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file does not exist: %s", path)
	}

	if !filepath.IsAbs(path) {
		abs, err := filepath.Abs(path)
		if err != nil {
			return nil, fmt.Errorf("invalid config path: %w", err)
		}
		path = abs
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return cfg, nil
}

// Save writes cfg to path as YAML.
func Save(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
