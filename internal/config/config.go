// Package config loads the server configuration from config.yaml in the
// data directory, creating it with defaults on first run.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Environment names double as storage containers: each one is an isolated
// data root (the original deployment kept separate prod and test
// containers).
const (
	EnvProd = "prod"
	EnvTest = "test"
)

// Storage selects the blob store backend.
type Storage struct {
	// Backend is "file" (one file per table under the data root) or "bolt"
	// (a single bbolt database file).
	Backend string `yaml:"backend"`
}

// RateLimit tunes the HTTP rate limiting.
type RateLimit struct {
	Disabled bool `yaml:"disabled"`
}

// Config is the content of config.yaml.
type Config struct {
	Env       string    `yaml:"env"`
	Storage   Storage   `yaml:"storage"`
	RateLimit RateLimit `yaml:"rate_limit"`
}

// Default returns the configuration written on first run.
func Default() *Config {
	return &Config{
		Env:     EnvTest,
		Storage: Storage{Backend: "file"},
	}
}

// Validate checks the configuration for unusable values.
func (c *Config) Validate() error {
	if c.Env != EnvProd && c.Env != EnvTest {
		return fmt.Errorf("invalid env: %q (want %q or %q)", c.Env, EnvProd, EnvTest)
	}
	if c.Storage.Backend != "file" && c.Storage.Backend != "bolt" {
		return fmt.Errorf("invalid storage backend: %q (want \"file\" or \"bolt\")", c.Storage.Backend)
	}
	return nil
}

// Load reads config.yaml from dataDir. A missing file is created with
// defaults so the deployment starts from a visible, editable configuration.
func Load(dataDir string) (*Config, error) {
	path := filepath.Join(dataDir, "config.yaml")
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		cfg := Default()
		out, err := yaml.Marshal(cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal default config: %w", err)
		}
		if err := os.WriteFile(path, out, 0o644); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", path, err)
		}
		return cfg, nil
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}
