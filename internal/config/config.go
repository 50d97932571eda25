// Package config loads the stockgate service configuration from YAML.
package config

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the service configuration.
//
// Minimal example:
//
//	db: /var/lib/stockgate/stockgate.db
//	policies: /etc/stockgate/limits.cue
type Config struct {
	// DB is the path of the SQLite database file.
	DB string `yaml:"db"`

	// Policies is the path of the CUE rate-limit policy file. Empty means
	// rate limiting parameters come from the caller per check.
	Policies string `yaml:"policies,omitempty"`

	// DefaultClass names the policy applied when a caller does not name
	// one. Only meaningful when Policies is set.
	DefaultClass string `yaml:"default_class,omitempty"`

	// Redis switches the rate limiter to a redis backend when set
	// (host:port). The ledgers always live in the SQLite database.
	Redis string `yaml:"redis,omitempty"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		DB: "stockgate.db",
	}
}

// Load reads and validates a YAML config file.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}

	cfg := Default()
	// KnownFields makes typos in the file fail loudly instead of being
	// silently dropped.
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("load config: parse %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("load config: %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks cross-field consistency.
func (c Config) Validate() error {
	if c.DB == "" {
		return fmt.Errorf("db path must not be empty")
	}
	if c.DefaultClass != "" && c.Policies == "" {
		return fmt.Errorf("default_class %q set without a policies file", c.DefaultClass)
	}
	return nil
}
