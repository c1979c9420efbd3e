// Package config holds runtime settings for the fortress CLI.
package config

import (
	"os"
	"path/filepath"
	"time"
)

// Config holds runtime settings for the fortress CLI.
//
// Fields:
//   - DatabasePath: location of the encrypted container file.
//   - RequestTimeout: per-request timeout for sync calls.
type Config struct {
	DatabasePath   string
	RequestTimeout time.Duration
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	c.DatabasePath = filepath.Join(home, ".fortress", "db.fortress")
	c.RequestTimeout = 30 * time.Second
}

// LoadConfig constructs a Config, applies defaults, then overlays values
// from JSON (if present) and command-line flags (if present). Later sources
// take precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
