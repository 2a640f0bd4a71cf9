// Package config holds runtime configuration: defaults, optional YAML file,
// CLI flag parsing, and validation. Flags win over the file, the file wins
// over defaults.
package config

import (
	"errors"
	"fmt"
	"time"
)

// Config holds all runtime settings. It is populated by [Default], then
// optionally merged from a YAML file, then mutated by [ParseFlags] before
// being passed (by pointer) to the packages that need it.
type Config struct {
	// WatchDir is the root whose immediate subfolders are scanned for
	// eligible video files. Required; set from the positional argument.
	WatchDir string

	// External programs.
	HandBrakePath string // Default: "HandBrakeCLI" (resolved from PATH).
	FFprobePath   string // Default: "ffprobe" (resolved from PATH).

	// Output locations.
	StateDir string // Monitor state files. Default: "state".
	LogDir   string // Per-run event logs. Default: "logs".

	// Loop behavior.
	PollInterval time.Duration // Delay between scan passes. Default: 30s.

	// Observability.
	LogLevel    string // zerolog level name. Default: "info".
	MetricsAddr string // Prometheus listen address; empty disables.

	// Utility modes.
	CheckOnly  bool   // Run startup checks and exit.
	ConfigFile string // Optional YAML config path.
}

// Default returns the baseline configuration.
func Default() Config {
	return Config{
		HandBrakePath: "HandBrakeCLI",
		FFprobePath:   "ffprobe",
		StateDir:      "state",
		LogDir:        "logs",
		PollInterval:  30 * time.Second,
		LogLevel:      "info",
	}
}

// Validate checks invariants that hold regardless of where values came from.
func (c *Config) Validate() error {
	if c.WatchDir == "" {
		return errors.New("watch directory is required")
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive, got %s", c.PollInterval)
	}
	if c.HandBrakePath == "" {
		return errors.New("encoder path must not be empty")
	}
	if c.FFprobePath == "" {
		return errors.New("ffprobe path must not be empty")
	}
	return nil
}
