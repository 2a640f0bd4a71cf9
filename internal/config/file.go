package config

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// fileConfig is the YAML configuration shape. All fields are optional;
// unset fields leave the corresponding Config value untouched.
type fileConfig struct {
	WatchDir     string `yaml:"watchDir,omitempty"`
	HandBrake    string `yaml:"handbrake,omitempty"`
	FFprobe      string `yaml:"ffprobe,omitempty"`
	StateDir     string `yaml:"stateDir,omitempty"`
	LogDir       string `yaml:"logDir,omitempty"`
	PollInterval string `yaml:"pollInterval,omitempty"`
	LogLevel     string `yaml:"logLevel,omitempty"`
	MetricsAddr  string `yaml:"metricsAddr,omitempty"`
}

// LoadFile merges settings from a YAML file into cfg. Strict decoding, so a
// typoed key is an error rather than silently ignored.
func LoadFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	var fc fileConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&fc); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	if fc.WatchDir != "" {
		cfg.WatchDir = fc.WatchDir
	}
	if fc.HandBrake != "" {
		cfg.HandBrakePath = fc.HandBrake
	}
	if fc.FFprobe != "" {
		cfg.FFprobePath = fc.FFprobe
	}
	if fc.StateDir != "" {
		cfg.StateDir = fc.StateDir
	}
	if fc.LogDir != "" {
		cfg.LogDir = fc.LogDir
	}
	if fc.PollInterval != "" {
		d, err := time.ParseDuration(fc.PollInterval)
		if err != nil {
			return fmt.Errorf("parse pollInterval: %w", err)
		}
		cfg.PollInterval = d
	}
	if fc.LogLevel != "" {
		cfg.LogLevel = fc.LogLevel
	}
	if fc.MetricsAddr != "" {
		cfg.MetricsAddr = fc.MetricsAddr
	}
	return nil
}
