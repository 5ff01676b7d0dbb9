// Package config loads this module's YAML configuration file, then layers
// .env and environment-variable overrides on top, the same way the example
// this module is patterned on handles ECU/GPS dashboard configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all process configuration for the bhtlink binary.
type Config struct {
	Link     LinkConfig     `yaml:"link" json:"link"`
	Facade   FacadeConfig   `yaml:"facade" json:"facade"`
	Recorder RecorderConfig `yaml:"recorder" json:"recorder"`
	Logging  LoggingConfig  `yaml:"logging" json:"logging"`

	path string
}

// LinkConfig mirrors the façade-level enumerated configuration in the
// external interfaces section: address/port/lifesign/reconnect.
type LinkConfig struct {
	Address          string `yaml:"address" json:"address"`
	Port             int    `yaml:"port" json:"port"`
	LifesignInterval int    `yaml:"lifesign_interval_s" json:"lifesignIntervalS"`
	Reconnect        bool   `yaml:"reconnect" json:"reconnect"`
	Device           string `yaml:"device" json:"device"` // bound RFCOMM tty, e.g. /dev/rfcomm0
}

// FacadeConfig configures the RPC façade's call timeout.
type FacadeConfig struct {
	TimeoutSeconds int `yaml:"timeout_s" json:"timeoutS"`
}

// RecorderConfig configures the CSV telemetry recorder.
type RecorderConfig struct {
	Enabled    bool   `yaml:"enabled" json:"enabled"`
	Path       string `yaml:"path" json:"path"`
	MaxRows    int    `yaml:"max_rows_per_file" json:"maxRowsPerFile"`
	IntervalMs int    `yaml:"interval_ms" json:"intervalMs"`
}

// LoggingConfig configures the structured logger.
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
}

// DefaultConfig returns a Config populated with sane defaults for every
// section.
func DefaultConfig() *Config {
	return &Config{
		Link: LinkConfig{
			Address:          "",
			Port:             1,
			LifesignInterval: 2,
			Reconnect:        true,
			Device:           "/dev/rfcomm0",
		},
		Facade: FacadeConfig{
			TimeoutSeconds: 20,
		},
		Recorder: RecorderConfig{
			Enabled:    false,
			Path:       "/var/log/bhtlink",
			MaxRows:    100000,
			IntervalMs: 1000,
		},
		Logging: LoggingConfig{
			Level: "",
		},
	}
}

// LoadConfig reads config from a YAML file, then applies .env and
// environment variable overrides. Falls back to defaults if the file is
// absent or fails to parse.
func LoadConfig(path string) *Config {
	cfg := DefaultConfig()
	cfg.path = path

	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[config] no config at %s, using defaults\n", path)
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		fmt.Fprintf(os.Stderr, "[config] error parsing %s: %v, using defaults\n", path, err)
		cfg = DefaultConfig()
		cfg.path = path
	} else {
		fmt.Fprintf(os.Stderr, "[config] loaded from %s\n", path)
	}

	for _, ep := range []string{filepath.Join(filepath.Dir(path), ".env"), ".env"} {
		loadEnvFile(ep)
	}
	cfg.applyEnvOverrides()
	return cfg
}

func loadEnvFile(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		val := strings.Trim(strings.TrimSpace(parts[1]), `"'`)
		if os.Getenv(key) == "" {
			os.Setenv(key, val)
		}
	}
}

// applyEnvOverrides reads environment variables and overrides config
// values. Supported: BHT_ADDRESS, BHT_PORT, BHT_DEVICE, BHT_LIFESIGN_S,
// BHT_RECONNECT, BHT_TIMEOUT_S, BHT_LOG_LEVEL, BHT_RECORD_PATH.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("BHT_ADDRESS"); v != "" {
		c.Link.Address = v
	}
	if v := os.Getenv("BHT_DEVICE"); v != "" {
		c.Link.Device = v
	}
	if v := os.Getenv("BHT_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Link.Port = n
		}
	}
	if v := os.Getenv("BHT_LIFESIGN_S"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Link.LifesignInterval = n
		}
	}
	if v := os.Getenv("BHT_RECONNECT"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Link.Reconnect = b
		}
	}
	if v := os.Getenv("BHT_TIMEOUT_S"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Facade.TimeoutSeconds = n
		}
	}
	if v := os.Getenv("BHT_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("BHT_RECORD_PATH"); v != "" {
		c.Recorder.Path = v
		c.Recorder.Enabled = true
	}
}

// Save writes the config back to its originating path as YAML.
func (c *Config) Save() error {
	if c.path == "" {
		return fmt.Errorf("config: no path associated with this config")
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("config: marshal failed: %w", err)
	}
	if err := os.WriteFile(c.path, data, 0o644); err != nil {
		return fmt.Errorf("config: write failed: %w", err)
	}
	return nil
}

// LifesignDuration returns the configured lifesign interval as a
// time.Duration for consumption by link.Config.
func (l LinkConfig) LifesignDuration() time.Duration {
	return time.Duration(l.LifesignInterval) * time.Second
}

// TimeoutDuration returns the configured façade timeout as a
// time.Duration.
func (f FacadeConfig) TimeoutDuration() time.Duration {
	return time.Duration(f.TimeoutSeconds) * time.Second
}
