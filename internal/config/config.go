// Package config loads and saves mlcore's on-disk settings: a YAML file
// under the user's config directory with defaults filled in before
// unmarshal, tolerant of a missing file. It is the Go translation of
// internal/storage/config/config.go's Load/Save pattern.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const fileName = "config.yaml"

// Config holds every setting spec.md's configuration table names. Durations
// are parsed from their *Str YAML fields the way the teacher converts
// LinkMethodStr into a LinkMethod, so the YAML file stays human-writable
// ("15s", "1h") while the rest of the program works with time.Duration.
type Config struct {
	InstallDir  string `yaml:"install_dir"`
	APIToken    string `yaml:"api_token"`
	ServiceRoot string `yaml:"service_root"`

	LocalScanIntervalStr string        `yaml:"local_scan_interval"`
	LocalScanInterval    time.Duration `yaml:"-"`

	APIPollIntervalStr string        `yaml:"api_poll_interval"`
	APIPollInterval    time.Duration `yaml:"-"`

	APIStepMaxDelayStr string        `yaml:"api_step_max_delay"`
	APIStepMaxDelay    time.Duration `yaml:"-"`

	PingMinIntervalStr string        `yaml:"ping_min_interval"`
	PingMinInterval    time.Duration `yaml:"-"`

	PingMaxIntervalStr string        `yaml:"ping_max_interval"`
	PingMaxInterval    time.Duration `yaml:"-"`

	PongTimeoutStr string        `yaml:"pong_timeout"`
	PongTimeout    time.Duration `yaml:"-"`

	ReceivingIntervalStr string        `yaml:"receiving_interval"`
	ReceivingInterval    time.Duration `yaml:"-"`

	ShutdownTimeoutStr string        `yaml:"shutdown_timeout"`
	ShutdownTimeout    time.Duration `yaml:"-"`
}

// defaults mirrors spec.md §6's configuration table.
func defaults() *Config {
	return &Config{
		ServiceRoot:          "https://spelunky.fyi",
		LocalScanIntervalStr: "15s",
		APIPollIntervalStr:   "1h",
		APIStepMaxDelayStr:   "10s",
		PingMinIntervalStr:   "15s",
		PingMaxIntervalStr:   "25s",
		PongTimeoutStr:       "10s",
		ReceivingIntervalStr: "20ms",
		ShutdownTimeoutStr:   "1s",
	}
}

// durationFields lists each *Str field alongside the parsed Duration field
// it feeds, so parseDurations can walk them instead of spelling out an
// eight-way switch.
type durationField struct {
	str    *string
	parsed *time.Duration
	name   string
}

func (c *Config) durationFields() []durationField {
	return []durationField{
		{&c.LocalScanIntervalStr, &c.LocalScanInterval, "local_scan_interval"},
		{&c.APIPollIntervalStr, &c.APIPollInterval, "api_poll_interval"},
		{&c.APIStepMaxDelayStr, &c.APIStepMaxDelay, "api_step_max_delay"},
		{&c.PingMinIntervalStr, &c.PingMinInterval, "ping_min_interval"},
		{&c.PingMaxIntervalStr, &c.PingMaxInterval, "ping_max_interval"},
		{&c.PongTimeoutStr, &c.PongTimeout, "pong_timeout"},
		{&c.ReceivingIntervalStr, &c.ReceivingInterval, "receiving_interval"},
		{&c.ShutdownTimeoutStr, &c.ShutdownTimeout, "shutdown_timeout"},
	}
}

func (c *Config) parseDurations() error {
	for _, f := range c.durationFields() {
		if *f.str == "" {
			continue
		}
		d, err := time.ParseDuration(*f.str)
		if err != nil {
			return fmt.Errorf("parsing %s %q: %w", f.name, *f.str, err)
		}
		*f.parsed = d
	}
	return nil
}

// Load reads configuration from the given directory, returning defaults
// (with InstallDir/APIToken left empty) if no config file exists yet.
func Load(configDir string) (*Config, error) {
	cfg := defaults()

	configPath := filepath.Join(configDir, fileName)
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			if perr := cfg.parseDurations(); perr != nil {
				return nil, perr
			}
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.parseDurations(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes configuration to the given directory, creating it if needed.
func (c *Config) Save(configDir string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}

	configPath := filepath.Join(configDir, fileName)
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}
