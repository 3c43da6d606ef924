package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML values like "10s" parse.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return fmt.Errorf("duration must be a string like \"10s\": %w", err)
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("parsing duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config holds all application configuration.
type Config struct {
	Device   DeviceConfig  `yaml:"device"`
	Poll     PollConfig    `yaml:"poll"`
	Timeouts TimeoutConfig `yaml:"timeouts"`
	LogLevel string        `yaml:"log_level"`
}

// DeviceConfig identifies the cooker.
type DeviceConfig struct {
	Address string `yaml:"address"` // MAC address (CoreBluetooth UUID on macOS)
	Name    string `yaml:"name"`
}

// PollConfig holds polling cadence settings.
type PollConfig struct {
	Interval     Duration `yaml:"interval"`
	ReconnectMax Duration `yaml:"reconnect_max"`
}

// TimeoutConfig bounds BLE operations.
type TimeoutConfig struct {
	Connect Duration `yaml:"connect"`
	Command Duration `yaml:"command"`
}

// placeholder addresses people copy out of documentation.
var placeholderAddresses = []string{
	"AA:BB:CC:DD:EE:FF",
	"00:00:00:00:00:00",
}

// DefaultConfigDir returns the default config directory path.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "anovactl")
}

// DefaultConfigPath returns the default config file path.
func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.yaml")
}

// Default returns a Config with sensible default values. The device
// address has no default; Validate rejects the empty value.
func Default() *Config {
	return &Config{
		Device: DeviceConfig{
			Name: "Anova",
		},
		Poll: PollConfig{
			Interval:     Duration(10 * time.Second),
			ReconnectMax: Duration(30 * time.Second),
		},
		Timeouts: TimeoutConfig{
			Connect: Duration(10 * time.Second),
			Command: Duration(5 * time.Second),
		},
		LogLevel: "info",
	}
}

// Load reads and parses a YAML config file. Missing fields are filled
// with defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	return cfg, nil
}

// Validate checks the config for invalid values.
func (c *Config) Validate() error {
	if c.Device.Address == "" {
		return fmt.Errorf("device.address must not be empty")
	}
	if strings.ContainsAny(c.Device.Address, " \t") {
		return fmt.Errorf("device.address must not contain whitespace, got %q", c.Device.Address)
	}

	addr := strings.ToUpper(c.Device.Address)
	for _, placeholder := range placeholderAddresses {
		if strings.Contains(addr, placeholder) {
			slog.Warn("placeholder device address configured, use the cooker's real address",
				"address", c.Device.Address)
		}
	}

	if c.Poll.Interval.Std() <= 0 {
		return fmt.Errorf("poll.interval must be > 0")
	}
	if c.Poll.ReconnectMax.Std() <= 0 {
		return fmt.Errorf("poll.reconnect_max must be > 0")
	}
	if c.Timeouts.Connect.Std() <= 0 {
		return fmt.Errorf("timeouts.connect must be > 0")
	}
	if c.Timeouts.Command.Std() <= 0 {
		return fmt.Errorf("timeouts.command must be > 0")
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be debug, info, warn, or error, got %q", c.LogLevel)
	}

	return nil
}
