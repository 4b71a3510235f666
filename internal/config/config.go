package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	appLog "meetprep/internal/log"
)

const (
	defaultListen           = "127.0.0.1:8080"
	defaultTimezone         = "Local"
	defaultConnectLatencyMs = 1500
	defaultClock            = "@every 1m"
	defaultLogLevel         = "info"
)

// BasicAuthConfig holds HTTP Basic Auth credentials for the API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the API.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA timezone meetings are displayed in.
	// "Local" (the default) uses the host zone.
	Timezone string `yaml:"timezone" json:"timezone"`

	// ConnectLatencyMs is the simulated calendar handshake delay.
	ConnectLatencyMs int `yaml:"connect_latency_ms" json:"connect_latency_ms"`

	// SimulateConnectFailure makes every handshake fail. Useful to exercise
	// the error path of a front-end.
	SimulateConnectFailure bool `yaml:"simulate_connect_failure" json:"simulate_connect_failure"`

	// Fixture is an optional path to a calendar payload on disk. Empty means
	// the embedded fixture.
	Fixture string `yaml:"fixture" json:"fixture"`

	// RefreshCron is a cron schedule (e.g. "*/15 * * * *") for automatic
	// refresh while connected. Empty disables it.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// ClockCron drives the current-time tick used for "time remaining".
	ClockCron string `yaml:"clock" json:"clock"`

	LogLevel string `yaml:"log_level" json:"log_level"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all endpoints
	// except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:           defaultListen,
		Timezone:         defaultTimezone,
		ConnectLatencyMs: defaultConnectLatencyMs,
		ClockCron:        defaultClock,
		LogLevel:         defaultLogLevel,
	}
}

// DefaultPath returns <user config dir>/meetprep/config.yaml, or a relative
// path when the user config dir cannot be determined.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return filepath.Join(".", "meetprep.yaml")
	}
	return filepath.Join(dir, "meetprep", "config.yaml")
}

// Normalize fills in missing/zero values with defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	if c.Timezone == "" {
		c.Timezone = defaultTimezone
	}
	if c.ConnectLatencyMs < 0 {
		c.ConnectLatencyMs = 0
	}
	if c.ClockCron == "" {
		c.ClockCron = defaultClock
	}
	if c.LogLevel == "" {
		c.LogLevel = defaultLogLevel
	}
}

// Location resolves Timezone. Empty, "Local" or unknown names fall back to
// time.Local.
func (c *Config) Location() *time.Location {
	name := strings.TrimSpace(c.Timezone)
	if name == "" || strings.EqualFold(name, "local") {
		return time.Local
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		appLog.Error("failed to load timezone; falling back to local", err, "name", name)
		return time.Local
	}
	return loc
}

// ConnectLatency returns the simulated handshake delay.
func (c *Config) ConnectLatency() time.Duration {
	return time.Duration(c.ConnectLatencyMs) * time.Millisecond
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist, a default config is written with 0600
//     perms and returned.
//   - If the file exists, it is unmarshalled and normalized.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()

	return cfg, nil
}

// Save writes the given configuration to the specified path.
//
// The parent directory is created with 0700, the YAML is written to a temp
// file in the same directory and renamed over the target with 0600 perms.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".meetprep-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}

	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}

	return os.Rename(tmpName, path)
}
