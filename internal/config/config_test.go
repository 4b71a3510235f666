package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Listen != defaultListen {
		t.Errorf("Listen = %q, want %q", cfg.Listen, defaultListen)
	}
	if cfg.ConnectLatencyMs != defaultConnectLatencyMs {
		t.Errorf("ConnectLatencyMs = %d, want %d", cfg.ConnectLatencyMs, defaultConnectLatencyMs)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("default config not written: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("config perms = %o, want 600", perm)
	}
}

func TestLoadConfig(t *testing.T) {
	tempDir := t.TempDir()
	configContent := `
listen: "0.0.0.0:9000"
timezone: "Europe/Oslo"
connect_latency_ms: 0
refresh: "*/5 * * * *"
basic_auth:
  username: alice
  password: secret
`
	configPath := filepath.Join(tempDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(configContent), 0o600); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Listen != "0.0.0.0:9000" {
		t.Errorf("Expected Listen to be '0.0.0.0:9000', got '%s'", cfg.Listen)
	}
	if cfg.Timezone != "Europe/Oslo" {
		t.Errorf("Expected Timezone to be 'Europe/Oslo', got '%s'", cfg.Timezone)
	}
	if cfg.ConnectLatencyMs != 0 {
		t.Errorf("Expected ConnectLatencyMs 0, got %d", cfg.ConnectLatencyMs)
	}
	if cfg.RefreshCron != "*/5 * * * *" {
		t.Errorf("unexpected RefreshCron %q", cfg.RefreshCron)
	}
	if cfg.ClockCron != defaultClock {
		t.Errorf("ClockCron should default to %q, got %q", defaultClock, cfg.ClockCron)
	}
	if cfg.BasicAuth == nil || cfg.BasicAuth.Username != "alice" {
		t.Errorf("BasicAuth not loaded: %+v", cfg.BasicAuth)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg := DefaultConfig()
	cfg.Fixture = "/tmp/events.json"
	cfg.SimulateConnectFailure = true

	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got.Fixture != cfg.Fixture || !got.SimulateConnectFailure {
		t.Errorf("round trip mismatch: %+v", got)
	}
}

func TestNormalize(t *testing.T) {
	cfg := &Config{ConnectLatencyMs: -5}
	cfg.Normalize()
	if cfg.ConnectLatencyMs != 0 {
		t.Errorf("negative latency should clamp to 0, got %d", cfg.ConnectLatencyMs)
	}
	if cfg.Timezone != defaultTimezone || cfg.LogLevel != defaultLogLevel {
		t.Errorf("defaults not applied: %+v", cfg)
	}
}

func TestSaveRejectsEmpty(t *testing.T) {
	if err := Save("", DefaultConfig()); err == nil {
		t.Error("expected error for empty path")
	}
	if err := Save(filepath.Join(t.TempDir(), "c.yaml"), nil); err == nil {
		t.Error("expected error for nil config")
	}
}

func TestLocation(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Location() != time.Local {
		t.Errorf("Local timezone should resolve to time.Local")
	}
	cfg.Timezone = "UTC"
	if cfg.Location().String() != "UTC" {
		t.Errorf("got %s, want UTC", cfg.Location())
	}
	cfg.Timezone = "Not/AZone"
	if cfg.Location() != time.Local {
		t.Errorf("unknown timezone should fall back to time.Local")
	}
	cfg.ConnectLatencyMs = 250
	if cfg.ConnectLatency() != 250*time.Millisecond {
		t.Errorf("ConnectLatency = %s", cfg.ConnectLatency())
	}
}
