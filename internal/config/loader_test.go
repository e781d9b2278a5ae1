package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const sampleConfig = `version: "1"
log:
  level: debug
scheduler:
  tick_interval: 500ms
  timezone: UTC
backend:
  url: ${TM_TEST_BACKEND}
  service_key: ${TM_TEST_KEY:-anon}
jobs:
  health_check:
    schedule: "@every 1m"
  cost_monitoring:
    budget: 35.5
alerts:
  log: false
  telegram:
    token: ${TM_TEST_TOKEN:-}
gateway:
  bind: 127.0.0.1:9000
archive:
  sqlite:
    enabled: true
    path: /tmp/tm.db
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "taskmaster.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	t.Setenv("TM_TEST_BACKEND", "https://backend.example.com")
	t.Setenv("PORT", "")

	cfg, err := Load(writeConfig(t, sampleConfig))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := Validate(cfg); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	if cfg.Backend.URL != "https://backend.example.com" || cfg.Backend.ServiceKey != "anon" {
		t.Errorf("backend = %+v", cfg.Backend)
	}
	if cfg.Backend.Timeout != 10*time.Second {
		t.Errorf("backend timeout default = %s", cfg.Backend.Timeout)
	}
	if cfg.Scheduler.TickInterval != 500*time.Millisecond {
		t.Errorf("tick = %s", cfg.Scheduler.TickInterval)
	}
	if cfg.Jobs["cost_monitoring"].Budget != 35.5 {
		t.Errorf("budget = %v", cfg.Jobs["cost_monitoring"].Budget)
	}
	if cfg.Alerts.LogEnabled() {
		t.Error("log sink should be disabled")
	}
	if cfg.Alerts.Telegram.Token != "" {
		t.Errorf("telegram token = %q, want empty default", cfg.Alerts.Telegram.Token)
	}
	if cfg.Gateway.Bind != "127.0.0.1:9000" || cfg.Gateway.RunBurst != 5 {
		t.Errorf("gateway = %+v", cfg.Gateway)
	}
	if cfg.Watchdog.Job != "health_check" || cfg.Watchdog.Staleness != 10*time.Minute || cfg.Watchdog.RetryInterval != time.Minute {
		t.Errorf("watchdog = %+v", cfg.Watchdog)
	}
	if cfg.Scheduler.History.MaxRuns != 50 {
		t.Errorf("history = %+v", cfg.Scheduler.History)
	}
}

func TestLoad_PortOverride(t *testing.T) {
	t.Setenv("TM_TEST_BACKEND", "https://backend.example.com")
	t.Setenv("PORT", "8080")

	cfg, err := Load(writeConfig(t, sampleConfig))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Gateway.Bind != "127.0.0.1:8080" {
		t.Errorf("bind = %q, want 127.0.0.1:8080", cfg.Gateway.Bind)
	}
}

func TestLoad_UnresolvedVariable(t *testing.T) {
	// TM_TEST_BACKEND deliberately unset.
	_, err := Load(writeConfig(t, sampleConfig))
	if err == nil {
		t.Fatal("expected error for unresolved variable")
	}
	if !strings.Contains(err.Error(), "TM_TEST_BACKEND") {
		t.Errorf("error should name the variable: %v", err)
	}
}

func TestLoad_Errors(t *testing.T) {
	t.Parallel()

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
	if _, err := Load(writeConfig(t, "version: [1")); err == nil {
		t.Error("expected error for malformed YAML")
	}
}

func TestLoad_DefaultsOnly(t *testing.T) {
	t.Setenv("PORT", "")

	cfg, err := Parse([]byte(`version: "1"`))
	if err != nil {
		t.Fatal(err)
	}
	if err := Validate(cfg); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
	if !cfg.Alerts.LogEnabled() || cfg.Archive.SQLite.Enabled {
		t.Errorf("alerts.log = %v, archive = %v", cfg.Alerts.LogEnabled(), cfg.Archive.SQLite.Enabled)
	}
	if cfg.Gateway.Bind != "0.0.0.0:8000" {
		t.Errorf("bind = %q", cfg.Gateway.Bind)
	}
}

func TestExpandEnv(t *testing.T) {
	t.Setenv("TM_SET", "value")

	tests := []struct {
		in, want string
	}{
		{"a: ${TM_SET}", "a: value"},
		{"a: ${TM_SET:-other}", "a: value"},
		{"a: ${TM_UNSET_X:-fallback}", "a: fallback"},
		{"a: ${TM_UNSET_X:-}", "a: "},
		{"a: plain $TM_SET", "a: plain $TM_SET"},
	}
	for _, tt := range tests {
		got, err := expandEnv([]byte(tt.in))
		if err != nil {
			t.Errorf("expandEnv(%q): %v", tt.in, err)
			continue
		}
		if string(got) != tt.want {
			t.Errorf("expandEnv(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFind(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	t.Chdir(t.TempDir())

	if got, err := Find("/explicit.yaml"); err != nil || got != "/explicit.yaml" {
		t.Errorf("Find(explicit) = %q, %v", got, err)
	}

	if _, err := Find(""); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}

	if err := os.WriteFile("taskmaster.yaml", []byte(`version: "1"`), 0o600); err != nil {
		t.Fatal(err)
	}
	if got, _ := Find(""); got != "taskmaster.yaml" {
		t.Errorf("Find = %q, want ./taskmaster.yaml", got)
	}

	xdgPath := filepath.Join(dir, "taskmaster", "taskmaster.yaml")
	if err := os.MkdirAll(filepath.Dir(xdgPath), 0o700); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(xdgPath, []byte(`version: "1"`), 0o600); err != nil {
		t.Fatal(err)
	}
	if got, _ := Find(""); got != xdgPath {
		t.Errorf("Find = %q, want XDG path first", got)
	}
}
