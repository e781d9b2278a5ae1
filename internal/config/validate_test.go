package config

import (
	"strings"
	"testing"
	"time"
)

// validConfig returns a defaulted config that passes validation.
func validConfig() *Config {
	cfg := &Config{Version: "1"}
	cfg.Defaults()
	return cfg
}

func TestValidate_Valid(t *testing.T) {
	t.Parallel()

	if err := Validate(validConfig()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(c *Config)
		want   string
	}{
		{"missing version", func(c *Config) { c.Version = "" }, "version field is required"},
		{"unsupported version", func(c *Config) { c.Version = "99" }, "unsupported"},
		{"bad log level", func(c *Config) { c.Log.Level = "verbose" }, "log.level"},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
		{"zero tick", func(c *Config) { c.Scheduler.TickInterval = -time.Second }, "tick_interval must be positive"},
		{"bad timezone", func(c *Config) { c.Scheduler.Timezone = "Mars/Olympus" }, "scheduler.timezone"},
		{"negative history", func(c *Config) { c.Scheduler.History.MaxRuns = -1 }, "scheduler.history"},
		{"zero staleness", func(c *Config) { c.Watchdog.Staleness = -time.Minute }, "watchdog.staleness"},
		{"negative retry interval", func(c *Config) { c.Watchdog.RetryInterval = -time.Second }, "watchdog.retry_interval"},
		{"unknown watchdog job", func(c *Config) { c.Watchdog.Job = "ping" }, "watchdog.job"},
		{"unknown job", func(c *Config) { c.Jobs = map[string]JobConfig{"reindex": {}} }, `unknown job "reindex"`},
		{
			"bad schedule",
			func(c *Config) { c.Jobs = map[string]JobConfig{"cost_monitoring": {Schedule: "every tuesday"}} },
			"jobs.cost_monitoring.schedule",
		},
		{
			"tick coarser than interval",
			func(c *Config) { c.Scheduler.TickInterval = 10 * time.Minute },
			"must be shorter than job health_check",
		},
		{
			"tick coarser than calendar minute",
			func(c *Config) { c.Scheduler.TickInterval = 90 * time.Second },
			"must be shorter than 1m for calendar job database_cleanup",
		},
		{
			"negative budget",
			func(c *Config) { c.Jobs = map[string]JobConfig{"cost_monitoring": {Budget: -5}} },
			"thresholds must not be negative",
		},
		{"backend url scheme", func(c *Config) { c.Backend.URL = "ftp://x" }, "backend.url"},
		{"webhook url host", func(c *Config) { c.Alerts.Webhook.URL = "https://" }, "alerts.webhook.url"},
		{"telegram without chat", func(c *Config) { c.Alerts.Telegram.Token = "123:abc" }, "chat_id is required"},
		{"negative archive retention", func(c *Config) { c.Archive.SQLite.Retention = -time.Hour }, "archive.sqlite.retention"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := validConfig()
			tt.mutate(cfg)
			err := Validate(cfg)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error should mention %q: %v", tt.want, err)
			}
		})
	}
}

func TestValidate_ReportsEveryProblem(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	cfg.Version = ""
	cfg.Jobs = map[string]JobConfig{"bad.one": {}, "bad.two": {}}

	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected error")
	}
	for _, want := range []string{"version", "bad.one", "bad.two"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error should mention %s: %v", want, err)
		}
	}
}

func TestTaskOptions(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	cfg.Scheduler.Timezone = "Europe/Paris"
	cfg.Jobs = map[string]JobConfig{
		"database_cleanup":      {Retention: 240 * time.Hour},
		"performance_analytics": {Schedule: "30 1 * * *", P95Threshold: 2 * time.Second, ErrorRateThreshold: 2.5},
		"cost_monitoring":       {Budget: 50},
	}

	opts, err := cfg.TaskOptions()
	if err != nil {
		t.Fatal(err)
	}
	if opts.Location.String() != "Europe/Paris" {
		t.Errorf("Location = %s", opts.Location)
	}
	if got := opts.Schedule("performance_analytics"); got != "30 1 * * *" {
		t.Errorf("performance schedule = %q", got)
	}
	if got := opts.Schedule("health_check"); got != "@every 5m" {
		t.Errorf("health schedule = %q, want default", got)
	}
	if opts.Retention != 240*time.Hour || opts.P95Threshold != 2*time.Second || opts.ErrorRateThreshold != 2.5 || opts.Budget != 50 {
		t.Errorf("opts = %+v", opts)
	}
}
