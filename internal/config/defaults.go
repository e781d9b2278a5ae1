package config

import (
	"os"
	"path/filepath"
	"time"
)

// Defaults fills zero values with sensible defaults. It is idempotent.
func (c *Config) Defaults() {
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}

	if c.Scheduler.TickInterval == 0 {
		c.Scheduler.TickInterval = time.Second
	}
	if c.Scheduler.Timezone == "" {
		c.Scheduler.Timezone = "UTC"
	}
	if c.Scheduler.History.MaxRuns == 0 && c.Scheduler.History.MaxAge == 0 {
		c.Scheduler.History.MaxRuns = 50
		c.Scheduler.History.MaxAge = 7 * 24 * time.Hour
	}

	if c.Watchdog.Job == "" {
		c.Watchdog.Job = "health_check"
	}
	if c.Watchdog.Staleness == 0 {
		c.Watchdog.Staleness = 10 * time.Minute
	}
	if c.Watchdog.RetryInterval == 0 {
		c.Watchdog.RetryInterval = time.Minute
	}

	if c.Backend.Timeout == 0 {
		c.Backend.Timeout = 10 * time.Second
	}

	if c.Alerts.Webhook.Timeout == 0 {
		c.Alerts.Webhook.Timeout = 10 * time.Second
	}
	if c.Alerts.Redis.Channel == "" {
		c.Alerts.Redis.Channel = "taskmaster:alerts"
	}

	c.Gateway.Defaults()

	if c.Archive.SQLite.Enabled && c.Archive.SQLite.Path == "" {
		c.Archive.SQLite.Path = filepath.Join(DataDir(), "runs.db")
	}

	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = "taskmaster"
	}
}

// DataDir is where taskmaster keeps local state such as the run archive.
func DataDir() string {
	if dir, ok := os.LookupEnv("XDG_DATA_HOME"); ok {
		return filepath.Join(dir, "taskmaster")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", "taskmaster")
}
