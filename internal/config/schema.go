// Package config handles YAML configuration loading, environment variable
// expansion, defaults and structural validation for taskmaster.
package config

import (
	"time"

	"github.com/flemzord/taskmaster/internal/backend"
	"github.com/flemzord/taskmaster/internal/gateway"
	"github.com/flemzord/taskmaster/internal/history"
	"github.com/flemzord/taskmaster/internal/tracing"
)

// Config is the top-level configuration structure.
type Config struct {
	// Version is the config format version. Currently only "1" is supported.
	Version string `yaml:"version"`

	Log       LogConfig            `yaml:"log"`
	Scheduler SchedulerConfig      `yaml:"scheduler"`
	Watchdog  WatchdogConfig       `yaml:"watchdog"`
	Backend   backend.Config       `yaml:"backend"`
	Jobs      map[string]JobConfig `yaml:"jobs"`
	Alerts    AlertsConfig         `yaml:"alerts"`
	Gateway   gateway.Config       `yaml:"gateway"`
	Archive   ArchiveConfig        `yaml:"archive"`
	Tracing   tracing.Config       `yaml:"tracing"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

// SchedulerConfig tunes the scheduler core.
type SchedulerConfig struct {
	// TickInterval must be shorter than the finest interval trigger.
	TickInterval time.Duration `yaml:"tick_interval"`

	// Timezone is the IANA zone calendar triggers are evaluated in.
	Timezone string `yaml:"timezone"`

	History history.Retention `yaml:"history"`
}

// WatchdogConfig configures the health monitor.
type WatchdogConfig struct {
	Job       string        `yaml:"job"`
	Staleness time.Duration `yaml:"staleness"`
	// RetryInterval is the minimum gap between forced runs while the job
	// stays stale.
	RetryInterval time.Duration `yaml:"retry_interval"`
}

// JobConfig overrides one catalog job. Only the fields relevant to the job
// are read.
type JobConfig struct {
	Schedule string `yaml:"schedule"`

	// database_cleanup
	Retention time.Duration `yaml:"retention"`

	// performance_analytics
	P95Threshold       time.Duration `yaml:"p95_threshold"`
	ErrorRateThreshold float64       `yaml:"error_rate_threshold"`

	// cost_monitoring
	Budget float64 `yaml:"budget"`
}

// AlertsConfig lists the alert sinks. Every configured sink receives every
// alert.
type AlertsConfig struct {
	// Log writes alerts to the process log. Defaults to true.
	Log *bool `yaml:"log"`

	Webhook  WebhookAlertConfig  `yaml:"webhook"`
	Redis    RedisAlertConfig    `yaml:"redis"`
	Telegram TelegramAlertConfig `yaml:"telegram"`
}

// LogEnabled reports whether the log sink is on.
func (a AlertsConfig) LogEnabled() bool {
	return a.Log == nil || *a.Log
}

// WebhookAlertConfig posts alerts as signed JSON. Empty URL disables it.
type WebhookAlertConfig struct {
	URL     string        `yaml:"url"`
	Secret  string        `yaml:"secret"`
	Timeout time.Duration `yaml:"timeout"`
}

// RedisAlertConfig publishes alerts on a pub/sub channel. Empty Addr disables it.
type RedisAlertConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Channel  string `yaml:"channel"`
}

// TelegramAlertConfig sends alerts to a chat. Empty Token disables it.
type TelegramAlertConfig struct {
	Token  string `yaml:"token"`
	ChatID int64  `yaml:"chat_id"`
}

// ArchiveConfig configures durable run storage.
type ArchiveConfig struct {
	SQLite SQLiteArchiveConfig `yaml:"sqlite"`
}

// SQLiteArchiveConfig stores terminal runs in a SQLite file.
type SQLiteArchiveConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`

	// Retention prunes archived runs older than this at startup. Zero keeps
	// everything.
	Retention time.Duration `yaml:"retention"`
}
