package config

import (
	"errors"
	"fmt"
	"net/url"
	"slices"
	"time"

	"github.com/flemzord/taskmaster/internal/tasks"
	"github.com/flemzord/taskmaster/internal/trigger"
)

var (
	logLevels  = []string{"debug", "info", "warn", "error"}
	logFormats = []string{"text", "json"}
)

// Validate checks the structural validity of a defaulted Config and reports
// every problem at once.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Version == "" {
		errs = append(errs, errors.New("config: version field is required"))
	} else if cfg.Version != "1" {
		errs = append(errs, fmt.Errorf("config: unsupported version %q (supported: \"1\")", cfg.Version))
	}

	if !slices.Contains(logLevels, cfg.Log.Level) {
		errs = append(errs, fmt.Errorf("config: log.level %q must be one of %v", cfg.Log.Level, logLevels))
	}
	if !slices.Contains(logFormats, cfg.Log.Format) {
		errs = append(errs, fmt.Errorf("config: log.format %q must be one of %v", cfg.Log.Format, logFormats))
	}

	errs = append(errs, validateScheduler(cfg)...)
	errs = append(errs, validateJobs(cfg)...)
	errs = append(errs, validateAlerts(cfg.Alerts)...)

	if cfg.Backend.URL != "" {
		if err := validateHTTPURL(cfg.Backend.URL); err != nil {
			errs = append(errs, fmt.Errorf("config: backend.url: %w", err))
		}
	}

	if cfg.Archive.SQLite.Retention < 0 {
		errs = append(errs, errors.New("config: archive.sqlite.retention must not be negative"))
	}

	return errors.Join(errs...)
}

func validateScheduler(cfg *Config) []error {
	var errs []error

	if cfg.Scheduler.TickInterval <= 0 {
		errs = append(errs, fmt.Errorf("config: scheduler.tick_interval must be positive, got %s", cfg.Scheduler.TickInterval))
	}
	if _, err := cfg.Location(); err != nil {
		errs = append(errs, err)
	}
	if cfg.Scheduler.History.MaxRuns < 0 || cfg.Scheduler.History.MaxAge < 0 {
		errs = append(errs, errors.New("config: scheduler.history bounds must not be negative"))
	}

	if cfg.Watchdog.Staleness <= 0 {
		errs = append(errs, fmt.Errorf("config: watchdog.staleness must be positive, got %s", cfg.Watchdog.Staleness))
	}
	if cfg.Watchdog.RetryInterval < 0 {
		errs = append(errs, fmt.Errorf("config: watchdog.retry_interval must not be negative, got %s", cfg.Watchdog.RetryInterval))
	}
	if !slices.Contains(tasks.Names, cfg.Watchdog.Job) {
		errs = append(errs, fmt.Errorf("config: watchdog.job %q is not a catalog job", cfg.Watchdog.Job))
	}
	return errs
}

// validateJobs rejects unknown job keys, unparsable schedules and triggers
// the tick cannot resolve.
func validateJobs(cfg *Config) []error {
	var errs []error

	for name := range cfg.Jobs {
		if !slices.Contains(tasks.Names, name) {
			errs = append(errs, fmt.Errorf("config: jobs: unknown job %q (known: %v)", name, tasks.Names))
		}
	}

	opts, err := cfg.TaskOptions()
	if err != nil {
		// Location already reported by validateScheduler.
		return errs
	}

	for _, name := range tasks.Names {
		expr := opts.Schedule(name)
		trg, err := trigger.Parse(expr, opts.Location)
		if err != nil {
			errs = append(errs, fmt.Errorf("config: jobs.%s.schedule: %w", name, err))
			continue
		}
		tick := cfg.Scheduler.TickInterval
		switch trg := trg.(type) {
		case trigger.Interval:
			if tick >= trg.Period {
				errs = append(errs, fmt.Errorf("config: scheduler.tick_interval %s must be shorter than job %s period %s",
					tick, name, trg.Period))
			}
		case trigger.Calendar:
			// Calendar instants are one minute wide; a coarser tick can step over them.
			if tick >= time.Minute {
				errs = append(errs, fmt.Errorf("config: scheduler.tick_interval %s must be shorter than 1m for calendar job %s",
					tick, name))
			}
		}
	}

	for name, job := range cfg.Jobs {
		if job.Retention < 0 || job.P95Threshold < 0 || job.ErrorRateThreshold < 0 || job.Budget < 0 {
			errs = append(errs, fmt.Errorf("config: jobs.%s: thresholds must not be negative", name))
		}
	}
	return errs
}

func validateAlerts(a AlertsConfig) []error {
	var errs []error

	if a.Webhook.URL != "" {
		if err := validateHTTPURL(a.Webhook.URL); err != nil {
			errs = append(errs, fmt.Errorf("config: alerts.webhook.url: %w", err))
		}
	}
	if a.Webhook.Timeout < 0 {
		errs = append(errs, errors.New("config: alerts.webhook.timeout must not be negative"))
	}
	if a.Telegram.Token != "" && a.Telegram.ChatID == 0 {
		errs = append(errs, errors.New("config: alerts.telegram.chat_id is required when a token is set"))
	}
	if a.Redis.DB < 0 {
		errs = append(errs, errors.New("config: alerts.redis.db must not be negative"))
	}
	return errs
}

func validateHTTPURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("missing host")
	}
	return nil
}
