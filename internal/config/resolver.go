package config

import (
	"fmt"
	"time"

	"github.com/flemzord/taskmaster/internal/tasks"
)

// Location resolves the scheduler timezone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Scheduler.Timezone)
	if err != nil {
		return nil, fmt.Errorf("config: scheduler.timezone %q: %w", c.Scheduler.Timezone, err)
	}
	return loc, nil
}

// TaskOptions maps the jobs section onto catalog options. Unset values keep
// the catalog defaults.
func (c *Config) TaskOptions() (tasks.Options, error) {
	loc, err := c.Location()
	if err != nil {
		return tasks.Options{}, err
	}

	opts := tasks.Options{
		Schedules: make(map[string]string, len(c.Jobs)),
		Location:  loc,
	}
	for name, job := range c.Jobs {
		if job.Schedule != "" {
			opts.Schedules[name] = job.Schedule
		}
	}
	opts.Retention = c.Jobs[tasks.DatabaseCleanupJob].Retention
	opts.P95Threshold = c.Jobs[tasks.PerformanceAnalyticsJob].P95Threshold
	opts.ErrorRateThreshold = c.Jobs[tasks.PerformanceAnalyticsJob].ErrorRateThreshold
	opts.Budget = c.Jobs[tasks.CostMonitoringJob].Budget
	return opts, nil
}
