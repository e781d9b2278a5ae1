package tasks

import (
	"fmt"
	"time"

	"github.com/flemzord/taskmaster/internal/cron"
	"github.com/flemzord/taskmaster/internal/trigger"
)

// Job names of the default catalog.
const (
	HealthCheckJob          = "health_check"
	DatabaseCleanupJob      = "database_cleanup"
	BackupVerificationJob   = "backup_verification"
	PerformanceAnalyticsJob = "performance_analytics"
	CostMonitoringJob       = "cost_monitoring"
)

// Names lists the catalog jobs in registration order.
var Names = []string{
	HealthCheckJob,
	DatabaseCleanupJob,
	BackupVerificationJob,
	PerformanceAnalyticsJob,
	CostMonitoringJob,
}

// DefaultSchedules are used for jobs without a configured schedule.
var DefaultSchedules = map[string]string{
	HealthCheckJob:          "@every 5m",
	DatabaseCleanupJob:      "0 2 * * *",
	BackupVerificationJob:   "0 3 * * 0",
	PerformanceAnalyticsJob: "0 1 * * *",
	CostMonitoringJob:       "0 9 * * *",
}

var displayNames = map[string]string{
	HealthCheckJob:          "System Health Check",
	DatabaseCleanupJob:      "Database Cleanup",
	BackupVerificationJob:   "Backup Verification",
	PerformanceAnalyticsJob: "Performance Analytics",
	CostMonitoringJob:       "Cost Monitoring",
}

// Options tune the catalog. Zero values fall back to defaults.
type Options struct {
	// Schedules overrides DefaultSchedules per job name.
	Schedules map[string]string

	// Location is the zone calendar triggers are evaluated in. Defaults to UTC.
	Location *time.Location

	Retention          time.Duration // default 720h
	P95Threshold       time.Duration // default 1s
	ErrorRateThreshold float64       // percent, default 1.0
	Budget             float64       // default 20
}

func (o Options) withDefaults() Options {
	if o.Location == nil {
		o.Location = time.UTC
	}
	if o.Retention <= 0 {
		o.Retention = 30 * 24 * time.Hour
	}
	if o.P95Threshold <= 0 {
		o.P95Threshold = time.Second
	}
	if o.ErrorRateThreshold <= 0 {
		o.ErrorRateThreshold = 1.0
	}
	if o.Budget <= 0 {
		o.Budget = 20
	}
	return o
}

// Schedule returns the effective schedule expression for job.
func (o Options) Schedule(job string) string {
	if s, ok := o.Schedules[job]; ok && s != "" {
		return s
	}
	return DefaultSchedules[job]
}

// Catalog builds the default job catalog against b.
func Catalog(b Backend, opts Options) ([]cron.Job, error) {
	opts = opts.withDefaults()

	th := Thresholds{P95: opts.P95Threshold, ErrorRate: opts.ErrorRateThreshold}
	actions := map[string]cron.Action{
		HealthCheckJob:          HealthCheck(b),
		DatabaseCleanupJob:      DatabaseCleanup(b, opts.Retention),
		BackupVerificationJob:   BackupVerification(b),
		PerformanceAnalyticsJob: PerformanceAnalytics(b, th),
		CostMonitoringJob:       CostMonitoring(b, opts.Budget),
	}

	jobs := make([]cron.Job, 0, len(Names))
	for _, name := range Names {
		trg, err := trigger.Parse(opts.Schedule(name), opts.Location)
		if err != nil {
			return nil, fmt.Errorf("tasks: job %s: %w", name, err)
		}
		jobs = append(jobs, cron.Job{
			Name:        name,
			DisplayName: displayNames[name],
			Trigger:     trg,
			Action:      actions[name],
		})
	}
	return jobs, nil
}

// Register builds the catalog and registers every job with reg.
func Register(reg *cron.Registry, b Backend, opts Options) error {
	jobs, err := Catalog(b, opts)
	if err != nil {
		return err
	}
	for _, j := range jobs {
		if err := reg.Register(j); err != nil {
			return err
		}
	}
	return nil
}
