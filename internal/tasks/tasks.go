// Package tasks implements the maintenance jobs run by the orchestrator and
// the default catalog binding each of them to a schedule.
package tasks

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/flemzord/taskmaster/internal/alert"
	"github.com/flemzord/taskmaster/internal/backend"
	"github.com/flemzord/taskmaster/internal/cron"
)

// Alert types raised by the maintenance jobs.
const (
	AlertHealthDegraded        = "health_degraded"
	AlertBackupUnhealthy       = "backup_unhealthy"
	AlertPerformanceDegraded   = "performance_degradation"
	AlertCostThresholdExceeded = "cost_threshold_warning"
)

// Backend is the data backend the jobs inspect.
type Backend interface {
	Health(ctx context.Context) (backend.Health, error)
	Cleanup(ctx context.Context, retention time.Duration) (backend.CleanupReport, error)
	BackupStatus(ctx context.Context) (backend.BackupStatus, error)
	Performance(ctx context.Context) (backend.Performance, error)
	Costs(ctx context.Context) (backend.Costs, error)
}

var _ Backend = (*backend.Client)(nil)

// HealthCheck probes the backend health endpoint. A degraded or unhealthy
// report completes the run but raises a health_degraded alert.
func HealthCheck(b Backend) cron.Action {
	return func(ctx context.Context) (cron.Result, error) {
		h, err := b.Health(ctx)
		if err != nil {
			return cron.Result{}, fmt.Errorf("health check failed: %w", err)
		}

		status := h.Status()
		res := cron.Result{Data: map[string]any{
			"status": status,
			"health": map[string]any(h),
		}}
		if status == "degraded" || status == "unhealthy" {
			res.Alerts = append(res.Alerts, alert.Request{
				Type:    AlertHealthDegraded,
				Message: "System health is " + status,
				Data:    map[string]any(h),
			})
		}
		return res, nil
	}
}

// DatabaseCleanup purges soft-deleted rows older than retention.
func DatabaseCleanup(b Backend, retention time.Duration) cron.Action {
	return func(ctx context.Context) (cron.Result, error) {
		rep, err := b.Cleanup(ctx, retention)
		if err != nil {
			return cron.Result{}, fmt.Errorf("database cleanup: %w", err)
		}
		return cron.Result{Data: map[string]any{
			"retention": retention.String(),
			"deleted":   rep.Deleted,
			"total":     rep.Total(),
		}}, nil
	}
}

// BackupVerification checks that automatic backups run and pass integrity
// checks.
func BackupVerification(b Backend) cron.Action {
	return func(ctx context.Context) (cron.Result, error) {
		st, err := b.BackupStatus(ctx)
		if err != nil {
			return cron.Result{}, fmt.Errorf("backup verification: %w", err)
		}

		data := map[string]any{
			"automatic_backups": st.AutomaticBackups,
			"last_backup":       st.LastBackup,
			"backup_size":       st.BackupSize,
			"integrity_check":   st.IntegrityCheck,
		}
		res := cron.Result{Data: data}
		if !st.Healthy() {
			msg := fmt.Sprintf("Backups need attention: automatic backups %s, integrity check %s",
				orUnknown(st.AutomaticBackups), orUnknown(st.IntegrityCheck))
			res.Alerts = append(res.Alerts, alert.Request{Type: AlertBackupUnhealthy, Message: msg, Data: data})
		}
		return res, nil
	}
}

// Thresholds bound the performance figures before an alert is raised.
type Thresholds struct {
	P95       time.Duration
	ErrorRate float64 // percent
}

// PerformanceAnalytics gathers performance figures and raises
// performance_degradation when API latency or error rate cross thresholds.
func PerformanceAnalytics(b Backend, th Thresholds) cron.Action {
	return func(ctx context.Context) (cron.Result, error) {
		p, err := b.Performance(ctx)
		if err != nil {
			return cron.Result{}, fmt.Errorf("performance analytics: %w", err)
		}

		data := map[string]any{
			"api_response_times":   p.API,
			"database_performance": p.Database,
			"frontend_vitals":      p.Frontend,
			"error_rates":          p.Errors,
		}

		var issues []string
		if p.API.P95MS > float64(th.P95.Milliseconds()) {
			issues = append(issues, "API response times degraded")
		}
		if p.API.ErrorRate > th.ErrorRate {
			issues = append(issues, "Error rate elevated")
		}

		res := cron.Result{Data: data}
		if len(issues) > 0 {
			data["issues"] = issues
			res.Alerts = append(res.Alerts, alert.Request{
				Type:    AlertPerformanceDegraded,
				Message: strings.Join(issues, "; "),
				Data:    data,
			})
		}
		return res, nil
	}
}

// CostMonitoring sums estimated service costs and warns when the total
// exceeds budget.
func CostMonitoring(b Backend, budget float64) cron.Action {
	return func(ctx context.Context) (cron.Result, error) {
		costs, err := b.Costs(ctx)
		if err != nil {
			return cron.Result{}, fmt.Errorf("cost monitoring: %w", err)
		}

		total := costs.Total()
		data := map[string]any{
			"services": costs.Services,
			"total":    total,
			"budget":   budget,
		}
		res := cron.Result{Data: data}
		if total > budget {
			res.Alerts = append(res.Alerts, alert.Request{
				Type:    AlertCostThresholdExceeded,
				Message: fmt.Sprintf("Monthly cost approaching threshold: $%.2f", total),
				Data:    data,
			})
		}
		return res, nil
	}
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
