package backend

import (
	"context"
	"maps"
	"net/http"
	"slices"
	"time"
)

// Endpoint paths, relative to the configured URL.
const (
	PathHealth      = "/health"
	PathCleanup     = "/maintenance/cleanup"
	PathBackups     = "/backups/status"
	PathPerformance = "/metrics/performance"
	PathCosts       = "/usage/costs"
)

// Health is the raw health document returned by the backend.
type Health map[string]any

// Status returns the "status" field, or "unknown" when absent.
func (h Health) Status() string {
	if s, ok := h["status"].(string); ok && s != "" {
		return s
	}
	return "unknown"
}

// Health fetches the backend health document.
func (c *Client) Health(ctx context.Context) (Health, error) {
	h, err := do[Health](ctx, c, http.MethodGet, PathHealth, nil)
	if err != nil {
		return nil, err
	}
	if *h == nil {
		return Health{}, nil
	}
	return *h, nil
}

// CleanupRequest asks the backend to purge soft-deleted rows.
type CleanupRequest struct {
	RetentionDays int `json:"retention_days"`
}

// CleanupReport lists deleted row counts per table.
type CleanupReport struct {
	Deleted map[string]int `json:"deleted"`
}

// Total returns the number of rows deleted across all tables.
func (r CleanupReport) Total() int {
	n := 0
	for _, v := range r.Deleted {
		n += v
	}
	return n
}

// Cleanup purges soft-deleted rows older than retention. Retention is
// rounded down to whole days with a minimum of one.
func (c *Client) Cleanup(ctx context.Context, retention time.Duration) (CleanupReport, error) {
	days := int(retention / (24 * time.Hour))
	if days < 1 {
		days = 1
	}
	r, err := do[CleanupReport](ctx, c, http.MethodPost, PathCleanup, CleanupRequest{RetentionDays: days})
	if err != nil {
		return CleanupReport{}, err
	}
	return *r, nil
}

// BackupStatus describes the backend's backup posture.
type BackupStatus struct {
	AutomaticBackups string `json:"automatic_backups"`
	LastBackup       string `json:"last_backup"`
	BackupSize       string `json:"backup_size"`
	IntegrityCheck   string `json:"integrity_check"`
}

// Healthy reports whether automatic backups are enabled and the last
// integrity check passed.
func (b BackupStatus) Healthy() bool {
	return b.AutomaticBackups == "enabled" && b.IntegrityCheck == "passed"
}

// BackupStatus fetches the backup status.
func (c *Client) BackupStatus(ctx context.Context) (BackupStatus, error) {
	b, err := do[BackupStatus](ctx, c, http.MethodGet, PathBackups, nil)
	if err != nil {
		return BackupStatus{}, err
	}
	return *b, nil
}

// APIMetrics are request latency and error figures for the public API.
type APIMetrics struct {
	AvgResponseMS float64 `json:"avg_response_ms"`
	P95MS         float64 `json:"p95_ms"`
	ErrorRate     float64 `json:"error_rate"` // percent
}

// Performance groups the performance figures gathered by the backend.
type Performance struct {
	API      APIMetrics     `json:"api"`
	Database map[string]any `json:"database,omitempty"`
	Frontend map[string]any `json:"frontend,omitempty"`
	Errors   map[string]any `json:"errors,omitempty"`
}

// Performance fetches API, database, frontend and error metrics.
func (c *Client) Performance(ctx context.Context) (Performance, error) {
	p, err := do[Performance](ctx, c, http.MethodGet, PathPerformance, nil)
	if err != nil {
		return Performance{}, err
	}
	return *p, nil
}

// ServiceCost is the usage and estimated monthly cost of one service.
type ServiceCost struct {
	EstimatedCost float64        `json:"estimated_cost"`
	Usage         map[string]any `json:"usage,omitempty"`
}

// Costs maps service names to their estimated costs.
type Costs struct {
	Services map[string]ServiceCost `json:"services"`
}

// Total sums the estimated costs of all services.
func (c Costs) Total() float64 {
	// Fixed order keeps the float sum deterministic.
	total := 0.0
	for _, name := range slices.Sorted(maps.Keys(c.Services)) {
		total += c.Services[name].EstimatedCost
	}
	return total
}

// Costs fetches per-service usage and estimated costs.
func (c *Client) Costs(ctx context.Context) (Costs, error) {
	r, err := do[Costs](ctx, c, http.MethodGet, PathCosts, nil)
	if err != nil {
		return Costs{}, err
	}
	return *r, nil
}
