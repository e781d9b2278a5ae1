// Package history tracks job runs and keeps a bounded window of recent
// outcomes per job for status reporting.
package history

import "time"

// Status is the lifecycle state of a run.
type Status string

// Run states. Pending and Running are transient; the rest are terminal.
const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether s is a final state.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// Trigger source of a run.
const (
	SourceSchedule = "schedule"
	SourceManual   = "manual"
)

// Run is one execution attempt of a job.
type Run struct {
	ID          string         `json:"id"`
	Job         string         `json:"job"`
	Source      string         `json:"source"`
	Status      Status         `json:"status"`
	StartedAt   time.Time      `json:"started_at"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
	Result      map[string]any `json:"result,omitempty"`
	Error       string         `json:"error,omitempty"`
}

// Duration returns how long the run took, or zero while it is in flight.
func (r Run) Duration() time.Duration {
	if r.CompletedAt == nil {
		return 0
	}
	return r.CompletedAt.Sub(r.StartedAt)
}

// Finish moves the run to a terminal state at t.
func (r *Run) Finish(status Status, t time.Time, result map[string]any, errMsg string) {
	r.Status = status
	r.CompletedAt = &t
	r.Result = result
	r.Error = errMsg
}
