// Package cron runs a fixed catalog of named jobs on interval and calendar
// triggers. A job never runs concurrently with itself: a due or manual
// dispatch that finds the job busy is skipped, not queued.
package cron

import (
	"context"
	"errors"
	"fmt"

	"github.com/flemzord/taskmaster/internal/alert"
	"github.com/flemzord/taskmaster/internal/trigger"
)

// Sentinel errors for registry and scheduler operations.
var (
	ErrDuplicateJobName = errors.New("cron: duplicate job name")
	ErrJobNotFound      = errors.New("cron: job not found")
	ErrJobBusy          = errors.New("cron: job already running")
	ErrInvalidJob       = errors.New("cron: invalid job")
	ErrRegistrySealed   = errors.New("cron: registry is sealed")
	ErrRunNotFound      = errors.New("cron: run not found")
	ErrAlreadyStarted   = errors.New("cron: already started")
	ErrNotStarted       = errors.New("cron: not started")
	ErrStopped          = errors.New("cron: scheduler stopped")
)

// Result is what a job action returns on success. Alerts are delivered
// before the run's terminal state becomes visible.
type Result struct {
	Data   map[string]any
	Alerts []alert.Request
}

// Action is the work a job performs. A returned error or a panic marks the
// run Failed with the error text.
type Action func(ctx context.Context) (Result, error)

// Job is a named unit of recurring work. Immutable once registered.
type Job struct {
	// Name is the unique identifier (e.g. "health_check").
	Name string

	// DisplayName is the human label shown on dashboards.
	DisplayName string

	Trigger trigger.Trigger
	Action  Action
}

func (j Job) validate() error {
	switch {
	case j.Name == "":
		return fmt.Errorf("%w: empty name", ErrInvalidJob)
	case j.Trigger == nil:
		return fmt.Errorf("%w: job %q has no trigger", ErrInvalidJob, j.Name)
	case j.Action == nil:
		return fmt.Errorf("%w: job %q has no action", ErrInvalidJob, j.Name)
	}
	return nil
}

// Label returns DisplayName, falling back to Name.
func (j Job) Label() string {
	if j.DisplayName != "" {
		return j.DisplayName
	}
	return j.Name
}
