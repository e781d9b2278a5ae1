// Package watchdog supervises the health-check job. It tracks the last
// health outcome and forces a manual run when no health check has completed
// within the staleness window.
package watchdog

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/flemzord/taskmaster/internal/cron"
	"github.com/flemzord/taskmaster/internal/history"
	"github.com/flemzord/taskmaster/internal/metrics"
)

// Health status values.
const (
	StatusUnknown   = "unknown"
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// Runner dispatches a job outside its trigger.
type Runner interface {
	RunManually(ctx context.Context, name string) (history.Run, error)
}

// Config holds watchdog configuration.
type Config struct {
	Job       string        // default "health_check"
	Staleness time.Duration // default 10m

	// RetryInterval spaces forced runs while the job keeps failing. Zero
	// forces on every tick until a completion.
	RetryInterval time.Duration

	Metrics   metrics.Sink
	Logger    *slog.Logger
	Now       func() time.Time // injectable for testing
}

func (c Config) withDefaults() Config {
	if c.Job == "" {
		c.Job = "health_check"
	}
	if c.Staleness <= 0 {
		c.Staleness = 10 * time.Minute
	}
	if c.Metrics == nil {
		c.Metrics = metrics.NoopSink{}
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

// Snapshot is the health view exposed to status consumers.
type Snapshot struct {
	LastHealthCheck *time.Time
	Status          string
}

// Watchdog observes runs of the health-check job and forces one when the
// last completion is older than the staleness window.
type Watchdog struct {
	cfg    Config
	runner Runner

	mu            sync.Mutex
	since         time.Time // staleness baseline before the first completion
	lastCompleted time.Time
	lastForced    time.Time
	status        string
}

// New creates a Watchdog. The staleness clock starts now.
func New(cfg Config, runner Runner) (*Watchdog, error) {
	if runner == nil {
		return nil, errors.New("watchdog: nil Runner")
	}
	cfg = cfg.withDefaults()
	return &Watchdog{
		cfg:    cfg,
		runner: runner,
		since:  cfg.Now(),
		status: StatusUnknown,
	}, nil
}

// Job returns the supervised job name.
func (w *Watchdog) Job() string { return w.cfg.Job }

// Observe records a transition of the supervised job. It is a cron.RunHook.
func (w *Watchdog) Observe(run history.Run) {
	if run.Job != w.cfg.Job {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	switch run.Status {
	case history.StatusCompleted:
		w.lastCompleted = *run.CompletedAt
		w.status = StatusHealthy
		if s, ok := run.Result["status"].(string); ok && s != "" {
			w.status = s
		}
	case history.StatusFailed:
		w.status = StatusUnhealthy
	}
}

// Check forces a run of the supervised job if it is stale at now. It is a
// cron.TickHook and reports whether a run was started.
func (w *Watchdog) Check(ctx context.Context, now time.Time) bool {
	w.mu.Lock()
	baseline := w.since
	if w.lastCompleted.After(baseline) {
		baseline = w.lastCompleted
	}
	lastForced := w.lastForced
	w.mu.Unlock()

	age := now.Sub(baseline)
	if age <= w.cfg.Staleness {
		return false
	}
	if w.cfg.RetryInterval > 0 && !lastForced.IsZero() && now.Sub(lastForced) < w.cfg.RetryInterval {
		return false
	}

	w.cfg.Logger.Warn("watchdog: health check overdue, running manual check",
		"job", w.cfg.Job,
		"since", age,
	)
	w.cfg.Metrics.WatchdogForced(w.cfg.Job)

	run, err := w.runner.RunManually(ctx, w.cfg.Job)
	switch {
	case errors.Is(err, cron.ErrJobBusy):
		w.cfg.Logger.Debug("watchdog: health check already running", "job", w.cfg.Job)
		return false
	case err != nil:
		w.cfg.Logger.Error("watchdog: forcing health check failed", "job", w.cfg.Job, "error", err)
		return false
	}
	w.mu.Lock()
	w.lastForced = now
	w.mu.Unlock()

	w.cfg.Logger.Info("watchdog: forced health check", "job", w.cfg.Job, "run_id", run.ID)
	return true
}

// Snapshot returns the current health view. LastHealthCheck is nil until a
// health check completes.
func (w *Watchdog) Snapshot() Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()

	s := Snapshot{Status: w.status}
	if !w.lastCompleted.IsZero() {
		t := w.lastCompleted
		s.LastHealthCheck = &t
	}
	return s
}

// Attach registers the watchdog's hooks on s.
func (w *Watchdog) Attach(s *cron.Scheduler) {
	s.AddRunHook(w.Observe)
	s.AddTickHook(func(ctx context.Context, now time.Time) { w.Check(ctx, now) })
}
