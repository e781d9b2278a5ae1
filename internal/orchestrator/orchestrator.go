// Package orchestrator assembles the scheduler, alert dispatcher, health
// watchdog and run history into the single surface the presentation layers
// (HTTP gateway, MCP server, CLI) talk to.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/flemzord/taskmaster/internal/alert"
	"github.com/flemzord/taskmaster/internal/cron"
	"github.com/flemzord/taskmaster/internal/events"
	"github.com/flemzord/taskmaster/internal/history"
	"github.com/flemzord/taskmaster/internal/metrics"
	"github.com/flemzord/taskmaster/internal/watchdog"
)

// Archive persists terminal runs beyond the in-memory window.
type Archive interface {
	Hook() func(history.Run)
	Recent(ctx context.Context, job string, limit int) ([]history.Run, error)
}

// Options configures an Orchestrator. Registry is required; everything else
// has a working default.
type Options struct {
	Registry *cron.Registry

	TickInterval time.Duration
	Retention    history.Retention

	// HealthJob is the job supervised by the watchdog. Default "health_check".
	HealthJob string
	Staleness time.Duration
	// WatchdogRetry spaces forced health runs. Zero forces on every stale tick.
	WatchdogRetry time.Duration

	AlertSink    alert.Sink
	AlertTimeout time.Duration

	Metrics        metrics.Sink
	TracerProvider trace.TracerProvider
	Archive        Archive
	Hub            *events.Hub
	Logger         *slog.Logger

	Now   func() time.Time
	NewID func() string
}

// Orchestrator is the facade over one independent scheduler instance.
type Orchestrator struct {
	scheduler *cron.Scheduler
	watchdog  *watchdog.Watchdog
	alerts    *alert.Dispatcher
	hub       *events.Hub
	archive   Archive
	logger    *slog.Logger
}

// New wires an orchestrator over opts.Registry. The registry is sealed on
// Start; jobs must be registered before then.
func New(opts Options) (*Orchestrator, error) {
	if opts.Registry == nil {
		return nil, errors.New("orchestrator: nil Registry")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.NoopSink{}
	}
	if opts.Hub == nil {
		opts.Hub = events.NewHub()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	dispatcher := alert.NewDispatcher(alert.DispatcherConfig{
		Sink:    opts.AlertSink,
		Metrics: opts.Metrics,
		Logger:  opts.Logger.With("component", "alert"),
		Timeout: opts.AlertTimeout,
		Now:     opts.Now,
	})
	dispatcher.Observe(opts.Hub.PublishAlert)

	sched := cron.NewScheduler(opts.Registry, cron.Config{
		TickInterval:   opts.TickInterval,
		Tracker:        history.NewTracker(opts.Retention),
		Alerts:         dispatcher,
		Metrics:        opts.Metrics,
		TracerProvider: opts.TracerProvider,
		Logger:         opts.Logger.With("component", "cron"),
		Now:            opts.Now,
		NewID:          opts.NewID,
	})

	wd, err := watchdog.New(watchdog.Config{
		Job:           opts.HealthJob,
		Staleness:     opts.Staleness,
		RetryInterval: opts.WatchdogRetry,
		Metrics:       opts.Metrics,
		Logger:        opts.Logger.With("component", "watchdog"),
		Now:           opts.Now,
	}, sched)
	if err != nil {
		return nil, err
	}
	if _, err := opts.Registry.Get(wd.Job()); err != nil {
		return nil, fmt.Errorf("orchestrator: watchdog job: %w", err)
	}

	wd.Attach(sched)
	sched.AddRunHook(opts.Hub.PublishRun)
	if opts.Archive != nil {
		sched.AddRunHook(opts.Archive.Hook())
	}

	return &Orchestrator{
		scheduler: sched,
		watchdog:  wd,
		alerts:    dispatcher,
		hub:       opts.Hub,
		archive:   opts.Archive,
		logger:    opts.Logger,
	}, nil
}

// Scheduler returns the underlying scheduler.
func (o *Orchestrator) Scheduler() *cron.Scheduler { return o.scheduler }

// Events returns the live event hub.
func (o *Orchestrator) Events() *events.Hub { return o.hub }

// Alerts returns the alert dispatcher.
func (o *Orchestrator) Alerts() *alert.Dispatcher { return o.alerts }

// Name identifies the component in lifecycle logs.
func (o *Orchestrator) Name() string { return "orchestrator" }

// Start begins the tick loop. The loop outlives ctx; use Shutdown to end it.
func (o *Orchestrator) Start(ctx context.Context) error {
	return o.scheduler.Start(context.WithoutCancel(ctx))
}

// Shutdown stops the tick loop and lets in-flight runs finish.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	return o.scheduler.Shutdown(ctx)
}

// Stop is Shutdown under the lifecycle name.
func (o *Orchestrator) Stop(ctx context.Context) error {
	return o.Shutdown(ctx)
}

// RunManually starts the named job now. Fails with cron.ErrJobNotFound or
// cron.ErrJobBusy.
func (o *Orchestrator) RunManually(ctx context.Context, name string) (history.Run, error) {
	return o.scheduler.RunManually(ctx, name)
}

// Wait blocks until the run is terminal.
func (o *Orchestrator) Wait(ctx context.Context, runID string) (history.Run, error) {
	return o.scheduler.Wait(ctx, runID)
}
