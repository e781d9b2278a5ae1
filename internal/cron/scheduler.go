package cron

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/flemzord/taskmaster/internal/alert"
	"github.com/flemzord/taskmaster/internal/history"
	"github.com/flemzord/taskmaster/internal/metrics"
	"github.com/flemzord/taskmaster/internal/trigger"
)

const tracerName = "github.com/flemzord/taskmaster/internal/cron"

// TickHook runs at the end of every tick, after due jobs were dispatched.
type TickHook func(ctx context.Context, now time.Time)

// RunHook observes a run when it starts and when it reaches a terminal state.
type RunHook func(run history.Run)

// Dispatch is the outcome of one dispatch attempt made by a tick.
type Dispatch struct {
	Job string
	Run history.Run
	Err error
}

// Config holds scheduler configuration.
type Config struct {
	// TickInterval is the poll cadence of the loop. It must be shorter than
	// the finest trigger period in use. Default: 1s.
	TickInterval time.Duration

	Tracker        *history.Tracker
	Alerts         *alert.Dispatcher
	Metrics        metrics.Sink
	TracerProvider trace.TracerProvider
	Logger         *slog.Logger

	// Now is injectable for testing. Default: time.Now.
	Now func() time.Time

	// NewID generates run ids. Default: uuid.NewString.
	NewID func() string
}

func (c Config) withDefaults() Config {
	if c.TickInterval <= 0 {
		c.TickInterval = time.Second
	}
	if c.Tracker == nil {
		c.Tracker = history.NewTracker(history.DefaultRetention)
	}
	if c.Metrics == nil {
		c.Metrics = metrics.NoopSink{}
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Alerts == nil {
		c.Alerts = alert.NewDispatcher(alert.DispatcherConfig{Metrics: c.Metrics, Logger: c.Logger})
	}
	if c.TracerProvider == nil {
		c.TracerProvider = otel.GetTracerProvider()
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	if c.NewID == nil {
		c.NewID = uuid.NewString
	}
	return c
}

// waiter lets callers block until a specific run is terminal.
type waiter struct {
	done chan struct{}
	run  history.Run
}

// Scheduler evaluates every job's trigger on each tick and dispatches due
// jobs. Ticks are serialized; runs execute on their own goroutines.
type Scheduler struct {
	cfg      Config
	registry *Registry
	state    *State
	tracer   trace.Tracer

	tickMu sync.Mutex

	mu       sync.Mutex
	cancel   context.CancelFunc
	loopDone chan struct{}

	// lifeMu orders runs.Add against Shutdown's runs.Wait.
	lifeMu  sync.RWMutex
	stopped bool
	runs    sync.WaitGroup

	waitMu  sync.Mutex
	waiters map[string]*waiter

	tickHooks []TickHook
	runHooks  []RunHook
}

// NewScheduler creates a scheduler over reg.
func NewScheduler(reg *Registry, cfg Config) *Scheduler {
	cfg = cfg.withDefaults()
	return &Scheduler{
		cfg:      cfg,
		registry: reg,
		state:    newState(),
		tracer:   cfg.TracerProvider.Tracer(tracerName),
		waiters:  make(map[string]*waiter),
	}
}

// AddTickHook registers fn to run after every tick. Must be called before Start.
func (s *Scheduler) AddTickHook(fn TickHook) {
	s.tickHooks = append(s.tickHooks, fn)
}

// AddRunHook registers fn to observe run transitions. Must be called before Start.
func (s *Scheduler) AddRunHook(fn RunHook) {
	s.runHooks = append(s.runHooks, fn)
}

// Registry returns the job catalog.
func (s *Scheduler) Registry() *Registry { return s.registry }

// State returns the scheduling state.
func (s *Scheduler) State() *State { return s.state }

// Tracker returns the run history.
func (s *Scheduler) Tracker() *history.Tracker { return s.cfg.Tracker }

// Now returns the scheduler clock's current time.
func (s *Scheduler) Now() time.Time { return s.cfg.Now() }

// Tick evaluates every job against now in registration order and dispatches
// the due ones. It returns one Dispatch per due job.
func (s *Scheduler) Tick(ctx context.Context, now time.Time) []Dispatch {
	s.tickMu.Lock()
	defer s.tickMu.Unlock()

	start := time.Now()
	var out []Dispatch
	dispatched := 0

	for job := range s.registry.All() {
		if !job.Trigger.IsDue(now, s.state.LastFired(job.Name)) {
			continue
		}
		run, err := s.dispatch(ctx, job, now, history.SourceSchedule)
		if err == nil {
			dispatched++
		}
		out = append(out, Dispatch{Job: job.Name, Run: run, Err: err})
	}

	for _, fn := range s.tickHooks {
		fn(ctx, now)
	}

	s.cfg.Metrics.TickCompleted(time.Since(start), dispatched)
	s.cfg.Logger.Debug("cron: tick", "at", now, "dispatched", dispatched)
	return out
}

// RunManually dispatches the named job immediately, bypassing its trigger.
// Fails with ErrJobNotFound or ErrJobBusy.
func (s *Scheduler) RunManually(ctx context.Context, name string) (history.Run, error) {
	job, err := s.registry.Get(name)
	if err != nil {
		return history.Run{}, err
	}
	return s.dispatch(ctx, job, s.cfg.Now(), history.SourceManual)
}

// dispatch starts a run of job unless one is already in flight.
func (s *Scheduler) dispatch(ctx context.Context, job Job, now time.Time, source string) (history.Run, error) {
	s.lifeMu.RLock()
	defer s.lifeMu.RUnlock()

	if s.stopped {
		return history.Run{}, ErrStopped
	}

	runID := s.cfg.NewID()
	if !s.state.acquire(job.Name, runID, now) {
		s.cfg.Metrics.RunSkipped(job.Name)
		s.cfg.Logger.Warn("cron: job still running, skipping",
			"job", job.Name,
			"source", source,
		)
		return history.Run{}, fmt.Errorf("%w: %q", ErrJobBusy, job.Name)
	}

	// Pending is never observable: the run starts as soon as it is created.
	run := history.Run{
		ID:        runID,
		Job:       job.Name,
		Source:    source,
		Status:    history.StatusRunning,
		StartedAt: now,
	}
	s.cfg.Tracker.Record(run)

	w := &waiter{done: make(chan struct{})}
	s.waitMu.Lock()
	s.waiters[runID] = w
	s.waitMu.Unlock()

	s.cfg.Metrics.RunStarted(job.Name, source)
	s.cfg.Metrics.ActiveRuns(s.state.ActiveCount())
	s.cfg.Logger.Info("cron: job dispatched", "job", job.Name, "run_id", runID, "source", source)
	s.notify(run)

	s.runs.Add(1)
	go s.execute(context.WithoutCancel(ctx), job, run, w)
	return run, nil
}

// execute runs the action and publishes the terminal run. Alerts raised by
// the run are delivered before the terminal state is recorded. The overlap
// lock is released before run hooks so a slow hook cannot block the next run.
func (s *Scheduler) execute(ctx context.Context, job Job, run history.Run, w *waiter) {
	defer s.runs.Done()

	ctx, span := s.tracer.Start(ctx, "cron.run "+job.Name,
		trace.WithAttributes(
			attribute.String("job.name", job.Name),
			attribute.String("run.id", run.ID),
			attribute.String("run.source", run.Source),
		),
	)

	res, err := invoke(ctx, job.Action)
	end := s.cfg.Now()
	if err != nil {
		run.Finish(history.StatusFailed, end, res.Data, err.Error())
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.cfg.Logger.Error("cron: job failed", "job", job.Name, "run_id", run.ID, "error", err)
	} else {
		run.Finish(history.StatusCompleted, end, res.Data, "")
		span.SetStatus(codes.Ok, "")
		s.cfg.Logger.Info("cron: job completed", "job", job.Name, "run_id", run.ID, "duration", run.Duration())
	}
	span.SetAttributes(attribute.String("run.status", string(run.Status)))

	for _, req := range res.Alerts {
		s.cfg.Alerts.Raise(ctx, run, req)
	}
	s.cfg.Alerts.RunFailed(ctx, run)

	s.cfg.Tracker.Record(run)
	s.state.release(job.Name, run.ID)
	s.notify(run)

	s.cfg.Metrics.RunFinished(job.Name, string(run.Status), run.Duration())
	s.cfg.Metrics.ActiveRuns(s.state.ActiveCount())

	span.End()

	w.run = run
	close(w.done)
	s.waitMu.Lock()
	delete(s.waiters, run.ID)
	s.waitMu.Unlock()
}

// invoke calls action, converting a panic into an error.
func invoke(ctx context.Context, action Action) (res Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			res = Result{}
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return action(ctx)
}

func (s *Scheduler) notify(run history.Run) {
	for _, fn := range s.runHooks {
		fn(run)
	}
}

// Wait blocks until the run with runID is terminal and returns it.
func (s *Scheduler) Wait(ctx context.Context, runID string) (history.Run, error) {
	s.waitMu.Lock()
	w, ok := s.waiters[runID]
	s.waitMu.Unlock()

	if !ok {
		if r, found := s.cfg.Tracker.Get(runID); found && r.Status.Terminal() {
			return r, nil
		}
		return history.Run{}, fmt.Errorf("%w: %q", ErrRunNotFound, runID)
	}

	select {
	case <-w.done:
		return w.run, nil
	case <-ctx.Done():
		return history.Run{}, ctx.Err()
	}
}

// NextDue returns when the named job is next expected to fire, or the zero
// time if its trigger never matches.
func (s *Scheduler) NextDue(name string) (time.Time, error) {
	job, err := s.registry.Get(name)
	if err != nil {
		return time.Time{}, err
	}
	return trigger.NextDue(job.Trigger, s.cfg.Now(), s.state.LastFired(name)), nil
}

// Running reports whether the tick loop is active.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}

// Start seals the registry and begins the tick loop. The first tick runs
// immediately. Returns ErrAlreadyStarted if called twice.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		return ErrAlreadyStarted
	}

	s.lifeMu.RLock()
	stopped := s.stopped
	s.lifeMu.RUnlock()
	if stopped {
		return ErrStopped
	}

	s.registry.Seal()
	ctx, s.cancel = context.WithCancel(ctx)
	s.loopDone = make(chan struct{})
	go s.loop(ctx, s.loopDone)

	s.cfg.Logger.Info("cron: scheduler started",
		"jobs", s.registry.Len(),
		"tick_interval", s.cfg.TickInterval,
	)
	return nil
}

func (s *Scheduler) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()

	s.Tick(ctx, s.cfg.Now())
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Tick(ctx, s.cfg.Now())
		}
	}
}

// Shutdown stops the tick loop and waits for in-flight runs to finish, or
// for ctx to expire. Runs are never aborted. Returns ErrNotStarted if the
// loop is not running.
func (s *Scheduler) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if s.cancel == nil {
		s.mu.Unlock()
		return ErrNotStarted
	}
	s.cancel()
	<-s.loopDone
	s.cancel = nil
	s.mu.Unlock()

	s.lifeMu.Lock()
	s.stopped = true
	s.lifeMu.Unlock()

	done := make(chan struct{})
	go func() {
		s.runs.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.cfg.Logger.Info("cron: scheduler stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("cron: waiting for in-flight runs: %w", ctx.Err())
	}
}
