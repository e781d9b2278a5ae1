package alert

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/flemzord/taskmaster/internal/history"
	"github.com/flemzord/taskmaster/internal/metrics"
)

// FailedSuffix is appended to a job name to form the type of its failure alert.
const FailedSuffix = "_failed"

// Dispatcher classifies run outcomes into events and hands them to a Sink.
type Dispatcher struct {
	sink    Sink
	metrics metrics.Sink
	logger  *slog.Logger
	timeout time.Duration
	now     func() time.Time

	observers []func(Event)
}

// DispatcherConfig configures a Dispatcher.
type DispatcherConfig struct {
	Sink    Sink
	Metrics metrics.Sink
	Logger  *slog.Logger

	// Timeout bounds a single delivery. Default: 10s.
	Timeout time.Duration

	// Now is the clock used to stamp events. Default: time.Now.
	Now func() time.Time
}

// NewDispatcher creates a dispatcher. A nil sink discards events.
func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	d := &Dispatcher{
		sink:    cfg.Sink,
		metrics: cfg.Metrics,
		logger:  cfg.Logger,
		timeout: cfg.Timeout,
		now:     cfg.Now,
	}
	if d.sink == nil {
		d.sink = MultiSink(nil)
	}
	if d.metrics == nil {
		d.metrics = metrics.NoopSink{}
	}
	if d.logger == nil {
		d.logger = slog.Default()
	}
	if d.timeout <= 0 {
		d.timeout = 10 * time.Second
	}
	if d.now == nil {
		d.now = time.Now
	}
	return d
}

// Observe registers fn to be called with every dispatched event, after the
// sink returns. Must be called before the dispatcher is used.
func (d *Dispatcher) Observe(fn func(Event)) {
	d.observers = append(d.observers, fn)
}

// Dispatch delivers ev synchronously. It never fails: sink errors and
// panics are logged and counted.
func (d *Dispatcher) Dispatch(ctx context.Context, ev Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = d.now()
	}

	d.logger.Warn("alert: dispatching", "type", ev.Type, "job", ev.Job, "message", ev.Message)
	d.metrics.AlertDispatched(ev.Type)

	if err := d.deliver(ctx, ev); err != nil {
		d.metrics.AlertDeliveryFailed(ev.Type)
		d.logger.Error("alert: delivery failed", "type", ev.Type, "job", ev.Job, "error", err)
	}

	for _, fn := range d.observers {
		fn(ev)
	}
}

func (d *Dispatcher) deliver(ctx context.Context, ev Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: sink panic: %v", ErrDelivery, r)
		}
	}()

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
	defer cancel()
	return d.sink.Deliver(ctx, ev)
}

// Raise dispatches an alert request emitted by a run of job.
func (d *Dispatcher) Raise(ctx context.Context, run history.Run, req Request) {
	d.Dispatch(ctx, Event{
		Type:    req.Type,
		Message: req.Message,
		Job:     run.Job,
		RunID:   run.ID,
		Data:    req.Data,
	})
}

// RunFailed applies the failure rule: a failed run produces exactly one
// "<job>_failed" event whose message is the captured error. Runs in any
// other state are ignored.
func (d *Dispatcher) RunFailed(ctx context.Context, run history.Run) {
	if run.Status != history.StatusFailed {
		return
	}
	ts := d.now()
	if run.CompletedAt != nil {
		ts = *run.CompletedAt
	}
	d.Dispatch(ctx, Event{
		Type:      run.Job + FailedSuffix,
		Message:   run.Error,
		Timestamp: ts,
		Job:       run.Job,
		RunID:     run.ID,
		Data: map[string]any{
			"started_at": run.StartedAt,
			"source":     run.Source,
		},
	})
}
