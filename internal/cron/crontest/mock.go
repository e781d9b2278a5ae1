// Package crontest provides test doubles for the cron package.
package crontest

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/flemzord/taskmaster/internal/alert"
	"github.com/flemzord/taskmaster/internal/cron"
	"github.com/flemzord/taskmaster/internal/history"
)

// Clock is a manually advanced clock.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock returns a clock frozen at t.
func NewClock(t time.Time) *Clock {
	return &Clock{now: t}
}

// Now returns the current fake time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d and returns the new time.
func (c *Clock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	return c.now
}

// Set moves the clock to t.
func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

// Gate is an action that blocks until released, so tests can hold a job in
// the Running state.
type Gate struct {
	started chan struct{}
	release chan struct{}
	once    sync.Once
	calls   atomic.Int32
	result  cron.Result
	err     error
}

// NewGate creates a gate whose action returns res and err once released.
func NewGate(res cron.Result, err error) *Gate {
	return &Gate{
		started: make(chan struct{}, 64),
		release: make(chan struct{}),
		result:  res,
		err:     err,
	}
}

// Action returns the blocking action.
func (g *Gate) Action() cron.Action {
	return func(ctx context.Context) (cron.Result, error) {
		g.calls.Add(1)
		select {
		case g.started <- struct{}{}:
		default:
		}
		select {
		case <-g.release:
		case <-ctx.Done():
			return cron.Result{}, ctx.Err()
		}
		return g.result, g.err
	}
}

// WaitStarted blocks until the action has been entered once, or timeout.
func (g *Gate) WaitStarted(timeout time.Duration) bool {
	select {
	case <-g.started:
		return true
	case <-time.After(timeout):
		return false
	}
}

// Release unblocks every current and future call.
func (g *Gate) Release() {
	g.once.Do(func() { close(g.release) })
}

// Calls returns how many times the action was entered.
func (g *Gate) Calls() int { return int(g.calls.Load()) }

// Succeed returns an action that completes with data and raises alerts.
func Succeed(data map[string]any, alerts ...alert.Request) cron.Action {
	return func(context.Context) (cron.Result, error) {
		return cron.Result{Data: data, Alerts: alerts}, nil
	}
}

// Fail returns an action that fails with msg.
func Fail(msg string) cron.Action {
	return func(context.Context) (cron.Result, error) {
		return cron.Result{}, errors.New(msg)
	}
}

// Counter is an action that counts its invocations.
type Counter struct {
	n atomic.Int32
}

// Action returns the counting action.
func (c *Counter) Action() cron.Action {
	return func(context.Context) (cron.Result, error) {
		c.n.Add(1)
		return cron.Result{}, nil
	}
}

// Count returns the number of invocations.
func (c *Counter) Count() int { return int(c.n.Load()) }

// RunRecorder collects run transitions from a cron.RunHook.
type RunRecorder struct {
	mu   sync.Mutex
	runs []history.Run
}

// Hook returns the hook to register on the scheduler.
func (r *RunRecorder) Hook() cron.RunHook {
	return func(run history.Run) {
		r.mu.Lock()
		r.runs = append(r.runs, run)
		r.mu.Unlock()
	}
}

// Runs returns a copy of every observed transition.
func (r *RunRecorder) Runs() []history.Run {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]history.Run(nil), r.runs...)
}

// SequentialIDs returns an id generator producing "run-1", "run-2", ...
func SequentialIDs(prefix string) func() string {
	var n atomic.Int64
	return func() string {
		return prefix + "-" + strconv.FormatInt(n.Add(1), 10)
	}
}
