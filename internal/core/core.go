// Package core runs the process lifecycle: components start in order, stop
// in reverse order, and the process exits on SIGINT or SIGTERM.
package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"sync"
	"syscall"
	"time"
)

const defaultShutdownTimeout = 30 * time.Second

// App manages the lifecycle of a set of components.
type App struct {
	logger          *slog.Logger
	shutdownTimeout time.Duration

	mu         sync.Mutex
	components []Component
	started    int // number of components started, from the front
}

// Option configures an App.
type Option func(*App)

// WithShutdownTimeout bounds the whole stop sequence.
func WithShutdownTimeout(d time.Duration) Option {
	return func(a *App) {
		if d > 0 {
			a.shutdownTimeout = d
		}
	}
}

// NewApp creates an empty App.
func NewApp(logger *slog.Logger, opts ...Option) *App {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{
		logger:          logger.With("component", "core"),
		shutdownTimeout: defaultShutdownTimeout,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Add appends components. They start in the order added.
func (a *App) Add(cs ...Component) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.components = append(a.components, cs...)
}

// Start starts every component in order. If one fails, those already started
// are stopped in reverse order and the error is returned.
func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	for i := a.started; i < len(a.components); i++ {
		c := a.components[i]
		a.logger.Info("starting component", "name", c.Name())
		if err := c.Start(ctx); err != nil {
			a.logger.Error("component start failed", "name", c.Name(), "error", err)
			stopErr := a.stopLocked(context.WithoutCancel(ctx))
			return errors.Join(fmt.Errorf("starting %s: %w", c.Name(), err), stopErr)
		}
		a.started = i + 1
	}
	a.logger.Info("all components started", "count", a.started)
	return nil
}

// Stop stops started components in reverse order within the shutdown
// timeout. Every component is given a chance to stop; errors are joined.
func (a *App) Stop(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stopLocked(ctx)
}

func (a *App) stopLocked(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, a.shutdownTimeout)
	defer cancel()

	var errs []error
	for i := a.started - 1; i >= 0; i-- {
		c := a.components[i]
		a.logger.Info("stopping component", "name", c.Name())
		if err := c.Stop(ctx); err != nil {
			a.logger.Error("component stop error", "name", c.Name(), "error", err)
			errs = append(errs, fmt.Errorf("stopping %s: %w", c.Name(), err))
		}
	}
	a.started = 0
	return errors.Join(errs...)
}

// Run starts every component and blocks until ctx is cancelled or a shutdown
// signal arrives, then stops them.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := a.Start(ctx); err != nil {
		return err
	}

	<-ctx.Done()
	a.logger.Info("shutdown requested", "cause", context.Cause(ctx))

	err := a.Stop(context.WithoutCancel(ctx))
	if err == nil {
		a.logger.Info("shutdown complete")
	}
	return err
}
