package core

import "context"

// Component is a long-lived part of the process. Start must not block: it
// launches background work and returns. Stop undoes Start and is called at
// most once, in reverse start order.
type Component interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// Hook adapts plain functions into a Component. Nil functions are no-ops.
type Hook struct {
	ID      string
	OnStart func(ctx context.Context) error
	OnStop  func(ctx context.Context) error
}

var _ Component = Hook{}

// Name implements Component.
func (h Hook) Name() string { return h.ID }

// Start implements Component.
func (h Hook) Start(ctx context.Context) error {
	if h.OnStart == nil {
		return nil
	}
	return h.OnStart(ctx)
}

// Stop implements Component.
func (h Hook) Stop(ctx context.Context) error {
	if h.OnStop == nil {
		return nil
	}
	return h.OnStop(ctx)
}

// Closer wraps a resource that only needs closing at shutdown.
func Closer(name string, close func() error) Hook {
	return Hook{ID: name, OnStop: func(context.Context) error { return close() }}
}
