// Package alert turns job outcomes into alert events and forwards them to
// pluggable sinks. Delivery is best effort: failures are logged and counted,
// never returned to the caller.
package alert

import (
	"context"
	"errors"
	"time"
)

// ErrDelivery is wrapped by sinks when an event could not be delivered.
var ErrDelivery = errors.New("alert: delivery failed")

// Request is an alert raised by a job action alongside its result. The
// dispatcher stamps it into an Event.
type Request struct {
	Type    string         `json:"type"`
	Message string         `json:"message"`
	Data    map[string]any `json:"data,omitempty"`
}

// Event is an immutable alert ready for delivery.
type Event struct {
	Type      string         `json:"type"`
	Message   string         `json:"message"`
	Timestamp time.Time      `json:"timestamp"`
	Job       string         `json:"job,omitempty"`
	RunID     string         `json:"run_id,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
}

// Sink delivers alert events to an external destination.
type Sink interface {
	Deliver(ctx context.Context, ev Event) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, ev Event) error

// Deliver calls f.
func (f SinkFunc) Deliver(ctx context.Context, ev Event) error { return f(ctx, ev) }

// MultiSink delivers to every sink in order. One failing sink does not
// prevent delivery to the others; all errors are joined.
type MultiSink []Sink

// Deliver implements Sink.
func (m MultiSink) Deliver(ctx context.Context, ev Event) error {
	var errs []error
	for _, s := range m {
		if err := s.Deliver(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
