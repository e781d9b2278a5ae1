// Package metrics records scheduler, run and alert metrics.
package metrics

import "time"

// Sink defines the interface for recording metrics.
// All methods are fire-and-forget: implementations MUST NOT block or propagate errors.
type Sink interface {
	// Scheduler metrics
	TickCompleted(duration time.Duration, dispatched int)

	// Run metrics
	RunStarted(job, source string)
	RunFinished(job, status string, duration time.Duration)
	RunSkipped(job string)
	ActiveRuns(n int)

	// Alert metrics
	AlertDispatched(alertType string)
	AlertDeliveryFailed(alertType string)

	// Watchdog metrics
	WatchdogForced(job string)
}
