package metrics

import "time"

// NoopSink is a Sink that discards everything.
type NoopSink struct{}

var _ Sink = NoopSink{}

func (NoopSink) TickCompleted(time.Duration, int) {}
func (NoopSink) RunStarted(string, string) {}
func (NoopSink) RunFinished(string, string, time.Duration) {}
func (NoopSink) RunSkipped(string) {}
func (NoopSink) ActiveRuns(int) {}
func (NoopSink) AlertDispatched(string) {}
func (NoopSink) AlertDeliveryFailed(string) {}
func (NoopSink) WatchdogForced(string) {}
