// Package trigger provides the time predicates that decide when a job is due.
// Triggers are stateless: the scheduler owns the last-fired timestamps and
// passes them in, so a Trigger value can be shared and compared with ==.
package trigger

import (
	"fmt"
	"time"
)

// Trigger answers whether a job is due at a given instant and when it is
// next due after a reference time.
type Trigger interface {
	// IsDue reports whether the job should fire at now. lastFired is the
	// zero time when the job has never fired.
	IsDue(now, lastFired time.Time) bool

	// NextAfter returns the first fire instant strictly after ref.
	NextAfter(ref time.Time) time.Time

	// String returns a human-readable description of the trigger.
	String() string
}

// Compile-time interface checks.
var (
	_ Trigger = Interval{}
	_ Trigger = Calendar{}
)

// Interval fires every Period. A job that has never fired is due immediately.
type Interval struct {
	Period time.Duration
}

// Every returns an Interval trigger with the given period.
func Every(d time.Duration) Interval {
	return Interval{Period: d}
}

// IsDue implements Trigger.
func (i Interval) IsDue(now, lastFired time.Time) bool {
	if lastFired.IsZero() {
		return true
	}
	return !now.Before(lastFired.Add(i.Period))
}

// NextAfter implements Trigger.
func (i Interval) NextAfter(ref time.Time) time.Time {
	return ref.Add(i.Period)
}

// String implements Trigger.
func (i Interval) String() string {
	return fmt.Sprintf("interval(%s)", i.Period)
}

// NextDue returns when a job bound to t is next due, given the current time
// and its last-fired timestamp. The result may lie in the past when the job
// is overdue, and equals now when a never-fired job is already due.
func NextDue(t Trigger, now, lastFired time.Time) time.Time {
	if lastFired.IsZero() {
		if t.IsDue(now, lastFired) {
			return now
		}
		return t.NextAfter(now)
	}
	return t.NextAfter(lastFired)
}
