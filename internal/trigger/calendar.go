package trigger

import (
	"math/bits"
	"strconv"
	"strings"
	"time"
)

// maxSearchSteps bounds NextAfter. Day and hour skipping keep real searches
// far below this; it only guards against a degenerate field set.
const maxSearchSteps = 1 << 16

// Field is the set of values a calendar field accepts. The zero Field is a
// wildcard that matches any value.
type Field uint64

// Any returns a wildcard field.
func Any() Field { return 0 }

// At returns a field pinned to the given values. Values outside 0..63 are
// ignored; callers validate ranges before building fields.
func At(values ...int) Field {
	var f Field
	for _, v := range values {
		if v >= 0 && v < 64 {
			f |= 1 << uint(v)
		}
	}
	return f
}

// IsAny reports whether the field is a wildcard.
func (f Field) IsAny() bool { return f == 0 }

// Matches reports whether v is accepted by the field.
func (f Field) Matches(v int) bool {
	if f == 0 {
		return true
	}
	return v >= 0 && v < 64 && f&(1<<uint(v)) != 0
}

// Values returns the pinned values in ascending order, or nil for a wildcard.
func (f Field) Values() []int {
	if f == 0 {
		return nil
	}
	out := make([]int, 0, bits.OnesCount64(uint64(f)))
	for v := 0; v < 64; v++ {
		if f&(1<<uint(v)) != 0 {
			out = append(out, v)
		}
	}
	return out
}

// String renders the field in crontab notation.
func (f Field) String() string {
	if f == 0 {
		return "*"
	}
	vals := f.Values()
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ",")
}

// Calendar fires on wall-clock instants whose minute, hour and weekday all
// match their fields. Pinned fields combine with AND.
type Calendar struct {
	Minute    Field
	Hour      Field
	DayOfWeek Field // 0 = Sunday

	// Location is the zone the fields are evaluated in. nil means UTC.
	Location *time.Location
}

// Daily returns a calendar trigger firing every day at hour:minute.
func Daily(hour, minute int) Calendar {
	return Calendar{Minute: At(minute), Hour: At(hour)}
}

// Weekly returns a calendar trigger firing on the given weekday at hour:minute.
func Weekly(day time.Weekday, hour, minute int) Calendar {
	return Calendar{Minute: At(minute), Hour: At(hour), DayOfWeek: At(int(day))}
}

// In returns a copy of c evaluated in loc.
func (c Calendar) In(loc *time.Location) Calendar {
	c.Location = loc
	return c
}

func (c Calendar) location() *time.Location {
	if c.Location == nil {
		return time.UTC
	}
	return c.Location
}

// IsDue implements Trigger. A calendar job that has never fired is due only
// when now falls within a matching minute.
func (c Calendar) IsDue(now, lastFired time.Time) bool {
	ref := lastFired
	if ref.IsZero() {
		ref = now.Truncate(time.Minute).Add(-time.Nanosecond)
	}
	next := c.NextAfter(ref)
	return !next.IsZero() && !next.After(now)
}

// NextAfter implements Trigger. It returns the zero time if no instant
// matches, which only happens for fields pinned outside their valid range.
func (c Calendar) NextAfter(ref time.Time) time.Time {
	loc := c.location()
	t := ref.In(loc).Truncate(time.Minute).Add(time.Minute)

	for range maxSearchSteps {
		switch {
		case !c.DayOfWeek.Matches(int(t.Weekday())):
			y, m, d := t.Date()
			t = time.Date(y, m, d+1, 0, 0, 0, 0, loc)
		case !c.Hour.Matches(t.Hour()):
			y, m, d := t.Date()
			next := time.Date(y, m, d, t.Hour()+1, 0, 0, 0, loc)
			if !next.After(t) {
				// DST fold: wall clock repeated the hour.
				next = t.Truncate(time.Hour).Add(time.Hour)
			}
			t = next
		case !c.Minute.Matches(t.Minute()):
			t = t.Add(time.Minute)
		default:
			return t
		}
	}
	return time.Time{}
}

// String implements Trigger.
func (c Calendar) String() string {
	s := "cron(" + c.Minute.String() + " " + c.Hour.String() + " * * " + c.DayOfWeek.String() + ")"
	if c.Location != nil && c.Location != time.UTC {
		s += " " + c.Location.String()
	}
	return s
}
