package trigger

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// ErrInvalidSchedule is returned when a schedule expression cannot be
// represented as a Trigger.
var ErrInvalidSchedule = errors.New("trigger: invalid schedule")

// starBit is the marker robfig/cron sets on fields written as "*".
const starBit = 1 << 63

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Parse converts a schedule expression into a Trigger once, at registration
// time. Accepted forms:
//
//	@every 5m            -> Interval
//	0 2 * * *            -> Calendar (minute, hour, day-of-week)
//	@daily, @hourly, ... -> Calendar
//
// A CRON_TZ= or TZ= prefix pins the zone of that expression and takes
// precedence over loc.
//
// Expressions that restrict day-of-month or month are rejected because the
// Calendar variant only models minute, hour and weekday. Calendar triggers
// are evaluated in loc (UTC when nil).
func Parse(expr string, loc *time.Location) (Trigger, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, fmt.Errorf("%w: empty expression", ErrInvalidSchedule)
	}

	sched, err := parser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %w", ErrInvalidSchedule, expr, err)
	}

	switch s := sched.(type) {
	case cron.ConstantDelaySchedule:
		return Interval{Period: s.Delay}, nil
	case *cron.SpecSchedule:
		if s.Dom&starBit == 0 || s.Month&starBit == 0 {
			return nil, fmt.Errorf("%w: %q: day-of-month and month fields must be *", ErrInvalidSchedule, expr)
		}
		cal := Calendar{
			Minute:    specField(s.Minute),
			Hour:      specField(s.Hour),
			DayOfWeek: specField(s.Dow),
		}
		switch {
		case hasZonePrefix(expr):
			cal.Location = s.Location
		case loc != nil:
			cal.Location = loc
		}
		return cal, nil
	default:
		return nil, fmt.Errorf("%w: %q: unsupported schedule type %T", ErrInvalidSchedule, expr, sched)
	}
}

// MustParse is like Parse but panics on error. Intended for static catalogs.
func MustParse(expr string, loc *time.Location) Trigger {
	t, err := Parse(expr, loc)
	if err != nil {
		panic(err)
	}
	return t
}

func hasZonePrefix(expr string) bool {
	return strings.HasPrefix(expr, "CRON_TZ=") || strings.HasPrefix(expr, "TZ=")
}

func specField(b uint64) Field {
	if b&starBit != 0 {
		return Any()
	}
	return Field(b)
}
