package history

import (
	"cmp"
	"slices"
	"sync"
	"time"
)

// Retention bounds how much history the tracker keeps per job. A zero field
// disables that bound.
type Retention struct {
	// MaxRuns keeps at most this many runs per job. Default: 50.
	MaxRuns int `yaml:"max_runs"`

	// MaxAge drops terminal runs that completed longer ago than this.
	MaxAge time.Duration `yaml:"max_age"`
}

// DefaultRetention is used when the tracker is built with a zero Retention.
var DefaultRetention = Retention{MaxRuns: 50}

// JobSummary is the latest known outcome of a job.
type JobSummary struct {
	Job       string    `json:"job"`
	RunID     string    `json:"run_id"`
	Status    Status    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Error     string    `json:"error,omitempty"`
}

// Tracker is an in-memory, bounded store of runs keyed by run id. It is a
// cache for status queries, not a source of truth for scheduling.
type Tracker struct {
	retention Retention
	now       func() time.Time

	mu    sync.RWMutex
	byJob map[string][]Run // oldest first
	jobOf map[string]string
}

// NewTracker creates a tracker with the given retention policy.
func NewTracker(r Retention) *Tracker {
	if r.MaxRuns <= 0 && r.MaxAge <= 0 {
		r = DefaultRetention
	}
	return &Tracker{
		retention: r,
		now:       time.Now,
		byJob:     make(map[string][]Run),
		jobOf:     make(map[string]string),
	}
}

// Record inserts a new run or replaces the stored copy with the same id.
func (t *Tracker) Record(r Run) {
	t.mu.Lock()
	defer t.mu.Unlock()

	runs := t.byJob[r.Job]
	if _, ok := t.jobOf[r.ID]; ok {
		for i := range runs {
			if runs[i].ID == r.ID {
				runs[i] = r
				break
			}
		}
	} else {
		runs = append(runs, r)
		t.jobOf[r.ID] = r.Job
	}
	t.byJob[r.Job] = t.evict(runs)
}

// evict drops the oldest runs beyond retention. In-flight runs are never
// dropped by age. Caller holds t.mu.
func (t *Tracker) evict(runs []Run) []Run {
	if t.retention.MaxAge > 0 {
		cutoff := t.now().Add(-t.retention.MaxAge)
		kept := runs[:0]
		for _, r := range runs {
			if r.CompletedAt != nil && r.CompletedAt.Before(cutoff) {
				delete(t.jobOf, r.ID)
				continue
			}
			kept = append(kept, r)
		}
		runs = kept
	}
	if t.retention.MaxRuns > 0 && len(runs) > t.retention.MaxRuns {
		drop := len(runs) - t.retention.MaxRuns
		for _, r := range runs[:drop] {
			delete(t.jobOf, r.ID)
		}
		runs = slices.Clone(runs[drop:])
	}
	return runs
}

// Get returns the run with the given id.
func (t *Tracker) Get(id string) (Run, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	job, ok := t.jobOf[id]
	if !ok {
		return Run{}, false
	}
	for _, r := range t.byJob[job] {
		if r.ID == id {
			return r, true
		}
	}
	return Run{}, false
}

// RecentFor returns up to limit runs of job, newest first. A limit <= 0
// returns every retained run.
func (t *Tracker) RecentFor(job string, limit int) []Run {
	t.mu.RLock()
	defer t.mu.RUnlock()

	runs := t.byJob[job]
	n := len(runs)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]Run, 0, n)
	for i := len(runs) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, runs[i])
	}
	return out
}

// Summary returns the latest run of every job that has run, sorted by job name.
func (t *Tracker) Summary() []JobSummary {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]JobSummary, 0, len(t.byJob))
	for job, runs := range t.byJob {
		if len(runs) == 0 {
			continue
		}
		last := runs[len(runs)-1]
		ts := last.StartedAt
		if last.CompletedAt != nil {
			ts = *last.CompletedAt
		}
		out = append(out, JobSummary{
			Job:       job,
			RunID:     last.ID,
			Status:    last.Status,
			Timestamp: ts,
			Error:     last.Error,
		})
	}
	slices.SortFunc(out, func(a, b JobSummary) int {
		return cmp.Compare(a.Job, b.Job)
	})
	return out
}

// ActiveCount returns the number of runs currently in the Running state.
func (t *Tracker) ActiveCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	n := 0
	for _, runs := range t.byJob {
		for _, r := range runs {
			if r.Status == StatusRunning {
				n++
			}
		}
	}
	return n
}
