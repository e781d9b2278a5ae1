package cron

import (
	"sync"
	"time"
)

// State is the mutable scheduling state owned by one Scheduler: the last
// dispatch time of each job and the run currently holding each job's
// overlap lock. It is discarded with the scheduler.
type State struct {
	mu        sync.Mutex
	lastFired map[string]time.Time
	running   map[string]string // job name -> run id
}

func newState() *State {
	return &State{
		lastFired: make(map[string]time.Time),
		running:   make(map[string]string),
	}
}

// acquire marks job as running under runID and records now as its last
// fire time. The busy check and the mark are one atomic step. Returns false
// without touching lastFired if the job already has a run in flight.
func (s *State) acquire(job, runID string, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, busy := s.running[job]; busy {
		return false
	}
	s.running[job] = runID
	s.lastFired[job] = now
	return true
}

// release frees the overlap lock if runID still holds it.
func (s *State) release(job, runID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running[job] == runID {
		delete(s.running, job)
	}
}

// LastFired returns the last dispatch time of job, or the zero time.
func (s *State) LastFired(job string) time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastFired[job]
}

// RunningRun returns the id of the in-flight run of job, if any.
func (s *State) RunningRun(job string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.running[job]
	return id, ok
}

// ActiveCount returns the number of jobs with a run in flight.
func (s *State) ActiveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.running)
}
