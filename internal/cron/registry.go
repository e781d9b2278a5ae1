package cron

import (
	"fmt"
	"iter"
	"sync"
)

// Registry holds the job catalog in registration order. Jobs are added at
// startup; once sealed the registry is read-only.
type Registry struct {
	mu     sync.RWMutex
	jobs   []Job
	index  map[string]int
	sealed bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{index: make(map[string]int)}
}

// Register adds a job. Fails with ErrDuplicateJobName if the name is taken.
func (r *Registry) Register(j Job) error {
	if err := j.validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sealed {
		return fmt.Errorf("%w: cannot add %q", ErrRegistrySealed, j.Name)
	}
	if _, exists := r.index[j.Name]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateJobName, j.Name)
	}

	r.index[j.Name] = len(r.jobs)
	r.jobs = append(r.jobs, j)
	return nil
}

// Get returns the job with the given name.
func (r *Registry) Get(name string) (Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	i, ok := r.index[name]
	if !ok {
		return Job{}, fmt.Errorf("%w: %q", ErrJobNotFound, name)
	}
	return r.jobs[i], nil
}

// All yields every job in registration order. Each iteration walks a
// snapshot taken when it begins.
func (r *Registry) All() iter.Seq[Job] {
	return func(yield func(Job) bool) {
		r.mu.RLock()
		jobs := r.jobs
		r.mu.RUnlock()

		for _, j := range jobs {
			if !yield(j) {
				return
			}
		}
	}
}

// Len returns the number of registered jobs.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.jobs)
}

// Seal makes the registry read-only.
func (r *Registry) Seal() {
	r.mu.Lock()
	r.sealed = true
	r.mu.Unlock()
}
