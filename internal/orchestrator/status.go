package orchestrator

import (
	"context"
	"time"

	"github.com/flemzord/taskmaster/internal/cron"
	"github.com/flemzord/taskmaster/internal/history"
)

// Status is the process-level view returned by GET /status.
type Status struct {
	SchedulerRunning bool       `json:"scheduler_running"`
	JobsCount        int        `json:"jobs_count"`
	LastHealthCheck  *time.Time `json:"last_health_check"`
	HealthStatus     string     `json:"health_status"`
	ActiveTasks      int        `json:"active_tasks"`
}

// Status reports scheduler liveness, catalog size, health and active runs.
func (o *Orchestrator) Status() Status {
	snap := o.watchdog.Snapshot()
	return Status{
		SchedulerRunning: o.scheduler.Running(),
		JobsCount:        o.scheduler.Registry().Len(),
		LastHealthCheck:  snap.LastHealthCheck,
		HealthStatus:     snap.Status,
		ActiveTasks:      o.scheduler.State().ActiveCount(),
	}
}

// JobInfo describes one catalog entry.
type JobInfo struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	NextRun   string     `json:"next_run"`
	NextRunAt *time.Time `json:"next_run_at,omitempty"`
	Trigger   string     `json:"trigger"`
	Running   bool       `json:"running"`
	LastFired *time.Time `json:"last_fired,omitempty"`
}

// ListJobs returns every job in registration order.
func (o *Orchestrator) ListJobs() []JobInfo {
	state := o.scheduler.State()
	now := o.scheduler.Now()

	var out []JobInfo
	for job := range o.scheduler.Registry().All() {
		info := JobInfo{
			ID:      job.Name,
			Name:    job.Label(),
			Trigger: job.Trigger.String(),
			NextRun: "never",
		}
		if last := state.LastFired(job.Name); !last.IsZero() {
			info.LastFired = &last
		}
		_, info.Running = state.RunningRun(job.Name)

		if next, err := o.scheduler.NextDue(job.Name); err == nil && !next.IsZero() {
			info.NextRunAt = &next
			info.NextRun = describeNext(next, now)
		}
		out = append(out, info)
	}
	return out
}

func describeNext(next, now time.Time) string {
	if !next.After(now) {
		return "due now"
	}
	return next.Format(time.RFC3339)
}

// Recent returns up to limit runs of job, newest first. In-memory history is
// topped up from the archive when one is configured.
func (o *Orchestrator) Recent(ctx context.Context, job string, limit int) ([]history.Run, error) {
	if _, err := o.scheduler.Registry().Get(job); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 10
	}

	runs := o.scheduler.Tracker().RecentFor(job, limit)
	if o.archive == nil || len(runs) >= limit {
		return runs, nil
	}

	archived, err := o.archive.Recent(ctx, job, limit)
	if err != nil {
		o.logger.Warn("orchestrator: archive lookup failed", "job", job, "error", err)
		return runs, nil
	}
	return mergeRuns(runs, archived, limit), nil
}

// mergeRuns appends archived runs older than the oldest in-memory run,
// skipping ids already present. Both inputs are newest first.
func mergeRuns(live, archived []history.Run, limit int) []history.Run {
	seen := make(map[string]struct{}, len(live))
	for _, r := range live {
		seen[r.ID] = struct{}{}
	}
	out := live
	for _, r := range archived {
		if len(out) >= limit {
			break
		}
		if _, ok := seen[r.ID]; ok {
			continue
		}
		if len(live) > 0 && r.StartedAt.After(live[len(live)-1].StartedAt) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// Summary returns the latest run per job that has run.
func (o *Orchestrator) Summary() []history.JobSummary {
	return o.scheduler.Tracker().Summary()
}

// Job returns the named job.
func (o *Orchestrator) Job(name string) (cron.Job, error) {
	return o.scheduler.Registry().Get(name)
}
