package orchestrator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/flemzord/taskmaster/internal/alert"
	"github.com/flemzord/taskmaster/internal/cron"
	"github.com/flemzord/taskmaster/internal/cron/crontest"
	"github.com/flemzord/taskmaster/internal/events"
	"github.com/flemzord/taskmaster/internal/history"
	"github.com/flemzord/taskmaster/internal/trigger"
)

var t0 = time.Date(2026, 2, 4, 10, 30, 0, 0, time.UTC)

type memArchive struct {
	mu   sync.Mutex
	runs []history.Run
}

func (a *memArchive) Hook() func(history.Run) {
	return func(r history.Run) {
		if !r.Status.Terminal() {
			return
		}
		a.mu.Lock()
		a.runs = append(a.runs, r)
		a.mu.Unlock()
	}
}

func (a *memArchive) Recent(_ context.Context, job string, limit int) ([]history.Run, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []history.Run
	for i := len(a.runs) - 1; i >= 0 && len(out) < limit; i-- {
		if a.runs[i].Job == job {
			out = append(out, a.runs[i])
		}
	}
	return out, nil
}

type fixture struct {
	orch    *Orchestrator
	clock   *crontest.Clock
	archive *memArchive
	sink    *recordingSink
}

type recordingSink struct {
	mu     sync.Mutex
	events []alert.Event
}

func (s *recordingSink) Deliver(_ context.Context, ev alert.Event) error {
	s.mu.Lock()
	s.events = append(s.events, ev)
	s.mu.Unlock()
	return nil
}

func (s *recordingSink) Events() []alert.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]alert.Event(nil), s.events...)
}

func newFixture(t *testing.T, health cron.Action) *fixture {
	t.Helper()

	reg := cron.NewRegistry()
	jobs := []cron.Job{
		{Name: "health_check", DisplayName: "System Health Check", Trigger: trigger.Every(5 * time.Minute), Action: health},
		{Name: "database_cleanup", DisplayName: "Database Cleanup", Trigger: trigger.Daily(2, 0), Action: crontest.Fail("timeout")},
	}
	for _, j := range jobs {
		if err := reg.Register(j); err != nil {
			t.Fatal(err)
		}
	}

	f := &fixture{
		clock:   crontest.NewClock(t0),
		archive: &memArchive{},
		sink:    &recordingSink{},
	}
	orch, err := New(Options{
		Registry:  reg,
		Retention: history.Retention{MaxRuns: 2},
		AlertSink: f.sink,
		Archive:   f.archive,
		Now:       f.clock.Now,
		NewID:     crontest.SequentialIDs("run"),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	f.orch = orch
	return f
}

func (f *fixture) run(t *testing.T, job string) history.Run {
	t.Helper()
	r, err := f.orch.RunManually(context.Background(), job)
	if err != nil {
		t.Fatalf("RunManually(%s): %v", job, err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	done, err := f.orch.Wait(ctx, r.ID)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	return done
}

func TestNew_Validation(t *testing.T) {
	t.Parallel()

	if _, err := New(Options{}); err == nil {
		t.Error("expected error for nil registry")
	}

	reg := cron.NewRegistry()
	_ = reg.Register(cron.Job{Name: "ping", Trigger: trigger.Every(time.Minute), Action: crontest.Succeed(nil)})
	if _, err := New(Options{Registry: reg}); !errors.Is(err, cron.ErrJobNotFound) {
		t.Errorf("err = %v, want ErrJobNotFound for missing health job", err)
	}
	if _, err := New(Options{Registry: reg, HealthJob: "ping"}); err != nil {
		t.Errorf("custom health job: %v", err)
	}
}

func TestStatus_BeforeAndAfterHealthCheck(t *testing.T) {
	t.Parallel()

	f := newFixture(t, crontest.Succeed(map[string]any{"status": "degraded"}))

	st := f.orch.Status()
	if st.SchedulerRunning || st.JobsCount != 2 || st.ActiveTasks != 0 {
		t.Errorf("initial status = %+v", st)
	}
	if st.HealthStatus != "unknown" || st.LastHealthCheck != nil {
		t.Errorf("initial health = %q %v", st.HealthStatus, st.LastHealthCheck)
	}

	f.run(t, "health_check")

	st = f.orch.Status()
	if st.HealthStatus != "degraded" {
		t.Errorf("health = %q, want degraded", st.HealthStatus)
	}
	if st.LastHealthCheck == nil || !st.LastHealthCheck.Equal(t0) {
		t.Errorf("last health check = %v, want %v", st.LastHealthCheck, t0)
	}
}

func TestStatus_FailedHealthCheckIsUnhealthy(t *testing.T) {
	t.Parallel()

	f := newFixture(t, crontest.Fail("health check failed: HTTP 503"))
	f.run(t, "health_check")

	st := f.orch.Status()
	if st.HealthStatus != "unhealthy" {
		t.Errorf("health = %q, want unhealthy", st.HealthStatus)
	}
	if st.LastHealthCheck != nil {
		t.Errorf("last health check = %v, want nil after failure", st.LastHealthCheck)
	}
}

func TestListJobs(t *testing.T) {
	t.Parallel()

	gate := crontest.NewGate(cron.Result{}, nil)
	f := newFixture(t, gate.Action())
	defer gate.Release()

	jobs := f.orch.ListJobs()
	if len(jobs) != 2 || jobs[0].ID != "health_check" || jobs[1].ID != "database_cleanup" {
		t.Fatalf("jobs = %+v", jobs)
	}
	if jobs[0].Name != "System Health Check" {
		t.Errorf("name = %q", jobs[0].Name)
	}
	if jobs[0].NextRun != "due now" {
		t.Errorf("never-fired interval next = %q, want due now", jobs[0].NextRun)
	}
	if jobs[1].NextRun != "2026-02-05T02:00:00Z" {
		t.Errorf("calendar next = %q", jobs[1].NextRun)
	}

	if _, err := f.orch.RunManually(context.Background(), "health_check"); err != nil {
		t.Fatal(err)
	}
	if !gate.WaitStarted(5 * time.Second) {
		t.Fatal("health check never started")
	}
	jobs = f.orch.ListJobs()
	if !jobs[0].Running || jobs[0].LastFired == nil {
		t.Errorf("running job = %+v", jobs[0])
	}
	if jobs[0].NextRun != "2026-02-04T10:35:00Z" {
		t.Errorf("next after fire = %q", jobs[0].NextRun)
	}
	if st := f.orch.Status(); st.ActiveTasks != 1 {
		t.Errorf("active tasks = %d, want 1", st.ActiveTasks)
	}
	if _, err := f.orch.RunManually(context.Background(), "health_check"); !errors.Is(err, cron.ErrJobBusy) {
		t.Errorf("second run err = %v, want ErrJobBusy", err)
	}
}

func TestFailedRun_PublishesAlertAndRunEvents(t *testing.T) {
	t.Parallel()

	f := newFixture(t, crontest.Succeed(nil))
	ch, unsubscribe := f.orch.Events().Subscribe(8)
	defer unsubscribe()

	run := f.run(t, "database_cleanup")
	if run.Status != history.StatusFailed || run.Error != "timeout" {
		t.Fatalf("run = %+v", run)
	}

	var kinds []string
	for len(kinds) < 3 {
		select {
		case ev := <-ch:
			kinds = append(kinds, ev.Kind)
			if ev.Kind == events.KindAlert && ev.Alert.Type != "database_cleanup_failed" {
				t.Errorf("alert type = %q", ev.Alert.Type)
			}
		case <-time.After(time.Second):
			t.Fatalf("events = %v, want run, alert, run", kinds)
		}
	}
	want := []string{events.KindRun, events.KindAlert, events.KindRun}
	for i := range want {
		if kinds[i] != want[i] {
			t.Fatalf("event order = %v, want %v", kinds, want)
		}
	}

	if got := f.sink.Events(); len(got) != 1 || got[0].Message != "timeout" {
		t.Errorf("sink = %+v", got)
	}

	sum := f.orch.Summary()
	if len(sum) != 1 || sum[0].Job != "database_cleanup" || sum[0].Status != history.StatusFailed {
		t.Errorf("summary = %+v", sum)
	}
}

func TestRecent_TopsUpFromArchive(t *testing.T) {
	t.Parallel()

	f := newFixture(t, crontest.Succeed(nil))
	var ids []string
	for range 4 {
		ids = append(ids, f.run(t, "health_check").ID)
		f.clock.Advance(time.Minute)
	}

	// Tracker retention is 2; the archive holds all four.
	runs, err := f.orch.Recent(context.Background(), "health_check", 4)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(runs) != 4 {
		t.Fatalf("runs = %d, want 4", len(runs))
	}
	for i, r := range runs {
		if want := ids[len(ids)-1-i]; r.ID != want {
			t.Errorf("runs[%d] = %s, want %s", i, r.ID, want)
		}
	}

	if _, err := f.orch.Recent(context.Background(), "nope", 1); !errors.Is(err, cron.ErrJobNotFound) {
		t.Errorf("unknown job err = %v", err)
	}
}

func TestStartShutdown(t *testing.T) {
	t.Parallel()

	f := newFixture(t, crontest.Succeed(map[string]any{"status": "healthy"}))
	ctx := context.Background()

	if err := f.orch.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !f.orch.Status().SchedulerRunning {
		t.Error("scheduler_running = false after Start")
	}

	sctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := f.orch.Shutdown(sctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if f.orch.Status().SchedulerRunning {
		t.Error("scheduler_running = true after Shutdown")
	}
}
