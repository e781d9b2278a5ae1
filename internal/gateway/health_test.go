package gateway

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/flemzord/taskmaster/internal/cron"
	"github.com/flemzord/taskmaster/internal/cron/crontest"
	"github.com/flemzord/taskmaster/internal/history"
	"github.com/flemzord/taskmaster/internal/orchestrator"
	"github.com/flemzord/taskmaster/internal/trigger"
)

func TestHealth(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status string
		code   int
	}{
		{"healthy", http.StatusOK},
		{"degraded", http.StatusOK},
		{"unhealthy", http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			t.Parallel()

			env := newTestEnv(t, Config{}, tt.status, nil)
			rr := env.do(t, http.MethodGet, "/health", nil, nil)
			if rr.Code != tt.code {
				t.Fatalf("code = %d, want %d", rr.Code, tt.code)
			}

			resp := decode[HealthResponse](t, rr)
			if resp.HealthStatus != tt.status {
				t.Errorf("health_status = %q, want %q", resp.HealthStatus, tt.status)
			}
			if resp.Status != "health check completed" {
				t.Errorf("status = %q", resp.Status)
			}
			if resp.LastCheck == nil || !resp.LastCheck.Equal(t0) {
				t.Errorf("last_check = %v, want %v", resp.LastCheck, t0)
			}
			if resp.Run == nil || resp.Run.Status != history.StatusCompleted {
				t.Errorf("run = %+v, want completed", resp.Run)
			}
		})
	}
}

func TestHealth_FailedCheckIsUnhealthy(t *testing.T) {
	t.Parallel()

	jobs := cron.NewRegistry()
	if err := jobs.Register(cron.Job{
		Name:    "health_check",
		Trigger: trigger.Every(5 * time.Minute),
		Action:  crontest.Fail("health check failed: HTTP 502"),
	}); err != nil {
		t.Fatal(err)
	}
	orch, err := orchestrator.New(orchestrator.Options{Registry: jobs, Logger: testLogger()})
	if err != nil {
		t.Fatal(err)
	}
	gw, err := New(Config{}, Deps{Service: orch, Logger: testLogger()})
	if err != nil {
		t.Fatal(err)
	}
	env := &testEnv{gw: gw, orch: orch, h: gw.Handler()}

	rr := env.do(t, http.MethodGet, "/health", nil, nil)
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("code = %d, want %d", rr.Code, http.StatusServiceUnavailable)
	}
	resp := decode[HealthResponse](t, rr)
	if resp.HealthStatus != "unhealthy" {
		t.Errorf("health_status = %q, want unhealthy", resp.HealthStatus)
	}
	if resp.Run == nil || resp.Run.Error != "health check failed: HTTP 502" {
		t.Errorf("run = %+v", resp.Run)
	}
}

func TestHealth_AlreadyRunning(t *testing.T) {
	t.Parallel()

	gate := crontest.NewGate(cron.Result{Data: map[string]any{"status": "healthy"}}, nil)
	defer gate.Release()

	jobs := cron.NewRegistry()
	if err := jobs.Register(cron.Job{Name: "ping", Trigger: trigger.Every(5 * time.Minute), Action: gate.Action()}); err != nil {
		t.Fatal(err)
	}
	orch, err := orchestrator.New(orchestrator.Options{Registry: jobs, HealthJob: "ping", Logger: testLogger()})
	if err != nil {
		t.Fatal(err)
	}
	gw, err := New(Config{}, Deps{Service: orch, HealthJob: "ping", Logger: testLogger()})
	if err != nil {
		t.Fatal(err)
	}
	env := &testEnv{gw: gw, orch: orch, h: gw.Handler()}

	if rr := env.do(t, http.MethodPost, "/run/ping", nil, nil); rr.Code != http.StatusAccepted {
		t.Fatalf("run: code = %d", rr.Code)
	}
	if !gate.WaitStarted(5 * time.Second) {
		t.Fatal("ping never started")
	}

	rr := env.do(t, http.MethodGet, "/health", nil, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("code = %d, want %d", rr.Code, http.StatusOK)
	}
	resp := decode[HealthResponse](t, rr)
	if resp.Status != "health check already running" || resp.Run != nil {
		t.Errorf("resp = %+v", resp)
	}
	if resp.HealthStatus != "unknown" {
		t.Errorf("health_status = %q, want unknown", resp.HealthStatus)
	}
}

func TestHealth_RateLimited(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, Config{RunRateLimit: time.Hour, RunBurst: 1}, "healthy", nil)

	if rr := env.do(t, http.MethodGet, "/health", nil, nil); rr.Code != http.StatusOK {
		t.Fatalf("first: code = %d, want %d", rr.Code, http.StatusOK)
	}
	if rr := env.do(t, http.MethodGet, "/health", nil, nil); rr.Code != http.StatusTooManyRequests {
		t.Fatalf("second: code = %d, want %d", rr.Code, http.StatusTooManyRequests)
	}
	runs, err := env.orch.Recent(context.Background(), "health_check", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 {
		t.Errorf("health runs = %d, want 1", len(runs))
	}

	// Manual runs draw from a separate budget.
	if rr := env.do(t, http.MethodPost, "/run/database_cleanup", nil, nil); rr.Code != http.StatusAccepted {
		t.Errorf("run: code = %d, want %d", rr.Code, http.StatusAccepted)
	}
}
