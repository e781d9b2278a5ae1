package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/flemzord/taskmaster/internal/cron"
	"github.com/flemzord/taskmaster/internal/cron/crontest"
	"github.com/flemzord/taskmaster/internal/history"
	"github.com/flemzord/taskmaster/internal/orchestrator"
	"github.com/flemzord/taskmaster/internal/trigger"
)

var t0 = time.Date(2026, 2, 4, 10, 30, 0, 0, time.UTC)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

type testEnv struct {
	gw   *Gateway
	orch *orchestrator.Orchestrator
	reg  *prometheus.Registry
	h    http.Handler
}

// newTestEnv wires a real orchestrator with a health job returning
// healthStatus, a cleanup job backed by cleanup, and a gateway on top.
func newTestEnv(t *testing.T, cfg Config, healthStatus string, cleanup cron.Action) *testEnv {
	t.Helper()

	if cleanup == nil {
		cleanup = crontest.Succeed(map[string]any{"deleted": 3})
	}

	jobs := cron.NewRegistry()
	for _, j := range []cron.Job{
		{
			Name:        "health_check",
			DisplayName: "System Health Check",
			Trigger:     trigger.Every(5 * time.Minute),
			Action:      crontest.Succeed(map[string]any{"status": healthStatus}),
		},
		{
			Name:        "database_cleanup",
			DisplayName: "Database Cleanup",
			Trigger:     trigger.Daily(2, 0),
			Action:      cleanup,
		},
	} {
		if err := jobs.Register(j); err != nil {
			t.Fatal(err)
		}
	}

	clock := crontest.NewClock(t0)
	orch, err := orchestrator.New(orchestrator.Options{
		Registry:  jobs,
		Retention: history.Retention{MaxRuns: 10},
		Logger:    testLogger(),
		Now:       clock.Now,
		NewID:     crontest.SequentialIDs("run"),
	})
	if err != nil {
		t.Fatalf("orchestrator.New: %v", err)
	}

	reg := prometheus.NewRegistry()
	gw, err := New(cfg, Deps{
		Service:    orch,
		Registerer: reg,
		Gatherer:   reg,
		Logger:     testLogger(),
		Version:    "test",
	})
	if err != nil {
		t.Fatalf("gateway.New: %v", err)
	}
	return &testEnv{gw: gw, orch: orch, reg: reg, h: gw.Handler()}
}

func (e *testEnv) do(t *testing.T, method, path string, body []byte, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	for k, v := range header {
		req.Header[k] = v
	}
	rr := httptest.NewRecorder()
	e.h.ServeHTTP(rr, req)
	return rr
}

// runAndWait triggers job directly on the orchestrator and waits for it.
func (e *testEnv) runAndWait(t *testing.T, job string) history.Run {
	t.Helper()
	run, err := e.orch.RunManually(context.Background(), job)
	if err != nil {
		t.Fatalf("RunManually(%s): %v", job, err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	done, err := e.orch.Wait(ctx, run.ID)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	return done
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rr.Body).Decode(&v); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
	return v
}
