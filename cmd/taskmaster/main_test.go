package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/kardianos/service"

	"github.com/flemzord/taskmaster/internal/config"
	"github.com/flemzord/taskmaster/internal/history"
	"github.com/flemzord/taskmaster/internal/security"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := rootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func writeTestConfig(t *testing.T, backendURL string) string {
	t.Helper()
	t.Setenv("PORT", "")
	content := `version: "1"
log:
  level: error
backend:
  url: ` + backendURL + `
  service_key: cli-test-service-key
alerts:
  log: false
gateway:
  bind: 127.0.0.1:0
  auth:
    bearer_token: cli-test-bearer
`
	path := filepath.Join(t.TempDir(), "taskmaster.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func healthyBackend(t *testing.T) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"healthy"}`))
	}))
	t.Cleanup(srv.Close)
	return srv.URL
}

func TestVersionCmd(t *testing.T) {
	t.Parallel()

	out, err := execute(t, "version")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out, "taskmaster dev (commit: none") {
		t.Errorf("output = %q", out)
	}
}

func TestConfigCheck(t *testing.T) {
	path := writeTestConfig(t, "https://backend.example.com")

	out, err := execute(t, "config", "check", path)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if !strings.Contains(out, "Configuration OK") || !strings.Contains(out, "database_cleanup") {
		t.Errorf("output = %q", out)
	}
	if !strings.Contains(out, "0 2 * * *") {
		t.Errorf("default schedule missing: %q", out)
	}
}

func TestConfigCheck_Invalid(t *testing.T) {
	t.Setenv("PORT", "")
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("version: \"1\"\njobs:\n  nope: {}\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := execute(t, "config", "check", path); err == nil {
		t.Fatal("expected unknown job error")
	}
}

func TestConfigShow_RedactsSecrets(t *testing.T) {
	path := writeTestConfig(t, "https://backend.example.com")

	out, err := execute(t, "config", "show", "--config", path)
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	for _, secret := range []string{"cli-test-service-key", "cli-test-bearer"} {
		if strings.Contains(out, secret) {
			t.Errorf("secret %q printed:\n%s", secret, out)
		}
	}
	if !strings.Contains(out, security.RedactPlaceholder) {
		t.Errorf("placeholder missing:\n%s", out)
	}
	if !strings.Contains(out, "https://backend.example.com") {
		t.Errorf("non-secret value missing:\n%s", out)
	}
}

func TestConfigInit(t *testing.T) {
	t.Setenv("TASKMASTER_BACKEND_URL", "https://backend.example.com")
	t.Setenv("PORT", "")
	path := filepath.Join(t.TempDir(), "nested", "taskmaster.yaml")

	out, err := execute(t, "config", "init", "--yes", "--output", path)
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	if !strings.Contains(out, "Authorization: Bearer ") {
		t.Errorf("token not reported: %q", out)
	}

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load generated config: %v", err)
	}
	if err := config.Validate(cfg); err != nil {
		t.Fatalf("generated config invalid: %v", err)
	}
	if cfg.Gateway.Auth.BearerToken == "" {
		t.Error("bearer token not written")
	}
	if cfg.Backend.URL != "https://backend.example.com" {
		t.Errorf("backend url = %q", cfg.Backend.URL)
	}

	if _, err := execute(t, "config", "init", "--yes", "--output", path); err == nil {
		t.Error("expected refusal to overwrite")
	}
	if _, err := execute(t, "config", "init", "--yes", "--force", "--output", path); err != nil {
		t.Errorf("--force: %v", err)
	}
}

func TestRenderConfig(t *testing.T) {
	t.Parallel()

	ans := defaultAnswers()
	ans.BackendURL = "https://backend.example.com"
	ans.WebhookURL = "https://hooks.example.com/alerts"
	ans.Archive = true

	data, err := renderConfig(ans, "")
	if err != nil {
		t.Fatal(err)
	}
	cfg, err := config.Parse(data)
	if err != nil {
		t.Fatalf("Parse: %v\n%s", err, data)
	}
	if cfg.Alerts.Webhook.URL != ans.WebhookURL {
		t.Errorf("webhook = %q", cfg.Alerts.Webhook.URL)
	}
	if !cfg.Archive.SQLite.Enabled {
		t.Error("archive should be enabled")
	}
	if cfg.Gateway.Auth.BearerToken != "" {
		t.Error("no token was requested")
	}
}

func TestValidateBackendURL(t *testing.T) {
	t.Parallel()

	tests := map[string]bool{
		"https://backend.example.com": true,
		"${TASKMASTER_BACKEND_URL}":   true,
		"":                            false,
		"ftp://backend":               false,
		"backend.example.com":         false,
	}
	for in, ok := range tests {
		if err := validateBackendURL(in); (err == nil) != ok {
			t.Errorf("validateBackendURL(%q) = %v, want ok=%v", in, err, ok)
		}
	}
}

func TestJobsCmd(t *testing.T) {
	path := writeTestConfig(t, "https://backend.example.com")

	out, err := execute(t, "jobs", "--config", path)
	if err != nil {
		t.Fatalf("jobs: %v", err)
	}
	for _, want := range []string{"ID", "health_check", "System Health Check", "cost_monitoring"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestRunCmd_Wait(t *testing.T) {
	path := writeTestConfig(t, healthyBackend(t))

	out, err := execute(t, "run", "health_check", "--wait", "--config", path)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	var run history.Run
	if err := json.Unmarshal([]byte(out), &run); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if run.Status != history.StatusCompleted || run.Job != "health_check" {
		t.Errorf("run = %+v", run)
	}
}

func TestRunCmd_Failure(t *testing.T) {
	// Nothing listens on this backend, so the health check fails.
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	path := writeTestConfig(t, srv.URL)

	out, err := execute(t, "run", "health_check", "--config", path)
	if err == nil {
		t.Fatal("expected failed run to return an error")
	}
	if !strings.HasPrefix(out, "Job health_check started") {
		t.Errorf("output = %q", out)
	}
}

func TestRunCmd_UnknownJob(t *testing.T) {
	path := writeTestConfig(t, "https://backend.example.com")

	if _, err := execute(t, "run", "nope", "--config", path); err == nil {
		t.Fatal("expected job not found")
	}
}

func TestArchiveCmd_Disabled(t *testing.T) {
	path := writeTestConfig(t, "https://backend.example.com")

	_, err := execute(t, "archive", "stats", "--config", path)
	if err == nil || !strings.Contains(err.Error(), "not enabled") {
		t.Fatalf("err = %v, want not enabled", err)
	}
}

func TestServiceConfig(t *testing.T) {
	t.Parallel()

	sc, err := serviceConfig("taskmaster.yaml")
	if err != nil {
		t.Fatal(err)
	}
	if sc.Name != "taskmaster" {
		t.Errorf("name = %q", sc.Name)
	}
	if len(sc.Arguments) != 4 || sc.Arguments[0] != "service" || sc.Arguments[1] != "run" {
		t.Fatalf("arguments = %v", sc.Arguments)
	}
	if !filepath.IsAbs(sc.Arguments[3]) {
		t.Errorf("config path should be absolute: %q", sc.Arguments[3])
	}

	if got := statusText(service.StatusRunning); got != "running" {
		t.Errorf("statusText = %q", got)
	}
	if got := statusText(service.StatusUnknown); got != "unknown" {
		t.Errorf("statusText = %q", got)
	}
}

func TestProgram_StartStop(t *testing.T) {
	path := writeTestConfig(t, healthyBackend(t))

	prg := &program{params: runParams(path)}
	prg.params.LogOutput = io.Discard
	if err := prg.Start(nil); err != nil {
		t.Fatal(err)
	}
	time.Sleep(200 * time.Millisecond)
	if err := prg.Stop(nil); err != nil {
		t.Errorf("Stop: %v", err)
	}
}
