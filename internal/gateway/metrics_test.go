package gateway

import (
	"net/http"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, Config{}, "healthy", nil)
	env.do(t, http.MethodGet, "/status", nil, nil)
	env.do(t, http.MethodGet, "/jobs/database_cleanup/runs", nil, nil)
	env.do(t, http.MethodGet, "/jobs/nope/runs", nil, nil)

	rr := env.do(t, http.MethodGet, "/metrics", nil, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
	}
	body := rr.Body.String()
	for _, want := range []string{
		`taskmaster_http_requests_total{code="200",method="GET",route="/status"} 1`,
		`taskmaster_http_requests_total{code="200",method="GET",route="/jobs/{name}/runs"} 1`,
		`taskmaster_http_requests_total{code="404",method="GET",route="/jobs/{name}/runs"} 1`,
		`taskmaster_http_request_duration_seconds_count{method="GET",route="/status"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics missing %s", want)
		}
	}
}

func TestMetricsEndpoint_DisabledWithoutGatherer(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, Config{}, "healthy", nil)
	gw, err := New(Config{}, Deps{Service: env.orch, Logger: testLogger()})
	if err != nil {
		t.Fatal(err)
	}
	env.h = gw.Handler()

	if rr := env.do(t, http.MethodGet, "/metrics", nil, nil); rr.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusNotFound)
	}
}

func TestHTTPMetrics_AlreadyRegistered(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	first := newHTTPMetrics(reg, testLogger())
	second := newHTTPMetrics(reg, testLogger())
	if second.requests != first.requests || second.duration != first.duration {
		t.Fatal("second registration did not reuse the existing collectors")
	}
}
