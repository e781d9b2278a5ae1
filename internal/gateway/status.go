package gateway

import (
	"encoding/json"
	"net/http"
	"time"
)

// indexResponse is the JSON response for GET /.
type indexResponse struct {
	Service   string            `json:"service"`
	Version   string            `json:"version,omitempty"`
	Status    string            `json:"status"`
	Uptime    int64             `json:"uptime_seconds"`
	Endpoints map[string]string `json:"endpoints"`
}

var endpointIndex = map[string]string{
	"status":    "GET /status",
	"jobs":      "GET /jobs",
	"job_runs":  "GET /jobs/{name}/runs",
	"runs":      "GET /runs",
	"run":       "POST /run/{name}",
	"health":    "GET /health",
	"dashboard": "GET /dashboard",
	"metrics":   "GET /metrics",
	"events":    "GET /ws/events",
}

func (g *Gateway) handleIndex() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, indexResponse{
			Service:   "taskmaster",
			Version:   g.deps.Version,
			Status:    "running",
			Uptime:    int64(time.Since(g.startedAt).Seconds()),
			Endpoints: endpointIndex,
		})
	}
}

// handleStatus returns an http.HandlerFunc for GET /status.
func (g *Gateway) handleStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, g.deps.Service.Status())
	}
}

// writeJSON encodes v as JSON with the given status code.
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
