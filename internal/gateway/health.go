package gateway

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/flemzord/taskmaster/internal/cron"
	"github.com/flemzord/taskmaster/internal/history"
	"github.com/flemzord/taskmaster/internal/watchdog"
)

// HealthResponse is the JSON response for GET /health.
type HealthResponse struct {
	Status       string       `json:"status"`
	HealthStatus string       `json:"health_status"`
	LastCheck    *time.Time   `json:"last_check"`
	Run          *history.Run `json:"run,omitempty"`
}

// handleHealth runs the health-check job, waits for it, and reports the
// resulting health. Returns 503 when the system is unhealthy.
func (g *Gateway) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := HealthResponse{Status: "health check completed"}

		run, err := g.deps.Service.RunManually(r.Context(), g.deps.HealthJob)
		switch {
		case errors.Is(err, cron.ErrJobBusy):
			resp.Status = "health check already running"
		case err != nil:
			writeError(w, err)
			return
		default:
			ctx, cancel := context.WithTimeout(r.Context(), g.config.WaitTimeout)
			done, err := g.deps.Service.Wait(ctx, run.ID)
			cancel()
			if err != nil {
				writeError(w, err)
				return
			}
			resp.Run = &done
		}

		st := g.deps.Service.Status()
		resp.HealthStatus = st.HealthStatus
		resp.LastCheck = st.LastHealthCheck

		code := http.StatusOK
		if st.HealthStatus == watchdog.StatusUnhealthy {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, resp)
	}
}
