package gateway

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/flemzord/taskmaster/internal/cron"
	"github.com/flemzord/taskmaster/internal/history"
	"github.com/flemzord/taskmaster/internal/orchestrator"
)

const maxRunsLimit = 500

var errBadRequest = errors.New("gateway: bad request")

type errorResponse struct {
	Error string `json:"error"`
}

// runResponse is returned by POST /run/{name}.
type runResponse struct {
	Message string      `json:"message"`
	Run     history.Run `json:"run"`
}

// statusFor maps orchestrator errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, cron.ErrJobNotFound):
		return http.StatusNotFound
	case errors.Is(err, cron.ErrJobBusy):
		return http.StatusConflict
	case errors.Is(err, cron.ErrStopped):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), errorResponse{Error: err.Error()})
}

func (g *Gateway) handleListJobs() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		jobs := g.deps.Service.ListJobs()
		if jobs == nil {
			jobs = []orchestrator.JobInfo{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"jobs": jobs})
	}
}

func (g *Gateway) handleJobRuns() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 10
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 || n > maxRunsLimit {
				writeJSON(w, http.StatusBadRequest, errorResponse{Error: "limit must be between 1 and 500"})
				return
			}
			limit = n
		}

		runs, err := g.deps.Service.Recent(r.Context(), chi.URLParam(r, "name"), limit)
		if err != nil {
			writeError(w, err)
			return
		}
		if runs == nil {
			runs = []history.Run{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
	}
}

func (g *Gateway) handleSummary() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"jobs": g.deps.Service.Summary()})
	}
}

// handleRun starts a job. With ?wait=true it blocks until the run is
// terminal or WaitTimeout elapses.
func (g *Gateway) handleRun() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "name")
		run, err := g.deps.Service.RunManually(r.Context(), name)
		if err != nil {
			writeError(w, err)
			return
		}

		if wait, _ := strconv.ParseBool(r.URL.Query().Get("wait")); !wait {
			writeJSON(w, http.StatusAccepted, runResponse{Message: "Job " + name + " started", Run: run})
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), g.config.WaitTimeout)
		defer cancel()
		done, err := g.deps.Service.Wait(ctx, run.ID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, runResponse{Message: "Job " + name + " " + string(done.Status), Run: done})
	}
}
