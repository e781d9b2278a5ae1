package gateway

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
)

// buildRouter constructs the chi mux with all routes wired.
func (g *Gateway) buildRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(g.metrics.middleware)
	r.Use(cors.New(cors.Options{
		AllowedOrigins: g.config.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	}).Handler)

	// Read-only surface.
	r.Get("/", g.handleIndex())
	r.Get("/status", g.handleStatus())
	r.Get("/jobs", g.handleListJobs())
	r.Get("/jobs/{name}/runs", g.handleJobRuns())
	r.Get("/runs", g.handleSummary())
	// Each /health call forces a health run.
	r.With(rateLimitMiddleware(g.healthLimiter)).Get("/health", g.handleHealth())
	r.Get("/dashboard", g.handleDashboard())
	r.Get("/ws/events", g.handleEvents())
	if g.deps.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(g.deps.Gatherer, promhttp.HandlerOpts{}))
	}

	// Manual runs: rate limited, and authenticated when auth is configured.
	r.Group(func(r chi.Router) {
		r.Use(rateLimitMiddleware(g.limiter))
		if g.config.Auth.IsConfigured() {
			r.Use(authMiddleware(g.config.Auth, g.logger))
		}
		r.Post("/run/{name}", g.handleRun())
	})

	// Webhooks carry their own HMAC auth per source.
	r.With(rateLimitMiddleware(g.limiter)).Post("/webhooks/{source}", g.webhooks.ServeHTTP)

	return r
}
