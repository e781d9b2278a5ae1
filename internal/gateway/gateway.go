// Package gateway exposes the orchestrator over HTTP: status and job
// listings, manual runs, a human dashboard, Prometheus metrics and a live
// websocket event stream. It performs no scheduling itself.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/flemzord/taskmaster/internal/events"
	"github.com/flemzord/taskmaster/internal/history"
	"github.com/flemzord/taskmaster/internal/orchestrator"
)

// Service is the orchestrator surface the gateway presents.
type Service interface {
	Status() orchestrator.Status
	ListJobs() []orchestrator.JobInfo
	Summary() []history.JobSummary
	Recent(ctx context.Context, job string, limit int) ([]history.Run, error)
	RunManually(ctx context.Context, name string) (history.Run, error)
	Wait(ctx context.Context, runID string) (history.Run, error)
	Events() *events.Hub
}

var _ Service = (*orchestrator.Orchestrator)(nil)

// Deps are the collaborators of a Gateway.
type Deps struct {
	Service Service

	// HealthJob is run by GET /health. Default "health_check".
	HealthJob string

	// Registerer receives the HTTP metrics; Gatherer backs GET /metrics.
	// Either may be nil.
	Registerer prometheus.Registerer
	Gatherer   prometheus.Gatherer

	Logger  *slog.Logger
	Version string
}

// Gateway is the HTTP server.
//
// limiter guards manual runs and webhooks. healthLimiter guards /health with
// the same rate but its own budget, so health polling cannot starve runs.
type Gateway struct {
	config        Config
	deps          Deps
	logger        *slog.Logger
	limiter       *rate.Limiter
	healthLimiter *rate.Limiter
	webhooks      *WebhookDispatcher
	metrics       *httpMetrics
	startedAt     time.Time

	mu     sync.Mutex
	server *http.Server
	addr   net.Addr
	cancel context.CancelFunc // ends hijacked websocket streams
}

// New creates a gateway. Call Start to listen.
func New(cfg Config, deps Deps) (*Gateway, error) {
	if deps.Service == nil {
		return nil, errors.New("gateway: nil Service")
	}
	cfg.Defaults()
	if _, err := net.ResolveTCPAddr("tcp", cfg.Bind); err != nil {
		return nil, fmt.Errorf("gateway: invalid bind address %q: %w", cfg.Bind, err)
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.HealthJob == "" {
		deps.HealthJob = "health_check"
	}

	g := &Gateway{
		config:        cfg,
		deps:          deps,
		logger:        deps.Logger,
		limiter:       rate.NewLimiter(rate.Every(cfg.RunRateLimit), cfg.RunBurst),
		healthLimiter: rate.NewLimiter(rate.Every(cfg.RunRateLimit), cfg.RunBurst),
		metrics:       newHTTPMetrics(deps.Registerer, deps.Logger),
		startedAt:     time.Now(),
	}
	g.webhooks = NewWebhookDispatcher(g.logger)
	for source, wh := range cfg.Webhooks {
		g.webhooks.Register(source, &runTrigger{svc: deps.Service, allowed: wh.Jobs}, wh.Secret)
		g.logger.Info("gateway: webhook source configured", "source", source, "signed", wh.Secret != "")
	}
	return g, nil
}

// Name identifies the component in lifecycle logs.
func (g *Gateway) Name() string { return "gateway" }

// Handler returns the fully wired router.
func (g *Gateway) Handler() http.Handler {
	return g.buildRouter()
}

// Start listens on the configured address and serves in the background.
func (g *Gateway) Start(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.server != nil {
		return errors.New("gateway: already started")
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", g.config.Bind)
	if err != nil {
		return fmt.Errorf("gateway: listen failed: %w", err)
	}

	baseCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	g.cancel = cancel
	g.startedAt = time.Now()
	g.addr = ln.Addr()
	g.server = &http.Server{
		Handler:           g.buildRouter(),
		ReadTimeout:       g.config.ReadTimeout,
		ReadHeaderTimeout: g.config.ReadTimeout,
		WriteTimeout:      g.config.WriteTimeout,
		BaseContext:       func(net.Listener) context.Context { return baseCtx },
	}

	srv := g.server
	go func() {
		g.logger.Info("gateway: listening", "addr", ln.Addr().String())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			g.logger.Error("gateway: serve error", "error", err)
		}
	}()
	return nil
}

// Addr returns the bound address once started.
func (g *Gateway) Addr() net.Addr {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.addr
}

// Stop shuts the server down gracefully within the configured timeout.
func (g *Gateway) Stop(ctx context.Context) error {
	g.mu.Lock()
	srv, streams := g.server, g.cancel
	g.server, g.cancel = nil, nil
	g.mu.Unlock()

	if srv == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, g.config.ShutdownTimeout)
	defer cancel()

	g.logger.Info("gateway: shutting down")
	err := srv.Shutdown(shutdownCtx)
	streams()
	return err
}
