package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/flemzord/taskmaster/internal/alert"
	"github.com/flemzord/taskmaster/internal/backend"
	"github.com/flemzord/taskmaster/internal/config"
	"github.com/flemzord/taskmaster/internal/core"
	"github.com/flemzord/taskmaster/internal/cron"
	"github.com/flemzord/taskmaster/internal/gateway"
	"github.com/flemzord/taskmaster/internal/metrics"
	"github.com/flemzord/taskmaster/internal/orchestrator"
	"github.com/flemzord/taskmaster/internal/security"
	"github.com/flemzord/taskmaster/internal/store/sqlite"
	"github.com/flemzord/taskmaster/internal/tasks"
	"github.com/flemzord/taskmaster/internal/tracing"
)

// BuildOptions tunes Build. The zero value is production behaviour.
type BuildOptions struct {
	Version   string
	LogOutput io.Writer

	// Logger replaces the logger built from the log section.
	Logger *slog.Logger

	Now   func() time.Time
	NewID func() string
}

// App is a fully wired, not yet started, taskmaster instance.
type App struct {
	Config       *config.Config
	Logger       *slog.Logger
	Redactor     *security.Redactor
	Metrics      *prometheus.Registry
	Tracing      *tracing.Provider
	Archive      *sqlite.Archive // nil when the archive is disabled
	Orchestrator *orchestrator.Orchestrator
	Gateway      *gateway.Gateway

	resources []core.Component
}

// Build assembles every component described by cfg. Nothing is started;
// resources opened along the way are released if a later step fails.
func Build(ctx context.Context, cfg *config.Config, opts BuildOptions) (_ *App, err error) {
	a := &App{Config: cfg, Redactor: NewRedactor(cfg)}
	defer func() {
		if err != nil {
			_ = a.Close(context.WithoutCancel(ctx))
		}
	}()

	a.Logger = opts.Logger
	if a.Logger == nil {
		a.Logger, err = security.NewLogger(defaultOutput(opts.LogOutput), cfg.Log.Level, cfg.Log.Format, a.Redactor)
		if err != nil {
			return nil, fmt.Errorf("app: %w", err)
		}
	}
	logger := a.Logger

	tcfg := cfg.Tracing
	tcfg.ServiceVersion = opts.Version
	a.Tracing, err = tracing.Setup(ctx, tcfg, logger)
	if err != nil {
		return nil, err
	}
	a.resources = append(a.resources, core.Hook{ID: "tracing", OnStop: a.Tracing.Shutdown})

	a.Metrics = prometheus.NewRegistry()
	a.Metrics.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	sink := metrics.NewPrometheusSink(a.Metrics, logger.With("component", "metrics"))

	registry := cron.NewRegistry()
	taskOpts, err := cfg.TaskOptions()
	if err != nil {
		return nil, err
	}
	if err := tasks.Register(registry, backend.New(cfg.Backend), taskOpts); err != nil {
		return nil, fmt.Errorf("app: registering jobs: %w", err)
	}

	var archive orchestrator.Archive
	if cfg.Archive.SQLite.Enabled {
		if err := a.openArchive(ctx, opts.Now); err != nil {
			return nil, err
		}
		archive = a.Archive
	}

	alerts, err := a.alertSinks()
	if err != nil {
		return nil, err
	}

	a.Orchestrator, err = orchestrator.New(orchestrator.Options{
		Registry:       registry,
		TickInterval:   cfg.Scheduler.TickInterval,
		Retention:      cfg.Scheduler.History,
		HealthJob:      cfg.Watchdog.Job,
		Staleness:      cfg.Watchdog.Staleness,
		WatchdogRetry:  cfg.Watchdog.RetryInterval,
		AlertSink:      alerts,
		Metrics:        sink,
		TracerProvider: a.Tracing,
		Archive:        archive,
		Logger:         logger,
		Now:            opts.Now,
		NewID:          opts.NewID,
	})
	if err != nil {
		return nil, err
	}

	a.Gateway, err = gateway.New(cfg.Gateway, gateway.Deps{
		Service:    a.Orchestrator,
		HealthJob:  cfg.Watchdog.Job,
		Registerer: a.Metrics,
		Gatherer:   a.Metrics,
		Logger:     logger.With("component", "gateway"),
		Version:    opts.Version,
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (a *App) openArchive(ctx context.Context, now func() time.Time) error {
	sc := a.Config.Archive.SQLite
	archive, err := sqlite.Open(ctx, sqlite.Config{
		Path:   sc.Path,
		Logger: a.Logger.With("component", "archive"),
	})
	if err != nil {
		return err
	}
	a.Archive = archive
	a.resources = append(a.resources, core.Closer("archive", archive.Close))

	if sc.Retention > 0 {
		if now == nil {
			now = time.Now
		}
		n, err := archive.Prune(ctx, now().Add(-sc.Retention))
		if err != nil {
			return err
		}
		if n > 0 {
			a.Logger.Info("archive: pruned old runs", "count", n, "older_than", sc.Retention)
		}
	}
	return nil
}

// alertSinks builds the configured delivery channels. An empty set is valid:
// alerts are still counted and broadcast on the event stream.
func (a *App) alertSinks() (alert.MultiSink, error) {
	ac := a.Config.Alerts
	var sinks alert.MultiSink

	if ac.LogEnabled() {
		sinks = append(sinks, &alert.LogSink{Logger: a.Logger.With("component", "alert")})
	}
	if ac.Webhook.URL != "" {
		sinks = append(sinks, alert.NewWebhookSink(ac.Webhook.URL, ac.Webhook.Secret, ac.Webhook.Timeout))
	}
	if ac.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     ac.Redis.Addr,
			Password: ac.Redis.Password,
			DB:       ac.Redis.DB,
		})
		a.resources = append(a.resources, core.Closer("redis", client.Close))
		sinks = append(sinks, alert.NewRedisSink(client, ac.Redis.Channel))
	}
	if ac.Telegram.Token != "" {
		tg, err := alert.NewTelegramSink(ac.Telegram.Token, ac.Telegram.ChatID)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, tg)
	}

	a.Logger.Debug("app: alert sinks configured", "count", len(sinks))
	return sinks, nil
}

// Components returns the lifecycle in start order: shared resources, the
// orchestrator, then (optionally) the HTTP gateway.
func (a *App) Components(withGateway bool) []core.Component {
	cs := slices.Clone(a.resources)
	cs = append(cs, a.Orchestrator)
	if withGateway {
		cs = append(cs, a.Gateway)
	}
	return cs
}

// Close releases shared resources for callers that never started the
// lifecycle, such as one-off CLI commands.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	for _, c := range slices.Backward(a.resources) {
		if err := c.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("closing %s: %w", c.Name(), err))
		}
	}
	a.resources = nil
	return errors.Join(errs...)
}

// NewRedactor returns a redactor that knows every secret in cfg.
func NewRedactor(cfg *config.Config) *security.Redactor {
	r := security.NewRedactor()
	r.AddLiteral(
		cfg.Backend.ServiceKey,
		cfg.Alerts.Webhook.Secret,
		cfg.Alerts.Redis.Password,
		cfg.Alerts.Telegram.Token,
		cfg.Gateway.Auth.BearerToken,
		cfg.Gateway.Auth.BasicPass,
	)
	for _, wh := range cfg.Gateway.Webhooks {
		r.AddLiteral(wh.Secret)
	}
	return r
}
