package metrics

import (
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusSink implements Sink using the Prometheus client library.
// Registration errors are logged but never propagated.
type PrometheusSink struct {
	logger *slog.Logger

	ticksTotal    prometheus.Counter
	tickDuration  prometheus.Histogram
	jobsTriggered prometheus.Counter

	runsStarted  *prometheus.CounterVec
	runsFinished *prometheus.CounterVec
	runDuration  *prometheus.HistogramVec
	runsSkipped  *prometheus.CounterVec
	activeRuns   prometheus.Gauge

	alertsTotal        *prometheus.CounterVec
	alertFailuresTotal *prometheus.CounterVec

	watchdogForced *prometheus.CounterVec
}

var _ Sink = (*PrometheusSink)(nil)

// NewPrometheusSink creates a sink whose collectors are registered on reg.
func NewPrometheusSink(reg prometheus.Registerer, logger *slog.Logger) *PrometheusSink {
	if logger == nil {
		logger = slog.Default()
	}
	s := &PrometheusSink{logger: logger}
	s.initSchedulerMetrics(reg)
	s.initRunMetrics(reg)
	s.initAlertMetrics(reg)
	return s
}

func (s *PrometheusSink) initSchedulerMetrics(reg prometheus.Registerer) {
	s.ticksTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "taskmaster_scheduler_ticks_total",
		Help: "Total number of scheduler ticks processed.",
	})
	s.tickDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "taskmaster_scheduler_tick_duration_seconds",
		Help:    "Time spent evaluating triggers in one tick.",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
	})
	s.jobsTriggered = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "taskmaster_scheduler_jobs_triggered_total",
		Help: "Total number of runs dispatched by the tick loop.",
	})

	s.register(reg, s.ticksTotal, "taskmaster_scheduler_ticks_total")
	s.register(reg, s.tickDuration, "taskmaster_scheduler_tick_duration_seconds")
	s.register(reg, s.jobsTriggered, "taskmaster_scheduler_jobs_triggered_total")
}

func (s *PrometheusSink) initRunMetrics(reg prometheus.Registerer) {
	s.runsStarted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "taskmaster_runs_started_total",
		Help: "Total number of job runs started.",
	}, []string{"job", "source"})
	s.runsFinished = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "taskmaster_runs_finished_total",
		Help: "Total number of job runs that reached a terminal state.",
	}, []string{"job", "status"})
	s.runDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "taskmaster_run_duration_seconds",
		Help:    "Job run duration in seconds.",
		Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300, 900},
	}, []string{"job"})
	s.runsSkipped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "taskmaster_runs_skipped_total",
		Help: "Dispatch attempts skipped because the job was already running.",
	}, []string{"job"})
	s.activeRuns = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "taskmaster_active_runs",
		Help: "Number of job runs currently in flight.",
	})

	s.register(reg, s.runsStarted, "taskmaster_runs_started_total")
	s.register(reg, s.runsFinished, "taskmaster_runs_finished_total")
	s.register(reg, s.runDuration, "taskmaster_run_duration_seconds")
	s.register(reg, s.runsSkipped, "taskmaster_runs_skipped_total")
	s.register(reg, s.activeRuns, "taskmaster_active_runs")
}

func (s *PrometheusSink) initAlertMetrics(reg prometheus.Registerer) {
	s.alertsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "taskmaster_alerts_total",
		Help: "Total number of alerts dispatched.",
	}, []string{"type"})
	s.alertFailuresTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "taskmaster_alert_delivery_failures_total",
		Help: "Total number of alerts the sink failed to deliver.",
	}, []string{"type"})
	s.watchdogForced = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "taskmaster_watchdog_forced_runs_total",
		Help: "Manual invocations forced by the health watchdog.",
	}, []string{"job"})

	s.register(reg, s.alertsTotal, "taskmaster_alerts_total")
	s.register(reg, s.alertFailuresTotal, "taskmaster_alert_delivery_failures_total")
	s.register(reg, s.watchdogForced, "taskmaster_watchdog_forced_runs_total")
}

// register attempts to register a collector, logging any errors without propagating them.
func (s *PrometheusSink) register(reg prometheus.Registerer, c prometheus.Collector, name string) {
	if err := reg.Register(c); err != nil {
		s.logger.Warn("metrics: failed to register collector", "name", name, "error", err)
	}
}

func (s *PrometheusSink) TickCompleted(duration time.Duration, dispatched int) {
	s.ticksTotal.Inc()
	s.tickDuration.Observe(duration.Seconds())
	s.jobsTriggered.Add(float64(dispatched))
}

func (s *PrometheusSink) RunStarted(job, source string) {
	s.runsStarted.WithLabelValues(job, source).Inc()
}

func (s *PrometheusSink) RunFinished(job, status string, duration time.Duration) {
	s.runsFinished.WithLabelValues(job, status).Inc()
	s.runDuration.WithLabelValues(job).Observe(duration.Seconds())
}

func (s *PrometheusSink) RunSkipped(job string) {
	s.runsSkipped.WithLabelValues(job).Inc()
}

func (s *PrometheusSink) ActiveRuns(n int) {
	s.activeRuns.Set(float64(n))
}

func (s *PrometheusSink) AlertDispatched(alertType string) {
	s.alertsTotal.WithLabelValues(alertType).Inc()
}

func (s *PrometheusSink) AlertDeliveryFailed(alertType string) {
	s.alertFailuresTotal.WithLabelValues(alertType).Inc()
}

func (s *PrometheusSink) WatchdogForced(job string) {
	s.watchdogForced.WithLabelValues(job).Inc()
}
