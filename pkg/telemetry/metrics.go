package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is the Prometheus surface of a run. Its methods satisfy the
// observer interfaces of the pipeline packages, so one instance can be
// wired into the orchestrator, the config mutator, the retry runner and
// the subprocess runner. The zero value and a disabled config are no-ops.
type Metrics struct {
	config MetricsConfig

	componentsTotal *prometheus.CounterVec
	runsTotal       *prometheus.CounterVec
	runDuration     *prometheus.HistogramVec

	configEdits   *prometheus.CounterVec
	retryAttempts *prometheus.CounterVec

	commandDuration *prometheus.HistogramVec

	registry *prometheus.Registry
}

// NewMetrics creates a metrics collector with the given configuration.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		return &Metrics{config: cfg}, nil
	}

	namespace := cfg.Namespace
	registry := prometheus.NewRegistry()

	m := &Metrics{
		config:   cfg,
		registry: registry,

		componentsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "components_total",
				Help:      "Components by final state",
			},
			[]string{"state"},
		),
		runsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_total",
				Help:      "Runs by final stage",
			},
			[]string{"final_stage"},
		),
		runDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "run_duration_seconds",
				Help:      "Wall-clock run duration",
				Buckets:   []float64{1, 5, 15, 60, 300, 900, 3600},
			},
			[]string{"final_stage"},
		),
		configEdits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "config_edits_total",
				Help:      "Configuration edits by outcome (applied, noop, rolled_back, rollback_failed)",
			},
			[]string{"outcome"},
		),
		retryAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "retry_attempts_total",
				Help:      "Retry attempts by action",
			},
			[]string{"action"},
		),
		commandDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "command_duration_seconds",
				Help:      "Subprocess durations by tool and result",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"tool", "result"},
		),
	}

	registry.MustRegister(
		m.componentsTotal,
		m.runsTotal,
		m.runDuration,
		m.configEdits,
		m.retryAttempts,
		m.commandDuration,
	)
	return m, nil
}

// ObserveComponent counts a component outcome.
func (m *Metrics) ObserveComponent(state string) {
	if m.componentsTotal == nil {
		return
	}
	m.componentsTotal.WithLabelValues(state).Inc()
}

// ObserveRun counts a finished run with its duration.
func (m *Metrics) ObserveRun(finalStage string, d time.Duration) {
	if m.runsTotal == nil {
		return
	}
	m.runsTotal.WithLabelValues(finalStage).Inc()
	m.runDuration.WithLabelValues(finalStage).Observe(d.Seconds())
}

// ObserveMutation counts a configuration edit outcome.
func (m *Metrics) ObserveMutation(outcome string) {
	if m.configEdits == nil {
		return
	}
	m.configEdits.WithLabelValues(outcome).Inc()
}

// ObserveRetry counts one attempt of a retried action.
func (m *Metrics) ObserveRetry(action string, attempt int) {
	if m.retryAttempts == nil {
		return
	}
	m.retryAttempts.WithLabelValues(action).Inc()
}

// ObserveCommand records a subprocess invocation.
func (m *Metrics) ObserveCommand(tool string, duration time.Duration, success bool) {
	if m.commandDuration == nil {
		return
	}
	result := "ok"
	if !success {
		result = "error"
	}
	m.commandDuration.WithLabelValues(tool, result).Observe(duration.Seconds())
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m.registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// Serve exposes the registry over HTTP when a listen address is
// configured. The server runs until the process exits.
func (m *Metrics) Serve() {
	if !m.config.Enabled || m.config.ListenAddress == "" {
		return
	}

	path := m.config.Path
	if path == "" {
		path = "/metrics"
	}
	mux := http.NewServeMux()
	mux.Handle(path, m.Handler())

	server := &http.Server{
		Addr:              m.config.ListenAddress,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go server.ListenAndServe()
}
