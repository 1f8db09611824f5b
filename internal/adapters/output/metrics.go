package output

import (
	"net/http"
	"runtime"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/xoelrdgz/botradar/internal/domain"
	"github.com/xoelrdgz/botradar/internal/ports"
)

// PrometheusMetrics exports engine, proxy and dispatch metrics.
//
// Implements ports.ClassificationObserver, ports.EngineObserver and
// ports.DecisionSubscriber. Each instance owns its registry so several
// can coexist in one process (tests, replay next to a live proxy).
type PrometheusMetrics struct {
	registry *prometheus.Registry

	classifications  *prometheus.CounterVec
	engineLatency    prometheus.Histogram
	decisions        *prometheus.CounterVec
	evictions        prometheus.Counter
	clockRegressions prometheus.Counter
	backendErrors    prometheus.Counter
	droppedDecisions prometheus.Counter

	inspector ports.ClientInspector
	server    *http.Server
	mu        sync.RWMutex
}

type MetricsConfig struct {
	Port       string
	Path       string
	HealthPath string
}

func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Port:       ":9090",
		Path:       "/metrics",
		HealthPath: "/ready",
	}
}

func NewPrometheusMetrics(namespace string) *PrometheusMetrics {
	if namespace == "" {
		namespace = "botradar"
	}

	m := &PrometheusMetrics{registry: prometheus.NewRegistry()}
	factory := promauto.With(m.registry)

	m.registry.MustRegister(collectors.NewGoCollector())

	m.classifications = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "classifications_total",
		Help:      "Requests classified, by class",
	}, []string{"class"})

	m.engineLatency = factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "classification_duration_seconds",
		Help:      "Time spent in the detection engine per request",
		Buckets:   prometheus.ExponentialBuckets(0.000001, 2, 14),
	})

	m.decisions = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "decisions_total",
		Help:      "Non-good decisions dispatched, by class and source",
	}, []string{"class", "source"})

	m.evictions = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "client_evictions_total",
		Help:      "Clients dropped from the registry to make room",
	})

	m.clockRegressions = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "clock_regressions_total",
		Help:      "Events older than the oldest retained event of their client",
	})

	m.backendErrors = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "backend_errors_total",
		Help:      "Requests the backend failed to serve",
	})

	m.droppedDecisions = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "dropped_decisions_total",
		Help:      "Decisions dropped because the dispatch queue was full",
	})

	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "tracked_clients",
		Help:      "Clients currently held by the registry",
	}, func() float64 {
		m.mu.RLock()
		inspector := m.inspector
		m.mu.RUnlock()
		if inspector == nil {
			return 0
		}
		return float64(inspector.TrackedClients())
	})

	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "memory_bytes",
		Help:      "Current heap allocation in bytes",
	}, func() float64 {
		var ms runtime.MemStats
		runtime.ReadMemStats(&ms)
		return float64(ms.Alloc)
	})

	return m
}

// BindInspector sets the source of the tracked_clients gauge. The engine is
// built after the metrics it reports to, hence the late binding.
func (m *PrometheusMetrics) BindInspector(inspector ports.ClientInspector) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inspector = inspector
}

// Registry returns the registry backing this instance.
func (m *PrometheusMetrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *PrometheusMetrics) ObserveClassification(status domain.ActorStatus, seconds float64) {
	m.classifications.WithLabelValues(string(status.Class)).Inc()
	m.engineLatency.Observe(seconds)
}

func (m *PrometheusMetrics) IncrementBackendErrors() {
	m.backendErrors.Inc()
}

func (m *PrometheusMetrics) OnEviction(string) {
	m.evictions.Inc()
}

func (m *PrometheusMetrics) OnClockRegression(string) {
	m.clockRegressions.Inc()
}

func (m *PrometheusMetrics) OnDecision(decision *domain.Decision) {
	m.decisions.WithLabelValues(string(decision.Class), decision.Source).Inc()
}

func (m *PrometheusMetrics) IncrementDroppedDecisions() {
	m.droppedDecisions.Inc()
}

// Handler returns the scrape handler for this instance's registry.
func (m *PrometheusMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// StartServer serves metrics and, when health is non-nil, the readiness
// endpoint on a dedicated listener.
func (m *PrometheusMetrics) StartServer(config MetricsConfig, health http.Handler) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	mux := http.NewServeMux()
	mux.Handle(config.Path, m.Handler())
	if health != nil && config.HealthPath != "" {
		mux.Handle(config.HealthPath, health)
	}

	m.server = &http.Server{
		Addr:              config.Port,
		Handler:           mux,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}

	server := m.server
	go func() {
		log.Info().Str("addr", config.Port).Str("path", config.Path).Msg("Starting Prometheus metrics server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("Metrics server error")
		}
	}()

	return nil
}

func (m *PrometheusMetrics) StopServer() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.server != nil {
		return m.server.Close()
	}
	return nil
}
