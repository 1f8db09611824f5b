package app

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/xoelrdgz/botradar/internal/adapters/detection"
	"github.com/xoelrdgz/botradar/internal/adapters/output"
	"github.com/xoelrdgz/botradar/internal/adapters/proxy"
	"github.com/xoelrdgz/botradar/internal/domain"
	"github.com/xoelrdgz/botradar/internal/ports"
)

// recentDecisions is the size of the in-memory decision ring served under
// the analytics path.
const recentDecisions = 1000

// NewDetector builds the engine described by cfg: a single DetectionEngine,
// or a ShardedEngine when more than one shard is configured.
func NewDetector(cfg Config, observer ports.EngineObserver) (ports.Detector, error) {
	engineCfg := detection.DefaultEngineConfig()
	engineCfg.Detector = cfg.Detector
	engineCfg.MaxClients = cfg.MaxClients
	engineCfg.MaxEvents = cfg.MaxEvents
	engineCfg.Observer = observer

	if cfg.Shards > 1 {
		engine, err := detection.NewShardedEngine(engineCfg, cfg.Shards)
		if err != nil {
			return nil, err
		}
		return engine, nil
	}
	engine, err := detection.NewDetectionEngine(engineCfg)
	if err != nil {
		return nil, err
	}
	return engine, nil
}

// Service runs the detecting reverse proxy.
//
// Components: detector, request tally, decision dispatcher with its sinks,
// backend with circuit breaker, proxy server and, optionally, the Prometheus
// listener with the readiness endpoint.
type Service struct {
	config     Config
	detector   ports.Detector
	tally      *domain.RequestTally
	runtime    *domain.RuntimeMetrics
	dispatcher *Dispatcher
	recent     *output.MemoryDecisionLog
	metrics    *output.PrometheusMetrics
	health     *output.HealthChecker
	backend    *proxy.Backend
	server     *proxy.Server

	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	running  bool
	stopOnce sync.Once
	mu       sync.RWMutex

	lastTotal uint64
	lastCheck time.Time
}

// NewService wires every component from cfg without starting anything.
//
// Returns:
//   - Configured Service ready for Start()
//   - Error if cfg is invalid or a component cannot be created
func NewService(cfg Config) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Service{
		config:  cfg,
		tally:   domain.NewRequestTally(),
		runtime: domain.NewRuntimeMetrics(),
		recent:  output.NewMemoryDecisionLog(recentDecisions),
	}

	var engineObserver ports.EngineObserver
	var classObserver ports.ClassificationObserver
	if cfg.MetricsEnabled {
		s.metrics = output.NewPrometheusMetrics("botradar")
		engineObserver = s.metrics
		classObserver = s.metrics
	}

	detector, err := NewDetector(cfg, engineObserver)
	if err != nil {
		return nil, err
	}
	s.detector = detector
	if s.metrics != nil {
		s.metrics.BindInspector(detector)
	}

	s.dispatcher = NewDispatcher(DefaultDispatcherConfig(), s.runtime)
	s.dispatcher.AddSink(s.recent)
	if cfg.DecisionLogPath != "" || cfg.DecisionLogStdout {
		decisionLog, err := output.NewJSONDecisionLog(output.JSONDecisionLogConfig{
			FilePath: cfg.DecisionLogPath,
			Stdout:   cfg.DecisionLogStdout,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to open decision log: %w", err)
		}
		s.dispatcher.AddSink(decisionLog)
	}
	if s.metrics != nil {
		s.dispatcher.AddSubscriber(s.metrics)
		s.dispatcher.AddDropCounter(s.metrics)
	}

	backendCfg := proxy.DefaultBackendConfig()
	backendCfg.Address = cfg.BackendAddress
	backendCfg.Port = cfg.BackendPort
	backendCfg.FailureThreshold = cfg.BreakerFailureThreshold
	backendCfg.OpenTimeout = cfg.BreakerTimeout
	s.backend, err = proxy.NewBackend(backendCfg, classObserver)
	if err != nil {
		return nil, err
	}

	gate := proxy.NewGate(detector, s.tally, proxy.GateOptions{
		Observer:              classObserver,
		Publisher:             s.dispatcher,
		TrustForwardedHeaders: cfg.TrustForwardedHeaders,
	})

	serverCfg := proxy.DefaultServerConfig()
	serverCfg.Address = cfg.ListenAddress
	serverCfg.Port = cfg.ListenPort
	serverCfg.AnalyticsPath = cfg.AnalyticsPath
	serverCfg.AnalyticsRateLimit = cfg.AnalyticsRateLimit
	s.server = proxy.NewServer(serverCfg, gate, s.backend, detector, s.recent)

	s.health = output.NewHealthChecker(s.backend, detector, output.DefaultHealthCheckerConfig())

	return s, nil
}

// AddDecisionSubscriber registers an extra decision consumer. Must be
// called before Start.
func (s *Service) AddDecisionSubscriber(sub ports.DecisionSubscriber) {
	s.dispatcher.AddSubscriber(sub)
}

// Start launches the dispatcher, the metrics listener and the proxy.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = true
	s.mu.Unlock()

	s.ctx, s.cancel = context.WithCancel(ctx)
	s.lastCheck = time.Now()

	s.dispatcher.Start(s.ctx)

	if s.metrics != nil {
		metricsCfg := output.DefaultMetricsConfig()
		metricsCfg.Port = net.JoinHostPort(s.config.ListenAddress, strconv.Itoa(s.config.MetricsPort))
		if err := s.metrics.StartServer(metricsCfg, s.health); err != nil {
			s.abortStart()
			return fmt.Errorf("failed to start metrics server: %w", err)
		}
	}

	if err := s.server.Start(); err != nil {
		s.abortStart()
		return err
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.updateMetrics()
	}()

	log.Info().
		Str("listen", s.server.Addr()).
		Str("backend", s.backend.Target().String()).
		Float64("bad_frequency", s.config.Detector.BadFrequency).
		Float64("suspicious_frequency", s.config.Detector.SuspiciousFrequency).
		Int("max_clients", s.config.MaxClients).
		Int("shards", s.config.Shards).
		Msg("Bot detector started")
	return nil
}

func (s *Service) abortStart() {
	s.cancel()
	s.dispatcher.Stop()
	if s.metrics != nil {
		if err := s.metrics.StopServer(); err != nil {
			log.Error().Err(err).Msg("Error stopping metrics server")
		}
	}
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
}

func (s *Service) updateMetrics() {
	ticker := time.NewTicker(1 * time.Second)
	memTicker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	defer memTicker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-memTicker.C:
			var m runtime.MemStats
			runtime.ReadMemStats(&m)
			s.runtime.SetMemoryUsage(float64(m.Alloc) / 1024 / 1024)
		case now := <-ticker.C:
			s.sampleRate(now)
		}
	}
}

// sampleRate refreshes requests/second and the tracked client count.
func (s *Service) sampleRate(now time.Time) {
	elapsed := now.Sub(s.lastCheck).Seconds()
	if elapsed < 1.0 {
		return
	}
	total := s.tally.Snapshot().Total()
	s.runtime.UpdateRPS(float64(total-s.lastTotal) / elapsed)
	s.runtime.SetTrackedClients(s.detector.TrackedClients())
	s.lastTotal = total
	s.lastCheck = now
}

// Stop shuts the proxy down gracefully, then drains pending decisions.
// Idempotent.
func (s *Service) Stop() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		wasRunning := s.running
		s.running = false
		s.mu.Unlock()
		if !wasRunning {
			s.dispatcher.Stop()
			return
		}

		log.Info().Msg("Stopping bot detector gracefully...")

		if err := s.server.Shutdown(context.Background()); err != nil {
			log.Error().Err(err).Msg("Error shutting down proxy server")
		}
		s.cancel()
		s.wg.Wait()

		s.dispatcher.Stop()

		if s.metrics != nil {
			if err := s.metrics.StopServer(); err != nil {
				log.Error().Err(err).Msg("Error stopping metrics server")
			}
		}

		stats := s.tally.Snapshot()
		log.Info().
			Uint64("good", stats.NumGoodReqs).
			Uint64("suspicious", stats.NumSuspReqs).
			Uint64("bad", stats.NumBadReqs).
			Msg("Bot detector stopped")
	})
}

// Snapshot combines the runtime values with the current tally.
func (s *Service) Snapshot() domain.MetricsSnapshot {
	return s.runtime.Snapshot(s.tally.Snapshot())
}

func (s *Service) RecentDecisions() *output.MemoryDecisionLog {
	return s.recent
}

func (s *Service) Inspector() ports.ClientInspector {
	return s.detector
}

func (s *Service) Backend() *proxy.Backend {
	return s.backend
}

// Handler returns the proxy's root handler.
func (s *Service) Handler() http.Handler {
	return s.server.Handler()
}

func (s *Service) Addr() string {
	return s.server.Addr()
}

func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

func (s *Service) WaitForSignal() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case sig := <-sigChan:
		log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
	case <-s.ctx.Done():
	}

	s.Stop()
}

func (s *Service) Run(ctx context.Context) error {
	if err := s.Start(ctx); err != nil {
		return err
	}

	s.WaitForSignal()
	return nil
}
