package detection

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/xoelrdgz/botradar/internal/domain"
	"github.com/xoelrdgz/botradar/internal/ports"
)

// EngineConfig configures a DetectionEngine.
type EngineConfig struct {
	Detector   domain.DetectorConfig // Classification thresholds
	MaxClients int                   // Tracked clients cap (default: 10000)
	MaxEvents  int                   // Events per client (default: 10)
	Clock      func() time.Time      // Event clock (default: time.Now)
	Observer   ports.EngineObserver  // Optional eviction/regression observer
}

// DefaultEngineConfig returns production-ready defaults.
//
// Defaults:
//   - Bad at 30 events/minute, suspicious at 20 events/minute
//   - 10000 clients, 10 events each
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		Detector:   domain.DefaultDetectorConfig(),
		MaxClients: domain.DefaultMaxClients,
		MaxEvents:  domain.DefaultMaxEvents,
		Clock:      time.Now,
	}
}

// DetectionEngine records one event per request and classifies the client.
//
// Thread Safety: All methods are safe for concurrent access. A single mutex
// guards the whole lookup, record and classify sequence, so at most one
// goroutine mutates any client history at a time.
type DetectionEngine struct {
	mu       sync.Mutex
	registry *ClientRegistry
	config   domain.DetectorConfig
	clock    func() time.Time
	observer ports.EngineObserver
}

// NewDetectionEngine creates an engine with an empty registry.
//
// Returns:
//   - Configured engine
//   - Error wrapping *domain.ConfigValidationError for invalid thresholds
func NewDetectionEngine(cfg EngineConfig) (*DetectionEngine, error) {
	if err := cfg.Detector.Validate(); err != nil {
		return nil, fmt.Errorf("detection engine: %w", err)
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}

	e := &DetectionEngine{
		config:   cfg.Detector,
		clock:    cfg.Clock,
		observer: cfg.Observer,
	}
	var onEvict func(string)
	if cfg.Observer != nil {
		onEvict = cfg.Observer.OnEviction
	}
	e.registry = NewClientRegistry(cfg.MaxClients, cfg.MaxEvents, onEvict)
	return e, nil
}

// RecordAndClassify records an event for clientID at the engine clock's
// current time and returns the client's classification.
//
// The timestamp is taken inside the critical section so events for one
// client are recorded in the order they were stamped.
func (e *DetectionEngine) RecordAndClassify(clientID string) domain.ActorStatus {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.recordLocked(clientID, e.clock())
}

// RecordAndClassifyAt is RecordAndClassify with an explicit event time.
func (e *DetectionEngine) RecordAndClassifyAt(clientID string, at time.Time) domain.ActorStatus {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.recordLocked(clientID, at)
}

func (e *DetectionEngine) recordLocked(clientID string, at time.Time) domain.ActorStatus {
	el := e.registry.GetOrCreate(clientID)
	if err := el.Record(domain.NewEvent(at)); err != nil {
		var regression *domain.ClockRegressionError
		if errors.As(err, &regression) {
			log.Warn().
				Err(err).
				Str("client", clientID).
				Msg("Clock regression, keeping previous frequency")
			if e.observer != nil {
				e.observer.OnClockRegression(clientID)
			}
		}
	}
	return Classify(el.Frequency(), e.config)
}

// TrackedClients returns the number of clients currently held.
func (e *DetectionEngine) TrackedClients() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.registry.Len()
}

// Capacity returns the maximum number of tracked clients.
func (e *DetectionEngine) Capacity() int {
	return e.registry.Capacity()
}

// Evictions returns the number of clients dropped to make room.
func (e *DetectionEngine) Evictions() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.registry.Evictions()
}

// TopClients returns up to n tracked clients with the highest frequency.
// Ties are ordered by client identifier. n <= 0 returns all clients.
func (e *DetectionEngine) TopClients(n int) []domain.ClientSummary {
	e.mu.Lock()
	summaries := e.registry.Summaries()
	e.mu.Unlock()
	return topSummaries(summaries, n)
}

// Config returns the engine's thresholds.
func (e *DetectionEngine) Config() domain.DetectorConfig {
	return e.config
}

func topSummaries(summaries []domain.ClientSummary, n int) []domain.ClientSummary {
	sort.Slice(summaries, func(i, j int) bool {
		if summaries[i].Frequency != summaries[j].Frequency {
			return summaries[i].Frequency > summaries[j].Frequency
		}
		return summaries[i].ClientID < summaries[j].ClientID
	})
	if n > 0 && len(summaries) > n {
		summaries = summaries[:n]
	}
	return summaries
}
