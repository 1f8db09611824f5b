// Package ports defines the primary and secondary port interfaces following
// hexagonal architecture (ports and adapters pattern).
//
// This package contains interfaces that define the contract between the
// detection core and the infrastructure around it (proxy, replay input,
// decision outputs, metrics, dashboard).
//
// Design Principles:
//   - Interfaces are small and focused
//   - Dependencies flow inward (the engine knows nothing about HTTP)
//   - Implementations provided by adapters in internal/adapters/
package ports

import (
	"time"

	"github.com/xoelrdgz/botradar/internal/domain"
)

// ActorClassifier is the single entry point used by request handlers.
//
// Implementations:
//   - DetectionEngine: one lock around the whole registry
//   - ShardedEngine: N engines partitioned by client hash
//
// Thread Safety: Implementations MUST be safe for concurrent calls.
type ActorClassifier interface {
	// RecordAndClassify records one event for clientID, stamped with the
	// implementation's clock, and returns the resulting classification.
	//
	// Contract:
	//   - MUST NOT fail; an empty clientID is a valid key
	//   - MUST NOT block on I/O
	RecordAndClassify(clientID string) domain.ActorStatus
}

// TimedClassifier records events with an explicit timestamp. Used by replay,
// where the event time comes from the access log instead of the clock.
type TimedClassifier interface {
	RecordAndClassifyAt(clientID string, at time.Time) domain.ActorStatus
}

// ClientInspector exposes read-only views of tracked clients for reporting.
type ClientInspector interface {
	// TrackedClients returns the number of clients currently held.
	TrackedClients() int

	// TopClients returns up to n clients ordered by frequency (desc), then
	// client ID (asc).
	TopClients(n int) []domain.ClientSummary
}

// Detector is the full engine surface consumed by the service layer.
type Detector interface {
	ActorClassifier
	TimedClassifier
	ClientInspector
}

// EngineObserver receives engine side events. Called with the engine lock
// held, so implementations must return quickly and must not call back into
// the engine.
type EngineObserver interface {
	// OnEviction is called when a client is dropped to make room.
	OnEviction(clientID string)

	// OnClockRegression is called when a client's newest event precedes its
	// oldest retained event.
	OnClockRegression(clientID string)
}
