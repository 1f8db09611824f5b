package ports

import (
	"context"

	"github.com/xoelrdgz/botradar/internal/domain"
)

// DecisionSink defines the interface for dispatching decisions to outputs.
//
// Implementations:
//   - JSONDecisionLog: Writes decisions as JSON lines to file and/or stdout
//   - MemoryDecisionLog: In-memory ring buffer served by the proxy
//
// Thread Safety: Implementations MUST be safe for concurrent Send() calls.
type DecisionSink interface {
	// Send dispatches a decision to the output destination.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeout
	//   - decision: Immutable decision to dispatch
	//
	// Returns:
	//   - nil on success
	//   - Error if dispatch fails (caller logs and continues)
	Send(ctx context.Context, decision *domain.Decision) error

	// Flush forces pending decisions to be written to destination.
	Flush() error

	// Close releases resources and ensures all decisions are flushed.
	Close() error
}

// DecisionSubscriber defines the callback interface for decision
// notification. Used by the dispatcher to notify the dashboard and metrics.
//
// Performance: Implementation should return quickly; the dispatcher calls
// subscribers sequentially.
type DecisionSubscriber interface {
	OnDecision(decision *domain.Decision)
}

// DecisionHistory exposes the most recent decisions, oldest first.
type DecisionHistory interface {
	Latest(n int) []*domain.Decision
}

// DecisionPublisher accepts decisions from the request path. Publish MUST
// NOT block.
type DecisionPublisher interface {
	Publish(decision *domain.Decision)
}

// ClassificationObserver defines the interface for observability metric
// collection on the request path.
//
// Thread Safety: All methods MUST be safe for concurrent calls.
type ClassificationObserver interface {
	// ObserveClassification records one classification and the time spent
	// in the engine.
	//
	// Parameters:
	//   - status: The classification result
	//   - seconds: Engine latency in seconds
	ObserveClassification(status domain.ActorStatus, seconds float64)

	// IncrementBackendErrors counts requests the backend failed to serve.
	IncrementBackendErrors()
}
