package detection

import (
	"github.com/xoelrdgz/botradar/internal/domain"
	"github.com/xoelrdgz/botradar/pkg/lru"
)

// ClientRegistry maps client identifiers to their EventLog with a hard cap on
// the number of tracked clients. Reaching the cap evicts the least recently
// used client silently; its history is discarded.
//
// Thread Safety: NOT thread-safe. Caller must hold the engine lock.
type ClientRegistry struct {
	logs      *lru.Cache[string, *EventLog]
	maxEvents int
}

// NewClientRegistry creates an empty registry.
//
// Parameters:
//   - maxClients: Maximum tracked clients (domain.DefaultMaxClients if <= 0)
//   - maxEvents: Events retained per client (domain.DefaultMaxEvents if <= 0)
//   - onEvict: Optional hook receiving each evicted client identifier
func NewClientRegistry(maxClients, maxEvents int, onEvict func(clientID string)) *ClientRegistry {
	if maxClients <= 0 {
		maxClients = domain.DefaultMaxClients
	}
	if maxEvents <= 0 {
		maxEvents = domain.DefaultMaxEvents
	}
	var hook func(string, *EventLog)
	if onEvict != nil {
		hook = func(id string, _ *EventLog) { onEvict(id) }
	}
	return &ClientRegistry{
		logs:      lru.New[string, *EventLog](maxClients, hook),
		maxEvents: maxEvents,
	}
}

// GetOrCreate returns the log for clientID and marks it most recently used,
// creating an empty one if the client is unknown.
//
// Complexity: O(1)
func (r *ClientRegistry) GetOrCreate(clientID string) *EventLog {
	log, _ := r.logs.GetOrCreate(clientID, func() *EventLog {
		return NewEventLog(r.maxEvents)
	})
	return log
}

// Lookup returns the log for clientID without changing eviction order.
func (r *ClientRegistry) Lookup(clientID string) (*EventLog, bool) {
	return r.logs.Peek(clientID)
}

func (r *ClientRegistry) Len() int { return r.logs.Len() }

func (r *ClientRegistry) Capacity() int { return r.logs.Capacity() }

func (r *ClientRegistry) Evictions() uint64 { return r.logs.Evictions() }

// Oldest returns the client that would be evicted next.
func (r *ClientRegistry) Oldest() (string, bool) { return r.logs.Oldest() }

// Summaries returns a view of every tracked client, most recently used first.
func (r *ClientRegistry) Summaries() []domain.ClientSummary {
	out := make([]domain.ClientSummary, 0, r.logs.Len())
	r.logs.Range(func(id string, log *EventLog) bool {
		last, _ := log.Newest()
		out = append(out, domain.ClientSummary{
			ClientID:  id,
			Frequency: log.Frequency(),
			Events:    log.Len(),
			LastSeen:  last,
		})
		return true
	})
	return out
}
