// Package detection implements frequency-based bot detection.
//
// Each client owns an EventLog: a fixed-size ring of its most recent event
// timestamps. The ClientRegistry bounds how many clients are tracked and
// evicts the least recently seen one when full. DetectionEngine ties both to
// the threshold classifier behind a single lock.
//
// Memory Management:
//   - MaxEvents timestamps per client, allocated once
//   - MaxClients logs at most, slots reused after eviction
package detection

import (
	"time"

	"github.com/xoelrdgz/botradar/internal/domain"
)

// EventLog provides O(1) insertion and a cached frequency estimate over the
// retained events.
//
// The estimate covers the last N events regardless of their age (a sliding
// count, not a sliding time window), so a client that bursts and then goes
// quiet keeps its high frequency until new events push the burst out.
//
// Thread Safety: NOT thread-safe. Caller must hold the engine lock.
type EventLog struct {
	events    []time.Time // Circular buffer storage
	head      int         // Position of the oldest event
	count     int         // Current number of events (up to len(events))
	frequency float64     // Events per second, 0 until two events exist
}

// NewEventLog creates an empty log retaining up to capacity events.
//
// Parameters:
//   - capacity: Maximum events to keep (domain.DefaultMaxEvents if <= 0)
func NewEventLog(capacity int) *EventLog {
	if capacity <= 0 {
		capacity = domain.DefaultMaxEvents
	}
	return &EventLog{events: make([]time.Time, capacity)}
}

// Record appends an event, overwriting the oldest when full, and refreshes
// the frequency.
//
// Frequency is count / max(MinFrequencyWindow, newest - oldest) in seconds.
// With fewer than two events it stays 0.
//
// Returns:
//   - nil on success
//   - *domain.ClockRegressionError if the new event precedes the oldest
//     retained one; the event is still stored and the previous frequency
//     is kept
//
// Complexity: O(1)
func (l *EventLog) Record(event domain.Event) error {
	capacity := len(l.events)
	if l.count < capacity {
		l.events[(l.head+l.count)%capacity] = event.Timestamp
		l.count++
	} else {
		l.events[l.head] = event.Timestamp
		l.head = (l.head + 1) % capacity
	}

	if l.count < 2 {
		return nil
	}

	oldest := l.events[l.head]
	span := event.Timestamp.Sub(oldest)
	if span < 0 {
		return &domain.ClockRegressionError{Oldest: oldest, Newest: event.Timestamp}
	}
	if span < domain.MinFrequencyWindow {
		span = domain.MinFrequencyWindow
	}
	l.frequency = float64(l.count) / span.Seconds()
	return nil
}

// Frequency returns the estimate computed by the last successful Record.
func (l *EventLog) Frequency() float64 {
	return l.frequency
}

// Len returns the number of retained events.
func (l *EventLog) Len() int {
	return l.count
}

// Capacity returns the maximum number of retained events.
func (l *EventLog) Capacity() int {
	return len(l.events)
}

// Events returns a copy of the retained timestamps, oldest first.
func (l *EventLog) Events() []time.Time {
	out := make([]time.Time, l.count)
	for i := 0; i < l.count; i++ {
		out[i] = l.events[(l.head+i)%len(l.events)]
	}
	return out
}

// Newest returns the most recently recorded timestamp.
func (l *EventLog) Newest() (time.Time, bool) {
	if l.count == 0 {
		return time.Time{}, false
	}
	return l.events[(l.head+l.count-1)%len(l.events)], true
}
