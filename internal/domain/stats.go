package domain

import (
	"sync"
	"sync/atomic"
	"time"
)

// ReqStats is the aggregate request outcome tally.
type ReqStats struct {
	NumGoodReqs uint64 `json:"num_good_reqs"`
	NumSuspReqs uint64 `json:"num_susp_reqs"`
	NumBadReqs  uint64 `json:"num_bad_reqs"`
}

func (s ReqStats) Total() uint64 {
	return s.NumGoodReqs + s.NumSuspReqs + s.NumBadReqs
}

// RequestTally counts classifications. It has its own lock, independent of
// the detection engine, because it is read by the reporting path.
type RequestTally struct {
	mu    sync.RWMutex
	stats ReqStats
}

func NewRequestTally() *RequestTally {
	return &RequestTally{}
}

func (t *RequestTally) Record(status ActorStatus) {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch status.Class {
	case ActorClassBad:
		t.stats.NumBadReqs++
	case ActorClassSuspicious:
		t.stats.NumSuspReqs++
	default:
		t.stats.NumGoodReqs++
	}
}

func (t *RequestTally) Snapshot() ReqStats {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.stats
}

type MetricsSnapshot struct {
	Requests          ReqStats
	RequestsPerSecond float64
	TrackedClients    int
	DroppedDecisions  int64
	MemoryUsageMB     float64
	Uptime            time.Duration
	StartTime         time.Time
}

// RuntimeMetrics holds the values refreshed by the service ticker.
type RuntimeMetrics struct {
	droppedDecisions  atomic.Int64
	RequestsPerSecond float64
	TrackedClients    int
	MemoryUsageMB     float64
	StartTime         time.Time

	mu sync.RWMutex
}

func NewRuntimeMetrics() *RuntimeMetrics {
	return &RuntimeMetrics{
		StartTime: time.Now(),
	}
}

func (m *RuntimeMetrics) IncrementDroppedDecisions() {
	m.droppedDecisions.Add(1)
}

func (m *RuntimeMetrics) DroppedDecisions() int64 {
	return m.droppedDecisions.Load()
}

func (m *RuntimeMetrics) UpdateRPS(rps float64) {
	m.mu.Lock()
	m.RequestsPerSecond = rps
	m.mu.Unlock()
}

func (m *RuntimeMetrics) SetTrackedClients(n int) {
	m.mu.Lock()
	m.TrackedClients = n
	m.mu.Unlock()
}

func (m *RuntimeMetrics) SetMemoryUsage(mb float64) {
	m.mu.Lock()
	m.MemoryUsageMB = mb
	m.mu.Unlock()
}

// Snapshot combines the runtime values with a tally snapshot.
func (m *RuntimeMetrics) Snapshot(requests ReqStats) MetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return MetricsSnapshot{
		Requests:          requests,
		RequestsPerSecond: m.RequestsPerSecond,
		TrackedClients:    m.TrackedClients,
		DroppedDecisions:  m.droppedDecisions.Load(),
		MemoryUsageMB:     m.MemoryUsageMB,
		Uptime:            time.Since(m.StartTime),
		StartTime:         m.StartTime,
	}
}
