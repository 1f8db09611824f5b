package tui

import (
	"container/heap"
	"sync"

	"github.com/xoelrdgz/botradar/internal/domain"
)

const (
	viewDecisions = iota
	viewClients
	viewCount
)

// Model holds dashboard state fed by the decision dispatcher and the
// metrics ticker.
//
// Thread Safety: Decision and metrics updates arrive from other goroutines;
// all state is guarded by mu.
type Model struct {
	Width  int
	Height int

	ActiveView int

	Decisions []*domain.Decision
	Metrics   domain.MetricsSnapshot

	clients  map[string]*ClientEntry
	ranking  *clientMaxHeap
	flagged  int
	badCount int

	MaxDecisions      int
	MaxTopClients     int
	MaxTrackedClients int

	mu sync.RWMutex
}

// ClientEntry aggregates the decisions seen for one client.
type ClientEntry struct {
	ClientID  string
	Flags     int
	Bad       int
	LastSeen  string
	LastPath  string
	heapIndex int
}

type clientMaxHeap []*ClientEntry

func (h clientMaxHeap) Len() int { return len(h) }
func (h clientMaxHeap) Less(i, j int) bool {
	if h[i].Flags != h[j].Flags {
		return h[i].Flags > h[j].Flags
	}
	return h[i].ClientID < h[j].ClientID
}
func (h clientMaxHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].heapIndex = i
	h[j].heapIndex = j
}

func (h *clientMaxHeap) Push(x any) {
	item := x.(*ClientEntry)
	item.heapIndex = len(*h)
	*h = append(*h, item)
}

func (h *clientMaxHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.heapIndex = -1
	*h = old[0 : n-1]
	return item
}

func NewModel() *Model {
	h := &clientMaxHeap{}
	heap.Init(h)

	return &Model{
		Width:             120,
		Height:            40,
		Decisions:         make([]*domain.Decision, 0, 100),
		clients:           make(map[string]*ClientEntry),
		ranking:           h,
		MaxDecisions:      100,
		MaxTopClients:     25,
		MaxTrackedClients: 10000,
	}
}

// RecordClient counts decision against its client. When the table is full
// the least flagged client is forgotten first.
func (m *Model) RecordClient(decision *domain.Decision) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.flagged++
	if decision.Class == domain.ActorClassBad {
		m.badCount++
	}

	id := decision.ClientString()
	entry, exists := m.clients[id]
	if !exists {
		if len(m.clients) >= m.MaxTrackedClients && m.ranking.Len() > 0 {
			m.forgetLeastFlagged()
		}
		entry = &ClientEntry{ClientID: id}
		m.clients[id] = entry
		heap.Push(m.ranking, entry)
	}

	entry.Flags++
	if decision.Class == domain.ActorClassBad {
		entry.Bad++
	}
	entry.LastSeen = decision.Timestamp.Local().Format("15:04:05")
	entry.LastPath = decision.Path
	heap.Fix(m.ranking, entry.heapIndex)
}

func (m *Model) forgetLeastFlagged() {
	minIdx := 0
	for i := 1; i < m.ranking.Len(); i++ {
		if (*m.ranking)[i].Flags < (*m.ranking)[minIdx].Flags {
			minIdx = i
		}
	}
	victim := heap.Remove(m.ranking, minIdx).(*ClientEntry)
	delete(m.clients, victim.ClientID)
}

func (m *Model) AddDecision(decision *domain.Decision) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Decisions) >= m.MaxDecisions {
		copy(m.Decisions, m.Decisions[1:])
		m.Decisions = m.Decisions[:len(m.Decisions)-1]
	}
	m.Decisions = append(m.Decisions, decision)
}

func (m *Model) UpdateMetrics(metrics domain.MetricsSnapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Metrics = metrics
}

func (m *Model) GetDecisions() []*domain.Decision {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*domain.Decision, len(m.Decisions))
	copy(result, m.Decisions)
	return result
}

// TopClients returns up to MaxTopClients entries, most flagged first. The
// entries are copies.
func (m *Model) TopClients() []ClientEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()

	all := make([]ClientEntry, 0, m.ranking.Len())
	for _, e := range *m.ranking {
		all = append(all, *e)
	}
	h := clientMaxHeap(make([]*ClientEntry, len(all)))
	for i := range all {
		h[i] = &all[i]
	}
	heap.Init(&h)

	n := min(m.MaxTopClients, h.Len())
	result := make([]ClientEntry, 0, n)
	for len(result) < n {
		result = append(result, *heap.Pop(&h).(*ClientEntry))
	}
	return result
}

func (m *Model) GetMetrics() domain.MetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.Metrics
}

// TotalFlagged returns the number of decisions recorded.
func (m *Model) TotalFlagged() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.flagged
}

func (m *Model) TotalBad() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.badCount
}

func (m *Model) TrackedClients() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.clients)
}

func (m *Model) SetDimensions(width, height int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Width = width
	m.Height = height
}

func (m *Model) NextView() {
	m.ActiveView = (m.ActiveView + 1) % viewCount
}
