// Package app wires the detection engine into the running service: the
// proxy lifecycle, decision dispatch, access log replay and configuration.
package app

import (
	"context"
	"hash/maphash"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/xoelrdgz/botradar/internal/domain"
	"github.com/xoelrdgz/botradar/internal/ports"
)

var routeSeed = maphash.MakeSeed()

// WorkerPool classifies replayed log entries on a fixed set of workers.
//
// Entries are routed by a hash of their client ID, and every worker owns
// its own queue, so all events of one client are recorded by the same
// worker in submission order. Different clients proceed in parallel.
//
// Features:
//   - Keyed routing preserving per-client order
//   - Backpressure with configurable timeout on Submit
//   - Automatic worker restart on panic
//
// Thread Safety: All public methods are safe for concurrent access.
type WorkerPool struct {
	queues     []chan *domain.LogEntry      // One queue per worker
	classifier ports.TimedClassifier        // Event time comes from the entry
	tally      *domain.RequestTally         // Outcome counters
	publisher  ports.DecisionPublisher      // Optional decision output
	observer   ports.ClassificationObserver // Optional metrics

	submitTimeout time.Duration

	processed atomic.Uint64
	rejected  atomic.Uint64
	panics    atomic.Uint64

	wg       sync.WaitGroup
	stopOnce sync.Once
	running  bool
	closed   bool
	mu       sync.RWMutex
}

// WorkerPoolConfig defines worker pool configuration options.
type WorkerPoolConfig struct {
	WorkerCount   int           // Number of worker goroutines (default: 8)
	QueueSize     int           // Buffer per worker queue (default: 1024)
	SubmitTimeout time.Duration // Backpressure timeout for Submit (default: 100ms)
}

func DefaultWorkerPoolConfig() WorkerPoolConfig {
	return WorkerPoolConfig{
		WorkerCount:   8,
		QueueSize:     1024,
		SubmitTimeout: 100 * time.Millisecond,
	}
}

// WorkerPoolDeps are the collaborators of a WorkerPool. Classifier is
// required; the rest are optional.
type WorkerPoolDeps struct {
	Classifier ports.TimedClassifier
	Tally      *domain.RequestTally
	Publisher  ports.DecisionPublisher
	Observer   ports.ClassificationObserver
}

// NewWorkerPool creates a stopped pool.
//
// Parameters:
//   - config: Pool sizing, zero values fall back to defaults
//   - deps: Classifier plus optional tally, publisher and observer
//
// Returns:
//   - Configured WorkerPool ready for Start()
func NewWorkerPool(config WorkerPoolConfig, deps WorkerPoolDeps) *WorkerPool {
	defaults := DefaultWorkerPoolConfig()
	if config.WorkerCount <= 0 {
		config.WorkerCount = defaults.WorkerCount
	}
	if config.QueueSize <= 0 {
		config.QueueSize = defaults.QueueSize
	}
	if config.SubmitTimeout <= 0 {
		config.SubmitTimeout = defaults.SubmitTimeout
	}
	if deps.Tally == nil {
		deps.Tally = domain.NewRequestTally()
	}

	queues := make([]chan *domain.LogEntry, config.WorkerCount)
	for i := range queues {
		queues[i] = make(chan *domain.LogEntry, config.QueueSize)
	}

	return &WorkerPool{
		queues:        queues,
		classifier:    deps.Classifier,
		tally:         deps.Tally,
		publisher:     deps.Publisher,
		observer:      deps.Observer,
		submitTimeout: config.SubmitTimeout,
	}
}

// Start launches one goroutine per queue. Idempotent.
func (wp *WorkerPool) Start(ctx context.Context) {
	wp.mu.Lock()
	if wp.running || wp.closed {
		wp.mu.Unlock()
		return
	}
	wp.running = true
	wp.mu.Unlock()

	for i := range wp.queues {
		wp.wg.Add(1)
		go wp.worker(ctx, i)
	}

	log.Info().Int("workers", len(wp.queues)).Msg("Replay worker pool started")
}

// worker drains its own queue until it is closed or ctx is cancelled.
// A panic while classifying loses that entry only; the worker is restarted
// on the same queue so ordering for the remaining entries holds.
func (wp *WorkerPool) worker(ctx context.Context, id int) {
	defer wp.wg.Done()

	var current *domain.LogEntry

	defer func() {
		if r := recover(); r != nil {
			wp.panics.Add(1)
			event := log.Error().Interface("panic", r).Int("worker_id", id)
			if current != nil {
				event = event.Str("client", current.ClientID())
			}
			event.Msg("Worker panic recovered")

			wp.wg.Add(1)
			go wp.worker(ctx, id)
		}
	}()

	queue := wp.queues[id]
	for {
		select {
		case <-ctx.Done():
			return
		case entry, ok := <-queue:
			if !ok {
				return
			}
			current = entry
			wp.process(entry)
			current = nil
			domain.ReleaseLogEntry(entry)
		}
	}
}

func (wp *WorkerPool) process(entry *domain.LogEntry) {
	clientID := entry.ClientID()

	start := time.Now()
	status := wp.classifier.RecordAndClassifyAt(clientID, entry.Timestamp)
	elapsed := time.Since(start)

	wp.tally.Record(status)
	wp.processed.Add(1)
	if wp.observer != nil {
		wp.observer.ObserveClassification(status, elapsed.Seconds())
	}

	if status.IsGood() || wp.publisher == nil {
		return
	}
	decision := domain.NewDecision(clientID, status, domain.DecisionSourceReplay, entry.Timestamp)
	decision.Method = entry.Method
	decision.Path = entry.Path
	wp.publisher.Publish(decision)
}

func (wp *WorkerPool) queueFor(entry *domain.LogEntry) chan *domain.LogEntry {
	if len(wp.queues) == 1 {
		return wp.queues[0]
	}
	h := maphash.String(routeSeed, entry.ClientID())
	return wp.queues[h%uint64(len(wp.queues))]
}

// Submit routes entry to its worker, waiting at most the submit timeout.
//
// Returns:
//   - true if queued
//   - false if the pool is not running or the queue stayed full
func (wp *WorkerPool) Submit(entry *domain.LogEntry) bool {
	wp.mu.RLock()
	defer wp.mu.RUnlock()

	if !wp.running {
		wp.rejected.Add(1)
		return false
	}
	queue := wp.queueFor(entry)

	select {
	case queue <- entry:
		return true
	default:
	}

	timer := time.NewTimer(wp.submitTimeout)
	defer timer.Stop()
	select {
	case queue <- entry:
		return true
	case <-timer.C:
		wp.rejected.Add(1)
		return false
	}
}

// SubmitBlocking blocks until entry is queued or ctx is cancelled.
//
// Returns:
//   - true if queued
//   - false if ctx was cancelled or the pool is not running
func (wp *WorkerPool) SubmitBlocking(ctx context.Context, entry *domain.LogEntry) bool {
	wp.mu.RLock()
	defer wp.mu.RUnlock()

	if !wp.running {
		wp.rejected.Add(1)
		return false
	}
	select {
	case wp.queueFor(entry) <- entry:
		return true
	case <-ctx.Done():
		wp.rejected.Add(1)
		return false
	}
}

// Stop closes every queue and waits for the workers to drain them.
// Idempotent via sync.Once protection.
func (wp *WorkerPool) Stop() {
	wp.stopOnce.Do(func() {
		wp.mu.Lock()
		wp.running = false
		wp.closed = true
		for _, queue := range wp.queues {
			close(queue)
		}
		wp.mu.Unlock()

		wp.wg.Wait()

		log.Info().
			Uint64("processed", wp.processed.Load()).
			Uint64("rejected", wp.rejected.Load()).
			Uint64("panics", wp.panics.Load()).
			Msg("Replay worker pool stopped")
	})
}

func (wp *WorkerPool) IsRunning() bool {
	wp.mu.RLock()
	defer wp.mu.RUnlock()
	return wp.running
}

// Processed returns the number of classified entries.
func (wp *WorkerPool) Processed() uint64 {
	return wp.processed.Load()
}

// Rejected returns the number of entries Submit or SubmitBlocking refused.
func (wp *WorkerPool) Rejected() uint64 {
	return wp.rejected.Load()
}

func (wp *WorkerPool) WorkerCount() int {
	return len(wp.queues)
}

// QueueLength returns the total number of queued entries.
func (wp *WorkerPool) QueueLength() int {
	n := 0
	for _, queue := range wp.queues {
		n += len(queue)
	}
	return n
}

func (wp *WorkerPool) Tally() *domain.RequestTally {
	return wp.tally
}
