package app

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/xoelrdgz/botradar/internal/domain"
	"github.com/xoelrdgz/botradar/internal/ports"
)

// DropCounter is notified for every decision discarded because the
// dispatch queue was full.
type DropCounter interface {
	IncrementDroppedDecisions()
}

// Dispatcher delivers decisions from the request path to sinks and
// subscribers on a single background goroutine.
//
// Publish never blocks: when the queue is full the decision is dropped and
// counted. Sinks and subscribers are called sequentially, in registration
// order, from the dispatcher goroutine only.
//
// Thread Safety: Publish is safe for concurrent calls. AddSink and
// AddSubscriber must be called before Start.
type Dispatcher struct {
	queue       chan *domain.Decision
	sinks       []ports.DecisionSink
	subscribers []ports.DecisionSubscriber
	metrics     *domain.RuntimeMetrics
	drops       []DropCounter

	wg       sync.WaitGroup
	stopOnce sync.Once
	mu       sync.RWMutex // Guards sinks, subscribers and drops
	stateMu  sync.RWMutex // Guards running, closed and the queue close
	running  bool
	closed   bool
}

// DispatcherConfig configures a Dispatcher.
type DispatcherConfig struct {
	QueueSize int // Pending decisions before drops (default: 4096)
}

func DefaultDispatcherConfig() DispatcherConfig {
	return DispatcherConfig{QueueSize: 4096}
}

// NewDispatcher creates a stopped dispatcher. metrics may be nil.
func NewDispatcher(config DispatcherConfig, metrics *domain.RuntimeMetrics) *Dispatcher {
	if config.QueueSize <= 0 {
		config.QueueSize = DefaultDispatcherConfig().QueueSize
	}
	return &Dispatcher{
		queue:   make(chan *domain.Decision, config.QueueSize),
		metrics: metrics,
	}
}

func (d *Dispatcher) AddSink(sink ports.DecisionSink) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sinks = append(d.sinks, sink)
}

func (d *Dispatcher) AddSubscriber(sub ports.DecisionSubscriber) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.subscribers = append(d.subscribers, sub)
}

// AddDropCounter registers an additional counter for dropped decisions.
func (d *Dispatcher) AddDropCounter(counter DropCounter) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.drops = append(d.drops, counter)
}

// Start launches the delivery goroutine. Idempotent.
func (d *Dispatcher) Start(ctx context.Context) {
	d.stateMu.Lock()
	if d.running || d.closed {
		d.stateMu.Unlock()
		return
	}
	d.running = true
	d.stateMu.Unlock()

	d.wg.Add(1)
	go d.run(ctx)

	log.Debug().Int("queue", cap(d.queue)).Msg("Decision dispatcher started")
}

func (d *Dispatcher) run(ctx context.Context) {
	defer d.wg.Done()
	for decision := range d.queue {
		d.deliver(ctx, decision)
	}
}

func (d *Dispatcher) deliver(ctx context.Context, decision *domain.Decision) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Str("decision", decision.ID).Msg("Decision delivery panic recovered")
		}
	}()

	d.mu.RLock()
	defer d.mu.RUnlock()

	for _, sink := range d.sinks {
		if err := sink.Send(ctx, decision); err != nil {
			log.Debug().Err(err).Msg("Decision send failed")
		}
	}
	for _, sub := range d.subscribers {
		sub.OnDecision(decision)
	}
}

// Publish enqueues decision without blocking. Implements
// ports.DecisionPublisher.
func (d *Dispatcher) Publish(decision *domain.Decision) {
	if decision == nil {
		return
	}

	d.stateMu.RLock()
	defer d.stateMu.RUnlock()

	if d.closed {
		d.drop()
		return
	}
	select {
	case d.queue <- decision:
	default:
		d.drop()
	}
}

func (d *Dispatcher) drop() {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.metrics != nil {
		d.metrics.IncrementDroppedDecisions()
	}
	for _, counter := range d.drops {
		counter.IncrementDroppedDecisions()
	}
}

// Pending returns the number of queued decisions.
func (d *Dispatcher) Pending() int {
	return len(d.queue)
}

// Stop closes the queue, delivers what is left, then flushes and closes
// every sink. Idempotent.
func (d *Dispatcher) Stop() {
	d.stopOnce.Do(func() {
		d.stateMu.Lock()
		d.closed = true
		wasRunning := d.running
		d.running = false
		close(d.queue)
		d.stateMu.Unlock()

		if wasRunning {
			d.wg.Wait()
		} else {
			for decision := range d.queue {
				d.deliver(context.Background(), decision)
			}
		}

		d.mu.RLock()
		defer d.mu.RUnlock()
		for _, sink := range d.sinks {
			if err := sink.Flush(); err != nil {
				log.Error().Err(err).Msg("Failed to flush decision sink")
			}
			if err := sink.Close(); err != nil {
				log.Error().Err(err).Msg("Failed to close decision sink")
			}
		}

		dropped := int64(0)
		if d.metrics != nil {
			dropped = d.metrics.DroppedDecisions()
		}
		log.Info().Int64("dropped", dropped).Msg("Decision dispatcher stopped")
	})
}
