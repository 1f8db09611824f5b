package app

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xoelrdgz/botradar/internal/domain"
)

type recordingSink struct {
	mu      sync.Mutex
	got     []*domain.Decision
	flushed int
	closed  int
}

func (s *recordingSink) Send(_ context.Context, d *domain.Decision) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.got = append(s.got, d)
	return nil
}

func (s *recordingSink) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flushed++
	return nil
}

func (s *recordingSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed++
	return nil
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.got)
}

type recordingSubscriber struct {
	mu  sync.Mutex
	ids []string
}

func (s *recordingSubscriber) OnDecision(d *domain.Decision) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ids = append(s.ids, d.ID)
}

type countingDrops struct {
	mu sync.Mutex
	n  int
}

func (c *countingDrops) IncrementDroppedDecisions() {
	c.mu.Lock()
	c.n++
	c.mu.Unlock()
}

func badDecision(client string) *domain.Decision {
	return domain.NewDecision(client, domain.Bad(), domain.DecisionSourceProxy, time.Now())
}

func TestDispatcher_DeliversInOrder(t *testing.T) {
	sink := &recordingSink{}
	sub := &recordingSubscriber{}
	d := NewDispatcher(DispatcherConfig{QueueSize: 64}, domain.NewRuntimeMetrics())
	d.AddSink(sink)
	d.AddSubscriber(sub)
	d.Start(t.Context())

	var want []string
	for i := 0; i < 20; i++ {
		decision := badDecision("10.0.0.1")
		want = append(want, decision.ID)
		d.Publish(decision)
	}
	d.Stop()

	require.Equal(t, 20, sink.count())
	assert.Equal(t, want, sub.ids)
	assert.Equal(t, 1, sink.flushed)
	assert.Equal(t, 1, sink.closed)
}

func TestDispatcher_DropsWhenFull(t *testing.T) {
	metrics := domain.NewRuntimeMetrics()
	drops := &countingDrops{}
	sink := &recordingSink{}

	d := NewDispatcher(DispatcherConfig{QueueSize: 2}, metrics)
	d.AddSink(sink)
	d.AddDropCounter(drops)

	// Not started: the queue fills and nothing drains it.
	for i := 0; i < 5; i++ {
		d.Publish(badDecision("10.0.0.2"))
	}
	assert.Equal(t, 2, d.Pending())
	assert.Equal(t, int64(3), metrics.DroppedDecisions())
	assert.Equal(t, 3, drops.n)

	d.Stop()
	assert.Equal(t, 2, sink.count(), "queued decisions are delivered on stop")
}

func TestDispatcher_PublishAfterStop(t *testing.T) {
	metrics := domain.NewRuntimeMetrics()
	d := NewDispatcher(DispatcherConfig{}, metrics)
	d.Start(t.Context())
	d.Stop()
	d.Stop()

	assert.NotPanics(t, func() { d.Publish(badDecision("10.0.0.3")) })
	assert.Equal(t, int64(1), metrics.DroppedDecisions())
	d.Publish(nil)
	assert.Equal(t, int64(1), metrics.DroppedDecisions())
}

func TestDispatcher_ConcurrentPublish(t *testing.T) {
	sink := &recordingSink{}
	metrics := domain.NewRuntimeMetrics()
	d := NewDispatcher(DispatcherConfig{QueueSize: 16}, metrics)
	d.AddSink(sink)
	d.Start(t.Context())

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				d.Publish(badDecision("10.0.0.4"))
			}
		}()
	}
	wg.Wait()
	d.Stop()

	assert.Equal(t, 800, sink.count()+int(metrics.DroppedDecisions()))
}
