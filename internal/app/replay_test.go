package app

import (
	"context"
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xoelrdgz/botradar/internal/adapters/input"
	"github.com/xoelrdgz/botradar/internal/domain"
)

// sliceReader emits a fixed set of entries, then closes its channels.
type sliceReader struct {
	entries []*domain.LogEntry
	errs    []error
	stopped bool
}

func (r *sliceReader) Start(ctx context.Context) (<-chan *domain.LogEntry, <-chan error) {
	entries := make(chan *domain.LogEntry, len(r.entries))
	errs := make(chan error, len(r.errs))
	for _, e := range r.entries {
		entries <- e
	}
	for _, err := range r.errs {
		errs <- err
	}
	close(entries)
	close(errs)
	return entries, errs
}

func (r *sliceReader) Stop() error {
	r.stopped = true
	return nil
}

// blockingReader never produces anything and closes when ctx is done.
type blockingReader struct{}

func (blockingReader) Start(ctx context.Context) (<-chan *domain.LogEntry, <-chan error) {
	entries := make(chan *domain.LogEntry)
	errs := make(chan error)
	go func() {
		<-ctx.Done()
		close(entries)
		close(errs)
	}()
	return entries, errs
}

func (blockingReader) Stop() error { return nil }

func newTestDetectorConfig() Config {
	cfg, err := LoadConfig(defaultViper())
	if err != nil {
		panic(err)
	}
	return cfg
}

func TestReplayer_ClassifiesByLogTime(t *testing.T) {
	reader := &sliceReader{}
	// Fast client: one request per second for 20 seconds.
	for i := 0; i < 20; i++ {
		reader.entries = append(reader.entries, testEntry("203.0.113.5", time.Duration(i)*time.Second))
	}
	// Slow client: one request per minute.
	for i := 0; i < 5; i++ {
		reader.entries = append(reader.entries, testEntry("198.51.100.9", time.Duration(i)*time.Minute))
	}

	detector, err := NewDetector(newTestDetectorConfig(), nil)
	require.NoError(t, err)

	publisher := &mockPublisher{}
	replayer := NewReplayer(reader, detector, ReplayConfig{
		Workers:   WorkerPoolConfig{WorkerCount: 4},
		TopN:      5,
		Publisher: publisher,
	})

	summary, err := replayer.Run(t.Context())
	require.NoError(t, err)
	assert.True(t, reader.stopped)

	assert.Equal(t, uint64(25), summary.Entries)
	assert.Equal(t, domain.ReqStats{NumGoodReqs: 8, NumSuspReqs: 1, NumBadReqs: 16}, summary.Stats)
	assert.Equal(t, 2, summary.TrackedClients)
	require.Len(t, summary.TopClients, 2)
	assert.Equal(t, "203.0.113.5", summary.TopClients[0].ClientID)
	assert.Equal(t, 17, publisher.count())
}

func TestReplayer_CountsReadErrors(t *testing.T) {
	reader := &sliceReader{errs: []error{assert.AnError}}
	detector, err := NewDetector(newTestDetectorConfig(), nil)
	require.NoError(t, err)

	summary, err := NewReplayer(reader, detector, ReplayConfig{}).Run(t.Context())
	require.NoError(t, err)
	assert.Equal(t, uint64(0), summary.Entries)
	assert.LessOrEqual(t, summary.ReadErrors, uint64(1))
}

func TestReplayer_DemoTraffic(t *testing.T) {
	demoCfg := input.DefaultDemoConfig()
	demoCfg.Count = 5000
	demo := input.NewDemoGenerator(demoCfg)

	detector, err := NewDetector(newTestDetectorConfig(), nil)
	require.NoError(t, err)

	summary, err := NewReplayer(demo, detector, ReplayConfig{}).Run(t.Context())
	require.NoError(t, err)

	assert.Equal(t, uint64(5000), summary.Entries)
	assert.Equal(t, uint64(5000), summary.Stats.Total())
	assert.Positive(t, summary.Stats.NumBadReqs, "scrapers should be caught")
	require.NotEmpty(t, summary.TopClients)
	for _, client := range summary.TopClients[:3] {
		addr, err := netip.ParseAddr(client.ClientID)
		require.NoError(t, err)
		assert.True(t, demo.IsScraper(addr), "%s should be a scraper", client.ClientID)
	}
}

func TestReplayer_Cancelled(t *testing.T) {
	detector, err := NewDetector(newTestDetectorConfig(), nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(t.Context(), 50*time.Millisecond)
	defer cancel()

	summary, err := NewReplayer(blockingReader{}, detector, ReplayConfig{}).Run(ctx)
	assert.True(t, IsInterrupted(err))
	assert.Equal(t, uint64(0), summary.Entries)
}
