package app

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/xoelrdgz/botradar/internal/domain"
	"github.com/xoelrdgz/botradar/internal/ports"
)

// ReplaySummary is the outcome of one replay run.
type ReplaySummary struct {
	Entries        uint64                 `json:"entries"`
	Rejected       uint64                 `json:"rejected"`
	ReadErrors     uint64                 `json:"read_errors"`
	Stats          domain.ReqStats        `json:"stats"`
	TrackedClients int                    `json:"tracked_clients"`
	TopClients     []domain.ClientSummary `json:"top_clients"`
	Duration       time.Duration          `json:"duration_ns"`
}

// Replayer feeds an access log through a detector using each entry's own
// timestamp as the event time.
type Replayer struct {
	reader    ports.ReplaySource
	detector  ports.Detector
	pool      *WorkerPool
	topN      int
	readErrs  atomic.Uint64
	startedAt time.Time
}

// ReplayConfig configures a Replayer.
type ReplayConfig struct {
	Workers   WorkerPoolConfig
	TopN      int // Clients listed in the summary (default: 10)
	Publisher ports.DecisionPublisher
	Observer  ports.ClassificationObserver
}

func NewReplayer(reader ports.ReplaySource, detector ports.Detector, config ReplayConfig) *Replayer {
	if config.TopN <= 0 {
		config.TopN = 10
	}
	pool := NewWorkerPool(config.Workers, WorkerPoolDeps{
		Classifier: detector,
		Publisher:  config.Publisher,
		Observer:   config.Observer,
	})
	return &Replayer{
		reader:   reader,
		detector: detector,
		pool:     pool,
		topN:     config.TopN,
	}
}

// Run reads until the reader is exhausted or ctx is cancelled, then waits
// for every queued entry to be classified.
//
// Returns:
//   - Summary of everything classified so far
//   - ctx.Err() if the run was interrupted, nil otherwise
func (r *Replayer) Run(ctx context.Context) (ReplaySummary, error) {
	r.startedAt = time.Now()

	r.pool.Start(ctx)
	entries, errs := r.reader.Start(ctx)

	err := r.feed(ctx, entries, errs)

	if stopErr := r.reader.Stop(); stopErr != nil {
		log.Error().Err(stopErr).Msg("Error stopping reader")
	}
	r.pool.Stop()

	summary := r.Summary()
	log.Info().
		Uint64("entries", summary.Entries).
		Uint64("good", summary.Stats.NumGoodReqs).
		Uint64("suspicious", summary.Stats.NumSuspReqs).
		Uint64("bad", summary.Stats.NumBadReqs).
		Int("tracked_clients", summary.TrackedClients).
		Dur("duration", summary.Duration).
		Msg("Replay finished")
	return summary, err
}

func (r *Replayer) feed(ctx context.Context, entries <-chan *domain.LogEntry, errs <-chan error) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			r.readErrs.Add(1)
			log.Error().Err(err).Msg("Error reading log")
		case entry, ok := <-entries:
			if !ok {
				return nil
			}
			if !r.pool.SubmitBlocking(ctx, entry) {
				domain.ReleaseLogEntry(entry)
				if ctx.Err() != nil {
					return ctx.Err()
				}
				log.Warn().Msg("Failed to submit entry to worker pool")
			}
		}
	}
}

// Summary reports the current state; safe to call while running.
func (r *Replayer) Summary() ReplaySummary {
	return ReplaySummary{
		Entries:        r.pool.Processed(),
		Rejected:       r.pool.Rejected(),
		ReadErrors:     r.readErrs.Load(),
		Stats:          r.pool.Tally().Snapshot(),
		TrackedClients: r.detector.TrackedClients(),
		TopClients:     r.detector.TopClients(r.topN),
		Duration:       time.Since(r.startedAt),
	}
}

// IsInterrupted reports whether err ended a replay early through
// cancellation rather than failure.
func IsInterrupted(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
