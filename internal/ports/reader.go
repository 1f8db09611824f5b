package ports

import (
	"context"

	"github.com/xoelrdgz/botradar/internal/domain"
)

// ReplaySource feeds recorded requests into an offline replay.
//
// Every entry carries the request's original timestamp; the replay records
// it as the event time, so sources must emit a client's entries in log
// order. Ownership of each entry passes to the receiver, which releases it
// with domain.ReleaseLogEntry.
type ReplaySource interface {
	// Start begins producing entries. Both channels are closed once the
	// source is exhausted, stopped or ctx is cancelled. Errors are
	// non-fatal read failures; unparseable lines are skipped, not reported.
	Start(ctx context.Context) (<-chan *domain.LogEntry, <-chan error)

	// Stop ends a running source early. Safe to call when not running.
	Stop() error
}

// LineParser turns one access log line into an entry.
//
// Lines without a usable timestamp must be rejected: a replayed request
// with no event time cannot be placed in its client's history.
type LineParser interface {
	Parse(line string) (*domain.LogEntry, error)

	// Format names the accepted log format ("combined", "json", "auto").
	Format() string
}
