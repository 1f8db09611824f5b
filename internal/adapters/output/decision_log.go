// Package output provides decision outputs and observability for botradar.
//
// This file implements decision destinations:
//   - JSONDecisionLog: Buffered JSON lines to file and/or stdout
//   - MemoryDecisionLog: In-memory ring buffer of recent decisions
//
// Features:
//   - Buffered I/O for high throughput (64KB buffer)
//   - Periodic automatic flushing (1 second)
//   - File sync on flush for durability
//   - Ring buffer for memory-bounded storage
//
// Thread Safety: All implementations are safe for concurrent Send() calls.
package output

import (
	"bufio"
	"context"
	"io"
	"os"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/xoelrdgz/botradar/internal/domain"
)

// JSONDecisionLog writes decisions as JSON lines to a file, stdout, or both.
type JSONDecisionLog struct {
	bufWriter *bufio.Writer // Buffered writer (64KB)
	file      *os.File      // File handle (nil for stdout)
	mu        sync.Mutex    // Protects writes
	encoder   *json.Encoder // Reused encoder
	stopFlush chan struct{} // Stop periodic flush
	closeOnce sync.Once
}

// JSONDecisionLogConfig configures JSON decision output.
type JSONDecisionLogConfig struct {
	FilePath string // Output file path (empty for discard)
	Stdout   bool   // Write to stdout
}

// NewJSONDecisionLog creates a JSON lines decision output.
//
// Destinations:
//   - File if config.FilePath is set
//   - Stdout if config.Stdout is true
//   - Both when both are configured
//   - io.Discard otherwise
//
// File Permissions: 0600 (owner read/write only)
func NewJSONDecisionLog(config JSONDecisionLogConfig) (*JSONDecisionLog, error) {
	var writers []io.Writer
	var file *os.File

	if config.Stdout {
		writers = append(writers, os.Stdout)
	}
	if config.FilePath != "" {
		var err error
		file, err = os.OpenFile(config.FilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
		if err != nil {
			return nil, err
		}
		writers = append(writers, file)
	}

	var writer io.Writer
	switch len(writers) {
	case 0:
		writer = io.Discard
	case 1:
		writer = writers[0]
	default:
		writer = io.MultiWriter(writers...)
	}

	return newJSONDecisionLog(writer, file), nil
}

func newJSONDecisionLog(writer io.Writer, file *os.File) *JSONDecisionLog {
	const bufferSize = 64 * 1024
	bufWriter := bufio.NewWriterSize(writer, bufferSize)

	l := &JSONDecisionLog{
		bufWriter: bufWriter,
		file:      file,
		encoder:   json.NewEncoder(bufWriter),
		stopFlush: make(chan struct{}),
	}
	go l.periodicFlush()
	return l
}

// periodicFlush flushes the buffer every second until Close.
func (l *JSONDecisionLog) periodicFlush() {
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			_ = l.Flush()
		case <-l.stopFlush:
			return
		}
	}
}

// Send writes one decision as a JSON line.
func (l *JSONDecisionLog) Send(ctx context.Context, decision *domain.Decision) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.encoder.Encode(decision)
}

// Flush forces buffered data to disk.
func (l *JSONDecisionLog) Flush() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.bufWriter.Flush(); err != nil {
		return err
	}
	if l.file != nil {
		return l.file.Sync()
	}
	return nil
}

// Close stops periodic flushing, flushes and closes the file. Safe to call
// more than once.
func (l *JSONDecisionLog) Close() error {
	var err error
	l.closeOnce.Do(func() {
		close(l.stopFlush)

		l.mu.Lock()
		defer l.mu.Unlock()

		if err = l.bufWriter.Flush(); err != nil {
			return
		}
		if l.file != nil {
			if err = l.file.Sync(); err != nil {
				return
			}
			err = l.file.Close()
		}
	})
	return err
}

// MemoryDecisionLog stores decisions in a fixed-size ring buffer.
//
// Thread Safety: Safe for concurrent access via RWMutex.
type MemoryDecisionLog struct {
	decisions []*domain.Decision // Ring buffer storage
	head      int                // Next write position
	count     int                // Current decision count
	mu        sync.RWMutex       // Protects all fields
}

// NewMemoryDecisionLog creates an in-memory decision buffer.
//
// Parameters:
//   - maxDecisions: Maximum decisions to store (default: 1000 if <= 0)
func NewMemoryDecisionLog(maxDecisions int) *MemoryDecisionLog {
	if maxDecisions <= 0 {
		maxDecisions = 1000
	}
	return &MemoryDecisionLog{
		decisions: make([]*domain.Decision, maxDecisions),
	}
}

// Send stores a decision, overwriting the oldest when full.
func (l *MemoryDecisionLog) Send(ctx context.Context, decision *domain.Decision) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.decisions[l.head] = decision
	l.head = (l.head + 1) % len(l.decisions)
	if l.count < len(l.decisions) {
		l.count++
	}
	return nil
}

func (l *MemoryDecisionLog) Flush() error { return nil }

func (l *MemoryDecisionLog) Close() error { return nil }

// Latest returns the n most recent decisions, oldest first. n <= 0
// returns everything stored.
func (l *MemoryDecisionLog) Latest(n int) []*domain.Decision {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if n <= 0 || n > l.count {
		n = l.count
	}
	result := make([]*domain.Decision, n)
	size := len(l.decisions)
	for i := 0; i < n; i++ {
		result[i] = l.decisions[(l.head-n+i+size)%size]
	}
	return result
}

// Count returns the current number of stored decisions.
func (l *MemoryDecisionLog) Count() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.count
}
