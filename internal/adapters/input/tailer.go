package input

import (
	"context"
	"io"
	"sync"

	"github.com/nxadm/tail"
	"github.com/rs/zerolog/log"

	"github.com/xoelrdgz/botradar/internal/domain"
	"github.com/xoelrdgz/botradar/internal/ports"
)

// FileTailer reads an access log line by line and emits parsed entries.
//
// With Follow set it keeps waiting for new lines (and reopens rotated
// files) until stopped; otherwise it reads the file once from the start and
// closes its channels at EOF.
type FileTailer struct {
	filepath   string
	parser     ports.LineParser
	bufferSize int
	follow     bool

	tail     *tail.Tail
	mu       sync.Mutex
	running  bool
	stopChan chan struct{}
	skipped  int
}

// TailerConfig configures a FileTailer.
type TailerConfig struct {
	Path       string           // Log file path
	Parser     ports.LineParser // Line parser
	BufferSize int              // Entry channel capacity (default: 1000)
	Follow     bool             // Keep reading appended lines
}

func NewFileTailer(config TailerConfig) *FileTailer {
	if config.BufferSize <= 0 {
		config.BufferSize = 1000
	}
	return &FileTailer{
		filepath:   config.Path,
		parser:     config.Parser,
		bufferSize: config.BufferSize,
		follow:     config.Follow,
		stopChan:   make(chan struct{}),
	}
}

func (t *FileTailer) Start(ctx context.Context) (<-chan *domain.LogEntry, <-chan error) {
	entryChan := make(chan *domain.LogEntry, t.bufferSize)
	errChan := make(chan error, 10)

	t.mu.Lock()
	if t.running {
		t.mu.Unlock()
		close(entryChan)
		close(errChan)
		return entryChan, errChan
	}
	t.running = true
	t.stopChan = make(chan struct{})
	stopChan := t.stopChan

	config := tail.Config{
		Follow:    t.follow,
		ReOpen:    t.follow,
		MustExist: !t.follow,
		Location:  &tail.SeekInfo{Offset: 0, Whence: io.SeekStart},
		Logger:    tail.DiscardingLogger,
	}
	tf, err := tail.TailFile(t.filepath, config)
	t.tail = tf
	t.mu.Unlock()

	if err != nil {
		log.Error().Err(err).Str("file", t.filepath).Msg("Failed to open log file")
		errChan <- err
		close(errChan)
		close(entryChan)
		t.markStopped()
		return entryChan, errChan
	}

	go func() {
		defer close(entryChan)
		defer close(errChan)
		defer t.markStopped()

		log.Info().Str("file", t.filepath).Bool("follow", t.follow).Msg("Started reading log file")

		for {
			select {
			case <-ctx.Done():
				return
			case <-stopChan:
				return
			case line, ok := <-tf.Lines:
				if !ok {
					log.Info().Str("file", t.filepath).Int("skipped", t.Skipped()).Msg("Reached end of log file")
					return
				}
				if line.Err != nil {
					log.Warn().Err(line.Err).Msg("Error reading line")
					select {
					case errChan <- line.Err:
					default:
					}
					continue
				}
				if line.Text == "" {
					continue
				}

				entry, err := t.parser.Parse(line.Text)
				if err != nil {
					t.mu.Lock()
					t.skipped++
					t.mu.Unlock()
					log.Debug().Err(err).Int("line", line.Num).Msg("Skipping malformed log line")
					continue
				}

				select {
				case entryChan <- entry:
				case <-ctx.Done():
					domain.ReleaseLogEntry(entry)
					return
				case <-stopChan:
					domain.ReleaseLogEntry(entry)
					return
				}
			}
		}
	}()

	return entryChan, errChan
}

func (t *FileTailer) markStopped() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.running = false
	if t.tail != nil {
		_ = t.tail.Stop()
		t.tail.Cleanup()
		t.tail = nil
	}
}

func (t *FileTailer) Stop() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.running {
		return nil
	}

	close(t.stopChan)
	t.running = false
	return nil
}

func (t *FileTailer) IsRunning() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}

// Skipped returns the number of lines the parser rejected.
func (t *FileTailer) Skipped() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.skipped
}
