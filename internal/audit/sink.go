package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/org/loginshield/internal/storage"
	"github.com/org/loginshield/pkg/models"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Sink is an append-only destination for audit events.
type Sink interface {
	Write(ctx context.Context, event *models.AuditEvent) error
}

// encodeLine serializes one event as a newline-terminated JSON object.
// HTML characters are kept literal so payload samples read as sent.
func encodeLine(e *models.AuditEvent) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(e); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriterSink writes JSON lines to an io.Writer. Each record goes out in a
// single Write under a mutex, so concurrent events never interleave.
type WriterSink struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriterSink returns a WriterSink over w.
func NewWriterSink(w io.Writer) *WriterSink {
	return &WriterSink{w: w}
}

func (s *WriterSink) Write(ctx context.Context, e *models.AuditEvent) error {
	line, err := encodeLine(e)
	if err != nil {
		return fmt.Errorf("encoding audit event: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.w.Write(line); err != nil {
		return fmt.Errorf("writing audit event: %w", err)
	}
	return nil
}

// FileSink appends JSON lines to a file opened with O_APPEND.
type FileSink struct {
	WriterSink
	f    *os.File
	path string
}

// OpenFileSink opens (creating if needed) the audit file at path.
func OpenFileSink(path string) (*FileSink, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("creating audit log dir: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o640)
	if err != nil {
		return nil, fmt.Errorf("opening audit log: %w", err)
	}
	return &FileSink{WriterSink: WriterSink{w: f}, f: f, path: path}, nil
}

// Path returns the file location.
func (s *FileSink) Path() string { return s.path }

// Close closes the underlying file. Later writes fail and go to the fallback.
func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.f.Close()
}

// StoreSink mirrors events into a storage backend so they can be queried.
type StoreSink struct {
	store storage.AuditWriter
}

// NewStoreSink returns a StoreSink over store.
func NewStoreSink(store storage.AuditWriter) *StoreSink {
	return &StoreSink{store: store}
}

func (s *StoreSink) Write(ctx context.Context, e *models.AuditEvent) error {
	if err := s.store.WriteAuditEvent(ctx, e); err != nil {
		return fmt.Errorf("storing audit event: %w", err)
	}
	return nil
}

// MultiSink writes every event to each sink in order. A failing sink does
// not stop the others; all errors are returned joined. Put the durable file
// sink first so it is written before any slower mirror.
type MultiSink []Sink

func (m MultiSink) Write(ctx context.Context, e *models.AuditEvent) error {
	var errs []error
	for _, s := range m {
		if err := s.Write(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

const (
	// DefaultQueueSize is the AsyncSink buffer when none is configured.
	DefaultQueueSize = 1024
	// DefaultWriteTimeout bounds one AsyncSink write to the inner sink.
	DefaultWriteTimeout = 2 * time.Second
)

var (
	// ErrQueueFull is returned when an AsyncSink has no room for the event.
	// The event is dropped.
	ErrQueueFull = errors.New("audit queue full, event dropped")
	// ErrSinkClosed is returned by writes after Close.
	ErrSinkClosed = errors.New("audit sink closed")
)

// AsyncConfig tunes an AsyncSink. Zero values select the defaults.
type AsyncConfig struct {
	QueueSize    int
	WriteTimeout time.Duration
	// Fallback receives events the inner sink rejected or that timed out.
	// Defaults to the global logger.
	Fallback *zerolog.Logger
}

// AsyncSink queues events for a background goroutine that writes them to
// an inner sink, so a slow or hung destination never holds up the caller.
// Each write runs detached from the caller's context under WriteTimeout.
type AsyncSink struct {
	inner    Sink
	timeout  time.Duration
	fallback *zerolog.Logger

	mu     sync.RWMutex
	closed bool
	queue  chan *models.AuditEvent
	done   chan struct{}
}

// NewAsyncSink starts the background writer for inner.
func NewAsyncSink(inner Sink, cfg AsyncConfig) *AsyncSink {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.Fallback == nil {
		cfg.Fallback = &log.Logger
	}
	s := &AsyncSink{
		inner:    inner,
		timeout:  cfg.WriteTimeout,
		fallback: cfg.Fallback,
		queue:    make(chan *models.AuditEvent, cfg.QueueSize),
		done:     make(chan struct{}),
	}
	go s.run()
	return s
}

// Write enqueues e without blocking. A full queue drops the event and
// returns ErrQueueFull.
func (s *AsyncSink) Write(ctx context.Context, e *models.AuditEvent) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrSinkClosed
	}
	select {
	case s.queue <- e:
		return nil
	default:
		return ErrQueueFull
	}
}

func (s *AsyncSink) run() {
	defer close(s.done)
	for e := range s.queue {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		err := s.inner.Write(ctx, e)
		cancel()
		if err != nil {
			reportFailure(s.fallback, e, err)
		}
	}
}

// Close stops accepting events and waits until the queue is drained or ctx
// is done.
func (s *AsyncSink) Close(ctx context.Context) error {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.queue)
	}
	s.mu.Unlock()

	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("draining audit queue: %w", ctx.Err())
	}
}
