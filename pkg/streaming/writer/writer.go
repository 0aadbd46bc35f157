package writer

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"

	pferrors "github.com/vnykmshr/pageflow/pkg/common/errors"
	"github.com/vnykmshr/pageflow/pkg/common/validation"
	"github.com/vnykmshr/pageflow/pkg/metrics"
	"github.com/vnykmshr/pageflow/pkg/scheduling/page"
)

// ErrWriterClosed is returned when consuming into or flushing a closed writer.
var ErrWriterClosed = fmt.Errorf("page writer: %w", pferrors.ErrClosed)

// EncodeFunc appends the encoding of a single item to buf.
type EncodeFunc[T any] func(buf *bytes.Buffer, item T) error

// Lines returns an EncodeFunc that writes format(item) followed by a newline.
func Lines[T any](format func(T) string) EncodeFunc[T] {
	return func(buf *bytes.Buffer, item T) error {
		buf.WriteString(format(item))
		return buf.WriteByte('\n')
	}
}

// Config holds configuration for a PageWriter.
type Config struct {
	// Name identifies the writer in logs and metrics.
	Name string

	// BufferSize is the number of encoded bytes held before they are written
	// to the underlying writer. Pages larger than the buffer bypass it.
	BufferSize int

	// FlushEveryPage writes each page through to the underlying writer as
	// soon as it is consumed.
	FlushEveryPage bool

	// MaxRetries is the number of times a failed or short write to the
	// underlying writer is retried before the error is reported.
	MaxRetries int

	// RetryDelay is the delay between write retries.
	RetryDelay time.Duration

	// Logger receives write failures. Defaults to a no-op logger.
	Logger *zap.Logger

	// Metrics enables Prometheus instrumentation when Enabled is set.
	Metrics metrics.Config

	// OnError is called when a write to the underlying writer fails.
	OnError func(error)

	// OnFlush is called after each write to the underlying writer.
	OnFlush func(bytesWritten int, duration time.Duration)
}

// DefaultConfig returns the default writer configuration.
func DefaultConfig() Config {
	return Config{
		Name:       "writer",
		BufferSize: 64 * 1024,
		MaxRetries: 3,
		RetryDelay: 100 * time.Millisecond,
	}
}

// Stats holds writer statistics.
type Stats struct {
	PagesWritten      int64
	ItemsWritten      int64
	BytesWritten      int64
	FlushCount        int64
	ErrorCount        int64
	TotalWriteTime    time.Duration
	AverageWriteTime  time.Duration
	LastWriteTime     time.Time
	BufferUtilization float64
}

// PageWriter is a pipeline consumer that serialises pages onto one io.Writer.
// Each page is encoded into a private buffer first, so concurrent consumers
// encode in parallel while the bytes of two pages never interleave.
type PageWriter[T any] struct {
	underlying io.Writer
	encode     EncodeFunc[T]
	config     Config
	logger     *zap.Logger
	registry   *metrics.Registry

	scratch sync.Pool

	mu      sync.Mutex
	pending []byte
	closed  bool
	stats   Stats
}

// New creates a PageWriter with the default configuration.
func New[T any](w io.Writer, encode EncodeFunc[T]) *PageWriter[T] {
	return NewWithConfig(w, encode, DefaultConfig())
}

// NewWithConfig creates a PageWriter with custom configuration. It panics if
// w or encode is nil.
func NewWithConfig[T any](w io.Writer, encode EncodeFunc[T], config Config) *PageWriter[T] {
	if err := validation.ValidateNotNil("writer", "writer", w); err != nil {
		panic(err)
	}
	if encode == nil {
		panic(pferrors.NewValidationError("writer", "encode", nil, "cannot be nil"))
	}

	defaults := DefaultConfig()
	if config.Name == "" {
		config.Name = defaults.Name
	}
	if config.BufferSize <= 0 {
		config.BufferSize = defaults.BufferSize
	}
	if config.MaxRetries < 0 {
		config.MaxRetries = defaults.MaxRetries
	}
	if config.RetryDelay <= 0 {
		config.RetryDelay = defaults.RetryDelay
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}

	pw := &PageWriter[T]{
		underlying: w,
		encode:     encode,
		config:     config,
		logger:     config.Logger.Named("writer").With(zap.String("writer", config.Name)),
		pending:    make([]byte, 0, config.BufferSize),
	}
	pw.scratch.New = func() interface{} { return new(bytes.Buffer) }
	if config.Metrics.Enabled {
		pw.registry = config.Metrics.Resolve()
	}
	return pw
}

// Consume encodes every item of p and appends the result to the output as a
// single contiguous block.
func (w *PageWriter[T]) Consume(ctx context.Context, p *page.Page[T]) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	buf := w.scratch.Get().(*bytes.Buffer)
	buf.Reset()
	defer w.scratch.Put(buf)

	for i, item := range p.Items {
		if err := w.encode(buf, item); err != nil {
			return pferrors.NewOperationError("writer", "Encode", err).
				WithContext(fmt.Sprintf("page %d item %d", p.Seq(), i))
		}
	}

	start := time.Now()

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrWriterClosed
	}

	switch {
	case buf.Len() > cap(w.pending):
		if err := w.flushLocked(ctx); err != nil {
			return w.consumeError(p, err)
		}
		if err := w.writeLocked(ctx, buf.Bytes()); err != nil {
			return w.consumeError(p, err)
		}
	default:
		if len(w.pending)+buf.Len() > cap(w.pending) {
			if err := w.flushLocked(ctx); err != nil {
				return w.consumeError(p, err)
			}
		}
		w.pending = append(w.pending, buf.Bytes()...)
		if w.config.FlushEveryPage {
			if err := w.flushLocked(ctx); err != nil {
				return w.consumeError(p, err)
			}
		}
	}

	elapsed := time.Since(start)
	w.stats.PagesWritten++
	w.stats.ItemsWritten += int64(p.Len())
	w.stats.BytesWritten += int64(buf.Len())
	w.stats.TotalWriteTime += elapsed
	w.stats.LastWriteTime = time.Now()

	if w.registry != nil {
		w.registry.WriterPages.WithLabelValues(w.config.Name).Inc()
		w.registry.WriterBytesWritten.WithLabelValues(w.config.Name).Add(float64(buf.Len()))
	}
	return nil
}

// Flush writes all buffered bytes to the underlying writer.
func (w *PageWriter[T]) Flush(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrWriterClosed
	}
	return w.flushLocked(ctx)
}

// Close flushes buffered bytes and rejects further pages. The underlying
// writer is left open. Closing twice returns ErrWriterClosed.
func (w *PageWriter[T]) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrWriterClosed
	}
	w.closed = true
	return w.flushLocked(context.Background())
}

// IsClosed reports whether Close has been called.
func (w *PageWriter[T]) IsClosed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closed
}

// Buffered returns the number of bytes waiting to be written.
func (w *PageWriter[T]) Buffered() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.pending)
}

// Stats returns a snapshot of writer statistics.
func (w *PageWriter[T]) Stats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()

	stats := w.stats
	if stats.PagesWritten > 0 {
		stats.AverageWriteTime = stats.TotalWriteTime / time.Duration(stats.PagesWritten)
	}
	stats.BufferUtilization = float64(len(w.pending)) / float64(cap(w.pending))
	return stats
}

func (w *PageWriter[T]) consumeError(p *page.Page[T], err error) error {
	return pferrors.NewOperationError("writer", "Consume", err).
		WithContext(fmt.Sprintf("page %d", p.Seq()))
}

// flushLocked writes pending bytes. The buffer is emptied even when the
// write fails. Callers hold w.mu.
func (w *PageWriter[T]) flushLocked(ctx context.Context) error {
	if len(w.pending) == 0 {
		return nil
	}

	err := w.writeLocked(ctx, w.pending)
	w.pending = w.pending[:0]
	return err
}

func (w *PageWriter[T]) writeLocked(ctx context.Context, data []byte) error {
	start := time.Now()
	written, err := w.writeWithRetries(ctx, data)
	elapsed := time.Since(start)

	w.stats.FlushCount++
	if w.registry != nil {
		w.registry.WriterFlushes.WithLabelValues(w.config.Name).Inc()
	}
	if w.config.OnFlush != nil {
		w.config.OnFlush(written, elapsed)
	}

	if err != nil {
		w.stats.ErrorCount++
		if w.registry != nil {
			w.registry.WriterErrors.WithLabelValues(w.config.Name).Inc()
		}
		w.logger.Warn("write failed",
			zap.Int("bytes", len(data)),
			zap.Int("written", written),
			zap.Error(err))
		if w.config.OnError != nil {
			w.config.OnError(err)
		}
	}
	return err
}

// writeWithRetries writes data, resuming after short or failed writes.
func (w *PageWriter[T]) writeWithRetries(ctx context.Context, data []byte) (int, error) {
	var total int
	var lastErr error

	for attempt := 0; attempt <= w.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(w.config.RetryDelay):
			case <-ctx.Done():
				return total, ctx.Err()
			}
		}

		n, err := w.underlying.Write(data[total:])
		total += n
		if err != nil {
			lastErr = err
			continue
		}
		if total >= len(data) {
			return total, nil
		}
		lastErr = io.ErrShortWrite
	}

	return total, lastErr
}
