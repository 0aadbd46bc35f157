package writer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/vnykmshr/pageflow/internal/testutil"
	pferrors "github.com/vnykmshr/pageflow/pkg/common/errors"
	"github.com/vnykmshr/pageflow/pkg/metrics"
	"github.com/vnykmshr/pageflow/pkg/scheduling/page"
	"github.com/vnykmshr/pageflow/pkg/scheduling/pipeline"
)

var lines = Lines(func(s string) string { return s })

func pageOf(seq uint64, items ...string) *page.Page[string] {
	p := page.New[string](seq, len(items))
	p.Append(items...)
	return p
}

func TestNewPanicsOnNil(t *testing.T) {
	tests := []struct {
		name string
		fn   func()
	}{
		{"nil writer", func() { New[string](nil, lines) }},
		{"nil encode", func() { New[string](testutil.NewMockWriter(), nil) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer func() {
				r := recover()
				if r == nil {
					t.Fatal("expected panic")
				}
				err, ok := r.(error)
				if !ok || !pferrors.IsValidationError(err) {
					t.Errorf("panic value = %v, want ValidationError", r)
				}
			}()
			tt.fn()
		})
	}
}

func TestConsumeBuffersUntilFlush(t *testing.T) {
	underlying := testutil.NewMockWriter()
	w := New(underlying, lines)
	ctx := context.Background()

	testutil.AssertNoError(t, w.Consume(ctx, pageOf(0, "a", "b")))
	testutil.AssertNoError(t, w.Consume(ctx, pageOf(1, "c")))

	testutil.AssertEqual(t, underlying.Len(), 0)
	testutil.AssertEqual(t, w.Buffered(), 6)

	testutil.AssertNoError(t, w.Flush(ctx))
	testutil.AssertEqual(t, underlying.String(), "a\nb\nc\n")
	testutil.AssertEqual(t, underlying.WriteCount(), 1)
	testutil.AssertEqual(t, w.Buffered(), 0)

	stats := w.Stats()
	testutil.AssertEqual(t, stats.PagesWritten, int64(2))
	testutil.AssertEqual(t, stats.ItemsWritten, int64(3))
	testutil.AssertEqual(t, stats.BytesWritten, int64(6))
	testutil.AssertEqual(t, stats.FlushCount, int64(1))
}

func TestBufferOverflowFlushesPending(t *testing.T) {
	underlying := testutil.NewMockWriter()
	w := NewWithConfig(underlying, lines, Config{BufferSize: 8})
	ctx := context.Background()

	testutil.AssertNoError(t, w.Consume(ctx, pageOf(0, "aaa", "bbb"))) // 8 bytes
	testutil.AssertEqual(t, underlying.Len(), 0)

	testutil.AssertNoError(t, w.Consume(ctx, pageOf(1, "cc"))) // does not fit
	testutil.AssertEqual(t, underlying.String(), "aaa\nbbb\n")
	testutil.AssertEqual(t, w.Buffered(), 3)

	testutil.AssertNoError(t, w.Close())
	testutil.AssertEqual(t, underlying.String(), "aaa\nbbb\ncc\n")
}

func TestLargePageBypassesBuffer(t *testing.T) {
	underlying := testutil.NewMockWriter()
	w := NewWithConfig(underlying, lines, Config{BufferSize: 4})
	ctx := context.Background()

	testutil.AssertNoError(t, w.Consume(ctx, pageOf(0, "x")))
	testutil.AssertNoError(t, w.Consume(ctx, pageOf(1, "longer line")))

	// pending "x\n" goes first, then the large page in one write
	testutil.AssertEqual(t, underlying.String(), "x\nlonger line\n")
	testutil.AssertEqual(t, underlying.WriteCount(), 2)
	testutil.AssertEqual(t, w.Buffered(), 0)
}

func TestFlushEveryPage(t *testing.T) {
	underlying := testutil.NewMockWriter()
	w := NewWithConfig(underlying, lines, Config{FlushEveryPage: true})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		testutil.AssertNoError(t, w.Consume(ctx, pageOf(uint64(i), strconv.Itoa(i))))
	}
	testutil.AssertEqual(t, underlying.String(), "0\n1\n2\n")
	testutil.AssertEqual(t, underlying.WriteCount(), 3)
}

func TestTransientWriteErrorIsRetried(t *testing.T) {
	underlying := testutil.NewMockWriter()
	underlying.FailNext(1, nil)

	var flushes atomic.Int32
	w := NewWithConfig(underlying, lines, Config{
		FlushEveryPage: true,
		MaxRetries:     2,
		RetryDelay:     time.Millisecond,
		OnFlush:        func(int, time.Duration) { flushes.Add(1) },
	})

	testutil.AssertNoError(t, w.Consume(context.Background(), pageOf(0, "hello")))
	testutil.AssertEqual(t, underlying.String(), "hello\n")
	testutil.AssertEqual(t, underlying.WriteCount(), 2)
	testutil.AssertEqual(t, flushes.Load(), int32(1))
	testutil.AssertEqual(t, w.Stats().ErrorCount, int64(0))
}

func TestShortWritesAreResumed(t *testing.T) {
	underlying := testutil.NewMockWriter()
	underlying.LimitWrites(4)

	w := NewWithConfig(underlying, lines, Config{
		FlushEveryPage: true,
		MaxRetries:     5,
		RetryDelay:     time.Millisecond,
	})

	testutil.AssertNoError(t, w.Consume(context.Background(), pageOf(0, "abcdef", "gh")))
	testutil.AssertEqual(t, underlying.String(), "abcdef\ngh\n")
	testutil.AssertEqual(t, strings.Join(underlying.Chunks(), "|"), "abcd|ef\ng|h\n")
}

func TestShortWritesGiveUp(t *testing.T) {
	underlying := testutil.NewMockWriter()
	underlying.LimitWrites(1)

	w := NewWithConfig(underlying, lines, Config{
		FlushEveryPage: true,
		MaxRetries:     1,
		RetryDelay:     time.Millisecond,
	})

	err := w.Consume(context.Background(), pageOf(0, "long"))
	testutil.AssertErrorIs(t, err, io.ErrShortWrite)
	testutil.AssertEqual(t, underlying.String(), "lo")
}

func TestWriteErrorIsReported(t *testing.T) {
	diskFull := errors.New("disk full")
	underlying := testutil.NewMockWriter()
	underlying.FailAlways(diskFull)

	var reported error
	w := NewWithConfig(underlying, lines, Config{
		FlushEveryPage: true,
		MaxRetries:     1,
		RetryDelay:     time.Millisecond,
		OnError:        func(err error) { reported = err },
	})

	err := w.Consume(context.Background(), pageOf(7, "lost"))
	testutil.AssertErrorIs(t, err, diskFull)
	testutil.AssertErrorIs(t, reported, diskFull)

	var opErr *pferrors.OperationError
	if !errors.As(err, &opErr) {
		t.Fatalf("expected OperationError, got %T", err)
	}
	testutil.AssertEqual(t, opErr.Context, "page 7")
	testutil.AssertEqual(t, underlying.WriteCount(), 2)

	stats := w.Stats()
	testutil.AssertEqual(t, stats.ErrorCount, int64(1))
	testutil.AssertEqual(t, stats.PagesWritten, int64(0))
}

func TestEncodeError(t *testing.T) {
	bad := errors.New("unencodable")
	underlying := testutil.NewMockWriter()
	w := New(underlying, func(buf *bytes.Buffer, s string) error {
		if s == "bad" {
			return bad
		}
		buf.WriteString(s)
		return nil
	})

	err := w.Consume(context.Background(), pageOf(3, "ok", "bad"))
	testutil.AssertErrorIs(t, err, bad)
	if !strings.Contains(err.Error(), "page 3 item 1") {
		t.Errorf("error %q does not name the failing item", err)
	}
	testutil.AssertEqual(t, w.Buffered(), 0)
}

func TestConsumeCanceled(t *testing.T) {
	w := New(testutil.NewMockWriter(), lines)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	testutil.AssertErrorIs(t, w.Consume(ctx, pageOf(0, "a")), context.Canceled)
}

func TestClose(t *testing.T) {
	underlying := testutil.NewMockWriter()
	w := New(underlying, lines)
	ctx := context.Background()

	testutil.AssertNoError(t, w.Consume(ctx, pageOf(0, "tail")))
	testutil.AssertNoError(t, w.Close())
	testutil.AssertEqual(t, w.IsClosed(), true)
	testutil.AssertEqual(t, underlying.String(), "tail\n")

	testutil.AssertErrorIs(t, w.Consume(ctx, pageOf(1, "late")), pferrors.ErrClosed)
	testutil.AssertErrorIs(t, w.Flush(ctx), ErrWriterClosed)
	testutil.AssertErrorIs(t, w.Close(), ErrWriterClosed)
}

func TestStatsBufferUtilization(t *testing.T) {
	w := NewWithConfig(testutil.NewMockWriter(), lines, Config{BufferSize: 10})
	testutil.AssertNoError(t, w.Consume(context.Background(), pageOf(0, "abcd")))

	stats := w.Stats()
	testutil.AssertEqual(t, stats.BufferUtilization, 0.5)
	if stats.LastWriteTime.IsZero() {
		t.Error("LastWriteTime not recorded")
	}
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	w := NewWithConfig(testutil.NewMockWriter(), lines, Config{
		Name:           "export",
		FlushEveryPage: true,
		Metrics:        metrics.Config{Enabled: true, Registry: reg},
	})

	for i := 0; i < 4; i++ {
		testutil.AssertNoError(t, w.Consume(context.Background(), pageOf(uint64(i), "abc")))
	}

	testutil.AssertEqual(t, promtest.ToFloat64(w.registry.WriterPages.WithLabelValues("export")), 4.0)
	testutil.AssertEqual(t, promtest.ToFloat64(w.registry.WriterBytesWritten.WithLabelValues("export")), 16.0)
	testutil.AssertEqual(t, promtest.ToFloat64(w.registry.WriterFlushes.WithLabelValues("export")), 4.0)
	testutil.AssertEqual(t, promtest.ToFloat64(w.registry.WriterErrors.WithLabelValues("export")), 0.0)
}

// Pages written from many slots must come out as contiguous blocks.
func TestPagesNeverInterleave(t *testing.T) {
	const pages, perPage = 40, 25

	underlying := testutil.NewMockWriter()
	w := NewWithConfig(underlying, Lines(func(s string) string { return s }), Config{
		BufferSize:     64,
		FlushEveryPage: true,
	})

	seq := 0
	producer := pipeline.ProducerFunc[string](func(ctx context.Context, p *page.Page[string]) (bool, error) {
		for i := 0; i < perPage; i++ {
			p.Append(fmt.Sprintf("%d:%d", seq, i))
		}
		seq++
		return seq < pages, nil
	})

	p, err := pipeline.NewWithConfig(pipeline.Config[string]{
		MaxPages:   8,
		MaxThreads: 4,
		Producer:   producer,
		Consumer:   w,
	})
	testutil.AssertNoError(t, err)

	ctx, cancel := testutil.WithTimeout(t)
	defer cancel()
	testutil.AssertNoError(t, p.Run(ctx))
	testutil.AssertNoError(t, w.Close())

	out := strings.Split(strings.TrimSuffix(underlying.String(), "\n"), "\n")
	testutil.AssertEqual(t, len(out), pages*perPage)

	seen := make(map[string]bool)
	for block := 0; block < pages; block++ {
		rows := out[block*perPage : (block+1)*perPage]
		owner := strings.SplitN(rows[0], ":", 2)[0]
		if seen[owner] {
			t.Fatalf("page %s written twice", owner)
		}
		seen[owner] = true
		for i, line := range rows {
			if want := fmt.Sprintf("%s:%d", owner, i); line != want {
				t.Fatalf("block %d line %d = %q, want %q", block, i, line, want)
			}
		}
	}
}
