package sqlsource

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/vnykmshr/pageflow/pkg/metrics"
	"github.com/vnykmshr/pageflow/pkg/scheduling/page"
	"github.com/vnykmshr/pageflow/pkg/scheduling/pipeline"
)

// RowFunc is applied to every row of a result set.
type RowFunc[T any] func(ctx context.Context, row T) error

type applyOptions struct {
	name        string
	args        []any
	pageSize    int
	maxPages    int
	maxThreads  int
	fifo        bool
	stopOnError bool
	logger      *zap.Logger
	metrics     metrics.Config
}

// Option configures Apply and ApplyParallel.
type Option func(*applyOptions)

// WithArgs binds query arguments.
func WithArgs(args ...any) Option {
	return func(o *applyOptions) { o.args = args }
}

// WithName names the source and pipeline in logs and metrics.
func WithName(name string) Option {
	return func(o *applyOptions) { o.name = name }
}

// WithPageSize sets the number of rows per page.
func WithPageSize(n int) Option {
	return func(o *applyOptions) { o.pageSize = n }
}

// WithSizing overrides the hardware derived queue and slot counts.
func WithSizing(maxPages, maxThreads int) Option {
	return func(o *applyOptions) {
		o.maxPages = maxPages
		o.maxThreads = maxThreads
	}
}

// WithFIFO dispatches pages in production order instead of newest first.
func WithFIFO() Option {
	return func(o *applyOptions) { o.fifo = true }
}

// WithStopOnError polls every slot after each dispatch so a failing row
// stops production as early as possible.
func WithStopOnError() Option {
	return func(o *applyOptions) { o.stopOnError = true }
}

// WithLogger sets the logger for the source and pipeline.
func WithLogger(logger *zap.Logger) Option {
	return func(o *applyOptions) { o.logger = logger }
}

// WithMetrics enables Prometheus instrumentation of the source and pipeline.
func WithMetrics(config metrics.Config) Option {
	return func(o *applyOptions) { o.metrics = config }
}

func collect(opts []Option) applyOptions {
	o := applyOptions{name: "apply", logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Apply runs fn for every row of query on the calling goroutine.
func Apply[T any](ctx context.Context, db Querier, query string, scan ScanFunc[T], fn RowFunc[T], opts ...Option) error {
	o := collect(opts)
	src, err := NewWithConfig(db, scan, Config{
		Name:     o.name,
		PageSize: o.pageSize,
		Logger:   o.logger,
	}, query, o.args...)
	if err != nil {
		return err
	}
	defer func() { _ = src.Close() }()

	var seq uint64
	for more := true; more; seq++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		pg := page.New[T](seq, src.config.PageSize)
		if more, err = src.Produce(ctx, pg); err != nil {
			return err
		}
		for i, row := range pg.Items {
			if err := fn(ctx, row); err != nil {
				return fmt.Errorf("row %d of page %d: %w", i, pg.Seq(), err)
			}
		}
	}
	return nil
}

// ApplyParallel runs fn for every row of query. Rows are read in pages on
// one goroutine and the pages are handed to concurrent worker slots. It
// returns the first error raised by the query or by fn.
func ApplyParallel[T any](ctx context.Context, db Querier, query string, scan ScanFunc[T], fn RowFunc[T], opts ...Option) error {
	o := collect(opts)
	src, err := NewWithConfig(db, scan, Config{
		Name:     o.name,
		PageSize: o.pageSize,
		Logger:   o.logger,
		Metrics:  o.metrics,
	}, query, o.args...)
	if err != nil {
		return err
	}
	defer func() { _ = src.Close() }()

	consumer := pipeline.ConsumerFunc[T](func(ctx context.Context, pg *page.Page[T]) error {
		for _, row := range pg.Items {
			if err := fn(ctx, row); err != nil {
				return err
			}
		}
		return nil
	})

	config := pipeline.Config[T]{
		Name:         o.name,
		MaxPages:     o.maxPages,
		MaxThreads:   o.maxThreads,
		PageCapacity: src.config.PageSize,
		Producer:     src,
		Consumer:     consumer,
		Logger:       o.logger,
	}
	if o.fifo {
		config.Discipline = page.FIFO
	}
	if o.stopOnError {
		config.ErrorPolicy = pipeline.StopOnError
	}

	var p pipeline.Pipeline[T]
	if o.metrics.Enabled {
		p, err = pipeline.NewWithConfigAndMetrics(config, o.name, o.metrics)
	} else {
		p, err = pipeline.NewWithConfig(config)
	}
	if err != nil {
		return err
	}
	return p.Run(ctx)
}
