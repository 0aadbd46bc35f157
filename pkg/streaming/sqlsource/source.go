package sqlsource

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	sq "github.com/Masterminds/squirrel"
	"go.uber.org/zap"

	pferrors "github.com/vnykmshr/pageflow/pkg/common/errors"
	"github.com/vnykmshr/pageflow/pkg/common/validation"
	"github.com/vnykmshr/pageflow/pkg/metrics"
	"github.com/vnykmshr/pageflow/pkg/scheduling/page"
)

// DefaultPageSize is the number of rows read into one page.
const DefaultPageSize = 128

// Querier is the part of *sql.DB, *sql.Conn and *sql.Tx a source reads through.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// ScanFunc converts the current row into a value.
type ScanFunc[T any] func(rows *sql.Rows) (T, error)

// Config holds source configuration.
type Config struct {
	// Name identifies the source in logs and metrics.
	Name string

	// PageSize is the maximum number of rows per page. Defaults to DefaultPageSize.
	PageSize int

	// Logger receives cursor lifecycle events. Defaults to a no-op logger.
	Logger *zap.Logger

	// Metrics enables Prometheus instrumentation when Enabled is set.
	Metrics metrics.Config
}

// Stats holds source statistics.
type Stats struct {
	Queries   int64
	Rows      int64
	Pages     int64
	Exhausted bool
}

// Producer pages the result set of a single query. The cursor is opened on
// the first Produce call and closed when it is exhausted, when a scan fails
// or when Close is called.
//
// Producer is driven by a single goroutine and is not safe for concurrent
// Produce calls.
type Producer[T any] struct {
	db       Querier
	scan     ScanFunc[T]
	query    string
	args     []any
	config   Config
	logger   *zap.Logger
	registry *metrics.Registry

	mu    sync.Mutex
	rows  *sql.Rows
	done  bool
	stats Stats
}

// New creates a Producer for query with the default configuration.
func New[T any](db Querier, scan ScanFunc[T], query string, args ...any) (*Producer[T], error) {
	return NewWithConfig(db, scan, Config{}, query, args...)
}

// NewFromBuilder creates a Producer for the statement built by builder.
func NewFromBuilder[T any](db Querier, scan ScanFunc[T], builder sq.Sqlizer, config Config) (*Producer[T], error) {
	if builder == nil {
		return nil, pferrors.NewValidationError("sqlsource", "builder", nil, "cannot be nil")
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, pferrors.NewOperationError("sqlsource", "ToSql", err)
	}
	return NewWithConfig(db, scan, config, query, args...)
}

// NewWithConfig creates a Producer for query with custom configuration.
func NewWithConfig[T any](db Querier, scan ScanFunc[T], config Config, query string, args ...any) (*Producer[T], error) {
	if err := validation.ValidateNotNil("sqlsource", "db", db); err != nil {
		return nil, err
	}
	if scan == nil {
		return nil, pferrors.NewValidationError("sqlsource", "scan", nil, "cannot be nil")
	}
	if err := validation.ValidateNotEmpty("sqlsource", "query", query); err != nil {
		return nil, err
	}
	if err := validation.ValidateNonNegative("sqlsource", "page_size", config.PageSize); err != nil {
		return nil, err
	}

	if config.Name == "" {
		config.Name = "sql"
	}
	if config.PageSize == 0 {
		config.PageSize = DefaultPageSize
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}

	p := &Producer[T]{
		db:     db,
		scan:   scan,
		query:  query,
		args:   args,
		config: config,
		logger: config.Logger.Named("sqlsource").With(zap.String("source", config.Name)),
	}
	if config.Metrics.Enabled {
		p.registry = config.Metrics.Resolve()
	}
	return p, nil
}

// Produce fills pg with up to PageSize rows. It reports false once the
// cursor is exhausted.
func (p *Producer[T]) Produce(ctx context.Context, pg *page.Page[T]) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.done {
		return false, nil
	}
	if p.rows == nil {
		if err := p.open(ctx); err != nil {
			p.done = true
			return false, err
		}
	}

	for pg.Len() < p.config.PageSize {
		if !p.rows.Next() {
			err := p.rows.Err()
			p.finish()
			if err != nil {
				return false, p.fail("Next", err)
			}
			p.countPage(pg)
			return false, nil
		}

		item, err := p.scan(p.rows)
		if err != nil {
			p.finish()
			return false, p.fail("Scan", err).WithContext(fmt.Sprintf("row %d", p.stats.Rows))
		}
		pg.Append(item)
		p.stats.Rows++
	}

	p.countPage(pg)
	return true, nil
}

// Close releases the cursor. A run that stops before the source is
// exhausted leaves it open, so callers close the source once the run returns.
func (p *Producer[T]) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.rows == nil {
		return nil
	}
	err := p.rows.Close()
	p.rows = nil
	p.done = true
	return err
}

// Reset closes the cursor and rewinds the source so the next Produce
// re-issues the query.
func (p *Producer[T]) Reset() error {
	err := p.Close()

	p.mu.Lock()
	p.done = false
	p.stats.Exhausted = false
	p.mu.Unlock()
	return err
}

// Stats returns a snapshot of source statistics.
func (p *Producer[T]) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

// Query returns the statement the source reads.
func (p *Producer[T]) Query() string {
	return p.query
}

func (p *Producer[T]) open(ctx context.Context) error {
	start := time.Now()
	rows, err := p.db.QueryContext(ctx, p.query, p.args...)
	elapsed := time.Since(start)

	p.stats.Queries++
	if p.registry != nil {
		p.registry.SourceQueries.WithLabelValues(p.config.Name).Inc()
		p.registry.SourceQueryDuration.WithLabelValues(p.config.Name).Observe(elapsed.Seconds())
	}
	if err != nil {
		return p.fail("Query", err)
	}

	p.rows = rows
	p.logger.Debug("cursor opened", zap.Duration("elapsed", elapsed))
	return nil
}

// finish closes the cursor and marks the source exhausted.
func (p *Producer[T]) finish() {
	if p.rows != nil {
		_ = p.rows.Close()
		p.rows = nil
	}
	p.done = true
	p.stats.Exhausted = true
	p.logger.Debug("cursor closed", zap.Int64("rows", p.stats.Rows))
}

func (p *Producer[T]) countPage(pg *page.Page[T]) {
	if pg.Empty() {
		return
	}
	p.stats.Pages++
	if p.registry != nil {
		p.registry.SourceRows.WithLabelValues(p.config.Name).Add(float64(pg.Len()))
	}
}

func (p *Producer[T]) fail(op string, err error) *pferrors.OperationError {
	if p.registry != nil {
		p.registry.SourceErrors.WithLabelValues(p.config.Name).Inc()
	}
	p.logger.Warn("source read failed", zap.String("op", op), zap.Error(err))
	return pferrors.NewOperationError("sqlsource", op, err)
}
