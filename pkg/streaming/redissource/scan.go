package redissource

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	pferrors "github.com/vnykmshr/pageflow/pkg/common/errors"
	"github.com/vnykmshr/pageflow/pkg/common/validation"
	"github.com/vnykmshr/pageflow/pkg/metrics"
	"github.com/vnykmshr/pageflow/pkg/scheduling/page"
)

// DefaultCount is the SCAN COUNT hint used when none is configured.
const DefaultCount = 128

// ScanConfig holds configuration for a ScanProducer.
type ScanConfig struct {
	// Name identifies the source in logs and metrics.
	Name string

	// Match is the SCAN MATCH pattern. Defaults to "*".
	Match string

	// Count is the SCAN COUNT hint. Redis may return more or fewer keys
	// per call. Defaults to DefaultCount.
	Count int64

	// Type restricts the scan to keys of one type, e.g. "string".
	Type string

	// Limiter, when set, is waited on before every SCAN call.
	Limiter Waiter

	// Logger receives cursor events. Defaults to a no-op logger.
	Logger *zap.Logger

	// Metrics enables Prometheus instrumentation when Enabled is set.
	Metrics metrics.Config
}

// Waiter paces round trips to the server. *bucket.Limiter implements it.
type Waiter interface {
	Wait(ctx context.Context) error
}

// ScanStats holds scan statistics.
type ScanStats struct {
	Calls     int64
	Keys      int64
	Exhausted bool
}

// ScanProducer pages the keyspace with SCAN. Every page holds the keys of one
// or more SCAN calls; the scan is complete when Redis returns cursor 0.
//
// SCAN may return a key more than once when the keyspace is resized during
// the scan.
type ScanProducer struct {
	client   redis.UniversalClient
	config   ScanConfig
	logger   *zap.Logger
	registry *metrics.Registry

	mu     sync.Mutex
	cursor uint64
	done   bool
	stats  ScanStats
}

// NewScanProducer creates a ScanProducer over client.
func NewScanProducer(client redis.UniversalClient, config ScanConfig) (*ScanProducer, error) {
	if err := validation.ValidateNotNil("redissource", "client", client); err != nil {
		return nil, err
	}
	if err := validation.ValidateNonNegative("redissource", "count", config.Count); err != nil {
		return nil, err
	}

	if config.Name == "" {
		config.Name = "redis"
	}
	if config.Match == "" {
		config.Match = "*"
	}
	if config.Count == 0 {
		config.Count = DefaultCount
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}

	s := &ScanProducer{
		client: client,
		config: config,
		logger: config.Logger.Named("redissource").With(zap.String("source", config.Name)),
	}
	if config.Metrics.Enabled {
		s.registry = config.Metrics.Resolve()
	}
	return s, nil
}

// Produce issues SCAN calls until pg holds at least one key or the cursor
// returns to 0.
func (s *ScanProducer) Produce(ctx context.Context, pg *page.Page[string]) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.done {
		return false, nil
	}

	for pg.Empty() {
		keys, cursor, err := s.scan(ctx)
		if err != nil {
			s.done = true
			if s.registry != nil {
				s.registry.SourceErrors.WithLabelValues(s.config.Name).Inc()
			}
			return false, pferrors.NewOperationError("redissource", "Scan", err)
		}

		pg.Append(keys...)
		s.cursor = cursor
		s.stats.Keys += int64(len(keys))
		if s.registry != nil {
			s.registry.SourceRows.WithLabelValues(s.config.Name).Add(float64(len(keys)))
		}

		if cursor == 0 {
			s.done = true
			s.stats.Exhausted = true
			s.logger.Debug("scan complete", zap.Int64("keys", s.stats.Keys), zap.Int64("calls", s.stats.Calls))
			return false, nil
		}
	}
	return true, nil
}

func (s *ScanProducer) scan(ctx context.Context) ([]string, uint64, error) {
	if s.config.Limiter != nil {
		if err := s.config.Limiter.Wait(ctx); err != nil {
			return nil, 0, err
		}
	}

	start := time.Now()
	var cmd *redis.ScanCmd
	if s.config.Type != "" {
		cmd = s.client.ScanType(ctx, s.cursor, s.config.Match, s.config.Count, s.config.Type)
	} else {
		cmd = s.client.Scan(ctx, s.cursor, s.config.Match, s.config.Count)
	}
	keys, cursor, err := cmd.Result()

	s.stats.Calls++
	if s.registry != nil {
		s.registry.SourceQueries.WithLabelValues(s.config.Name).Inc()
		s.registry.SourceQueryDuration.WithLabelValues(s.config.Name).Observe(time.Since(start).Seconds())
	}
	return keys, cursor, err
}

// Reset rewinds the cursor so the next Produce starts a new scan.
func (s *ScanProducer) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cursor = 0
	s.done = false
	s.stats.Exhausted = false
}

// Stats returns a snapshot of scan statistics.
func (s *ScanProducer) Stats() ScanStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}
