package redissource

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	pferrors "github.com/vnykmshr/pageflow/pkg/common/errors"
	"github.com/vnykmshr/pageflow/pkg/common/validation"
	"github.com/vnykmshr/pageflow/pkg/metrics"
	"github.com/vnykmshr/pageflow/pkg/scheduling/page"
	"github.com/vnykmshr/pageflow/pkg/scheduling/pipeline"
)

// Pair is a key with its string value.
type Pair struct {
	Key   string
	Value string
}

// String formats the pair as key=value.
func (p Pair) String() string {
	return p.Key + "=" + p.Value
}

// ValueConfig holds configuration for a ValueConsumer.
type ValueConfig struct {
	// Name identifies the consumer in metrics.
	Name string

	// FailOnMissing reports keys that vanished or hold a non-string value
	// as an error instead of skipping them.
	FailOnMissing bool

	// Metrics enables Prometheus instrumentation when Enabled is set.
	Metrics metrics.Config
}

// ValueStats holds value lookup statistics.
type ValueStats struct {
	Pages   int64
	Values  int64
	Missing int64
}

// ValueConsumer resolves a page of keys with a single MGET and hands the
// resulting pairs, as one page, to the next consumer. It is safe for use by
// concurrent worker slots.
type ValueConsumer struct {
	client   redis.UniversalClient
	next     pipeline.Consumer[Pair]
	config   ValueConfig
	registry *metrics.Registry

	pages   atomic.Int64
	values  atomic.Int64
	missing atomic.Int64
}

// NewValueConsumer creates a ValueConsumer that forwards to next.
func NewValueConsumer(client redis.UniversalClient, next pipeline.Consumer[Pair], config ValueConfig) (*ValueConsumer, error) {
	if err := validation.ValidateNotNil("redissource", "client", client); err != nil {
		return nil, err
	}
	if err := validation.ValidateNotNil("redissource", "next", next); err != nil {
		return nil, err
	}
	if config.Name == "" {
		config.Name = "redis-values"
	}

	c := &ValueConsumer{client: client, next: next, config: config}
	if config.Metrics.Enabled {
		c.registry = config.Metrics.Resolve()
	}
	return c, nil
}

// Consume looks up every key of pg.
func (c *ValueConsumer) Consume(ctx context.Context, pg *page.Page[string]) error {
	if pg.Empty() {
		return nil
	}

	start := time.Now()
	vals, err := c.client.MGet(ctx, pg.Items...).Result()
	if c.registry != nil {
		c.registry.SourceQueries.WithLabelValues(c.config.Name).Inc()
		c.registry.SourceQueryDuration.WithLabelValues(c.config.Name).Observe(time.Since(start).Seconds())
	}
	if err != nil {
		if c.registry != nil {
			c.registry.SourceErrors.WithLabelValues(c.config.Name).Inc()
		}
		return pferrors.NewOperationError("redissource", "MGet", err).
			WithContext(fmt.Sprintf("page %d", pg.Seq()))
	}

	out := page.New[Pair](pg.Seq(), len(vals))
	for i, v := range vals {
		s, ok := v.(string)
		if !ok {
			c.missing.Add(1)
			if c.config.FailOnMissing {
				return fmt.Errorf("key %q has no string value", pg.Items[i])
			}
			continue
		}
		out.Append(Pair{Key: pg.Items[i], Value: s})
	}

	c.pages.Add(1)
	c.values.Add(int64(out.Len()))
	if c.registry != nil {
		c.registry.SourceRows.WithLabelValues(c.config.Name).Add(float64(out.Len()))
	}

	if out.Empty() {
		return nil
	}
	return c.next.Consume(ctx, out)
}

// Stats returns a snapshot of lookup statistics.
func (c *ValueConsumer) Stats() ValueStats {
	return ValueStats{
		Pages:   c.pages.Load(),
		Values:  c.values.Load(),
		Missing: c.missing.Load(),
	}
}

// Each adapts fn into a consumer of pairs that calls fn once per pair.
func Each(fn func(ctx context.Context, pair Pair) error) pipeline.Consumer[Pair] {
	return pipeline.ConsumerFunc[Pair](func(ctx context.Context, pg *page.Page[Pair]) error {
		for _, pair := range pg.Items {
			if err := fn(ctx, pair); err != nil {
				return err
			}
		}
		return nil
	})
}
