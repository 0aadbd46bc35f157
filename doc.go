/*
Package pageflow processes large result sets in parallel with bounded memory.

One producer fills pages on a single scheduling goroutine. A fixed set of
worker slots consumes them concurrently. The page queue is bounded, so at
most MaxPages pages plus one page per busy slot are resident at once.

Scheduling (pkg/scheduling):
  - page: pages and the bounded page queue
  - gate: the backpressure gate the scheduler parks on when the queue is full
  - slotpool: worker slots that are polled for completion
  - pipeline: the scheduler loop that drives production, dispatch and drain
  - scheduler: cron triggers for recurring runs

Sources and sinks (pkg/streaming):
  - sqlsource: database/sql cursors as producers, plus Apply helpers
  - redissource: SCAN producers and MGET consumers
  - writer: a consumer that writes whole pages to an io.Writer

Supporting packages:
  - ratelimit/bucket: token bucket used to pace sources
  - metrics: Prometheus collectors shared by every component
  - common: errors, validation and context helpers

Example usage:

	import (
		"github.com/vnykmshr/pageflow/pkg/scheduling/pipeline"
		"github.com/vnykmshr/pageflow/pkg/streaming/sqlsource"
	)

	err := sqlsource.ApplyParallel(ctx, db, "SELECT id, name FROM users", scanUser,
		func(ctx context.Context, u User) error {
			return index(ctx, u)
		},
		sqlsource.WithPageSize(256),
	)

The pageflow command wraps these packages; see cmd/pageflow.
*/
package pageflow
