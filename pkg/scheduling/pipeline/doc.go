/*
Package pipeline coordinates one sequential producer with a fixed set of
concurrent consumer slots through a bounded page queue.

It is meant for processing a result stream that is too large, or too slow to
fetch, to materialize in memory: a database cursor, a key scan, a paginated
API. The producer fills one page at a time on the calling goroutine; full
pages wait in a queue of at most MaxPages entries; MaxThreads worker slots
consume pages concurrently. Peak resident memory is bounded by the queue plus
the pages in flight.

Basic usage:

	p, err := pipeline.NewWithConfig(pipeline.Config[Row]{
		MaxPages:   40,
		MaxThreads: 4,
		Producer:   producer, // func(ctx, *page.Page[Row]) (more bool, err error)
		Consumer:   consumer, // func(ctx, *page.Page[Row]) error
	})
	if err != nil {
		return err
	}

	if err := p.Run(ctx); err != nil {
		log.Printf("Run failed: %v", err)
	}

Run Lifecycle:

A run moves through three phases. While Filling, the scheduler alternates
between calling the producer and scanning the slots, dispatching queued pages
to free slots in index order. When the producer reports no more data, or the
first error is observed, the run is Draining: no further producer calls are
made, but every queued page is still dispatched. Once the queue is empty the
scheduler waits for every slot and the run is Done. Every page the producer
fills is queued, empty or not, except an empty page from the call that ended
production.

Backpressure:

When the queue is about to fill, the scheduler parks on a gate until a slot
completes. Slots signal the gate on release, so the scheduler never spins.
MaxPages smaller than MaxThreads is legal and caps the achievable
parallelism.

Ordering:

Producer calls are strictly sequential and never overlap a consumer call on
the same goroutine. Consumers complete in any order. Dispatch order follows
Config.Discipline: page.LIFO (default) hands out the most recently produced
page first, page.FIFO preserves production order.

Error Handling:

Run returns the first error observed and discards the rest after logging
them at debug level. Producer failures are wrapped in ProducerError and
consumer failures in ConsumerError from the common errors package; panics in
either are recovered into the same types. With DeferErrors (default) a
consumer failure is noticed when its slot is next polled or at final drain.
StopOnError checks every slot after each dispatch cycle, so production stops
as soon as a failure is visible. Side effects of completed consumers are never
rolled back.

Cancellation of the context passed to Run stops production like an error.
Consumers already dispatched run to completion and receive a context that is
not canceled with the caller's.

Reconfiguration:

MaxPages, MaxThreads, the producer and the consumer may be changed between
runs. Doing so while a run is in progress, or starting an overlapping run,
returns a ConfigError wrapping ErrRunInProgress.

Sizing:

Zero MaxPages or MaxThreads are filled from Config.Sizing. HardwareSizing,
the default, leaves two CPUs to the scheduler and the data source and
allows ten queued pages per slot. Use FixedSizing for deterministic tests.

Observation:

Config.Observer receives a State sample after every production step and every
dispatch scan. OnPageDispatched and OnPageComplete report individual pages.
NewWithMetrics and NewWithConfigAndMetrics wrap a pipeline with Prometheus
instrumentation from the metrics package.
*/
package pipeline
