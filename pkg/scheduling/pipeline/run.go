package pipeline

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	pfcontext "github.com/vnykmshr/pageflow/pkg/common/context"
	pferrors "github.com/vnykmshr/pageflow/pkg/common/errors"
	"github.com/vnykmshr/pageflow/pkg/scheduling/gate"
	"github.com/vnykmshr/pageflow/pkg/scheduling/page"
	"github.com/vnykmshr/pageflow/pkg/scheduling/slotpool"
)

// run holds the state of a single pass. Everything except the atomic
// counters is owned by the scheduling goroutine.
type run[T any] struct {
	config Config[T]
	pool   slotpool.Pool
	gate   *gate.Gate
	queue  *page.Queue[T]
	log    *zap.Logger
	id     string

	phase    Phase
	firstErr error
	nextSeq  uint64

	produced   uint64
	discarded  uint64
	dispatched uint64
	items      uint64
	waits      uint64

	completed atomic.Uint64
	failed    atomic.Uint64
}

func newRun[T any](config Config[T], pool slotpool.Pool, g *gate.Gate) *run[T] {
	id := uuid.NewString()
	return &run[T]{
		config: config,
		pool:   pool,
		gate:   g,
		queue:  page.NewQueue[T](config.MaxPages, config.Discipline),
		log: config.Logger.With(
			zap.String("pipeline", config.Name),
			zap.String("run_id", id),
		),
		id: id,
	}
}

// execute drives the FILLING -> DRAINING -> DONE loop.
func (r *run[T]) execute(ctx context.Context) error {
	r.log.Debug("run started",
		zap.Int("max_pages", r.queue.Cap()),
		zap.Int("max_threads", r.pool.Size()),
		zap.Stringer("discipline", r.queue.Discipline()),
		zap.Stringer("error_policy", r.config.ErrorPolicy),
	)

	// Consumers and drain waits must not be cut short by the caller.
	detached := pfcontext.Detached(ctx)
	waitsBefore := r.gate.Stats().Waits

	for r.phase == Filling || !r.queue.Empty() {
		if r.phase == Filling {
			if err := ctx.Err(); err != nil {
				r.observe(err)
			}
		}

		// Backpressure: park until a slot frees up when the queue is about
		// to fill, or when there is nothing left to do but dispatch.
		if r.phase != Filling || r.queue.Len()+1 >= r.queue.Cap() {
			waitCtx := ctx
			if r.phase != Filling {
				waitCtx = detached
			}
			if err := r.gate.Wait(waitCtx, r.ready); err != nil {
				r.observe(err)
				continue
			}
		}

		if r.phase == Filling && r.queue.Len() < r.queue.Cap() {
			r.produce(ctx)
			r.sample()
		}

		r.scan(detached)
		if r.config.ErrorPolicy == StopOnError && r.pool.Failed() {
			r.sweep()
		}
		r.sample()
	}

	r.phase = Done
	if err := r.pool.AwaitAll(); err != nil {
		r.observe(err)
	}
	r.waits = r.gate.Stats().Waits - waitsBefore
	r.sample()

	r.log.Debug("run finished",
		zap.Uint64("pages", r.produced),
		zap.Uint64("items", r.items),
		zap.Uint64("discarded", r.discarded),
		zap.Uint64("backpressure_waits", r.waits),
		zap.Error(r.firstErr),
	)
	return r.firstErr
}

// produce calls the producer into a fresh page and queues the result.
func (r *run[T]) produce(ctx context.Context) {
	seq := r.nextSeq
	r.nextSeq++

	pg := page.New[T](seq, r.config.PageCapacity)
	more, err := r.callProducer(ctx, pg)
	if err != nil {
		r.discarded++
		r.observe(&pferrors.ProducerError{Page: seq, Err: err})
		return
	}

	// An empty page is still a unit of work unless it ended the stream.
	if pg.Empty() && !more {
		r.discarded++
	} else if err := r.queue.Push(pg); err != nil {
		r.discarded++
		r.observe(err)
		return
	} else {
		r.produced++
		r.items += uint64(pg.Len())
	}

	if !more {
		r.stopProduction("producer exhausted")
	}
}

// callProducer invokes the producer, converting a panic into an error.
func (r *run[T]) callProducer(ctx context.Context, pg *page.Page[T]) (more bool, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			more = false
			err = fmt.Errorf("producer panicked: %v\nStack trace:\n%s", rec, debug.Stack())
		}
	}()
	return r.config.Producer.Produce(ctx, pg)
}

// scan walks the slots once in index order, collecting finished results
// and dispatching queued pages to free slots.
func (r *run[T]) scan(ctx context.Context) {
	for i := 0; i < r.pool.Size() && !r.queue.Empty(); i++ {
		free, err := r.pool.Poll(i)
		if err != nil {
			r.observe(err)
		}
		if !free {
			continue
		}

		pg, _ := r.queue.Pop()
		r.dispatch(ctx, i, pg)
	}
}

// ready is the backpressure predicate. Under StopOnError an uncollected
// failure also releases the scheduler so production can stop.
func (r *run[T]) ready() bool {
	if r.pool.AnyFree() {
		return true
	}
	return r.config.ErrorPolicy == StopOnError && r.pool.Failed()
}

// sweep collects errors from every finished slot without dispatching.
func (r *run[T]) sweep() {
	for i := 0; i < r.pool.Size(); i++ {
		if _, err := r.pool.Poll(i); err != nil {
			r.observe(err)
		}
	}
}

// dispatch hands pg to slot i.
func (r *run[T]) dispatch(ctx context.Context, i int, pg *page.Page[T]) {
	seq := pg.Seq()
	if r.config.OnPageDispatched != nil {
		r.config.OnPageDispatched(i, seq, pg.Len())
	}

	task := slotpool.TaskFunc(func(ctx context.Context) (err error) {
		start := time.Now()
		defer func() {
			if rec := recover(); rec != nil {
				err = fmt.Errorf("consumer panicked: %v\nStack trace:\n%s", rec, debug.Stack())
			}
			if err != nil {
				err = &pferrors.ConsumerError{Page: seq, Slot: i, Err: err}
				r.failed.Add(1)
			} else {
				r.completed.Add(1)
			}
			if r.config.OnPageComplete != nil {
				r.config.OnPageComplete(i, seq, err, time.Since(start))
			}
		}()
		return r.config.Consumer.Consume(ctx, pg)
	})

	if err := r.pool.Dispatch(ctx, i, task); err != nil {
		r.observe(err)
		return
	}
	r.dispatched++
}

// observe records err as the run's terminal error if it is the first one.
// Production stops either way; later errors are only logged.
func (r *run[T]) observe(err error) {
	if r.firstErr != nil {
		r.log.Debug("discarding error after first failure",
			zap.Stringer("phase", r.phase),
			zap.Error(err),
		)
		return
	}

	r.firstErr = err
	r.log.Warn("run failed",
		zap.Stringer("phase", r.phase),
		zap.Int("queued", r.queue.Len()),
		zap.Error(err),
	)
	r.stopProduction("error observed")
}

func (r *run[T]) stopProduction(reason string) {
	if r.phase != Filling {
		return
	}
	r.phase = Draining
	r.log.Debug("production stopped",
		zap.String("reason", reason),
		zap.Uint64("pages", r.produced),
		zap.Int("queued", r.queue.Len()),
	)
}

// sample reports the current state to the observer.
func (r *run[T]) sample() {
	if r.config.Observer == nil {
		return
	}
	r.config.Observer(State{
		RunID:      r.id,
		Phase:      r.phase,
		QueueLen:   r.queue.Len(),
		QueueCap:   r.queue.Cap(),
		BusySlots:  r.pool.Busy(),
		Slots:      r.pool.Size(),
		Produced:   r.produced,
		Dispatched: r.dispatched,
	})
}
