package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	pferrors "github.com/vnykmshr/pageflow/pkg/common/errors"
	"github.com/vnykmshr/pageflow/pkg/common/validation"
	"github.com/vnykmshr/pageflow/pkg/scheduling/gate"
	"github.com/vnykmshr/pageflow/pkg/scheduling/page"
	"github.com/vnykmshr/pageflow/pkg/scheduling/slotpool"
)

// Producer fills pages on the scheduling goroutine. It is never called
// concurrently with itself, so cursor state it touches needs no locking.
type Producer[T any] interface {
	// Produce appends zero or more items to p and reports whether more data
	// remains. Returning false ends production for the run; the page from
	// that call is still dispatched unless it is empty. Empty pages from
	// earlier calls are dispatched like any other.
	Produce(ctx context.Context, p *page.Page[T]) (more bool, err error)
}

// ProducerFunc is a function type that implements the Producer interface.
type ProducerFunc[T any] func(ctx context.Context, p *page.Page[T]) (bool, error)

// Produce implements the Producer interface for ProducerFunc.
func (f ProducerFunc[T]) Produce(ctx context.Context, p *page.Page[T]) (bool, error) {
	return f(ctx, p)
}

// Consumer processes one page inside a worker slot. Up to MaxThreads
// invocations run concurrently and must synchronize any state they share.
type Consumer[T any] interface {
	// Consume takes ownership of p and processes it to completion.
	Consume(ctx context.Context, p *page.Page[T]) error
}

// ConsumerFunc is a function type that implements the Consumer interface.
type ConsumerFunc[T any] func(ctx context.Context, p *page.Page[T]) error

// Consume implements the Consumer interface for ConsumerFunc.
func (f ConsumerFunc[T]) Consume(ctx context.Context, p *page.Page[T]) error {
	return f(ctx, p)
}

// ErrorPolicy controls how early a consumer failure stops production.
type ErrorPolicy int

const (
	// DeferErrors observes a consumer error only when its slot is polled
	// during a dispatch scan, or at final drain.
	DeferErrors ErrorPolicy = iota

	// StopOnError checks every slot after each dispatch cycle and stops
	// production as soon as any failure is visible.
	StopOnError
)

// String returns the policy name.
func (e ErrorPolicy) String() string {
	switch e {
	case DeferErrors:
		return "defer"
	case StopOnError:
		return "stop"
	default:
		return fmt.Sprintf("policy(%d)", int(e))
	}
}

// Phase is the stage of a run.
type Phase int

const (
	// Filling means the producer is still being called.
	Filling Phase = iota

	// Draining means production has stopped but pages are queued or in flight.
	Draining

	// Done means every dispatched page has been consumed.
	Done
)

// String returns the phase name.
func (p Phase) String() string {
	switch p {
	case Filling:
		return "filling"
	case Draining:
		return "draining"
	case Done:
		return "done"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// State is a sample of the scheduler taken during a run.
type State struct {
	RunID      string
	Phase      Phase
	QueueLen   int
	QueueCap   int
	BusySlots  int
	Slots      int
	Produced   uint64
	Dispatched uint64
}

// Stats holds cumulative pipeline statistics.
type Stats struct {
	Runs              int64
	FailedRuns        int64
	PagesProduced     uint64
	PagesDiscarded    uint64
	PagesDispatched   uint64
	PagesCompleted    uint64
	PagesFailed       uint64
	ItemsProduced     uint64
	BackpressureWaits uint64
	TotalDuration     time.Duration
	LastDuration      time.Duration
	LastRunID         string
	LastRunAt         time.Time
	LastError         error
}

// Config holds pipeline configuration options.
type Config[T any] struct {
	// Name identifies the pipeline in logs and metrics.
	Name string

	// MaxPages is the page queue capacity. Zero means use Sizing.
	MaxPages int

	// MaxThreads is the number of worker slots. Zero means use Sizing.
	MaxThreads int

	// Sizing supplies MaxPages and MaxThreads when either is zero.
	// Defaults to HardwareSizing.
	Sizing SizingFunc

	// PageCapacity pre-sizes each new page's item slice.
	PageCapacity int

	// Producer fills pages. Required.
	Producer Producer[T]

	// Consumer processes pages. Required.
	Consumer Consumer[T]

	// Discipline selects dispatch order. Defaults to page.LIFO.
	Discipline page.Discipline

	// ErrorPolicy selects how consumer errors are observed.
	ErrorPolicy ErrorPolicy

	// Logger receives run diagnostics. Defaults to a no-op logger.
	Logger *zap.Logger

	// Observer is sampled on the scheduling goroutine after every
	// production step and every dispatch scan.
	Observer func(State)

	// OnPageDispatched is called on the scheduling goroutine right before
	// a page is handed to a slot.
	OnPageDispatched func(slot int, seq uint64, items int)

	// OnPageComplete is called inside the slot after the consumer returns.
	OnPageComplete func(slot int, seq uint64, err error, duration time.Duration)
}

// Pipeline coordinates one sequential producer with a fixed set of
// concurrent consumer slots under a bounded page queue.
type Pipeline[T any] interface {
	// Run executes one full pass over the producer and returns once every
	// dispatched page has been consumed. It returns the first error
	// observed, if any.
	Run(ctx context.Context) error

	// Reconfigure replaces the whole configuration between runs.
	Reconfigure(config Config[T]) error

	// SetMaxPages changes the queue capacity between runs.
	SetMaxPages(n int) error

	// SetMaxThreads changes the number of worker slots between runs.
	SetMaxThreads(n int) error

	// SetProducer replaces the producer between runs.
	SetProducer(producer Producer[T]) error

	// SetConsumer replaces the consumer between runs.
	SetConsumer(consumer Consumer[T]) error

	// MaxPages returns the queue capacity.
	MaxPages() int

	// MaxThreads returns the number of worker slots.
	MaxThreads() int

	// Running reports whether a run is in progress.
	Running() bool

	// Stats returns cumulative statistics.
	Stats() Stats
}

// pipeline implements the Pipeline interface.
type pipeline[T any] struct {
	mu      sync.Mutex
	config  Config[T]
	running bool
	stats   Stats

	pool slotpool.Pool
	gate *gate.Gate
}

// New creates a pipeline sized by HardwareSizing.
func New[T any](producer Producer[T], consumer Consumer[T]) (Pipeline[T], error) {
	return NewWithConfig(Config[T]{
		Producer: producer,
		Consumer: consumer,
	})
}

// NewWithConfig creates a pipeline with the specified configuration.
func NewWithConfig[T any](config Config[T]) (Pipeline[T], error) {
	config, err := normalize(config)
	if err != nil {
		return nil, err
	}

	p := &pipeline[T]{
		config: config,
		gate:   gate.New(),
	}
	p.pool = slotpool.NewWithConfig(slotpool.Config{
		Size:      config.MaxThreads,
		OnRelease: func(int) { p.gate.Signal() },
	})
	return p, nil
}

// normalize fills defaults and validates config.
func normalize[T any](config Config[T]) (Config[T], error) {
	if config.Name == "" {
		config.Name = "pipeline"
	}
	if config.Sizing == nil {
		config.Sizing = HardwareSizing
	}
	if config.MaxPages == 0 || config.MaxThreads == 0 {
		s := config.Sizing()
		if config.MaxPages == 0 {
			config.MaxPages = s.MaxPages
		}
		if config.MaxThreads == 0 {
			config.MaxThreads = s.MaxThreads
		}
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}

	if err := validation.ValidatePositive("pipeline", "max_pages", config.MaxPages); err != nil {
		return config, err
	}
	if err := validation.ValidatePositive("pipeline", "max_threads", config.MaxThreads); err != nil {
		return config, err
	}
	if err := validation.ValidateNonNegative("pipeline", "page_capacity", config.PageCapacity); err != nil {
		return config, err
	}
	if config.Producer == nil {
		return config, validation.ValidateNotNil("pipeline", "producer", nil)
	}
	if config.Consumer == nil {
		return config, validation.ValidateNotNil("pipeline", "consumer", nil)
	}
	return config, nil
}

// Reconfigure replaces the configuration between runs.
func (p *pipeline[T]) Reconfigure(config Config[T]) error {
	config, err := normalize(config)
	if err != nil {
		return err
	}
	return p.update("reconfigure pipeline", func(c *Config[T]) {
		*c = config
	})
}

// SetMaxPages changes the queue capacity between runs.
func (p *pipeline[T]) SetMaxPages(n int) error {
	if err := validation.ValidatePositive("pipeline", "max_pages", n); err != nil {
		return err
	}
	return p.update("set max pages", func(c *Config[T]) { c.MaxPages = n })
}

// SetMaxThreads changes the number of worker slots between runs.
func (p *pipeline[T]) SetMaxThreads(n int) error {
	if err := validation.ValidatePositive("pipeline", "max_threads", n); err != nil {
		return err
	}
	return p.update("set max threads", func(c *Config[T]) { c.MaxThreads = n })
}

// SetProducer replaces the producer between runs.
func (p *pipeline[T]) SetProducer(producer Producer[T]) error {
	if producer == nil {
		return validation.ValidateNotNil("pipeline", "producer", nil)
	}
	return p.update("set producer", func(c *Config[T]) { c.Producer = producer })
}

// SetConsumer replaces the consumer between runs.
func (p *pipeline[T]) SetConsumer(consumer Consumer[T]) error {
	if consumer == nil {
		return validation.ValidateNotNil("pipeline", "consumer", nil)
	}
	return p.update("set consumer", func(c *Config[T]) { c.Consumer = consumer })
}

// update applies fn to the configuration unless a run is in progress.
func (p *pipeline[T]) update(op string, fn func(*Config[T])) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return pferrors.NewConfigError(op, pferrors.ErrRunInProgress)
	}

	next := p.config
	fn(&next)
	if next.MaxThreads != p.pool.Size() {
		if err := p.pool.Resize(next.MaxThreads); err != nil {
			return err
		}
	}
	p.config = next
	return nil
}

// MaxPages returns the queue capacity.
func (p *pipeline[T]) MaxPages() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.config.MaxPages
}

// MaxThreads returns the number of worker slots.
func (p *pipeline[T]) MaxThreads() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.config.MaxThreads
}

// Running reports whether a run is in progress.
func (p *pipeline[T]) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// Stats returns cumulative statistics.
func (p *pipeline[T]) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

// Run executes one full pass over the producer.
func (p *pipeline[T]) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return pferrors.NewConfigError("start run", pferrors.ErrRunInProgress)
	}
	p.running = true
	config := p.config
	p.mu.Unlock()

	r := newRun(config, p.pool, p.gate)
	start := time.Now()
	err := r.execute(ctx)
	p.record(r, start, err)

	p.mu.Lock()
	p.running = false
	p.mu.Unlock()
	return err
}

// record folds the counters of a finished run into the pipeline stats.
func (p *pipeline[T]) record(r *run[T], start time.Time, err error) {
	elapsed := time.Since(start)

	p.mu.Lock()
	defer p.mu.Unlock()

	p.stats.Runs++
	if err != nil {
		p.stats.FailedRuns++
	}
	p.stats.PagesProduced += r.produced
	p.stats.PagesDiscarded += r.discarded
	p.stats.PagesDispatched += r.dispatched
	p.stats.PagesCompleted += r.completed.Load()
	p.stats.PagesFailed += r.failed.Load()
	p.stats.ItemsProduced += r.items
	p.stats.BackpressureWaits += r.waits
	p.stats.TotalDuration += elapsed
	p.stats.LastDuration = elapsed
	p.stats.LastRunID = r.id
	p.stats.LastRunAt = start
	p.stats.LastError = err
}
