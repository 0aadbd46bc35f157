package slotpool

import (
	"context"
	"sync"
	"time"
)

// Task represents a unit of work that can be executed in a slot.
type Task interface {
	// Execute runs the task with the given context.
	// It should respect context cancellation and return any error encountered.
	Execute(ctx context.Context) error
}

// TaskFunc is a function type that implements the Task interface.
type TaskFunc func(ctx context.Context) error

// Execute implements the Task interface for TaskFunc.
func (f TaskFunc) Execute(ctx context.Context) error {
	return f(ctx)
}

// Result represents the outcome of one task execution.
type Result struct {
	// Slot is the index of the slot that ran the task
	Slot int

	// Error is any error that occurred during task execution
	Error error

	// Duration is how long the task took to execute
	Duration time.Duration

	// Seq orders completions across all slots, starting at 1
	Seq uint64
}

// Pool is a fixed set of worker slots. Each slot runs at most one task at a
// time and keeps the outcome of its last task until it is collected.
//
// Dispatch, Resize and AwaitAll are meant to be driven by a single
// scheduling goroutine. The inspection methods may be called from any
// goroutine.
type Pool interface {
	// Dispatch starts task in slot i. The slot must be free.
	// Returns ErrSlotBusy if the slot still runs a task.
	Dispatch(ctx context.Context, i int, task Task) error

	// Poll reports whether slot i is free. The first Poll after a task
	// completes also returns that task's error; later polls return nil.
	Poll(i int) (free bool, err error)

	// IsFree reports whether slot i is free without collecting its result.
	IsFree(i int) bool

	// AnyFree reports whether at least one slot is free.
	AnyFree() bool

	// Failed reports whether a completed task has an error nobody collected.
	Failed() bool

	// AwaitAll blocks until every slot is free and returns the earliest
	// uncollected error by completion order. All slots are reset.
	AwaitAll() error

	// Resize changes the number of slots. It fails with a ConfigError when
	// a task is still running.
	Resize(size int) error

	// Size returns the number of slots.
	Size() int

	// Busy returns the number of slots currently running a task.
	Busy() int

	// Stats returns a snapshot of pool counters.
	Stats() Stats
}

// Stats is a snapshot of pool activity.
type Stats struct {
	Size       int
	Busy       int
	Dispatched uint64
	Completed  uint64
	Failed     uint64
	Panics     uint64
}

// Config holds configuration options for creating a slot pool.
type Config struct {
	// Size is the number of slots in the pool.
	// Must be greater than 0.
	Size int

	// PanicHandler is called when a task panics.
	// The panic is always converted into the task's error.
	PanicHandler func(slot int, recovered interface{})

	// OnTaskStart is called in the slot goroutine before a task begins execution.
	OnTaskStart func(slot int)

	// OnTaskComplete is called in the slot goroutine after a task completes
	// (success or failure) and before the slot is observed as free.
	OnTaskComplete func(result Result)

	// OnRelease is called after the slot is observed as free. Schedulers
	// blocked on slot availability hook their wakeup here.
	OnRelease func(slot int)
}

// slotPool implements the Pool interface.
type slotPool struct {
	config Config

	mu         sync.Mutex
	slots      []*slot
	unreported []Result

	// State tracking
	busy        int
	dispatched  uint64
	completed   uint64
	failed      uint64
	panics      uint64
	completions uint64

	// Slot goroutine management
	wg sync.WaitGroup
}

// slot is a single execution lane. done is nil before the first dispatch
// and closed when the current task has finished.
type slot struct {
	done      chan struct{}
	result    Result
	collected bool
}

// New creates a pool with the given number of slots.
func New(size int) Pool {
	return NewWithConfig(Config{Size: size})
}

// NewWithConfig creates a pool with the specified configuration.
func NewWithConfig(config Config) Pool {
	if config.Size <= 0 {
		panic("slot pool size must be positive")
	}

	p := &slotPool{config: config}
	p.slots = newSlots(config.Size)
	return p
}

func newSlots(n int) []*slot {
	slots := make([]*slot, n)
	for i := range slots {
		slots[i] = &slot{collected: true}
	}
	return slots
}

// finished reports whether the slot has no running task.
func (s *slot) finished() bool {
	if s.done == nil {
		return true
	}
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}
