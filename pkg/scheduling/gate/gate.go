package gate

import (
	"context"
	"sync"
)

// Gate parks a goroutine until a caller-supplied condition holds. Goroutines
// that change the state observed by the condition call Signal afterwards.
//
// The zero value is ready to use. A Gate must not be copied after first use.
type Gate struct {
	mu      sync.Mutex
	waiters []chan struct{}

	signals uint64
	waits   uint64
	wakeups uint64
}

// Stats is a snapshot of gate activity.
type Stats struct {
	// Signals is the number of Signal calls.
	Signals uint64

	// Waits is the number of times a caller actually parked.
	Waits uint64

	// Wakeups is the number of parked callers released by Signal.
	Wakeups uint64

	// Waiting is the number of callers parked right now.
	Waiting int
}

// New creates a gate.
func New() *Gate {
	return &Gate{}
}

// Wait returns once ready reports true, or with ctx.Err() when ctx is done
// first. ready is evaluated with the gate lock held, so it must be cheap and
// must not call back into the gate. A state change made before Signal is
// therefore never missed: either ready observes it, or the Signal that
// follows it releases this waiter.
func (g *Gate) Wait(ctx context.Context, ready func() bool) error {
	for {
		g.mu.Lock()
		if ready() {
			g.mu.Unlock()
			return nil
		}

		// Check if context is already canceled before parking
		select {
		case <-ctx.Done():
			g.mu.Unlock()
			return ctx.Err()
		default:
		}

		ch := make(chan struct{})
		g.waiters = append(g.waiters, ch)
		g.waits++
		g.mu.Unlock()

		select {
		case <-ch:
			// re-evaluate the condition
		case <-ctx.Done():
			g.removeWaiter(ch)
			return ctx.Err()
		}
	}
}

// Signal releases every parked waiter so each re-evaluates its condition.
func (g *Gate) Signal() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.signals++
	for _, ch := range g.waiters {
		close(ch)
		g.wakeups++
	}
	g.waiters = nil
}

// Waiting returns the number of parked callers.
func (g *Gate) Waiting() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.waiters)
}

// Stats returns a snapshot of gate counters.
func (g *Gate) Stats() Stats {
	g.mu.Lock()
	defer g.mu.Unlock()
	return Stats{
		Signals: g.signals,
		Waits:   g.waits,
		Wakeups: g.wakeups,
		Waiting: len(g.waiters),
	}
}

// removeWaiter drops a waiter that gave up before being signaled.
func (g *Gate) removeWaiter(ch chan struct{}) {
	g.mu.Lock()
	defer g.mu.Unlock()

	for i, w := range g.waiters {
		if w == ch {
			g.waiters = append(g.waiters[:i], g.waiters[i+1:]...)
			return
		}
	}
}
