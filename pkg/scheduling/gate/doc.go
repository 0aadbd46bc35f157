// Package gate provides the backpressure primitive of the paged pipeline:
// a condition gate that blocks the scheduling goroutine until some worker
// slot has capacity, without busy-polling.
//
// A Gate does not own the state it guards. The waiter passes a predicate and
// every goroutine that may make the predicate true calls Signal after the
// state change:
//
//	// worker side
//	markDone(slot)
//	g.Signal()
//
//	// scheduler side
//	if err := g.Wait(ctx, pool.AnyFree); err != nil {
//		return err
//	}
//
// The predicate is evaluated under the gate lock, which closes the window
// between checking the condition and parking. Spurious wakeups are handled
// inside Wait by re-checking the predicate.
package gate
