/*
Package slotpool provides a fixed set of pollable worker slots.

Unlike a queue-fed worker pool, the caller decides which slot runs a task and
when. Each slot runs at most one task at a time and remembers the outcome of
its last task until someone collects it. This makes the pool suitable as the
execution layer of a scheduler that must bound concurrency exactly and check
individual lanes for completion without blocking.

Basic usage:

	pool := slotpool.New(4)

	task := slotpool.TaskFunc(func(ctx context.Context) error {
		// Do work
		return nil
	})

	if err := pool.Dispatch(ctx, 0, task); err != nil {
		log.Printf("Failed to dispatch: %v", err)
	}

	// Non-blocking completion check; the error is returned once.
	if free, err := pool.Poll(0); free && err != nil {
		log.Printf("Task failed: %v", err)
	}

	// Wait for every slot and collect anything not yet polled.
	if err := pool.AwaitAll(); err != nil {
		log.Printf("Run failed: %v", err)
	}

Slot Lifecycle:

A slot is free before its first dispatch and again once its task has
returned. Dispatch on a busy slot fails with ErrSlotBusy. When a slot is
reused without its error being polled, the error is kept and reported by
AwaitAll, so no failure is ever lost. AwaitAll returns the failure that
completed first.

Hooks:

	pool := slotpool.NewWithConfig(slotpool.Config{
		Size: 8,
		OnTaskStart:    func(slot int) { ... },
		OnTaskComplete: func(r slotpool.Result) { ... },
		OnRelease:      func(slot int) { g.Signal() },
	})

OnRelease runs after the slot is observable as free. It is the place to wake
a goroutine parked on slot availability.

Panics:

A panicking task never takes down the process. The panic value and stack
trace become the task's error, and PanicHandler is invoked if set.

Resizing:

Resize changes the number of slots, but only while no task is running.
Otherwise it returns a ConfigError wrapping ErrRunInProgress.
*/
package slotpool
