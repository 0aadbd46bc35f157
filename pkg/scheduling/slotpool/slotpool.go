package slotpool

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	pferrors "github.com/vnykmshr/pageflow/pkg/common/errors"
	"github.com/vnykmshr/pageflow/pkg/common/validation"
)

// Dispatch starts task in slot i.
func (p *slotPool) Dispatch(ctx context.Context, i int, task Task) error {
	if task == nil {
		return fmt.Errorf("task cannot be nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	p.mu.Lock()
	if i < 0 || i >= len(p.slots) {
		p.mu.Unlock()
		return fmt.Errorf("slot %d out of range [0,%d)", i, len(p.slots))
	}

	s := p.slots[i]
	if !s.finished() {
		p.mu.Unlock()
		return fmt.Errorf("cannot dispatch to slot %d: %w", i, pferrors.ErrSlotBusy)
	}

	// An outcome nobody polled must still reach AwaitAll.
	if !s.collected && s.result.Error != nil {
		p.unreported = append(p.unreported, s.result)
	}

	done := make(chan struct{})
	s.done = done
	s.result = Result{}
	s.collected = false
	p.busy++
	p.dispatched++
	p.wg.Add(1)
	p.mu.Unlock()

	go p.execute(ctx, i, s, done, task)
	return nil
}

// execute runs a single task inside slot i.
func (p *slotPool) execute(ctx context.Context, i int, s *slot, done chan struct{}, task Task) {
	defer p.wg.Done()

	start := time.Now()
	var err error

	// Handle panics during task execution
	defer func() {
		panicked := false
		if r := recover(); r != nil {
			panicked = true
			if p.config.PanicHandler != nil {
				p.config.PanicHandler(i, r)
			}
			err = fmt.Errorf("task panicked: %v\nStack trace:\n%s", r, debug.Stack())
		}

		p.mu.Lock()
		p.completions++
		result := Result{
			Slot:     i,
			Error:    err,
			Duration: time.Since(start),
			Seq:      p.completions,
		}
		s.result = result
		p.busy--
		p.completed++
		if err != nil {
			p.failed++
		}
		if panicked {
			p.panics++
		}
		p.mu.Unlock()

		if p.config.OnTaskComplete != nil {
			p.config.OnTaskComplete(result)
		}

		close(done)

		if p.config.OnRelease != nil {
			p.config.OnRelease(i)
		}
	}()

	if p.config.OnTaskStart != nil {
		p.config.OnTaskStart(i)
	}

	err = task.Execute(ctx)
}

// Poll reports whether slot i is free, collecting its error once.
func (p *slotPool) Poll(i int) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if i < 0 || i >= len(p.slots) {
		return false, fmt.Errorf("slot %d out of range [0,%d)", i, len(p.slots))
	}

	s := p.slots[i]
	if !s.finished() {
		return false, nil
	}
	if s.collected {
		return true, nil
	}
	s.collected = true
	return true, s.result.Error
}

// IsFree reports whether slot i is free.
func (p *slotPool) IsFree(i int) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if i < 0 || i >= len(p.slots) {
		return false
	}
	return p.slots[i].finished()
}

// AnyFree reports whether at least one slot is free.
func (p *slotPool) AnyFree() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, s := range p.slots {
		if s.finished() {
			return true
		}
	}
	return false
}

// Failed reports whether an error is waiting to be collected.
func (p *slotPool) Failed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.unreported) > 0 {
		return true
	}
	for _, s := range p.slots {
		if !s.collected && s.finished() && s.result.Error != nil {
			return true
		}
	}
	return false
}

// AwaitAll waits for every running task and returns the earliest
// uncollected error.
func (p *slotPool) AwaitAll() error {
	p.wg.Wait()

	p.mu.Lock()
	defer p.mu.Unlock()

	var first *Result
	consider := func(r Result) {
		if r.Error == nil {
			return
		}
		if first == nil || r.Seq < first.Seq {
			rc := r
			first = &rc
		}
	}

	for _, r := range p.unreported {
		consider(r)
	}
	for _, s := range p.slots {
		if !s.collected {
			consider(s.result)
		}
		s.done = nil
		s.result = Result{}
		s.collected = true
	}
	p.unreported = nil

	if first == nil {
		return nil
	}
	return first.Error
}

// Resize changes the number of slots while the pool is idle.
func (p *slotPool) Resize(size int) error {
	if err := validation.ValidatePositive("slotpool", "size", size); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.busy > 0 {
		return pferrors.NewConfigError("resize slot pool", pferrors.ErrRunInProgress)
	}

	if size == len(p.slots) {
		return nil
	}

	// Keep uncollected outcomes of slots that disappear.
	for i := size; i < len(p.slots); i++ {
		if s := p.slots[i]; !s.collected && s.result.Error != nil {
			p.unreported = append(p.unreported, s.result)
		}
	}

	if size < len(p.slots) {
		p.slots = p.slots[:size]
	} else {
		p.slots = append(p.slots, newSlots(size-len(p.slots))...)
	}
	p.config.Size = size
	return nil
}

// Size returns the number of slots in the pool.
func (p *slotPool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.slots)
}

// Busy returns the number of slots currently running a task.
func (p *slotPool) Busy() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.busy
}

// Stats returns a snapshot of pool counters.
func (p *slotPool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{
		Size:       len(p.slots),
		Busy:       p.busy,
		Dispatched: p.dispatched,
		Completed:  p.completed,
		Failed:     p.failed,
		Panics:     p.panics,
	}
}
