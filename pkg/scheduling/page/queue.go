package page

import (
	"fmt"

	pferrors "github.com/vnykmshr/pageflow/pkg/common/errors"
)

// Discipline selects which end of the queue pages are dispatched from.
type Discipline int

const (
	// LIFO dispatches the most recently produced page first.
	LIFO Discipline = iota

	// FIFO dispatches pages in production order.
	FIFO
)

// String returns the discipline name.
func (d Discipline) String() string {
	switch d {
	case LIFO:
		return "lifo"
	case FIFO:
		return "fifo"
	default:
		return fmt.Sprintf("discipline(%d)", int(d))
	}
}

// Queue is the bounded holding area for produced pages awaiting a free
// worker slot. It is driven by a single goroutine and is not safe for
// concurrent use.
type Queue[T any] struct {
	pages      []*Page[T]
	capacity   int
	discipline Discipline
}

// NewQueue creates a queue holding at most capacity pages.
func NewQueue[T any](capacity int, discipline Discipline) *Queue[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Queue[T]{
		pages:      make([]*Page[T], 0, capacity),
		capacity:   capacity,
		discipline: discipline,
	}
}

// Push appends a page. It returns ErrCapacityExceeded when the queue is full.
func (q *Queue[T]) Push(p *Page[T]) error {
	if len(q.pages) >= q.capacity {
		return fmt.Errorf("page queue holds %d pages: %w", q.capacity, pferrors.ErrCapacityExceeded)
	}
	q.pages = append(q.pages, p)
	return nil
}

// Pop removes the next page according to the queue discipline.
func (q *Queue[T]) Pop() (*Page[T], bool) {
	n := len(q.pages)
	if n == 0 {
		return nil, false
	}

	var p *Page[T]
	if q.discipline == FIFO {
		p = q.pages[0]
		q.pages[0] = nil
		q.pages = q.pages[1:]
		if len(q.pages) == 0 {
			// reclaim the consumed prefix of the backing array
			q.pages = make([]*Page[T], 0, q.capacity)
		}
	} else {
		p = q.pages[n-1]
		q.pages[n-1] = nil
		q.pages = q.pages[:n-1]
	}
	return p, true
}

// Len returns the number of queued pages.
func (q *Queue[T]) Len() int {
	return len(q.pages)
}

// Cap returns the queue capacity.
func (q *Queue[T]) Cap() int {
	return q.capacity
}

// Empty reports whether no page is queued.
func (q *Queue[T]) Empty() bool {
	return len(q.pages) == 0
}

// Full reports whether the queue holds capacity pages.
func (q *Queue[T]) Full() bool {
	return len(q.pages) >= q.capacity
}

// Discipline returns the removal discipline.
func (q *Queue[T]) Discipline() Discipline {
	return q.discipline
}
