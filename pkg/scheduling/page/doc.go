// Package page defines the unit of transfer of a paged pipeline and the
// bounded queue that holds produced pages until a worker slot is free.
//
// A Page is filled by exactly one producer call and consumed by exactly one
// consumer call. The Queue caps how many filled pages may be resident at
// once, which bounds the memory of an otherwise unbounded result stream.
//
// Two removal disciplines are available:
//
//	q := page.NewQueue[int](8, page.LIFO) // newest page dispatched first
//	q := page.NewQueue[int](8, page.FIFO) // pages dispatched in production order
//
// Neither type performs locking. The queue is touched only by the
// scheduling goroutine and a page is owned by one goroutine at a time.
package page
