package page

// Page is an ordered batch of items, the unit of transfer between the
// producer and one consumer. A page is owned by exactly one goroutine at a
// time: the scheduler while it is being filled, then the worker slot it was
// dispatched to. Its contents are never accessed concurrently.
type Page[T any] struct {
	// Items holds the page contents in append order.
	Items []T

	seq uint64
}

// New creates an empty page carrying production sequence number seq.
// capacity is a hint for the initial backing array and may be zero.
func New[T any](seq uint64, capacity int) *Page[T] {
	if capacity < 0 {
		capacity = 0
	}
	return &Page[T]{
		Items: make([]T, 0, capacity),
		seq:   seq,
	}
}

// Append adds items to the end of the page.
func (p *Page[T]) Append(items ...T) {
	p.Items = append(p.Items, items...)
}

// Len returns the number of items in the page.
func (p *Page[T]) Len() int {
	return len(p.Items)
}

// Empty reports whether the page holds no items.
func (p *Page[T]) Empty() bool {
	return len(p.Items) == 0
}

// Seq returns the zero-based production sequence number of the page.
func (p *Page[T]) Seq() uint64 {
	return p.seq
}
