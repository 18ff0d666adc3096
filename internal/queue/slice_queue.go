package queue

// SliceQueue implements the Queue interface using a slice.
type SliceQueue[T any] struct {
	items []T
	head  int
}

var _ Queue[string] = (*SliceQueue[string])(nil)

// NewSliceQueue creates a new SliceQueue with room for prealloc items.
func NewSliceQueue[T any](prealloc int) *SliceQueue[T] {
	return &SliceQueue[T]{items: make([]T, 0, prealloc)}
}

// Enqueue adds items to the tail of the queue, preserving their order.
func (q *SliceQueue[T]) Enqueue(items ...T) {
	q.items = append(q.items, items...)
}

// Dequeue removes and returns the item at the head of the queue.
func (q *SliceQueue[T]) Dequeue() (T, bool) {
	var zero T
	if q.IsEmpty() {
		return zero, false
	}

	item := q.items[q.head]
	q.items[q.head] = zero // release the reference
	q.head++

	// compact once the consumed prefix dominates the backing array
	if q.head == len(q.items) {
		q.items = q.items[:0]
		q.head = 0
	} else if q.head >= 64 && q.head*2 >= len(q.items) {
		n := copy(q.items, q.items[q.head:])
		clear(q.items[n:])
		q.items = q.items[:n]
		q.head = 0
	}

	return item, true
}

// Peek returns the item at the head of the queue without removing it.
func (q *SliceQueue[T]) Peek() (T, bool) {
	if q.IsEmpty() {
		var zero T
		return zero, false
	}

	return q.items[q.head], true
}

// Reset resets the queue to an empty state.
func (q *SliceQueue[T]) Reset() {
	clear(q.items)
	q.items = q.items[:0] // Reslice to 0 length to reuse the underlying array
	q.head = 0
}

// IsEmpty returns true if the queue is empty, false otherwise.
func (q *SliceQueue[T]) IsEmpty() bool {
	return q.head == len(q.items)
}

// Length returns the number of items in the queue.
func (q *SliceQueue[T]) Length() int {
	return len(q.items) - q.head
}
