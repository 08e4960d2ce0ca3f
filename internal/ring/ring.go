// Package ring provides a fixed-capacity FIFO that overwrites its oldest
// entry when full.
package ring

// Buffer is a fixed-capacity FIFO.
// Not safe for concurrent use: callers must synchronize.
type Buffer[T any] struct {
	buf      []T
	capacity int
	head     int // next write position
	count    int
	overflow bool // true if any entry was dropped since last drain/reset
}

// New creates a Buffer holding at most capacity entries.
// A capacity below 1 is treated as 1.
func New[T any](capacity int) *Buffer[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Buffer[T]{
		buf:      make([]T, capacity),
		capacity: capacity,
	}
}

// Push appends v, evicting the oldest entry when the buffer is full.
// It reports whether an entry was evicted.
func (r *Buffer[T]) Push(v T) bool {
	if r.count == r.capacity {
		// Overwrite oldest: head is already pointing at it
		r.buf[r.head] = v
		r.head = (r.head + 1) % r.capacity
		r.overflow = true
		return true
	}
	r.buf[r.head] = v
	r.head = (r.head + 1) % r.capacity
	r.count++
	return false
}

// At returns the i-th entry, 0 being the oldest.
func (r *Buffer[T]) At(i int) T {
	if i < 0 || i >= r.count {
		panic("ring: index out of range")
	}
	start := (r.head - r.count + r.capacity) % r.capacity
	return r.buf[(start+i)%r.capacity]
}

// Newest returns the most recently pushed entry.
func (r *Buffer[T]) Newest() (T, bool) {
	if r.count == 0 {
		var zero T
		return zero, false
	}
	return r.At(r.count - 1), true
}

// DrainAll returns all entries oldest first and empties the buffer.
func (r *Buffer[T]) DrainAll() []T {
	if r.count == 0 {
		return nil
	}

	result := make([]T, r.count)
	for i := 0; i < r.count; i++ {
		result[i] = r.At(i)
	}

	r.Reset()
	return result
}

// Reset empties the buffer and clears the overflow flag.
func (r *Buffer[T]) Reset() {
	var zero T
	for i := range r.buf {
		r.buf[i] = zero
	}
	r.count = 0
	r.head = 0
	r.overflow = false
}

// Len returns the number of buffered entries.
func (r *Buffer[T]) Len() int {
	return r.count
}

// Cap returns the buffer capacity.
func (r *Buffer[T]) Cap() int {
	return r.capacity
}

// Overflowed reports whether an entry was evicted since the last drain or reset.
func (r *Buffer[T]) Overflowed() bool {
	return r.overflow
}
