package history

// Ring is a fixed-capacity FIFO buffer. Pushing onto a full ring evicts the
// oldest item. Ring is not safe for concurrent use.
type Ring[T any] struct {
	buf      []T
	head     int // oldest item
	count    int
	capacity int

	totalPushed int64
	evicted     int64
}

// NewRing creates a ring holding at most capacity items.
func NewRing[T any](capacity int) *Ring[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Ring[T]{
		buf:      make([]T, capacity),
		capacity: capacity,
	}
}

// Push appends item, evicting the oldest one when the ring is full.
// Returns true if an item was evicted.
func (r *Ring[T]) Push(item T) bool {
	r.totalPushed++

	if r.count == r.capacity {
		r.buf[r.head] = item
		r.head = (r.head + 1) % r.capacity
		r.evicted++
		return true
	}

	r.buf[(r.head+r.count)%r.capacity] = item
	r.count++
	return false
}

// Last returns the most recently pushed item.
func (r *Ring[T]) Last() (T, bool) {
	if r.count == 0 {
		var zero T
		return zero, false
	}
	return r.buf[(r.head+r.count-1)%r.capacity], true
}

// Items returns a copy of the ring contents, oldest first.
func (r *Ring[T]) Items() []T {
	out := make([]T, r.count)
	for i := 0; i < r.count; i++ {
		out[i] = r.buf[(r.head+i)%r.capacity]
	}
	return out
}

// Reset empties the ring.
func (r *Ring[T]) Reset() {
	var zero T
	for i := range r.buf {
		r.buf[i] = zero // Clear references for GC
	}
	r.head = 0
	r.count = 0
}

// Len returns the number of items held.
func (r *Ring[T]) Len() int {
	return r.count
}

// Cap returns the fixed capacity.
func (r *Ring[T]) Cap() int {
	return r.capacity
}

// Stats returns ring statistics.
func (r *Ring[T]) Stats() RingStats {
	return RingStats{
		Count:       r.count,
		Capacity:    r.capacity,
		TotalPushed: r.totalPushed,
		Evicted:     r.evicted,
	}
}

// RingStats contains ring statistics.
type RingStats struct {
	Count       int
	Capacity    int
	TotalPushed int64
	Evicted     int64
}
