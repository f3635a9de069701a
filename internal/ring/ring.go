// Package ring provides a bounded FIFO with drop-oldest semantics. It backs
// both the frame ring and the network-event ring: writers push from event
// handlers, readers always take a snapshot copy, so a reader never observes
// a torn ring.
package ring

import "sync"

// Ring is a fixed-capacity FIFO. Push evicts the oldest entry when full and
// counts the eviction; Dropped is monotonically non-decreasing for the life
// of the ring (Clear resets it along with the contents).
type Ring[T any] struct {
	mu      sync.Mutex
	items   []T
	cap     int
	dropped int64
}

// New creates a ring with the given capacity. Capacity is clamped to >= 1.
func New[T any](capacity int) *Ring[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Ring[T]{cap: capacity}
}

// Push appends v, evicting the oldest entry if the ring is full.
func (r *Ring[T]) Push(v T) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.items) >= r.cap {
		drop := len(r.items) - r.cap + 1
		r.items = append(r.items[:0], r.items[drop:]...)
		r.dropped += int64(drop)
	}
	r.items = append(r.items, v)
}

// TrimTo keeps only the last n entries, counting removals as drops.
func (r *Ring[T]) TrimTo(n int) {
	if n < 0 {
		n = 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.items) <= n {
		return
	}
	drop := len(r.items) - n
	r.items = append(r.items[:0], r.items[drop:]...)
	r.dropped += int64(drop)
}

// Snapshot returns a copy of the current contents, oldest first.
func (r *Ring[T]) Snapshot() []T {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]T, len(r.items))
	copy(out, r.items)
	return out
}

// Last returns a copy of the newest n entries, oldest first. n <= 0 returns
// an empty slice.
func (r *Ring[T]) Last(n int) []T {
	if n <= 0 {
		return []T{}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	start := len(r.items) - n
	if start < 0 {
		start = 0
	}
	out := make([]T, len(r.items)-start)
	copy(out, r.items[start:])
	return out
}

// Latest returns the newest entry, if any.
func (r *Ring[T]) Latest() (T, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.items) == 0 {
		var zero T
		return zero, false
	}
	return r.items[len(r.items)-1], true
}

// Depth returns the current number of entries.
func (r *Ring[T]) Depth() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}

// Cap returns the fixed capacity.
func (r *Ring[T]) Cap() int {
	return r.cap
}

// Dropped returns the total number of evicted entries.
func (r *Ring[T]) Dropped() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dropped
}

// Clear empties the ring and resets the drop counter.
func (r *Ring[T]) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = nil
	r.dropped = 0
}
