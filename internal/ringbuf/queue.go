// Package ringbuf implements a fixed-capacity, lock-free, wait-free
// single-producer/single-consumer queue.
//
// Exactly one goroutine may call Push; exactly one goroutine may call Pop.
// Calling either from more than one goroutine concurrently is a contract
// violation the queue does not detect.
package ringbuf

import "sync/atomic"

// cacheLinePad is sized to push the field that follows it onto its own
// cache line on common 64-byte-line architectures, so the writer's tail
// index and the reader's head index never false-share.
type cacheLinePad [64 - 8]byte

// Queue is a bounded ring buffer of capacity N (rounded up to the next
// power of two). It never allocates after New, never blocks, and never
// yields.
type Queue[T any] struct {
	tail atomic.Uint64
	_    cacheLinePad

	head atomic.Uint64
	_    cacheLinePad

	mask   uint64
	buffer []T
}

// New creates a queue able to hold at least capacity items. capacity is
// rounded up to the next power of two if it isn't one already.
func New[T any](capacity int) *Queue[T] {
	if capacity < 1 {
		capacity = 1
	}
	n := uint64(1)
	for n < uint64(capacity) {
		n <<= 1
	}
	return &Queue[T]{
		mask:   n - 1,
		buffer: make([]T, n),
	}
}

// Cap returns the fixed capacity of the queue.
func (q *Queue[T]) Cap() int {
	return int(q.mask + 1)
}

// Len returns the current occupancy. Safe to call from either side; the
// value may be stale by the time the caller acts on it.
func (q *Queue[T]) Len() int {
	tail := q.tail.Load()
	head := q.head.Load()
	return int(tail - head)
}

// Push attempts to enqueue item, returning false if the queue is full.
// Only the producer goroutine may call this.
func (q *Queue[T]) Push(item T) bool {
	tail := q.tail.Load()
	head := q.head.Load()
	if tail-head >= uint64(len(q.buffer)) {
		return false
	}
	q.buffer[tail&q.mask] = item
	q.tail.Store(tail + 1)
	return true
}

// Pop attempts to dequeue an item, returning ok=false if the queue is
// empty. Only the consumer goroutine may call this.
func (q *Queue[T]) Pop() (item T, ok bool) {
	head := q.head.Load()
	tail := q.tail.Load()
	if head == tail {
		return item, false
	}
	item = q.buffer[head&q.mask]
	var zero T
	q.buffer[head&q.mask] = zero
	q.head.Store(head + 1)
	return item, true
}
