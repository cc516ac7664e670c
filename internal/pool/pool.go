// Package pool implements a fixed-capacity, pre-allocated object pool
// yielding stable indices and move-only handles.
//
// Go has no linear types, so "move-only" is emulated rather than enforced
// at compile time: each handle carries a generation number alongside its
// index, and Release bumps the slot's generation so a stale or duplicated
// handle is rejected rather than silently corrupting a live slot. This is
// the same "one owner, no double-free" contract the teacher enforces with
// sync.Pool plus a Destroy/Reset convention, strengthened with a runtime
// check since the pool here hands out indices instead of pointers.
package pool

import (
	"errors"
	"fmt"
)

// ErrExhausted is returned by callers that wrap Allocate's ok=false
// result into an error, e.g. when a full pool must surface as a
// rejection rather than a boolean.
var ErrExhausted = errors.New("pool: exhausted")

// Handle identifies a slot in a Pool. The zero Handle is never valid
// (generation 0 is reserved), so an accidentally zero-valued Handle is
// caught by Get/Release rather than aliasing slot 0.
type Handle struct {
	index      int32
	generation uint32
}

// Valid reports whether h could possibly refer to a live slot. It does
// not, by itself, prove the slot is still live — Get/Release do that.
func (h Handle) Valid() bool {
	return h.generation != 0
}

// Index returns the stable slot index backing this handle. Orders link
// to each other within a price level by this index, never by a Go
// pointer, per the doubly-linked-list-in-a-pool design.
func (h Handle) Index() int {
	return int(h.index)
}

type slot[T any] struct {
	value      T
	generation uint32
	live       bool
}

// Pool is a single-threaded, fixed-capacity pool of T. It is not safe
// for concurrent use: like the order book it backs, a Pool is owned by
// exactly one goroutine.
type Pool[T any] struct {
	slots    []slot[T]
	freeList []int32
	liveCnt  int
}

// New creates a pool with capacity fixed slots, all initially free.
func New[T any](capacity int) *Pool[T] {
	p := &Pool[T]{
		slots:    make([]slot[T], capacity),
		freeList: make([]int32, capacity),
	}
	for i := 0; i < capacity; i++ {
		p.slots[i].generation = 1
		p.freeList[i] = int32(capacity - 1 - i)
	}
	return p
}

// Cap returns the fixed capacity of the pool.
func (p *Pool[T]) Cap() int {
	return len(p.slots)
}

// Live returns the number of currently allocated slots.
func (p *Pool[T]) Live() int {
	return p.liveCnt
}

// Free returns the number of currently unallocated slots.
func (p *Pool[T]) Free() int {
	return len(p.slots) - p.liveCnt
}

// Allocate reserves a slot and returns a handle to it, or ok=false if
// the pool is exhausted. The slot's value starts at its zero value.
func (p *Pool[T]) Allocate() (Handle, bool) {
	n := len(p.freeList)
	if n == 0 {
		return Handle{}, false
	}
	idx := p.freeList[n-1]
	p.freeList = p.freeList[:n-1]

	s := &p.slots[idx]
	s.live = true
	var zero T
	s.value = zero
	p.liveCnt++

	return Handle{index: idx, generation: s.generation}, true
}

// Get returns a pointer to the live value behind h, or nil if h does
// not refer to a currently live slot (double-free, stale handle, or
// out-of-range index).
func (p *Pool[T]) Get(h Handle) *T {
	if h.index < 0 || int(h.index) >= len(p.slots) {
		return nil
	}
	s := &p.slots[h.index]
	if !s.live || s.generation != h.generation {
		return nil
	}
	return &s.value
}

// GetByIndex is the index-only counterpart of Get, used when walking a
// price level's doubly-linked list where only the raw index is stored.
func (p *Pool[T]) GetByIndex(index int) *T {
	if index < 0 || index >= len(p.slots) {
		return nil
	}
	s := &p.slots[index]
	if !s.live {
		return nil
	}
	return &s.value
}

// Release frees the slot behind h. Releasing an already-released or
// unrecognized handle returns an error rather than corrupting state —
// this is the run-time substitute for the compile-time prohibition on
// duplicating a move-only handle.
func (p *Pool[T]) Release(h Handle) error {
	if h.index < 0 || int(h.index) >= len(p.slots) {
		return fmt.Errorf("pool: handle index %d out of range", h.index)
	}
	s := &p.slots[h.index]
	if !s.live || s.generation != h.generation {
		return fmt.Errorf("pool: double-free or stale handle at index %d", h.index)
	}

	s.live = false
	var zero T
	s.value = zero
	s.generation++
	if s.generation == 0 {
		s.generation = 1
	}

	p.freeList = append(p.freeList, h.index)
	p.liveCnt--
	return nil
}

// ReleaseByIndex frees a slot known only by its raw index, with no
// generation check — used by the order book, which stores plain
// indices (not full handles) in its doubly-linked list links, exactly
// as the reference order book stores prev_idx/next_idx.
func (p *Pool[T]) ReleaseByIndex(index int) error {
	if index < 0 || index >= len(p.slots) {
		return fmt.Errorf("pool: index %d out of range", index)
	}
	s := &p.slots[index]
	if !s.live {
		return fmt.Errorf("pool: double-free at index %d", index)
	}
	s.live = false
	var zero T
	s.value = zero
	s.generation++
	if s.generation == 0 {
		s.generation = 1
	}
	p.freeList = append(p.freeList, int32(index))
	p.liveCnt--
	return nil
}
