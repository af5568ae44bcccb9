package arena

import "go.uber.org/atomic"

// Handle is a reference-counted, owning reference to one live slot in an
// Arena. It keeps the slot's backing bucket alive independently of the
// Arena itself: as long as any Handle for a slot exists, the
// bucket table entry for it is safe to dereference, even across arena
// growth or after the slot has been removed.
//
// Go has no destructors run on scope exit and no operator overloading, so
// where an owning-smart-pointer type would expose Deref/Clone/Drop, this type exposes them as
// ordinary methods: Value (read), Clone (new owning reference), Close
// (release this reference). Handle is not safe for concurrent Close/Clone
// calls on the *same* Handle value from multiple goroutines — share a
// *Handle by Clone-ing one per goroutine instead, same as one would share
// a std::sync::Arc by cloning it rather than racing drop() on one value.
type Handle[T any] struct {
	slot   uint32
	index  uint32
	bucket *bucket[T]
	closed atomic.Bool
}

func newHandle[T any](b *bucket[T], slot, index uint32) *Handle[T] {
	return &Handle[T]{slot: slot, index: index, bucket: b}
}

// Slot returns the stable 32-bit identifier for this handle's entry.
func (h *Handle[T]) Slot() uint32 { return h.slot }

// Value returns a pointer to the stored value. Valid for as long as h (or
// any handle cloned from it) has not been closed; the address never
// changes during that time.
func (h *Handle[T]) Value() *T {
	return h.bucket.entryAt(h.index).value()
}

// StrongCount returns the number of Handles currently outstanding for this
// slot.
func (h *Handle[T]) StrongCount() uint8 {
	return h.bucket.entryAt(h.index).strongCount()
}

// IsRemoved reports whether the slot has been tombstoned, via this handle
// or any other path (Arena.Remove or another Handle's Remove).
func (h *Handle[T]) IsRemoved() bool {
	return h.bucket.entryAt(h.index).isRemoved()
}

// Remove tombstones the slot in place, releasing the bucket's implicit
// ownership unit while this Handle keeps its own (the
// Handle::remove transition). Returns false if the slot was already
// tombstoned by a concurrent Arena.Remove or another Handle's Remove.
func (h *Handle[T]) Remove() bool {
	return h.bucket.entryAt(h.index).removeInPlace()
}

// Clone returns a new Handle referencing the same slot, incrementing its
// refcount. Panics if doing so would exceed 127 outstanding handles (the
// raw per-slot counter, including the implicit bucket stake; see entry.go).
func (h *Handle[T]) Clone() *Handle[T] {
	h.bucket.entryAt(h.index).clone()
	return &Handle[T]{slot: h.slot, index: h.index, bucket: h.bucket}
}

// Close releases this Handle's reference. If it was the last outstanding
// reference to a tombstoned slot, the stored value is dropped and the slot
// is returned to the bucket's free bitmap for reuse. Close is idempotent:
// calling it more than once on the same Handle is a no-op after the first
// call.
func (h *Handle[T]) Close() {
	if h.closed.Swap(true) {
		return
	}
	h.bucket.releaseEntry(h.index)
}
