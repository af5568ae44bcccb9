package arena

import (
	"go.uber.org/atomic"
	"golang.org/x/sys/cpu"
)

// State byte layout: high bit is the tombstone, low 7 bits
// are a refcount capped at 127.
const (
	tombstoneBit  = uint32(0x80)
	refcountMask  = uint32(0x7f)
	maxRefcount   = refcountMask
	stateEmpty    = uint32(0x00)
	initialRefcnt = uint32(2) // see "implicit bucket stake" below
)

// entry is one slot: an atomic state byte plus storage for one T.
//
// The raw refcount recorded in state is not simply "how many live Handles
// point at this slot". Following original_source/src/bucket.rs, publishing
// a value sets the state to 2, not 1: one unit for the Handle returned to
// the caller, and one implicit unit held by the bucket itself, representing
// the fact that the slot stays allocated until someone explicitly removes
// it (dropping every outstanding Handle without calling Remove never frees
// the slot). Bucket.remove (the slot-id path) sets the tombstone bit
// without touching the counter: the bucket's
// implicit unit becomes the returned Handle's unit, so nothing needs
// incrementing. Handle.Remove (the in-place path) sets the tombstone bit
// and decrements by one, releasing the bucket's implicit unit while the
// caller keeps its own.
//
// Handle.StrongCount subtracts that hidden unit back out while the slot is
// live (so a single fresh insert reports a strong count of 1) and stops
// subtracting once tombstoned, since by then the hidden unit has been
// converted into a real, counted Handle.
type entry[T any] struct {
	_     cpu.CacheLinePad
	state atomic.Uint32
	cell  T
}

// publish writes v into a freshly-bitmap-allocated, empty slot and makes it
// live with one outstanding Handle. Must only be called on a slot that
// bitmap.allocate just returned.
func (e *entry[T]) publish(v T) {
	// Acquire-equivalent: go.uber.org/atomic offers no relaxed/acquire
	// distinction (it is sequentially consistent throughout), which only
	// strengthens the "acquire suffices" ordering this design calls for.
	// The prior occupant's destruction (if any) happened-before this load
	// observed its release-store of 0; reading it here, before writing the
	// cell, establishes that happens-before for our own write in turn.
	if prev := e.state.Load(); prev != stateEmpty {
		panic("arena: publish called on a non-empty slot")
	}
	e.cell = v
	e.state.Store(initialRefcnt)
}

// entryState describes what a reader observed when probing an entry.
type entryState int

const (
	entryEmpty entryState = iota
	entryInitializing       // bit set, counter not yet stored: spin and retry
	entryTombstoned
	entryLive
)

func classify(raw uint32, bitSet bool) entryState {
	if !bitSet {
		return entryEmpty
	}
	if raw&tombstoneBit != 0 {
		return entryTombstoned
	}
	if raw&refcountMask == 0 {
		return entryInitializing
	}
	return entryLive
}

// acquireForGet implements the Get transition: increment the refcount if
// the slot is live and not tombstoned. Returns false if the slot is absent
// or tombstoned. Panics if the increment would overflow the 7-bit field,
// same hard cap as clone: Get is just another way to mint a Handle, and
// letting the counter wrap would silently set the tombstone bit instead of
// failing loudly.
func (e *entry[T]) acquireForGet(bitSet bool) bool {
	if !bitSet {
		return false
	}
	for {
		raw := e.state.Load()
		switch classify(raw, true) {
		case entryTombstoned, entryEmpty:
			return false
		case entryInitializing:
			spinPause()
			continue
		}
		if raw&refcountMask == maxRefcount {
			panic("arena: Handle refcount overflow (127 outstanding handles)")
		}
		if e.state.CompareAndSwap(raw, raw+1) {
			return true
		}
	}
}

// acquireForRemove implements the slot-id Remove transition: set the
// tombstone bit without touching the counter (the bucket's implicit unit
// becomes the caller's). Returns false if already tombstoned or absent; a
// slot in the initializing window is spun on until its state is published.
func (e *entry[T]) acquireForRemove(bitSet bool) bool {
	if !bitSet {
		return false
	}
	for {
		raw := e.state.Load()
		switch classify(raw, true) {
		case entryTombstoned, entryEmpty:
			return false
		case entryInitializing:
			spinPause()
			continue
		}
		if e.state.CompareAndSwap(raw, raw|tombstoneBit) {
			return true
		}
	}
}

// clone implements Handle.Clone: increments the refcount, panicking if
// doing so would overflow the 7-bit field.
func (e *entry[T]) clone() {
	for {
		raw := e.state.Load()
		if raw&refcountMask == maxRefcount {
			panic("arena: Handle refcount overflow (127 outstanding handles)")
		}
		if e.state.CompareAndSwap(raw, raw+1) {
			return
		}
	}
}

// removeInPlace implements Handle.Remove: sets the tombstone bit and
// releases the bucket's implicit unit (decrement by one) in a single CAS.
// Returns false if the slot was already tombstoned by someone else.
func (e *entry[T]) removeInPlace() bool {
	for {
		raw := e.state.Load()
		if raw&tombstoneBit != 0 {
			return false
		}
		if raw&refcountMask == 1 {
			// The caller's own Handle always accounts for at least one
			// unit beyond the bucket's implicit unit while live and
			// untombstoned; see the type-level doc comment.
			panic("arena: Handle.Remove observed refcount == 1, invariant violated")
		}
		next := (raw - 1) | tombstoneBit
		if e.state.CompareAndSwap(raw, next) {
			return true
		}
	}
}

// release implements Handle.Drop: decrements the refcount. If this was the
// last unit on a tombstoned slot, it zeroes the cell, stores state back to
// empty, and reports that the caller must clear the bitmap bit.
func (e *entry[T]) release() (destroyed bool) {
	for {
		raw := e.state.Load()
		rc := raw & refcountMask
		if rc == 0 {
			panic("arena: releasing a Handle on an already-empty slot")
		}
		tomb := raw&tombstoneBit != 0

		if tomb && rc == 1 {
			if e.state.CompareAndSwap(raw, stateEmpty) {
				var zero T
				e.cell = zero // drop the stored value's references for GC
				return true
			}
			continue
		}

		if e.state.CompareAndSwap(raw, raw-1) {
			return false
		}
	}
}

// strongCount reports the number of live Handles, subtracting the bucket's
// implicit unit while the slot has not yet been tombstoned.
func (e *entry[T]) strongCount() uint8 {
	raw := e.state.Load()
	rc := raw & refcountMask
	if raw&tombstoneBit == 0 && rc > 0 {
		rc--
	}
	return uint8(rc)
}

func (e *entry[T]) isRemoved() bool {
	return e.state.Load()&tombstoneBit != 0
}

func (e *entry[T]) value() *T {
	return &e.cell
}
