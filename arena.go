package arena

import (
	"sync"
	"time"

	"go.uber.org/atomic"
)

// arenaState is the lazily-built, atomically-published part of an Arena:
// the layout it was configured with and the bucket table built against
// that layout. Bundling both behind one published pointer means a reader
// that observes a non-nil state always sees a layout and table that agree
// with each other.
type arenaState[T any] struct {
	layout Layout
	table  *bucketTable[T]
}

// Arena is the public facade: it routes inserts across buckets, grows the
// bucket table under pressure, and demultiplexes slot ids back to a
// (bucket, entry) pair.
//
// Arena[T] is generic only in the element type. The per-bucket shape other
// arenas express as compile-time type parameters is instead a Layout chosen
// at construction (see layout.go — Go has no const generics to express
// "L == B*wordBits" as a compile-time type constraint).
//
// The zero value is a ready-to-use Arena with DefaultLayout and no
// pre-allocated buckets: a bare `var a Arena[T]`, or one embedded in a
// package-level var, works without calling a constructor first, the same
// way a zero sync.Mutex is already lockable. State is built lazily on
// first use via the double-checked-lock pattern absir-cmap's getNode uses
// for its node pointer (cmap.go), adapted here to publish an
// atomic.Pointer[arenaState[T]] instead of an unsafe.Pointer.
type Arena[T any] struct {
	mu    sync.Mutex
	state atomic.Pointer[arenaState[T]]
}

// NewArena creates an arena using DefaultLayout with no pre-allocated
// buckets. Equivalent to a zero-value Arena[T]{}; provided for parity with
// the other constructors and for callers who prefer an explicit New.
func NewArena[T any]() *Arena[T] {
	return &Arena[T]{}
}

// NewArenaWithCapacity creates an arena using DefaultLayout with cap
// pre-allocated buckets (capped at the layout's maximum bucket count).
func NewArenaWithCapacity[T any](cap uint32) *Arena[T] {
	a := &Arena[T]{}
	a.initLocked(DefaultLayout, cap)
	return a
}

// NewArenaWithLayout creates an arena with an explicit Layout and cap
// pre-allocated buckets, validating the layout first.
func NewArenaWithLayout[T any](layout Layout, cap uint32) (*Arena[T], error) {
	if err := layout.validate(); err != nil {
		return nil, err
	}
	a := &Arena[T]{}
	a.initLocked(layout, cap)
	return a, nil
}

// initLocked eagerly builds and publishes state for a freshly-constructed
// Arena (used by the explicit constructors, which already know the layout
// and desired capacity before the Arena escapes to a caller).
func (a *Arena[T]) initLocked(layout Layout, cap uint32) {
	if max := layout.maxBuckets(); cap > max {
		cap = max
	}
	a.state.Store(&arenaState[T]{
		layout: layout,
		table:  newBucketTable[T](layout, cap),
	})
}

// getState returns the arena's state, building it with DefaultLayout and
// zero pre-allocated buckets on first use if the Arena was constructed as
// a bare zero value. Mirrors absir-cmap's getNode: a fast lock-free path
// for the already-initialized case, falling back to a mutex-guarded
// double check so concurrent first-use callers agree on exactly one
// published state.
func (a *Arena[T]) getState() *arenaState[T] {
	if s := a.state.Load(); s != nil {
		return s
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if s := a.state.Load(); s != nil {
		return s
	}
	s := &arenaState[T]{
		layout: DefaultLayout,
		table:  newBucketTable[T](DefaultLayout, 0),
	}
	a.state.Store(s)
	return s
}

// MaxBuckets returns the effective maximum bucket count for this arena's
// layout: floor(MaxUint32 / L).
func (a *Arena[T]) MaxBuckets() uint32 {
	return a.getState().layout.maxBuckets()
}

// Len returns the current number of buckets. It is monotonically
// non-decreasing.
func (a *Arena[T]) Len() uint32 {
	return a.getState().table.length()
}

// IsEmpty reports whether the arena currently has zero buckets.
func (a *Arena[T]) IsEmpty() bool {
	return a.Len() == 0
}

func (a *Arena[T]) newBucket() *bucket[T] {
	return newBucket[T](a.getState().layout)
}

// TryInsert attempts to insert v without growing the arena. On success it
// returns an owning Handle. On failure (every bucket in the observed
// snapshot is full, or there are no buckets at all) it returns a
// *FullError[T] carrying v back and the number of buckets observed.
func (a *Arena[T]) TryInsert(v T) (*Handle[T], error) {
	state := a.getState()
	snapshot := state.table.load()
	n := uint32(len(snapshot))
	if n == 0 {
		return nil, &FullError[T]{Value: v, ObservedLen: 0}
	}

	start := uint32(threadHint() % uint64(n))
	L := state.layout.EntriesPerBucket
	for i := uint32(0); i < n; i++ {
		bi := (start + i) % n
		if h, remaining, ok := snapshot[bi].tryInsert(bi, L, v); ok {
			return h, nil
		} else {
			v = remaining
		}
	}
	return nil, &FullError[T]{Value: v, ObservedLen: n}
}

// Insert inserts v, growing the arena as needed, retrying until it
// succeeds. Below MaxBuckets, each failed attempt grows the table by 4
// buckets and retries at once. If the arena is already at MaxBuckets and
// every bucket is full, Insert retries indefinitely, waiting for a Remove to
// free a slot, sleeping with exponential backoff (1µs up to about 4ms)
// between attempts.
func (a *Arena[T]) Insert(v T) *Handle[T] {
	backoff := time.Microsecond
	const maxBackoff = 4 * time.Millisecond

	for {
		h, err := a.TryInsert(v)
		if err == nil {
			return h
		}
		full := err.(*FullError[T])
		v = full.Value

		max := a.getState().layout.maxBuckets()
		if full.ObservedLen >= max {
			// Arena is already at capacity: wait for a removal, not for
			// growth. Retrying try_insert will pick up a freed slot as
			// soon as one appears; avoid spinning as fast as possible.
			time.Sleep(backoff)
			if backoff < maxBackoff {
				backoff *= 2
			}
			continue
		}

		target := full.ObservedLen + 4
		if target > max {
			target = max
		}
		state := a.getState()
		if !state.table.tryGrow(target, a.newBucket) {
			// Someone else already holds the grow mutex; wait for it to
			// finish rather than spinning try_insert against a table that
			// isn't going to change until that grow completes.
			state.table.grow(target, a.newBucket)
		}
		backoff = time.Microsecond
	}
}

// TryReserve attempts to ensure at least n buckets exist, without blocking
// if another goroutine already holds the grow lock. Returns false if it
// gave up without reserving (the caller may retry or fall back to Reserve).
func (a *Arena[T]) TryReserve(n uint32) bool {
	state := a.getState()
	max := state.layout.maxBuckets()
	if n > max {
		n = max
	}
	return state.table.tryGrow(n, a.newBucket)
}

// Reserve ensures at least n buckets exist, blocking on the grow mutex if
// necessary (the mutex only ever serializes against other growers, never
// against readers or handle holders).
func (a *Arena[T]) Reserve(n uint32) {
	state := a.getState()
	max := state.layout.maxBuckets()
	if n > max {
		n = max
	}
	state.table.grow(n, a.newBucket)
}

// decomposeSlot splits a slot id into (bucketIndex, entryIndex).
func (a *Arena[T]) decomposeSlot(slot uint32) (bucketIndex, entryIndex uint32) {
	L := a.getState().layout.EntriesPerBucket
	return slot / L, slot % L
}

// Get returns an owning Handle to slot if it is currently live (not
// tombstoned, not empty). Returns false if the bucket index named by slot
// is beyond the current snapshot.
func (a *Arena[T]) Get(slot uint32) (*Handle[T], bool) {
	state := a.getState()
	bi, ei := a.decomposeSlot(slot)
	snapshot := state.table.load()
	if bi >= uint32(len(snapshot)) {
		return nil, false
	}
	return snapshot[bi].get(bi, state.layout.EntriesPerBucket, ei)
}

// Remove tombstones slot and returns an owning Handle to it, or false if
// the slot is absent or was already removed.
func (a *Arena[T]) Remove(slot uint32) (*Handle[T], bool) {
	state := a.getState()
	bi, ei := a.decomposeSlot(slot)
	snapshot := state.table.load()
	if bi >= uint32(len(snapshot)) {
		return nil, false
	}
	return snapshot[bi].remove(bi, state.layout.EntriesPerBucket, ei)
}
