package arena

import (
	"sync"

	"go.uber.org/atomic"
)

// bucketTable is an append-only, atomically-published slice of shared
// bucket pointers. Growth builds a new, independent slice
// containing the old buckets plus freshly-allocated ones and atomically
// swaps it in; a snapshot taken before a grow stays valid indefinitely,
// because the buckets it points at are never freed or moved (they are kept
// alive by both the table and any outstanding Handle).
//
// This is the one component directly modeled on the teacher: absir-cmap's
// Map holds its node behind an atomic pointer
// (atomic.LoadPointer/CompareAndSwapPointer) and grows by building a new
// node that references the old one, then swinging m.node over with a CAS;
// readers that already grabbed the old node keep working against it
// uninterrupted. The same shape here, using go.uber.org/atomic's generic
// Pointer instead of unsafe.Pointer plus a hand-rolled cast.
type bucketTable[T any] struct {
	snapshot atomic.Pointer[[]*bucket[T]]
	growMu   sync.Mutex
}

func newBucketTable[T any](layout Layout, initialBuckets uint32) *bucketTable[T] {
	t := &bucketTable[T]{}
	s := make([]*bucket[T], initialBuckets)
	for i := range s {
		s[i] = newBucket[T](layout)
	}
	t.snapshot.Store(&s)
	return t
}

// load returns the current snapshot. The caller holds this slice header by
// value, so a concurrent grow swapping in a new one never mutates or
// invalidates what the caller already has.
func (t *bucketTable[T]) load() []*bucket[T] {
	if p := t.snapshot.Load(); p != nil {
		return *p
	}
	return nil
}

func (t *bucketTable[T]) length() uint32 {
	return uint32(len(t.load()))
}

// grow blocks until the table has at least targetLen buckets, building any
// missing ones with makeBucket. The mutex here only serializes growers
// against each other; it is never held across anything a reader would
// observe, and readers never take it at all.
func (t *bucketTable[T]) grow(targetLen uint32, makeBucket func() *bucket[T]) {
	if t.length() >= targetLen {
		return
	}
	t.growMu.Lock()
	defer t.growMu.Unlock()
	t.growLocked(targetLen, makeBucket)
}

// tryGrow is the non-blocking probe: it gives up immediately if another
// goroutine already holds the grow mutex, returning false so the caller can
// fall back to retrying the operation that needed more room instead of
// waiting behind a contended growth.
func (t *bucketTable[T]) tryGrow(targetLen uint32, makeBucket func() *bucket[T]) bool {
	if t.length() >= targetLen {
		return true
	}
	if !t.growMu.TryLock() {
		return false
	}
	defer t.growMu.Unlock()
	t.growLocked(targetLen, makeBucket)
	return true
}

func (t *bucketTable[T]) growLocked(targetLen uint32, makeBucket func() *bucket[T]) {
	old := t.load()
	if uint32(len(old)) >= targetLen {
		return
	}

	grown := make([]*bucket[T], targetLen)
	copy(grown, old)
	for i := len(old); i < len(grown); i++ {
		grown[i] = makeBucket()
	}
	t.snapshot.Store(&grown)
}
