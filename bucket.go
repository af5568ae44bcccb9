package arena

// bucket is a bitmap plus a fixed-size entry array. Buckets
// never move once published into a bucketTable snapshot: entries' addresses
// are stable for the bucket's lifetime.
type bucket[T any] struct {
	bits    *bitmap
	entries []entry[T]
}

func newBucket[T any](layout Layout) *bucket[T] {
	return &bucket[T]{
		bits:    newBitmap(layout.BitmapWords),
		entries: make([]entry[T], layout.EntriesPerBucket),
	}
}

// tryInsert allocates a free entry index via the bitmap and publishes v
// into it, returning a Handle for the new slot. If the bucket is full, v is
// returned unchanged so the caller can try the next bucket.
func (b *bucket[T]) tryInsert(bucketIndex uint32, entriesPerBucket uint32, v T) (*Handle[T], T, bool) {
	index, ok := b.bits.allocate(threadHint())
	if !ok {
		return nil, v, false
	}

	e := &b.entries[index]
	e.publish(v)

	slot := bucketIndex*entriesPerBucket + index
	return newHandle(b, slot, index), v, true
}

// get increments the refcount for entryIndex and returns an owning Handle,
// or false if the slot is absent or tombstoned.
func (b *bucket[T]) get(bucketIndex, entriesPerBucket, entryIndex uint32) (*Handle[T], bool) {
	if entryIndex >= uint32(len(b.entries)) {
		return nil, false
	}
	e := &b.entries[entryIndex]
	if !e.acquireForGet(b.bits.load(entryIndex)) {
		return nil, false
	}
	slot := bucketIndex*entriesPerBucket + entryIndex
	return newHandle(b, slot, entryIndex), true
}

// remove tombstones entryIndex and returns a Handle to it, or false if the
// slot is absent or already tombstoned. A slot still in its initialization
// window is spun on until its state is published.
func (b *bucket[T]) remove(bucketIndex, entriesPerBucket, entryIndex uint32) (*Handle[T], bool) {
	if entryIndex >= uint32(len(b.entries)) {
		return nil, false
	}
	e := &b.entries[entryIndex]
	if !e.acquireForRemove(b.bits.load(entryIndex)) {
		return nil, false
	}
	slot := bucketIndex*entriesPerBucket + entryIndex
	return newHandle(b, slot, entryIndex), true
}

// entryAt returns the entry backing entryIndex, used by Handle for
// clone/remove/deref without re-deriving the bucket lookup each time.
func (b *bucket[T]) entryAt(entryIndex uint32) *entry[T] {
	return &b.entries[entryIndex]
}

// releaseEntry implements the tail end of Handle.Drop: decrement the
// entry's refcount and, if that was the last unit on a tombstoned slot,
// clear the bitmap bit so the index can be reused.
func (b *bucket[T]) releaseEntry(entryIndex uint32) {
	e := &b.entries[entryIndex]
	if e.release() {
		b.bits.deallocate(entryIndex)
	}
}
