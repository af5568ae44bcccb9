// Package arena implements a concurrent arena allocator: stable-address
// storage for values of a single type T, with per-slot atomic reference
// counting and lock-free insertion, lookup, and removal.
//
// Inserted values receive a stable 32-bit slot identifier. The arena hands
// out owning [Handle] values that reference-count the stored value and keep
// its backing storage alive independently of the [Arena] itself: a slot's
// memory is only reclaimed once it has been both explicitly removed and
// every outstanding Handle referencing it has been released.
//
// # Concurrency
//
// Insert, Get, and Remove are lock-free. Arena growth (adding buckets) takes
// a short mutex that serializes growers only; it never blocks readers or
// holders of outstanding handles, and never invalidates a previously
// observed bucket.
//
// # Non-goals
//
// This package does not provide persistence, iteration over live slots,
// value mutation through the arena (store an interior-mutable T for that),
// weak references, cross-process sharing, or bucket resizing/shrinking.
package arena
