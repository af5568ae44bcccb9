package arena

import "unsafe"

// threadHint returns a cheap, nonzero, per-goroutine-ish value used only to
// pick a starting bucket/word offset so concurrent callers spread their CAS
// attempts instead of all colliding on bucket/word zero. It is a
// contention-reduction heuristic only: no correctness
// property depends on its value, its stability across calls on the same
// goroutine, or its uniqueness across goroutines.
//
// Go has no cheap OS-thread or goroutine id exposed to user code (unlike
// Rust's ThreadId, which original_source/src/thread_id.rs reads straight
// off the OS). The stdlib itself solves the analogous problem — per-P
// locals in sync.Pool — by pinning to the P and reading its id via a
// runtime-internal linkname (see the pin/unpin pair in
// runtime/sync/pool.go in a Go distribution checkout); that hook isn't
// something a regular module can lean on without coupling to runtime
// internals, so instead this hashes the address of a stack-local byte.
// Stack addresses differ across concurrently-running goroutines (distinct
// stacks) and are cheap to obtain (no syscall, no atomic).
func threadHint() uint64 {
	var local byte
	h := uint64(uintptr(unsafe.Pointer(&local)))

	// 64-bit finalizer (splittable/murmur-style) so the low bits used for
	// modulo bucket/word counts aren't just "stack alignment", which would
	// otherwise cluster everyone on the same few offsets.
	h ^= h >> 33
	h *= 0xff51afd7ed558ccd
	h ^= h >> 33
	h *= 0xc4ceb9fe1a85ec53
	h ^= h >> 33

	if h == 0 {
		h = 1
	}
	return h
}
