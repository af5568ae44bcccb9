package arena

import (
	"math/bits"

	"go.uber.org/atomic"
	"golang.org/x/sys/cpu"
)

// bitmapWord is one atomic machine word of a bitmap, padded to its own
// cache line. Under concurrent allocate/deallocate from many goroutines,
// neighboring words sharing a cache line would ping-pong between cores;
// grafana-tempo and calvinalkan-agent-task both pull in golang.org/x/sys,
// whose cpu.CacheLinePad is the idiomatic way to prevent that (see the
// equivalent hand-rolled CacheLinePadded struct in other_examples'
// Geek0x0-pdf counters).
type bitmapWord struct {
	_    cpu.CacheLinePad
	word atomic.Uint64
	_    cpu.CacheLinePad
}

// bitmap is a fixed array of B atomic words exposing lock-free allocate
// (find-and-set the first clear bit) and deallocate (clear a bit).
// Each word is CAS-retried independently; callers scan across words
// starting from a hint to spread contention.
type bitmap struct {
	words []bitmapWord
}

func newBitmap(wordCount uint32) *bitmap {
	return &bitmap{words: make([]bitmapWord, wordCount)}
}

// allocate scans words starting at an offset derived from startHint (a
// contention-reduction heuristic, not a correctness property), and within
// each non-full word scans bits LSB->MSB for a clear one, CASing it set.
// On CAS failure it rereads the word and searches the updated value again
// from its lowest clear bit, staying on the same word, mirroring
// original_source/src/bitmap.rs's inner retry loop. Returns false once all
// words have been scanned without finding a free bit.
func (b *bitmap) allocate(startHint uint64) (index uint32, ok bool) {
	n := uint64(len(b.words))
	if n == 0 {
		return 0, false
	}

	start := startHint % n
	for i := uint64(0); i < n; i++ {
		wi := (start + i) % n
		w := &b.words[wi].word

		value := w.Load()
		for value != ^uint64(0) {
			bit := bits.TrailingZeros64(^value)
			mask := uint64(1) << uint(bit)

			if w.CompareAndSwap(value, value|mask) {
				return uint32(wi)*wordBits + uint32(bit), true
			}
			value = w.Load()
		}
	}
	return 0, false
}

// deallocate atomically clears the bit at index.
func (b *bitmap) deallocate(index uint32) {
	wi := index / wordBits
	bit := index % wordBits
	mask := uint64(1) << bit

	w := &b.words[wi].word
	for {
		cur := w.Load()
		if w.CompareAndSwap(cur, cur&^mask) {
			return
		}
	}
}

// load returns whether the bit at index is currently set.
func (b *bitmap) load(index uint32) bool {
	wi := index / wordBits
	bit := index % wordBits
	return b.words[wi].word.Load()&(uint64(1)<<bit) != 0
}
