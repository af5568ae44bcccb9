package arena

import (
	"fmt"
	"math"
)

// wordBits is the width of one bitmap word. Go's atomic/uber-atomic types
// top out at 64 bits, so bitmap words are uint64, the widest available.
const wordBits = 64

// Layout pins the per-bucket shape a const-generics language would express
// as compile-time constants B (bitmap words per bucket) and L (entries per
// bucket). Go has no const generics (no integer type parameters), so Arena
// is generic only in its element type; B and L are instead runtime
// configuration, validated once at construction.
type Layout struct {
	// EntriesPerBucket is L: the number of slots per bucket.
	EntriesPerBucket uint32
	// BitmapWords is B: the number of uint64 words backing the bucket's bitmap.
	// Must satisfy EntriesPerBucket == BitmapWords * 64.
	BitmapWords uint32
}

// DefaultLayout matches the reference single-bucket-of-64 configuration.
var DefaultLayout = Layout{EntriesPerBucket: 64, BitmapWords: 1}

// NewLayout builds a Layout from an entry count, deriving BitmapWords, and
// validates it. entriesPerBucket must be a positive multiple of 64.
func NewLayout(entriesPerBucket uint32) (Layout, error) {
	l := Layout{
		EntriesPerBucket: entriesPerBucket,
		BitmapWords:      entriesPerBucket / wordBits,
	}
	return l, l.validate()
}

func (l Layout) validate() error {
	if l.EntriesPerBucket == 0 {
		return fmt.Errorf("%w: entries per bucket must be > 0", ErrLayoutInvalid)
	}
	if uint64(l.BitmapWords)*wordBits != uint64(l.EntriesPerBucket) {
		return fmt.Errorf("%w: entries per bucket (%d) must equal bitmap words (%d) * %d",
			ErrLayoutInvalid, l.EntriesPerBucket, l.BitmapWords, wordBits)
	}
	if uint64(l.EntriesPerBucket) > math.MaxUint32 {
		return fmt.Errorf("%w: entries per bucket exceeds uint32 range", ErrLayoutInvalid)
	}
	return nil
}

// maxBuckets is the effective maximum bucket count: floor(MaxUint32 / L),
// the documented bucket-count invariant.
func (l Layout) maxBuckets() uint32 {
	return math.MaxUint32 / l.EntriesPerBucket
}
