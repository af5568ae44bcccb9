package arena

import (
	"errors"
	"fmt"
)

// ErrLayoutInvalid is returned by NewLayout when B and L fail the
// constraints: L == B*wordBits, L > 0, L <= math.MaxUint32.
var ErrLayoutInvalid = errors.New("arena: invalid layout")

// FullError is returned by Arena.TryInsert when every bucket observed in the
// current snapshot is full. ObservedLen is the number of buckets that were
// scanned.
type FullError[T any] struct {
	Value       T
	ObservedLen uint32
}

func (e *FullError[T]) Error() string {
	return fmt.Sprintf("arena: full at observed length %d", e.ObservedLen)
}
