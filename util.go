package arena

import "runtime"

// spinPause is invoked while spinning through the brief window between an
// entry's bitmap bit being set and its state byte actually being stored
// (the "initialization window"). The window is bounded by one
// peer's store latency, so a cheap yield is enough; Gosched lets other
// goroutines (including the one finishing the publish) run on a single-P
// build instead of burning the whole scheduling quantum.
func spinPause() {
	runtime.Gosched()
}
