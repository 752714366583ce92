package util

import (
	"sync/atomic"
)

// NewRunOnce wraps f into a function calling it at most once over all goroutines
//
// The wrapper returns true only from the call that actually ran f. Unlike sync.Once, later callers do not wait for
// the first call to finish.
func NewRunOnce(f func()) func() bool {
	var invoked atomic.Bool
	return func() bool {
		if invoked.CompareAndSwap(false, true) {
			f()
			return true
		}
		return false
	}
}
