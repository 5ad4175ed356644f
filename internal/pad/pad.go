// Package pad provides values padded on both sides to a full cache line
// so that logically unrelated hot fields never share one.
package pad

import (
	"sync/atomic"

	"golang.org/x/sys/cpu"
)

// AtomicInt64 is an atomic 64-bit int that is padded
// to prevent false sharing.
type AtomicInt64 struct {
	_ cpu.CacheLinePad
	atomic.Int64
	_ cpu.CacheLinePad
}

// Int64Pair holds two single-writer int64s on the same padded line.
// Both values are read and written together by their owner.
type Int64Pair struct {
	_      cpu.CacheLinePad
	First  int64
	Second int64
	_      cpu.CacheLinePad
}

// Bool is an atomic flag padded to prevent false sharing.
type Bool struct {
	_ cpu.CacheLinePad
	atomic.Bool
	_ cpu.CacheLinePad
}
