// Package barrier holds read-only views over sequences and
// the minimum computation shared by gating and dependency groups.
package barrier

// Barrier is a read-only sequence.
type Barrier interface {
	Load() int64
}

// Minimum returns the smallest of floor and every value loaded from bs.
func Minimum[B Barrier](bs []B, floor int64) int64 {
	minimum := floor
	for _, b := range bs {
		minimum = min(minimum, b.Load())
	}
	return minimum
}
