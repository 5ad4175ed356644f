package disruptor

import (
	"strconv"

	"github.com/five-vee/disruptor/v2/internal/barrier"
	"github.com/five-vee/disruptor/v2/internal/pad"
)

// InitialSequenceValue is the value of a freshly created Sequence:
// nothing claimed, published or processed yet.
const InitialSequenceValue int64 = -1

// SequenceReader is a read-only view of a sequence. Both Sequence and
// the sequence groups implement it.
type SequenceReader = barrier.Barrier

// Sequence is a padded atomic counter tracking the progress of the ring
// buffer cursor or of a single consumer. Sequences are shared by pointer;
// the identity of a Sequence is its address.
//
// The zero value holds 0. Use NewSequence for the usual -1 start.
type Sequence struct {
	value pad.AtomicInt64
}

// NewSequence returns a sequence initialised to InitialSequenceValue.
func NewSequence() *Sequence {
	return NewSequenceAt(InitialSequenceValue)
}

// NewSequenceAt returns a sequence initialised to v.
func NewSequenceAt(v int64) *Sequence {
	s := &Sequence{}
	s.value.Store(v)
	return s
}

// Load atomically reads the sequence.
func (s *Sequence) Load() int64 {
	return s.value.Load()
}

// Store sets the sequence. Go atomics are sequentially consistent, so
// the store also orders every slot write that precedes it.
func (s *Sequence) Store(v int64) {
	s.value.Store(v)
}

// CompareAndSwap sets the sequence to new if it currently holds old.
func (s *Sequence) CompareAndSwap(old, new int64) bool {
	return s.value.CompareAndSwap(old, new)
}

// Increment atomically adds one and returns the new value.
func (s *Sequence) Increment() int64 {
	return s.value.Add(1)
}

// Add atomically adds delta and returns the new value.
func (s *Sequence) Add(delta int64) int64 {
	return s.value.Add(delta)
}

func (s *Sequence) String() string {
	return strconv.FormatInt(s.Load(), 10)
}

// Cursored is anything exposing a current cursor value.
type Cursored interface {
	Cursor() int64
}

// MinimumSequence returns the smallest of floor and every value
// in seqs. Pass math.MaxInt64 for the plain minimum.
func MinimumSequence(seqs []*Sequence, floor int64) int64 {
	return barrier.Minimum(seqs, floor)
}
