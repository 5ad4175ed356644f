package disruptor

import (
	"fmt"
	"math/bits"
	"runtime"
	"time"
)

// Sequencer coordinates claiming and publishing slots of a ring buffer
// while tracking the gating sequences of its consumers.
type Sequencer interface {
	Cursored

	// BufferSize returns the number of slots sequenced over.
	BufferSize() int64

	// HasAvailableCapacity reports whether n slots could be claimed now.
	HasAvailableCapacity(n int64) bool

	// RemainingCapacity returns the number of free slots.
	RemainingCapacity() int64

	// Next claims the next slot, waiting while the ring is full.
	Next() int64

	// NextN claims n contiguous slots and returns the highest of them.
	// n must be between 1 and BufferSize.
	NextN(n int64) int64

	// TryNext claims the next slot or fails with ErrInsufficientCapacity.
	TryNext() (int64, error)

	// TryNextN claims n slots or fails with ErrInsufficientCapacity.
	TryNextN(n int64) (int64, error)

	// Claim moves the claim position to seq. Only for initialisation.
	Claim(seq int64)

	// Publish makes seq visible to consumers.
	Publish(seq int64)

	// PublishRange makes lo through hi visible to consumers.
	PublishRange(lo, hi int64)

	// IsAvailable reports whether seq has been published.
	IsAvailable(seq int64) bool

	// HighestPublishedSequence returns the highest sequence in
	// [lowerBound, availableSequence] below which every slot is published.
	HighestPublishedSequence(lowerBound, availableSequence int64) int64

	// AddGatingSequences adds consumer sequences the producers must not
	// overrun. They are moved to the current cursor first.
	AddGatingSequences(seqs ...*Sequence)

	// RemoveGatingSequence removes seq and reports whether it was present.
	RemoveGatingSequence(seq *Sequence) bool

	// MinimumSequence returns the minimum of the gating sequences and the cursor.
	MinimumSequence() int64

	// NewBarrier returns a barrier for consumers waiting on the cursor and
	// on the given upstream sequences.
	NewBarrier(dependents ...*Sequence) *SequenceBarrier
}

// SequencerOption configures a sequencer.
type SequencerOption func(*sequencerOptions)

type sequencerOptions struct {
	yield func(spins int)
}

// WithYield customizes how a producer backs off while the ring is full.
// yield is called once per failed attempt with the attempt count,
// starting at 1. The default spins, yields every 100 attempts and
// sleeps every 10000.
func WithYield(yield func(spins int)) SequencerOption {
	return func(o *sequencerOptions) {
		o.yield = yield
	}
}

func defaultYield(spins int) {
	switch {
	case spins%10_000 == 0:
		time.Sleep(time.Millisecond)
	case spins%100 == 0:
		runtime.Gosched()
	}
}

// sequencer holds the state shared by both producer strategies.
type sequencer struct {
	bufferSize   int64
	waitStrategy WaitStrategy
	cursor       *Sequence
	gating       sequenceSet
	yield        func(spins int)
}

func (s *sequencer) init(bufferSize int64, waitStrategy WaitStrategy, opts []SequencerOption) error {
	if !isPowerOfTwo(bufferSize) {
		return fmt.Errorf("%w: got %d", ErrCapacity, bufferSize)
	}
	if waitStrategy == nil {
		waitStrategy = NewBlockingWaitStrategy()
	}
	o := sequencerOptions{yield: defaultYield}
	for _, opt := range opts {
		opt(&o)
	}
	if o.yield == nil {
		o.yield = defaultYield
	}
	s.bufferSize = bufferSize
	s.waitStrategy = waitStrategy
	s.cursor = NewSequence()
	s.yield = o.yield
	return nil
}

func isPowerOfTwo(n int64) bool {
	return n > 0 && n&(n-1) == 0
}

func log2(n int64) uint {
	return uint(bits.TrailingZeros64(uint64(n)))
}

// checkBatchSize panics unless 1 <= n <= bufferSize.
func (s *sequencer) checkBatchSize(n int64) {
	if n < 1 || n > s.bufferSize {
		panic(fmt.Errorf("%w: n must be in [1, %d], got %d", ErrInvalidBatchSize, s.bufferSize, n))
	}
}

// Cursor returns the current cursor value.
func (s *sequencer) Cursor() int64 {
	return s.cursor.Load()
}

// BufferSize returns the ring size.
func (s *sequencer) BufferSize() int64 {
	return s.bufferSize
}

// AddGatingSequences adds seqs to the gating set.
func (s *sequencer) AddGatingSequences(seqs ...*Sequence) {
	s.gating.add(s, seqs...)
}

// RemoveGatingSequence removes seq from the gating set by identity.
func (s *sequencer) RemoveGatingSequence(seq *Sequence) bool {
	return s.gating.remove(seq)
}

// MinimumSequence returns the slowest gating sequence, or the cursor
// when nothing gates the producers.
func (s *sequencer) MinimumSequence() int64 {
	return MinimumSequence(s.gating.snapshot(), s.cursor.Load())
}

func (s *sequencer) String() string {
	return fmt.Sprintf("bufferSize=%d, waitStrategy=%T, cursor=%v, gating=%v",
		s.bufferSize, s.waitStrategy, s.cursor, s.gating.snapshot())
}

// cursorReader reads a Cursored as a SequenceReader.
type cursorReader struct {
	Cursored
}

func (c cursorReader) Load() int64 {
	return c.Cursor()
}
