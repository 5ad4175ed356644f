package disruptor

import (
	"github.com/five-vee/disruptor/v2/internal/pad"
)

// SingleProducerSequencer is a Sequencer for exactly one publishing
// goroutine. It performs no synchronisation on the claim path; calling
// it from several goroutines corrupts the ring.
//
// The cursor is updated when Publish is called, not when a slot is claimed.
type SingleProducerSequencer struct {
	sequencer
	// First is the last claimed sequence, Second the cached gating minimum.
	cache pad.Int64Pair
}

var _ Sequencer = (*SingleProducerSequencer)(nil)

// NewSingleProducerSequencer returns a sequencer over bufferSize slots.
// bufferSize must be a power of two. A nil waitStrategy means blocking.
func NewSingleProducerSequencer(bufferSize int64, waitStrategy WaitStrategy, opts ...SequencerOption) (*SingleProducerSequencer, error) {
	s := &SingleProducerSequencer{}
	if err := s.init(bufferSize, waitStrategy, opts); err != nil {
		return nil, err
	}
	s.cache.First = InitialSequenceValue
	s.cache.Second = InitialSequenceValue
	return s, nil
}

func (s *SingleProducerSequencer) HasAvailableCapacity(n int64) bool {
	next := s.cache.First
	wrapPoint := next + n - s.bufferSize
	cachedGating := s.cache.Second
	if wrapPoint > cachedGating || cachedGating > next {
		minSeq := MinimumSequence(s.gating.snapshot(), next)
		s.cache.Second = minSeq
		if wrapPoint > minSeq {
			return false
		}
	}
	return true
}

func (s *SingleProducerSequencer) Next() int64 {
	return s.NextN(1)
}

func (s *SingleProducerSequencer) NextN(n int64) int64 {
	s.checkBatchSize(n)
	next := s.cache.First
	nextSeq := next + n
	wrapPoint := nextSeq - s.bufferSize
	cachedGating := s.cache.Second
	if wrapPoint > cachedGating || cachedGating > next {
		minSeq := MinimumSequence(s.gating.snapshot(), next)
		for spins := 1; wrapPoint > minSeq; spins++ {
			s.yield(spins)
			minSeq = MinimumSequence(s.gating.snapshot(), next)
		}
		s.cache.Second = minSeq
	}
	s.cache.First = nextSeq
	return nextSeq
}

func (s *SingleProducerSequencer) TryNext() (int64, error) {
	return s.TryNextN(1)
}

func (s *SingleProducerSequencer) TryNextN(n int64) (int64, error) {
	s.checkBatchSize(n)
	if !s.HasAvailableCapacity(n) {
		return InitialSequenceValue, ErrInsufficientCapacity
	}
	s.cache.First += n
	return s.cache.First, nil
}

func (s *SingleProducerSequencer) RemainingCapacity() int64 {
	next := s.cache.First
	consumed := MinimumSequence(s.gating.snapshot(), next)
	return s.bufferSize - (next - consumed)
}

func (s *SingleProducerSequencer) Claim(seq int64) {
	s.cache.First = seq
}

func (s *SingleProducerSequencer) Publish(seq int64) {
	s.cursor.Store(seq)
	s.waitStrategy.SignalAllWhenBlocking()
}

func (s *SingleProducerSequencer) PublishRange(_, hi int64) {
	s.Publish(hi)
}

// IsAvailable reports whether seq has been published. Once true it
// stays true.
func (s *SingleProducerSequencer) IsAvailable(seq int64) bool {
	return seq <= s.cursor.Load()
}

// HighestPublishedSequence returns availableSequence: a single producer
// publishes in order, so there are no gaps.
func (s *SingleProducerSequencer) HighestPublishedSequence(_, availableSequence int64) int64 {
	return availableSequence
}

func (s *SingleProducerSequencer) NewBarrier(dependents ...*Sequence) *SequenceBarrier {
	return newSequenceBarrier(s, s.waitStrategy, s.cursor, dependents)
}
