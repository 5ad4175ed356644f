package disruptor

import (
	"sync/atomic"
)

// MultiProducerSequencer is a Sequencer safe for any number of
// concurrent publishing goroutines.
//
// Slots are claimed with a CAS on the cursor, so the cursor runs ahead
// of publication. Each slot records the lap it was last published in;
// consumers read up to the first slot whose lap does not match.
type MultiProducerSequencer struct {
	sequencer
	gatingCache *Sequence
	available   []atomic.Int32
	indexMask   int64
	indexShift  uint
}

var _ Sequencer = (*MultiProducerSequencer)(nil)

// NewMultiProducerSequencer returns a sequencer over bufferSize slots.
// bufferSize must be a power of two. A nil waitStrategy means blocking.
func NewMultiProducerSequencer(bufferSize int64, waitStrategy WaitStrategy, opts ...SequencerOption) (*MultiProducerSequencer, error) {
	s := &MultiProducerSequencer{}
	if err := s.init(bufferSize, waitStrategy, opts); err != nil {
		return nil, err
	}
	s.gatingCache = NewSequence()
	s.available = make([]atomic.Int32, bufferSize)
	s.indexMask = bufferSize - 1
	s.indexShift = log2(bufferSize)
	for i := range s.available {
		s.available[i].Store(-1)
	}
	return s, nil
}

func (s *MultiProducerSequencer) HasAvailableCapacity(n int64) bool {
	return s.hasAvailableCapacity(n, s.cursor.Load())
}

func (s *MultiProducerSequencer) hasAvailableCapacity(n, cursorValue int64) bool {
	wrapPoint := cursorValue + n - s.bufferSize
	cachedGating := s.gatingCache.Load()
	if wrapPoint > cachedGating || cachedGating > cursorValue {
		minSeq := MinimumSequence(s.gating.snapshot(), cursorValue)
		s.gatingCache.Store(minSeq)
		if wrapPoint > minSeq {
			return false
		}
	}
	return true
}

func (s *MultiProducerSequencer) Next() int64 {
	return s.NextN(1)
}

func (s *MultiProducerSequencer) NextN(n int64) int64 {
	s.checkBatchSize(n)
	for spins := 1; ; {
		current := s.cursor.Load()
		next := current + n
		wrapPoint := next - s.bufferSize
		cachedGating := s.gatingCache.Load()
		if wrapPoint > cachedGating || cachedGating > current {
			gating := MinimumSequence(s.gating.snapshot(), current)
			if wrapPoint > gating {
				s.yield(spins)
				spins++
				continue
			}
			s.gatingCache.Store(gating)
		} else if s.cursor.CompareAndSwap(current, next) {
			return next
		}
	}
}

func (s *MultiProducerSequencer) TryNext() (int64, error) {
	return s.TryNextN(1)
}

func (s *MultiProducerSequencer) TryNextN(n int64) (int64, error) {
	s.checkBatchSize(n)
	for {
		current := s.cursor.Load()
		next := current + n
		if !s.hasAvailableCapacity(n, current) {
			return InitialSequenceValue, ErrInsufficientCapacity
		}
		if s.cursor.CompareAndSwap(current, next) {
			return next, nil
		}
	}
}

func (s *MultiProducerSequencer) RemainingCapacity() int64 {
	produced := s.cursor.Load()
	consumed := MinimumSequence(s.gating.snapshot(), produced)
	return s.bufferSize - (produced - consumed)
}

func (s *MultiProducerSequencer) Claim(seq int64) {
	s.cursor.Store(seq)
}

func (s *MultiProducerSequencer) Publish(seq int64) {
	s.setAvailable(seq)
	s.waitStrategy.SignalAllWhenBlocking()
}

func (s *MultiProducerSequencer) PublishRange(lo, hi int64) {
	for seq := lo; seq <= hi; seq++ {
		s.setAvailable(seq)
	}
	s.waitStrategy.SignalAllWhenBlocking()
}

func (s *MultiProducerSequencer) setAvailable(seq int64) {
	s.available[seq&s.indexMask].Store(s.lap(seq))
}

func (s *MultiProducerSequencer) lap(seq int64) int32 {
	return int32(seq >> s.indexShift)
}

// IsAvailable reports whether seq is published in its current lap. It
// turns false again once a later lap publishes into the same slot.
func (s *MultiProducerSequencer) IsAvailable(seq int64) bool {
	return s.available[seq&s.indexMask].Load() == s.lap(seq)
}

func (s *MultiProducerSequencer) HighestPublishedSequence(lowerBound, availableSequence int64) int64 {
	for seq := lowerBound; seq <= availableSequence; seq++ {
		if !s.IsAvailable(seq) {
			return seq - 1
		}
	}
	return availableSequence
}

func (s *MultiProducerSequencer) NewBarrier(dependents ...*Sequence) *SequenceBarrier {
	return newSequenceBarrier(s, s.waitStrategy, s.cursor, dependents)
}
