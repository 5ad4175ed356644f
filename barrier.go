package disruptor

import (
	"github.com/five-vee/disruptor/v2/internal/pad"
)

// SequenceBarrier lets a consumer wait until the cursor and every
// upstream stage have passed a sequence. It carries the alert flag used
// to cancel waiting consumers.
type SequenceBarrier struct {
	sequencer    Sequencer
	waitStrategy WaitStrategy
	cursor       *Sequence
	dependent    SequenceReader
	alerted      pad.Bool
}

func newSequenceBarrier(sequencer Sequencer, waitStrategy WaitStrategy, cursor *Sequence, dependents []*Sequence) *SequenceBarrier {
	return &SequenceBarrier{
		sequencer:    sequencer,
		waitStrategy: waitStrategy,
		cursor:       cursor,
		dependent:    dependentOf(cursor, dependents),
	}
}

// WaitFor blocks until seq is readable and returns the highest readable
// sequence, which may be larger than seq. It may also return a value
// below seq when the wait strategy gives up early.
//
// It returns ErrAlerted once Alert has been called, and ErrTimeout when
// the wait strategy has a deadline that passed.
func (b *SequenceBarrier) WaitFor(seq int64) (int64, error) {
	if err := b.CheckAlert(); err != nil {
		return InitialSequenceValue, err
	}
	available, err := b.waitStrategy.WaitFor(seq, b.cursor, b.dependent, b)
	if err != nil {
		return available, err
	}
	if available < seq {
		return available, nil
	}
	return b.sequencer.HighestPublishedSequence(seq, available), nil
}

// Cursor returns the value of the sequence this barrier waits on: the
// producer cursor, or the minimum of the upstream stages.
func (b *SequenceBarrier) Cursor() int64 {
	return b.dependent.Load()
}

// IsAlerted reports whether the barrier has been alerted.
func (b *SequenceBarrier) IsAlerted() bool {
	return b.alerted.Load()
}

// Alert wakes every consumer waiting on this barrier. Waits keep
// failing with ErrAlerted until ClearAlert is called.
func (b *SequenceBarrier) Alert() {
	b.alerted.Store(true)
	b.waitStrategy.SignalAllWhenBlocking()
}

// ClearAlert resets the alert flag.
func (b *SequenceBarrier) ClearAlert() {
	b.alerted.Store(false)
}

// CheckAlert returns ErrAlerted if the barrier is alerted.
func (b *SequenceBarrier) CheckAlert() error {
	if b.alerted.Load() {
		return ErrAlerted
	}
	return nil
}
