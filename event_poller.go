package disruptor

import "fmt"

// PollState is the outcome of EventPoller.Poll.
type PollState int

const (
	// PollProcessing means events were handed to the handler.
	PollProcessing PollState = iota
	// PollGating means events are published but an upstream sequence
	// has not passed them yet.
	PollGating
	// PollIdle means nothing new was published.
	PollIdle
)

func (s PollState) String() string {
	switch s {
	case PollProcessing:
		return "processing"
	case PollGating:
		return "gating"
	case PollIdle:
		return "idle"
	default:
		return fmt.Sprintf("PollState(%d)", int(s))
	}
}

// PollHandler receives polled events. Returning false stops the
// current poll after this event.
type PollHandler[T any] func(event *T, sequence int64, endOfBatch bool) (more bool, err error)

// EventPoller is a pull-based consumer: the caller drives it by calling
// Poll from its own loop. Its sequence must be added as a gating
// sequence for the ring to respect it.
type EventPoller[T any] struct {
	dataProvider DataProvider[T]
	sequencer    Sequencer
	sequence     *Sequence
	gating       SequenceReader
}

// NewEventPoller returns a poller reading from dataProvider up to the
// minimum of gating, or up to the cursor when gating is empty.
func NewEventPoller[T any](dataProvider DataProvider[T], sequencer Sequencer, gating ...*Sequence) *EventPoller[T] {
	var upstream SequenceReader
	switch len(gating) {
	case 0:
		upstream = cursorReader{sequencer}
	case 1:
		upstream = gating[0]
	default:
		upstream = NewFixedSequenceGroup(gating...)
	}
	return &EventPoller[T]{
		dataProvider: dataProvider,
		sequencer:    sequencer,
		sequence:     NewSequence(),
		gating:       upstream,
	}
}

// Sequence is the progress of this poller.
func (p *EventPoller[T]) Sequence() *Sequence {
	return p.sequence
}

// Poll hands every readable event to handler until it returns false or
// an error. The poller's sequence covers each event the handler
// returned from without error, even if a later one panics.
func (p *EventPoller[T]) Poll(handler PollHandler[T]) (PollState, error) {
	current := p.sequence.Load()
	next := current + 1
	available := p.sequencer.HighestPublishedSequence(next, p.gating.Load())
	if next > available {
		if p.sequencer.Cursor() >= next {
			return PollGating, nil
		}
		return PollIdle, nil
	}

	processed := current
	defer func() { p.sequence.Store(processed) }()
	for more := true; more && next <= available; next++ {
		var err error
		if more, err = handler(p.dataProvider.Get(next), next, next == available); err != nil {
			return PollProcessing, err
		}
		processed = next
	}
	return PollProcessing, nil
}
