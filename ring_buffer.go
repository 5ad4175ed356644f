package disruptor

import (
	"fmt"

	"golang.org/x/sys/cpu"
)

// EventFactory fills a slot of the ring buffer when it is created.
type EventFactory[T any] func() T

// ProducerType selects how producers are coordinated.
type ProducerType int

const (
	// MultiProducer allows publishing from any number of goroutines.
	MultiProducer ProducerType = iota
	// SingleProducer requires all publishing from one goroutine.
	SingleProducer
)

func (p ProducerType) String() string {
	switch p {
	case MultiProducer:
		return "multi"
	case SingleProducer:
		return "single"
	default:
		return fmt.Sprintf("ProducerType(%d)", int(p))
	}
}

// DataProvider gives access to the slot holding a sequence.
type DataProvider[T any] interface {
	Get(sequence int64) *T
}

// RingBuffer is a fixed array of preallocated events sequenced by a
// Sequencer. Producers claim a slot, mutate it in place through Get and
// publish it:
//
//	seq := rb.Next()
//	ev := rb.Get(seq)
//	ev.Value = 42
//	rb.Publish(seq)
//
// Publish must follow every successful claim, even when filling the
// event fails, or consumers stall on that slot forever. The translator
// methods (PublishEvent and friends) guarantee this.
type RingBuffer[T any] struct {
	_          cpu.CacheLinePad
	mask       int64
	entries    []T
	bufferSize int64
	sequencer  Sequencer
	_          cpu.CacheLinePad
}

// NewRingBuffer creates a ring buffer of bufferSize slots filled by
// factory, coordinated for producerType. A nil factory leaves the zero
// value in every slot.
func NewRingBuffer[T any](producerType ProducerType, factory EventFactory[T], bufferSize int64, waitStrategy WaitStrategy, opts ...SequencerOption) (*RingBuffer[T], error) {
	switch producerType {
	case SingleProducer:
		return NewSingleProducerRingBuffer(factory, bufferSize, waitStrategy, opts...)
	case MultiProducer:
		return NewMultiProducerRingBuffer(factory, bufferSize, waitStrategy, opts...)
	default:
		return nil, fmt.Errorf("disruptor: unknown producer type %v", producerType)
	}
}

// NewSingleProducerRingBuffer creates a ring buffer for one publishing goroutine.
func NewSingleProducerRingBuffer[T any](factory EventFactory[T], bufferSize int64, waitStrategy WaitStrategy, opts ...SequencerOption) (*RingBuffer[T], error) {
	s, err := NewSingleProducerSequencer(bufferSize, waitStrategy, opts...)
	if err != nil {
		return nil, err
	}
	return NewRingBufferWithSequencer(factory, s), nil
}

// NewMultiProducerRingBuffer creates a ring buffer for concurrent publishers.
func NewMultiProducerRingBuffer[T any](factory EventFactory[T], bufferSize int64, waitStrategy WaitStrategy, opts ...SequencerOption) (*RingBuffer[T], error) {
	s, err := NewMultiProducerSequencer(bufferSize, waitStrategy, opts...)
	if err != nil {
		return nil, err
	}
	return NewRingBufferWithSequencer(factory, s), nil
}

// NewRingBufferWithSequencer creates a ring buffer over an existing sequencer.
func NewRingBufferWithSequencer[T any](factory EventFactory[T], sequencer Sequencer) *RingBuffer[T] {
	size := sequencer.BufferSize()
	r := &RingBuffer[T]{
		mask:       size - 1,
		entries:    make([]T, size),
		bufferSize: size,
		sequencer:  sequencer,
	}
	if factory != nil {
		for i := range r.entries {
			r.entries[i] = factory()
		}
	}
	return r
}

// Get returns the slot for sequence. The pointer stays valid for the
// life of the ring; the slot is reused every BufferSize sequences.
func (r *RingBuffer[T]) Get(sequence int64) *T {
	return &r.entries[sequence&r.mask]
}

// Next claims the next slot, waiting while the ring is full.
func (r *RingBuffer[T]) Next() int64 {
	return r.sequencer.Next()
}

// NextN claims n slots and returns the highest. The batch starts at
// the returned value minus n plus one. It panics unless 1 <= n <= BufferSize.
func (r *RingBuffer[T]) NextN(n int64) int64 {
	return r.sequencer.NextN(n)
}

// TryNext claims the next slot or returns ErrInsufficientCapacity.
func (r *RingBuffer[T]) TryNext() (int64, error) {
	return r.sequencer.TryNext()
}

// TryNextN claims n slots or returns ErrInsufficientCapacity.
func (r *RingBuffer[T]) TryNextN(n int64) (int64, error) {
	return r.sequencer.TryNextN(n)
}

// Publish makes sequence visible to consumers.
func (r *RingBuffer[T]) Publish(sequence int64) {
	r.sequencer.Publish(sequence)
}

// PublishRange makes lo through hi visible to consumers.
func (r *RingBuffer[T]) PublishRange(lo, hi int64) {
	r.sequencer.PublishRange(lo, hi)
}

// IsPublished reports whether sequence has been published.
func (r *RingBuffer[T]) IsPublished(sequence int64) bool {
	return r.sequencer.IsAvailable(sequence)
}

// ResetTo moves the cursor to sequence and publishes it. It must not be
// called while producers or consumers are active.
func (r *RingBuffer[T]) ResetTo(sequence int64) {
	r.sequencer.Claim(sequence)
	r.sequencer.Publish(sequence)
}

// ClaimAndGetPreallocated claims sequence and returns its slot. Only for
// initialising the ring before use.
func (r *RingBuffer[T]) ClaimAndGetPreallocated(sequence int64) *T {
	r.sequencer.Claim(sequence)
	return r.Get(sequence)
}

// AddGatingSequences adds consumer sequences producers must not overrun.
func (r *RingBuffer[T]) AddGatingSequences(seqs ...*Sequence) {
	r.sequencer.AddGatingSequences(seqs...)
}

// RemoveGatingSequence removes seq and reports whether it was gating.
func (r *RingBuffer[T]) RemoveGatingSequence(seq *Sequence) bool {
	return r.sequencer.RemoveGatingSequence(seq)
}

// MinimumGatingSequence returns the position of the slowest consumer,
// or the cursor when nothing gates the ring.
func (r *RingBuffer[T]) MinimumGatingSequence() int64 {
	return r.sequencer.MinimumSequence()
}

// NewBarrier returns a barrier waiting on the cursor and dependents.
func (r *RingBuffer[T]) NewBarrier(dependents ...*Sequence) *SequenceBarrier {
	return r.sequencer.NewBarrier(dependents...)
}

// NewPoller returns a poller gated on the given sequences, or on the
// cursor when there are none.
func (r *RingBuffer[T]) NewPoller(gating ...*Sequence) *EventPoller[T] {
	return NewEventPoller[T](r, r.sequencer, gating...)
}

// Cursor returns the current cursor value.
func (r *RingBuffer[T]) Cursor() int64 {
	return r.sequencer.Cursor()
}

// BufferSize returns the number of slots.
func (r *RingBuffer[T]) BufferSize() int64 {
	return r.bufferSize
}

// HasAvailableCapacity reports whether n slots could be claimed now.
func (r *RingBuffer[T]) HasAvailableCapacity(n int64) bool {
	return r.sequencer.HasAvailableCapacity(n)
}

// RemainingCapacity returns the number of free slots.
func (r *RingBuffer[T]) RemainingCapacity() int64 {
	return r.sequencer.RemainingCapacity()
}

// Sequencer returns the sequencer coordinating the ring.
func (r *RingBuffer[T]) Sequencer() Sequencer {
	return r.sequencer
}

func (r *RingBuffer[T]) String() string {
	return fmt.Sprintf("RingBuffer{bufferSize=%d, sequencer={%v}}", r.bufferSize, r.sequencer)
}

// slices returns lo through hi as at most two sub-slices of the entries.
func (r *RingBuffer[T]) slices(lo, hi int64) (first, second []T) {
	start, end := lo&r.mask, hi&r.mask
	if start <= end {
		return r.entries[start : end+1], nil
	}
	return r.entries[start:], r.entries[:end+1]
}
