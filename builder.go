package disruptor

import (
	"fmt"
)

// Builder builds a Disruptor whose stages form a chain of reader groups.
// For fan-in, fan-out or worker pools use the Disruptor methods directly.
type Builder[T any] struct {
	capacity     int64
	factory      EventFactory[T]
	readerGroups [][]ReaderFunc
	options      []Option
}

// NewBuilder returns a builder of a disruptor.
func NewBuilder[T any](capacity int64) *Builder[T] {
	return &Builder[T]{capacity: capacity}
}

// WithReaderGroup represents a group of readers.
// If this is the first time WithReaderGroup is called,
// the reader group is gated on the producers.
// Otherwise, the reader group is a descendant of the
// reader group of the previously passed in WithReaderGroup().
func (b *Builder[T]) WithReaderGroup(group ...ReaderFunc) *Builder[T] {
	b.readerGroups = append(b.readerGroups, group)
	return b
}

// WithEventFactory sets how slots are preallocated.
// By default every slot holds the zero value of T.
func (b *Builder[T]) WithEventFactory(factory EventFactory[T]) *Builder[T] {
	b.factory = factory
	return b
}

// WithWriterYield overrides how producers yield when the buffer is
// full. yield receives the number of times yield has been called so far
// in the current claim.
func (b *Builder[T]) WithWriterYield(yield func(spins int)) *Builder[T] {
	b.options = append(b.options, WithProducerYield(yield))
	return b
}

// WithOptions appends Disruptor options.
func (b *Builder[T]) WithOptions(options ...Option) *Builder[T] {
	b.options = append(b.options, options...)
	return b
}

// Build builds the disruptor. It is not started.
func (b *Builder[T]) Build() (*Disruptor[T], error) {
	if err := b.validate(); err != nil {
		return nil, err
	}
	d, err := New(b.factory, b.capacity, b.options...)
	if err != nil {
		return nil, err
	}
	var upstream *EventHandlerGroup[T]
	for _, readerGroup := range b.readerGroups {
		handlers := make([]EventHandler[T], len(readerGroup))
		for i, f := range readerGroup {
			if handlers[i], err = handlerOf(f, d.ringBuffer); err != nil {
				return nil, err
			}
		}
		if upstream == nil {
			upstream = d.HandleEventsWith(handlers...)
		} else {
			upstream = upstream.Then(handlers...)
		}
	}
	return d, nil
}

func (b *Builder[T]) validate() error {
	if !isPowerOfTwo(b.capacity) {
		return ErrCapacity
	}
	if len(b.readerGroups) == 0 {
		return ErrMissingReaderGroup
	}
	for _, readerGroup := range b.readerGroups {
		if len(readerGroup) == 0 {
			return ErrEmptyReaderGroup
		}
	}
	return nil
}

func handlerOf[T any](f ReaderFunc, rb *RingBuffer[T]) (EventHandler[T], error) {
	switch x := f.(type) {
	case singleReaderFunc[T]:
		return EventHandlerFunc[T](func(event *T, _ int64, _ bool) error {
			x.F(event)
			return nil
		}), nil
	case batchReaderFunc[T]:
		return &batchReader[T]{ringBuffer: rb, f: x.F, start: -1}, nil
	default:
		return nil, fmt.Errorf("disruptor: %T does not read %T events", f, *new(T))
	}
}

// ReaderFunc represents a reader function.
type ReaderFunc interface {
	implementReaderFunc()
}

type singleReaderFunc[T any] struct {
	F func(*T)
}

func (singleReaderFunc[T]) implementReaderFunc() {}

// SingleReaderFunc returns a ReaderFunc that reads one at a time.
func SingleReaderFunc[T any](f func(*T)) ReaderFunc {
	return singleReaderFunc[T]{f}
}

type batchReaderFunc[T any] struct {
	F func(first, second []T)
}

func (batchReaderFunc[T]) implementReaderFunc() {}

// BatchReaderFunc returns a ReaderFunc that reads in batches.
// f receives the batch as sub-slices of the internal ring buffer:
//
// 1. First sub-slice is up to the end of the ring buffer,
// 2. Second sub-slice is from the beginning of the ring buffer.
//
// The second sub-slice is empty unless the batch wraps around.
//
// Use BatchReaderFunc over SingleReaderFunc only if the complexity is needed
// and if the overhead of sub-slicing is much smaller than the time saved by
// batching, e.g. when working with SIMD code to read large numbers of items
// from the disruptor.
func BatchReaderFunc[T any](f func(first, second []T)) ReaderFunc {
	return batchReaderFunc[T]{f}
}

// batchReader collects a contiguous batch and hands it over on its last event.
type batchReader[T any] struct {
	ringBuffer *RingBuffer[T]
	f          func(first, second []T)
	start      int64
}

func (r *batchReader[T]) OnEvent(_ *T, sequence int64, endOfBatch bool) error {
	if r.start < 0 {
		r.start = sequence
	}
	if !endOfBatch {
		return nil
	}
	first, second := r.ringBuffer.slices(r.start, sequence)
	r.start = -1
	r.f(first, second)
	return nil
}
