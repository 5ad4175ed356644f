package disruptor

import "fmt"

// EventTranslator fills a claimed event.
type EventTranslator[T any] func(event *T, sequence int64)

// EventTranslatorOneArg fills a claimed event from one argument.
type EventTranslatorOneArg[T, A any] func(event *T, sequence int64, arg A)

// EventTranslatorTwoArg fills a claimed event from two arguments.
type EventTranslatorTwoArg[T, A, B any] func(event *T, sequence int64, a A, b B)

// PublishEvent claims the next slot, fills it with translator and
// publishes it. The slot is published even if translator panics.
func (r *RingBuffer[T]) PublishEvent(translator EventTranslator[T]) {
	seq := r.sequencer.Next()
	defer r.sequencer.Publish(seq)
	translator(r.Get(seq), seq)
}

// TryPublishEvent is PublishEvent without waiting. It returns
// ErrInsufficientCapacity when the ring is full.
func (r *RingBuffer[T]) TryPublishEvent(translator EventTranslator[T]) error {
	seq, err := r.sequencer.TryNext()
	if err != nil {
		return err
	}
	defer r.sequencer.Publish(seq)
	translator(r.Get(seq), seq)
	return nil
}

// PublishEvents claims one slot per translator and publishes them as a
// single batch.
func (r *RingBuffer[T]) PublishEvents(translators ...EventTranslator[T]) error {
	n := int64(len(translators))
	if err := r.checkBatch(n); err != nil {
		return err
	}
	hi := r.sequencer.NextN(n)
	r.translateAndPublishBatch(translators, hi-n+1, hi)
	return nil
}

// TryPublishEvents is PublishEvents without waiting.
func (r *RingBuffer[T]) TryPublishEvents(translators ...EventTranslator[T]) error {
	n := int64(len(translators))
	if err := r.checkBatch(n); err != nil {
		return err
	}
	hi, err := r.sequencer.TryNextN(n)
	if err != nil {
		return err
	}
	r.translateAndPublishBatch(translators, hi-n+1, hi)
	return nil
}

func (r *RingBuffer[T]) translateAndPublishBatch(translators []EventTranslator[T], lo, hi int64) {
	defer r.sequencer.PublishRange(lo, hi)
	for i, translator := range translators {
		seq := lo + int64(i)
		translator(r.Get(seq), seq)
	}
}

func (r *RingBuffer[T]) checkBatch(n int64) error {
	if n < 1 || n > r.bufferSize {
		return fmt.Errorf("%w: %d events for a ring of %d", ErrInvalidBatchSize, n, r.bufferSize)
	}
	return nil
}

// PublishEventWith publishes one event filled from arg.
func PublishEventWith[T, A any](r *RingBuffer[T], translator EventTranslatorOneArg[T, A], arg A) {
	seq := r.sequencer.Next()
	defer r.sequencer.Publish(seq)
	translator(r.Get(seq), seq, arg)
}

// TryPublishEventWith is PublishEventWith without waiting.
func TryPublishEventWith[T, A any](r *RingBuffer[T], translator EventTranslatorOneArg[T, A], arg A) error {
	seq, err := r.sequencer.TryNext()
	if err != nil {
		return err
	}
	defer r.sequencer.Publish(seq)
	translator(r.Get(seq), seq, arg)
	return nil
}

// PublishEventsWith publishes one event per argument as a single batch.
func PublishEventsWith[T, A any](r *RingBuffer[T], translator EventTranslatorOneArg[T, A], args ...A) error {
	n := int64(len(args))
	if err := r.checkBatch(n); err != nil {
		return err
	}
	hi := r.sequencer.NextN(n)
	lo := hi - n + 1
	defer r.sequencer.PublishRange(lo, hi)
	for i, arg := range args {
		seq := lo + int64(i)
		translator(r.Get(seq), seq, arg)
	}
	return nil
}

// TryPublishEventsWith is PublishEventsWith without waiting.
func TryPublishEventsWith[T, A any](r *RingBuffer[T], translator EventTranslatorOneArg[T, A], args ...A) error {
	n := int64(len(args))
	if err := r.checkBatch(n); err != nil {
		return err
	}
	hi, err := r.sequencer.TryNextN(n)
	if err != nil {
		return err
	}
	lo := hi - n + 1
	defer r.sequencer.PublishRange(lo, hi)
	for i, arg := range args {
		seq := lo + int64(i)
		translator(r.Get(seq), seq, arg)
	}
	return nil
}

// PublishEventWith2 publishes one event filled from a and b.
func PublishEventWith2[T, A, B any](r *RingBuffer[T], translator EventTranslatorTwoArg[T, A, B], a A, b B) {
	seq := r.sequencer.Next()
	defer r.sequencer.Publish(seq)
	translator(r.Get(seq), seq, a, b)
}
