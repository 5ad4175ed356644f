package disruptor

import "fmt"

// EventHandlerGroup is a set of stages used to chain further stages
// behind them.
type EventHandlerGroup[T any] struct {
	disruptor *Disruptor[T]
	consumers *consumerRepository[T]
	sequences []*Sequence
}

// And combines this group with other.
func (g *EventHandlerGroup[T]) And(other *EventHandlerGroup[T]) *EventHandlerGroup[T] {
	seqs := make([]*Sequence, 0, len(g.sequences)+len(other.sequences))
	seqs = append(append(seqs, g.sequences...), other.sequences...)
	return &EventHandlerGroup[T]{disruptor: g.disruptor, consumers: g.consumers, sequences: seqs}
}

// AndProcessors adds processors to the Disruptor and combines them with this group.
func (g *EventHandlerGroup[T]) AndProcessors(processors ...EventProcessor) *EventHandlerGroup[T] {
	g.disruptor.checkNotStarted()
	seqs := append([]*Sequence(nil), g.sequences...)
	for _, p := range processors {
		g.consumers.addProcessor(p)
		seqs = append(seqs, p.Sequence())
	}
	return &EventHandlerGroup[T]{disruptor: g.disruptor, consumers: g.consumers, sequences: seqs}
}

// Then sets up handlers that process each event after this group.
func (g *EventHandlerGroup[T]) Then(handlers ...EventHandler[T]) *EventHandlerGroup[T] {
	return g.HandleEventsWith(handlers...)
}

// ThenFactories is Then for processors built by factories.
func (g *EventHandlerGroup[T]) ThenFactories(factories ...EventProcessorFactory[T]) *EventHandlerGroup[T] {
	return g.disruptor.createEventProcessorsFromFactories(g.sequences, factories)
}

// ThenHandleEventsWithWorkerPool sets up a worker pool behind this group.
func (g *EventHandlerGroup[T]) ThenHandleEventsWithWorkerPool(handlers ...WorkHandler[T]) *EventHandlerGroup[T] {
	return g.HandleEventsWithWorkerPool(handlers...)
}

// HandleEventsWith sets up handlers gated on this group.
func (g *EventHandlerGroup[T]) HandleEventsWith(handlers ...EventHandler[T]) *EventHandlerGroup[T] {
	return g.disruptor.createEventProcessors(g.sequences, handlers)
}

// HandleEventsWithWorkerPool sets up a worker pool gated on this group.
func (g *EventHandlerGroup[T]) HandleEventsWithWorkerPool(handlers ...WorkHandler[T]) *EventHandlerGroup[T] {
	return g.disruptor.createWorkerPool(g.sequences, handlers)
}

// AsSequenceBarrier returns a barrier waiting on every stage of the group,
// for building custom processors.
func (g *EventHandlerGroup[T]) AsSequenceBarrier() *SequenceBarrier {
	return g.disruptor.ringBuffer.NewBarrier(g.sequences...)
}

// Sequences returns the sequences of the group.
func (g *EventHandlerGroup[T]) Sequences() []*Sequence {
	return append([]*Sequence(nil), g.sequences...)
}

// EventProcessorFactory builds a custom processor for a Disruptor.
// barrierSequences are the stages it must run behind.
type EventProcessorFactory[T any] interface {
	CreateEventProcessor(ringBuffer *RingBuffer[T], barrierSequences ...*Sequence) EventProcessor
}

// EventProcessorFactoryFunc adapts a function to EventProcessorFactory.
type EventProcessorFactoryFunc[T any] func(ringBuffer *RingBuffer[T], barrierSequences ...*Sequence) EventProcessor

func (f EventProcessorFactoryFunc[T]) CreateEventProcessor(ringBuffer *RingBuffer[T], barrierSequences ...*Sequence) EventProcessor {
	return f(ringBuffer, barrierSequences...)
}

// ExceptionHandlerSetting sets the failure policy of one handler.
type ExceptionHandlerSetting[T any] struct {
	disruptor *Disruptor[T]
	handler   EventHandler[T]
}

// With installs h for the handler. It must be called before Start, and
// panics if the handler was not registered through HandleEventsWith.
func (s *ExceptionHandlerSetting[T]) With(h ExceptionHandler[T]) error {
	if s.disruptor.started.Load() {
		return ErrAlreadyStarted
	}
	p, ok := s.disruptor.consumers.processorFor(s.handler).(*BatchEventProcessor[T])
	if !ok {
		return fmt.Errorf("disruptor: %T is not run by a BatchEventProcessor", s.handler)
	}
	return p.SetExceptionHandler(h)
}
