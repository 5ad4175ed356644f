// Package disruptor provides an implementation of the LMAX Disruptor.
//
// If for some reason you have Go code that needs to process messages at
// sub-microsecond latency, where shaving every nanosecond counts, then
// consider the disruptor pattern.
//
// A Disruptor moves events between goroutines through a preallocated
// RingBuffer. Producers claim slots from a Sequencer, fill them in place
// and publish them. Consumers run as EventProcessors, each tracking its
// progress in a padded Sequence and waiting on a SequenceBarrier with a
// pluggable WaitStrategy. Stages are chained into a graph with the
// Disruptor methods (HandleEventsWith, Then, After,
// HandleEventsWithWorkerPool); the ring never overwrites a slot that a
// leaf stage has not processed yet.
//
// Every successful claim (Next, NextN, TryNext, TryNextN) must be
// followed by a Publish of the same sequences, or consumers stall on
// the unpublished slot forever. The translator helpers such as
// PublishEvent do this even when the translator panics.
//
// Handlers report failures by returning an error; panics are recovered
// and wrapped in a PanicError. What happens next is decided by the
// stage's ExceptionHandler.
package disruptor
