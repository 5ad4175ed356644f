package disruptor

import (
	"fmt"
	"reflect"
	"sync/atomic"
)

// consumerInfo is one registered stage of a Disruptor: a single
// processor or a whole worker pool.
type consumerInfo interface {
	sequences() []*Sequence
	// runningSequences is the subset of sequences whose loops have
	// been launched and have not yet returned.
	runningSequences() []*Sequence
	isEndOfChain() bool
	markAsUsedInBarrier()
	start(launch launcher) error
	halt()
}

// launcher runs task on the Disruptor's executor and tracks it in live.
type launcher func(name string, live *atomic.Int32, task func() error) error

type eventProcessorInfo[T any] struct {
	processor  EventProcessor
	handler    EventHandler[T]
	barr       *SequenceBarrier
	endOfChain bool
	live       atomic.Int32
}

func (i *eventProcessorInfo[T]) sequences() []*Sequence {
	return []*Sequence{i.processor.Sequence()}
}

func (i *eventProcessorInfo[T]) isEndOfChain() bool   { return i.endOfChain }
func (i *eventProcessorInfo[T]) markAsUsedInBarrier() { i.endOfChain = false }
func (i *eventProcessorInfo[T]) halt()                { i.processor.Halt() }

// A processor counts as running from launch until its Run returns, so
// one whose goroutine has not been scheduled yet still counts.
func (i *eventProcessorInfo[T]) runningSequences() []*Sequence {
	if i.live.Load() == 0 {
		return nil
	}
	return i.sequences()
}

func (i *eventProcessorInfo[T]) start(launch launcher) error {
	name := fmt.Sprintf("%T", i.processor)
	if i.handler != nil {
		name = fmt.Sprintf("%T", i.handler)
	}
	return launch(name, &i.live, i.processor.Run)
}

type workerPoolInfo[T any] struct {
	pool       *WorkerPool[T]
	barr       *SequenceBarrier
	endOfChain bool
	live       []atomic.Int32
}

func (i *workerPoolInfo[T]) sequences() []*Sequence { return i.pool.WorkerSequences() }
func (i *workerPoolInfo[T]) isEndOfChain() bool     { return i.endOfChain }
func (i *workerPoolInfo[T]) markAsUsedInBarrier()   { i.endOfChain = false }
func (i *workerPoolInfo[T]) halt()                  { i.pool.Halt() }

// runningSequences leaves out workers that have exited, so a member
// stopped by its exception policy does not hold up a drain. The work
// sequence counts while any member is still running.
func (i *workerPoolInfo[T]) runningSequences() []*Sequence {
	var seqs []*Sequence
	for n, p := range i.pool.processors {
		if i.live[n].Load() > 0 {
			seqs = append(seqs, p.Sequence())
		}
	}
	if len(seqs) > 0 {
		seqs = append(seqs, i.pool.workSequence)
	}
	return seqs
}

func (i *workerPoolInfo[T]) start(launch launcher) error {
	procs, err := i.pool.start()
	if err != nil {
		return err
	}
	for n, p := range procs {
		name := fmt.Sprintf("%T[%d]", p.handler, n)
		if err := launch(name, &i.live[n], p.Run); err != nil {
			return err
		}
	}
	return nil
}

// consumerRepository indexes the stages of a Disruptor by handler and
// by sequence. It is only mutated before start.
type consumerRepository[T any] struct {
	byHandler  map[EventHandler[T]]*eventProcessorInfo[T]
	bySequence map[*Sequence]consumerInfo
	consumers  []consumerInfo
}

func newConsumerRepository[T any]() *consumerRepository[T] {
	return &consumerRepository[T]{
		byHandler:  make(map[EventHandler[T]]*eventProcessorInfo[T]),
		bySequence: make(map[*Sequence]consumerInfo),
	}
}

// isComparable reports whether h can be used as a map key without panicking.
func isComparable(h any) bool {
	t := reflect.TypeOf(h)
	return t != nil && t.Comparable()
}

func (r *consumerRepository[T]) add(processor EventProcessor, handler EventHandler[T], barrier *SequenceBarrier) {
	info := &eventProcessorInfo[T]{processor: processor, handler: handler, barr: barrier, endOfChain: true}
	if handler != nil && isComparable(handler) {
		r.byHandler[handler] = info
	}
	r.bySequence[processor.Sequence()] = info
	r.consumers = append(r.consumers, info)
}

func (r *consumerRepository[T]) addProcessor(processor EventProcessor) {
	r.add(processor, nil, nil)
}

func (r *consumerRepository[T]) addWorkerPool(pool *WorkerPool[T], barrier *SequenceBarrier) {
	info := &workerPoolInfo[T]{
		pool:       pool,
		barr:       barrier,
		endOfChain: true,
		live:       make([]atomic.Int32, len(pool.processors)),
	}
	for _, seq := range pool.WorkerSequences() {
		r.bySequence[seq] = info
	}
	r.consumers = append(r.consumers, info)
}

// lastSequenceInChain returns the sequences of the leaf stages. Unless
// includeStopped is set, loops that are not running are skipped.
func (r *consumerRepository[T]) lastSequenceInChain(includeStopped bool) []*Sequence {
	var seqs []*Sequence
	for _, c := range r.consumers {
		switch {
		case !c.isEndOfChain():
		case includeStopped:
			seqs = append(seqs, c.sequences()...)
		default:
			seqs = append(seqs, c.runningSequences()...)
		}
	}
	return seqs
}

func (r *consumerRepository[T]) infoFor(handler EventHandler[T]) *eventProcessorInfo[T] {
	if !isComparable(handler) {
		panic(fmt.Errorf("%w: %T is not comparable", ErrHandlerNotRegistered, handler))
	}
	info, ok := r.byHandler[handler]
	if !ok {
		panic(fmt.Errorf("%w: %T", ErrHandlerNotRegistered, handler))
	}
	return info
}

func (r *consumerRepository[T]) processorFor(handler EventHandler[T]) EventProcessor {
	return r.infoFor(handler).processor
}

func (r *consumerRepository[T]) sequenceFor(handler EventHandler[T]) *Sequence {
	return r.processorFor(handler).Sequence()
}

func (r *consumerRepository[T]) barrierFor(handler EventHandler[T]) *SequenceBarrier {
	return r.infoFor(handler).barr
}

func (r *consumerRepository[T]) unmarkEndOfChain(barrierSequences []*Sequence) {
	for _, seq := range barrierSequences {
		if c, ok := r.bySequence[seq]; ok {
			c.markAsUsedInBarrier()
		}
	}
}

func (r *consumerRepository[T]) all() []consumerInfo {
	return r.consumers
}
