package disruptor

import (
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"
)

// Disruptor wires a RingBuffer to a graph of processing stages and
// manages their lifecycle.
//
//	d, _ := disruptor.New(newEvent, 1024)
//	d.HandleEventsWith(journal, replicate).Then(apply)
//	rb, _ := d.Start()
//	... publish through rb ...
//	d.Shutdown(0)
//	err := d.Wait()
//
// The topology must be complete before Start; changing it afterwards panics.
type Disruptor[T any] struct {
	ringBuffer       *RingBuffer[T]
	consumers        *consumerRepository[T]
	exceptionHandler ExceptionHandler[T]
	executor         Executor
	logger           Logger
	started          atomic.Bool

	wg   sync.WaitGroup
	mu   sync.Mutex
	errs []error
}

// New creates a Disruptor over a new ring buffer of bufferSize slots
// filled by factory. bufferSize must be a power of two.
func New[T any](factory EventFactory[T], bufferSize int64, options ...Option) (*Disruptor[T], error) {
	opts := loadOptions(options...)
	var seqOpts []SequencerOption
	if opts.ProducerYield != nil {
		seqOpts = append(seqOpts, WithYield(opts.ProducerYield))
	}
	rb, err := NewRingBuffer(opts.ProducerType, factory, bufferSize, opts.WaitStrategy, seqOpts...)
	if err != nil {
		return nil, err
	}
	return &Disruptor[T]{
		ringBuffer:       rb,
		consumers:        newConsumerRepository[T](),
		exceptionHandler: NewFatalExceptionHandler[T](opts.Logger),
		executor:         opts.Executor,
		logger:           opts.Logger,
	}, nil
}

// HandleEventsWith sets up handlers gated directly on the producers.
// Each handler runs on its own BatchEventProcessor.
func (d *Disruptor[T]) HandleEventsWith(handlers ...EventHandler[T]) *EventHandlerGroup[T] {
	return d.createEventProcessors(nil, handlers)
}

// HandleEventsWithFactories sets up custom processors gated directly on
// the producers.
func (d *Disruptor[T]) HandleEventsWithFactories(factories ...EventProcessorFactory[T]) *EventHandlerGroup[T] {
	return d.createEventProcessorsFromFactories(nil, factories)
}

// HandleEventsWithProcessors adds processors built by the caller. They
// must already be wired to a barrier of this Disruptor's ring buffer.
func (d *Disruptor[T]) HandleEventsWithProcessors(processors ...EventProcessor) *EventHandlerGroup[T] {
	d.checkNotStarted()
	seqs := make([]*Sequence, len(processors))
	for i, p := range processors {
		d.consumers.addProcessor(p)
		seqs[i] = p.Sequence()
	}
	return d.group(seqs)
}

// HandleEventsWithWorkerPool sets up a pool in which each event goes to
// exactly one of handlers.
func (d *Disruptor[T]) HandleEventsWithWorkerPool(handlers ...WorkHandler[T]) *EventHandlerGroup[T] {
	return d.createWorkerPool(nil, handlers)
}

// HandleExceptionsWith sets the failure policy of every stage created
// after this call. A nil h restores FatalExceptionHandler.
func (d *Disruptor[T]) HandleExceptionsWith(h ExceptionHandler[T]) {
	if h == nil {
		h = NewFatalExceptionHandler[T](d.logger)
	}
	d.exceptionHandler = h
}

// HandleExceptionsFor selects one handler whose failure policy to set.
func (d *Disruptor[T]) HandleExceptionsFor(handler EventHandler[T]) *ExceptionHandlerSetting[T] {
	return &ExceptionHandlerSetting[T]{disruptor: d, handler: handler}
}

// After returns a group of already registered handlers to chain new
// stages behind. It panics if a handler is not registered or is not
// comparable.
func (d *Disruptor[T]) After(handlers ...EventHandler[T]) *EventHandlerGroup[T] {
	seqs := make([]*Sequence, len(handlers))
	for i, h := range handlers {
		seqs[i] = d.consumers.sequenceFor(h)
	}
	return d.group(seqs)
}

// AfterProcessors returns a group of processors to chain new stages
// behind, registering any the Disruptor does not know yet.
func (d *Disruptor[T]) AfterProcessors(processors ...EventProcessor) *EventHandlerGroup[T] {
	seqs := make([]*Sequence, len(processors))
	for i, p := range processors {
		if _, ok := d.consumers.bySequence[p.Sequence()]; !ok {
			d.checkNotStarted()
			d.consumers.addProcessor(p)
		}
		seqs[i] = p.Sequence()
	}
	return d.group(seqs)
}

// PublishEvent publishes one event through translator.
func (d *Disruptor[T]) PublishEvent(translator EventTranslator[T]) {
	d.ringBuffer.PublishEvent(translator)
}

// PublishEvents publishes one event per translator as a single batch.
func (d *Disruptor[T]) PublishEvents(translators ...EventTranslator[T]) error {
	return d.ringBuffer.PublishEvents(translators...)
}

// Start gates the ring buffer on the leaf stages and runs every stage
// on the executor. It returns the ring buffer for publishing.
func (d *Disruptor[T]) Start() (*RingBuffer[T], error) {
	if !d.started.CompareAndSwap(false, true) {
		return nil, ErrAlreadyStarted
	}
	d.ringBuffer.AddGatingSequences(d.consumers.lastSequenceInChain(true)...)
	for _, c := range d.consumers.all() {
		if err := c.start(d.launch); err != nil {
			d.logger.Errorf("failed to start stage: %v", err)
			d.Halt()
			return nil, err
		}
	}
	return d.ringBuffer, nil
}

func (d *Disruptor[T]) launch(name string, live *atomic.Int32, task func() error) error {
	live.Add(1)
	d.wg.Add(1)
	err := d.executor.Execute(func() {
		defer d.wg.Done()
		defer live.Add(-1)
		d.logger.Debugf("stage %s started", name)
		if err := runStage(task); err != nil {
			d.logger.Errorf("stage %s stopped: %v", name, err)
			d.mu.Lock()
			d.errs = append(d.errs, fmt.Errorf("%s: %w", name, err))
			d.mu.Unlock()
			return
		}
		d.logger.Debugf("stage %s exited", name)
	})
	if err != nil {
		live.Add(-1)
		d.wg.Done()
	}
	return err
}

func runStage(task func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()
	return task()
}

// Halt stops every stage at its next wait, abandoning any backlog.
func (d *Disruptor[T]) Halt() {
	for _, c := range d.consumers.all() {
		c.halt()
	}
}

// Shutdown waits until every running leaf stage has processed all
// published events, then halts the stages. It does not wait for the
// stage goroutines to exit; use Wait for that.
//
// A timeout <= 0 waits without limit. When the backlog is not drained
// in time Shutdown returns ErrTimeout and leaves the stages running.
func (d *Disruptor[T]) Shutdown(timeout time.Duration) error {
	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}
	for d.hasBacklog() {
		if timeout > 0 && time.Now().After(deadline) {
			d.logger.Warnf("shutdown timed out after %v with cursor at %d", timeout, d.Cursor())
			return ErrTimeout
		}
		time.Sleep(time.Millisecond)
	}
	d.Halt()
	return nil
}

// Wait blocks until every stage started by Start has exited and returns
// the errors that stopped them.
func (d *Disruptor[T]) Wait() error {
	d.wg.Wait()
	d.mu.Lock()
	defer d.mu.Unlock()
	return errors.Join(d.errs...)
}

func (d *Disruptor[T]) hasBacklog() bool {
	cursor := d.ringBuffer.Cursor()
	for _, seq := range d.consumers.lastSequenceInChain(false) {
		if cursor > seq.Load() {
			return true
		}
	}
	return false
}

// RingBuffer returns the ring buffer. Publishing before Start is
// allowed but nothing gates the producers yet.
func (d *Disruptor[T]) RingBuffer() *RingBuffer[T] {
	return d.ringBuffer
}

// Cursor returns the ring buffer cursor.
func (d *Disruptor[T]) Cursor() int64 {
	return d.ringBuffer.Cursor()
}

// BufferSize returns the ring buffer size.
func (d *Disruptor[T]) BufferSize() int64 {
	return d.ringBuffer.BufferSize()
}

// Get returns the slot for sequence.
func (d *Disruptor[T]) Get(sequence int64) *T {
	return d.ringBuffer.Get(sequence)
}

// BarrierFor returns the barrier handler waits on.
func (d *Disruptor[T]) BarrierFor(handler EventHandler[T]) *SequenceBarrier {
	return d.consumers.barrierFor(handler)
}

// SequenceValueFor returns the progress of handler.
func (d *Disruptor[T]) SequenceValueFor(handler EventHandler[T]) int64 {
	return d.consumers.sequenceFor(handler).Load()
}

func (d *Disruptor[T]) createEventProcessors(barrierSequences []*Sequence, handlers []EventHandler[T]) *EventHandlerGroup[T] {
	d.checkNotStarted()
	seqs := make([]*Sequence, len(handlers))
	for i, h := range handlers {
		// One barrier per processor: Run clears the alert flag, which
		// must not cancel the halt of a sibling.
		barrier := d.ringBuffer.NewBarrier(barrierSequences...)
		p := NewBatchEventProcessor[T](d.ringBuffer, barrier, h)
		p.exceptionHandler = d.exceptionHandler
		d.consumers.add(p, h, barrier)
		seqs[i] = p.Sequence()
	}
	if len(seqs) > 0 {
		d.consumers.unmarkEndOfChain(barrierSequences)
	}
	return d.group(seqs)
}

func (d *Disruptor[T]) createEventProcessorsFromFactories(barrierSequences []*Sequence, factories []EventProcessorFactory[T]) *EventHandlerGroup[T] {
	d.checkNotStarted()
	processors := make([]EventProcessor, len(factories))
	for i, f := range factories {
		processors[i] = f.CreateEventProcessor(d.ringBuffer, barrierSequences...)
	}
	g := d.HandleEventsWithProcessors(processors...)
	if len(processors) > 0 {
		d.consumers.unmarkEndOfChain(barrierSequences)
	}
	return g
}

func (d *Disruptor[T]) createWorkerPool(barrierSequences []*Sequence, handlers []WorkHandler[T]) *EventHandlerGroup[T] {
	d.checkNotStarted()
	barrier := d.ringBuffer.NewBarrier(barrierSequences...)
	pool := NewWorkerPool(d.ringBuffer, barrier, d.exceptionHandler, handlers...)
	pool.logger = d.logger
	d.consumers.addWorkerPool(pool, barrier)
	if len(handlers) > 0 {
		d.consumers.unmarkEndOfChain(barrierSequences)
	}
	return d.group(pool.WorkerSequences())
}

func (d *Disruptor[T]) group(seqs []*Sequence) *EventHandlerGroup[T] {
	return &EventHandlerGroup[T]{disruptor: d, consumers: d.consumers, sequences: seqs}
}

func (d *Disruptor[T]) checkNotStarted() {
	if d.started.Load() {
		panic(fmt.Errorf("%w: all event handlers must be added before calling Start", ErrAlreadyStarted))
	}
}
