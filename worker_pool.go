package disruptor

import (
	"math"
	"runtime"
	"sync/atomic"
)

const (
	standalonePoolBufferSize = 1024
)

// WorkerPool is a group of WorkProcessors sharing one work sequence.
// Each published event is handled by exactly one of the pool's handlers.
type WorkerPool[T any] struct {
	started      atomic.Bool
	workSequence *Sequence
	ringBuffer   *RingBuffer[T]
	processors   []*WorkProcessor[T]
	logger       Logger
}

// NewWorkerPool returns a pool consuming ringBuffer behind barrier with
// one WorkProcessor per handler. The caller adds WorkerSequences to the
// ring's gating sequences. A nil exceptionHandler means FatalExceptionHandler.
func NewWorkerPool[T any](ringBuffer *RingBuffer[T], barrier *SequenceBarrier, exceptionHandler ExceptionHandler[T], handlers ...WorkHandler[T]) *WorkerPool[T] {
	w := &WorkerPool[T]{
		workSequence: NewSequence(),
		ringBuffer:   ringBuffer,
		processors:   make([]*WorkProcessor[T], len(handlers)),
		logger:       loggerOrDefault(nil),
	}
	for i, h := range handlers {
		w.processors[i] = NewWorkProcessor[T](ringBuffer, barrier, h, exceptionHandler, w.workSequence)
	}
	return w
}

// NewStandaloneWorkerPool creates its own multi-producer ring buffer of
// 1024 slots with a blocking wait strategy, gated on the pool.
func NewStandaloneWorkerPool[T any](factory EventFactory[T], exceptionHandler ExceptionHandler[T], handlers ...WorkHandler[T]) (*WorkerPool[T], error) {
	rb, err := NewMultiProducerRingBuffer(factory, standalonePoolBufferSize, NewBlockingWaitStrategy())
	if err != nil {
		return nil, err
	}
	w := NewWorkerPool(rb, rb.NewBarrier(), exceptionHandler, handlers...)
	rb.AddGatingSequences(w.WorkerSequences()...)
	return w, nil
}

// WorkerSequences returns the sequence of every worker plus the shared
// work sequence.
func (w *WorkerPool[T]) WorkerSequences() []*Sequence {
	seqs := make([]*Sequence, 0, len(w.processors)+1)
	for _, p := range w.processors {
		seqs = append(seqs, p.Sequence())
	}
	return append(seqs, w.workSequence)
}

// RingBuffer returns the ring the pool consumes.
func (w *WorkerPool[T]) RingBuffer() *RingBuffer[T] {
	return w.ringBuffer
}

// Start runs every worker on executor and returns the ring buffer.
// Worker failures are logged.
func (w *WorkerPool[T]) Start(executor Executor) (*RingBuffer[T], error) {
	procs, err := w.start()
	if err != nil {
		return nil, err
	}
	for _, p := range procs {
		p := p
		if err := executor.Execute(func() {
			if err := p.Run(); err != nil {
				w.logger.Errorf("worker pool processor stopped: %v", err)
			}
		}); err != nil {
			w.Halt()
			return nil, err
		}
	}
	return w.ringBuffer, nil
}

// start moves every worker to the cursor and hands back the processors
// for the caller to run.
func (w *WorkerPool[T]) start() ([]*WorkProcessor[T], error) {
	if !w.started.CompareAndSwap(false, true) {
		return nil, ErrAlreadyStarted
	}
	if len(w.processors) > 0 {
		w.processors[0].barrier.ClearAlert()
	}
	cursor := w.ringBuffer.Cursor()
	w.workSequence.Store(cursor)
	for _, p := range w.processors {
		p.Sequence().Store(cursor)
	}
	return w.processors, nil
}

// DrainAndHalt waits until every published event has been claimed and
// processed, then halts the workers.
func (w *WorkerPool[T]) DrainAndHalt() {
	seqs := w.WorkerSequences()
	for w.ringBuffer.Cursor() > MinimumSequence(seqs, math.MaxInt64) {
		runtime.Gosched()
	}
	w.Halt()
}

// Halt stops the workers once they finish their current event.
func (w *WorkerPool[T]) Halt() {
	for _, p := range w.processors {
		p.Halt()
	}
	w.started.Store(false)
}

// IsRunning reports whether the pool has been started and not halted.
func (w *WorkerPool[T]) IsRunning() bool {
	return w.started.Load()
}
