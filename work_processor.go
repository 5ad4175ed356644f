package disruptor

import (
	"errors"
	"math"
	"runtime/debug"

	"github.com/five-vee/disruptor/v2/internal/runstate"
)

// WorkProcessor is one member of a WorkerPool. Members share a work
// sequence and claim events from it one at a time with a CAS, so every
// event is handled by exactly one member.
//
// Members also share a barrier, so Run leaves its alert flag alone; the
// pool clears it once before starting the members.
type WorkProcessor[T any] struct {
	state            runstate.State
	sequence         *Sequence
	workSequence     *Sequence
	dataProvider     DataProvider[T]
	barrier          *SequenceBarrier
	handler          WorkHandler[T]
	hooks            hooks
	exceptionHandler ExceptionHandler[T]
}

var _ EventProcessor = (*WorkProcessor[int])(nil)

// NewWorkProcessor returns a processor claiming events through workSequence.
// A nil exceptionHandler means FatalExceptionHandler.
func NewWorkProcessor[T any](dataProvider DataProvider[T], barrier *SequenceBarrier, handler WorkHandler[T], exceptionHandler ExceptionHandler[T], workSequence *Sequence) *WorkProcessor[T] {
	if exceptionHandler == nil {
		exceptionHandler = NewFatalExceptionHandler[T](nil)
	}
	p := &WorkProcessor[T]{
		sequence:         NewSequence(),
		workSequence:     workSequence,
		dataProvider:     dataProvider,
		barrier:          barrier,
		handler:          handler,
		hooks:            bindHooks(handler),
		exceptionHandler: exceptionHandler,
	}
	if p.hooks.caps.Has(CapEventRelease) {
		handler.(EventReleaseAware).SetEventReleaser(eventReleaser{p.sequence})
	}
	return p
}

// eventReleaser moves a worker out of the gating minimum until it
// claims its next event.
type eventReleaser struct {
	sequence *Sequence
}

func (r eventReleaser) Release() {
	r.sequence.Store(math.MaxInt64)
}

func (p *WorkProcessor[T]) Sequence() *Sequence {
	return p.sequence
}

// Halt stops the member at its next wait. An exited member is not
// halted again, so its siblings see no alert on its behalf.
func (p *WorkProcessor[T]) Halt() {
	if p.state.Halt() {
		p.barrier.Alert()
	}
}

func (p *WorkProcessor[T]) IsRunning() bool {
	return p.state.Active()
}

func (p *WorkProcessor[T]) Run() error {
	if !p.state.Start() {
		if !p.state.TakeHalt() {
			return ErrAlreadyRunning
		}
		p.notifyStart()
		p.notifyShutdown()
		return nil
	}
	defer p.state.Reset()

	p.notifyStart()
	defer p.notifyShutdown()
	if !p.state.IsRunning() {
		return nil
	}
	return p.processEvents()
}

func (p *WorkProcessor[T]) processEvents() error {
	processed := true
	cachedAvailable := int64(math.MinInt64)
	next := p.sequence.Load()
	for {
		if processed {
			processed = false
			for {
				next = p.workSequence.Load() + 1
				p.sequence.Store(next - 1)
				if p.workSequence.CompareAndSwap(next-1, next) {
					break
				}
			}
		}

		if cachedAvailable >= next {
			if err := p.process(next); err != nil {
				if err := p.exceptionHandler.HandleEventException(err, next, p.dataProvider.Get(next)); err != nil {
					return err
				}
			}
			processed = true
			continue
		}

		available, err := p.barrier.WaitFor(next)
		switch {
		case err == nil:
			cachedAvailable = available
		case errors.Is(err, ErrAlerted):
			if !awaitAlertCleared(p.barrier, &p.state) {
				return nil
			}
		case errors.Is(err, ErrTimeout):
			if err := p.hooks.onTimeout(p.sequence.Load()); err != nil {
				if err := p.exceptionHandler.HandleEventException(err, p.sequence.Load(), nil); err != nil {
					return err
				}
			}
		default:
			return err
		}
	}
}

func (p *WorkProcessor[T]) process(seq int64) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()
	return p.handler.OnEvent(p.dataProvider.Get(seq))
}

func (p *WorkProcessor[T]) notifyStart() {
	if err := p.hooks.onStart(); err != nil {
		p.exceptionHandler.HandleOnStartException(err)
	}
}

func (p *WorkProcessor[T]) notifyShutdown() {
	if err := p.hooks.onShutdown(); err != nil {
		p.exceptionHandler.HandleOnShutdownException(err)
	}
}
