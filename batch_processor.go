package disruptor

import (
	"errors"
	"runtime"
	"runtime/debug"

	"github.com/five-vee/disruptor/v2/internal/runstate"
)

// EventProcessor is a consumer loop run on its own goroutine.
type EventProcessor interface {
	// Run processes events until halted. It returns ErrAlreadyRunning
	// if the loop is active, or the error that stopped it.
	Run() error

	// Halt asks the loop to exit at its next wait.
	Halt()

	// IsRunning reports whether the loop has been entered and not yet
	// left. A processor halted before its first Run is not running.
	IsRunning() bool

	// Sequence is the progress of this processor.
	Sequence() *Sequence
}

// BatchEventProcessor hands every available event to an EventHandler
// and advances its sequence once per batch.
type BatchEventProcessor[T any] struct {
	state            runstate.State
	sequence         *Sequence
	dataProvider     DataProvider[T]
	barrier          *SequenceBarrier
	handler          EventHandler[T]
	hooks            hooks
	exceptionHandler ExceptionHandler[T]
}

var _ EventProcessor = (*BatchEventProcessor[int])(nil)

// NewBatchEventProcessor returns a processor reading events from
// dataProvider as barrier allows. Handler failures stop the processor
// until SetExceptionHandler installs another policy.
func NewBatchEventProcessor[T any](dataProvider DataProvider[T], barrier *SequenceBarrier, handler EventHandler[T]) *BatchEventProcessor[T] {
	p := &BatchEventProcessor[T]{
		sequence:         NewSequence(),
		dataProvider:     dataProvider,
		barrier:          barrier,
		handler:          handler,
		hooks:            bindHooks(handler),
		exceptionHandler: NewFatalExceptionHandler[T](nil),
	}
	if p.hooks.caps.Has(CapSequenceReporting) {
		handler.(SequenceReportingEventHandler).SetSequenceCallback(p.sequence)
	}
	return p
}

// SetExceptionHandler replaces the failure policy.
func (p *BatchEventProcessor[T]) SetExceptionHandler(h ExceptionHandler[T]) error {
	if h == nil {
		return ErrNilExceptionHandler
	}
	p.exceptionHandler = h
	return nil
}

func (p *BatchEventProcessor[T]) Sequence() *Sequence {
	return p.sequence
}

// Capabilities returns the optional hooks the handler implements.
func (p *BatchEventProcessor[T]) Capabilities() Capabilities {
	return p.hooks.caps
}

// Halt stops a running loop at its next wait. Before the first Run it
// makes that Run exit early; after the loop has exited it does nothing.
func (p *BatchEventProcessor[T]) Halt() {
	if p.state.Halt() {
		p.barrier.Alert()
	}
}

func (p *BatchEventProcessor[T]) IsRunning() bool {
	return p.state.Active()
}

func (p *BatchEventProcessor[T]) Run() error {
	if !p.state.Start() {
		if !p.state.TakeHalt() {
			return ErrAlreadyRunning
		}
		// Halted before the loop started.
		p.notifyStart()
		p.notifyShutdown()
		return nil
	}
	defer p.state.Reset()

	p.barrier.ClearAlert()
	p.notifyStart()
	defer p.notifyShutdown()
	if !p.state.IsRunning() {
		return nil
	}
	return p.processEvents()
}

func (p *BatchEventProcessor[T]) processEvents() error {
	next := p.sequence.Load() + 1
	for {
		available, err := p.barrier.WaitFor(next)
		switch {
		case err == nil:
		case errors.Is(err, ErrAlerted):
			if !awaitAlertCleared(p.barrier, &p.state) {
				return nil
			}
			continue
		case errors.Is(err, ErrTimeout):
			if err := p.notifyTimeout(p.sequence.Load()); err != nil {
				return err
			}
			continue
		default:
			return err
		}
		if available < next {
			continue
		}

		failed, err := p.processBatch(next, available)
		if err == nil {
			p.sequence.Store(available)
			next = available + 1
			continue
		}
		if err := p.exceptionHandler.HandleEventException(err, failed, p.dataProvider.Get(failed)); err != nil {
			return err
		}
		p.sequence.Store(failed)
		next = failed + 1
	}
}

// awaitAlertCleared holds a loop woken by an alert that was not a halt
// until the alert is cleared. It returns false once the loop is halted.
func awaitAlertCleared(barrier *SequenceBarrier, state *runstate.State) bool {
	for barrier.IsAlerted() {
		if !state.IsRunning() {
			return false
		}
		runtime.Gosched()
	}
	return state.IsRunning()
}

// processBatch runs the handler over lo through hi. On failure it
// returns the failing sequence, with a panic turned into a PanicError.
func (p *BatchEventProcessor[T]) processBatch(lo, hi int64) (seq int64, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()
	for seq = lo; seq <= hi; seq++ {
		if err = p.handler.OnEvent(p.dataProvider.Get(seq), seq, seq == hi); err != nil {
			return seq, err
		}
	}
	return hi, nil
}

func (p *BatchEventProcessor[T]) notifyTimeout(seq int64) error {
	if err := p.hooks.onTimeout(seq); err != nil {
		return p.exceptionHandler.HandleEventException(err, seq, nil)
	}
	return nil
}

func (p *BatchEventProcessor[T]) notifyStart() {
	if err := p.hooks.onStart(); err != nil {
		p.exceptionHandler.HandleOnStartException(err)
	}
}

func (p *BatchEventProcessor[T]) notifyShutdown() {
	if err := p.hooks.onShutdown(); err != nil {
		p.exceptionHandler.HandleOnShutdownException(err)
	}
}
