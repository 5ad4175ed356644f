package disruptor

import (
	"errors"
	"fmt"
)

var (
	// ErrCapacity is the error corresponding to wrong capacity.
	ErrCapacity = errors.New("disruptor: capacity must be a positive power of two")

	// ErrMissingReaderGroup is the error corresponding to missing
	// reader group(s).
	ErrMissingReaderGroup = errors.New("disruptor: missing reader group(s)")

	// ErrEmptyReaderGroup is the error corresponding to an empty
	// reader group.
	ErrEmptyReaderGroup = errors.New("disruptor: reader group is empty")

	// ErrInsufficientCapacity is returned by non-blocking claims when
	// the ring buffer has no room for the requested slots.
	ErrInsufficientCapacity = errors.New("disruptor: insufficient capacity")

	// ErrAlerted is returned by a SequenceBarrier that has been alerted.
	// Processing loops treat it as a request to check their run state.
	ErrAlerted = errors.New("disruptor: barrier alerted")

	// ErrTimeout is returned by wait strategies with a deadline and by
	// Disruptor.Shutdown when the backlog was not drained in time.
	ErrTimeout = errors.New("disruptor: timed out")

	// ErrAlreadyRunning is returned when Run is called on a processor
	// whose loop is already active.
	ErrAlreadyRunning = errors.New("disruptor: processor is already running")

	// ErrAlreadyStarted is returned when a Disruptor or WorkerPool is
	// started twice, and wrapped in the panic raised when the topology
	// is modified after start.
	ErrAlreadyStarted = errors.New("disruptor: already started")

	// ErrInvalidBatchSize is returned when a batch publication asks for
	// zero slots or more slots than the ring buffer holds.
	ErrInvalidBatchSize = errors.New("disruptor: invalid batch size")

	// ErrHandlerNotRegistered is wrapped in the panic raised when a
	// handler is referenced before being registered with the Disruptor.
	ErrHandlerNotRegistered = errors.New("disruptor: handler is not processing events")

	// ErrNilExceptionHandler is returned when a nil ExceptionHandler is set.
	ErrNilExceptionHandler = errors.New("disruptor: nil exception handler")
)

// PanicError carries a value recovered from a panicking handler.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("disruptor: handler panicked: %v", e.Value)
}

// Unwrap exposes the panic value when it was itself an error.
func (e *PanicError) Unwrap() error {
	err, _ := e.Value.(error)
	return err
}
