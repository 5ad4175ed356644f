// Package runstate tracks the Idle -> Running -> Stopping -> Idle
// lifecycle of a processing loop.
package runstate

import (
	"sync/atomic"

	"golang.org/x/sys/cpu"
)

const (
	Idle int32 = iota
	// Halted is a halt requested before the loop was ever entered.
	Halted
	Running
	// Stopping is a halt requested while the loop is running.
	Stopping
)

// State represents the run state of a processor.
// Its zero-value represents the idle state.
type State struct {
	_   cpu.CacheLinePad
	x   atomic.Int32
	ran atomic.Bool
	_   cpu.CacheLinePad
}

// Load returns the current state.
func (s *State) Load() int32 {
	return s.x.Load()
}

// IsRunning returns true while the loop owns the state and no halt
// has been requested.
func (s *State) IsRunning() bool {
	return s.x.Load() == Running
}

// Active returns true from Start until Reset, halted or not.
func (s *State) Active() bool {
	switch s.x.Load() {
	case Running, Stopping:
		return true
	}
	return false
}

// Start moves Idle to Running. It returns false when
// the state was not Idle.
func (s *State) Start() bool {
	if !s.x.CompareAndSwap(Idle, Running) {
		return false
	}
	s.ran.Store(true)
	return true
}

// Halt requests the loop to stop and reports whether the request took
// effect. A running loop moves to Stopping. A loop that was never
// started records the halt so its first Start fails. Halting a loop
// that has already exited is a no-op.
func (s *State) Halt() bool {
	for {
		switch s.x.Load() {
		case Running:
			if s.x.CompareAndSwap(Running, Stopping) {
				return true
			}
		case Idle:
			if s.ran.Load() {
				return false
			}
			if s.x.CompareAndSwap(Idle, Halted) {
				return true
			}
		default:
			return false
		}
	}
}

// TakeHalt consumes a halt recorded before the first Start.
func (s *State) TakeHalt() bool {
	return s.x.CompareAndSwap(Halted, Idle)
}

// Reset returns the state to Idle once the loop has exited.
func (s *State) Reset() {
	s.x.Store(Idle)
}
