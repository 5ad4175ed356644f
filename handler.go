package disruptor

import "strings"

// EventHandler processes every event published to the ring buffer.
// endOfBatch is true on the last event of each contiguous batch.
//
// Returning an error hands it to the stage's ExceptionHandler.
type EventHandler[T any] interface {
	OnEvent(event *T, sequence int64, endOfBatch bool) error
}

// EventHandlerFunc adapts a function to EventHandler. Function values
// are not comparable, so an EventHandlerFunc cannot be referenced in
// After or HandleExceptionsFor.
type EventHandlerFunc[T any] func(event *T, sequence int64, endOfBatch bool) error

func (f EventHandlerFunc[T]) OnEvent(event *T, sequence int64, endOfBatch bool) error {
	return f(event, sequence, endOfBatch)
}

// WorkHandler processes events from a WorkerPool. Each event reaches
// exactly one worker of the pool.
type WorkHandler[T any] interface {
	OnEvent(event *T) error
}

// WorkHandlerFunc adapts a function to WorkHandler.
type WorkHandlerFunc[T any] func(event *T) error

func (f WorkHandlerFunc[T]) OnEvent(event *T) error {
	return f(event)
}

// LifecycleAware handlers are told when their processor starts and
// right before it exits.
type LifecycleAware interface {
	OnStart() error
	OnShutdown() error
}

// TimeoutHandler handlers are told when the wait strategy timed out.
type TimeoutHandler interface {
	OnTimeout(sequence int64) error
}

// SequenceReportingEventHandler handlers receive the processor's
// Sequence and may store into it to report progress mid-batch.
type SequenceReportingEventHandler interface {
	SetSequenceCallback(sequence *Sequence)
}

// EventReleaser lets a work handler give up its claim early.
type EventReleaser interface {
	Release()
}

// EventReleaseAware work handlers receive their processor's EventReleaser.
type EventReleaseAware interface {
	SetEventReleaser(releaser EventReleaser)
}

// Capabilities is the set of optional hooks a handler implements.
type Capabilities uint8

const (
	CapLifecycle Capabilities = 1 << iota
	CapTimeout
	CapSequenceReporting
	CapEventRelease
)

// CapabilitiesOf inspects handler once and reports its optional hooks.
func CapabilitiesOf(handler any) Capabilities {
	var c Capabilities
	if _, ok := handler.(LifecycleAware); ok {
		c |= CapLifecycle
	}
	if _, ok := handler.(TimeoutHandler); ok {
		c |= CapTimeout
	}
	if _, ok := handler.(SequenceReportingEventHandler); ok {
		c |= CapSequenceReporting
	}
	if _, ok := handler.(EventReleaseAware); ok {
		c |= CapEventRelease
	}
	return c
}

// Has reports whether every capability in other is present.
func (c Capabilities) Has(other Capabilities) bool {
	return c&other == other
}

func (c Capabilities) String() string {
	if c == 0 {
		return "none"
	}
	var names []string
	for _, entry := range []struct {
		c    Capabilities
		name string
	}{
		{CapLifecycle, "lifecycle"},
		{CapTimeout, "timeout"},
		{CapSequenceReporting, "sequence-reporting"},
		{CapEventRelease, "event-release"},
	} {
		if c.Has(entry.c) {
			names = append(names, entry.name)
		}
	}
	return strings.Join(names, "|")
}

// hooks are the optional callbacks of a handler, bound once when its
// processor is built. Missing hooks are no-ops.
type hooks struct {
	caps       Capabilities
	onStart    func() error
	onShutdown func() error
	onTimeout  func(sequence int64) error
}

func noopHook() error { return nil }

func bindHooks(handler any) hooks {
	h := hooks{
		caps:       CapabilitiesOf(handler),
		onStart:    noopHook,
		onShutdown: noopHook,
		onTimeout:  func(int64) error { return nil },
	}
	if h.caps.Has(CapLifecycle) {
		l := handler.(LifecycleAware)
		h.onStart = l.OnStart
		h.onShutdown = l.OnShutdown
	}
	if h.caps.Has(CapTimeout) {
		h.onTimeout = handler.(TimeoutHandler).OnTimeout
	}
	return h
}
