package disruptor

import (
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

type observedEvent struct {
	Value      int
	Sequence   int64
	EndOfBatch bool
}

// recordingHandler records every callback. It is only read once the
// processor's Run has returned.
type recordingHandler struct {
	calls    []string
	events   []observedEvent
	failOn   map[int64]error
	panicOn  map[int64]any
	startErr error
}

func (h *recordingHandler) OnEvent(event *int, sequence int64, endOfBatch bool) error {
	if v, ok := h.panicOn[sequence]; ok {
		panic(v)
	}
	h.events = append(h.events, observedEvent{Value: *event, Sequence: sequence, EndOfBatch: endOfBatch})
	h.calls = append(h.calls, fmt.Sprintf("event %d", sequence))
	return h.failOn[sequence]
}

func (h *recordingHandler) OnStart() error {
	h.calls = append(h.calls, "start")
	return h.startErr
}

func (h *recordingHandler) OnShutdown() error {
	h.calls = append(h.calls, "shutdown")
	return nil
}

func newIntRing(t *testing.T, ws WaitStrategy) *RingBuffer[int] {
	t.Helper()
	rb, err := NewSingleProducerRingBuffer[int](nil, 16, ws)
	if err != nil {
		t.Fatalf("NewSingleProducerRingBuffer() error = %v", err)
	}
	return rb
}

func publishInts(rb *RingBuffer[int], values ...int) {
	for _, v := range values {
		PublishEventWith(rb, func(e *int, _ int64, v int) { *e = v }, v)
	}
}

func TestBatchEventProcessor_EndOfBatch(t *testing.T) {
	rb := newIntRing(t, nil)
	h := &recordingHandler{}
	p := NewBatchEventProcessor[int](rb, rb.NewBarrier(), h)
	rb.AddGatingSequences(p.Sequence())

	publishInts(rb, 10, 20, 30)
	done := runAsync(p)
	waitUntil(t, "first batch", func() bool { return p.Sequence().Load() == 2 })
	p.Halt()
	if err := awaitRun(t, done); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	want := []observedEvent{
		{Value: 10, Sequence: 0},
		{Value: 20, Sequence: 1},
		{Value: 30, Sequence: 2, EndOfBatch: true},
	}
	if diff := cmp.Diff(want, h.events); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"start", "event 0", "event 1", "event 2", "shutdown"}, h.calls); diff != "" {
		t.Errorf("callback order mismatch (-want +got):\n%s", diff)
	}
	if p.IsRunning() {
		t.Errorf("IsRunning() = true after Run returned")
	}
}

func TestBatchEventProcessor_AlreadyRunning(t *testing.T) {
	rb := newIntRing(t, nil)
	p := NewBatchEventProcessor[int](rb, rb.NewBarrier(), EventHandlerFunc[int](func(*int, int64, bool) error { return nil }))

	done := runAsync(p)
	waitUntil(t, "processor start", p.IsRunning)
	if err := p.Run(); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("second Run() error = %v, want %v", err, ErrAlreadyRunning)
	}
	p.Halt()
	if err := awaitRun(t, done); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
}

func TestBatchEventProcessor_HaltBeforeRun(t *testing.T) {
	rb := newIntRing(t, nil)
	h := &recordingHandler{}
	p := NewBatchEventProcessor[int](rb, rb.NewBarrier(), h)

	p.Halt()
	if err := p.Run(); err != nil {
		t.Fatalf("Run() after Halt error = %v", err)
	}
	if diff := cmp.Diff([]string{"start", "shutdown"}, h.calls); diff != "" {
		t.Errorf("callback mismatch (-want +got):\n%s", diff)
	}
	if p.IsRunning() {
		t.Fatalf("IsRunning() = true after an early exit")
	}

	// The processor can be run again.
	done := runAsync(p)
	publishInts(rb, 1)
	waitUntil(t, "event 0", func() bool { return p.Sequence().Load() == 0 })
	p.Halt()
	if err := awaitRun(t, done); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
}

func TestBatchEventProcessor_HaltWhenNotRunning(t *testing.T) {
	rb := newIntRing(t, nil)
	p := NewBatchEventProcessor[int](rb, rb.NewBarrier(), &recordingHandler{})
	rb.AddGatingSequences(p.Sequence())

	p.Halt()
	if p.IsRunning() {
		t.Errorf("IsRunning() = true for a processor halted before Run")
	}
	if err := p.Run(); err != nil {
		t.Fatalf("Run() after an early Halt error = %v", err)
	}

	done := runAsync(p)
	publishInts(rb, 1)
	waitUntil(t, "event 0", func() bool { return p.Sequence().Load() == 0 })
	p.Halt()
	if err := awaitRun(t, done); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	// A halt after the loop exited is not carried into the next Run.
	p.Halt()
	if p.IsRunning() {
		t.Errorf("IsRunning() = true after halting an exited processor")
	}
	done = runAsync(p)
	publishInts(rb, 2)
	waitUntil(t, "event 1 after a late Halt", func() bool { return p.Sequence().Load() == 1 })
	p.Halt()
	if err := awaitRun(t, done); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
}

func TestBatchEventProcessor_AlertWithoutHalt(t *testing.T) {
	rb := newIntRing(t, nil)
	h := &recordingHandler{}
	barrier := rb.NewBarrier()
	p := NewBatchEventProcessor[int](rb, barrier, h)
	rb.AddGatingSequences(p.Sequence())

	done := runAsync(p)
	publishInts(rb, 1)
	waitUntil(t, "event 0", func() bool { return p.Sequence().Load() == 0 })

	barrier.Alert()
	time.Sleep(10 * time.Millisecond)
	if !p.IsRunning() {
		t.Fatalf("IsRunning() = false after an alert without Halt")
	}
	barrier.ClearAlert()
	publishInts(rb, 2)
	waitUntil(t, "event 1 after the alert cleared", func() bool { return p.Sequence().Load() == 1 })

	p.Halt()
	if err := awaitRun(t, done); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if diff := cmp.Diff([]int{1, 2}, eventValues(h.events)); diff != "" {
		t.Errorf("handled values mismatch (-want +got):\n%s", diff)
	}
}

func eventValues(events []observedEvent) []int {
	out := make([]int, len(events))
	for i, e := range events {
		out[i] = e.Value
	}
	return out
}

func TestBatchEventProcessor_IgnorePolicy(t *testing.T) {
	logger, logs := observedLogger()
	rb := newIntRing(t, nil)
	h := &recordingHandler{failOn: map[int64]error{1: errors.New("bad event")}}
	p := NewBatchEventProcessor[int](rb, rb.NewBarrier(), h)
	if err := p.SetExceptionHandler(NewIgnoreExceptionHandler[int](logger)); err != nil {
		t.Fatalf("SetExceptionHandler() error = %v", err)
	}

	done := runAsync(p)
	publishInts(rb, 1, 2, 3)
	waitUntil(t, "all events", func() bool { return p.Sequence().Load() == 2 })
	p.Halt()
	if err := awaitRun(t, done); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	var seen []int64
	for _, e := range h.events {
		seen = append(seen, e.Sequence)
	}
	if diff := cmp.Diff([]int64{0, 1, 2}, seen); diff != "" {
		t.Errorf("sequences mismatch (-want +got):\n%s", diff)
	}
	if got := logs.FilterMessageSnippet("bad event").Len(); got != 1 {
		t.Errorf("logged %d reports of the failure, want 1", got)
	}
}

func TestBatchEventProcessor_FatalPolicy(t *testing.T) {
	testCases := []struct {
		name    string
		handler *recordingHandler
		check   func(t *testing.T, err error)
	}{
		{
			name:    "error",
			handler: &recordingHandler{failOn: map[int64]error{1: errors.New("bad event")}},
			check: func(t *testing.T, err error) {
				if err == nil || err.Error() != "disruptor: sequence 1: bad event" {
					t.Errorf("Run() error = %v, want the failure of sequence 1", err)
				}
			},
		},
		{
			name:    "panic",
			handler: &recordingHandler{panicOn: map[int64]any{1: "boom"}},
			check: func(t *testing.T, err error) {
				var pe *PanicError
				if !errors.As(err, &pe) {
					t.Fatalf("Run() error = %v, want a *PanicError", err)
				}
				if pe.Value != "boom" || len(pe.Stack) == 0 {
					t.Errorf("PanicError = %v with %d bytes of stack", pe.Value, len(pe.Stack))
				}
			},
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			logger, logs := observedLogger()
			rb := newIntRing(t, nil)
			p := NewBatchEventProcessor[int](rb, rb.NewBarrier(), tc.handler)
			if err := p.SetExceptionHandler(NewFatalExceptionHandler[int](logger)); err != nil {
				t.Fatalf("SetExceptionHandler() error = %v", err)
			}

			done := runAsync(p)
			publishInts(rb, 1, 2, 3)
			tc.check(t, awaitRun(t, done))

			if got := logs.FilterMessageSnippet("exception processing").Len(); got != 1 {
				t.Errorf("logged %d failures, want 1", got)
			}
			if tc.handler.calls[len(tc.handler.calls)-1] != "shutdown" {
				t.Errorf("OnShutdown was not called after the failure: %v", tc.handler.calls)
			}
			if p.IsRunning() {
				t.Errorf("IsRunning() = true after a fatal failure")
			}
		})
	}
}

type failingPolicy struct {
	startErrs atomic.Int32
}

func (*failingPolicy) HandleEventException(err error, _ int64, _ *int) error { return err }

func (p *failingPolicy) HandleOnStartException(error) { p.startErrs.Add(1) }

func (*failingPolicy) HandleOnShutdownException(error) {}

func TestBatchEventProcessor_StartFailureKeepsRunning(t *testing.T) {
	rb := newIntRing(t, nil)
	h := &recordingHandler{startErr: errors.New("no warmup")}
	p := NewBatchEventProcessor[int](rb, rb.NewBarrier(), h)
	policy := &failingPolicy{}
	_ = p.SetExceptionHandler(policy)

	done := runAsync(p)
	publishInts(rb, 7)
	waitUntil(t, "event 0", func() bool { return p.Sequence().Load() == 0 })
	p.Halt()
	if err := awaitRun(t, done); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if got := policy.startErrs.Load(); got != 1 {
		t.Errorf("HandleOnStartException called %d times, want 1", got)
	}
}

type timeoutCounter struct {
	timeouts atomic.Int32
	last     atomic.Int64
}

func (*timeoutCounter) OnEvent(*int, int64, bool) error { return nil }

func (h *timeoutCounter) OnTimeout(sequence int64) error {
	h.last.Store(sequence)
	h.timeouts.Add(1)
	return nil
}

func TestBatchEventProcessor_OnTimeout(t *testing.T) {
	rb := newIntRing(t, NewTimeoutBlockingWaitStrategy(time.Millisecond))
	h := &timeoutCounter{}
	h.last.Store(100)
	p := NewBatchEventProcessor[int](rb, rb.NewBarrier(), h)
	if !p.Capabilities().Has(CapTimeout) {
		t.Fatalf("Capabilities() = %v, want timeout", p.Capabilities())
	}

	done := runAsync(p)
	waitUntil(t, "timeouts", func() bool { return h.timeouts.Load() >= 2 })
	if got := h.last.Load(); got != InitialSequenceValue {
		t.Errorf("OnTimeout(%d), want the processor sequence %d", got, InitialSequenceValue)
	}
	publishInts(rb, 1)
	waitUntil(t, "event 0", func() bool { return p.Sequence().Load() == 0 })
	p.Halt()
	if err := awaitRun(t, done); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
}

// reportingHandler reports progress after every event, not only at
// the end of a batch.
type reportingHandler struct {
	sequence *Sequence
	release  chan struct{}
}

func (h *reportingHandler) SetSequenceCallback(sequence *Sequence) {
	h.sequence = sequence
}

func (h *reportingHandler) OnEvent(_ *int, sequence int64, _ bool) error {
	h.sequence.Store(sequence)
	if sequence == 0 {
		<-h.release
	}
	return nil
}

func TestBatchEventProcessor_SequenceReporting(t *testing.T) {
	rb := newIntRing(t, nil)
	h := &reportingHandler{release: make(chan struct{})}
	p := NewBatchEventProcessor[int](rb, rb.NewBarrier(), h)
	if h.sequence != p.Sequence() {
		t.Fatalf("SetSequenceCallback received %p, want the processor sequence %p", h.sequence, p.Sequence())
	}

	publishInts(rb, 1, 2, 3)
	done := runAsync(p)
	// The handler is parked mid-batch but has already reported event 0.
	waitUntil(t, "mid-batch report", func() bool { return p.Sequence().Load() == 0 })
	close(h.release)
	waitUntil(t, "end of batch", func() bool { return p.Sequence().Load() == 2 })
	p.Halt()
	if err := awaitRun(t, done); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
}

func TestBatchEventProcessor_SetExceptionHandler(t *testing.T) {
	rb := newIntRing(t, nil)
	p := NewBatchEventProcessor[int](rb, rb.NewBarrier(), EventHandlerFunc[int](func(*int, int64, bool) error { return nil }))
	if err := p.SetExceptionHandler(nil); !errors.Is(err, ErrNilExceptionHandler) {
		t.Errorf("SetExceptionHandler(nil) error = %v, want %v", err, ErrNilExceptionHandler)
	}
}
