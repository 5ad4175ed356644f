package disruptor

import (
	"errors"
	"testing"
	"time"
)

func waitStrategies() []struct {
	name string
	new  func() WaitStrategy
} {
	return []struct {
		name string
		new  func() WaitStrategy
	}{
		{name: "blocking", new: func() WaitStrategy { return NewBlockingWaitStrategy() }},
		{name: "timeout blocking", new: func() WaitStrategy { return NewTimeoutBlockingWaitStrategy(time.Minute) }},
		{name: "busy spin", new: func() WaitStrategy { return NewBusySpinWaitStrategy() }},
		{name: "yielding", new: func() WaitStrategy { return NewYieldingWaitStrategy() }},
		{name: "sleeping", new: func() WaitStrategy { return NewSleepingWaitStrategy() }},
		{name: "phased with lock", new: func() WaitStrategy { return NewPhasedBackoffWithLock(time.Millisecond, time.Millisecond) }},
		{name: "phased with sleep", new: func() WaitStrategy { return NewPhasedBackoffWithSleep(time.Millisecond, time.Millisecond) }},
	}
}

type waitResult struct {
	available int64
	err       error
}

func waitAsync(b *SequenceBarrier, seq int64) <-chan waitResult {
	done := make(chan waitResult, 1)
	go func() {
		available, err := b.WaitFor(seq)
		done <- waitResult{available, err}
	}()
	return done
}

func TestWaitStrategy_WakesOnPublish(t *testing.T) {
	for _, tc := range waitStrategies() {
		t.Run(tc.name, func(t *testing.T) {
			s, err := NewSingleProducerSequencer(8, tc.new())
			if err != nil {
				t.Fatalf("NewSingleProducerSequencer() error = %v", err)
			}
			done := waitAsync(s.NewBarrier(), 1)

			time.Sleep(20 * time.Millisecond)
			select {
			case r := <-done:
				t.Fatalf("WaitFor(1) returned %v before anything was published", r)
			default:
			}

			s.Publish(s.NextN(2))
			select {
			case r := <-done:
				if r.err != nil || r.available != 1 {
					t.Errorf("WaitFor(1) = %d, %v, want 1, nil", r.available, r.err)
				}
			case <-time.After(5 * time.Second):
				t.Fatal("WaitFor(1) did not return after publish")
			}
		})
	}
}

func TestWaitStrategy_WakesOnAlert(t *testing.T) {
	for _, tc := range waitStrategies() {
		t.Run(tc.name, func(t *testing.T) {
			s, err := NewMultiProducerSequencer(8, tc.new())
			if err != nil {
				t.Fatalf("NewMultiProducerSequencer() error = %v", err)
			}
			barrier := s.NewBarrier()
			done := waitAsync(barrier, 0)

			time.Sleep(20 * time.Millisecond)
			barrier.Alert()
			select {
			case r := <-done:
				if !errors.Is(r.err, ErrAlerted) {
					t.Errorf("WaitFor(0) error = %v, want %v", r.err, ErrAlerted)
				}
			case <-time.After(5 * time.Second):
				t.Fatal("WaitFor(0) did not return after Alert")
			}

			// The alert sticks until cleared.
			if _, err := barrier.WaitFor(0); !errors.Is(err, ErrAlerted) {
				t.Errorf("WaitFor(0) on an alerted barrier error = %v, want %v", err, ErrAlerted)
			}
			barrier.ClearAlert()
			s.Publish(s.Next())
			if available, err := barrier.WaitFor(0); err != nil || available != 0 {
				t.Errorf("WaitFor(0) after ClearAlert = %d, %v, want 0, nil", available, err)
			}
		})
	}
}

func TestWaitStrategy_WaitsForDependents(t *testing.T) {
	for _, tc := range waitStrategies() {
		t.Run(tc.name, func(t *testing.T) {
			s, _ := NewSingleProducerSequencer(8, tc.new())
			upstream := NewSequence()
			s.AddGatingSequences(upstream)
			barrier := s.NewBarrier(upstream)

			s.Publish(s.NextN(4))
			done := waitAsync(barrier, 0)
			time.Sleep(20 * time.Millisecond)
			select {
			case r := <-done:
				t.Fatalf("WaitFor(0) returned %v before the upstream stage moved", r)
			default:
			}

			upstream.Store(2)
			s.waitStrategy.SignalAllWhenBlocking()
			select {
			case r := <-done:
				if r.err != nil || r.available != 2 {
					t.Errorf("WaitFor(0) = %d, %v, want 2, nil", r.available, r.err)
				}
			case <-time.After(5 * time.Second):
				t.Fatal("WaitFor(0) did not return after the upstream stage moved")
			}
			if got := barrier.Cursor(); got != 2 {
				t.Errorf("Cursor() = %d, want the upstream value 2", got)
			}
		})
	}
}

func TestTimeoutBlockingWaitStrategy_Timeout(t *testing.T) {
	s, _ := NewSingleProducerSequencer(8, NewTimeoutBlockingWaitStrategy(10*time.Millisecond))
	start := time.Now()
	available, err := s.NewBarrier().WaitFor(0)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("WaitFor(0) error = %v, want %v", err, ErrTimeout)
	}
	if available != InitialSequenceValue {
		t.Errorf("WaitFor(0) = %d, want %d", available, InitialSequenceValue)
	}
	if elapsed := time.Since(start); elapsed < 10*time.Millisecond {
		t.Errorf("WaitFor(0) returned after %v, before the timeout", elapsed)
	}
}

func TestSequenceBarrier_StopsAtPublicationGap(t *testing.T) {
	s, _ := NewMultiProducerSequencer(8, NewBusySpinWaitStrategy())
	barrier := s.NewBarrier()

	first := s.Next()
	second := s.Next()
	s.Publish(second)

	// The cursor has passed 0 but slot 0 is not published yet.
	available, err := barrier.WaitFor(first)
	if err != nil {
		t.Fatalf("WaitFor(%d) error = %v", first, err)
	}
	if available != first-1 {
		t.Errorf("WaitFor(%d) = %d, want %d", first, available, first-1)
	}

	s.Publish(first)
	if available, _ := barrier.WaitFor(first); available != second {
		t.Errorf("WaitFor(%d) after filling the gap = %d, want %d", first, available, second)
	}
}
