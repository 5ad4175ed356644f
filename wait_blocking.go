package disruptor

import (
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

// BlockingWaitStrategy parks consumers on a condition variable until a
// producer publishes. Lowest CPU use, highest and least predictable latency.
type BlockingWaitStrategy struct {
	mu      sync.Mutex
	cond    sync.Cond
	waiters atomic.Int32
}

// NewBlockingWaitStrategy returns a ready BlockingWaitStrategy.
func NewBlockingWaitStrategy() *BlockingWaitStrategy {
	w := &BlockingWaitStrategy{}
	w.cond.L = &w.mu
	return w
}

func (w *BlockingWaitStrategy) WaitFor(sequence int64, cursor SequenceReader, dependent SequenceReader, alerter Alerter) (int64, error) {
	available := cursor.Load()
	if available < sequence {
		w.mu.Lock()
		w.waiters.Add(1)
		for available = cursor.Load(); available < sequence; available = cursor.Load() {
			if err := alerter.CheckAlert(); err != nil {
				w.waiters.Add(-1)
				w.mu.Unlock()
				return available, err
			}
			w.cond.Wait()
		}
		w.waiters.Add(-1)
		w.mu.Unlock()
	}
	return spinOnDependent(sequence, dependent, alerter)
}

func (w *BlockingWaitStrategy) SignalAllWhenBlocking() {
	if w.waiters.Load() == 0 {
		return
	}
	w.mu.Lock()
	w.cond.Broadcast()
	w.mu.Unlock()
}

// spinOnDependent waits for upstream stages once the cursor has passed
// sequence. Upstream lag is short-lived, so it yields instead of parking.
func spinOnDependent(sequence int64, dependent SequenceReader, alerter Alerter) (int64, error) {
	var available int64
	for available = dependent.Load(); available < sequence; available = dependent.Load() {
		if err := alerter.CheckAlert(); err != nil {
			return available, err
		}
		runtime.Gosched()
	}
	return available, nil
}

// TimeoutBlockingWaitStrategy blocks like BlockingWaitStrategy but gives
// up with ErrTimeout when nothing is published within the timeout.
type TimeoutBlockingWaitStrategy struct {
	timeout time.Duration
	mu      sync.Mutex
	signal  chan struct{}
	waiters atomic.Int32
}

// NewTimeoutBlockingWaitStrategy returns a strategy timing out after timeout.
func NewTimeoutBlockingWaitStrategy(timeout time.Duration) *TimeoutBlockingWaitStrategy {
	return &TimeoutBlockingWaitStrategy{timeout: timeout}
}

func (w *TimeoutBlockingWaitStrategy) WaitFor(sequence int64, cursor SequenceReader, dependent SequenceReader, alerter Alerter) (int64, error) {
	available := cursor.Load()
	if available < sequence {
		timer := time.NewTimer(w.timeout)
		defer timer.Stop()
		w.waiters.Add(1)
		defer w.waiters.Add(-1)
		for {
			ch := w.signalChan()
			if available = cursor.Load(); available >= sequence {
				break
			}
			if err := alerter.CheckAlert(); err != nil {
				return available, err
			}
			select {
			case <-ch:
			case <-timer.C:
				return available, ErrTimeout
			}
		}
	}
	return spinOnDependent(sequence, dependent, alerter)
}

func (w *TimeoutBlockingWaitStrategy) signalChan() chan struct{} {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.signal == nil {
		w.signal = make(chan struct{})
	}
	return w.signal
}

func (w *TimeoutBlockingWaitStrategy) SignalAllWhenBlocking() {
	if w.waiters.Load() == 0 {
		return
	}
	w.mu.Lock()
	if w.signal != nil {
		close(w.signal)
		w.signal = nil
	}
	w.mu.Unlock()
}
