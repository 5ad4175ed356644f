package disruptor

import (
	"runtime"
	"time"
)

// Alerter is polled by wait strategies on every attempt. A non-nil
// error (ErrAlerted) aborts the wait.
type Alerter interface {
	CheckAlert() error
}

// WaitStrategy decides how a consumer waits for a sequence to become
// available.
type WaitStrategy interface {
	// WaitFor blocks until dependent reaches sequence and returns the
	// highest value observed, which may exceed sequence. cursor is the
	// producer cursor; dependent is the minimum of the upstream stages
	// (the cursor itself for a first stage). It returns ErrAlerted when
	// alerter reports an alert and ErrTimeout when the strategy gives up.
	WaitFor(sequence int64, cursor SequenceReader, dependent SequenceReader, alerter Alerter) (int64, error)

	// SignalAllWhenBlocking wakes any waiter blocked inside WaitFor.
	SignalAllWhenBlocking()
}

// BusySpinWaitStrategy spins on the dependent sequence.
// Lowest latency, burns a full core per waiting consumer.
type BusySpinWaitStrategy struct{}

// NewBusySpinWaitStrategy returns a BusySpinWaitStrategy.
func NewBusySpinWaitStrategy() *BusySpinWaitStrategy {
	return &BusySpinWaitStrategy{}
}

func (*BusySpinWaitStrategy) WaitFor(sequence int64, _ SequenceReader, dependent SequenceReader, alerter Alerter) (int64, error) {
	var available int64
	for available = dependent.Load(); available < sequence; available = dependent.Load() {
		if err := alerter.CheckAlert(); err != nil {
			return available, err
		}
	}
	return available, nil
}

func (*BusySpinWaitStrategy) SignalAllWhenBlocking() {}

const defaultYieldingSpinTries = 100

// YieldingWaitStrategy spins for a number of tries and then yields the
// processor on every further attempt.
type YieldingWaitStrategy struct {
	spinTries int
}

// NewYieldingWaitStrategy returns a YieldingWaitStrategy spinning 100
// times before yielding.
func NewYieldingWaitStrategy() *YieldingWaitStrategy {
	return &YieldingWaitStrategy{spinTries: defaultYieldingSpinTries}
}

func (w *YieldingWaitStrategy) WaitFor(sequence int64, _ SequenceReader, dependent SequenceReader, alerter Alerter) (int64, error) {
	counter := w.spinTries
	var available int64
	for available = dependent.Load(); available < sequence; available = dependent.Load() {
		if err := alerter.CheckAlert(); err != nil {
			return available, err
		}
		if counter == 0 {
			runtime.Gosched()
		} else {
			counter--
		}
	}
	return available, nil
}

func (*YieldingWaitStrategy) SignalAllWhenBlocking() {}

const (
	defaultSleepingRetries = 200
	defaultSleepDuration   = time.Millisecond
)

// SleepingWaitStrategy spins, then yields, then sleeps between attempts.
// It is easy on the CPU but adds latency after idle periods.
type SleepingWaitStrategy struct {
	retries int
	sleep   time.Duration
}

// NewSleepingWaitStrategy returns a strategy with 200 retries: the first
// 100 spin, the next 100 yield, then it sleeps 1ms per attempt.
func NewSleepingWaitStrategy() *SleepingWaitStrategy {
	return NewSleepingWaitStrategyWith(defaultSleepingRetries, defaultSleepDuration)
}

// NewSleepingWaitStrategyWith configures the retry budget and sleep period.
func NewSleepingWaitStrategyWith(retries int, sleep time.Duration) *SleepingWaitStrategy {
	return &SleepingWaitStrategy{retries: max(retries, 0), sleep: sleep}
}

func (w *SleepingWaitStrategy) WaitFor(sequence int64, _ SequenceReader, dependent SequenceReader, alerter Alerter) (int64, error) {
	counter := w.retries
	var available int64
	for available = dependent.Load(); available < sequence; available = dependent.Load() {
		if err := alerter.CheckAlert(); err != nil {
			return available, err
		}
		switch {
		case counter > 100:
			counter--
		case counter > 0:
			counter--
			runtime.Gosched()
		default:
			time.Sleep(w.sleep)
		}
	}
	return available, nil
}

func (*SleepingWaitStrategy) SignalAllWhenBlocking() {}
