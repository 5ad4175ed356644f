package disruptor

import (
	"runtime"
	"time"
)

const phasedSpinTries = 10_000

// PhasedBackoffWaitStrategy spins, then yields, then hands over to a
// fallback strategy once the elapsed wait crosses each threshold.
type PhasedBackoffWaitStrategy struct {
	spinTimeout  time.Duration
	yieldTimeout time.Duration
	fallback     WaitStrategy
}

// NewPhasedBackoffWaitStrategy spins for spinTimeout, yields for a further
// yieldTimeout and then delegates to fallback.
func NewPhasedBackoffWaitStrategy(spinTimeout, yieldTimeout time.Duration, fallback WaitStrategy) *PhasedBackoffWaitStrategy {
	return &PhasedBackoffWaitStrategy{
		spinTimeout:  spinTimeout,
		yieldTimeout: spinTimeout + yieldTimeout,
		fallback:     fallback,
	}
}

// NewPhasedBackoffWithLock falls back to a BlockingWaitStrategy.
func NewPhasedBackoffWithLock(spinTimeout, yieldTimeout time.Duration) *PhasedBackoffWaitStrategy {
	return NewPhasedBackoffWaitStrategy(spinTimeout, yieldTimeout, NewBlockingWaitStrategy())
}

// NewPhasedBackoffWithSleep falls back to a SleepingWaitStrategy that
// sleeps without any extra spinning.
func NewPhasedBackoffWithSleep(spinTimeout, yieldTimeout time.Duration) *PhasedBackoffWaitStrategy {
	return NewPhasedBackoffWaitStrategy(spinTimeout, yieldTimeout, NewSleepingWaitStrategyWith(0, defaultSleepDuration))
}

func (w *PhasedBackoffWaitStrategy) WaitFor(sequence int64, cursor SequenceReader, dependent SequenceReader, alerter Alerter) (int64, error) {
	var start time.Time
	counter := phasedSpinTries
	for {
		if available := dependent.Load(); available >= sequence {
			return available, nil
		}
		if err := alerter.CheckAlert(); err != nil {
			return dependent.Load(), err
		}
		if counter--; counter > 0 {
			continue
		}
		counter = phasedSpinTries
		if start.IsZero() {
			start = time.Now()
			continue
		}
		elapsed := time.Since(start)
		if elapsed > w.yieldTimeout {
			return w.fallback.WaitFor(sequence, cursor, dependent, alerter)
		}
		if elapsed > w.spinTimeout {
			runtime.Gosched()
		}
	}
}

func (w *PhasedBackoffWaitStrategy) SignalAllWhenBlocking() {
	w.fallback.SignalAllWhenBlocking()
}
