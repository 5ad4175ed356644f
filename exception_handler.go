package disruptor

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/joeycumines/go-catrate"
)

// ExceptionHandler decides what happens when a handler fails.
//
// HandleEventException returns nil to skip the failed event and keep
// processing, or an error to stop the stage. The stage's Run then
// returns that error.
type ExceptionHandler[T any] interface {
	HandleEventException(err error, sequence int64, event *T) error
	HandleOnStartException(err error)
	HandleOnShutdownException(err error)
}

// FatalExceptionHandler logs the failure and stops the stage.
// It is the default policy.
type FatalExceptionHandler[T any] struct {
	logger Logger
}

// NewFatalExceptionHandler returns a FatalExceptionHandler logging to
// logger, or to the default logger when logger is nil.
func NewFatalExceptionHandler[T any](logger Logger) *FatalExceptionHandler[T] {
	return &FatalExceptionHandler[T]{logger: loggerOrDefault(logger)}
}

func (h *FatalExceptionHandler[T]) HandleEventException(err error, sequence int64, event *T) error {
	h.logger.Errorf("exception processing: %d %+v: %v", sequence, event, err)
	return fmt.Errorf("disruptor: sequence %d: %w", sequence, err)
}

func (h *FatalExceptionHandler[T]) HandleOnStartException(err error) {
	h.logger.Errorf("exception during OnStart(): %v", err)
}

func (h *FatalExceptionHandler[T]) HandleOnShutdownException(err error) {
	h.logger.Errorf("exception during OnShutdown(): %v", err)
}

// IgnoreExceptionHandler logs the failure and carries on with the next event.
type IgnoreExceptionHandler[T any] struct {
	logger Logger
}

// NewIgnoreExceptionHandler returns an IgnoreExceptionHandler logging
// to logger, or to the default logger when logger is nil.
func NewIgnoreExceptionHandler[T any](logger Logger) *IgnoreExceptionHandler[T] {
	return &IgnoreExceptionHandler[T]{logger: loggerOrDefault(logger)}
}

func (h *IgnoreExceptionHandler[T]) HandleEventException(err error, sequence int64, event *T) error {
	h.logger.Infof("exception processing: %d %+v: %v", sequence, event, err)
	return nil
}

func (h *IgnoreExceptionHandler[T]) HandleOnStartException(err error) {
	h.logger.Infof("exception during OnStart(): %v", err)
}

func (h *IgnoreExceptionHandler[T]) HandleOnShutdownException(err error) {
	h.logger.Infof("exception during OnShutdown(): %v", err)
}

// RateLimitedExceptionHandler carries on like IgnoreExceptionHandler
// but logs each distinct error message at most as often as the
// configured rates allow. Suppressed reports are counted and the count
// is logged with the next report that gets through.
type RateLimitedExceptionHandler[T any] struct {
	logger     Logger
	limiter    *catrate.Limiter
	suppressed atomic.Int64
}

// DefaultExceptionLogRates allows bursts of 10 reports per second and
// 100 per minute for each distinct error.
var DefaultExceptionLogRates = map[time.Duration]int{
	time.Second: 10,
	time.Minute: 100,
}

// NewRateLimitedExceptionHandler returns a handler limited by rates
// (see catrate.NewLimiter). A nil rates means DefaultExceptionLogRates.
// It panics if rates are invalid.
func NewRateLimitedExceptionHandler[T any](logger Logger, rates map[time.Duration]int) *RateLimitedExceptionHandler[T] {
	if rates == nil {
		rates = DefaultExceptionLogRates
	}
	return &RateLimitedExceptionHandler[T]{
		logger:  loggerOrDefault(logger),
		limiter: catrate.NewLimiter(rates),
	}
}

func (h *RateLimitedExceptionHandler[T]) HandleEventException(err error, sequence int64, event *T) error {
	h.report("exception processing %d %+v: %v", err, sequence, event, err)
	return nil
}

func (h *RateLimitedExceptionHandler[T]) HandleOnStartException(err error) {
	h.report("exception during OnStart(): %v", err, err)
}

func (h *RateLimitedExceptionHandler[T]) HandleOnShutdownException(err error) {
	h.report("exception during OnShutdown(): %v", err, err)
}

// Suppressed returns the number of reports dropped since the last one
// that was logged.
func (h *RateLimitedExceptionHandler[T]) Suppressed() int64 {
	return h.suppressed.Load()
}

func (h *RateLimitedExceptionHandler[T]) report(format string, err error, args ...any) {
	if _, ok := h.limiter.Allow(err.Error()); !ok {
		h.suppressed.Add(1)
		return
	}
	if n := h.suppressed.Swap(0); n > 0 {
		h.logger.Warnf(format+" (%d earlier reports suppressed)", append(args, n)...)
		return
	}
	h.logger.Warnf(format, args...)
}
