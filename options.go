package disruptor

import (
	"github.com/five-vee/disruptor/v2/internal/logging"
)

// Logger is used for logging formatted messages.
type Logger = logging.Logger

func loggerOrDefault(logger Logger) Logger {
	if logger == nil {
		return logging.GetDefaultLogger()
	}
	return logger
}

// Option is a function that will set up option.
type Option func(opts *Options)

func loadOptions(options ...Option) *Options {
	opts := &Options{ProducerType: MultiProducer}
	for _, option := range options {
		option(opts)
	}
	if opts.WaitStrategy == nil {
		opts.WaitStrategy = NewBlockingWaitStrategy()
	}
	if opts.Executor == nil {
		opts.Executor = NewThreadExecutor()
	}
	opts.Logger = loggerOrDefault(opts.Logger)
	return opts
}

// Options are set when a Disruptor is created.
type Options struct {
	// ProducerType selects the sequencer. Defaults to MultiProducer.
	ProducerType ProducerType

	// WaitStrategy is used by every consumer barrier.
	// Defaults to a BlockingWaitStrategy.
	WaitStrategy WaitStrategy

	// Executor runs the processing stages.
	// Defaults to one OS-thread-locked goroutine per stage.
	Executor Executor

	// Logger receives stage lifecycle and failure reports.
	Logger Logger

	// ProducerYield customizes producer backoff while the ring is full.
	ProducerYield func(spins int)
}

// WithOptions sets up all options.
func WithOptions(options Options) Option {
	return func(opts *Options) {
		*opts = options
	}
}

// WithProducerType ...
func WithProducerType(producerType ProducerType) Option {
	return func(opts *Options) {
		opts.ProducerType = producerType
	}
}

// WithWaitStrategy ...
func WithWaitStrategy(waitStrategy WaitStrategy) Option {
	return func(opts *Options) {
		opts.WaitStrategy = waitStrategy
	}
}

// WithExecutor ...
func WithExecutor(executor Executor) Option {
	return func(opts *Options) {
		opts.Executor = executor
	}
}

// WithLogger ...
func WithLogger(logger Logger) Option {
	return func(opts *Options) {
		opts.Logger = logger
	}
}

// WithProducerYield sets the producer backoff, see WithYield.
func WithProducerYield(yield func(spins int)) Option {
	return func(opts *Options) {
		opts.ProducerYield = yield
	}
}
