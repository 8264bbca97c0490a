package dispatch

import (
	"fmt"
	"time"

	"github.com/LerianStudio/lib-dispatch/dispatch/internal/nilcheck"
	"github.com/LerianStudio/lib-dispatch/dispatch/log"
	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultQueueCapacity    = 1000
	defaultMaxRetryAttempts = 3
	defaultInitialBackoff   = 1000 * time.Millisecond
	defaultShutdownTimeout  = 10 * time.Second
	defaultFailurePause     = time.Second
)

// Config controls dispatcher queueing, retry, and shutdown behavior. It is
// read once at construction.
type Config struct {
	// QueueCapacity bounds the in-memory queue; producers block when full.
	QueueCapacity int `validate:"min=1"`
	// MaxRetryAttempts is the retry budget per message before dead-lettering.
	MaxRetryAttempts int `validate:"min=1"`
	// InitialBackoff is the first retry delay; each further retry doubles it.
	InitialBackoff time.Duration `validate:"min=1ms"`
	// ShutdownTimeout bounds how long Shutdown waits for the worker to exit.
	ShutdownTimeout time.Duration `validate:"min=1ms"`
	// FailurePause is the base pause after an unexpected processing error
	// before the loop continues.
	FailurePause time.Duration `validate:"min=1ms"`
	// MeterProvider overrides the global OpenTelemetry meter provider.
	MeterProvider metric.MeterProvider `validate:"-"`
}

// DefaultConfig returns the baseline dispatcher configuration.
func DefaultConfig() Config {
	return Config{
		QueueCapacity:    defaultQueueCapacity,
		MaxRetryAttempts: defaultMaxRetryAttempts,
		InitialBackoff:   defaultInitialBackoff,
		ShutdownTimeout:  defaultShutdownTimeout,
		FailurePause:     defaultFailurePause,
	}
}

func (cfg *Config) normalize() {
	defaults := DefaultConfig()

	if cfg.QueueCapacity <= 0 {
		cfg.QueueCapacity = defaults.QueueCapacity
	}

	if cfg.MaxRetryAttempts <= 0 {
		cfg.MaxRetryAttempts = defaults.MaxRetryAttempts
	}

	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = defaults.InitialBackoff
	}

	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = defaults.ShutdownTimeout
	}

	if cfg.FailurePause <= 0 {
		cfg.FailurePause = defaults.FailurePause
	}
}

func (cfg *Config) validate() error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("invalid dispatcher config: %w", err)
	}

	return nil
}

// Option mutates dispatcher configuration at construction.
type Option func(*Dispatcher)

// WithQueueCapacity bounds the in-memory message queue.
func WithQueueCapacity(capacity int) Option {
	return func(dispatcher *Dispatcher) {
		if capacity > 0 {
			dispatcher.cfg.QueueCapacity = capacity
		}
	}
}

// WithMaxRetryAttempts sets the per-message retry budget.
func WithMaxRetryAttempts(attempts int) Option {
	return func(dispatcher *Dispatcher) {
		if attempts > 0 {
			dispatcher.cfg.MaxRetryAttempts = attempts
		}
	}
}

// WithInitialBackoff sets the first retry delay.
func WithInitialBackoff(delay time.Duration) Option {
	return func(dispatcher *Dispatcher) {
		if delay > 0 {
			dispatcher.cfg.InitialBackoff = delay
		}
	}
}

// WithShutdownTimeout bounds the graceful-shutdown wait.
func WithShutdownTimeout(timeout time.Duration) Option {
	return func(dispatcher *Dispatcher) {
		if timeout > 0 {
			dispatcher.cfg.ShutdownTimeout = timeout
		}
	}
}

// WithFailurePause sets the base pause after unexpected processing errors.
func WithFailurePause(pause time.Duration) Option {
	return func(dispatcher *Dispatcher) {
		if pause > 0 {
			dispatcher.cfg.FailurePause = pause
		}
	}
}

// WithLogger sets a structured logger.
func WithLogger(logger log.Logger) Option {
	return func(dispatcher *Dispatcher) {
		if !nilcheck.Interface(logger) {
			dispatcher.logger = logger
		}
	}
}

// WithTracer sets the tracer used for enqueue, delivery, and dead-letter
// spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(dispatcher *Dispatcher) {
		if !nilcheck.Interface(tracer) {
			dispatcher.tracer = tracer
		}
	}
}

// WithMeterProvider injects a custom meter provider for dispatcher metrics.
// Passing nil keeps the global OpenTelemetry provider.
func WithMeterProvider(provider metric.MeterProvider) Option {
	return func(dispatcher *Dispatcher) {
		if nilcheck.Interface(provider) {
			dispatcher.cfg.MeterProvider = nil

			return
		}

		dispatcher.cfg.MeterProvider = provider
	}
}
