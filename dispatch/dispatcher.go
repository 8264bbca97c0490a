package dispatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/LerianStudio/lib-dispatch/dispatch/backoff"
	"github.com/LerianStudio/lib-dispatch/dispatch/internal/nilcheck"
	"github.com/LerianStudio/lib-dispatch/dispatch/log"
	"github.com/LerianStudio/lib-dispatch/dispatch/message"
	"github.com/LerianStudio/lib-dispatch/dispatch/queue"
	"github.com/LerianStudio/lib-dispatch/dispatch/runtime"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Deliverer performs one delivery attempt and exposes the breaker surface.
// *publisher.Publisher satisfies it.
type Deliverer interface {
	Deliver(ctx context.Context, msg *message.Message) (receiptID string, err error)
	IsCircuitOpen() bool
	ResetCircuit()
}

// Sink durably records messages that exhausted their retries.
// *deadletter.Sink satisfies it.
type Sink interface {
	Record(ctx context.Context, msg *message.Message, cause error)
}

// Dispatcher owns the background delivery loop: a single worker pulls
// messages off the bounded queue in FIFO order and drives each one to a
// terminal state (delivered or dead-lettered) before touching the next.
//
// Enqueueing succeeds as soon as the message is buffered; producers never
// observe delivery-path failures. A message under retry blocks subsequent
// messages, which bounds concurrent load on the breaker and keeps dead-letter
// observation in enqueue order.
type Dispatcher struct {
	queue     *queue.Bounded
	deliverer Deliverer
	sink      Sink
	logger    log.Logger
	tracer    trace.Tracer
	cfg       Config
	metrics   dispatcherMetrics

	runMu    sync.Mutex
	running  bool
	cancel   context.CancelFunc
	loopDone chan struct{}
}

// New creates a dispatcher. The queue is owned by the dispatcher and sized
// from the configuration.
func New(deliverer Deliverer, sink Sink, opts ...Option) (*Dispatcher, error) {
	if nilcheck.Interface(deliverer) {
		return nil, ErrDelivererRequired
	}

	if nilcheck.Interface(sink) {
		return nil, ErrSinkRequired
	}

	dispatcher := &Dispatcher{
		deliverer: deliverer,
		sink:      sink,
		logger:    log.NewNop(),
		tracer:    noop.NewTracerProvider().Tracer("lib-dispatch.noop"),
		cfg:       DefaultConfig(),
	}

	for _, opt := range opts {
		if opt != nil {
			opt(dispatcher)
		}
	}

	dispatcher.cfg.normalize()

	if err := dispatcher.cfg.validate(); err != nil {
		return nil, err
	}

	metrics, err := newDispatcherMetrics(dispatcher.cfg.MeterProvider)
	if err != nil {
		return nil, fmt.Errorf("init dispatcher metrics: %w", err)
	}

	dispatcher.metrics = metrics
	dispatcher.queue = queue.NewBounded(dispatcher.cfg.QueueCapacity)

	return dispatcher, nil
}

// Enqueue accepts msg for best-effort delivery. It blocks while the queue is
// full (backpressure) and fails only when ctx is cancelled before space frees
// up. A nil error means "accepted", not "delivered".
func (dispatcher *Dispatcher) Enqueue(ctx context.Context, msg *message.Message) error {
	if dispatcher == nil {
		return ErrDispatcherRequired
	}

	ctx, span := dispatcher.tracer.Start(ctx, "dispatch.enqueue")
	defer span.End()

	if err := dispatcher.queue.Enqueue(ctx, msg); err != nil {
		span.SetStatus(codes.Error, "enqueue failed")
		span.RecordError(err)

		return err
	}

	span.SetAttributes(
		attribute.String("message.id", msg.ID.String()),
		attribute.String("message.correlation_id", msg.CorrelationID),
	)

	dispatcher.metrics.queued.Add(ctx, 1)
	dispatcher.metrics.queueDepth.Record(ctx, int64(dispatcher.queue.Size()))

	return nil
}

// QueueDepth returns the current queue depth for health reporting.
func (dispatcher *Dispatcher) QueueDepth() int {
	return dispatcher.queue.Size()
}

// IsCircuitOpen reports the breaker status for health reporting.
func (dispatcher *Dispatcher) IsCircuitOpen() bool {
	return dispatcher.deliverer.IsCircuitOpen()
}

// ResetCircuit forces the breaker closed, an operator action callable at any
// time.
func (dispatcher *Dispatcher) ResetCircuit() {
	dispatcher.deliverer.ResetCircuit()
	dispatcher.recordBreakerStatus(context.Background())
}

// Start launches the worker loop. It is idempotent: calling Start on a
// running dispatcher is a no-op.
func (dispatcher *Dispatcher) Start() error {
	if dispatcher == nil {
		return ErrDispatcherRequired
	}

	dispatcher.runMu.Lock()
	defer dispatcher.runMu.Unlock()

	if dispatcher.running {
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	dispatcher.running = true
	dispatcher.cancel = cancel
	dispatcher.loopDone = done

	runtime.SafeGo(dispatcher.logger, "dispatch", "worker_loop", func() {
		defer close(done)
		defer dispatcher.clearRun()

		dispatcher.run(ctx)
	})

	dispatcher.logger.Log(ctx, log.LevelInfo, "dispatcher started",
		log.Int("queue_capacity", dispatcher.queue.Capacity()),
		log.Int("max_retry_attempts", dispatcher.cfg.MaxRetryAttempts),
	)

	return nil
}

// Stop signals the worker loop to exit at its next wait point. Safe to call
// at any time, including before Start.
func (dispatcher *Dispatcher) Stop() {
	if dispatcher == nil {
		return
	}

	dispatcher.runMu.Lock()
	cancel := dispatcher.cancel
	dispatcher.runMu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// Shutdown stops the worker and waits for it to exit. A nil ctx waits up to
// the configured shutdown timeout, after which the worker is abandoned and
// ErrShutdownTimeout is returned. Safe to call even if never started.
func (dispatcher *Dispatcher) Shutdown(ctx context.Context) error {
	if dispatcher == nil {
		return nil
	}

	dispatcher.Stop()

	dispatcher.runMu.Lock()
	done := dispatcher.loopDone
	dispatcher.runMu.Unlock()

	if done == nil {
		return nil
	}

	if ctx == nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.Background(), dispatcher.cfg.ShutdownTimeout)

		defer cancel()
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", ErrShutdownTimeout, ctx.Err())
	}
}

func (dispatcher *Dispatcher) clearRun() {
	dispatcher.runMu.Lock()
	defer dispatcher.runMu.Unlock()

	dispatcher.running = false
	dispatcher.cancel = nil
}

// run is the outer loop: dequeue, drive the message to a terminal state,
// repeat until cancelled.
func (dispatcher *Dispatcher) run(ctx context.Context) {
	defer dispatcher.logger.Log(ctx, log.LevelInfo, "dispatcher stopped")

	for {
		msg, err := dispatcher.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}

			dispatcher.logger.Log(ctx, log.LevelError, "unexpected dequeue failure", log.Err(err))
			dispatcher.pauseAfterFailure(ctx)

			continue
		}

		dispatcher.process(ctx, msg)
	}
}

// process drives one message through the retry state machine to a terminal
// state. A panic anywhere in the delivery path (including a misbehaving sink)
// is recovered so a single malformed message can never kill the worker.
func (dispatcher *Dispatcher) process(ctx context.Context, msg *message.Message) {
	start := time.Now()

	defer func() {
		dispatcher.metrics.processingDuration.Record(ctx, time.Since(start).Seconds())
		dispatcher.metrics.queueDepth.Record(ctx, int64(dispatcher.queue.Size()))
	}()

	defer func() {
		if recovered := recover(); recovered != nil {
			dispatcher.logger.Log(ctx, log.LevelError, "panic while processing message",
				log.String("message_id", msg.ID.String()),
				log.Any("panic", recovered),
			)
			dispatcher.pauseAfterFailure(ctx)
		}
	}()

	for {
		receiptID, err := dispatcher.attemptDelivery(ctx, msg)
		dispatcher.recordBreakerStatus(ctx)

		if err == nil {
			dispatcher.metrics.processed.Add(ctx, 1)
			dispatcher.logger.Log(ctx, log.LevelDebug, "message delivered",
				log.String("message_id", msg.ID.String()),
				log.String("receipt_id", receiptID),
				log.Int("retry_count", msg.RetryCount),
			)

			return
		}

		msg.MarkAttemptFailed(time.Now())

		if msg.RetryCount >= dispatcher.cfg.MaxRetryAttempts {
			dispatcher.deadLetter(ctx, msg, err)

			return
		}

		delay := backoff.Exponential(dispatcher.cfg.InitialBackoff, msg.RetryCount-1)

		dispatcher.logger.Log(ctx, log.LevelWarn, "delivery failed, backing off",
			log.String("message_id", msg.ID.String()),
			log.Int("retry_count", msg.RetryCount),
			log.Duration("backoff", delay),
			log.Err(err),
		)

		if waitErr := backoff.WaitContext(ctx, delay); waitErr != nil {
			// Cancellation mid-backoff drops the in-flight message: it is
			// neither delivered nor dead-lettered. Accepted data-loss point
			// on shutdown.
			dispatcher.logger.Log(ctx, log.LevelWarn, "in-flight message dropped on shutdown",
				log.String("message_id", msg.ID.String()),
				log.Int("retry_count", msg.RetryCount),
			)

			return
		}

		dispatcher.metrics.retried.Add(ctx, 1)
	}
}

func (dispatcher *Dispatcher) attemptDelivery(ctx context.Context, msg *message.Message) (string, error) {
	attemptCtx, span := dispatcher.tracer.Start(ctx, "dispatch.deliver_attempt")
	defer span.End()

	span.SetAttributes(
		attribute.String("message.id", msg.ID.String()),
		attribute.String("message.correlation_id", msg.CorrelationID),
		attribute.Int("message.attempt", msg.RetryCount+1),
	)

	receiptID, err := dispatcher.deliverer.Deliver(attemptCtx, msg)
	if err != nil {
		span.SetStatus(codes.Error, "delivery failed")
		span.RecordError(err)

		return "", err
	}

	span.SetAttributes(attribute.String("message.receipt_id", receiptID))

	return receiptID, nil
}

func (dispatcher *Dispatcher) deadLetter(ctx context.Context, msg *message.Message, cause error) {
	dlCtx, span := dispatcher.tracer.Start(ctx, "dispatch.dead_letter")
	defer span.End()

	span.SetAttributes(
		attribute.String("message.id", msg.ID.String()),
		attribute.String("message.correlation_id", msg.CorrelationID),
		attribute.Int("message.retry_count", msg.RetryCount),
	)

	dispatcher.sink.Record(dlCtx, msg, cause)
	dispatcher.metrics.deadLettered.Add(dlCtx, 1)
}

func (dispatcher *Dispatcher) recordBreakerStatus(ctx context.Context) {
	status := int64(0)
	if dispatcher.deliverer.IsCircuitOpen() {
		status = 1
	}

	dispatcher.metrics.breakerOpen.Record(ctx, status)
}

// pauseAfterFailure briefly parks the loop after an unexpected error so a
// persistent fault cannot spin the worker hot. Jitter keeps repeated pauses
// from aligning.
func (dispatcher *Dispatcher) pauseAfterFailure(ctx context.Context) {
	pause := dispatcher.cfg.FailurePause + backoff.FullJitter(dispatcher.cfg.FailurePause)
	_ = backoff.WaitContext(ctx, pause)
}
