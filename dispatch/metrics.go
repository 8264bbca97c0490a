package dispatch

import (
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

type dispatcherMetrics struct {
	queued             metric.Int64Counter
	processed          metric.Int64Counter
	retried            metric.Int64Counter
	deadLettered       metric.Int64Counter
	processingDuration metric.Float64Histogram
	queueDepth         metric.Int64Gauge
	breakerOpen        metric.Int64Gauge
}

func newDispatcherMetrics(provider metric.MeterProvider) (dispatcherMetrics, error) {
	if provider == nil {
		provider = otel.GetMeterProvider()
	}

	meter := provider.Meter("lib-dispatch.dispatcher")

	var (
		metrics dispatcherMetrics
		err     error
	)

	metrics.queued, err = meter.Int64Counter(
		"dispatch.messages.queued",
		metric.WithDescription("Number of messages accepted into the queue"),
		metric.WithUnit("{message}"),
	)
	if err != nil {
		return dispatcherMetrics{}, fmt.Errorf("create dispatch.messages.queued counter: %w", err)
	}

	metrics.processed, err = meter.Int64Counter(
		"dispatch.messages.processed",
		metric.WithDescription("Number of messages delivered successfully"),
		metric.WithUnit("{message}"),
	)
	if err != nil {
		return dispatcherMetrics{}, fmt.Errorf("create dispatch.messages.processed counter: %w", err)
	}

	metrics.retried, err = meter.Int64Counter(
		"dispatch.messages.retried",
		metric.WithDescription("Number of delivery retries performed"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		return dispatcherMetrics{}, fmt.Errorf("create dispatch.messages.retried counter: %w", err)
	}

	metrics.deadLettered, err = meter.Int64Counter(
		"dispatch.messages.dead_lettered",
		metric.WithDescription("Number of messages routed to the dead letter sink"),
		metric.WithUnit("{message}"),
	)
	if err != nil {
		return dispatcherMetrics{}, fmt.Errorf("create dispatch.messages.dead_lettered counter: %w", err)
	}

	metrics.processingDuration, err = meter.Float64Histogram(
		"dispatch.processing.duration",
		metric.WithDescription("Time from dequeue to terminal state per message"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return dispatcherMetrics{}, fmt.Errorf("create dispatch.processing.duration histogram: %w", err)
	}

	metrics.queueDepth, err = meter.Int64Gauge(
		"dispatch.queue.depth",
		metric.WithDescription("Current number of messages waiting in the queue"),
		metric.WithUnit("{message}"),
	)
	if err != nil {
		return dispatcherMetrics{}, fmt.Errorf("create dispatch.queue.depth gauge: %w", err)
	}

	metrics.breakerOpen, err = meter.Int64Gauge(
		"dispatch.breaker.open",
		metric.WithDescription("Circuit breaker status (1 open, 0 closed)"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return dispatcherMetrics{}, fmt.Errorf("create dispatch.breaker.open gauge: %w", err)
	}

	return metrics, nil
}
