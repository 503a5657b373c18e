package httpclient

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// OTelSink is an EventSink that records retry activity through the
// OpenTelemetry metric API. Exporter and provider wiring belong to the
// embedding application; the sink only needs a Meter.
type OTelSink struct {
	attempts   metric.Int64Counter
	failures   metric.Int64Counter
	backoff    metric.Float64Histogram
	executions metric.Int64Counter
}

// NewOTelSink creates the sink's instruments on the given meter.
func NewOTelSink(meter metric.Meter) (*OTelSink, error) {
	attempts, err := meter.Int64Counter(
		"httpclient.retry.attempts",
		metric.WithDescription("Transport attempts issued by the executor"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create attempts counter: %w", err)
	}

	failures, err := meter.Int64Counter(
		"httpclient.retry.attempt_failures",
		metric.WithDescription("Failed attempts by classification verdict"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create failures counter: %w", err)
	}

	backoff, err := meter.Float64Histogram(
		"httpclient.retry.backoff_delay",
		metric.WithDescription("Backoff delay scheduled between attempts"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create backoff histogram: %w", err)
	}

	executions, err := meter.Int64Counter(
		"httpclient.retry.executions",
		metric.WithDescription("Completed executions by terminal status"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create executions counter: %w", err)
	}

	return &OTelSink{
		attempts:   attempts,
		failures:   failures,
		backoff:    backoff,
		executions: executions,
	}, nil
}

func (s *OTelSink) AttemptStarted(ctx context.Context, e AttemptStartedEvent) {
	s.attempts.Add(ctx, 1, metric.WithAttributes(
		attribute.String("http.method", e.Method),
	))
}

func (s *OTelSink) AttemptFailed(ctx context.Context, e AttemptFailedEvent) {
	s.failures.Add(ctx, 1, metric.WithAttributes(
		attribute.String("verdict", e.Verdict.String()),
	))
}

func (s *OTelSink) BackoffScheduled(ctx context.Context, e BackoffScheduledEvent) {
	s.backoff.Record(ctx, float64(e.Delay.Milliseconds()))
}

func (s *OTelSink) ExecutionCompleted(ctx context.Context, e ExecutionCompletedEvent) {
	s.executions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("status", e.Result.Status.String()),
	))
}
