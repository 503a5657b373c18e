package httpclient

import (
	"context"
	"time"

	"github.com/gaborage/go-resilient/logger"
)

// AttemptStartedEvent is emitted before each transport call.
type AttemptStartedEvent struct {
	Index  int
	Method string
	URL    string
}

// AttemptFailedEvent is emitted after a failed attempt is classified.
type AttemptFailedEvent struct {
	Index   int
	Verdict Verdict
	Outcome Outcome
	Detail  string
}

// BackoffScheduledEvent is emitted before a backoff wait.
type BackoffScheduledEvent struct {
	Index int
	Delay time.Duration
}

// ExecutionCompletedEvent is emitted exactly once per execution, after the
// terminal state is reached. Attempts is the read-only attempt history.
type ExecutionCompletedEvent struct {
	Result   ExecutionResult
	Attempts []Attempt
}

// EventSink consumes structured retry events. Callbacks arrive in real-time
// attempt order from the goroutine running the execution; implementations
// must not block for long. A panicking sink never aborts the retry loop.
type EventSink interface {
	AttemptStarted(ctx context.Context, e AttemptStartedEvent)
	AttemptFailed(ctx context.Context, e AttemptFailedEvent)
	BackoffScheduled(ctx context.Context, e BackoffScheduledEvent)
	ExecutionCompleted(ctx context.Context, e ExecutionCompletedEvent)
}

// NopSink discards all events.
type NopSink struct{}

func (NopSink) AttemptStarted(context.Context, AttemptStartedEvent)         {}
func (NopSink) AttemptFailed(context.Context, AttemptFailedEvent)           {}
func (NopSink) BackoffScheduled(context.Context, BackoffScheduledEvent)     {}
func (NopSink) ExecutionCompleted(context.Context, ExecutionCompletedEvent) {}

// MultiSink fans events out to every sink, in order.
type MultiSink []EventSink

func (m MultiSink) AttemptStarted(ctx context.Context, e AttemptStartedEvent) {
	for _, s := range m {
		s.AttemptStarted(ctx, e)
	}
}

func (m MultiSink) AttemptFailed(ctx context.Context, e AttemptFailedEvent) {
	for _, s := range m {
		s.AttemptFailed(ctx, e)
	}
}

func (m MultiSink) BackoffScheduled(ctx context.Context, e BackoffScheduledEvent) {
	for _, s := range m {
		s.BackoffScheduled(ctx, e)
	}
}

func (m MultiSink) ExecutionCompleted(ctx context.Context, e ExecutionCompletedEvent) {
	for _, s := range m {
		s.ExecutionCompleted(ctx, e)
	}
}

// LogSink emits retry events through a structured logger.
type LogSink struct {
	log logger.Logger
}

// NewLogSink creates an EventSink backed by the given logger.
func NewLogSink(log logger.Logger) *LogSink {
	return &LogSink{log: log}
}

func (s *LogSink) AttemptStarted(ctx context.Context, e AttemptStartedEvent) {
	s.log.WithContext(ctx).Debug().
		Int("attempt", e.Index).
		Str("method", e.Method).
		Str("url", e.URL).
		Msg("attempt started")
}

func (s *LogSink) AttemptFailed(ctx context.Context, e AttemptFailedEvent) {
	logEvent := s.log.WithContext(ctx).Warn().
		Int("attempt", e.Index).
		Str("verdict", e.Verdict.String()).
		Str("detail", e.Detail)

	if e.Outcome.IsTransportError() {
		logEvent = logEvent.Err(e.Outcome.Err)
	} else {
		logEvent = logEvent.Int("status", e.Outcome.StatusCode)
	}

	logEvent.Msg("attempt failed")
}

func (s *LogSink) BackoffScheduled(ctx context.Context, e BackoffScheduledEvent) {
	s.log.WithContext(ctx).Debug().
		Int("attempt", e.Index).
		Dur("delay", e.Delay).
		Msg("backoff scheduled")
}

func (s *LogSink) ExecutionCompleted(ctx context.Context, e ExecutionCompletedEvent) {
	logEvent := s.log.WithContext(ctx).Info().
		Str("status", e.Result.Status.String()).
		Int("attempts", e.Result.Attempts)

	if e.Result.Err != nil {
		logEvent = logEvent.Err(e.Result.Err)
	}

	logEvent.Msg("execution completed")
}
