package httpclient

import "time"

// ExecutionStatus identifies the terminal state of one Execute call.
type ExecutionStatus int

const (
	// StatusSucceeded means an attempt produced a success-classified response.
	StatusSucceeded ExecutionStatus = iota
	// StatusExhausted means the attempt budget ran out on retryable failures.
	StatusExhausted
	// StatusFailed means an attempt failed terminally and was not retried.
	StatusFailed
	// StatusCancelled means caller cancellation aborted the execution.
	StatusCancelled
)

// String returns the status name for logs and events.
func (s ExecutionStatus) String() string {
	switch s {
	case StatusSucceeded:
		return "succeeded"
	case StatusExhausted:
		return "exhausted"
	case StatusFailed:
		return "failed"
	case StatusCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Attempt is the read-only record of one transport try within an execution.
type Attempt struct {
	// Index is the 0-based position of the attempt.
	Index int
	// StartedAt is when the transport call was issued.
	StartedAt time.Time
	// Outcome is the raw result of the transport call.
	Outcome Outcome
	// DelayBeforeNext is the backoff scheduled after this attempt; zero when
	// the attempt was the last one.
	DelayBeforeNext time.Duration
}

// ExecutionResult is the single terminal outcome of one Execute call.
// Exactly one variant is produced: Response is set iff Status is
// StatusSucceeded, Err is set otherwise.
type ExecutionResult struct {
	Status   ExecutionStatus
	Response *Response
	Err      error
	// Attempts is the number of transport calls consumed.
	Attempts int
}
