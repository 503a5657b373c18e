package httpclient

// Verdict classifies an attempt outcome.
type Verdict int

const (
	// VerdictSuccess terminates the loop with the received response.
	VerdictSuccess Verdict = iota
	// VerdictRetryable permits another attempt if budget remains.
	VerdictRetryable
	// VerdictTerminal terminates the loop immediately, regardless of budget.
	VerdictTerminal
)

// String returns the verdict name for logs and events.
func (v Verdict) String() string {
	switch v {
	case VerdictSuccess:
		return "success"
	case VerdictRetryable:
		return "retryable"
	case VerdictTerminal:
		return "terminal"
	default:
		return "unknown"
	}
}

// Outcome is the raw result of one transport attempt: either a transport
// error or a received status code, never both.
type Outcome struct {
	// Err is the transport-level failure (connection, DNS, TLS, timeout).
	Err error
	// StatusCode is the received response code; valid only when Err is nil.
	StatusCode int
}

// IsTransportError reports whether the attempt failed before a response
// was received.
func (o Outcome) IsTransportError() bool {
	return o.Err != nil
}

// Classify maps an attempt outcome to a verdict. It is a total, pure
// function: it never fails and consults nothing beyond its arguments.
//
// Transport errors are retryable unless the method is excluded by the
// policy; an excluded method fails terminally so non-idempotent requests
// are never replayed. Responses are retryable iff their code is in the
// policy's retry set; other codes in the 400-599 error range are terminal;
// everything else is success.
func Classify(outcome Outcome, method string, policy *RetryPolicy) Verdict {
	if outcome.IsTransportError() {
		if !policy.retryableMethod(method) {
			return VerdictTerminal
		}
		return VerdictRetryable
	}

	code := outcome.StatusCode
	switch {
	case policy.retryableStatus(code):
		return VerdictRetryable
	case code >= 400 && code <= 599:
		return VerdictTerminal
	default:
		return VerdictSuccess
	}
}
