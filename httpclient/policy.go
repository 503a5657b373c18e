package httpclient

import (
	"net/http"
	"strings"
	"time"
)

const (
	// DefaultTimeout is the default per-attempt request timeout duration
	DefaultTimeout = 30 * time.Second

	// DefaultMaxAttempts is the default total number of attempts (first try included)
	DefaultMaxAttempts = 3

	// DefaultBaseDelay is the default delay before the first retry
	DefaultBaseDelay = 300 * time.Millisecond

	// DefaultMultiplier is the default backoff growth factor
	DefaultMultiplier = 2.0
)

// RetryPolicy is the immutable retry configuration for an executor.
// It is shared read-only across concurrent executions; a zero value is
// normalized to defaults when the executor is built.
type RetryPolicy struct {
	// MaxAttempts is the total attempt budget, including the first try. Must be >= 1.
	MaxAttempts int
	// BaseDelay is the delay before the first retry.
	BaseDelay time.Duration
	// Multiplier is the exponential growth factor. 1 yields constant backoff.
	Multiplier float64
	// MaxDelay caps the computed delay when > 0.
	MaxDelay time.Duration
	// RetryableStatusCodes are response codes worth retrying.
	RetryableStatusCodes map[int]struct{}
	// RetryableMethods are the methods whose transport errors may be retried.
	RetryableMethods map[string]struct{}
}

// DefaultRetryPolicy returns the stock policy: 3 attempts, 300ms base delay,
// doubling backoff, retry on 429/500/502/503/504, GET only.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:          DefaultMaxAttempts,
		BaseDelay:            DefaultBaseDelay,
		Multiplier:           DefaultMultiplier,
		RetryableStatusCodes: StatusCodes(429, 500, 502, 503, 504),
		RetryableMethods:     Methods(http.MethodGet),
	}
}

// StatusCodes builds a status code set for RetryPolicy.RetryableStatusCodes.
func StatusCodes(codes ...int) map[int]struct{} {
	set := make(map[int]struct{}, len(codes))
	for _, c := range codes {
		set[c] = struct{}{}
	}
	return set
}

// Methods builds a method set for RetryPolicy.RetryableMethods.
// Method names are normalized to upper case.
func Methods(methods ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(methods))
	for _, m := range methods {
		set[strings.ToUpper(m)] = struct{}{}
	}
	return set
}

// normalized fills zero fields with defaults so a partially built policy
// never produces a stalled or unbounded loop.
func (p RetryPolicy) normalized() RetryPolicy {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = DefaultMaxAttempts
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = DefaultBaseDelay
	}
	if p.Multiplier < 1 {
		p.Multiplier = DefaultMultiplier
	}
	if p.RetryableStatusCodes == nil {
		p.RetryableStatusCodes = StatusCodes(429, 500, 502, 503, 504)
	}
	if p.RetryableMethods == nil {
		p.RetryableMethods = Methods(http.MethodGet)
	}
	return p
}

func (p *RetryPolicy) retryableStatus(code int) bool {
	_, ok := p.RetryableStatusCodes[code]
	return ok
}

func (p *RetryPolicy) retryableMethod(method string) bool {
	_, ok := p.RetryableMethods[strings.ToUpper(method)]
	return ok
}
