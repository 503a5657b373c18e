package httpclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	nethttp "net/http"
	"sync/atomic"
	"time"

	"github.com/gaborage/go-resilient/logger"
	resilienttrace "github.com/gaborage/go-resilient/trace"
)

// Executor orchestrates the attempt loop: issue the request through the
// transport, classify the outcome, consult the budget, back off, repeat or
// terminate. Every Execute call is a self-contained sequential loop; an
// Executor is safe for concurrent use because all mutable state is local to
// the invocation.
type Executor struct {
	transport Transport
	config    *Config
	sink      EventSink
	log       logger.Logger
	jitter    Jitter
	callCount int64
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithConfig replaces the whole client configuration.
func WithConfig(cfg *Config) ExecutorOption {
	return func(e *Executor) {
		if cfg != nil {
			e.config = cfg
		}
	}
}

// WithPolicy sets the retry policy.
func WithPolicy(p RetryPolicy) ExecutorOption {
	return func(e *Executor) {
		e.config.Retry = p
	}
}

// WithTransport sets the transport used for attempts.
func WithTransport(t Transport) ExecutorOption {
	return func(e *Executor) {
		if t != nil {
			e.transport = t
		}
	}
}

// WithEventSink sets the sink receiving retry events.
func WithEventSink(s EventSink) ExecutorOption {
	return func(e *Executor) {
		if s != nil {
			e.sink = s
		}
	}
}

// WithJitter sets the randomness source applied to computed backoff delays.
// Without it backoff is fully deterministic.
func WithJitter(j Jitter) ExecutorOption {
	return func(e *Executor) {
		e.jitter = j
	}
}

func defaultConfig() *Config {
	return &Config{
		Timeout:              DefaultTimeout,
		Retry:                DefaultRetryPolicy(),
		RequestInterceptors:  []RequestInterceptor{},
		ResponseInterceptors: []ResponseInterceptor{},
		DefaultHeaders:       make(map[string]string),
	}
}

// NewExecutor creates an executor with the default configuration, a
// net/http transport, and a nop event sink.
func NewExecutor(log logger.Logger, opts ...ExecutorOption) *Executor {
	e := &Executor{
		config: defaultConfig(),
		sink:   NopSink{},
		log:    log,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.transport == nil {
		e.transport = NewNetTransport(&nethttp.Client{Timeout: e.config.Timeout})
	}
	e.config.Retry = e.config.Retry.normalized()
	return e
}

// netTransport adapts *net/http.Client to the Transport seam.
type netTransport struct {
	client *nethttp.Client
}

// NewNetTransport wraps a net/http client as a Transport. A nil client gets
// the default timeout.
func NewNetTransport(client *nethttp.Client) Transport {
	if client == nil {
		client = &nethttp.Client{Timeout: DefaultTimeout}
	}
	return &netTransport{client: client}
}

func (t *netTransport) Send(ctx context.Context, req *nethttp.Request) (*nethttp.Response, error) {
	return t.client.Do(req.WithContext(ctx))
}

// Execute runs the attempt loop for one request and returns exactly one
// terminal result. The request is never mutated; the underlying
// http.Request is rebuilt on every attempt.
func (e *Executor) Execute(ctx context.Context, method string, req *Request) ExecutionResult {
	if err := e.validateRequest(req); err != nil {
		return e.complete(ctx, ExecutionResult{Status: StatusFailed, Err: err}, nil)
	}

	// All attempts of this execution share one request ID.
	ctx = resilienttrace.WithRequestID(ctx, resilienttrace.EnsureRequestID(ctx))

	start := time.Now()
	callCount := atomic.AddInt64(&e.callCount, 1)
	budget := newRetryBudget(e.config.Retry.MaxAttempts)
	attempts := make([]Attempt, 0, e.config.Retry.MaxAttempts)
	var last error

	for index := 0; ; index++ {
		started := time.Now()
		e.emit(ctx, func() {
			e.sink.AttemptStarted(ctx, AttemptStartedEvent{Index: index, Method: method, URL: req.URL})
		})
		e.logRequest(ctx, method, req, index)

		outcome, resp, failure, abort := e.attempt(ctx, start, callCount, method, req)
		if abort != nil {
			res := ExecutionResult{Status: StatusFailed, Err: abort, Attempts: budget.attemptsMade}
			return e.complete(ctx, res, attempts)
		}
		if outcome.IsTransportError() && ctx.Err() != nil {
			// Cancellation wins over classification; the aborted attempt is
			// not consumed.
			res := ExecutionResult{Status: StatusCancelled, Err: NewCancelledError(ctx.Err()), Attempts: budget.attemptsMade}
			return e.complete(ctx, res, attempts)
		}

		verdict := Classify(outcome, method, &e.config.Retry)
		budget.consume()
		record := Attempt{Index: index, StartedAt: started, Outcome: outcome}

		switch verdict {
		case VerdictSuccess:
			attempts = append(attempts, record)
			resp.Stats = Stats{
				ElapsedTime: time.Since(start),
				Attempts:    budget.attemptsMade,
				CallCount:   callCount,
			}
			e.logResponse(ctx, resp)
			res := ExecutionResult{Status: StatusSucceeded, Response: resp, Attempts: budget.attemptsMade}
			return e.complete(ctx, res, attempts)

		case VerdictTerminal:
			if failure == nil {
				failure = statusFailure(outcome.StatusCode, resp)
			}
			attempts = append(attempts, record)
			e.emit(ctx, func() {
				e.sink.AttemptFailed(ctx, AttemptFailedEvent{Index: index, Verdict: VerdictTerminal, Outcome: outcome, Detail: failure.Error()})
			})
			if resp != nil {
				e.logResponse(ctx, resp)
			}
			res := ExecutionResult{Status: StatusFailed, Err: NewTerminalError(failure), Attempts: budget.attemptsMade}
			return e.complete(ctx, res, attempts)

		default: // VerdictRetryable
			if failure == nil {
				failure = statusFailure(outcome.StatusCode, resp)
			}
			last = failure
			e.emit(ctx, func() {
				e.sink.AttemptFailed(ctx, AttemptFailedEvent{Index: index, Verdict: VerdictRetryable, Outcome: outcome, Detail: failure.Error()})
			})

			if !budget.hasRemaining() {
				attempts = append(attempts, record)
				res := ExecutionResult{Status: StatusExhausted, Err: NewRetriesExhaustedError(budget.attemptsMade, last), Attempts: budget.attemptsMade}
				return e.complete(ctx, res, attempts)
			}

			delay := e.config.Retry.delayFor(index)
			if e.jitter != nil {
				delay = e.jitter(delay)
			}
			record.DelayBeforeNext = delay
			attempts = append(attempts, record)
			e.emit(ctx, func() {
				e.sink.BackoffScheduled(ctx, BackoffScheduledEvent{Index: index, Delay: delay})
			})

			if err := sleepContext(ctx, delay); err != nil {
				res := ExecutionResult{Status: StatusCancelled, Err: NewCancelledError(err), Attempts: budget.attemptsMade}
				return e.complete(ctx, res, attempts)
			}
		}
	}
}

// attempt issues one transport call. It returns the raw outcome plus the
// typed failure matching it, or abort for failures that happen outside the
// transport (request construction, interceptors) and must never be retried.
func (e *Executor) attempt(ctx context.Context, start time.Time, callCount int64, method string, req *Request) (outcome Outcome, resp *Response, failure, abort error) {
	httpReq, err := e.buildRequest(ctx, method, req)
	if err != nil {
		return Outcome{}, nil, nil, err
	}

	httpResp, err := e.transport.Send(ctx, httpReq)
	if err != nil {
		if e.isTimeout(err) {
			return Outcome{Err: err}, nil, NewTimeoutError("request timeout", e.config.Timeout), nil
		}
		return Outcome{Err: err}, nil, NewNetworkError("request execution failed", err), nil
	}

	resp, err = e.buildResponse(ctx, start, callCount, httpReq, httpResp)
	if err != nil {
		if IsErrorType(err, InterceptorError) {
			return Outcome{}, nil, nil, err
		}
		// The response was lost mid-stream; treat it like a transport failure.
		return Outcome{Err: err}, nil, err, nil
	}

	return Outcome{StatusCode: resp.StatusCode}, resp, nil, nil
}

// complete emits the completion event and returns the result unchanged.
func (e *Executor) complete(ctx context.Context, res ExecutionResult, attempts []Attempt) ExecutionResult {
	e.emit(ctx, func() {
		e.sink.ExecutionCompleted(ctx, ExecutionCompletedEvent{Result: res, Attempts: attempts})
	})
	return res
}

// emit shields the attempt loop from sink failures.
func (e *Executor) emit(ctx context.Context, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			e.log.WithContext(ctx).Debug().Interface("panic", r).Msg("event sink panicked")
		}
	}()
	fn()
}

func statusFailure(statusCode int, resp *Response) error {
	var body []byte
	if resp != nil {
		body = resp.Body
	}
	return NewHTTPError(
		fmt.Sprintf("HTTP request failed with status %d", statusCode),
		statusCode,
		body,
	)
}

// sleepContext waits for d or until the context is cancelled, whichever
// comes first. The wait holds no lock and no connection resource.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// validateRequest validates the request before sending
func (e *Executor) validateRequest(req *Request) error {
	if req == nil {
		return NewValidationError("request cannot be nil", "request")
	}
	if req.URL == "" {
		return NewValidationError("URL cannot be empty", "url")
	}
	return nil
}

// applyHeaders applies headers to the HTTP request
func (e *Executor) applyHeaders(httpReq *nethttp.Request, req *Request) {
	// Apply default headers first
	for key, value := range e.config.DefaultHeaders {
		httpReq.Header.Set(key, value)
	}

	// Apply request-specific headers (these override defaults)
	for key, value := range req.Headers {
		httpReq.Header.Set(key, value)
	}

	// Set Content-Type if not already set and body is present
	if httpReq.Header.Get("Content-Type") == "" && req.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
}

// applyAuth applies authentication to the HTTP request
func (e *Executor) applyAuth(httpReq *nethttp.Request, req *Request) {
	// Request-specific auth takes precedence
	auth := req.Auth
	if auth == nil {
		auth = e.config.BasicAuth
	}

	if auth != nil {
		httpReq.SetBasicAuth(auth.Username, auth.Password)
	}
}

// buildRequest constructs an *http.Request, applies headers/auth, and runs request interceptors.
func (e *Executor) buildRequest(ctx context.Context, method string, req *Request) (*nethttp.Request, error) {
	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := nethttp.NewRequestWithContext(ctx, method, req.URL, body)
	if err != nil {
		return nil, NewValidationError(fmt.Sprintf("failed to create HTTP request: %v", err), "request")
	}

	e.applyHeaders(httpReq, req)
	e.applyAuth(httpReq, req)

	if err := e.runRequestInterceptors(ctx, httpReq); err != nil {
		return nil, NewInterceptorError("request interceptor failed", "request", err)
	}
	return httpReq, nil
}

// buildResponse runs response interceptors, reads the body, and builds a Response.
func (e *Executor) buildResponse(ctx context.Context, start time.Time, callCount int64, httpReq *nethttp.Request, httpResp *nethttp.Response) (*Response, error) {
	defer httpResp.Body.Close()

	if err := e.runResponseInterceptors(ctx, httpReq, httpResp); err != nil {
		return nil, NewInterceptorError("response interceptor failed", "response", err)
	}

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, NewNetworkError("failed to read response body", err)
	}

	return &Response{
		StatusCode: httpResp.StatusCode,
		Body:       respBody,
		Headers:    httpResp.Header,
		Stats: Stats{
			ElapsedTime: time.Since(start),
			CallCount:   callCount,
		},
	}, nil
}

func (e *Executor) isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// runRequestInterceptors executes all request interceptors
func (e *Executor) runRequestInterceptors(ctx context.Context, req *nethttp.Request) error {
	for _, interceptor := range e.config.RequestInterceptors {
		if err := interceptor(ctx, req); err != nil {
			return err
		}
	}
	return nil
}

// runResponseInterceptors executes all response interceptors
func (e *Executor) runResponseInterceptors(ctx context.Context, req *nethttp.Request, resp *nethttp.Response) error {
	for _, interceptor := range e.config.ResponseInterceptors {
		if err := interceptor(ctx, req, resp); err != nil {
			return err
		}
	}
	return nil
}

// logRequest logs the outgoing request
func (e *Executor) logRequest(ctx context.Context, method string, req *Request, attempt int) {
	logEvent := e.log.WithContext(ctx).Info().
		Str("direction", "outbound").
		Str("method", method).
		Str("url", req.URL).
		Int("attempt", attempt)

	if e.config.LogPayloads {
		if len(req.Headers) > 0 {
			logEvent = logEvent.Interface("headers", req.Headers)
		}
		if len(req.Body) > 0 {
			logEvent = logEvent.Bytes("body", truncatePayload(req.Body, e.config.MaxPayloadLogBytes))
		}
	}

	logEvent.Msg("REST client request")
}

// logResponse logs the incoming response
func (e *Executor) logResponse(ctx context.Context, resp *Response) {
	logEvent := e.log.WithContext(ctx).Info().
		Str("direction", "inbound").
		Int("status", resp.StatusCode).
		Dur("elapsed", resp.Stats.ElapsedTime).
		Int64("call_count", resp.Stats.CallCount)

	if e.config.LogPayloads && len(resp.Body) > 0 {
		logEvent = logEvent.Bytes("body", truncatePayload(resp.Body, e.config.MaxPayloadLogBytes))
	}

	logEvent.Msg("REST client response")
}

func truncatePayload(b []byte, maxBytes int) []byte {
	if maxBytes > 0 && len(b) > maxBytes {
		return b[:maxBytes]
	}
	return b
}
