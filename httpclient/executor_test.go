package httpclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	nethttp "net/http"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/gaborage/go-resilient/logger"
)

const testURL = "http://upstream.local/resource"

// createTestLogger creates a logger that discards output
func createTestLogger() logger.Logger {
	return logger.NewWithOutput("info", io.Discard)
}

// stubTransport scripts transport behavior per call, 1-based.
type stubTransport struct {
	calls   int32
	respond func(call int, req *nethttp.Request) (*nethttp.Response, error)
}

func (t *stubTransport) Send(_ context.Context, req *nethttp.Request) (*nethttp.Response, error) {
	call := int(atomic.AddInt32(&t.calls, 1))
	return t.respond(call, req)
}

func (t *stubTransport) callCount() int {
	return int(atomic.LoadInt32(&t.calls))
}

func stubResponse(status int, body string) *nethttp.Response {
	return &nethttp.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     make(nethttp.Header),
	}
}

func alwaysStatus(status int) *stubTransport {
	return &stubTransport{respond: func(_ int, _ *nethttp.Request) (*nethttp.Response, error) {
		return stubResponse(status, "body"), nil
	}}
}

func alwaysError(err error) *stubTransport {
	return &stubTransport{respond: func(_ int, _ *nethttp.Request) (*nethttp.Response, error) {
		return nil, err
	}}
}

// recordingSink captures events in emission order.
type recordingSink struct {
	mu        sync.Mutex
	order     []string
	started   []AttemptStartedEvent
	failed    []AttemptFailedEvent
	backoff   []BackoffScheduledEvent
	completed []ExecutionCompletedEvent
}

func (s *recordingSink) AttemptStarted(_ context.Context, e AttemptStartedEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.order = append(s.order, fmt.Sprintf("started:%d", e.Index))
	s.started = append(s.started, e)
}

func (s *recordingSink) AttemptFailed(_ context.Context, e AttemptFailedEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.order = append(s.order, fmt.Sprintf("failed:%d:%s", e.Index, e.Verdict))
	s.failed = append(s.failed, e)
}

func (s *recordingSink) BackoffScheduled(_ context.Context, e BackoffScheduledEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.order = append(s.order, fmt.Sprintf("backoff:%d", e.Index))
	s.backoff = append(s.backoff, e)
}

func (s *recordingSink) ExecutionCompleted(_ context.Context, e ExecutionCompletedEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.order = append(s.order, "completed:"+e.Result.Status.String())
	s.completed = append(s.completed, e)
}

// fastPolicy keeps test backoffs near-instant.
func fastPolicy(maxAttempts int) RetryPolicy {
	p := DefaultRetryPolicy()
	p.MaxAttempts = maxAttempts
	p.BaseDelay = time.Millisecond
	return p
}

func newTestExecutor(transport Transport, policy RetryPolicy, opts ...ExecutorOption) *Executor {
	all := append([]ExecutorOption{WithTransport(transport), WithPolicy(policy)}, opts...)
	return NewExecutor(createTestLogger(), all...)
}

func TestExecuteSucceedsFirstAttempt(t *testing.T) {
	transport := alwaysStatus(200)
	sink := &recordingSink{}
	exec := newTestExecutor(transport, fastPolicy(3), WithEventSink(sink))

	res := exec.Execute(context.Background(), nethttp.MethodGet, &Request{URL: testURL})

	assert.Equal(t, StatusSucceeded, res.Status)
	require.NotNil(t, res.Response)
	assert.Equal(t, 200, res.Response.StatusCode)
	assert.Equal(t, []byte("body"), res.Response.Body)
	assert.Equal(t, 1, res.Attempts)
	assert.NoError(t, res.Err)
	assert.Equal(t, 1, transport.callCount())
	assert.Empty(t, sink.backoff, "success on first attempt must schedule no backoff")
}

func TestExecuteExhaustsBudgetOnRetryableStatus(t *testing.T) {
	transport := alwaysStatus(503)
	exec := newTestExecutor(transport, fastPolicy(3))

	res := exec.Execute(context.Background(), nethttp.MethodGet, &Request{URL: testURL})

	assert.Equal(t, StatusExhausted, res.Status)
	assert.Nil(t, res.Response)
	assert.Equal(t, 3, res.Attempts)
	assert.Equal(t, 3, transport.callCount(), "exactly MaxAttempts transport calls")

	require.Error(t, res.Err)
	assert.True(t, IsErrorType(res.Err, ExhaustedError))
	attempts, ok := ExhaustedAttempts(res.Err)
	require.True(t, ok)
	assert.Equal(t, 3, attempts)
	assert.True(t, IsHTTPStatusError(res.Err, 503))
}

func TestExecuteTerminalStatusFailsFast(t *testing.T) {
	transport := alwaysStatus(404)
	exec := newTestExecutor(transport, fastPolicy(5))

	res := exec.Execute(context.Background(), nethttp.MethodGet, &Request{URL: testURL})

	assert.Equal(t, StatusFailed, res.Status)
	assert.Equal(t, 1, res.Attempts, "terminal failures must not consume further retries")
	assert.Equal(t, 1, transport.callCount())
	assert.True(t, IsErrorType(res.Err, TerminalError))
	assert.True(t, IsHTTPStatusError(res.Err, 404))
}

func TestExecuteRecoversAfterRetryableFailures(t *testing.T) {
	transport := &stubTransport{respond: func(call int, _ *nethttp.Request) (*nethttp.Response, error) {
		if call < 3 {
			return stubResponse(503, "unavailable"), nil
		}
		return stubResponse(200, "ok"), nil
	}}
	exec := newTestExecutor(transport, fastPolicy(3))

	res := exec.Execute(context.Background(), nethttp.MethodGet, &Request{URL: testURL})

	assert.Equal(t, StatusSucceeded, res.Status)
	assert.Equal(t, 3, res.Attempts)
	assert.Equal(t, 3, res.Response.Stats.Attempts)
}

func TestExecuteTransportErrorExhausted(t *testing.T) {
	transport := alwaysError(errors.New("connection refused"))
	exec := newTestExecutor(transport, fastPolicy(2))

	res := exec.Execute(context.Background(), nethttp.MethodGet, &Request{URL: testURL})

	assert.Equal(t, StatusExhausted, res.Status)
	assert.Equal(t, 2, res.Attempts)
	assert.True(t, IsErrorType(errors.Unwrap(res.Err), NetworkError))
}

func TestExecutePostTransportErrorIsTerminal(t *testing.T) {
	transport := alwaysError(errors.New("connection reset"))
	exec := newTestExecutor(transport, fastPolicy(5))

	res := exec.Execute(context.Background(), nethttp.MethodPost, &Request{URL: testURL, Body: []byte(`{}`)})

	assert.Equal(t, StatusFailed, res.Status)
	assert.Equal(t, 1, res.Attempts)
	assert.Equal(t, 1, transport.callCount())
	assert.True(t, IsErrorType(res.Err, TerminalError))
	assert.True(t, IsErrorType(errors.Unwrap(res.Err), NetworkError))
}

type fakeTimeoutError struct{}

func (fakeTimeoutError) Error() string   { return "i/o timeout" }
func (fakeTimeoutError) Timeout() bool   { return true }
func (fakeTimeoutError) Temporary() bool { return true }

func TestExecuteTimeoutClassifiedRetryable(t *testing.T) {
	transport := alwaysError(fakeTimeoutError{})
	exec := newTestExecutor(transport, fastPolicy(2))

	res := exec.Execute(context.Background(), nethttp.MethodGet, &Request{URL: testURL})

	assert.Equal(t, StatusExhausted, res.Status)
	assert.True(t, IsErrorType(errors.Unwrap(res.Err), TimeoutError))
}

func TestExecuteCancelDuringBackoff(t *testing.T) {
	transport := alwaysStatus(503)
	policy := fastPolicy(3)
	policy.BaseDelay = 500 * time.Millisecond

	sink := &recordingSink{}
	exec := newTestExecutor(transport, policy, WithEventSink(sink))

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	start := time.Now()
	res := exec.Execute(ctx, nethttp.MethodGet, &Request{URL: testURL})

	assert.Equal(t, StatusCancelled, res.Status)
	assert.True(t, IsErrorType(res.Err, CancelledError))
	assert.ErrorIs(t, res.Err, context.Canceled)
	assert.Equal(t, 1, res.Attempts, "attempt count frozen at its pre-wait value")
	assert.Equal(t, 1, transport.callCount())
	assert.Less(t, time.Since(start), 400*time.Millisecond, "cancellation must cut the wait short")
}

func TestExecuteCancelDuringSend(t *testing.T) {
	transport := &stubTransport{respond: nil}
	transport.respond = func(_ int, req *nethttp.Request) (*nethttp.Response, error) {
		<-req.Context().Done()
		return nil, req.Context().Err()
	}
	exec := newTestExecutor(transport, fastPolicy(3))

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	res := exec.Execute(ctx, nethttp.MethodGet, &Request{URL: testURL})

	assert.Equal(t, StatusCancelled, res.Status)
	assert.True(t, IsErrorType(res.Err, CancelledError))
	assert.Equal(t, 0, res.Attempts)
}

func TestExecuteDeadlineWinsOverRetry(t *testing.T) {
	transport := alwaysStatus(503)
	policy := fastPolicy(10)
	policy.BaseDelay = 100 * time.Millisecond

	exec := newTestExecutor(transport, policy)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	res := exec.Execute(ctx, nethttp.MethodGet, &Request{URL: testURL})

	assert.Equal(t, StatusCancelled, res.Status)
	assert.ErrorIs(t, res.Err, context.DeadlineExceeded)
}

func TestExecuteEventOrder(t *testing.T) {
	transport := &stubTransport{respond: func(call int, _ *nethttp.Request) (*nethttp.Response, error) {
		if call == 1 {
			return stubResponse(500, "boom"), nil
		}
		return stubResponse(200, "ok"), nil
	}}
	sink := &recordingSink{}
	exec := newTestExecutor(transport, fastPolicy(3), WithEventSink(sink))

	res := exec.Execute(context.Background(), nethttp.MethodGet, &Request{URL: testURL})
	require.Equal(t, StatusSucceeded, res.Status)

	assert.Equal(t, []string{
		"started:0",
		"failed:0:retryable",
		"backoff:0",
		"started:1",
		"completed:succeeded",
	}, sink.order)

	require.Len(t, sink.started, 2)
	assert.Equal(t, nethttp.MethodGet, sink.started[0].Method)
	assert.Equal(t, testURL, sink.started[0].URL)

	require.Len(t, sink.failed, 1)
	assert.Equal(t, 500, sink.failed[0].Outcome.StatusCode)

	require.Len(t, sink.completed, 1)
	assert.Len(t, sink.completed[0].Attempts, 2)
	assert.Equal(t, time.Millisecond, sink.completed[0].Attempts[0].DelayBeforeNext)
	assert.Equal(t, time.Duration(0), sink.completed[0].Attempts[1].DelayBeforeNext)
}

type panickingSink struct{ NopSink }

func (panickingSink) AttemptStarted(context.Context, AttemptStartedEvent) {
	panic("sink exploded")
}

func TestExecuteSinkPanicDoesNotAbortLoop(t *testing.T) {
	transport := alwaysStatus(200)
	exec := newTestExecutor(transport, fastPolicy(3), WithEventSink(panickingSink{}))

	res := exec.Execute(context.Background(), nethttp.MethodGet, &Request{URL: testURL})

	assert.Equal(t, StatusSucceeded, res.Status)
}

func TestExecuteJitteredBackoffStaysBelowComputedDelay(t *testing.T) {
	transport := alwaysStatus(503)
	policy := fastPolicy(3)
	policy.BaseDelay = 50 * time.Millisecond
	policy.Multiplier = 1

	sink := &recordingSink{}
	jitter := FullJitter(rand.New(rand.NewPCG(42, 42)))
	exec := newTestExecutor(transport, policy, WithEventSink(sink), WithJitter(jitter))

	res := exec.Execute(context.Background(), nethttp.MethodGet, &Request{URL: testURL})
	require.Equal(t, StatusExhausted, res.Status)

	require.Len(t, sink.backoff, 2)
	for _, e := range sink.backoff {
		assert.GreaterOrEqual(t, e.Delay, time.Duration(0))
		assert.Less(t, e.Delay, 50*time.Millisecond)
	}
}

func TestExecuteValidation(t *testing.T) {
	transport := alwaysStatus(200)
	exec := newTestExecutor(transport, fastPolicy(3))

	t.Run("nil request", func(t *testing.T) {
		res := exec.Execute(context.Background(), nethttp.MethodGet, nil)
		assert.Equal(t, StatusFailed, res.Status)
		assert.True(t, IsErrorType(res.Err, ValidationError))
	})

	t.Run("empty URL", func(t *testing.T) {
		res := exec.Execute(context.Background(), nethttp.MethodGet, &Request{})
		assert.Equal(t, StatusFailed, res.Status)
		assert.True(t, IsErrorType(res.Err, ValidationError))
	})

	assert.Equal(t, 0, transport.callCount())
}

func TestExecuteRequestInterceptorErrorIsTerminal(t *testing.T) {
	transport := alwaysStatus(200)
	cfg := defaultConfig()
	cfg.Retry = fastPolicy(5)
	cfg.RequestInterceptors = []RequestInterceptor{
		func(_ context.Context, _ *nethttp.Request) error {
			return errors.New("auth token refresh failed")
		},
	}
	exec := NewExecutor(createTestLogger(), WithConfig(cfg), WithTransport(transport))

	res := exec.Execute(context.Background(), nethttp.MethodGet, &Request{URL: testURL})

	assert.Equal(t, StatusFailed, res.Status)
	assert.True(t, IsErrorType(res.Err, InterceptorError))
	assert.Equal(t, 0, transport.callCount())
}

func TestExecuteResponseInterceptorErrorIsTerminal(t *testing.T) {
	transport := alwaysStatus(200)
	cfg := defaultConfig()
	cfg.Retry = fastPolicy(5)
	cfg.ResponseInterceptors = []ResponseInterceptor{
		func(_ context.Context, _ *nethttp.Request, _ *nethttp.Response) error {
			return errors.New("signature check failed")
		},
	}
	exec := NewExecutor(createTestLogger(), WithConfig(cfg), WithTransport(transport))

	res := exec.Execute(context.Background(), nethttp.MethodGet, &Request{URL: testURL})

	assert.Equal(t, StatusFailed, res.Status)
	assert.True(t, IsErrorType(res.Err, InterceptorError))
	assert.Equal(t, 1, transport.callCount())
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("stream reset") }
func (failingReader) Close() error             { return nil }

func TestExecuteBodyReadFailureIsRetried(t *testing.T) {
	transport := &stubTransport{respond: func(call int, _ *nethttp.Request) (*nethttp.Response, error) {
		if call == 1 {
			return &nethttp.Response{StatusCode: 200, Body: failingReader{}, Header: make(nethttp.Header)}, nil
		}
		return stubResponse(200, "ok"), nil
	}}
	exec := newTestExecutor(transport, fastPolicy(3))

	res := exec.Execute(context.Background(), nethttp.MethodGet, &Request{URL: testURL})

	assert.Equal(t, StatusSucceeded, res.Status)
	assert.Equal(t, 2, res.Attempts)
}

func TestExecuteRequestIDSharedAcrossAttempts(t *testing.T) {
	var mu sync.Mutex
	var ids []string

	transport := &stubTransport{respond: func(call int, req *nethttp.Request) (*nethttp.Response, error) {
		mu.Lock()
		ids = append(ids, req.Header.Get(HeaderXRequestID))
		mu.Unlock()
		if call < 3 {
			return stubResponse(503, "unavailable"), nil
		}
		return stubResponse(200, "ok"), nil
	}}

	cfg := defaultConfig()
	cfg.Retry = fastPolicy(3)
	cfg.RequestInterceptors = []RequestInterceptor{NewRequestIDInterceptor()}
	exec := NewExecutor(createTestLogger(), WithConfig(cfg), WithTransport(transport))

	res := exec.Execute(context.Background(), nethttp.MethodGet, &Request{URL: testURL})
	require.Equal(t, StatusSucceeded, res.Status)

	require.Len(t, ids, 3)
	assert.NotEmpty(t, ids[0])
	assert.Equal(t, ids[0], ids[1])
	assert.Equal(t, ids[0], ids[2])
}

func TestExecuteDeterministicRepeat(t *testing.T) {
	run := func() ExecutionResult {
		exec := newTestExecutor(alwaysStatus(500), fastPolicy(3))
		return exec.Execute(context.Background(), nethttp.MethodGet, &Request{URL: testURL})
	}

	first := run()
	second := run()

	assert.Equal(t, first.Status, second.Status)
	assert.Equal(t, first.Attempts, second.Attempts)
	assert.Equal(t, first.Err.Error(), second.Err.Error())
}

func TestExecuteConcurrentInvocations(t *testing.T) {
	transport := &stubTransport{respond: func(_ int, req *nethttp.Request) (*nethttp.Response, error) {
		if strings.Contains(req.URL.Path, "flaky") {
			return stubResponse(503, "unavailable"), nil
		}
		return stubResponse(200, "ok"), nil
	}}
	exec := newTestExecutor(transport, fastPolicy(2))

	var g errgroup.Group
	for i := 0; i < 8; i++ {
		flaky := i%2 == 0
		g.Go(func() error {
			url := "http://upstream.local/steady"
			if flaky {
				url = "http://upstream.local/flaky"
			}
			res := exec.Execute(context.Background(), nethttp.MethodGet, &Request{URL: url})
			if flaky && res.Status != StatusExhausted {
				return fmt.Errorf("flaky request: got status %s", res.Status)
			}
			if !flaky && res.Status != StatusSucceeded {
				return fmt.Errorf("steady request: got status %s", res.Status)
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
}

func TestExecutionStatusString(t *testing.T) {
	assert.Equal(t, "succeeded", StatusSucceeded.String())
	assert.Equal(t, "exhausted", StatusExhausted.String())
	assert.Equal(t, "failed", StatusFailed.String())
	assert.Equal(t, "cancelled", StatusCancelled.String())
	assert.Equal(t, "unknown", ExecutionStatus(99).String())
}
