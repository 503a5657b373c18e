// Package httpclient provides a resilient HTTP request executor: a composable
// client that wraps an underlying transport with configurable retry, backoff,
// and failure-classification logic for outbound requests.
//
// Classification
//   - Every attempt outcome (transport error or received status code) is
//     mapped by Classify to one of three verdicts: success, retryable
//     failure, or terminal failure.
//   - Transport errors (connection, DNS, TLS, timeout) are retryable unless
//     the request method is not in RetryPolicy.RetryableMethods; excluded
//     methods fail fast so non-idempotent requests are never replayed
//     unless the caller opted in.
//   - Responses are retryable iff the status code is in
//     RetryPolicy.RetryableStatusCodes. Other 4xx/5xx codes are terminal
//     and fail fast regardless of remaining budget.
//
// Backoff
//   - Exponential: delay = BaseDelay * Multiplier^attemptIndex, optionally
//     capped at MaxDelay.
//   - Deterministic by default. Full jitter is opt-in through an injectable
//     randomness source (WithJitter), keeping the executor testable.
//   - Backoff waits are cancellable; caller cancellation always wins over a
//     retry in progress.
//
// Every execution produces exactly one ExecutionResult variant: succeeded,
// retries exhausted, terminal failure, or cancelled. Structured retry events
// are streamed to an EventSink; sink failures never abort the attempt loop.
//
// Request bodies are re-sent by rebuilding the http.Request on each attempt.
// Interceptor errors are not retried and are surfaced immediately.
package httpclient
