package httpclient

import (
	"errors"
	"fmt"
	"time"
)

// ClientError represents different types of REST client errors
type ClientError interface {
	error
	Type() ErrorType
}

// ErrorType defines the category of client error
type ErrorType string

const (
	NetworkError     ErrorType = "network"
	TimeoutError     ErrorType = "timeout"
	HTTPError        ErrorType = "http"
	ValidationError  ErrorType = "validation"
	InterceptorError ErrorType = "interceptor"
	CancelledError   ErrorType = "cancelled"
	ExhaustedError   ErrorType = "exhausted"
	TerminalError    ErrorType = "terminal"
)

// networkError represents network-related errors
type networkError struct {
	message string
	wrapped error
}

func (e *networkError) Error() string {
	if e.wrapped != nil {
		return fmt.Sprintf("network error: %s: %v", e.message, e.wrapped)
	}
	return fmt.Sprintf("network error: %s", e.message)
}

func (e *networkError) Type() ErrorType {
	return NetworkError
}

func (e *networkError) Unwrap() error {
	return e.wrapped
}

// timeoutError represents timeout-related errors
type timeoutError struct {
	message string
	timeout time.Duration
}

func (e *timeoutError) Error() string {
	return fmt.Sprintf("timeout error: %s (timeout: %v)", e.message, e.timeout)
}

func (e *timeoutError) Type() ErrorType {
	return TimeoutError
}

// httpError represents HTTP status-related errors
type httpError struct {
	message    string
	statusCode int
	body       []byte
}

func (e *httpError) Error() string {
	return fmt.Sprintf("HTTP error: %s (status: %d)", e.message, e.statusCode)
}

func (e *httpError) Type() ErrorType {
	return HTTPError
}

func (e *httpError) StatusCode() int {
	return e.statusCode
}

func (e *httpError) Body() []byte {
	return e.body
}

// validationError represents request validation errors
type validationError struct {
	message string
	field   string
}

func (e *validationError) Error() string {
	if e.field != "" {
		return fmt.Sprintf("validation error: %s (field: %s)", e.message, e.field)
	}
	return fmt.Sprintf("validation error: %s", e.message)
}

func (e *validationError) Type() ErrorType {
	return ValidationError
}

// interceptorError represents interceptor-related errors
type interceptorError struct {
	message string
	wrapped error
	stage   string
}

func (e *interceptorError) Error() string {
	return fmt.Sprintf("interceptor error: %s (stage: %s): %v", e.message, e.stage, e.wrapped)
}

func (e *interceptorError) Type() ErrorType {
	return InterceptorError
}

func (e *interceptorError) Unwrap() error {
	return e.wrapped
}

// cancelledError reports that caller cancellation aborted the execution,
// either mid-flight or during a backoff wait.
type cancelledError struct {
	cause error
}

func (e *cancelledError) Error() string {
	return fmt.Sprintf("execution cancelled: %v", e.cause)
}

func (e *cancelledError) Type() ErrorType {
	return CancelledError
}

func (e *cancelledError) Unwrap() error {
	return e.cause
}

// retriesExhaustedError reports that the attempt budget was consumed without
// a success; it carries the failure of the last attempt.
type retriesExhaustedError struct {
	attempts int
	last     error
}

func (e *retriesExhaustedError) Error() string {
	return fmt.Sprintf("retries exhausted after %d attempts: %v", e.attempts, e.last)
}

func (e *retriesExhaustedError) Type() ErrorType {
	return ExhaustedError
}

func (e *retriesExhaustedError) Unwrap() error {
	return e.last
}

func (e *retriesExhaustedError) Attempts() int {
	return e.attempts
}

// terminalError reports a failure classified as non-retryable regardless of
// remaining budget.
type terminalError struct {
	underlying error
}

func (e *terminalError) Error() string {
	return fmt.Sprintf("non-retryable failure: %v", e.underlying)
}

func (e *terminalError) Type() ErrorType {
	return TerminalError
}

func (e *terminalError) Unwrap() error {
	return e.underlying
}

// NewNetworkError creates a new network error
func NewNetworkError(message string, wrapped error) ClientError {
	return &networkError{
		message: message,
		wrapped: wrapped,
	}
}

// NewTimeoutError creates a new timeout error
func NewTimeoutError(message string, timeout time.Duration) ClientError {
	return &timeoutError{
		message: message,
		timeout: timeout,
	}
}

// NewHTTPError creates a new HTTP error
func NewHTTPError(message string, statusCode int, body []byte) ClientError {
	return &httpError{
		message:    message,
		statusCode: statusCode,
		body:       body,
	}
}

// NewValidationError creates a new validation error
func NewValidationError(message, field string) ClientError {
	return &validationError{
		message: message,
		field:   field,
	}
}

// NewInterceptorError creates a new interceptor error
func NewInterceptorError(message, stage string, wrapped error) ClientError {
	return &interceptorError{
		message: message,
		wrapped: wrapped,
		stage:   stage,
	}
}

// NewCancelledError creates a new cancellation error
func NewCancelledError(cause error) ClientError {
	return &cancelledError{cause: cause}
}

// NewRetriesExhaustedError creates a new retries-exhausted error
func NewRetriesExhaustedError(attempts int, last error) ClientError {
	return &retriesExhaustedError{
		attempts: attempts,
		last:     last,
	}
}

// NewTerminalError wraps a failure that must not be retried
func NewTerminalError(underlying error) ClientError {
	return &terminalError{underlying: underlying}
}

// IsErrorType checks if an error is of a specific type
func IsErrorType(err error, errorType ErrorType) bool {
	if err == nil {
		return false
	}
	var clientErr ClientError
	if errors.As(err, &clientErr) {
		return clientErr.Type() == errorType
	}
	return false
}

// IsHTTPStatusError checks if an error is an HTTP error with a specific status code
func IsHTTPStatusError(err error, statusCode int) bool {
	var httpErr *httpError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode() == statusCode
	}
	return false
}

// ExhaustedAttempts returns the attempt count when err is a retries-exhausted
// error.
func ExhaustedAttempts(err error) (int, bool) {
	var exhausted *retriesExhaustedError
	if errors.As(err, &exhausted) {
		return exhausted.Attempts(), true
	}
	return 0, false
}

// IsSuccessStatus checks if a status code represents success (2xx)
func IsSuccessStatus(statusCode int) bool {
	return statusCode >= 200 && statusCode < 300
}
