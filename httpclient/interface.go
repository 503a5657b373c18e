package httpclient

import (
	"context"
	nethttp "net/http"
	"time"

	resilienttrace "github.com/gaborage/go-resilient/trace"
)

// HeaderXRequestID is the standard header name for request tracing
const HeaderXRequestID = resilienttrace.HeaderXRequestID

// Client defines the REST client interface for making HTTP requests
type Client interface {
	Get(ctx context.Context, req *Request) (*Response, error)
	Post(ctx context.Context, req *Request) (*Response, error)
	Put(ctx context.Context, req *Request) (*Response, error)
	Patch(ctx context.Context, req *Request) (*Response, error)
	Delete(ctx context.Context, req *Request) (*Response, error)
	Do(ctx context.Context, method string, req *Request) (*Response, error)
}

// Transport issues a single request attempt. It is the only collaborator
// that touches the network; implementations must honor context cancellation
// and deadlines. The zero retry decision lives above this seam.
type Transport interface {
	Send(ctx context.Context, req *nethttp.Request) (*nethttp.Response, error)
}

// Request represents an HTTP request with all necessary data.
// It is never mutated across retry attempts; the underlying http.Request is
// rebuilt from it on every attempt.
type Request struct {
	URL     string
	Headers map[string]string
	Body    []byte
	Auth    *BasicAuth
}

// Response represents an HTTP response with tracking information
type Response struct {
	StatusCode int
	Body       []byte
	Headers    nethttp.Header
	Stats      Stats
}

// Stats contains request execution statistics
type Stats struct {
	ElapsedTime time.Duration
	Attempts    int
	CallCount   int64
}

// BasicAuth contains basic authentication credentials
type BasicAuth struct {
	Username string
	Password string
}

// RequestInterceptor is called before sending the request
type RequestInterceptor func(ctx context.Context, req *nethttp.Request) error

// ResponseInterceptor is called after receiving the response
type ResponseInterceptor func(ctx context.Context, req *nethttp.Request, resp *nethttp.Response) error

// Config holds the REST client configuration
type Config struct {
	Timeout              time.Duration
	Retry                RetryPolicy
	RequestInterceptors  []RequestInterceptor
	ResponseInterceptors []ResponseInterceptor
	BasicAuth            *BasicAuth
	DefaultHeaders       map[string]string
	// LogPayloads enables debug-level logging of headers and body payloads
	LogPayloads bool
	// MaxPayloadLogBytes caps the number of body bytes logged when LogPayloads is enabled
	MaxPayloadLogBytes int
}

// NewRequestIDInterceptor creates a request interceptor that stamps the
// X-Request-ID header from context, generating a new ID when none is present.
// All attempts of one execution share the same ID.
func NewRequestIDInterceptor() RequestInterceptor {
	return func(ctx context.Context, req *nethttp.Request) error {
		if req.Header.Get(HeaderXRequestID) == "" {
			req.Header.Set(HeaderXRequestID, resilienttrace.EnsureRequestID(ctx))
		}
		return nil
	}
}
