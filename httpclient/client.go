package httpclient

import (
	"context"
	nethttp "net/http"
	"time"

	"github.com/gaborage/go-resilient/logger"
)

// client implements the Client interface on top of an Executor.
type client struct {
	exec *Executor
}

// NewClient creates a new REST client with default configuration
func NewClient(log logger.Logger) Client {
	return &client{exec: NewExecutor(log)}
}

// Builder provides a fluent interface for configuring the REST client
type Builder struct {
	config    *Config
	logger    logger.Logger
	transport Transport
	sink      EventSink
	jitter    Jitter
}

// NewBuilder creates a new client builder
func NewBuilder(log logger.Logger) *Builder {
	return &Builder{
		config: defaultConfig(),
		logger: log,
	}
}

// WithTimeout sets the per-attempt request timeout
func (b *Builder) WithTimeout(timeout time.Duration) *Builder {
	b.config.Timeout = timeout
	return b
}

// WithRetryPolicy sets the retry policy
func (b *Builder) WithRetryPolicy(p RetryPolicy) *Builder {
	b.config.Retry = p
	return b
}

// WithBasicAuth sets basic authentication credentials
func (b *Builder) WithBasicAuth(username, password string) *Builder {
	b.config.BasicAuth = &BasicAuth{
		Username: username,
		Password: password,
	}
	return b
}

// WithDefaultHeader adds a default header that will be sent with all requests
func (b *Builder) WithDefaultHeader(key, value string) *Builder {
	b.config.DefaultHeaders[key] = value
	return b
}

// WithRequestInterceptor adds a request interceptor
func (b *Builder) WithRequestInterceptor(interceptor RequestInterceptor) *Builder {
	b.config.RequestInterceptors = append(b.config.RequestInterceptors, interceptor)
	return b
}

// WithResponseInterceptor adds a response interceptor
func (b *Builder) WithResponseInterceptor(interceptor ResponseInterceptor) *Builder {
	b.config.ResponseInterceptors = append(b.config.ResponseInterceptors, interceptor)
	return b
}

// WithEventSink sets the sink receiving retry events
func (b *Builder) WithEventSink(sink EventSink) *Builder {
	b.sink = sink
	return b
}

// WithTransport replaces the underlying transport
func (b *Builder) WithTransport(t Transport) *Builder {
	b.transport = t
	return b
}

// WithJitter applies a randomness source to computed backoff delays
func (b *Builder) WithJitter(j Jitter) *Builder {
	b.jitter = j
	return b
}

// WithPayloadLogging enables debug logging of request/response payloads,
// capped at maxBytes per payload when maxBytes > 0.
func (b *Builder) WithPayloadLogging(maxBytes int) *Builder {
	b.config.LogPayloads = true
	b.config.MaxPayloadLogBytes = maxBytes
	return b
}

// Build creates the REST client with the configured options
func (b *Builder) Build() Client {
	opts := []ExecutorOption{WithConfig(b.config)}
	if b.transport != nil {
		opts = append(opts, WithTransport(b.transport))
	} else {
		opts = append(opts, WithTransport(NewNetTransport(&nethttp.Client{Timeout: b.config.Timeout})))
	}
	if b.sink != nil {
		opts = append(opts, WithEventSink(b.sink))
	}
	if b.jitter != nil {
		opts = append(opts, WithJitter(b.jitter))
	}
	return &client{exec: NewExecutor(b.logger, opts...)}
}

// Get performs a GET request
func (c *client) Get(ctx context.Context, req *Request) (*Response, error) {
	return c.Do(ctx, nethttp.MethodGet, req)
}

// Post performs a POST request
func (c *client) Post(ctx context.Context, req *Request) (*Response, error) {
	return c.Do(ctx, nethttp.MethodPost, req)
}

// Put performs a PUT request
func (c *client) Put(ctx context.Context, req *Request) (*Response, error) {
	return c.Do(ctx, nethttp.MethodPut, req)
}

// Patch performs a PATCH request
func (c *client) Patch(ctx context.Context, req *Request) (*Response, error) {
	return c.Do(ctx, nethttp.MethodPatch, req)
}

// Delete performs a DELETE request
func (c *client) Delete(ctx context.Context, req *Request) (*Response, error) {
	return c.Do(ctx, nethttp.MethodDelete, req)
}

// Do performs an HTTP request with the specified method. The retry loop is
// fully handled by the executor; the returned error is typed so callers can
// distinguish exhausted, terminal, and cancelled outcomes without control
// flow through panics or sentinel checks.
func (c *client) Do(ctx context.Context, method string, req *Request) (*Response, error) {
	res := c.exec.Execute(ctx, method, req)
	if res.Status == StatusSucceeded {
		return res.Response, nil
	}
	return nil, res.Err
}
