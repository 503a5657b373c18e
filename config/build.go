package config

import (
	"github.com/gaborage/go-resilient/httpclient"
	"github.com/gaborage/go-resilient/logger"
)

// Policy materializes the retry policy described by the configuration.
func (c *RetryConfig) Policy() httpclient.RetryPolicy {
	return httpclient.RetryPolicy{
		MaxAttempts:          c.MaxAttempts,
		BaseDelay:            c.BaseDelay,
		Multiplier:           c.Multiplier,
		MaxDelay:             c.MaxDelay,
		RetryableStatusCodes: httpclient.StatusCodes(c.StatusCodes...),
		RetryableMethods:     httpclient.Methods(c.Methods...),
	}
}

// Logger builds a logger from the log configuration.
func (c *LogConfig) Logger() logger.Logger {
	return logger.New(c.Level, c.Pretty)
}

// Client builds a ready-to-use HTTP client from the configuration.
// Extra builder options (event sinks, interceptors, transports) are layered
// through the optional customize callback.
func (c *ClientConfig) Client(log logger.Logger, customize ...func(*httpclient.Builder)) httpclient.Client {
	b := httpclient.NewBuilder(log).
		WithTimeout(c.Timeout).
		WithRetryPolicy(c.Retry.Policy())

	for key, value := range c.Headers {
		b = b.WithDefaultHeader(key, value)
	}
	if c.LogPayloads {
		b = b.WithPayloadLogging(c.MaxPayloadLogBytes)
	}
	if c.Retry.Jitter {
		b = b.WithJitter(httpclient.FullJitter(httpclient.NewJitterSource()))
	}
	for _, fn := range customize {
		fn(b)
	}
	return b.Build()
}
