// Package config loads and validates the library configuration from layered
// sources: built-in defaults, an optional YAML file, and environment
// variables, in ascending priority.
package config

import "time"

// Config is the root configuration structure.
type Config struct {
	Client ClientConfig `koanf:"client"`
	Log    LogConfig    `koanf:"log"`
}

// ClientConfig configures the resilient HTTP client.
type ClientConfig struct {
	// Timeout is the per-attempt request timeout.
	Timeout time.Duration `koanf:"timeout" validate:"min=0"`
	// Headers are default headers sent with every request.
	Headers map[string]string `koanf:"headers"`
	// LogPayloads enables debug logging of request/response payloads.
	LogPayloads bool `koanf:"logpayloads"`
	// MaxPayloadLogBytes caps logged payload size when LogPayloads is set.
	MaxPayloadLogBytes int `koanf:"maxpayloadlogbytes" validate:"min=0"`

	Retry RetryConfig `koanf:"retry"`
}

// RetryConfig configures the retry policy.
type RetryConfig struct {
	// MaxAttempts is the total attempt budget, first try included.
	MaxAttempts int `koanf:"maxattempts" validate:"min=1"`
	// BaseDelay is the delay before the first retry.
	BaseDelay time.Duration `koanf:"basedelay" validate:"gt=0"`
	// Multiplier is the exponential backoff growth factor.
	Multiplier float64 `koanf:"multiplier" validate:"gte=1"`
	// MaxDelay caps the computed delay; 0 leaves it uncapped.
	MaxDelay time.Duration `koanf:"maxdelay" validate:"min=0"`
	// StatusCodes are response codes worth retrying.
	StatusCodes []int `koanf:"statuscodes" validate:"dive,min=100,max=599"`
	// Methods are the methods whose transport errors may be retried.
	Methods []string `koanf:"methods" validate:"min=1"`
	// Jitter enables full jitter on computed backoff delays.
	Jitter bool `koanf:"jitter"`
}

// LogConfig configures the logger.
type LogConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error fatal panic"`
	Pretty bool   `koanf:"pretty"`
}
