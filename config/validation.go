package config

import (
	"fmt"
	nethttp "net/http"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the configuration for structural and cross-field errors.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return err
	}

	if err := validateRetry(&cfg.Client.Retry); err != nil {
		return fmt.Errorf("retry config: %w", err)
	}

	return nil
}

// validateRetry covers the cross-field rules the struct tags cannot express.
func validateRetry(cfg *RetryConfig) error {
	if cfg.MaxDelay > 0 && cfg.MaxDelay < cfg.BaseDelay {
		return fmt.Errorf("maxdelay %v must not be below basedelay %v", cfg.MaxDelay, cfg.BaseDelay)
	}

	validMethods := []string{
		nethttp.MethodGet,
		nethttp.MethodHead,
		nethttp.MethodPost,
		nethttp.MethodPut,
		nethttp.MethodPatch,
		nethttp.MethodDelete,
		nethttp.MethodOptions,
	}
	for _, m := range cfg.Methods {
		if !slices.Contains(validMethods, strings.ToUpper(m)) {
			return fmt.Errorf("invalid method: %s (must be one of: %s)",
				m, strings.Join(validMethods, ", "))
		}
	}

	return nil
}
