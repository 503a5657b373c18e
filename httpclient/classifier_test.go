package httpclient

import (
	"errors"
	nethttp "net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVerdictString(t *testing.T) {
	assert.Equal(t, "success", VerdictSuccess.String())
	assert.Equal(t, "retryable", VerdictRetryable.String())
	assert.Equal(t, "terminal", VerdictTerminal.String())
	assert.Equal(t, "unknown", Verdict(99).String())
}

func TestClassifyTransportErrors(t *testing.T) {
	policy := DefaultRetryPolicy()
	outcome := Outcome{Err: errors.New("connection refused")}

	t.Run("retryable method", func(t *testing.T) {
		assert.Equal(t, VerdictRetryable, Classify(outcome, nethttp.MethodGet, &policy))
	})

	t.Run("method casing is normalized", func(t *testing.T) {
		assert.Equal(t, VerdictRetryable, Classify(outcome, "get", &policy))
	})

	t.Run("excluded method fails terminally", func(t *testing.T) {
		assert.Equal(t, VerdictTerminal, Classify(outcome, nethttp.MethodPost, &policy))
	})

	t.Run("opted-in method is retryable", func(t *testing.T) {
		p := DefaultRetryPolicy()
		p.RetryableMethods = Methods(nethttp.MethodGet, nethttp.MethodPost)
		assert.Equal(t, VerdictRetryable, Classify(outcome, nethttp.MethodPost, &p))
	})
}

func TestClassifyStatusCodes(t *testing.T) {
	policy := DefaultRetryPolicy()

	tests := []struct {
		name    string
		code    int
		verdict Verdict
	}{
		{"200 is success", 200, VerdictSuccess},
		{"204 is success", 204, VerdictSuccess},
		{"301 is success", 301, VerdictSuccess},
		{"404 is terminal", 404, VerdictTerminal},
		{"400 is terminal", 400, VerdictTerminal},
		{"429 is retryable", 429, VerdictRetryable},
		{"500 is retryable", 500, VerdictRetryable},
		{"502 is retryable", 502, VerdictRetryable},
		{"503 is retryable", 503, VerdictRetryable},
		{"504 is retryable", 504, VerdictRetryable},
		{"501 is terminal", 501, VerdictTerminal},
		{"599 is terminal", 599, VerdictTerminal},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.verdict, Classify(Outcome{StatusCode: tc.code}, nethttp.MethodGet, &policy))
		})
	}
}

func TestClassifyStatusIgnoresMethodExclusion(t *testing.T) {
	// Method exclusion only guards transport errors; a retryable status code
	// is retried for any method.
	policy := DefaultRetryPolicy()
	assert.Equal(t, VerdictRetryable, Classify(Outcome{StatusCode: 503}, nethttp.MethodPost, &policy))
}

func TestClassifyCustomStatusSet(t *testing.T) {
	p := DefaultRetryPolicy()
	p.RetryableStatusCodes = StatusCodes(418)

	assert.Equal(t, VerdictRetryable, Classify(Outcome{StatusCode: 418}, nethttp.MethodGet, &p))
	assert.Equal(t, VerdictTerminal, Classify(Outcome{StatusCode: 500}, nethttp.MethodGet, &p))
}

func TestOutcomeIsTransportError(t *testing.T) {
	assert.True(t, Outcome{Err: errors.New("x")}.IsTransportError())
	assert.False(t, Outcome{StatusCode: 200}.IsTransportError())
}
