package llmprovider

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"
)

func TestKindForStatus(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		message string
		want    error
	}{
		{"unauthorized", 401, "bad key", ErrAuthentication},
		{"forbidden", 403, "", ErrAuthentication},
		{"rate limited", 429, "slow down", ErrRateLimited},
		{"overloaded", 529, "overloaded", ErrRateLimited},
		{"gateway timeout", 504, "", ErrConnection},
		{"payload too large", 413, "", ErrContextLengthExceeded},
		{"bad request", 400, "unknown field", ErrInvalidRequest},
		{"bad request context", 400, "This model's maximum context length is 8192 tokens", ErrContextLengthExceeded},
		{"not found", 404, "no such model", ErrInvalidRequest},
		{"server error", 500, "boom", ErrProvider},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindForStatus(tt.status, tt.message); got != tt.want {
				t.Errorf("KindForStatus(%d, %q) = %v, want %v", tt.status, tt.message, got, tt.want)
			}
		})
	}
}

func TestNewProviderError(t *testing.T) {
	err := NewProviderError("openai", 429, "too many requests")

	if !errors.Is(err, ErrRateLimited) {
		t.Error("expected errors.Is(err, ErrRateLimited)")
	}
	if !IsRetryable(err) {
		t.Error("rate limit should be retryable")
	}
	if got := err.Error(); got != "openai error (status 429): too many requests" {
		t.Errorf("Error() = %q", got)
	}

	auth := NewProviderError("anthropic", 401, "invalid x-api-key")
	if IsRetryable(auth) {
		t.Error("auth errors should not be retryable")
	}
	if !IsAuthError(auth) {
		t.Error("expected IsAuthError")
	}

	server := NewProviderError("groq", 503, "unavailable")
	if !IsRetryable(server) {
		t.Error("5xx should be retryable")
	}
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

var _ net.Error = timeoutErr{}

func TestClassify(t *testing.T) {
	if Classify("x", nil) != nil {
		t.Error("Classify(nil) should be nil")
	}

	already := NewProviderError("x", 400, "bad")
	if got := Classify("x", already); got != already {
		t.Error("classified errors should pass through unchanged")
	}

	wrapped := fmt.Errorf("sending: %w", ErrRateLimited)
	if got := Classify("x", wrapped); got != wrapped {
		t.Error("errors wrapping a sentinel should pass through unchanged")
	}

	if got := Classify("x", context.Canceled); got != context.Canceled {
		t.Errorf("Classify(Canceled) = %v, want it unchanged", got)
	}
	if got := Classify("x", context.DeadlineExceeded); !errors.Is(got, ErrConnection) {
		t.Errorf("deadline exceeded classified as %v", Kind(got))
	}

	if got := Classify("x", &net.OpError{Op: "dial", Err: timeoutErr{}}); !errors.Is(got, ErrConnection) || !IsRetryable(got) {
		t.Errorf("dial error classified as %v", Kind(got))
	}

	if got := Classify("x", errors.New("weird")); !errors.Is(got, ErrProvider) {
		t.Errorf("unknown error classified as %v", Kind(got))
	}
}

func TestIsInvalidRequest(t *testing.T) {
	if !IsInvalidRequest(ErrContextLengthExceeded) {
		t.Error("context length errors are not fixed by retrying")
	}
	if !IsInvalidRequest(ErrMissingEndpoint) {
		t.Error("ErrMissingEndpoint wraps ErrInvalidRequest")
	}
	if IsInvalidRequest(ErrRateLimited) {
		t.Error("rate limit is not an invalid request")
	}
	if !errors.Is(ErrInvalidAPIKey, ErrAuthentication) {
		t.Error("ErrInvalidAPIKey wraps ErrAuthentication")
	}
}
