package llmprovider

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// Sentinel errors for the failure kinds every adapter reports.
// These can be checked with errors.Is().
var (
	// ErrAuthentication indicates a missing, malformed, expired or rejected credential.
	ErrAuthentication = errors.New("llmprovider: authentication failed")

	// ErrRateLimited indicates the provider's rate limit has been exceeded.
	ErrRateLimited = errors.New("llmprovider: rate limit exceeded")

	// ErrContextLengthExceeded indicates the prompt does not fit the model's context window.
	ErrContextLengthExceeded = errors.New("llmprovider: context length exceeded")

	// ErrConnection indicates the endpoint could not be reached (DNS, TCP, TLS, timeouts).
	ErrConnection = errors.New("llmprovider: connection failed")

	// ErrInvalidRequest indicates a malformed payload or an unsupported parameter.
	ErrInvalidRequest = errors.New("llmprovider: invalid request")

	// ErrProvider is the generic vendor-reported failure without a more specific kind.
	ErrProvider = errors.New("llmprovider: provider error")
)

// ErrInvalidAPIKey is returned by constructors when a required API key is empty.
// It wraps ErrAuthentication.
var ErrInvalidAPIKey = fmt.Errorf("%w: missing API key", ErrAuthentication)

// ErrMissingEndpoint is returned by constructors when a required endpoint is empty.
var ErrMissingEndpoint = fmt.Errorf("%w: missing endpoint", ErrInvalidRequest)

// ProviderError represents an error from the underlying provider API.
type ProviderError struct {
	Provider   string // The provider name
	StatusCode int    // HTTP status code (if applicable)
	Message    string // Error message from provider
	Retryable  bool   // Whether this error is potentially retryable
	Err        error  // Wrapped sentinel error (ErrRateLimited, ErrConnection, etc.)
}

func (e *ProviderError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s error (status %d): %s", e.Provider, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s error: %s", e.Provider, e.Message)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// NewProviderError builds a ProviderError from an HTTP status code and message,
// picking the sentinel from the status and the message text.
func NewProviderError(provider string, statusCode int, message string) *ProviderError {
	kind := KindForStatus(statusCode, message)
	return &ProviderError{
		Provider:   provider,
		StatusCode: statusCode,
		Message:    message,
		Retryable:  kind == ErrRateLimited || kind == ErrConnection || statusCode >= 500,
		Err:        kind,
	}
}

// KindForStatus maps an HTTP status code (and the vendor message, for the
// statuses vendors overload) to one of the sentinel kinds.
func KindForStatus(statusCode int, message string) error {
	switch {
	case statusCode == 401 || statusCode == 403:
		return ErrAuthentication
	case statusCode == 429:
		return ErrRateLimited
	case statusCode == 408 || statusCode == 504:
		return ErrConnection
	case statusCode == 413:
		return ErrContextLengthExceeded
	case statusCode == 400 || statusCode == 404 || statusCode == 422:
		if mentionsContextLength(message) {
			return ErrContextLengthExceeded
		}
		return ErrInvalidRequest
	case statusCode == 529:
		// Anthropic "overloaded"
		return ErrRateLimited
	default:
		if mentionsContextLength(message) {
			return ErrContextLengthExceeded
		}
		return ErrProvider
	}
}

func mentionsContextLength(message string) bool {
	m := strings.ToLower(message)
	return strings.Contains(m, "context length") ||
		strings.Contains(m, "context_length") ||
		strings.Contains(m, "context window") ||
		strings.Contains(m, "maximum context") ||
		strings.Contains(m, "too many tokens") ||
		strings.Contains(m, "prompt is too long")
}

// Classify wraps err with the sentinel kind it belongs to, unless it is
// already classified. Network failures become ErrConnection, everything
// unrecognized becomes ErrProvider. A nil error stays nil, and caller
// cancellation (context.Canceled) is returned unchanged.
func Classify(provider string, err error) error {
	if err == nil {
		return nil
	}
	if Kind(err) != nil {
		return err
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &ProviderError{Provider: provider, Message: err.Error(), Retryable: true, Err: ErrConnection}
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return &ProviderError{Provider: provider, Message: err.Error(), Retryable: true, Err: ErrConnection}
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return &ProviderError{Provider: provider, Message: err.Error(), Retryable: true, Err: ErrConnection}
	}
	return &ProviderError{Provider: provider, Message: err.Error(), Err: ErrProvider}
}

// Kind returns the sentinel kind err is classified as, or nil when err
// carries none.
func Kind(err error) error {
	for _, kind := range []error{
		ErrAuthentication,
		ErrRateLimited,
		ErrContextLengthExceeded,
		ErrConnection,
		ErrInvalidRequest,
		ErrProvider,
	} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}

// IsRetryable checks if an error is potentially retryable.
// Returns true for rate limits, temporary unavailability, network errors, etc.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	// Check for ProviderError with Retryable flag
	var providerErr *ProviderError
	if errors.As(err, &providerErr) {
		return providerErr.Retryable
	}

	return errors.Is(err, ErrRateLimited) || errors.Is(err, ErrConnection)
}

// IsInvalidRequest checks if an error indicates invalid request parameters
// or a prompt that does not fit. These are not fixed by retrying.
func IsInvalidRequest(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrInvalidRequest) || errors.Is(err, ErrContextLengthExceeded)
}

// IsAuthError checks if an error is related to authentication.
func IsAuthError(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrAuthentication)
}
