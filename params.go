package llmprovider

import (
	"context"
	"fmt"
	"time"
)

// ProviderConfig is the read-only configuration bag a provider is built from.
// Every field is optional; which ones matter depends on the vendor.
type ProviderConfig struct {
	Name       ProviderID
	APIKey     string
	Endpoint   string
	Region     string
	Model      string
	APIVersion string
	ProjectID  string
	Location   string
	AccountID  string

	// Tokens supplies bearer tokens for OAuth-style providers (nil otherwise).
	Tokens TokenSource

	// Options tunes generation; nil fields use the vendor defaults.
	Options *Options
}

// GetOrDefault returns value, or def when value is empty.
func GetOrDefault(value, def string) string {
	if value == "" {
		return def
	}
	return value
}

// TokenSource hands out a valid bearer token, refreshing an expired one
// with a stored refresh token. Storage and browser login live elsewhere.
type TokenSource interface {
	// ValidAccessToken returns a usable token, or an error wrapping
	// ErrAuthentication when none can be obtained.
	ValidAccessToken(ctx context.Context) (string, error)
}

// TokenSourceFunc adapts a function to TokenSource.
type TokenSourceFunc func(ctx context.Context) (string, error)

// ValidAccessToken calls f.
func (f TokenSourceFunc) ValidAccessToken(ctx context.Context) (string, error) {
	return f(ctx)
}

// StaticToken is a TokenSource that always returns the same token.
type StaticToken string

// ValidAccessToken returns the token, or ErrInvalidAPIKey when it is empty.
func (t StaticToken) ValidAccessToken(context.Context) (string, error) {
	if t == "" {
		return "", ErrInvalidAPIKey
	}
	return string(t), nil
}

// Options contains the optional generation parameters adapters honor.
// Nil means "use the adapter default".
type Options struct {
	// MaxTokens is the maximum number of tokens to generate.
	MaxTokens *int

	// Temperature controls randomness (0.0 to 1.0).
	Temperature *float64

	// TopP is nucleus sampling probability.
	TopP *float64

	// Stop sequences
	Stop []string

	// ConnectTimeout bounds connection establishment (default 3s).
	ConnectTimeout *time.Duration

	// ReadTimeout bounds the wait for response headers and stream idle gaps (default 120s).
	ReadTimeout *time.Duration
}

// GetMaxTokens returns MaxTokens or the default value.
func (o *Options) GetMaxTokens(defaultValue int) int {
	if o != nil && o.MaxTokens != nil {
		return *o.MaxTokens
	}
	return defaultValue
}

// GetTemperature returns Temperature or the default value.
func (o *Options) GetTemperature(defaultValue float64) float64 {
	if o != nil && o.Temperature != nil {
		return *o.Temperature
	}
	return defaultValue
}

// GetTopP returns TopP or the default value.
func (o *Options) GetTopP(defaultValue float64) float64 {
	if o != nil && o.TopP != nil {
		return *o.TopP
	}
	return defaultValue
}

// GetConnectTimeout returns ConnectTimeout or the default value.
func (o *Options) GetConnectTimeout(defaultValue time.Duration) time.Duration {
	if o != nil && o.ConnectTimeout != nil {
		return *o.ConnectTimeout
	}
	return defaultValue
}

// GetReadTimeout returns ReadTimeout or the default value.
func (o *Options) GetReadTimeout(defaultValue time.Duration) time.Duration {
	if o != nil && o.ReadTimeout != nil {
		return *o.ReadTimeout
	}
	return defaultValue
}

// Validate checks parameter ranges. A nil Options is valid.
// Errors wrap ErrInvalidRequest.
func (o *Options) Validate() error {
	if o == nil {
		return nil
	}

	if o.Temperature != nil {
		if *o.Temperature < 0.0 || *o.Temperature > 2.0 {
			return fmt.Errorf("%w: temperature must be between 0.0 and 2.0, got %f", ErrInvalidRequest, *o.Temperature)
		}
	}

	if o.TopP != nil {
		if *o.TopP < 0.0 || *o.TopP > 1.0 {
			return fmt.Errorf("%w: top_p must be between 0.0 and 1.0, got %f", ErrInvalidRequest, *o.TopP)
		}
	}

	if o.MaxTokens != nil {
		if *o.MaxTokens < 1 {
			return fmt.Errorf("%w: max_tokens must be positive, got %d", ErrInvalidRequest, *o.MaxTokens)
		}
	}

	if o.ConnectTimeout != nil && *o.ConnectTimeout < 0 {
		return fmt.Errorf("%w: connect timeout must not be negative", ErrInvalidRequest)
	}
	if o.ReadTimeout != nil && *o.ReadTimeout < 0 {
		return fmt.Errorf("%w: read timeout must not be negative", ErrInvalidRequest)
	}

	return nil
}

// Int returns a pointer to v.
func Int(v int) *int { return &v }

// Float returns a pointer to v.
func Float(v float64) *float64 { return &v }

// Duration returns a pointer to v.
func Duration(v time.Duration) *time.Duration { return &v }
