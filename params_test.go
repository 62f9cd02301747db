package llmprovider

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestOptions_ValidateTemperature(t *testing.T) {
	tests := []struct {
		name        string
		temperature *float64
		wantErr     bool
	}{
		{"nil temperature is valid", nil, false},
		{"temperature 0.0", Float(0.0), false},
		{"temperature 1.0", Float(1.0), false},
		{"temperature 2.0", Float(2.0), false},
		{"temperature -0.1 is invalid", Float(-0.1), true},
		{"temperature 2.1 is invalid", Float(2.1), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := &Options{Temperature: tt.temperature}
			err := opts.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !IsInvalidRequest(err) {
				t.Error("validation error should be classified as invalid request")
			}
		})
	}
}

func TestOptions_ValidateTopP(t *testing.T) {
	tests := []struct {
		name    string
		topP    *float64
		wantErr bool
	}{
		{"nil topP is valid", nil, false},
		{"topP 0.0", Float(0.0), false},
		{"topP 1.0", Float(1.0), false},
		{"topP -0.1 is invalid", Float(-0.1), true},
		{"topP 1.1 is invalid", Float(1.1), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := (&Options{TopP: tt.topP}).Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestOptions_ValidateMaxTokens(t *testing.T) {
	tests := []struct {
		name      string
		maxTokens *int
		wantErr   bool
	}{
		{"nil maxTokens is valid", nil, false},
		{"maxTokens 1", Int(1), false},
		{"maxTokens 8192", Int(8192), false},
		{"maxTokens 0 is invalid", Int(0), true},
		{"maxTokens -1 is invalid", Int(-1), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := (&Options{MaxTokens: tt.maxTokens}).Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestOptions_NilIsValid(t *testing.T) {
	var opts *Options
	if err := opts.Validate(); err != nil {
		t.Errorf("nil Options Validate() = %v", err)
	}
	if got := opts.GetMaxTokens(8192); got != 8192 {
		t.Errorf("GetMaxTokens() = %d, want 8192", got)
	}
	if got := opts.GetTemperature(0.7); got != 0.7 {
		t.Errorf("GetTemperature() = %f, want 0.7", got)
	}
	if got := opts.GetReadTimeout(120 * time.Second); got != 120*time.Second {
		t.Errorf("GetReadTimeout() = %v", got)
	}
}

func TestOptions_Getters(t *testing.T) {
	opts := &Options{
		MaxTokens:      Int(100),
		Temperature:    Float(0.2),
		TopP:           Float(0.9),
		ConnectTimeout: Duration(time.Second),
	}

	if got := opts.GetMaxTokens(8192); got != 100 {
		t.Errorf("GetMaxTokens() = %d, want 100", got)
	}
	if got := opts.GetTemperature(0.7); got != 0.2 {
		t.Errorf("GetTemperature() = %f, want 0.2", got)
	}
	if got := opts.GetTopP(1.0); got != 0.9 {
		t.Errorf("GetTopP() = %f, want 0.9", got)
	}
	if got := opts.GetConnectTimeout(3 * time.Second); got != time.Second {
		t.Errorf("GetConnectTimeout() = %v, want 1s", got)
	}
	if got := opts.GetReadTimeout(120 * time.Second); got != 120*time.Second {
		t.Errorf("GetReadTimeout() = %v, want default", got)
	}
}

func TestGetOrDefault(t *testing.T) {
	if got := GetOrDefault("", "x"); got != "x" {
		t.Errorf("GetOrDefault(\"\", x) = %q", got)
	}
	if got := GetOrDefault("y", "x"); got != "y" {
		t.Errorf("GetOrDefault(y, x) = %q", got)
	}
}

func TestStaticToken(t *testing.T) {
	tok, err := StaticToken("abc").ValidAccessToken(context.Background())
	if err != nil || tok != "abc" {
		t.Errorf("ValidAccessToken() = %q, %v", tok, err)
	}

	_, err = StaticToken("").ValidAccessToken(context.Background())
	if !errors.Is(err, ErrAuthentication) {
		t.Errorf("empty token error = %v, want ErrAuthentication", err)
	}
}

func TestTokenSourceFunc(t *testing.T) {
	calls := 0
	src := TokenSourceFunc(func(context.Context) (string, error) {
		calls++
		return "fresh", nil
	})
	tok, err := src.ValidAccessToken(context.Background())
	if err != nil || tok != "fresh" || calls != 1 {
		t.Errorf("ValidAccessToken() = %q, %v (calls=%d)", tok, err, calls)
	}
}
