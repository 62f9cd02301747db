package fallback

import (
	"time"
)

// Config controls retries and provider failover.
type Config struct {
	// Providers are tried in order after the primary. Duplicates and the
	// primary itself are skipped.
	Providers []string

	// MaxRetries is the number of attempts per provider, including the first.
	MaxRetries int

	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	BackoffMultiplier float64

	// Enabled turns retries and failover on. When false a single attempt is
	// made against the active provider and its events are passed through.
	Enabled bool
}

// DefaultConfig returns 3 attempts per provider with backoff starting at 1s,
// doubling, capped at 30s.
func DefaultConfig() Config {
	return Config{
		MaxRetries:        3,
		InitialBackoff:    time.Second,
		MaxBackoff:        30 * time.Second,
		BackoffMultiplier: 2,
		Enabled:           true,
	}
}

// withDefaults fills zero values from DefaultConfig.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MaxRetries <= 0 {
		c.MaxRetries = d.MaxRetries
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = d.InitialBackoff
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = d.MaxBackoff
	}
	if c.BackoffMultiplier < 1 {
		c.BackoffMultiplier = d.BackoffMultiplier
	}
	return c
}

// Backoff returns the wait after the given failed attempt (1-based):
// InitialBackoff * BackoffMultiplier^(attempt-1), capped at MaxBackoff.
func (c Config) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := float64(c.InitialBackoff)
	for i := 1; i < attempt; i++ {
		d *= c.BackoffMultiplier
		if d >= float64(c.MaxBackoff) {
			return c.MaxBackoff
		}
	}
	if time.Duration(d) > c.MaxBackoff {
		return c.MaxBackoff
	}
	return time.Duration(d)
}

// chain returns primary followed by the configured providers, without
// repeats.
func (c Config) chain(primary string) []string {
	out := []string{primary}
	seen := map[string]bool{primary: true}
	for _, name := range c.Providers {
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	return out
}
