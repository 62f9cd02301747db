// Package registry builds, caches and tears down provider handles from
// configuration. It also lists models across providers and tracks their
// health for display.
package registry

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	llmprovider "github.com/starhound/null-llm-go"
	"github.com/starhound/null-llm-go/internal/workerpool"
)

const (
	// DefaultModelTTL is how long a model listing stays cached.
	DefaultModelTTL = 5 * time.Minute

	// DefaultListTimeout bounds one provider's model lookup.
	DefaultListTimeout = 10 * time.Second
)

// ConfigSource supplies the current configuration. It is read on every
// lookup so edits are picked up without rebuilding the registry.
type ConfigSource interface {
	ActiveProvider() string
	ProviderConfig(name string) llmprovider.ProviderConfig
}

// Factory constructs a provider from its configuration.
type Factory func(cfg llmprovider.ProviderConfig, logger *slog.Logger) (llmprovider.Provider, error)

// Registry caches one provider handle per name.
type Registry struct {
	source      ConfigSource
	factories   map[llmprovider.ProviderID]Factory
	logger      *slog.Logger
	pool        *workerpool.Pool
	listTimeout time.Duration
	now         func() time.Time

	mu        sync.Mutex
	providers map[string]llmprovider.Provider
	overrides map[string]string
	health    map[string]Health

	models *modelCache
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger; the default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) { r.logger = l }
}

// WithFactory registers or replaces the factory for id.
func WithFactory(id llmprovider.ProviderID, f Factory) Option {
	return func(r *Registry) { r.factories[id] = f }
}

// WithModelTTL changes how long model listings are cached.
func WithModelTTL(ttl time.Duration) Option {
	return func(r *Registry) { r.models.ttl = ttl }
}

// WithListTimeout changes the per-provider model lookup timeout.
func WithListTimeout(d time.Duration) Option {
	return func(r *Registry) { r.listTimeout = d }
}

// WithClock replaces time.Now for cache expiry and health timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		r.now = now
		r.models.now = now
	}
}

// New creates a registry reading configuration from source.
func New(source ConfigSource, opts ...Option) *Registry {
	r := &Registry{
		source:      source,
		logger:      slog.Default(),
		pool:        workerpool.New(workerpool.DefaultSize),
		listTimeout: DefaultListTimeout,
		now:         time.Now,
		providers:   make(map[string]llmprovider.Provider),
		overrides:   make(map[string]string),
		health:      make(map[string]Health),
		models:      newModelCache(DefaultModelTTL, time.Now),
	}
	r.factories = defaultFactories(r.pool)
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// GetProvider returns the cached handle for name, building it on first use.
// A cached handle whose model no longer matches the configuration is
// rebuilt, as is any handle when forceRefresh is set. It returns nil when
// the provider is unknown, its configuration is incomplete, or construction
// fails.
func (r *Registry) GetProvider(name string, forceRefresh bool) llmprovider.Provider {
	if name == "" {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	cfg := r.configLocked(name)
	if cached, ok := r.providers[name]; ok {
		if !forceRefresh && (cfg.Model == "" || cfg.Model == cached.Model()) {
			return cached
		}
		r.logger.Debug("rebuilding provider", "provider", name, "cached_model", cached.Model(), "model", cfg.Model, "forced", forceRefresh)
		r.closeLocked(name, cached)
	}

	factory, ok := r.factories[llmprovider.ProviderID(name)]
	if !ok {
		r.logger.Debug("no factory for provider", "provider", name)
		return nil
	}
	p, err := factory(cfg, r.logger)
	if err != nil {
		r.logger.Debug("provider construction failed", "provider", name, "error", err)
		return nil
	}
	r.providers[name] = p
	return p
}

// GetActiveProvider returns the handle for the configured active provider.
func (r *Registry) GetActiveProvider() llmprovider.Provider {
	return r.GetProvider(r.source.ActiveProvider(), false)
}

// ActiveProvider returns the configured active provider name.
func (r *Registry) ActiveProvider() string {
	return r.source.ActiveProvider()
}

// configLocked returns the configuration for name with any detected model
// applied in place of a placeholder.
func (r *Registry) configLocked(name string) llmprovider.ProviderConfig {
	cfg := r.source.ProviderConfig(name)
	cfg.Name = llmprovider.ProviderID(name)
	if override, ok := r.overrides[name]; ok && isPlaceholderModel(cfg.Model) {
		cfg.Model = override
	}
	return cfg
}

// UsableProviders returns the providers whose required configuration is
// present, in display order. The active provider is always included.
//
//   - API-key providers need a key.
//   - Endpoint providers need an endpoint, or must be active.
//   - OAuth and credential-chain providers only when active.
func (r *Registry) UsableProviders() []string {
	active := r.source.ActiveProvider()

	var usable []string
	seen := make(map[string]bool)
	for _, info := range llmprovider.KnownProviders() {
		name := info.ID.String()
		cfg := r.source.ProviderConfig(name)

		ok := false
		switch {
		case info.RequiresAPIKey:
			ok = cfg.APIKey != ""
		case info.RequiresEndpoint:
			ok = cfg.Endpoint != "" || name == active
		case info.RequiresOAuth, info.CredentialChain:
			ok = name == active
		}
		if ok {
			usable = append(usable, name)
			seen[name] = true
		}
	}
	if active != "" && !seen[active] {
		usable = append(usable, active)
	}
	return usable
}

// Cached returns the names of the providers currently built, sorted.
func (r *Registry) Cached() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CloseAll closes every cached provider and empties the cache. Errors from
// individual providers are joined.
func (r *Registry) CloseAll() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for name, p := range r.providers {
		if err := p.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", name, err))
		}
	}
	clear(r.providers)
	return errors.Join(errs...)
}

func (r *Registry) closeLocked(name string, p llmprovider.Provider) {
	if err := p.Close(); err != nil {
		r.logger.Debug("closing provider failed", "provider", name, "error", err)
	}
	delete(r.providers, name)
}

// isPlaceholderModel reports whether model is a default that should give
// way to whatever a local server has actually loaded.
func isPlaceholderModel(model string) bool {
	switch model {
	case "", "local-model", "llama3.2":
		return true
	}
	return false
}
