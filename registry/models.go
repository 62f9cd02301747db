package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	llmprovider "github.com/starhound/null-llm-go"
)

const maxListingError = 50

// ErrNotInitialized is reported for a provider that could not be built.
var ErrNotInitialized = errors.New("failed to initialize")

// ModelListing is one provider's result in a streamed listing.
type ModelListing struct {
	Provider  string
	Models    []string
	Err       error
	Completed int
	Total     int
}

type modelEntry struct {
	models []string
	stored time.Time
}

type modelCache struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	entries map[string]modelEntry
}

func newModelCache(ttl time.Duration, now func() time.Time) *modelCache {
	return &modelCache{ttl: ttl, now: now, entries: make(map[string]modelEntry)}
}

func (c *modelCache) get(name string) ([]string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[name]
	if !ok {
		return nil, false
	}
	if c.now().Sub(entry.stored) > c.ttl {
		delete(c.entries, name)
		return nil, false
	}
	return append([]string(nil), entry.models...), true
}

func (c *modelCache) set(name string, models []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[name] = modelEntry{models: append([]string(nil), models...), stored: c.now()}
}

func (c *modelCache) invalidate(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[name]
	delete(c.entries, name)
	return ok
}

func (c *modelCache) clear() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := len(c.entries)
	clear(c.entries)
	return n
}

// InvalidateModels drops the cached listing for name.
func (r *Registry) InvalidateModels(name string) bool {
	return r.models.invalidate(name)
}

// ClearModels drops every cached listing and returns how many there were.
func (r *Registry) ClearModels() int {
	return r.models.clear()
}

// ListModels returns the models for one provider, from cache unless
// skipCache is set. The lookup is bounded by the list timeout.
func (r *Registry) ListModels(ctx context.Context, name string, skipCache bool) ([]string, error) {
	if !skipCache {
		if models, ok := r.models.get(name); ok {
			return models, nil
		}
	}

	p := r.GetProvider(name, false)
	if p == nil {
		return nil, ErrNotInitialized
	}

	ctx, cancel := context.WithTimeout(ctx, r.listTimeout)
	defer cancel()

	done := make(chan []string, 1)
	go func() { done <- p.ListModels(ctx) }()

	var models []string
	select {
	case models = <-done:
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: timeout", llmprovider.ErrConnection)
		}
		return nil, ctx.Err()
	}

	if len(models) > 0 {
		r.detectModel(name, p, models)
		r.models.set(name, models)
	}
	return models, nil
}

// detectModel makes the first listed model the default for a local server
// whose configured model is only a placeholder.
func (r *Registry) detectModel(name string, p llmprovider.Provider, models []string) {
	switch llmprovider.ProviderID(name) {
	case llmprovider.ProviderOllama, llmprovider.ProviderLMStudio:
	default:
		return
	}
	if !isPlaceholderModel(p.Model()) || p.Model() == models[0] {
		return
	}

	r.mu.Lock()
	r.overrides[name] = models[0]
	r.mu.Unlock()
	r.logger.Debug("detected loaded model", "provider", name, "model", models[0])
}

// ListAllModels lists models for every usable provider concurrently.
// Providers that fail, time out or list nothing are left out.
func (r *Registry) ListAllModels(ctx context.Context, skipCache bool) map[string][]string {
	out := make(map[string][]string)
	for listing := range r.ListAllModelsStreaming(ctx, skipCache) {
		if listing.Err == nil && len(listing.Models) > 0 {
			out[listing.Provider] = listing.Models
		}
	}
	return out
}

// ListAllModelsStreaming lists models for every usable provider
// concurrently and delivers each result as it arrives. Error messages are
// shortened for display. The channel is closed once every provider has
// reported or ctx ends.
func (r *Registry) ListAllModelsStreaming(ctx context.Context, skipCache bool) <-chan ModelListing {
	names := r.UsableProviders()
	out := make(chan ModelListing, len(names))
	if len(names) == 0 {
		close(out)
		return out
	}

	results := make(chan ModelListing, len(names))
	var wg sync.WaitGroup
	for _, name := range names {
		wg.Add(1)
		go func() {
			defer wg.Done()
			models, err := r.ListModels(ctx, name, skipCache)
			if err != nil {
				err = shorten(err)
			}
			results <- ModelListing{Provider: name, Models: models, Err: err}
		}()
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	go func() {
		defer close(out)
		completed := 0
		for listing := range results {
			completed++
			listing.Completed = completed
			listing.Total = len(names)
			select {
			case out <- listing:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// shorten truncates an error message for one-line display, keeping the
// error kind for errors.Is.
func shorten(err error) error {
	msg := err.Error()
	if len(msg) <= maxListingError {
		return err
	}
	return &listingError{msg: msg[:maxListingError] + "...", err: err}
}

type listingError struct {
	msg string
	err error
}

func (e *listingError) Error() string { return e.msg }
func (e *listingError) Unwrap() error { return e.err }
