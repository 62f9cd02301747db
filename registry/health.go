package registry

import (
	"context"
	"sync"
	"time"
)

// HealthStatus is the last known state of a provider connection.
type HealthStatus int

const (
	HealthUnknown HealthStatus = iota
	HealthChecking
	HealthHealthy
	HealthError
)

func (s HealthStatus) String() string {
	switch s {
	case HealthChecking:
		return "checking"
	case HealthHealthy:
		return "healthy"
	case HealthError:
		return "error"
	default:
		return "unknown"
	}
}

// Health is the cached outcome of a connection check.
type Health struct {
	Status    HealthStatus
	Latency   time.Duration
	Message   string
	CheckedAt time.Time
}

// Health returns the cached health for name; unchecked providers are unknown.
func (r *Registry) Health(name string) Health {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.health[name]
}

func (r *Registry) setHealth(name string, h Health) {
	r.mu.Lock()
	r.health[name] = h
	r.mu.Unlock()
}

// CheckHealth validates the connection of one provider and caches the
// result. The check is bounded by the list timeout.
func (r *Registry) CheckHealth(ctx context.Context, name string) Health {
	r.setHealth(name, Health{Status: HealthChecking})

	p := r.GetProvider(name, false)
	if p == nil {
		h := Health{Status: HealthError, Message: "provider not initialized", CheckedAt: r.now()}
		r.setHealth(name, h)
		return h
	}

	ctx, cancel := context.WithTimeout(ctx, r.listTimeout)
	defer cancel()

	start := r.now()
	ok := p.ValidateConnection(ctx)
	h := Health{Latency: r.now().Sub(start), CheckedAt: r.now()}
	if ok {
		h.Status = HealthHealthy
	} else {
		h.Status = HealthError
		h.Message = "connection failed"
	}
	r.setHealth(name, h)

	r.logger.Debug("health check", "provider", name, "status", h.Status, "latency", h.Latency)
	return h
}

// CheckAllHealth checks every usable provider concurrently.
func (r *Registry) CheckAllHealth(ctx context.Context) map[string]Health {
	names := r.UsableProviders()

	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		out = make(map[string]Health, len(names))
	)
	for _, name := range names {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h := r.CheckHealth(ctx, name)
			mu.Lock()
			out[name] = h
			mu.Unlock()
		}()
	}
	wg.Wait()
	return out
}
