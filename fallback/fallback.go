// Package fallback retries failed generations with exponential backoff and
// fails over along a chain of providers.
package fallback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	llmprovider "github.com/starhound/null-llm-go"
)

// ContinuePrompt asks a model to resume a reply that was cut off. It is sent
// after the partial reply when a retry follows streamed output.
const ContinuePrompt = "Your previous reply was interrupted. Continue it exactly where it stopped, without repeating anything."

// ErrNoActiveProvider is returned when no provider is configured or the
// configured one cannot be built.
var ErrNoActiveProvider = errors.New("fallback: no active provider configured")

// ErrUnavailable marks a chain member that could not be built.
var ErrUnavailable = errors.New("fallback: provider not available")

// ExhaustedError is returned when every provider in the chain failed.
type ExhaustedError struct {
	Chain []string
	Last  error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("all providers failed, last error: %v", e.Last)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Last
}

// Source resolves provider names to handles. *registry.Registry satisfies it.
type Source interface {
	GetProvider(name string, forceRefresh bool) llmprovider.Provider
	ActiveProvider() string
	UsableProviders() []string
}

// Event records a switch from one provider to the next.
type Event struct {
	From     string
	To       string
	Err      error
	Attempts int
	At       time.Time
}

// Request is one logical generation.
type Request struct {
	Prompt       string
	History      []llmprovider.Message
	SystemPrompt string
	Tools        []llmprovider.Tool

	// Primary overrides the active provider as the head of the chain.
	Primary string
}

// Orchestrator runs generations against a provider chain.
type Orchestrator struct {
	source Source
	logger *slog.Logger
	sleep  func(ctx context.Context, d time.Duration) error
	now    func() time.Time

	mu     sync.Mutex
	config Config
	events []Event
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger; the default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// WithSleep replaces the backoff wait.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(o *Orchestrator) { o.sleep = sleep }
}

// New creates an orchestrator.
func New(source Source, cfg Config, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		source: source,
		logger: slog.Default(),
		sleep:  sleepContext,
		now:    time.Now,
		config: cfg.withDefaults(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Config returns the current configuration.
func (o *Orchestrator) Config() Config {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.config
}

// SetConfig replaces the configuration for later generations.
func (o *Orchestrator) SetConfig(cfg Config) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.config = cfg.withDefaults()
}

// Events returns a copy of the recorded failovers.
func (o *Orchestrator) Events() []Event {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]Event(nil), o.events...)
}

// ClearEvents forgets the recorded failovers.
func (o *Orchestrator) ClearEvents() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events = nil
}

func (o *Orchestrator) record(ev Event) {
	o.mu.Lock()
	o.events = append(o.events, ev)
	o.mu.Unlock()
	o.logger.Warn("provider fallback", "from", ev.From, "to", ev.To, "attempts", ev.Attempts, "error", ev.Err)
}

// Generate starts a generation and returns its stream.
func (o *Orchestrator) Generate(ctx context.Context, req Request) *Stream {
	ctx, cancel := context.WithCancel(ctx)
	s := &Stream{events: make(chan llmprovider.StreamEvent, 10), cancel: cancel}
	cfg := o.Config()

	go func() {
		defer close(s.events)
		defer cancel()
		if cfg.Enabled {
			s.err = o.runChain(ctx, cfg, req, s.events)
		} else {
			s.err = o.runSingle(ctx, req, s.events)
		}
	}()
	return s
}

// runSingle makes one attempt and passes every event through, errors
// included.
func (o *Orchestrator) runSingle(ctx context.Context, req Request, out chan<- llmprovider.StreamEvent) error {
	name := llmprovider.GetOrDefault(req.Primary, o.source.ActiveProvider())
	if name == "" {
		return ErrNoActiveProvider
	}
	p := o.source.GetProvider(name, false)
	if p == nil {
		return fmt.Errorf("%w: %s", ErrNoActiveProvider, name)
	}

	for ev := range generate(ctx, p, req.Prompt, req.History, req) {
		select {
		case out <- ev:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (o *Orchestrator) runChain(ctx context.Context, cfg Config, req Request, out chan<- llmprovider.StreamEvent) error {
	primary := llmprovider.GetOrDefault(req.Primary, o.source.ActiveProvider())
	if primary == "" {
		return ErrNoActiveProvider
	}
	chain := cfg.chain(primary)

	var (
		lastErr error
		partial strings.Builder
	)
	for idx, name := range chain {
		p := o.source.GetProvider(name, false)
		attempts := 0
		if p == nil {
			o.logger.Debug("provider not available, skipping", "provider", name)
			lastErr = fmt.Errorf("%w: %s", ErrUnavailable, name)
		}

		for attempt := 1; p != nil && attempt <= cfg.MaxRetries; attempt++ {
			if attempt > 1 {
				delay := cfg.Backoff(attempt - 1)
				o.logger.Debug("retrying provider", "provider", name, "attempt", attempt, "delay", delay)
				if err := o.sleep(ctx, delay); err != nil {
					return err
				}
			}
			attempts++

			prompt, history := req.Prompt, req.History
			if partial.Len() > 0 {
				history = append(llmprovider.Conversation(req.Prompt, req.History), llmprovider.AssistantMessage(partial.String()))
				prompt = ContinuePrompt
			}

			err := o.attempt(ctx, p, prompt, history, req, out, &partial)
			if err == nil {
				return nil
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			lastErr = err
			o.logger.Warn("provider attempt failed", "provider", name, "attempt", attempt, "max", cfg.MaxRetries, "error", err)

			if llmprovider.IsAuthError(err) || llmprovider.IsInvalidRequest(err) {
				break
			}
		}

		if idx < len(chain)-1 {
			o.record(Event{From: name, To: chain[idx+1], Err: lastErr, Attempts: attempts, At: o.now()})
		}
	}
	return &ExhaustedError{Chain: chain, Last: lastErr}
}

// attempt forwards one provider stream. Text is forwarded as it arrives and
// kept in partial; an error event ends the attempt without being forwarded.
func (o *Orchestrator) attempt(ctx context.Context, p llmprovider.Provider, prompt string, history []llmprovider.Message, req Request, out chan<- llmprovider.StreamEvent, partial *strings.Builder) error {
	attemptCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	for ev := range generate(attemptCtx, p, prompt, history, req) {
		if ev.Error != nil {
			return ev.Error
		}
		select {
		case out <- ev:
		case <-ctx.Done():
			return ctx.Err()
		}
		if ev.IsComplete {
			return nil
		}
		partial.WriteString(ev.Text)
	}
	return llmprovider.ErrIncompleteStream
}

func generate(ctx context.Context, p llmprovider.Provider, prompt string, history []llmprovider.Message, req Request) <-chan llmprovider.StreamEvent {
	if len(req.Tools) > 0 {
		return p.GenerateWithTools(ctx, prompt, history, req.Tools, req.SystemPrompt)
	}
	return p.Generate(ctx, prompt, history, req.SystemPrompt)
}

// CheckProviderHealth reports whether name can be built and answers a
// connection check.
func (o *Orchestrator) CheckProviderHealth(ctx context.Context, name string) (ok bool) {
	p := o.source.GetProvider(name, false)
	if p == nil {
		return false
	}
	defer func() {
		if r := recover(); r != nil {
			o.logger.Debug("health check panicked", "provider", name, "panic", r)
			ok = false
		}
	}()
	return p.ValidateConnection(ctx)
}

// HealthyProviders returns the usable providers that pass CheckProviderHealth.
// It is meant for display and is never consulted by Generate.
func (o *Orchestrator) HealthyProviders(ctx context.Context) []string {
	var healthy []string
	for _, name := range o.source.UsableProviders() {
		if o.CheckProviderHealth(ctx, name) {
			healthy = append(healthy, name)
		}
	}
	return healthy
}
