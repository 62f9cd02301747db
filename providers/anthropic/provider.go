// Package anthropic adapts the Anthropic Messages API to llmprovider.Provider.
// The same adapter serves API-key access, Claude subscription access through
// OAuth bearer tokens, and Claude models on AWS Bedrock.
package anthropic

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	llmprovider "github.com/starhound/null-llm-go"
	"github.com/starhound/null-llm-go/internal/transport"
	"github.com/starhound/null-llm-go/internal/workerpool"
)

const (
	// DefaultModel is used when the configuration names no model.
	DefaultModel = "claude-3-5-sonnet-20241022"

	// DefaultOAuthModel is the default for subscription access.
	DefaultOAuthModel = "claude-sonnet-4-20250514"

	// DefaultMaxTokens bounds every generation unless Options overrides it.
	DefaultMaxTokens = 8192

	oauthBeta      = "oauth-2025-04-20,interleaved-thinking-2025-05-14"
	oauthUserAgent = "null-llm/1.0 (external, cli)"
)

// FallbackModels is returned by ListModels when the models endpoint fails.
var FallbackModels = []string{
	"claude-3-5-sonnet-20241022",
	"claude-3-5-haiku-20241022",
	"claude-3-opus-20240229",
	"claude-3-sonnet-20240229",
	"claude-3-haiku-20240307",
}

// OAuthModels are the models offered to subscription accounts.
var OAuthModels = []string{
	"claude-sonnet-4-20250514",
	"claude-opus-4-20250514",
	"claude-3-5-sonnet-20241022",
	"claude-3-5-haiku-20241022",
	"claude-3-opus-20240229",
}

// Provider implements the llmprovider.Provider interface for Anthropic (Claude) models.
type Provider struct {
	client anthropic.Client
	id     llmprovider.ProviderID
	model  string

	options  *llmprovider.Options
	fallback []string
	listable bool
	pool     *workerpool.Pool
	logger   *slog.Logger
}

type settings struct {
	id         llmprovider.ProviderID
	httpClient *http.Client
	baseURL    string
	logger     *slog.Logger
	pool       *workerpool.Pool
	fallback   []string
	listable   bool
	extra      []option.RequestOption
}

// Option configures a Provider.
type Option func(*settings)

// WithHTTPClient replaces the shared pooled HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(s *settings) { s.httpClient = c }
}

// WithBaseURL points the client at a different API host (tests, proxies).
func WithBaseURL(url string) Option {
	return func(s *settings) { s.baseURL = url }
}

// WithLogger sets the logger; the default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *settings) { s.logger = l }
}

// WithWorkerPool runs each generation's blocking stream loop on pool.
func WithWorkerPool(pool *workerpool.Pool) Option {
	return func(s *settings) { s.pool = pool }
}

// WithIdentity makes the adapter report id and fall back to models when
// listing fails. listable controls whether the Models API is queried at all.
func WithIdentity(id llmprovider.ProviderID, models []string, listable bool) Option {
	return func(s *settings) {
		s.id = id
		s.fallback = models
		s.listable = listable
	}
}

// WithRequestOptions appends raw SDK options, e.g. a Bedrock transport.
func WithRequestOptions(opts ...option.RequestOption) Option {
	return func(s *settings) { s.extra = append(s.extra, opts...) }
}

// New creates an API-key provider.
func New(cfg llmprovider.ProviderConfig, opts ...Option) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, llmprovider.ErrInvalidAPIKey
	}
	return newProvider(cfg, DefaultModel, []option.RequestOption{option.WithAPIKey(cfg.APIKey)},
		append([]Option{WithIdentity(llmprovider.ProviderAnthropic, FallbackModels, true)}, opts...)...)
}

// NewOAuth creates a subscription provider. Every request asks cfg.Tokens
// for a valid bearer token, so refreshes happen transparently.
func NewOAuth(cfg llmprovider.ProviderConfig, opts ...Option) (*Provider, error) {
	if cfg.Tokens == nil {
		return nil, llmprovider.ErrInvalidAPIKey
	}
	tokens := cfg.Tokens
	auth := option.WithMiddleware(func(req *http.Request, next option.MiddlewareNext) (*http.Response, error) {
		token, err := tokens.ValidAccessToken(req.Context())
		if err != nil {
			return nil, err
		}
		req.Header.Del("X-Api-Key")
		req.Header.Set("Authorization", "Bearer "+token)
		return next(req)
	})
	return newProvider(cfg, DefaultOAuthModel, []option.RequestOption{
		auth,
		option.WithHeader("anthropic-beta", oauthBeta),
		option.WithHeader("User-Agent", oauthUserAgent),
	}, append([]Option{WithIdentity(llmprovider.ProviderClaudeOAuth, OAuthModels, false)}, opts...)...)
}

// NewWithTransport creates a provider whose authentication is carried by
// requestOpts alone (Bedrock signing).
func NewWithTransport(cfg llmprovider.ProviderConfig, defaultModel string, requestOpts []option.RequestOption, opts ...Option) (*Provider, error) {
	return newProvider(cfg, defaultModel, requestOpts, opts...)
}

func newProvider(cfg llmprovider.ProviderConfig, defaultModel string, auth []option.RequestOption, opts ...Option) (*Provider, error) {
	s := settings{id: llmprovider.ProviderAnthropic, listable: true}
	for _, opt := range opts {
		opt(&s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.httpClient == nil {
		s.httpClient = transport.ForOptions(cfg.Options)
	}
	if err := cfg.Options.Validate(); err != nil {
		return nil, err
	}

	requestOpts := []option.RequestOption{
		option.WithHTTPClient(s.httpClient),
		// Retries belong to the fallback orchestrator.
		option.WithMaxRetries(0),
	}
	if s.baseURL != "" {
		requestOpts = append(requestOpts, option.WithBaseURL(s.baseURL))
	}
	requestOpts = append(requestOpts, auth...)
	requestOpts = append(requestOpts, s.extra...)

	return &Provider{
		client:   anthropic.NewClient(requestOpts...),
		id:       s.id,
		model:    llmprovider.GetOrDefault(cfg.Model, defaultModel),
		options:  cfg.Options,
		fallback: s.fallback,
		listable: s.listable,
		pool:     s.pool,
		logger:   s.logger.With("provider", s.id.String()),
	}, nil
}

// Name returns the provider identifier.
func (p *Provider) Name() llmprovider.ProviderID {
	return p.id
}

// Model returns the model this provider generates with.
func (p *Provider) Model() string {
	return p.model
}

// SupportsTools reports true; every Claude model accepts tool declarations.
func (p *Provider) SupportsTools() bool {
	return true
}

// ListModels queries the Models API, falling back to a static list.
func (p *Provider) ListModels(ctx context.Context) []string {
	if !p.listable {
		return append([]string(nil), p.fallback...)
	}
	page, err := p.client.Models.List(ctx, anthropic.ModelListParams{})
	if err != nil {
		p.logger.Debug("list models failed", "error", err)
		return append([]string(nil), p.fallback...)
	}
	models := make([]string, 0, len(page.Data))
	for _, m := range page.Data {
		models = append(models, m.ID)
	}
	if len(models) == 0 {
		return append([]string(nil), p.fallback...)
	}
	return models
}

// ValidateConnection sends a ten-token message.
func (p *Provider) ValidateConnection(ctx context.Context) bool {
	_, err := p.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(p.model),
		MaxTokens: 10,
		Messages:  []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock("Hi"))},
	})
	if err != nil {
		p.logger.Debug("connection check failed", "error", err)
		return false
	}
	return true
}

// Close is a no-op; the HTTP client is shared.
func (p *Provider) Close() error {
	return nil
}
