// Package gemini streams Gemini models from Google AI Studio (API key) and
// Vertex AI (bearer tokens scoped to a project and location).
package gemini

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	llmprovider "github.com/starhound/null-llm-go"
	"github.com/starhound/null-llm-go/internal/transport"
)

const (
	// DefaultModel is used when the configuration names no model.
	DefaultModel = "gemini-2.0-flash"

	// DefaultLocation is the Vertex AI region used when none is configured.
	DefaultLocation = "us-central1"

	defaultTemperature = 0.7

	studioBaseURL = "https://generativelanguage.googleapis.com/v1beta"
)

// FallbackModels is returned when model listing fails.
var FallbackModels = []string{
	"gemini-2.5-pro",
	"gemini-2.5-flash",
	"gemini-2.0-flash",
	"gemini-2.0-flash-lite",
	"gemini-1.5-pro",
	"gemini-1.5-flash",
}

// Provider implements llmprovider.Provider for Gemini.
type Provider struct {
	id      llmprovider.ProviderID
	model   string
	client  *transport.Client
	catalog *transport.Client
	options *llmprovider.Options
	logger  *slog.Logger
}

type settings struct {
	httpClient *http.Client
	baseURL    string
	logger     *slog.Logger
}

// Option configures a Provider.
type Option func(*settings)

// WithHTTPClient replaces the shared pooled HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(s *settings) { s.httpClient = c }
}

// WithBaseURL points generation and model listing at url.
func WithBaseURL(url string) Option {
	return func(s *settings) { s.baseURL = url }
}

// WithLogger sets the logger; the default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *settings) { s.logger = l }
}

// New creates a Gemini provider.
//
// For llmprovider.ProviderGoogle an API key is required. For
// llmprovider.ProviderGoogleVertex a project ID is required, and requests
// authenticate with cfg.Tokens (an access token from the gcloud credential
// chain) unless an API key is configured.
func New(cfg llmprovider.ProviderConfig, opts ...Option) (*Provider, error) {
	s := settings{logger: slog.Default()}
	for _, opt := range opts {
		opt(&s)
	}
	if err := cfg.Options.Validate(); err != nil {
		return nil, err
	}
	if s.httpClient == nil {
		s.httpClient = transport.ForOptions(cfg.Options)
	}

	id := cfg.Name
	if id == "" {
		id = llmprovider.ProviderGoogle
	}

	var base, catalogBase string
	switch id {
	case llmprovider.ProviderGoogle:
		if strings.TrimSpace(cfg.APIKey) == "" {
			return nil, fmt.Errorf("%w: google requires an API key", llmprovider.ErrInvalidAPIKey)
		}
		base = studioBaseURL
		catalogBase = studioBaseURL
	case llmprovider.ProviderGoogleVertex:
		if cfg.ProjectID == "" {
			return nil, fmt.Errorf("%w: google_vertex requires a project id", llmprovider.ErrInvalidRequest)
		}
		if cfg.APIKey == "" && cfg.Tokens == nil {
			return nil, fmt.Errorf("%w: google_vertex requires an access token source or API key", llmprovider.ErrInvalidAPIKey)
		}
		location := llmprovider.GetOrDefault(cfg.Location, DefaultLocation)
		host := fmt.Sprintf("https://%s-aiplatform.googleapis.com", location)
		base = fmt.Sprintf("%s/v1/projects/%s/locations/%s/publishers/google",
			host, url.PathEscape(cfg.ProjectID), url.PathEscape(location))
		catalogBase = host + "/v1beta1/publishers/google"
	default:
		return nil, fmt.Errorf("%w: %q is not a Gemini provider", llmprovider.ErrInvalidRequest, id)
	}
	if s.baseURL != "" {
		base, catalogBase = s.baseURL, s.baseURL
	}

	client, err := newClient(id, base, s, cfg)
	if err != nil {
		return nil, err
	}
	catalog, err := newClient(id, catalogBase, s, cfg)
	if err != nil {
		return nil, err
	}

	return &Provider{
		id:      id,
		model:   llmprovider.GetOrDefault(strings.TrimSpace(cfg.Model), DefaultModel),
		client:  client,
		catalog: catalog,
		options: cfg.Options,
		logger:  s.logger.With("provider", id.String()),
	}, nil
}

func newClient(id llmprovider.ProviderID, base string, s settings, cfg llmprovider.ProviderConfig) (*transport.Client, error) {
	c, err := transport.New(id.String(), base, s.httpClient)
	if err != nil {
		return nil, err
	}
	c.Logger = s.logger
	c.ApplyOptions(cfg.Options)

	if key := strings.TrimSpace(cfg.APIKey); key != "" {
		c.DefaultHeaders.Set("x-goog-api-key", key)
		return c, nil
	}
	tokens := cfg.Tokens
	c.Prepare = func(req *http.Request, _ []byte) error {
		token, err := tokens.ValidAccessToken(req.Context())
		if err != nil {
			if llmprovider.Kind(err) == nil {
				err = fmt.Errorf("%w: %v", llmprovider.ErrAuthentication, err)
			}
			return err
		}
		req.Header.Set("Authorization", "Bearer "+token)
		return nil
	}
	return c, nil
}

// Name returns google or google_vertex.
func (p *Provider) Name() llmprovider.ProviderID {
	return p.id
}

// Model returns the configured model.
func (p *Provider) Model() string {
	return p.model
}

// SupportsTools reports true.
func (p *Provider) SupportsTools() bool {
	return true
}

// Close is a no-op.
func (p *Provider) Close() error {
	return nil
}

func (p *Provider) modelPath(method string) string {
	return "/models/" + url.PathEscape(p.model) + ":" + method
}

// thinks reports whether the model can return thought parts.
func (p *Provider) thinks() bool {
	m := strings.ToLower(p.model)
	return strings.Contains(m, "2.5") || strings.Contains(m, "gemini-3")
}
