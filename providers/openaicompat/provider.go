// Package openaicompat implements the OpenAI Chat Completions wire format and
// the vendors that speak it: OpenAI and Azure OpenAI, hosted APIs such as
// Groq, Mistral and OpenRouter, and local servers such as LM Studio and
// llama.cpp.
package openaicompat

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	llmprovider "github.com/starhound/null-llm-go"
	"github.com/starhound/null-llm-go/internal/transport"
)

// DefaultAzureAPIVersion is sent when an Azure configuration names none.
const DefaultAzureAPIVersion = "2024-02-01"

// Preset describes one OpenAI-compatible vendor.
type Preset struct {
	ID           llmprovider.ProviderID
	BaseURL      string // may contain {account_id} or {model}
	DefaultModel string

	// DefaultKey is sent when the configuration has no API key. Local
	// servers accept any token.
	DefaultKey string

	// ForceV1 appends /v1 to a configured endpoint that lacks it.
	ForceV1 bool

	// StreamUsage requests a final usage chunk via stream_options.
	StreamUsage bool

	FallbackModels []string
}

var presets = map[llmprovider.ProviderID]Preset{
	llmprovider.ProviderOpenAI: {
		BaseURL:        "https://api.openai.com/v1",
		DefaultModel:   "gpt-4o-mini",
		StreamUsage:    true,
		FallbackModels: []string{"gpt-4o", "gpt-4o-mini", "gpt-4-turbo", "gpt-3.5-turbo", "o1", "o1-mini"},
	},
	llmprovider.ProviderAzure: {
		DefaultModel: "gpt-4o",
	},
	llmprovider.ProviderLMStudio: {
		BaseURL:      "http://localhost:1234/v1",
		DefaultModel: "local-model",
		DefaultKey:   "lm-studio",
		ForceV1:      true,
	},
	llmprovider.ProviderLlamaCpp: {
		BaseURL:      "http://localhost:8000/v1",
		DefaultModel: "default",
		DefaultKey:   "token-not-needed",
		ForceV1:      true,
	},
	llmprovider.ProviderGroq: {
		BaseURL:        "https://api.groq.com/openai/v1",
		DefaultModel:   "llama-3.3-70b-versatile",
		FallbackModels: []string{"llama-3.3-70b-versatile", "llama-3.1-8b-instant", "mixtral-8x7b-32768", "gemma2-9b-it"},
	},
	llmprovider.ProviderMistral: {
		BaseURL:        "https://api.mistral.ai/v1",
		DefaultModel:   "mistral-large-latest",
		FallbackModels: []string{"mistral-large-latest", "mistral-small-latest", "codestral-latest", "open-mixtral-8x22b"},
	},
	llmprovider.ProviderTogether: {
		BaseURL:        "https://api.together.xyz/v1",
		DefaultModel:   "meta-llama/Llama-3.3-70B-Instruct-Turbo",
		StreamUsage:    true,
		FallbackModels: []string{"meta-llama/Llama-3.3-70B-Instruct-Turbo", "Qwen/Qwen2.5-72B-Instruct-Turbo", "mistralai/Mixtral-8x7B-Instruct-v0.1"},
	},
	llmprovider.ProviderNvidia: {
		BaseURL:        "https://integrate.api.nvidia.com/v1",
		DefaultModel:   "meta/llama-3.1-8b-instruct",
		StreamUsage:    true,
		FallbackModels: NvidiaFreeModels,
	},
	llmprovider.ProviderXAI: {
		BaseURL:        "https://api.x.ai/v1",
		DefaultModel:   "grok-beta",
		StreamUsage:    true,
		FallbackModels: []string{"grok-beta", "grok-2-latest"},
	},
	llmprovider.ProviderOpenRouter: {
		BaseURL:        "https://openrouter.ai/api/v1",
		DefaultModel:   "openai/gpt-4o-mini",
		StreamUsage:    true,
		FallbackModels: []string{"openai/gpt-4o-mini", "openai/gpt-4o", "anthropic/claude-3.5-sonnet", "google/gemini-2.0-flash-001", "meta-llama/llama-3.3-70b-instruct"},
	},
	llmprovider.ProviderFireworks: {
		BaseURL:        "https://api.fireworks.ai/inference/v1",
		DefaultModel:   "accounts/fireworks/models/llama-v3p3-70b-instruct",
		StreamUsage:    true,
		FallbackModels: []string{"accounts/fireworks/models/llama-v3p3-70b-instruct", "accounts/fireworks/models/qwen2p5-72b-instruct"},
	},
	llmprovider.ProviderDeepSeek: {
		BaseURL:        "https://api.deepseek.com/v1",
		DefaultModel:   "deepseek-chat",
		StreamUsage:    true,
		FallbackModels: []string{"deepseek-chat", "deepseek-coder", "deepseek-reasoner"},
	},
	llmprovider.ProviderPerplexity: {
		BaseURL:        "https://api.perplexity.ai",
		DefaultModel:   "llama-3.1-sonar-large-128k-online",
		FallbackModels: []string{"llama-3.1-sonar-large-128k-online", "llama-3.1-sonar-small-128k-online", "llama-3.1-sonar-huge-128k-online"},
	},
	llmprovider.ProviderCustom: {
		BaseURL:      "http://localhost:8000/v1",
		DefaultModel: "custom-model",
		DefaultKey:   "not-needed",
	},
	llmprovider.ProviderCloudflare: {
		BaseURL:        "https://api.cloudflare.com/client/v4/accounts/{account_id}/ai/v1",
		DefaultModel:   "@cf/meta/llama-3-8b-instruct",
		FallbackModels: []string{"@cf/meta/llama-3-8b-instruct", "@cf/meta/llama-3.1-8b-instruct", "@cf/mistral/mistral-7b-instruct-v0.1"},
	},
	llmprovider.ProviderHuggingFace: {
		BaseURL:      "https://api-inference.huggingface.co/models/{model}/v1",
		DefaultModel: "meta-llama/Meta-Llama-3-8B-Instruct",
	},
}

// PresetFor returns the preset for id.
func PresetFor(id llmprovider.ProviderID) (Preset, bool) {
	p, ok := presets[id]
	if ok {
		p.ID = id
	}
	return p, ok
}

// Provider implements llmprovider.Provider for OpenAI-compatible APIs.
type Provider struct {
	id         llmprovider.ProviderID
	preset     Preset
	model      string
	apiVersion string // azure only
	client     *transport.Client
	options    *llmprovider.Options
	logger     *slog.Logger
}

type settings struct {
	httpClient *http.Client
	logger     *slog.Logger
}

// Option configures a Provider.
type Option func(*settings)

// WithHTTPClient replaces the shared pooled HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(s *settings) { s.httpClient = c }
}

// WithLogger sets the logger; the default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *settings) { s.logger = l }
}

// New creates a provider for cfg.Name, which must be one of the presets.
// cfg.Endpoint overrides the preset's base URL.
func New(cfg llmprovider.ProviderConfig, opts ...Option) (*Provider, error) {
	preset, ok := PresetFor(cfg.Name)
	if !ok {
		return nil, fmt.Errorf("%w: %q is not an OpenAI-compatible provider", llmprovider.ErrInvalidRequest, cfg.Name)
	}

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

	apiKey := llmprovider.GetOrDefault(cfg.APIKey, preset.DefaultKey)
	if apiKey == "" {
		return nil, fmt.Errorf("%w: %s requires an API key", llmprovider.ErrInvalidAPIKey, cfg.Name)
	}

	model := llmprovider.GetOrDefault(cfg.Model, preset.DefaultModel)
	baseURL, err := resolveBaseURL(preset, cfg, model)
	if err != nil {
		return nil, err
	}

	client, err := transport.New(cfg.Name.String(), baseURL, s.httpClient)
	if err != nil {
		return nil, err
	}
	client.Logger = s.logger
	client.ApplyOptions(cfg.Options)
	if cfg.Name == llmprovider.ProviderAzure {
		client.DefaultHeaders.Set("api-key", apiKey)
	} else {
		client.DefaultHeaders.Set("Authorization", "Bearer "+apiKey)
	}
	if cfg.Name == llmprovider.ProviderOpenRouter {
		client.DefaultHeaders.Set("X-Title", "null-llm")
	}

	return &Provider{
		id:         cfg.Name,
		preset:     preset,
		model:      model,
		apiVersion: llmprovider.GetOrDefault(cfg.APIVersion, DefaultAzureAPIVersion),
		client:     client,
		options:    cfg.Options,
		logger:     s.logger.With("provider", cfg.Name.String()),
	}, nil
}

// resolveBaseURL picks the endpoint for a preset and fills its placeholders.
func resolveBaseURL(preset Preset, cfg llmprovider.ProviderConfig, model string) (string, error) {
	if preset.ID == llmprovider.ProviderAzure && cfg.Endpoint == "" {
		return "", fmt.Errorf("%w: azure requires an endpoint", llmprovider.ErrInvalidRequest)
	}

	base := strings.TrimRight(llmprovider.GetOrDefault(cfg.Endpoint, preset.BaseURL), "/")
	if cfg.Endpoint != "" && preset.ForceV1 && !strings.HasSuffix(base, "/v1") {
		base += "/v1"
	}

	if strings.Contains(base, "{account_id}") {
		if cfg.AccountID == "" {
			return "", fmt.Errorf("%w: %s requires an account id", llmprovider.ErrInvalidRequest, cfg.Name)
		}
		base = strings.ReplaceAll(base, "{account_id}", url.PathEscape(cfg.AccountID))
	}
	// Model IDs like "meta-llama/Meta-Llama-3-8B-Instruct" are path segments here.
	base = strings.ReplaceAll(base, "{model}", model)
	return base, nil
}

// Name returns the provider identifier.
func (p *Provider) Name() llmprovider.ProviderID {
	return p.id
}

// Model returns the configured model (the deployment name on Azure).
func (p *Provider) Model() string {
	return p.model
}

// SupportsTools reports true; every preset accepts the tools parameter.
func (p *Provider) SupportsTools() bool {
	return true
}

// Close is a no-op; connections belong to the shared HTTP client.
func (p *Provider) Close() error {
	return nil
}

// chatPath is the completions path for this vendor.
func (p *Provider) chatPath() string {
	if p.id == llmprovider.ProviderAzure {
		return "/openai/deployments/" + url.PathEscape(p.model) + "/chat/completions?api-version=" + url.QueryEscape(p.apiVersion)
	}
	return "/chat/completions"
}
