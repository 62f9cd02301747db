// Package cohere streams Command models through the Cohere v2 chat API.
//
// Tool declarations are not sent: GenerateWithTools generates plain text and
// SupportsTools reports false.
package cohere

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	llmprovider "github.com/starhound/null-llm-go"
	"github.com/starhound/null-llm-go/internal/sse"
	"github.com/starhound/null-llm-go/internal/stream"
	"github.com/starhound/null-llm-go/internal/transport"
)

const (
	// DefaultModel is used when the configuration names no model.
	DefaultModel = "command-r-plus"

	defaultBaseURL = "https://api.cohere.com"
)

// FallbackModels is returned when listing fails.
var FallbackModels = []string{
	"command-r-plus",
	"command-r",
	"command",
	"command-light",
	"command-nightly",
}

type chatRequest struct {
	Model         string        `json:"model"`
	Messages      []chatMessage `json:"messages"`
	Stream        bool          `json:"stream"`
	MaxTokens     *int          `json:"max_tokens,omitempty"`
	Temperature   *float64      `json:"temperature,omitempty"`
	P             *float64      `json:"p,omitempty"`
	StopSequences []string      `json:"stop_sequences,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// streamEvent covers the v2 event payloads this adapter reads:
// content-delta carries text, message-end carries usage.
type streamEvent struct {
	Type  string `json:"type"`
	Delta struct {
		Message struct {
			Content struct {
				Text string `json:"text"`
			} `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
		Error        string `json:"error"`
		Usage        *struct {
			Tokens struct {
				InputTokens  float64 `json:"input_tokens"`
				OutputTokens float64 `json:"output_tokens"`
			} `json:"tokens"`
		} `json:"usage"`
	} `json:"delta"`
}

// Provider implements llmprovider.Provider for Cohere.
type Provider struct {
	model   string
	client  *transport.Client
	options *llmprovider.Options
	logger  *slog.Logger
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

// New creates a Cohere provider. An API key is required.
func New(cfg llmprovider.ProviderConfig, opts ...Option) (*Provider, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("%w: cohere requires an API key", llmprovider.ErrInvalidAPIKey)
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

	client, err := transport.New(llmprovider.ProviderCohere.String(), llmprovider.GetOrDefault(cfg.Endpoint, defaultBaseURL), s.httpClient)
	if err != nil {
		return nil, err
	}
	client.Logger = s.logger
	client.ApplyOptions(cfg.Options)
	client.DefaultHeaders.Set("Authorization", "Bearer "+strings.TrimSpace(cfg.APIKey))

	return &Provider{
		model:   llmprovider.GetOrDefault(cfg.Model, DefaultModel),
		client:  client,
		options: cfg.Options,
		logger:  s.logger.With("provider", llmprovider.ProviderCohere.String()),
	}, nil
}

func (p *Provider) Name() llmprovider.ProviderID { return llmprovider.ProviderCohere }
func (p *Provider) Model() string                { return p.model }
func (p *Provider) SupportsTools() bool          { return false }
func (p *Provider) Close() error                 { return nil }

// GenerateWithTools ignores tools and generates plain text.
func (p *Provider) GenerateWithTools(ctx context.Context, prompt string, history []llmprovider.Message, _ []llmprovider.Tool, systemPrompt string) <-chan llmprovider.StreamEvent {
	return p.Generate(ctx, prompt, history, systemPrompt)
}

// Generate streams a chat completion.
func (p *Provider) Generate(ctx context.Context, prompt string, history []llmprovider.Message, systemPrompt string) <-chan llmprovider.StreamEvent {
	return stream.Run(ctx, llmprovider.ProviderCohere.String(), func(e *stream.Emitter) error {
		req, err := p.buildRequest(prompt, history, systemPrompt)
		if err != nil {
			return err
		}

		resp, err := p.client.Stream(e.Context(), http.MethodPost, "/v2/chat", nil, req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		scanner := sse.NewScanner(resp.Body)
		ended := false
		for scanner.Next() {
			var ev streamEvent
			if err := json.Unmarshal([]byte(scanner.Event().Data), &ev); err != nil {
				continue
			}
			switch ev.Type {
			case "content-delta":
				if !e.Text(ev.Delta.Message.Content.Text) {
					return nil
				}
			case "message-end":
				ended = true
				if u := ev.Delta.Usage; u != nil {
					e.Usage(llmprovider.TokenUsage{
						InputTokens:  int(u.Tokens.InputTokens),
						OutputTokens: int(u.Tokens.OutputTokens),
					})
				}
				if ev.Delta.FinishReason == "ERROR" {
					return llmprovider.NewProviderError(llmprovider.ProviderCohere.String(), 0, llmprovider.GetOrDefault(ev.Delta.Error, "generation failed"))
				}
			}
		}
		if err := scanner.Err(); err != nil {
			return llmprovider.Classify(llmprovider.ProviderCohere.String(), fmt.Errorf("error reading stream: %w", err))
		}
		if !ended {
			return transport.Truncated(llmprovider.ProviderCohere.String(), "message-end")
		}
		return nil
	})
}

// buildRequest flattens the conversation to text turns. Tool results are
// sent as user text since tools are not declared.
func (p *Provider) buildRequest(prompt string, history []llmprovider.Message, systemPrompt string) (*chatRequest, error) {
	conversation := llmprovider.Conversation(prompt, history)
	if len(conversation) == 0 {
		return nil, fmt.Errorf("%w: conversation is empty", llmprovider.ErrInvalidRequest)
	}

	messages := []chatMessage{{Role: "system", Content: llmprovider.SystemPromptOrDefault(systemPrompt)}}
	for _, msg := range conversation {
		switch msg.Role {
		case llmprovider.RoleAssistant:
			if msg.Content != "" {
				messages = append(messages, chatMessage{Role: "assistant", Content: msg.Content})
			}
		case llmprovider.RoleTool:
			messages = append(messages, chatMessage{Role: "user", Content: "Tool Result: " + msg.Content})
		default:
			messages = append(messages, chatMessage{Role: "user", Content: msg.Content})
		}
	}

	req := &chatRequest{Model: p.model, Messages: messages, Stream: true}
	if o := p.options; o != nil {
		req.MaxTokens = o.MaxTokens
		req.Temperature = o.Temperature
		req.P = o.TopP
		req.StopSequences = o.Stop
	}
	return req, nil
}

func (p *Provider) fetchModels(ctx context.Context) ([]string, error) {
	var out struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := p.client.JSON(ctx, http.MethodGet, "/v1/models?endpoint=chat", nil, nil, &out); err != nil {
		return nil, err
	}
	models := make([]string, 0, len(out.Models))
	for _, m := range out.Models {
		models = append(models, m.Name)
	}
	return models, nil
}

// ListModels returns the chat-capable models, or FallbackModels on failure.
func (p *Provider) ListModels(ctx context.Context) []string {
	models, err := p.fetchModels(ctx)
	if err != nil || len(models) == 0 {
		if err != nil {
			p.logger.Debug("list models failed", "error", err)
		}
		return append([]string(nil), FallbackModels...)
	}
	return models
}

// ValidateConnection lists models.
func (p *Provider) ValidateConnection(ctx context.Context) bool {
	_, err := p.fetchModels(ctx)
	return err == nil
}
