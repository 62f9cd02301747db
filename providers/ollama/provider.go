// Package ollama streams chat completions from a local Ollama server.
package ollama

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	llmprovider "github.com/starhound/null-llm-go"
	"github.com/starhound/null-llm-go/internal/sse"
	"github.com/starhound/null-llm-go/internal/stream"
	"github.com/starhound/null-llm-go/internal/transport"
)

const (
	// DefaultEndpoint is the address Ollama listens on out of the box.
	DefaultEndpoint = "http://localhost:11434"

	// DefaultModel is used when the configuration names no model.
	DefaultModel = "llama3.2"
)

// ChatRequest is the /api/chat request body.
type ChatRequest struct {
	Model    string         `json:"model"`
	Messages []ChatMessage  `json:"messages"`
	Stream   bool           `json:"stream"`
	Tools    []Tool         `json:"tools,omitempty"`
	Options  map[string]any `json:"options,omitempty"`
}

// ChatMessage is one turn. Tool calls carry decoded arguments.
type ChatMessage struct {
	Role      string     `json:"role"`
	Content   string     `json:"content"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
}

// ToolCall is a whole function call; Ollama never fragments them.
type ToolCall struct {
	Function struct {
		Name      string         `json:"name"`
		Arguments map[string]any `json:"arguments"`
	} `json:"function"`
}

// Tool is an OpenAI-style function tool.
type Tool struct {
	Type     string `json:"type"`
	Function struct {
		Name        string         `json:"name"`
		Description string         `json:"description,omitempty"`
		Parameters  map[string]any `json:"parameters"`
	} `json:"function"`
}

// ChatChunk is one NDJSON line of a streamed chat.
type ChatChunk struct {
	Model           string      `json:"model"`
	Message         ChatMessage `json:"message"`
	Done            bool        `json:"done"`
	DoneReason      string      `json:"done_reason,omitempty"`
	PromptEvalCount int         `json:"prompt_eval_count,omitempty"`
	EvalCount       int         `json:"eval_count,omitempty"`
	Error           string      `json:"error,omitempty"`
}

type tagList struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// Provider implements llmprovider.Provider for Ollama.
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

// New creates an Ollama provider. No credentials are needed.
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

	client, err := transport.New(llmprovider.ProviderOllama.String(), llmprovider.GetOrDefault(cfg.Endpoint, DefaultEndpoint), s.httpClient)
	if err != nil {
		return nil, err
	}
	client.Logger = s.logger
	client.ApplyOptions(cfg.Options)

	return &Provider{
		model:   llmprovider.GetOrDefault(cfg.Model, DefaultModel),
		client:  client,
		options: cfg.Options,
		logger:  s.logger.With("provider", llmprovider.ProviderOllama.String()),
	}, nil
}

// Name returns the provider identifier.
func (p *Provider) Name() llmprovider.ProviderID { return llmprovider.ProviderOllama }

// Model returns the configured model tag.
func (p *Provider) Model() string { return p.model }

// SupportsTools reports true. Whether the model uses them depends on the
// model; Ollama ignores tools for models without a tool template.
func (p *Provider) SupportsTools() bool { return true }

// Close is a no-op.
func (p *Provider) Close() error { return nil }

// Generate streams a plain completion.
func (p *Provider) Generate(ctx context.Context, prompt string, history []llmprovider.Message, systemPrompt string) <-chan llmprovider.StreamEvent {
	return p.GenerateWithTools(ctx, prompt, history, nil, systemPrompt)
}

// GenerateWithTools streams a chat that may end in tool calls.
func (p *Provider) GenerateWithTools(ctx context.Context, prompt string, history []llmprovider.Message, tools []llmprovider.Tool, systemPrompt string) <-chan llmprovider.StreamEvent {
	return stream.Run(ctx, llmprovider.ProviderOllama.String(), func(e *stream.Emitter) error {
		req, err := p.buildRequest(prompt, history, tools, systemPrompt)
		if err != nil {
			return err
		}

		resp, err := p.client.Stream(e.Context(), http.MethodPost, "/api/chat", http.Header{"Accept": {"application/x-ndjson"}}, req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		lines := sse.NewLines(resp.Body)
		calls := llmprovider.NewToolCallSet()
		var finished []llmprovider.ToolCallRequest
		done := false

		for lines.Next() {
			var chunk ChatChunk
			if err := json.Unmarshal(lines.Bytes(), &chunk); err != nil {
				p.logger.Debug("skipping malformed line", "error", err)
				continue
			}
			if chunk.Error != "" {
				return llmprovider.NewProviderError(llmprovider.ProviderOllama.String(), 0, chunk.Error)
			}
			if !e.Text(chunk.Message.Content) {
				return nil
			}
			for _, call := range chunk.Message.ToolCalls {
				finished = append(finished, calls.Complete("", call.Function.Name, call.Function.Arguments))
			}
			if chunk.Done {
				done = true
				e.Usage(llmprovider.TokenUsage{InputTokens: chunk.PromptEvalCount, OutputTokens: chunk.EvalCount})
				break
			}
		}
		if err := lines.Err(); err != nil {
			return llmprovider.Classify(llmprovider.ProviderOllama.String(), fmt.Errorf("error reading stream: %w", err))
		}
		if !done {
			return transport.Truncated(llmprovider.ProviderOllama.String(), "the done chunk")
		}

		e.Complete(finished)
		return nil
	})
}

func (p *Provider) buildRequest(prompt string, history []llmprovider.Message, tools []llmprovider.Tool, systemPrompt string) (*ChatRequest, error) {
	conversation := llmprovider.Conversation(prompt, history)
	if len(conversation) == 0 {
		return nil, fmt.Errorf("%w: conversation is empty", llmprovider.ErrInvalidRequest)
	}

	messages := make([]ChatMessage, 0, len(conversation)+1)
	messages = append(messages, ChatMessage{Role: "system", Content: llmprovider.SystemPromptOrDefault(systemPrompt)})
	for _, msg := range conversation {
		out := ChatMessage{Role: string(msg.Role), Content: msg.Content}
		for _, call := range msg.ToolCalls {
			var tc ToolCall
			tc.Function.Name = call.Name
			tc.Function.Arguments = call.Arguments
			out.ToolCalls = append(out.ToolCalls, tc)
		}
		messages = append(messages, out)
	}

	req := &ChatRequest{Model: p.model, Messages: messages, Stream: true}

	for i := range tools {
		tool := &tools[i]
		if err := tool.Validate(); err != nil {
			return nil, fmt.Errorf("%w: tool %d (%s): %v", llmprovider.ErrInvalidRequest, i, tool.Function.Name, err)
		}
		var t Tool
		t.Type = "function"
		t.Function.Name = tool.Function.Name
		t.Function.Description = tool.Function.Description
		t.Function.Parameters = tool.Function.Parameters
		req.Tools = append(req.Tools, t)
	}

	if o := p.options; o != nil {
		req.Options = make(map[string]any)
		if o.Temperature != nil {
			req.Options["temperature"] = *o.Temperature
		}
		if o.TopP != nil {
			req.Options["top_p"] = *o.TopP
		}
		if o.MaxTokens != nil {
			req.Options["num_predict"] = *o.MaxTokens
		}
		if len(o.Stop) > 0 {
			req.Options["stop"] = o.Stop
		}
		if len(req.Options) == 0 {
			req.Options = nil
		}
	}
	return req, nil
}

func (p *Provider) tags(ctx context.Context) ([]string, error) {
	var out tagList
	if err := p.client.JSON(ctx, http.MethodGet, "/api/tags", nil, nil, &out); err != nil {
		return nil, err
	}
	models := make([]string, 0, len(out.Models))
	for _, m := range out.Models {
		models = append(models, m.Name)
	}
	return models, nil
}

// ListModels returns the locally pulled models. An unreachable server has
// no models, so the fallback is the configured model alone.
func (p *Provider) ListModels(ctx context.Context) []string {
	models, err := p.tags(ctx)
	if err != nil || len(models) == 0 {
		if err != nil {
			p.logger.Debug("list models failed", "error", err)
		}
		return []string{p.model}
	}
	return models
}

// ValidateConnection checks that the server answers /api/tags.
func (p *Provider) ValidateConnection(ctx context.Context) bool {
	_, err := p.tags(ctx)
	return err == nil
}
