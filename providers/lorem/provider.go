// Package lorem is an offline mock provider that streams lorem ipsum text.
// It needs no network or credentials and is used for demos and tests.
package lorem

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	loremgen "github.com/bozaro/golorem"

	llmprovider "github.com/starhound/null-llm-go"
	"github.com/starhound/null-llm-go/internal/stream"
	"github.com/starhound/null-llm-go/usage"
)

const (
	// DefaultModel is used when the configuration names no model.
	DefaultModel = "lorem-medium"

	defaultMaxWords = 60
)

// Models are the model names the provider answers to. The name selects the
// streaming speed; "cutoff" models stop early as if max_tokens was hit.
var Models = []string{"lorem-fast", "lorem-medium", "lorem-slow", "lorem-cutoff"}

// Provider is a mock LLM provider that generates lorem ipsum text.
// When tools are offered it calls one of them, then answers in text once
// the tool result comes back.
type Provider struct {
	model string

	mu        sync.Mutex // guards generator, which is not safe for concurrent use
	generator *loremgen.Lorem

	delay   time.Duration
	options *llmprovider.Options
	logger  *slog.Logger
}

// Option configures a Provider.
type Option func(*Provider)

// WithDelay overrides the per-word delay the model name implies.
func WithDelay(d time.Duration) Option {
	return func(p *Provider) { p.delay = d }
}

// WithLogger sets the logger; the default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(p *Provider) { p.logger = l }
}

// New creates a lorem provider. Model names must start with "lorem-".
func New(cfg llmprovider.ProviderConfig, opts ...Option) (*Provider, error) {
	model := llmprovider.GetOrDefault(cfg.Model, DefaultModel)
	if !SupportsModel(model) {
		return nil, fmt.Errorf("%w: model %q not supported by the lorem provider (must start with 'lorem-')", llmprovider.ErrInvalidRequest, model)
	}
	if err := cfg.Options.Validate(); err != nil {
		return nil, err
	}

	p := &Provider{
		model:     model,
		generator: loremgen.New(),
		delay:     streamDelay(model),
		options:   cfg.Options,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.With("provider", llmprovider.ProviderLorem.String())
	return p, nil
}

// SupportsModel returns true if the model name starts with "lorem-".
func SupportsModel(model string) bool {
	return strings.HasPrefix(model, "lorem-")
}

// streamDelay returns the delay between words based on the model name.
//   - lorem-slow: 2 words/second
//   - lorem-fast: 30 words/second
//   - default: 10 words/second
func streamDelay(model string) time.Duration {
	switch {
	case strings.Contains(model, "slow"):
		return 500 * time.Millisecond
	case strings.Contains(model, "fast"):
		return 33 * time.Millisecond
	default:
		return 100 * time.Millisecond
	}
}

// isCutoffModel returns true if the model should simulate max_tokens cutoff.
func isCutoffModel(model string) bool {
	return strings.Contains(model, "cutoff") || strings.Contains(model, "small")
}

// Name returns the provider identifier.
func (p *Provider) Name() llmprovider.ProviderID {
	return llmprovider.ProviderLorem
}

// Model returns the model name.
func (p *Provider) Model() string {
	return p.model
}

// SupportsTools reports true.
func (p *Provider) SupportsTools() bool {
	return true
}

// ListModels returns Models.
func (p *Provider) ListModels(context.Context) []string {
	return append([]string(nil), Models...)
}

// ValidateConnection always succeeds.
func (p *Provider) ValidateConnection(context.Context) bool {
	return true
}

// Close is a no-op.
func (p *Provider) Close() error {
	return nil
}

// Generate streams lorem ipsum words.
func (p *Provider) Generate(ctx context.Context, prompt string, history []llmprovider.Message, systemPrompt string) <-chan llmprovider.StreamEvent {
	return p.GenerateWithTools(ctx, prompt, history, nil, systemPrompt)
}

// GenerateWithTools streams a short text and, unless the conversation ends
// with a tool result, a call to one of tools (rotating by turn).
func (p *Provider) GenerateWithTools(ctx context.Context, prompt string, history []llmprovider.Message, tools []llmprovider.Tool, systemPrompt string) <-chan llmprovider.StreamEvent {
	return stream.Run(ctx, llmprovider.ProviderLorem.String(), func(e *stream.Emitter) error {
		conversation := llmprovider.Conversation(prompt, history)
		if len(conversation) == 0 {
			return fmt.Errorf("%w: conversation is empty", llmprovider.ErrInvalidRequest)
		}

		in := usage.EstimateTokens(llmprovider.SystemPromptOrDefault(systemPrompt))
		for _, msg := range conversation {
			in += usage.EstimateTokens(msg.Content)
		}

		answering := conversation[len(conversation)-1].Role == llmprovider.RoleTool
		callTool := len(tools) > 0 && !answering

		maxWords := p.options.GetMaxTokens(defaultMaxWords)
		target := maxWords
		if callTool {
			target = min(target, 12)
		}
		sent, err := p.streamWords(e, target, maxWords)
		if err != nil {
			return err
		}
		e.Usage(llmprovider.TokenUsage{InputTokens: in, OutputTokens: sent})

		if !callTool {
			return nil
		}

		calls := llmprovider.NewToolCallSet()
		turn := 0
		for _, msg := range conversation {
			if msg.Role == llmprovider.RoleAssistant {
				turn++
			}
		}
		tool := tools[turn%len(tools)]
		call := calls.Complete(fmt.Sprintf("toolu_%s_%d", tool.Function.Name, turn), tool.Function.Name, mockInput(&tool))
		p.logger.Debug("mock tool call", "tool", call.Name, "id", call.ID)

		e.Complete([]llmprovider.ToolCallRequest{call})
		return nil
	})
}

// streamWords streams target words, one event per word. Cutoff models
// generate half as many again and stop at maxWords.
func (p *Provider) streamWords(e *stream.Emitter, target, maxWords int) (int, error) {
	cutoff := isCutoffModel(p.model)
	if cutoff {
		target += target / 2
	}
	words := strings.Fields(p.generateTextWords(target))

	sent := 0
	for _, word := range words {
		if cutoff && sent >= maxWords {
			break
		}
		if !e.Text(word + " ") {
			return sent, e.Context().Err()
		}
		sent++

		if p.delay > 0 {
			select {
			case <-e.Context().Done():
				return sent, e.Context().Err()
			case <-time.After(p.delay):
			}
		}
	}
	return sent, nil
}

// generateTextWords generates lorem ipsum text with approximately targetWords words.
func (p *Provider) generateTextWords(targetWords int) string {
	p.mu.Lock()
	defer p.mu.Unlock()

	var sb strings.Builder
	wordCount := 0

	for wordCount < targetWords {
		// Generate sentence with 5-15 words
		sentence := p.generator.Sentence(5, 15)
		sb.WriteString(sentence)
		sb.WriteString(" ")
		wordCount += len(strings.Fields(sentence))
	}

	words := strings.Fields(sb.String())
	if len(words) > targetWords {
		words = words[:targetWords]
	}
	return strings.Join(words, " ")
}

// mockInput fabricates arguments for a tool: canned inputs for well-known
// tool names, otherwise one placeholder value per schema property.
func mockInput(tool *llmprovider.Tool) map[string]any {
	switch tool.Function.Name {
	case "search":
		return map[string]any{"query": "lorem ipsum dolor sit amet"}
	case "bash", "run_command":
		return map[string]any{"command": "echo 'lorem ipsum'"}
	case "text_editor":
		return map[string]any{
			"command":   "str_replace",
			"file_path": "/path/to/file.txt",
			"old_str":   "consectetur",
			"new_str":   "adipiscing",
		}
	}

	props, _ := tool.Function.Parameters["properties"].(map[string]any)
	names := make([]string, 0, len(props))
	for name := range props {
		names = append(names, name)
	}
	sort.Strings(names)

	input := make(map[string]any, len(names))
	for _, name := range names {
		schema, _ := props[name].(map[string]any)
		switch schema["type"] {
		case "integer", "number":
			input[name] = 1
		case "boolean":
			input[name] = true
		case "array":
			input[name] = []any{"lorem"}
		case "object":
			input[name] = map[string]any{}
		default:
			input[name] = "lorem"
		}
	}
	return input
}
