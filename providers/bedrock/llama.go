package bedrock

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	llmprovider "github.com/starhound/null-llm-go"
	"github.com/starhound/null-llm-go/internal/stream"
	"github.com/starhound/null-llm-go/internal/transport"
)

const (
	defaultLlamaMaxGenLen = 2048
	defaultTemperature    = 0.5
	defaultTopP           = 0.9
)

type llamaRequest struct {
	Prompt      string  `json:"prompt"`
	MaxGenLen   int     `json:"max_gen_len"`
	Temperature float64 `json:"temperature"`
	TopP        float64 `json:"top_p"`
}

// llamaChunk is one streamed fragment. Token counts are running totals;
// the last chunk carries a stop reason and the invocation metrics.
type llamaChunk struct {
	Generation           string  `json:"generation"`
	PromptTokenCount     int     `json:"prompt_token_count"`
	GenerationTokenCount int     `json:"generation_token_count"`
	StopReason           *string `json:"stop_reason"`
	Metrics              *struct {
		InputTokenCount  int `json:"inputTokenCount"`
		OutputTokenCount int `json:"outputTokenCount"`
	} `json:"amazon-bedrock-invocationMetrics"`
}

// Generate streams a plain completion.
func (p *Provider) Generate(ctx context.Context, prompt string, history []llmprovider.Message, systemPrompt string) <-chan llmprovider.StreamEvent {
	switch p.family {
	case FamilyClaude:
		return p.claude.Generate(ctx, prompt, history, systemPrompt)
	case FamilyLlama:
		return p.generateLlama(ctx, prompt, history, systemPrompt)
	default:
		return stream.Run(ctx, p.Name().String(), func(*stream.Emitter) error {
			return fmt.Errorf("%w: unsupported Bedrock model family for %q", llmprovider.ErrInvalidRequest, p.model)
		})
	}
}

// GenerateWithTools forwards tools to Claude models; other families
// generate plain text.
func (p *Provider) GenerateWithTools(ctx context.Context, prompt string, history []llmprovider.Message, tools []llmprovider.Tool, systemPrompt string) <-chan llmprovider.StreamEvent {
	if p.family == FamilyClaude {
		return p.claude.GenerateWithTools(ctx, prompt, history, tools, systemPrompt)
	}
	return p.Generate(ctx, prompt, history, systemPrompt)
}

// generateLlama runs InvokeModelWithResponseStream on the worker pool and
// forwards each generated fragment as it arrives.
func (p *Provider) generateLlama(ctx context.Context, prompt string, history []llmprovider.Message, systemPrompt string) <-chan llmprovider.StreamEvent {
	return stream.Run(ctx, p.Name().String(), func(e *stream.Emitter) error {
		req := llamaRequest{
			Prompt:      formatLlamaPrompt(p.model, llmprovider.SystemPromptOrDefault(systemPrompt), llmprovider.Conversation(prompt, history)),
			MaxGenLen:   p.options.GetMaxTokens(defaultLlamaMaxGenLen),
			Temperature: p.options.GetTemperature(defaultTemperature),
			TopP:        p.options.GetTopP(defaultTopP),
		}

		done := make(chan error, 1)
		err := p.pool.Submit(e.Context(), func(ctx context.Context) {
			done <- p.streamLlama(ctx, e, req)
		})
		if err != nil {
			return err
		}
		return <-done
	})
}

func (p *Provider) streamLlama(ctx context.Context, e *stream.Emitter, req llamaRequest) error {
	provider := p.Name().String()
	path := "/model/" + url.PathEscape(p.model) + "/invoke-with-response-stream"
	resp, err := p.runtime.Stream(ctx, http.MethodPost, path, http.Header{"Accept": {eventStreamContentType}}, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var usage llmprovider.TokenUsage
	stopped, cancelled := false, false
	err = readEvents(provider, resp.Body, func(raw []byte) bool {
		var chunk llamaChunk
		if err := json.Unmarshal(raw, &chunk); err != nil {
			p.logger.Debug("skipping malformed chunk", "error", err)
			return true
		}
		if chunk.PromptTokenCount > 0 {
			usage.InputTokens = chunk.PromptTokenCount
		}
		if chunk.GenerationTokenCount > 0 {
			usage.OutputTokens = chunk.GenerationTokenCount
		}
		if m := chunk.Metrics; m != nil {
			usage = llmprovider.TokenUsage{InputTokens: m.InputTokenCount, OutputTokens: m.OutputTokenCount}
		}
		if chunk.StopReason != nil || chunk.Metrics != nil {
			stopped = true
		}
		if !e.Text(chunk.Generation) {
			cancelled = true
			return false
		}
		return true
	})
	if err != nil || cancelled {
		return err
	}
	e.Usage(usage)
	if !stopped {
		return transport.Truncated(provider, "a stop reason")
	}
	return nil
}

// formatLlamaPrompt renders the conversation in the model's chat template.
// Llama 3 uses header tokens; earlier models use [INST] blocks.
func formatLlamaPrompt(model, system string, messages []llmprovider.Message) string {
	var b strings.Builder

	if strings.Contains(strings.ToLower(model), "llama3") {
		b.WriteString("<|begin_of_text|>")
		writeTurn := func(role, content string) {
			fmt.Fprintf(&b, "<|start_header_id|>%s<|end_header_id|>\n\n%s<|eot_id|>", role, content)
		}
		writeTurn("system", system)
		for _, msg := range messages {
			switch msg.Role {
			case llmprovider.RoleAssistant:
				writeTurn("assistant", msg.Content)
			case llmprovider.RoleTool:
				writeTurn("user", "Tool result: "+msg.Content)
			default:
				writeTurn("user", msg.Content)
			}
		}
		b.WriteString("<|start_header_id|>assistant<|end_header_id|>\n\n")
		return b.String()
	}

	fmt.Fprintf(&b, "<s>[INST] <<SYS>>\n%s\n<</SYS>>\n\n", system)
	first := true
	for _, msg := range messages {
		switch msg.Role {
		case llmprovider.RoleAssistant:
			fmt.Fprintf(&b, " %s </s><s>[INST] ", msg.Content)
			first = true
		default:
			if !first {
				b.WriteString("\n\n")
			}
			b.WriteString(msg.Content)
			first = false
		}
	}
	b.WriteString(" [/INST]")
	return b.String()
}
