package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	llmprovider "github.com/starhound/null-llm-go"
	"github.com/starhound/null-llm-go/internal/sse"
	"github.com/starhound/null-llm-go/internal/stream"
	"github.com/starhound/null-llm-go/internal/transport"
)

// Generate streams a plain completion.
func (p *Provider) Generate(ctx context.Context, prompt string, history []llmprovider.Message, systemPrompt string) <-chan llmprovider.StreamEvent {
	return p.generate(ctx, prompt, history, nil, systemPrompt)
}

// GenerateWithTools streams a completion with function declarations.
// Thinking models also return their thoughts, wrapped in <think> tags.
func (p *Provider) GenerateWithTools(ctx context.Context, prompt string, history []llmprovider.Message, tools []llmprovider.Tool, systemPrompt string) <-chan llmprovider.StreamEvent {
	return p.generate(ctx, prompt, history, tools, systemPrompt)
}

func (p *Provider) generate(ctx context.Context, prompt string, history []llmprovider.Message, tools []llmprovider.Tool, systemPrompt string) <-chan llmprovider.StreamEvent {
	return stream.Run(ctx, p.id.String(), func(e *stream.Emitter) error {
		req, err := p.buildRequest(prompt, history, tools, systemPrompt)
		if err != nil {
			return err
		}

		resp, err := p.client.Stream(e.Context(), http.MethodPost, p.modelPath("streamGenerateContent")+"?alt=sse", nil, req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		return p.consume(e, resp.Body, len(tools) > 0)
	})
}

func (p *Provider) buildRequest(prompt string, history []llmprovider.Message, tools []llmprovider.Tool, systemPrompt string) (*GenerateContentRequest, error) {
	contents := convertToContents(llmprovider.Conversation(prompt, history))
	if len(contents) == 0 {
		return nil, fmt.Errorf("%w: conversation is empty", llmprovider.ErrInvalidRequest)
	}
	for i := range tools {
		if err := tools[i].Validate(); err != nil {
			return nil, fmt.Errorf("%w: tool %d (%s): %v", llmprovider.ErrInvalidRequest, i, tools[i].Function.Name, err)
		}
	}

	cfg := &GenerationConfig{
		Temperature: llmprovider.Float(p.options.GetTemperature(defaultTemperature)),
	}
	if p.options != nil {
		cfg.TopP = p.options.TopP
		cfg.MaxOutputTokens = p.options.MaxTokens
		cfg.StopSequences = p.options.Stop
	}
	if len(tools) > 0 && p.thinks() {
		cfg.ThinkingConfig = &ThinkingConfig{IncludeThoughts: true}
	}

	return &GenerateContentRequest{
		Contents: contents,
		SystemInstruction: &Content{
			Parts: []Part{{Text: llmprovider.SystemPromptOrDefault(systemPrompt)}},
		},
		Tools:            convertTools(tools),
		GenerationConfig: cfg,
	}, nil
}

// consume reads one JSON response per SSE event. Function calls arrive
// whole, so they are collected as they come and reported on completion.
func (p *Provider) consume(e *stream.Emitter, body io.Reader, withThoughts bool) error {
	scanner := sse.NewScanner(body)
	calls := llmprovider.NewToolCallSet()
	var finished []llmprovider.ToolCallRequest

	for scanner.Next() {
		data := scanner.Event().Data
		if data == "" {
			continue
		}
		if err := p.streamError(data); err != nil {
			return err
		}

		var chunk GenerateContentResponse
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			return &llmprovider.ProviderError{
				Provider: p.id.String(),
				Message:  "malformed stream chunk: " + err.Error(),
				Err:      llmprovider.ErrProvider,
			}
		}
		if chunk.UsageMetadata != nil {
			e.Usage(llmprovider.TokenUsage{
				InputTokens:  chunk.UsageMetadata.PromptTokenCount,
				OutputTokens: chunk.UsageMetadata.CandidatesTokenCount,
			})
		}

		var text, thoughts strings.Builder
		for _, cand := range chunk.Candidates {
			for _, part := range cand.Content.Parts {
				switch {
				case part.FunctionCall != nil:
					finished = append(finished, calls.Complete("", part.FunctionCall.Name, part.FunctionCall.Args))
				case part.Thought:
					thoughts.WriteString(part.Text)
				default:
					text.WriteString(part.Text)
				}
			}
		}

		out := text.String()
		if withThoughts && thoughts.Len() > 0 {
			out = "<think>" + thoughts.String() + "</think>\n" + out
		}
		if !e.Text(out) {
			return nil
		}
	}
	if err := scanner.Err(); err != nil {
		return llmprovider.Classify(p.id.String(), fmt.Errorf("error reading stream: %w", err))
	}

	e.Complete(finished)
	return nil
}

// streamError reports an error object sent in place of a chunk.
func (p *Provider) streamError(data string) error {
	var envelope struct {
		Error *struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal([]byte(data), &envelope) != nil || envelope.Error == nil {
		return nil
	}
	return llmprovider.NewProviderError(p.id.String(), envelope.Error.Code, transport.ErrorMessage([]byte(data)))
}
