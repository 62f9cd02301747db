package openaicompat

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	llmprovider "github.com/starhound/null-llm-go"
	"github.com/starhound/null-llm-go/internal/sse"
	"github.com/starhound/null-llm-go/internal/stream"
	"github.com/starhound/null-llm-go/internal/transport"
)

// Generate streams a plain completion.
func (p *Provider) Generate(ctx context.Context, prompt string, history []llmprovider.Message, systemPrompt string) <-chan llmprovider.StreamEvent {
	return p.GenerateWithTools(ctx, prompt, history, nil, systemPrompt)
}

// GenerateWithTools streams a completion that may end in tool calls.
func (p *Provider) GenerateWithTools(ctx context.Context, prompt string, history []llmprovider.Message, tools []llmprovider.Tool, systemPrompt string) <-chan llmprovider.StreamEvent {
	return stream.Run(ctx, p.id.String(), func(e *stream.Emitter) error {
		req, err := p.buildRequest(prompt, history, tools, systemPrompt)
		if err != nil {
			return err
		}

		resp, err := p.client.Stream(e.Context(), http.MethodPost, p.chatPath(), nil, req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		return p.consume(e, resp.Body)
	})
}

func (p *Provider) buildRequest(prompt string, history []llmprovider.Message, tools []llmprovider.Tool, systemPrompt string) (*ChatCompletionRequest, error) {
	conversation := llmprovider.Conversation(prompt, history)
	if len(conversation) == 0 {
		return nil, fmt.Errorf("%w: conversation is empty", llmprovider.ErrInvalidRequest)
	}

	messages, err := convertToOpenAIMessages(llmprovider.SystemPromptOrDefault(systemPrompt), conversation)
	if err != nil {
		return nil, err
	}

	req := &ChatCompletionRequest{
		Model:    p.model,
		Messages: messages,
		Stream:   true,
	}
	if p.preset.StreamUsage {
		req.StreamOptions = &StreamOptions{IncludeUsage: true}
	}
	if p.options != nil {
		req.MaxTokens = p.options.MaxTokens
		req.Temperature = p.options.Temperature
		req.TopP = p.options.TopP
		req.Stop = p.options.Stop
	}

	req.Tools, err = convertToOpenAITools(tools)
	if err != nil {
		return nil, err
	}
	if len(req.Tools) > 0 {
		req.ToolChoice = "auto"
	}
	return req, nil
}

// consume reads "data:" chunks until [DONE] or EOF.
//
// Tool calls arrive as fragments keyed by their index in the choice; they
// are terminated together by finish_reason. Some vendors omit the index and
// send every call at position 0, so a fragment carrying a new id closes the
// call open at its index and starts another. Calls still open when the
// stream ends were never terminated and are dropped. A stream that ends
// without [DONE] or a finish_reason was cut off and fails as a connection
// error.
func (p *Provider) consume(e *stream.Emitter, body io.Reader) error {
	scanner := sse.NewScanner(body)
	calls := llmprovider.NewToolCallSet()
	ids := make(map[int]string)
	var superseded, finished []llmprovider.ToolCallRequest
	terminated := false

	for scanner.Next() {
		data := scanner.Event().Data
		if data == sse.Done {
			terminated = true
			break
		}
		if data == "" {
			continue
		}

		if err := p.streamError(data); err != nil {
			return err
		}

		var chunk ChatCompletionChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			// Keep-alives and vendor extensions
			continue
		}
		if chunk.Usage != nil {
			e.Usage(llmprovider.TokenUsage{
				InputTokens:  chunk.Usage.PromptTokens,
				OutputTokens: chunk.Usage.CompletionTokens,
			})
		}
		if len(chunk.Choices) == 0 {
			continue
		}

		choice := chunk.Choices[0]
		if choice.Delta.Content != nil {
			if !e.Text(*choice.Delta.Content) {
				return nil
			}
		}

		for i, delta := range choice.Delta.ToolCalls {
			index := i
			if delta.Index != nil {
				index = *delta.Index
			}
			if calls.Has(index) && delta.ID != "" && delta.ID != ids[index] {
				if call, ok := calls.End(index); ok {
					superseded = append(superseded, call)
				}
			}
			if !calls.Has(index) {
				calls.Start(index, delta.ID, delta.Function.Name)
				ids[index] = delta.ID
			}
			calls.Delta(index, delta.Function.Arguments)
		}

		if choice.FinishReason != nil {
			terminated = true
			finished = append(finished, superseded...)
			finished = append(finished, calls.Finish()...)
			superseded = nil
		}
	}

	if err := scanner.Err(); err != nil {
		calls.Discard()
		return llmprovider.Classify(p.id.String(), fmt.Errorf("error reading stream: %w", err))
	}
	if n := calls.Discard() + len(superseded); n > 0 {
		p.logger.Debug("dropped unterminated tool calls", "count", n)
	}
	if !terminated {
		return transport.Truncated(p.id.String(), "[DONE]")
	}

	e.Complete(finished)
	return nil
}

// streamError decodes an {"error": ...} envelope sent in place of a chunk
// after the response status was already committed.
func (p *Provider) streamError(data string) error {
	var envelope struct {
		Error json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal([]byte(data), &envelope); err != nil || len(envelope.Error) == 0 || string(envelope.Error) == "null" {
		return nil
	}
	return llmprovider.NewProviderError(p.id.String(), 0, transport.ErrorMessage([]byte(data)))
}
