package anthropic

import (
	"context"

	"github.com/anthropics/anthropic-sdk-go"

	llmprovider "github.com/starhound/null-llm-go"
	"github.com/starhound/null-llm-go/internal/stream"
)

// Generate streams a plain text completion.
func (p *Provider) Generate(ctx context.Context, prompt string, history []llmprovider.Message, systemPrompt string) <-chan llmprovider.StreamEvent {
	return p.GenerateWithTools(ctx, prompt, history, nil, systemPrompt)
}

// GenerateWithTools streams a completion that may end with tool calls.
func (p *Provider) GenerateWithTools(ctx context.Context, prompt string, history []llmprovider.Message, tools []llmprovider.Tool, systemPrompt string) <-chan llmprovider.StreamEvent {
	return stream.Run(ctx, p.id.String(), func(e *stream.Emitter) error {
		apiParams, err := p.buildMessageParams(prompt, history, tools, systemPrompt)
		if err != nil {
			return err
		}
		if p.pool == nil {
			return p.consume(e, apiParams)
		}
		done := make(chan error, 1)
		if err := p.pool.Submit(e.Context(), func(context.Context) { done <- p.consume(e, apiParams) }); err != nil {
			return err
		}
		return <-done
	})
}

// consume reads one Messages stream into e.
//
// Anthropic stream events:
//   - message_start: input token usage
//   - content_block_start: a text or tool_use block opens at an index
//   - content_block_delta: text_delta or input_json_delta for that index
//   - content_block_stop: the block at the index is finished
//   - message_delta: stop reason and output token usage
//   - message_stop: end of stream
func (p *Provider) consume(e *stream.Emitter, apiParams anthropic.MessageNewParams) error {
	s := p.client.Messages.NewStreaming(e.Context(), apiParams)
	defer s.Close()

	// message_start carries input tokens, message_delta the running output count
	var usage llmprovider.TokenUsage
	calls := llmprovider.NewToolCallSet()
	var finished []llmprovider.ToolCallRequest

	for s.Next() {
		event := s.Current()

		switch ev := event.AsAny().(type) {
		case anthropic.MessageStartEvent:
			usage.InputTokens = int(ev.Message.Usage.InputTokens)
			usage.OutputTokens = int(ev.Message.Usage.OutputTokens)
			e.Usage(usage)

		case anthropic.MessageDeltaEvent:
			usage.OutputTokens = int(ev.Usage.OutputTokens)
			e.Usage(usage)

		case anthropic.ContentBlockStartEvent:
			if ev.ContentBlock.Type == "tool_use" {
				calls.Start(int(ev.Index), ev.ContentBlock.ID, ev.ContentBlock.Name)
			}

		case anthropic.ContentBlockDeltaEvent:
			switch ev.Delta.Type {
			case "text_delta":
				if !e.Text(ev.Delta.Text) {
					return nil
				}
			case "input_json_delta":
				calls.Delta(int(ev.Index), ev.Delta.PartialJSON)
			}

		case anthropic.ContentBlockStopEvent:
			if call, ok := calls.End(int(ev.Index)); ok {
				finished = append(finished, call)
			}
		}
	}

	if err := s.Err(); err != nil {
		if n := calls.Discard(); n > 0 {
			p.logger.Debug("discarded unterminated tool calls", "count", n)
		}
		return mapError(p.id, err)
	}

	if n := calls.Discard(); n > 0 {
		p.logger.Debug("discarded unterminated tool calls", "count", n)
	}
	e.Complete(finished)
	return nil
}
