package anthropic

import (
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"

	llmprovider "github.com/starhound/null-llm-go"
)

// buildMessageParams constructs the Messages API request for one generation.
// tools may be nil for plain generation.
func (p *Provider) buildMessageParams(prompt string, history []llmprovider.Message, tools []llmprovider.Tool, systemPrompt string) (anthropic.MessageNewParams, error) {
	messages := convertToAnthropicMessages(llmprovider.Conversation(prompt, history))
	if len(messages) == 0 {
		return anthropic.MessageNewParams{}, fmt.Errorf("%w: conversation is empty", llmprovider.ErrInvalidRequest)
	}

	apiParams := anthropic.MessageNewParams{
		Model:     anthropic.Model(p.model),
		Messages:  messages,
		MaxTokens: int64(p.options.GetMaxTokens(DefaultMaxTokens)),
		System: []anthropic.TextBlockParam{
			{Text: llmprovider.SystemPromptOrDefault(systemPrompt)},
		},
	}

	if p.options != nil {
		if p.options.Temperature != nil {
			apiParams.Temperature = anthropic.Float(*p.options.Temperature)
		}
		if p.options.TopP != nil {
			apiParams.TopP = anthropic.Float(*p.options.TopP)
		}
		if len(p.options.Stop) > 0 {
			apiParams.StopSequences = p.options.Stop
		}
	}

	if len(tools) > 0 {
		converted, err := convertToolsToAnthropicTools(tools)
		if err != nil {
			return anthropic.MessageNewParams{}, err
		}
		apiParams.Tools = converted
	}

	return apiParams, nil
}
