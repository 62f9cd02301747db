package anthropic

import (
	"github.com/anthropics/anthropic-sdk-go"

	llmprovider "github.com/starhound/null-llm-go"
)

// convertToAnthropicMessages lowers canonical messages to Messages API turns.
//
// Tool results become tool_result blocks inside a user turn; consecutive
// results share one turn. Assistant tool calls become tool_use blocks.
// Empty turns are dropped since the API rejects empty content.
func convertToAnthropicMessages(messages []llmprovider.Message) []anthropic.MessageParam {
	result := make([]anthropic.MessageParam, 0, len(messages))
	lastWasToolResult := false

	for _, msg := range messages {
		switch msg.Role {
		case llmprovider.RoleUser:
			lastWasToolResult = false
			if msg.Content == "" {
				continue
			}
			result = append(result, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))

		case llmprovider.RoleAssistant:
			lastWasToolResult = false
			blocks := make([]anthropic.ContentBlockParamUnion, 0, 1+len(msg.ToolCalls))
			if msg.Content != "" {
				blocks = append(blocks, anthropic.NewTextBlock(msg.Content))
			}
			for _, call := range msg.ToolCalls {
				input := call.Arguments
				if input == nil {
					input = map[string]any{}
				}
				blocks = append(blocks, anthropic.NewToolUseBlock(call.ID, input, call.Name))
			}
			if len(blocks) == 0 {
				continue
			}
			result = append(result, anthropic.NewAssistantMessage(blocks...))

		case llmprovider.RoleTool:
			block := anthropic.NewToolResultBlock(msg.ToolCallID, msg.Content, false)
			if lastWasToolResult {
				last := &result[len(result)-1]
				last.Content = append(last.Content, block)
				continue
			}
			result = append(result, anthropic.NewUserMessage(block))
			lastWasToolResult = true
		}
	}

	return result
}
