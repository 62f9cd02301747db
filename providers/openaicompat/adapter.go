package openaicompat

import (
	"encoding/json"
	"fmt"

	llmprovider "github.com/starhound/null-llm-go"
)

// convertToOpenAIMessages builds the messages array: the system prompt
// first, then the conversation. System messages inside history are dropped
// by Conversation; the explicit system prompt wins.
func convertToOpenAIMessages(system string, messages []llmprovider.Message) ([]Message, error) {
	result := make([]Message, 0, len(messages)+1)
	result = append(result, Message{Role: "system", Content: stringPtr(system)})

	for i, msg := range messages {
		switch msg.Role {
		case llmprovider.RoleUser:
			if msg.Content == "" {
				continue
			}
			result = append(result, Message{Role: "user", Content: stringPtr(msg.Content)})

		case llmprovider.RoleAssistant:
			out := Message{Role: "assistant"}
			if msg.Content != "" {
				out.Content = stringPtr(msg.Content)
			}
			for j, call := range msg.ToolCalls {
				tc, err := convertToolCall(call)
				if err != nil {
					return nil, fmt.Errorf("%w: message %d, tool call %d: %v", llmprovider.ErrInvalidRequest, i, j, err)
				}
				out.ToolCalls = append(out.ToolCalls, tc)
			}
			if out.Content == nil && len(out.ToolCalls) == 0 {
				continue
			}
			result = append(result, out)

		case llmprovider.RoleTool:
			if msg.ToolCallID == "" {
				return nil, fmt.Errorf("%w: message %d: tool result missing tool_call_id", llmprovider.ErrInvalidRequest, i)
			}
			result = append(result, Message{
				Role:       "tool",
				Content:    stringPtr(msg.Content),
				ToolCallID: msg.ToolCallID,
			})
		}
	}

	return result, nil
}

// convertToolCall re-encodes decoded arguments as the JSON string the wire
// format expects.
func convertToolCall(call llmprovider.ToolCallRequest) (ToolCall, error) {
	args := call.Arguments
	if args == nil {
		args = map[string]any{}
	}
	raw, err := json.Marshal(args)
	if err != nil {
		return ToolCall{}, err
	}
	return ToolCall{
		ID:   call.ID,
		Type: "function",
		Function: FunctionCall{
			Name:      call.Name,
			Arguments: string(raw),
		},
	}, nil
}

func stringPtr(s string) *string {
	return &s
}
