package llmprovider

import "strings"

// Role is the author of a canonical conversation message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleTool      Role = "tool"
)

// DefaultSystemPrompt is used by adapters when the caller passes an empty system prompt.
const DefaultSystemPrompt = "You are a helpful AI assistant integrated into a terminal."

// Message is the canonical conversation message shared by the orchestrator
// and the registry. Adapters alone know how to lower it to wire format.
type Message struct {
	Role       Role              `json:"role"`
	Content    string            `json:"content"`
	ToolCalls  []ToolCallRequest `json:"tool_calls,omitempty"`  // Assistant turns that invoked tools
	ToolCallID string            `json:"tool_call_id,omitempty"` // Tool results: the call being answered
}

// UserMessage returns a user-role message.
func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// AssistantMessage returns an assistant-role message.
func AssistantMessage(content string, toolCalls ...ToolCallRequest) Message {
	return Message{Role: RoleAssistant, Content: content, ToolCalls: toolCalls}
}

// ToolResultMessage returns a tool-role message answering toolCallID.
func ToolResultMessage(toolCallID, content string) Message {
	return Message{Role: RoleTool, Content: content, ToolCallID: toolCallID}
}

// GenerateRequest bundles the arguments of one logical generation.
type GenerateRequest struct {
	Prompt       string
	History      []Message
	SystemPrompt string
	Tools        []Tool
}

// Conversation returns the history followed by the prompt as a user message.
// An empty prompt adds nothing, which is how tool-result turns continue.
func Conversation(prompt string, history []Message) []Message {
	out := make([]Message, 0, len(history)+1)
	for _, msg := range history {
		if msg.Role == RoleSystem {
			continue
		}
		out = append(out, msg)
	}
	if prompt != "" {
		out = append(out, UserMessage(prompt))
	}
	return out
}

// SystemPromptOrDefault returns system, or DefaultSystemPrompt when it is blank.
func SystemPromptOrDefault(system string) string {
	if strings.TrimSpace(system) == "" {
		return DefaultSystemPrompt
	}
	return system
}
