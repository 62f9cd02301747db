package llmprovider

// StreamEvent is the unit every adapter emits on its channel.
//
// A generation is a finite sequence of events. Exactly one of them has
// IsComplete set and it is always the last one sent before the channel
// closes; a failed generation ends with an event that carries Error and
// IsComplete together.
type StreamEvent struct {
	// Text is a fragment of assistant output (may be empty)
	Text string

	// ToolCalls holds invocations that finished assembling in this event
	ToolCalls []ToolCallRequest

	// IsComplete marks the terminal event of a generation
	IsComplete bool

	// Usage is the latest token usage observed so far (nil if unknown).
	// Vendors report cumulative or final figures, so consumers keep the
	// most recent value instead of summing.
	Usage *TokenUsage

	// Error is set on the terminal event of a failed generation
	Error error
}

// HasContent reports whether the event carries text or tool calls.
func (e StreamEvent) HasContent() bool {
	return e.Text != "" || len(e.ToolCalls) > 0
}

// TextEvent returns a non-terminal event carrying a text fragment.
func TextEvent(text string) StreamEvent {
	return StreamEvent{Text: text}
}

// CompleteEvent returns the terminal event of a successful generation.
func CompleteEvent(toolCalls []ToolCallRequest, usage *TokenUsage) StreamEvent {
	return StreamEvent{ToolCalls: toolCalls, IsComplete: true, Usage: usage}
}

// ErrorEvent returns the terminal event of a failed generation.
func ErrorEvent(err error) StreamEvent {
	return StreamEvent{Error: err, IsComplete: true}
}

// ToolCallRequest identifies one invocation the model wants performed.
// It is immutable once built by an assembler.
type ToolCallRequest struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// TokenUsage counts the tokens a generation consumed.
type TokenUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// TotalTokens returns input plus output tokens.
func (u TokenUsage) TotalTokens() int {
	return u.InputTokens + u.OutputTokens
}

// Add returns the component-wise sum of u and other. Neither operand is modified.
func (u TokenUsage) Add(other TokenUsage) TokenUsage {
	return TokenUsage{
		InputTokens:  u.InputTokens + other.InputTokens,
		OutputTokens: u.OutputTokens + other.OutputTokens,
	}
}
