package usage

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	llmprovider "github.com/starhound/null-llm-go"
)

// wordEncoder counts whitespace-separated words as tokens.
type wordEncoder struct{}

func (wordEncoder) Encode(text string, _ []string, _ []string) []int {
	return make([]int, len(strings.Fields(text)))
}

func TestCounterEstimates(t *testing.T) {
	tests := []struct {
		name     string
		provider llmprovider.ProviderID
		text     string
		want     int
	}{
		{"anthropic uses 3.5 chars per token", llmprovider.ProviderAnthropic, strings.Repeat("a", 35), 10},
		{"ollama uses 4 chars per token", llmprovider.ProviderOllama, strings.Repeat("a", 40), 10},
		{"empty text", llmprovider.ProviderGroq, "", 0},
		{"counts runes", llmprovider.ProviderGoogle, strings.Repeat("é", 8), 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewCounter(tt.provider, "m")
			assert.False(t, c.Exact())
			assert.Equal(t, tt.want, c.Count(tt.text))
		})
	}
}

func TestCounterWithEncoder(t *testing.T) {
	c := NewCounter(llmprovider.ProviderOpenAI, "gpt-4o", WithEncoder(wordEncoder{}))
	assert.True(t, c.Exact())
	assert.Equal(t, 3, c.Count("one two three"))
}

func TestCounterMessageOverhead(t *testing.T) {
	c := NewCounter(llmprovider.ProviderOpenAI, "gpt-4o", WithEncoder(wordEncoder{}))

	plain := llmprovider.UserMessage("hello there")
	assert.Equal(t, 2+4, c.CountMessage(plain))

	withCall := llmprovider.AssistantMessage("", llmprovider.ToolCallRequest{
		ID:        "call_0",
		Name:      "ls",
		Arguments: map[string]any{"path": "/"},
	})
	// name (1 word) + {"path":"/"} (1 word) + 4 + 3
	assert.Equal(t, 1+1+4+3, c.CountMessage(withCall))

	assert.Equal(t, (2+4)+(1+1+4+3)+3, c.CountMessages([]llmprovider.Message{plain, withCall}))
	assert.Equal(t, 3, c.CountMessages(nil))
}
