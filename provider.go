package llmprovider

import (
	"context"
)

// Provider defines the interface that all LLM provider adapters implement.
// It is the only surface the rest of the application depends on, and it is
// identical for every vendor.
//
// Types used by this interface:
//   - Message: defined in request.go
//   - Tool: defined in tools.go
//   - StreamEvent: defined in streaming.go
type Provider interface {
	// Name returns the provider identifier (e.g., "anthropic", "ollama").
	Name() ProviderID

	// Model returns the model this handle generates with.
	Model() string

	// Generate streams a plain text completion.
	// The channel is closed after the terminal event (IsComplete). Failures
	// never surface as panics or returned errors; they arrive as a terminal
	// event with Error set.
	//
	// Usage:
	//   for event := range provider.Generate(ctx, prompt, history, system) {
	//     if event.Error != nil { handle error }
	//     fmt.Print(event.Text)
	//   }
	//
	// Cancelling ctx stops generation and releases the underlying connection.
	Generate(ctx context.Context, prompt string, history []Message, systemPrompt string) <-chan StreamEvent

	// GenerateWithTools is Generate with tool declarations; events may carry
	// completed ToolCalls. Adapters without tool support fall back to Generate.
	GenerateWithTools(ctx context.Context, prompt string, history []Message, tools []Tool, systemPrompt string) <-chan StreamEvent

	// SupportsTools is a static capability flag.
	SupportsTools() bool

	// ListModels returns the models the vendor offers. It never fails: on any
	// error a static fallback list is returned instead.
	ListModels(ctx context.Context) []string

	// ValidateConnection issues the cheapest request the vendor allows and
	// reports whether it succeeded.
	ValidateConnection(ctx context.Context) bool

	// Close releases transport resources held by the adapter.
	Close() error
}
