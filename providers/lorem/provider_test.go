package lorem

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	llmprovider "github.com/starhound/null-llm-go"
)

func newProvider(t *testing.T, model string, opts ...llmprovider.Options) *Provider {
	t.Helper()
	cfg := llmprovider.ProviderConfig{Model: model}
	if len(opts) > 0 {
		cfg.Options = &opts[0]
	}
	provider, err := New(cfg, WithDelay(0))
	if err != nil {
		t.Fatalf("New(%q): %v", model, err)
	}
	return provider
}

func collect(t *testing.T, ch <-chan llmprovider.StreamEvent) []llmprovider.StreamEvent {
	t.Helper()
	var events []llmprovider.StreamEvent
	for ev := range ch {
		events = append(events, ev)
	}
	if len(events) == 0 {
		t.Fatal("expected at least one event")
	}
	for i, ev := range events[:len(events)-1] {
		if ev.IsComplete {
			t.Fatalf("event %d is complete but not last", i)
		}
	}
	if !events[len(events)-1].IsComplete {
		t.Fatal("last event is not complete")
	}
	return events
}

func TestProvider_Name(t *testing.T) {
	provider := newProvider(t, "")
	if provider.Name() != llmprovider.ProviderLorem {
		t.Errorf("expected provider name 'lorem', got '%s'", provider.Name())
	}
	if provider.Model() != DefaultModel {
		t.Errorf("expected default model %q, got %q", DefaultModel, provider.Model())
	}
}

func TestSupportsModel(t *testing.T) {
	tests := []struct {
		model    string
		expected bool
	}{
		{"lorem-fast", true},
		{"lorem-slow", true},
		{"lorem-medium", true},
		{"lorem-cutoff", true},
		{"lorem-anything", true},
		{"claude-3", false},
		{"gpt-4", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			result := SupportsModel(tt.model)
			if result != tt.expected {
				t.Errorf("SupportsModel(%q) = %v, want %v", tt.model, result, tt.expected)
			}
		})
	}
}

func TestProvider_Generate(t *testing.T) {
	provider := newProvider(t, "lorem-fast", llmprovider.Options{MaxTokens: llmprovider.Int(20)})

	events := collect(t, provider.Generate(context.Background(), "Hello, test!", nil, ""))
	last := events[len(events)-1]
	if last.Error != nil {
		t.Fatalf("unexpected error: %v", last.Error)
	}
	if len(last.ToolCalls) != 0 {
		t.Errorf("expected no tool calls, got %d", len(last.ToolCalls))
	}

	var text strings.Builder
	for _, ev := range events {
		text.WriteString(ev.Text)
	}
	if words := len(strings.Fields(text.String())); words != 20 {
		t.Errorf("expected 20 words, got %d", words)
	}

	if last.Usage == nil {
		t.Fatal("expected usage on the terminal event")
	}
	if last.Usage.OutputTokens != 20 {
		t.Errorf("expected 20 output tokens, got %d", last.Usage.OutputTokens)
	}
	if last.Usage.InputTokens == 0 {
		t.Error("expected non-zero input tokens")
	}
}

func TestProvider_ConcurrentGenerate(t *testing.T) {
	provider := newProvider(t, "lorem-fast", llmprovider.Options{MaxTokens: llmprovider.Int(30)})

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var words int
			for ev := range provider.Generate(context.Background(), "hi", nil, "") {
				if ev.Error != nil {
					errs <- ev.Error
					return
				}
				words += len(strings.Fields(ev.Text))
			}
			if words != 30 {
				errs <- fmt.Errorf("expected 30 words, got %d", words)
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

func TestProvider_Generate_Cutoff(t *testing.T) {
	provider := newProvider(t, "lorem-cutoff", llmprovider.Options{MaxTokens: llmprovider.Int(10)})

	events := collect(t, provider.Generate(context.Background(), "Write a long essay", nil, ""))
	last := events[len(events)-1]
	if last.Usage == nil || last.Usage.OutputTokens != 10 {
		t.Errorf("expected output to stop at 10 tokens, got %+v", last.Usage)
	}
}

func TestProvider_GenerateWithTools(t *testing.T) {
	provider := newProvider(t, "lorem-fast")

	search, err := llmprovider.NewFunctionTool("search", "Search the web", map[string]any{
		"type":       "object",
		"properties": map[string]any{"query": map[string]any{"type": "string"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	events := collect(t, provider.GenerateWithTools(context.Background(), "find lorem", nil, []llmprovider.Tool{*search}, ""))
	last := events[len(events)-1]
	if len(last.ToolCalls) != 1 {
		t.Fatalf("expected 1 tool call, got %d", len(last.ToolCalls))
	}
	call := last.ToolCalls[0]
	if call.Name != "search" || call.ID == "" {
		t.Errorf("unexpected call %+v", call)
	}
	if call.Arguments["query"] != "lorem ipsum dolor sit amet" {
		t.Errorf("unexpected arguments %v", call.Arguments)
	}

	history := []llmprovider.Message{
		llmprovider.UserMessage("find lorem"),
		llmprovider.AssistantMessage("", call),
		llmprovider.ToolResultMessage(call.ID, "no results"),
	}
	events = collect(t, provider.GenerateWithTools(context.Background(), "", history, []llmprovider.Tool{*search}, ""))
	if n := len(events[len(events)-1].ToolCalls); n != 0 {
		t.Errorf("expected a text answer after the tool result, got %d tool calls", n)
	}
}

func TestMockInput(t *testing.T) {
	tool, err := llmprovider.NewFunctionTool("resize", "", map[string]any{
		"type": "object",
		"properties": map[string]any{
			"width": map[string]any{"type": "integer"},
			"keep":  map[string]any{"type": "boolean"},
			"name":  map[string]any{"type": "string"},
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	input := mockInput(tool)
	if input["width"] != 1 || input["keep"] != true || input["name"] != "lorem" {
		t.Errorf("unexpected mock input %v", input)
	}
}

func TestProvider_StreamDelay(t *testing.T) {
	tests := []struct {
		model string
		delay time.Duration
	}{
		{"lorem-slow", 500 * time.Millisecond},
		{"lorem-fast", 33 * time.Millisecond},
		{"lorem-medium", 100 * time.Millisecond},
		{"lorem-cutoff", 100 * time.Millisecond},
	}
	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			if got := streamDelay(tt.model); got != tt.delay {
				t.Errorf("streamDelay(%q) = %v, want %v", tt.model, got, tt.delay)
			}
		})
	}
}

func TestProvider_Cancel(t *testing.T) {
	provider, err := New(llmprovider.ProviderConfig{Model: "lorem-slow"})
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	ch := provider.Generate(ctx, "hello", nil, "")
	first := <-ch
	if first.Text == "" {
		t.Fatalf("expected a text event first, got %+v", first)
	}
	cancel()

	var last llmprovider.StreamEvent
	for ev := range ch {
		last = ev
	}
	if !errors.Is(last.Error, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", last.Error)
	}
}

func TestProvider_InvalidModel(t *testing.T) {
	_, err := New(llmprovider.ProviderConfig{Model: "gpt-4"})
	if !errors.Is(err, llmprovider.ErrInvalidRequest) {
		t.Errorf("expected ErrInvalidRequest, got %v", err)
	}
}

func TestProvider_ListModels(t *testing.T) {
	provider := newProvider(t, "")
	models := provider.ListModels(context.Background())
	if len(models) != len(Models) {
		t.Errorf("expected %d models, got %d", len(Models), len(models))
	}
	if !provider.ValidateConnection(context.Background()) {
		t.Error("expected ValidateConnection to succeed")
	}
}
