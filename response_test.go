package llmprovider

import (
	"context"
	"errors"
	"testing"
)

func feed(events ...StreamEvent) <-chan StreamEvent {
	ch := make(chan StreamEvent, len(events))
	for _, e := range events {
		ch <- e
	}
	close(ch)
	return ch
}

func TestCollect_Success(t *testing.T) {
	call := ToolCallRequest{ID: "call_0", Name: "ls", Arguments: map[string]any{}}
	resp, err := Collect(context.Background(), feed(
		TextEvent("Hel"),
		StreamEvent{Text: "lo", Usage: &TokenUsage{InputTokens: 10, OutputTokens: 1}},
		CompleteEvent([]ToolCallRequest{call}, &TokenUsage{InputTokens: 10, OutputTokens: 5}),
	))
	if err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	if resp.Text != "Hello" {
		t.Errorf("Text = %q", resp.Text)
	}
	if !resp.Complete {
		t.Error("Complete = false")
	}
	if len(resp.ToolCalls) != 1 || resp.ToolCalls[0].Name != "ls" {
		t.Errorf("ToolCalls = %+v", resp.ToolCalls)
	}
	if resp.Usage == nil || resp.Usage.OutputTokens != 5 {
		t.Errorf("Usage = %+v, want latest value", resp.Usage)
	}
}

func TestCollect_ErrorTerminal(t *testing.T) {
	resp, err := Collect(context.Background(), feed(
		TextEvent("partial"),
		ErrorEvent(NewProviderError("x", 500, "boom")),
	))
	if !errors.Is(err, ErrProvider) {
		t.Errorf("Collect() error = %v, want ErrProvider", err)
	}
	if resp.Complete {
		t.Error("failed generation reported as complete")
	}
	if resp.Text != "partial" {
		t.Errorf("partial text lost: %q", resp.Text)
	}
}

func TestCollect_ClosedWithoutTerminal(t *testing.T) {
	_, err := Collect(context.Background(), feed(TextEvent("x")))
	if !errors.Is(err, ErrIncompleteStream) {
		t.Errorf("Collect() error = %v, want ErrIncompleteStream", err)
	}
}

func TestCollect_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	never := make(chan StreamEvent)
	if _, err := Collect(ctx, never); !errors.Is(err, context.Canceled) {
		t.Errorf("Collect() error = %v, want context.Canceled", err)
	}
}

func TestConversation(t *testing.T) {
	history := []Message{
		{Role: RoleSystem, Content: "ignored"},
		UserMessage("hi"),
		AssistantMessage("hello"),
	}

	got := Conversation("next", history)
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	if got[2].Role != RoleUser || got[2].Content != "next" {
		t.Errorf("last message = %+v", got[2])
	}

	if got := Conversation("", history); len(got) != 2 {
		t.Errorf("empty prompt should add nothing, got %d messages", len(got))
	}
}

func TestSystemPromptOrDefault(t *testing.T) {
	if got := SystemPromptOrDefault("  "); got != DefaultSystemPrompt {
		t.Errorf("blank prompt = %q", got)
	}
	if got := SystemPromptOrDefault("be terse"); got != "be terse" {
		t.Errorf("custom prompt = %q", got)
	}
}

func TestTokenUsage_AddDoesNotMutate(t *testing.T) {
	a := TokenUsage{InputTokens: 1, OutputTokens: 2}
	b := TokenUsage{InputTokens: 10, OutputTokens: 20}
	sum := a.Add(b)

	if sum.InputTokens != 11 || sum.OutputTokens != 22 || sum.TotalTokens() != 33 {
		t.Errorf("Add() = %+v", sum)
	}
	if a.InputTokens != 1 || b.InputTokens != 10 {
		t.Error("Add mutated an operand")
	}
}

func TestProviderID(t *testing.T) {
	if !ProviderOpenRouter.IsValid() {
		t.Error("openrouter should be valid")
	}
	if ProviderID("nope").IsValid() {
		t.Error("unknown id reported valid")
	}
	info, ok := ProviderBedrock.Info()
	if !ok || !info.CredentialChain || info.RequiresAPIKey {
		t.Errorf("bedrock info = %+v", info)
	}
	if len(KnownProviders()) != len(providerInfo) {
		t.Error("providerOrder and providerInfo disagree")
	}
}
