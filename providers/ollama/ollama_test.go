package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	llmprovider "github.com/starhound/null-llm-go"
)

func drain(ch <-chan llmprovider.StreamEvent) []llmprovider.StreamEvent {
	var out []llmprovider.StreamEvent
	for ev := range ch {
		out = append(out, ev)
	}
	return out
}

func newTestProvider(t *testing.T, cfg llmprovider.ProviderConfig, handler http.HandlerFunc) *Provider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	cfg.Endpoint = srv.URL
	p, err := New(cfg, WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	return p
}

func TestChatStream(t *testing.T) {
	var got ChatRequest
	p := newTestProvider(t, llmprovider.ProviderConfig{
		Options: &llmprovider.Options{Temperature: llmprovider.Float(0.2), MaxTokens: llmprovider.Int(64)},
	}, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/x-ndjson")
		_, _ = io.WriteString(w, strings.Join([]string{
			`{"model":"llama3.2","message":{"role":"assistant","content":"Hel"},"done":false}`,
			``,
			`{"model":"llama3.2","message":{"role":"assistant","content":"lo"},"done":false}`,
			`{"model":"llama3.2","message":{"role":"assistant","content":""},"done":true,"done_reason":"stop","prompt_eval_count":26,"eval_count":5}`,
		}, "\n"))
	})

	events := drain(p.Generate(context.Background(), "hi", nil, ""))
	last := events[len(events)-1]
	require.True(t, last.IsComplete)
	require.NoError(t, last.Error)
	require.NotNil(t, last.Usage)
	assert.Equal(t, 26, last.Usage.InputTokens)
	assert.Equal(t, 5, last.Usage.OutputTokens)

	var text strings.Builder
	for _, ev := range events {
		text.WriteString(ev.Text)
	}
	assert.Equal(t, "Hello", text.String())

	assert.Equal(t, DefaultModel, got.Model)
	assert.True(t, got.Stream)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, 0.2, got.Options["temperature"])
	assert.Equal(t, float64(64), got.Options["num_predict"])
}

func TestChatToolCalls(t *testing.T) {
	var got ChatRequest
	p := newTestProvider(t, llmprovider.ProviderConfig{Model: "qwen2.5"}, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = io.WriteString(w, `{"message":{"role":"assistant","content":"","tool_calls":[{"function":{"name":"ls","arguments":{"path":"/tmp"}}},{"function":{"name":"pwd","arguments":{}}}]},"done":false}`+"\n")
		_, _ = io.WriteString(w, `{"message":{"role":"assistant","content":""},"done":true}`+"\n")
	})

	tool, err := llmprovider.NewFunctionTool("ls", "list", nil)
	require.NoError(t, err)
	history := []llmprovider.Message{
		llmprovider.UserMessage("where"),
		llmprovider.AssistantMessage("", llmprovider.ToolCallRequest{ID: "call_0", Name: "pwd", Arguments: map[string]any{}}),
		llmprovider.ToolResultMessage("call_0", "/home"),
	}
	events := drain(p.GenerateWithTools(context.Background(), "", history, []llmprovider.Tool{*tool}, ""))
	last := events[len(events)-1]
	require.NoError(t, last.Error)
	require.Len(t, last.ToolCalls, 2)
	assert.Equal(t, "ls", last.ToolCalls[0].Name)
	assert.Equal(t, map[string]any{"path": "/tmp"}, last.ToolCalls[0].Arguments)
	assert.NotEqual(t, last.ToolCalls[0].ID, last.ToolCalls[1].ID)

	require.Len(t, got.Tools, 1)
	require.Len(t, got.Messages, 4)
	assert.Equal(t, "tool", got.Messages[3].Role)
	require.Len(t, got.Messages[2].ToolCalls, 1)
	assert.Equal(t, "pwd", got.Messages[2].ToolCalls[0].Function.Name)
}

func TestModelNotFound(t *testing.T) {
	p := newTestProvider(t, llmprovider.ProviderConfig{Model: "missing"}, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"error":"model \"missing\" not found, try pulling it first"}`)
	})
	events := drain(p.Generate(context.Background(), "hi", nil, ""))
	require.Len(t, events, 1)
	assert.True(t, errors.Is(events[0].Error, llmprovider.ErrInvalidRequest))
	assert.Contains(t, events[0].Error.Error(), "try pulling it first")
}

func TestMidStreamError(t *testing.T) {
	p := newTestProvider(t, llmprovider.ProviderConfig{}, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"message":{"role":"assistant","content":"a"},"done":false}`+"\n"+`{"error":"out of memory"}`+"\n")
	})
	events := drain(p.Generate(context.Background(), "hi", nil, ""))
	last := events[len(events)-1]
	assert.True(t, errors.Is(last.Error, llmprovider.ErrProvider))
	assert.Equal(t, "a", events[0].Text)
}

func TestConnectionRefused(t *testing.T) {
	p, err := New(llmprovider.ProviderConfig{Endpoint: "http://127.0.0.1:1"})
	require.NoError(t, err)
	events := drain(p.Generate(context.Background(), "hi", nil, ""))
	require.Len(t, events, 1)
	assert.True(t, errors.Is(events[0].Error, llmprovider.ErrConnection))
	assert.False(t, p.ValidateConnection(context.Background()))
	assert.Equal(t, []string{DefaultModel}, p.ListModels(context.Background()))
}

func TestListModels(t *testing.T) {
	p := newTestProvider(t, llmprovider.ProviderConfig{}, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/tags", r.URL.Path)
		_, _ = io.WriteString(w, `{"models":[{"name":"llama3.1:8b"},{"name":"qwen2.5:latest"}]}`)
	})
	assert.Equal(t, []string{"llama3.1:8b", "qwen2.5:latest"}, p.ListModels(context.Background()))
	assert.True(t, p.ValidateConnection(context.Background()))
}

func TestStreamWithoutDoneIsConnectionError(t *testing.T) {
	p := newTestProvider(t, llmprovider.ProviderConfig{}, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"message":{"role":"assistant","content":"par"},"done":false}`+"\n")
	})
	events := drain(p.Generate(context.Background(), "hi", nil, ""))
	last := events[len(events)-1]
	require.True(t, last.IsComplete)
	assert.True(t, errors.Is(last.Error, llmprovider.ErrConnection), "got %v", last.Error)
	assert.True(t, llmprovider.IsRetryable(last.Error))
	assert.Equal(t, "par", events[0].Text)
}
