package cohere

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

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

func newTestProvider(t *testing.T, handler http.HandlerFunc) *Provider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	p, err := New(llmprovider.ProviderConfig{APIKey: "co-key", Endpoint: srv.URL}, WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	return p
}

const chatStream = `event: message-start
data: {"id":"m1","type":"message-start","delta":{"message":{"role":"assistant"}}}

event: content-start
data: {"type":"content-start","index":0,"delta":{"message":{"content":{"type":"text","text":""}}}}

event: content-delta
data: {"type":"content-delta","index":0,"delta":{"message":{"content":{"text":"Hi"}}}}

event: content-delta
data: {"type":"content-delta","index":0,"delta":{"message":{"content":{"text":" there"}}}}

event: content-end
data: {"type":"content-end","index":0}

event: message-end
data: {"type":"message-end","delta":{"finish_reason":"COMPLETE","usage":{"billed_units":{"input_tokens":4,"output_tokens":2},"tokens":{"input_tokens":70,"output_tokens":2}}}}

`

func TestGenerate(t *testing.T) {
	var got chatRequest
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/chat", r.URL.Path)
		assert.Equal(t, "Bearer co-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = io.WriteString(w, chatStream)
	})

	history := []llmprovider.Message{
		llmprovider.UserMessage("q"),
		llmprovider.AssistantMessage("", llmprovider.ToolCallRequest{ID: "c", Name: "ls"}),
		llmprovider.ToolResultMessage("c", "files"),
	}
	events := drain(p.GenerateWithTools(context.Background(), "and?", history, nil, ""))
	last := events[len(events)-1]
	require.True(t, last.IsComplete)
	require.NoError(t, last.Error)
	assert.Empty(t, last.ToolCalls)
	require.NotNil(t, last.Usage)
	assert.Equal(t, 70, last.Usage.InputTokens)
	assert.Equal(t, 2, last.Usage.OutputTokens)
	assert.Equal(t, "Hi", events[0].Text)
	assert.Equal(t, " there", events[1].Text)

	assert.Equal(t, DefaultModel, got.Model)
	require.Len(t, got.Messages, 4)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, "Tool Result: files", got.Messages[2].Content)
	assert.Equal(t, "and?", got.Messages[3].Content)
	assert.False(t, p.SupportsTools())
}

func TestGenerateErrors(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"message":"invalid api token"}`)
	})
	events := drain(p.Generate(context.Background(), "hi", nil, ""))
	require.Len(t, events, 1)
	assert.True(t, errors.Is(events[0].Error, llmprovider.ErrAuthentication))
	assert.Contains(t, events[0].Error.Error(), "invalid api token")
	assert.Equal(t, FallbackModels, p.ListModels(context.Background()))
	assert.False(t, p.ValidateConnection(context.Background()))

	_, err := New(llmprovider.ProviderConfig{})
	assert.True(t, errors.Is(err, llmprovider.ErrInvalidAPIKey))
}

func TestListModels(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/models", r.URL.Path)
		assert.Equal(t, "chat", r.URL.Query().Get("endpoint"))
		_, _ = io.WriteString(w, `{"models":[{"name":"command-r-08-2024"},{"name":"command-a-03-2025"}]}`)
	})
	assert.Equal(t, []string{"command-r-08-2024", "command-a-03-2025"}, p.ListModels(context.Background()))
	assert.True(t, p.ValidateConnection(context.Background()))
}

func TestStreamWithoutMessageEndIsConnectionError(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = io.WriteString(w, "event: content-delta\n"+
			`data: {"type":"content-delta","index":0,"delta":{"message":{"content":{"text":"Hi"}}}}`+"\n\n")
	})
	events := drain(p.Generate(context.Background(), "hi", nil, ""))
	last := events[len(events)-1]
	require.True(t, last.IsComplete)
	assert.True(t, errors.Is(last.Error, llmprovider.ErrConnection), "got %v", last.Error)
	assert.True(t, llmprovider.IsRetryable(last.Error))
	assert.Equal(t, "Hi", events[0].Text)
}

func TestReadTimeoutStopsStalledStream(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.(http.Flusher).Flush()
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	t.Cleanup(srv.Close)
	defer close(release)

	p, err := New(llmprovider.ProviderConfig{
		APIKey:   "co-key",
		Endpoint: srv.URL,
		Options:  &llmprovider.Options{ReadTimeout: llmprovider.Duration(50 * time.Millisecond)},
	})
	require.NoError(t, err)

	start := time.Now()
	events := drain(p.Generate(context.Background(), "hi", nil, ""))
	require.Len(t, events, 1)
	assert.True(t, errors.Is(events[0].Error, llmprovider.ErrConnection), "got %v", events[0].Error)
	assert.Less(t, time.Since(start), 5*time.Second)
}
