package stream

import (
	"context"
	"errors"
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

func TestRunCompletesWithUsage(t *testing.T) {
	events := drain(Run(context.Background(), "test", func(e *Emitter) error {
		e.Text("a")
		e.Text("")
		e.Usage(llmprovider.TokenUsage{InputTokens: 1, OutputTokens: 1})
		e.Text("b")
		e.Usage(llmprovider.TokenUsage{InputTokens: 1, OutputTokens: 2})
		return nil
	}))

	require.Len(t, events, 3)
	assert.Equal(t, "a", events[0].Text)
	assert.Equal(t, "b", events[1].Text)
	last := events[2]
	assert.True(t, last.IsComplete)
	assert.NoError(t, last.Error)
	require.NotNil(t, last.Usage)
	assert.Equal(t, 2, last.Usage.OutputTokens)
}

func TestRunErrorIsTerminal(t *testing.T) {
	events := drain(Run(context.Background(), "test", func(e *Emitter) error {
		e.Text("partial")
		return llmprovider.NewProviderError("test", 429, "slow down")
	}))

	require.Len(t, events, 2)
	assert.True(t, events[1].IsComplete)
	assert.True(t, errors.Is(events[1].Error, llmprovider.ErrRateLimited))
}

func TestRunExactlyOneTerminal(t *testing.T) {
	events := drain(Run(context.Background(), "test", func(e *Emitter) error {
		e.Complete([]llmprovider.ToolCallRequest{{ID: "call_0", Name: "x"}})
		e.Fail(errors.New("late"))
		assert.False(t, e.Send(llmprovider.TextEvent("after")))
		return errors.New("ignored")
	}))

	require.Len(t, events, 1)
	assert.True(t, events[0].IsComplete)
	assert.NoError(t, events[0].Error)
	assert.Len(t, events[0].ToolCalls, 1)
}

func TestRunRecoversPanic(t *testing.T) {
	events := drain(Run(context.Background(), "test", func(e *Emitter) error {
		panic("boom")
	}))

	require.Len(t, events, 1)
	assert.True(t, events[0].IsComplete)
	assert.True(t, errors.Is(events[0].Error, llmprovider.ErrProvider))
}

func TestRunCancelledStopsProducer(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})

	ch := Run(ctx, "test", func(e *Emitter) error {
		defer close(stopped)
		for e.Text("tick") {
		}
		return nil
	})

	<-ch
	cancel()
	<-stopped
	for range ch {
	}
}

func TestUnclassifiedErrorsAreClassified(t *testing.T) {
	events := drain(Run(context.Background(), "test", func(e *Emitter) error {
		return errors.New("weird")
	}))
	require.Len(t, events, 1)
	assert.Equal(t, llmprovider.ErrProvider, llmprovider.Kind(events[0].Error))
}
