// Package stream holds the channel plumbing every adapter shares: a writer
// that respects cancellation and guarantees exactly one terminal event.
package stream

import (
	"context"
	"fmt"

	llmprovider "github.com/starhound/null-llm-go"
)

// BufferSize is the capacity of adapter event channels.
const BufferSize = 10

// Emitter writes events for one generation. It is not safe for concurrent use;
// the goroutine that produces the generation owns it.
type Emitter struct {
	ctx      context.Context
	provider string
	ch       chan llmprovider.StreamEvent
	usage    *llmprovider.TokenUsage
	finished bool
}

// Run starts fn on its own goroutine and returns the channel it writes to.
//
// When the context ends first the generation ends with the context's error.
// Otherwise an error from fn ends it with that error, classified for
// provider. When fn returns nil without finishing, a success event is sent.
// A panic inside fn is converted to an error event. The channel is always
// closed.
func Run(ctx context.Context, provider string, fn func(e *Emitter) error) <-chan llmprovider.StreamEvent {
	e := &Emitter{
		ctx:      ctx,
		provider: provider,
		ch:       make(chan llmprovider.StreamEvent, BufferSize),
	}
	go func() {
		defer close(e.ch)
		defer func() {
			if r := recover(); r != nil {
				e.Fail(fmt.Errorf("%w: %s adapter panic: %v", llmprovider.ErrProvider, provider, r))
			}
		}()

		err := fn(e)
		switch {
		case ctx.Err() != nil:
			e.Fail(ctx.Err())
		case err != nil:
			e.Fail(err)
		default:
			e.Complete(nil)
		}
	}()
	return e.ch
}

// Context returns the generation's context.
func (e *Emitter) Context() context.Context {
	return e.ctx
}

// Text sends a text fragment. Empty text is skipped. It returns false once
// the context is done; callers should stop producing.
func (e *Emitter) Text(text string) bool {
	if text == "" {
		return e.ctx.Err() == nil
	}
	return e.Send(llmprovider.TextEvent(text))
}

// Send delivers a non-terminal event, blocking until the consumer reads it
// or the context ends.
func (e *Emitter) Send(event llmprovider.StreamEvent) bool {
	if e.finished {
		return false
	}
	event.IsComplete = false
	select {
	case <-e.ctx.Done():
		return false
	case e.ch <- event:
		return true
	}
}

// Usage records the latest usage observed. It is attached to the terminal event.
func (e *Emitter) Usage(u llmprovider.TokenUsage) {
	e.usage = &u
}

// LatestUsage returns the usage recorded so far, or nil.
func (e *Emitter) LatestUsage() *llmprovider.TokenUsage {
	return e.usage
}

// Complete sends the terminal success event with any finished tool calls.
func (e *Emitter) Complete(toolCalls []llmprovider.ToolCallRequest) {
	e.finish(llmprovider.CompleteEvent(toolCalls, e.usage))
}

// Fail sends the terminal error event. err is classified for the provider
// unless it already carries a kind.
func (e *Emitter) Fail(err error) {
	ev := llmprovider.ErrorEvent(llmprovider.Classify(e.provider, err))
	ev.Usage = e.usage
	e.finish(ev)
}

// Finished reports whether the terminal event was sent.
func (e *Emitter) Finished() bool {
	return e.finished
}

func (e *Emitter) finish(event llmprovider.StreamEvent) {
	if e.finished {
		return
	}
	e.finished = true
	select {
	case e.ch <- event:
		return
	case <-e.ctx.Done():
	}
	// The consumer may still be draining; use spare buffer capacity if any.
	select {
	case e.ch <- event:
	default:
	}
}
