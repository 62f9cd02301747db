package fallback

import (
	"context"
	"strings"

	llmprovider "github.com/starhound/null-llm-go"
)

// Stream is the pull-style result of Generate.
//
//	s := o.Generate(ctx, req)
//	defer s.Close()
//	for s.Next() {
//		fmt.Print(s.Event().Text)
//	}
//	if err := s.Err(); err != nil { ... }
type Stream struct {
	events chan llmprovider.StreamEvent
	cancel context.CancelFunc
	event  llmprovider.StreamEvent
	err    error
}

// Next advances to the next event. It returns false when the generation
// has ended.
func (s *Stream) Next() bool {
	ev, ok := <-s.events
	if !ok {
		return false
	}
	s.event = ev
	return true
}

// Event returns the current event.
func (s *Stream) Event() llmprovider.StreamEvent {
	return s.event
}

// Err returns the orchestration error once Next has returned false:
// *ExhaustedError, ErrNoActiveProvider or a context error. An error event
// passed through with fallback disabled is not repeated here.
func (s *Stream) Err() error {
	return s.err
}

// Close stops the generation and releases its connections.
func (s *Stream) Close() {
	s.cancel()
	for range s.events {
	}
}

// Collect drains the stream into a Response. The error is Err, or the
// error carried by a passed-through terminal event.
func (s *Stream) Collect() (llmprovider.Response, error) {
	defer s.Close()

	var (
		resp llmprovider.Response
		text strings.Builder
		err  error
	)
	for s.Next() {
		ev := s.Event()
		text.WriteString(ev.Text)
		resp.ToolCalls = append(resp.ToolCalls, ev.ToolCalls...)
		if ev.Usage != nil {
			u := *ev.Usage
			resp.Usage = &u
		}
		if ev.IsComplete {
			resp.Complete = ev.Error == nil
			err = ev.Error
		}
	}
	resp.Text = text.String()
	if s.err != nil {
		return resp, s.err
	}
	return resp, err
}
