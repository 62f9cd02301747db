package llmprovider

import (
	"context"
	"errors"
	"strings"
)

// Response is a whole generation folded out of its event stream.
type Response struct {
	Text      string
	ToolCalls []ToolCallRequest
	Usage     *TokenUsage
	Complete  bool
}

// ErrIncompleteStream is returned by Collect when the channel closes
// without a terminal event.
var ErrIncompleteStream = errors.New("llmprovider: stream ended without a terminal event")

// Collect drains events until the terminal event and folds them into a Response.
// The error is the terminal event's Error, ctx.Err() if ctx ends first, or
// ErrIncompleteStream.
func Collect(ctx context.Context, events <-chan StreamEvent) (Response, error) {
	var (
		resp Response
		text strings.Builder
	)
	for {
		select {
		case <-ctx.Done():
			resp.Text = text.String()
			return resp, ctx.Err()
		case event, ok := <-events:
			if !ok {
				resp.Text = text.String()
				return resp, ErrIncompleteStream
			}
			text.WriteString(event.Text)
			resp.ToolCalls = append(resp.ToolCalls, event.ToolCalls...)
			if event.Usage != nil {
				usage := *event.Usage
				resp.Usage = &usage
			}
			if event.IsComplete {
				resp.Text = text.String()
				resp.Complete = event.Error == nil
				return resp, event.Error
			}
		}
	}
}
