package transport

import (
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	llmprovider "github.com/starhound/null-llm-go"
)

// idleBody aborts the request when no bytes arrive for the configured
// duration. The timer is reset on every successful read.
type idleBody struct {
	body    io.ReadCloser
	timeout time.Duration
	timer   *time.Timer
	fired   atomic.Bool
	cancel  func()

	closeOnce sync.Once
	closeErr  error
}

func withIdleTimeout(body io.ReadCloser, timeout time.Duration, cancel func()) io.ReadCloser {
	b := &idleBody{body: body, timeout: timeout, cancel: cancel}
	if timeout > 0 {
		b.timer = time.AfterFunc(timeout, func() {
			b.fired.Store(true)
			cancel()
		})
	}
	return b
}

func (b *idleBody) Read(p []byte) (int, error) {
	n, err := b.body.Read(p)
	if b.timer != nil && n > 0 {
		b.timer.Reset(b.timeout)
	}
	if err != nil && err != io.EOF && b.fired.Load() {
		return n, fmt.Errorf("%w: stream idle for %s", llmprovider.ErrConnection, b.timeout)
	}
	return n, err
}

// Close stops the timer, closes the body and releases the request context.
func (b *idleBody) Close() error {
	b.closeOnce.Do(func() {
		if b.timer != nil {
			b.timer.Stop()
		}
		b.closeErr = b.body.Close()
		b.cancel()
	})
	return b.closeErr
}
