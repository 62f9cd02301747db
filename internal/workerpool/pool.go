// Package workerpool runs blocking calls on a bounded set of goroutines.
package workerpool

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed is returned by Submit after Close.
var ErrClosed = errors.New("workerpool: closed")

// DefaultSize is the pool size used when New is given a non-positive size.
const DefaultSize = 4

// Pool limits how many submitted functions run at once.
type Pool struct {
	sem chan struct{}
	wg  sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// New returns a pool running at most size functions concurrently.
func New(size int) *Pool {
	if size <= 0 {
		size = DefaultSize
	}
	return &Pool{sem: make(chan struct{}, size)}
}

// Size returns the concurrency limit.
func (p *Pool) Size() int {
	return cap(p.sem)
}

// Submit waits for a free slot and runs fn on a new goroutine. It returns
// ctx.Err() if the context ends before a slot frees up; fn is then never run.
func (p *Pool) Submit(ctx context.Context, fn func(ctx context.Context)) error {
	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return ErrClosed
	}
	p.wg.Add(1)
	p.mu.RUnlock()

	select {
	case p.sem <- struct{}{}:
	case <-ctx.Done():
		p.wg.Done()
		return ctx.Err()
	}

	go func() {
		defer p.wg.Done()
		defer func() { <-p.sem }()
		fn(ctx)
	}()
	return nil
}

// Do runs fn on the pool and waits for its result.
func Do[T any](ctx context.Context, p *Pool, fn func(ctx context.Context) (T, error)) (T, error) {
	type result struct {
		v   T
		err error
	}
	done := make(chan result, 1)

	err := p.Submit(ctx, func(ctx context.Context) {
		v, err := fn(ctx)
		done <- result{v, err}
	})
	if err != nil {
		var zero T
		return zero, err
	}

	select {
	case r := <-done:
		return r.v, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Close stops accepting work and waits for running functions to return.
func (p *Pool) Close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.wg.Wait()
}
