// Package pool provides the bounded worker pool shared by concurrent
// step groups. One pool serves the whole run: groups bound themselves
// further at submission, the pool bounds total in-flight work.
package pool

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/time/rate"
)

// DefaultCapacity bounds a pool created without an explicit size.
const DefaultCapacity = 100

// ErrClosed is returned by Submit after Close.
var ErrClosed = errors.New("pool is closed")

// Pool runs submitted functions on goroutines, never more than
// capacity at once. Lifetime is owned by whoever created it; Close is
// idempotent and drains in-flight work.
type Pool struct {
	sem     chan struct{}
	limiter *rate.Limiter

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

type Option func(*Pool)

// WithRateLimit throttles submissions to perSecond, burst 1.
func WithRateLimit(perSecond float64) Option {
	return func(p *Pool) {
		if perSecond > 0 {
			p.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
		}
	}
}

func New(capacity int, opts ...Option) *Pool {
	if capacity < 1 {
		capacity = DefaultCapacity
	}
	p := &Pool{
		sem: make(chan struct{}, capacity),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Submit blocks until a slot is free (and the rate limiter admits the
// task), then runs fn on its own goroutine. The slot is held for fn's
// entire run, so at most capacity functions are active at once.
func (p *Pool) Submit(ctx context.Context, fn func(context.Context)) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrClosed
	}
	p.wg.Add(1)
	p.mu.Unlock()

	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			p.wg.Done()
			return err
		}
	}

	select {
	case p.sem <- struct{}{}:
	case <-ctx.Done():
		p.wg.Done()
		return ctx.Err()
	}

	go func() {
		defer func() {
			<-p.sem
			p.wg.Done()
		}()
		fn(ctx)
	}()
	return nil
}

// Capacity returns the pool's concurrency bound.
func (p *Pool) Capacity() int {
	return cap(p.sem)
}

// InFlight returns the number of currently running functions.
func (p *Pool) InFlight() int {
	return len(p.sem)
}

// Wait blocks until every submitted function has returned.
func (p *Pool) Wait() {
	p.wg.Wait()
}

// Close rejects further submissions and drains in-flight work. Safe to
// call more than once.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()
	p.wg.Wait()
}
