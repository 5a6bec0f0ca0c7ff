// Package gate provides the admission-control point for worker execution:
// a FIFO permit gate with an optional launch rate limit.
package gate

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/time/rate"
)

// Gate bounds how many tasks run concurrently. Permits are granted in
// FIFO order: a released permit always goes to the longest-waiting
// acquirer, never to a late arrival that happens to race the release.
type Gate struct {
	mu      sync.Mutex
	permits int
	waiters []chan struct{}
	limiter *rate.Limiter
}

// Option configures a Gate.
type Option func(*Gate)

// WithRateLimit throttles task launches after a permit is granted.
// Useful when the backing capability is rate limited upstream.
func WithRateLimit(limiter *rate.Limiter) Option {
	return func(g *Gate) {
		g.limiter = limiter
	}
}

// New creates a gate with the given number of permits. The limit must be
// validated by the caller; values below 1 would deadlock every acquirer.
func New(limit int, opts ...Option) *Gate {
	g := &Gate{permits: limit}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Acquire blocks until a permit is available or ctx is done.
func (g *Gate) Acquire(ctx context.Context) error {
	ready, granted := g.enqueue()
	if granted {
		return g.wait(ctx)
	}
	return g.await(ctx, ready)
}

// enqueue claims a free permit immediately or joins the back of the wait
// queue. It never blocks, so the caller's invocation order is the queue
// order.
func (g *Gate) enqueue() (chan struct{}, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.permits > 0 && len(g.waiters) == 0 {
		g.permits--
		return nil, true
	}
	ready := make(chan struct{})
	g.waiters = append(g.waiters, ready)
	return ready, false
}

// await blocks on a queued slot until the permit is handed over or ctx is
// done.
func (g *Gate) await(ctx context.Context, ready chan struct{}) error {
	select {
	case <-ready:
		return g.wait(ctx)
	case <-ctx.Done():
		g.abandon(ready)
		return ctx.Err()
	}
}

// wait applies the optional rate limit once a permit is held.
func (g *Gate) wait(ctx context.Context) error {
	if g.limiter == nil {
		return nil
	}
	if err := g.limiter.Wait(ctx); err != nil {
		g.Release()
		return fmt.Errorf("launch rate limit: %w", err)
	}
	return nil
}

// abandon removes a waiter that gave up. If the permit was handed over
// concurrently with cancellation, pass it on instead of leaking it.
func (g *Gate) abandon(ready chan struct{}) {
	g.mu.Lock()
	defer g.mu.Unlock()

	for i, w := range g.waiters {
		if w == ready {
			g.waiters = append(g.waiters[:i], g.waiters[i+1:]...)
			return
		}
	}

	// Not in the queue anymore: the permit was already granted.
	select {
	case <-ready:
		g.release()
	default:
	}
}

// Release returns a permit, handing it to the head of the wait queue if
// anyone is waiting.
func (g *Gate) Release() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.release()
}

func (g *Gate) release() {
	if len(g.waiters) > 0 {
		head := g.waiters[0]
		g.waiters = g.waiters[1:]
		close(head)
		return
	}
	g.permits++
}

// Run queues fn for execution without blocking the caller. The queue slot
// is claimed before Run returns, so repeated Run calls from one goroutine
// execute in submission order. fn starts once a permit is granted and the
// permit is released when fn settles, success or failure. The task's
// outcome is delivered on the returned channel.
func (g *Gate) Run(ctx context.Context, fn func(ctx context.Context) error) <-chan error {
	done := make(chan error, 1)
	ready, granted := g.enqueue()
	go func() {
		if granted {
			if err := g.wait(ctx); err != nil {
				done <- err
				return
			}
		} else if err := g.await(ctx, ready); err != nil {
			done <- err
			return
		}
		defer g.Release()
		done <- fn(ctx)
	}()
	return done
}
