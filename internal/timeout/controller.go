// Package timeout wraps single operations with a deadline and a cooperative
// cancellation signal. Timeouts grow progressively across retries and get a
// distinct multiplier for fallback attempts, clamped into a configured range.
package timeout

import (
	"context"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"
)

// Config controls how effective timeouts are resolved.
type Config struct {
	// Default is used when an operation does not specify its own timeout.
	Default time.Duration
	// Min and Max clamp every resolved timeout, multipliers included.
	Min time.Duration
	Max time.Duration
	// FallbackMultiplier stretches the timeout for fallback attempts (>1).
	FallbackMultiplier float64
	// ProgressiveMultiplier compounds per retry attempt when Progressive
	// is enabled, so a flaky operation is not retried at the same deadline.
	ProgressiveMultiplier float64
	Progressive           bool
}

// DefaultConfig returns the controller defaults.
func DefaultConfig() Config {
	return Config{
		Default:               30 * time.Second,
		Min:                   time.Second,
		Max:                   5 * time.Minute,
		FallbackMultiplier:    1.5,
		ProgressiveMultiplier: 2.0,
		Progressive:           true,
	}
}

// RunOptions configure one Run call.
type RunOptions struct {
	// Timeout overrides the configured default when positive.
	Timeout time.Duration
	// RetryAttempt is 0 for the first attempt.
	RetryAttempt int
	// IsFallback applies the fallback multiplier.
	IsFallback bool
}

// Result is the single outcome produced by Run.
type Result struct {
	Completed     bool
	Value         any
	Err           error
	ExecutionTime time.Duration
	TimedOut      bool
	Cancelled     bool
}

// Operation is a cancellable unit of work. It must observe ctx at its
// suspension points; the controller never terminates it forcibly.
type Operation func(ctx context.Context) (any, error)

type handle struct {
	cancel   chan struct{}
	cancelFn context.CancelFunc
	once     sync.Once
}

func (h *handle) signal() {
	h.once.Do(func() {
		close(h.cancel)
		h.cancelFn()
	})
}

// Controller races operations against deadlines and tracks in-flight
// cancellation handles by operation id.
type Controller struct {
	config Config

	mu     sync.Mutex
	active map[string]*handle
	seq    atomic.Uint64
}

// NewController creates a controller, filling zero config fields from
// DefaultConfig.
func NewController(config Config) *Controller {
	defaults := DefaultConfig()
	if config.Default <= 0 {
		config.Default = defaults.Default
	}
	if config.Min <= 0 {
		config.Min = defaults.Min
	}
	if config.Max <= 0 {
		config.Max = defaults.Max
	}
	if config.FallbackMultiplier <= 1 {
		config.FallbackMultiplier = defaults.FallbackMultiplier
	}
	if config.ProgressiveMultiplier <= 1 {
		config.ProgressiveMultiplier = defaults.ProgressiveMultiplier
	}
	return &Controller{
		config: config,
		active: make(map[string]*handle),
	}
}

// EffectiveTimeout resolves the deadline for the given options: base timeout,
// fallback multiplier, progressive growth per retry, then clamp.
func (c *Controller) EffectiveTimeout(opts RunOptions) time.Duration {
	base := opts.Timeout
	if base <= 0 {
		base = c.config.Default
	}

	resolved := float64(base)
	if opts.IsFallback {
		resolved *= c.config.FallbackMultiplier
	}
	if opts.RetryAttempt > 0 && c.config.Progressive {
		resolved *= math.Pow(c.config.ProgressiveMultiplier, float64(opts.RetryAttempt))
	}

	clamped := time.Duration(resolved)
	if clamped < c.config.Min {
		clamped = c.config.Min
	}
	if clamped > c.config.Max {
		clamped = c.config.Max
	}
	return clamped
}

// Run executes op under the resolved deadline. Exactly one Result is
// produced; the operation's cancellation handle is released on every exit
// path. If the deadline fires, op's context is cancelled and the result
// carries a *TimeoutError. If CancelOperation is called first, the result
// carries a *CancellationError.
func (c *Controller) Run(ctx context.Context, operationID string, op Operation, opts RunOptions) Result {
	deadline := c.EffectiveTimeout(opts)

	opCtx, cancelFn := context.WithCancel(ctx)
	h := &handle{cancel: make(chan struct{}), cancelFn: cancelFn}

	key := c.register(operationID, h)
	defer func() {
		c.unregister(key)
		h.signal()
	}()

	type settled struct {
		value any
		err   error
	}
	done := make(chan settled, 1)
	go func() {
		value, err := op(opCtx)
		done <- settled{value: value, err: err}
	}()

	timer := time.NewTimer(deadline)
	defer timer.Stop()

	start := time.Now()
	select {
	case s := <-done:
		return Result{
			Completed:     s.err == nil,
			Value:         s.value,
			Err:           s.err,
			ExecutionTime: time.Since(start),
		}
	case <-timer.C:
		h.signal()
		return Result{
			Err:           &TimeoutError{OperationID: operationID, Timeout: deadline},
			ExecutionTime: time.Since(start),
			TimedOut:      true,
		}
	case <-h.cancel:
		return Result{
			Err:           &CancellationError{OperationID: operationID},
			ExecutionTime: time.Since(start),
			Cancelled:     true,
		}
	case <-ctx.Done():
		h.signal()
		return Result{
			Err:           fmt.Errorf("operation %s: %w", operationID, ctx.Err()),
			ExecutionTime: time.Since(start),
			Cancelled:     true,
		}
	}
}

// register stores the handle under operationID, suffixing duplicates so
// concurrent operations sharing an id never clobber each other's handles.
func (c *Controller) register(operationID string, h *handle) string {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := operationID
	if _, exists := c.active[key]; exists {
		key = fmt.Sprintf("%s#%d", operationID, c.seq.Add(1))
	}
	c.active[key] = h
	return key
}

func (c *Controller) unregister(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.active, key)
}

// CancelOperation signals every in-flight operation registered under id.
// Idempotent; unknown ids are a no-op.
func (c *Controller) CancelOperation(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, h := range c.active {
		if key == id || baseID(key) == id {
			h.signal()
		}
	}
}

// CancelAllOperations signals every in-flight operation. Idempotent.
func (c *Controller) CancelAllOperations() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, h := range c.active {
		h.signal()
	}
}

// ActiveCount reports how many operations are currently in flight.
func (c *Controller) ActiveCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.active)
}

func baseID(key string) string {
	for i := len(key) - 1; i >= 0; i-- {
		if key[i] == '#' {
			return key[:i]
		}
	}
	return key
}
