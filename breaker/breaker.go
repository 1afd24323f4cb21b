// MIT License
//
// Copyright (c) 2022-2026 GoAkt Team
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

package breaker

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	gerrors "github.com/meshakt/meshakt/errors"
)

// executionResult holds the result of a function execution
type executionResult struct {
	value any
	err   error
}

// CircuitBreaker is a thread-safe circuit breaker.
//
// It opens after a configured number of consecutive failures and rejects calls
// without running them until the open timeout elapses. It then lets exactly
// one probe through: success closes it, failure opens it again.
type CircuitBreaker struct {
	state     atomic.Int32
	openUntil atomic.Int64 // unix nano when Open ends
	probing   atomic.Bool  // a half-open probe is in flight

	opts *options
	mu   sync.Mutex // guards transitions

	consecutive atomic.Uint64
	successes   atomic.Uint64
	failures    atomic.Uint64
	rejections  atomic.Uint64
	lastFailure atomic.Int64 // unix nano
	lastSuccess atomic.Int64 // unix nano
}

// NewCircuitBreaker constructs a circuit breaker.
// Invalid options are replaced by their defaults.
func NewCircuitBreaker(opts ...Option) *CircuitBreaker {
	o := defaultOptions()
	for _, fn := range opts {
		fn(o)
	}
	o.Sanitize()
	return &CircuitBreaker{opts: o}
}

// NewCircuitBreakerWithValidation constructs a circuit breaker with validation.
// Returns an error if the provided options are invalid.
func NewCircuitBreakerWithValidation(opts ...Option) (*CircuitBreaker, error) {
	o := defaultOptions()
	for _, fn := range opts {
		fn(o)
	}

	if err := o.Validate(); err != nil {
		return nil, err
	}
	return &CircuitBreaker{opts: o}, nil
}

// Name returns the name of the guarded dependency
func (b *CircuitBreaker) Name() string { return b.opts.name }

// State returns the current breaker state.
func (b *CircuitBreaker) State() State { return State(b.state.Load()) }

// Execute runs fn if allowed. If the breaker rejects the call, fn is not run and
// the optional fallback is called with ErrOpen. It propagates ctx cancellation.
func (b *CircuitBreaker) Execute(ctx context.Context, fn func(context.Context) (any, error), fallback ...func(context.Context, error) (any, error)) (any, error) {
	probe, allowed := b.tryAllow()
	if !allowed {
		b.rejections.Add(1)
		return b.handleRejection(ctx, b.openError(), fallback...)
	}

	if probe {
		defer b.probing.Store(false)
	}
	return b.executeWithTimeout(ctx, fn, fallback...)
}

// tryAllow returns whether a call is permitted at this moment and whether it is the half-open probe
func (b *CircuitBreaker) tryAllow() (probe bool, allowed bool) {
	switch b.State() {
	case Closed:
		return false, true
	case Open:
		if b.opts.clock().UnixNano() < b.openUntil.Load() {
			return false, false
		}
		b.transitionTo(Open, HalfOpen)
	}

	if b.State() != HalfOpen {
		return false, b.State() == Closed
	}
	if b.probing.CompareAndSwap(false, true) {
		return true, true
	}
	return false, false
}

func (b *CircuitBreaker) onSuccess() {
	b.successes.Add(1)
	b.consecutive.Store(0)
	b.lastSuccess.Store(b.opts.clock().UnixNano())
	if b.State() == HalfOpen {
		b.transitionTo(HalfOpen, Closed)
	}
}

func (b *CircuitBreaker) onFailure() {
	b.failures.Add(1)
	count := b.consecutive.Add(1)
	b.lastFailure.Store(b.opts.clock().UnixNano())

	switch b.State() {
	case HalfOpen:
		b.transitionTo(HalfOpen, Open)
	case Closed:
		if count >= uint64(b.opts.failureThreshold) {
			b.transitionTo(Closed, Open)
		}
	}
}

// handleRejection handles the case when the breaker rejects a call
func (b *CircuitBreaker) handleRejection(ctx context.Context, err error, fallback ...func(context.Context, error) (any, error)) (any, error) {
	if len(fallback) > 0 {
		return fallback[0](ctx, err)
	}
	return nil, err
}

// executeWithTimeout executes the function with timeout handling
func (b *CircuitBreaker) executeWithTimeout(ctx context.Context, fn func(context.Context) (any, error), fallback ...func(context.Context, error) (any, error)) (any, error) {
	resultCh := make(chan executionResult, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				resultCh <- executionResult{err: b.handlePanic(r)}
			}
		}()

		value, err := fn(ctx)
		resultCh <- executionResult{value: value, err: err}
	}()

	select {
	case <-ctx.Done():
		b.onFailure()
		return b.handleRejection(ctx, b.timeoutError(ctx.Err()), fallback...)
	case result := <-resultCh:
		if result.err != nil {
			b.onFailure()
			return b.handleRejection(ctx, result.err, fallback...)
		}
		b.onSuccess()
		return result.value, nil
	}
}

// handlePanic converts a panic into a structured error
func (b *CircuitBreaker) handlePanic(r any) error {
	var cause error
	switch v := r.(type) {
	case error:
		var pe *gerrors.PanicError
		if errors.As(v, &pe) {
			cause = v
			break
		}
		pc, fn, line, _ := runtime.Caller(3)
		cause = gerrors.NewPanicError(fmt.Errorf("%w at %s[%s:%d]", v, runtime.FuncForPC(pc).Name(), fn, line))
	default:
		pc, fn, line, _ := runtime.Caller(3)
		cause = gerrors.NewPanicError(fmt.Errorf("%#v at %s[%s:%d]", r, runtime.FuncForPC(pc).Name(), fn, line))
	}

	return &Error{
		Type:    ErrorTypePanic,
		Name:    b.opts.name,
		State:   b.State(),
		Message: "panic during execution",
		Cause:   cause,
	}
}

// Metrics builds Metrics.
func (b *CircuitBreaker) Metrics() Metrics {
	m := Metrics{
		State:               b.State(),
		Successes:           b.successes.Load(),
		Failures:            b.failures.Load(),
		Rejections:          b.rejections.Load(),
		ConsecutiveFailures: b.consecutive.Load(),
	}
	if lf := b.lastFailure.Load(); lf > 0 {
		m.LastFailure = time.Unix(0, lf)
	}
	if ls := b.lastSuccess.Load(); ls > 0 {
		m.LastSuccess = time.Unix(0, ls)
	}
	if m.State == Open {
		m.OpenUntil = time.Unix(0, b.openUntil.Load())
	}
	return m
}

// Reset forces the breaker back to the closed state
func (b *CircuitBreaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.consecutive.Store(0)
	b.probing.Store(false)
	b.state.Store(int32(Closed))
}

// transitionTo moves the breaker from one state to another.
// It returns false when the breaker is no longer in the from state.
func (b *CircuitBreaker) transitionTo(from, to State) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if State(b.state.Load()) != from {
		return false
	}

	switch to {
	case Open:
		b.openUntil.Store(b.opts.clock().Add(b.opts.openTimeout).UnixNano())
	case Closed:
		b.consecutive.Store(0)
	}

	b.state.Store(int32(to))
	return true
}
