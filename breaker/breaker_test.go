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
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	gerrors "github.com/meshakt/meshakt/errors"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1_700_000_000, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

var errBoom = errors.New("boom")

func failing(calls *atomic.Int32) func(context.Context) (any, error) {
	return func(context.Context) (any, error) {
		calls.Add(1)
		return nil, errBoom
	}
}

func succeeding(calls *atomic.Int32) func(context.Context) (any, error) {
	return func(context.Context) (any, error) {
		calls.Add(1)
		return "ok", nil
	}
}

func TestCircuitBreaker(t *testing.T) {
	defer goleak.VerifyNone(t)
	ctx := context.Background()

	t.Run("With N consecutive failures it fails fast without calling", func(t *testing.T) {
		clock := newFakeClock()
		cb := NewCircuitBreaker(WithFailureThreshold(3), WithOpenTimeout(time.Second), WithClock(clock.Now))

		calls := new(atomic.Int32)
		for range 3 {
			_, err := cb.Execute(ctx, failing(calls))
			require.ErrorIs(t, err, errBoom)
		}
		require.Equal(t, Open, cb.State())
		require.EqualValues(t, 3, calls.Load())

		for range 5 {
			_, err := cb.Execute(ctx, failing(calls))
			require.ErrorIs(t, err, ErrOpen)
		}
		assert.EqualValues(t, 3, calls.Load())
		assert.EqualValues(t, 5, cb.Metrics().Rejections)
	})
	t.Run("With a success resetting the consecutive count", func(t *testing.T) {
		cb := NewCircuitBreaker(WithFailureThreshold(2))
		calls := new(atomic.Int32)

		_, _ = cb.Execute(ctx, failing(calls))
		_, err := cb.Execute(ctx, succeeding(calls))
		require.NoError(t, err)
		_, _ = cb.Execute(ctx, failing(calls))

		assert.Equal(t, Closed, cb.State())
		assert.EqualValues(t, 1, cb.Metrics().ConsecutiveFailures)
	})
	t.Run("With a successful probe after cool-down the breaker closes", func(t *testing.T) {
		clock := newFakeClock()
		cb := NewCircuitBreaker(WithFailureThreshold(1), WithOpenTimeout(time.Second), WithClock(clock.Now))
		calls := new(atomic.Int32)

		_, _ = cb.Execute(ctx, failing(calls))
		require.Equal(t, Open, cb.State())

		clock.Advance(999 * time.Millisecond)
		_, err := cb.Execute(ctx, succeeding(calls))
		require.ErrorIs(t, err, ErrOpen)

		clock.Advance(time.Millisecond)
		value, err := cb.Execute(ctx, succeeding(calls))
		require.NoError(t, err)
		assert.Equal(t, "ok", value)
		assert.Equal(t, Closed, cb.State())
		assert.EqualValues(t, 2, calls.Load())
	})
	t.Run("With a failing probe after cool-down the breaker reopens", func(t *testing.T) {
		clock := newFakeClock()
		cb := NewCircuitBreaker(WithFailureThreshold(1), WithOpenTimeout(time.Second), WithClock(clock.Now))
		calls := new(atomic.Int32)

		_, _ = cb.Execute(ctx, failing(calls))
		clock.Advance(time.Second)

		_, err := cb.Execute(ctx, failing(calls))
		require.ErrorIs(t, err, errBoom)
		assert.Equal(t, Open, cb.State())

		_, err = cb.Execute(ctx, succeeding(calls))
		require.ErrorIs(t, err, ErrOpen)
		assert.EqualValues(t, 2, calls.Load())
		assert.Equal(t, clock.Now().Add(time.Second), cb.Metrics().OpenUntil)
	})
	t.Run("With half-open letting a single probe through", func(t *testing.T) {
		clock := newFakeClock()
		cb := NewCircuitBreaker(WithFailureThreshold(1), WithOpenTimeout(time.Second), WithClock(clock.Now))
		calls := new(atomic.Int32)

		_, _ = cb.Execute(ctx, failing(calls))
		clock.Advance(time.Second)

		started := make(chan struct{})
		release := make(chan struct{})
		done := make(chan error, 1)
		go func() {
			_, err := cb.Execute(ctx, func(context.Context) (any, error) {
				close(started)
				<-release
				return "probe", nil
			})
			done <- err
		}()

		<-started
		require.Equal(t, HalfOpen, cb.State())
		_, err := cb.Execute(ctx, succeeding(calls))
		require.ErrorIs(t, err, ErrOpen)

		close(release)
		require.NoError(t, <-done)
		assert.Equal(t, Closed, cb.State())
	})
	t.Run("With a fallback on rejection", func(t *testing.T) {
		cb := NewCircuitBreaker(WithFailureThreshold(1))
		calls := new(atomic.Int32)
		_, _ = cb.Execute(ctx, failing(calls))

		value, err := cb.Execute(ctx, succeeding(calls), func(_ context.Context, err error) (any, error) {
			assert.ErrorIs(t, err, ErrOpen)
			return "fallback", nil
		})
		require.NoError(t, err)
		assert.Equal(t, "fallback", value)
	})
	t.Run("With a panicking function", func(t *testing.T) {
		cb := NewCircuitBreaker()
		_, err := cb.Execute(ctx, func(context.Context) (any, error) {
			panic("kaboom")
		})
		var breakerErr *Error
		require.ErrorAs(t, err, &breakerErr)
		assert.Equal(t, ErrorTypePanic, breakerErr.Type)

		var panicErr *gerrors.PanicError
		assert.ErrorAs(t, err, &panicErr)
		assert.EqualValues(t, 1, cb.Metrics().Failures)
	})
	t.Run("With a context timeout", func(t *testing.T) {
		cb := NewCircuitBreaker()
		timeoutCtx, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
		defer cancel()

		_, err := cb.Execute(timeoutCtx, func(ctx context.Context) (any, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		})
		require.ErrorIs(t, err, ErrTimeout)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
	t.Run("With a named breaker", func(t *testing.T) {
		cb := NewCircuitBreaker(WithName("peer-a"), WithFailureThreshold(1))
		calls := new(atomic.Int32)
		_, _ = cb.Execute(ctx, failing(calls))

		_, err := cb.Execute(ctx, succeeding(calls))
		require.ErrorIs(t, err, ErrOpen)
		assert.Equal(t, "peer-a", cb.Name())

		var breakerErr *Error
		require.ErrorAs(t, err, &breakerErr)
		assert.Equal(t, "peer-a", breakerErr.Name)
		assert.Contains(t, err.Error(), "circuit-breaker=(peer-a)")
		assert.ErrorIs(t, err, &Error{Type: ErrorTypeOpen, Name: "peer-a"})
		assert.NotErrorIs(t, err, &Error{Type: ErrorTypeOpen, Name: "peer-b"})
		assert.NotErrorIs(t, err, ErrTimeout)
	})
	t.Run("With reset", func(t *testing.T) {
		cb := NewCircuitBreaker(WithFailureThreshold(1))
		calls := new(atomic.Int32)
		_, _ = cb.Execute(ctx, failing(calls))
		require.Equal(t, Open, cb.State())
		cb.Reset()
		assert.Equal(t, Closed, cb.State())
		assert.Contains(t, cb.Metrics().String(), "state=closed")
	})
}

func TestOptions(t *testing.T) {
	t.Run("With validation", func(t *testing.T) {
		_, err := NewCircuitBreakerWithValidation(WithFailureThreshold(0), WithOpenTimeout(-1))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failureThreshold")
		assert.Contains(t, err.Error(), "openTimeout")

		cb, err := NewCircuitBreakerWithValidation(WithFailureThreshold(2))
		require.NoError(t, err)
		assert.Equal(t, Closed, cb.State())
	})
	t.Run("With sanitized defaults", func(t *testing.T) {
		cb := NewCircuitBreaker(WithFailureThreshold(-3), WithOpenTimeout(0), WithClock(nil))
		assert.Equal(t, DefaultFailureThreshold, cb.opts.failureThreshold)
		assert.Equal(t, DefaultOpenTimeout, cb.opts.openTimeout)
		assert.NotNil(t, cb.opts.clock)
	})
	t.Run("With state names", func(t *testing.T) {
		assert.Equal(t, "half-open", HalfOpen.String())
		assert.Equal(t, "unknown", State(42).String())
	})
}
