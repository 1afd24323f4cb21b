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

package future

import (
	"context"
	"sync"
	"sync/atomic"
)

// Future represents a value which may or may not currently be available,
// but will be available at some point in the future, or an error if that value
// could not be made available.
//
// Example usage:
//
//	completer := future.NewCompleter()
//	go func() { completer.Success(compute()) }()
//
//	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
//	defer cancel()
//	result, err := completer.Future().Await(ctx)
type Future interface {
	// Await blocks until the Future is completed or context is canceled and
	// returns either a result or an error.
	Await(context.Context) (any, error)
	// Done returns a channel closed once the Future has been completed
	Done() <-chan struct{}
}

// New creates a Future completed by the given task running in its own goroutine
func New(task func() (any, error)) Future {
	comp := NewCompleter()
	go func() {
		result, err := task()
		if err != nil {
			comp.Failure(err)
			return
		}
		comp.Success(result)
	}()
	return comp.Future()
}

type future struct {
	acceptOnce sync.Once
	done       chan struct{}
	value      any
	err        error
	result     atomic.Pointer[outcome]
}

type outcome struct {
	value any
	err   error
}

// Verify future satisfies the Future interface.
var _ Future = (*future)(nil)

func newFuture() *future {
	return &future{done: make(chan struct{})}
}

// wait blocks once, until the Future result is available or until
// the context is canceled.
func (x *future) wait(ctx context.Context) {
	x.acceptOnce.Do(func() {
		select {
		case <-x.done:
			out := x.result.Load()
			x.value, x.err = out.value, out.err
		case <-ctx.Done():
			x.err = ctx.Err()
		}
	})
}

// Await blocks until the Future is completed or context is canceled and
// returns either a result or an error.
func (x *future) Await(ctx context.Context) (any, error) {
	x.wait(ctx)
	return x.value, x.err
}

// Done returns a channel closed once the Future has been completed
func (x *future) Done() <-chan struct{} {
	return x.done
}

// Completer is a writable, single-assignment container which completes a Future.
// Only the first of Success or Failure takes effect.
type Completer struct {
	once   sync.Once
	future *future
}

// NewCompleter creates a Completer and its Future
func NewCompleter() *Completer {
	return &Completer{future: newFuture()}
}

// Success completes the underlying Future with a value.
// It returns false when the Future had already been completed.
func (c *Completer) Success(value any) bool {
	return c.complete(&outcome{value: value})
}

// Failure fails the underlying Future with an error.
// It returns false when the Future had already been completed.
func (c *Completer) Failure(err error) bool {
	return c.complete(&outcome{err: err})
}

// Future returns the underlying Future.
func (c *Completer) Future() Future {
	return c.future
}

// Completed reports whether the Future has been completed
func (c *Completer) Completed() bool {
	return c.future.result.Load() != nil
}

func (c *Completer) complete(out *outcome) bool {
	completed := false
	c.once.Do(func() {
		c.future.result.Store(out)
		close(c.future.done)
		completed = true
	})
	return completed
}
