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
	"fmt"
)

// ErrorType tells why the breaker failed a call
type ErrorType int

const (
	// ErrorTypeOpen means the call was rejected without running
	ErrorTypeOpen ErrorType = iota
	// ErrorTypeTimeout means the context ended before the call returned
	ErrorTypeTimeout
	// ErrorTypePanic means the call panicked
	ErrorTypePanic
)

// Error is returned by a breaker that failed a call itself, as opposed to an
// error returned by the call. Name identifies the guarded dependency, a peer
// id for the gateway breakers.
type Error struct {
	Type    ErrorType
	Name    string
	State   State
	Message string
	Cause   error
}

func (e *Error) Error() string {
	prefix := "circuit-breaker"
	if e.Name != "" {
		prefix = fmt.Sprintf("circuit-breaker=(%s)", e.Name)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s [%s]: %s: %v", prefix, e.State, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s [%s]: %s", prefix, e.State, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches errors of the same type. A target without a name matches every breaker.
func (e *Error) Is(target error) bool {
	other, ok := target.(*Error)
	if !ok {
		return false
	}
	return other.Type == e.Type && (other.Name == "" || other.Name == e.Name)
}

var (
	// ErrOpen matches the errors of breakers rejecting a call
	ErrOpen = &Error{
		Type:    ErrorTypeOpen,
		State:   Open,
		Message: "circuit breaker is open",
	}
	// ErrTimeout matches the errors of calls whose context ended first
	ErrTimeout = &Error{
		Type:    ErrorTypeTimeout,
		Message: "execution timeout",
		Cause:   context.DeadlineExceeded,
	}
)

func (b *CircuitBreaker) openError() error {
	return &Error{
		Type:    ErrorTypeOpen,
		Name:    b.opts.name,
		State:   Open,
		Message: ErrOpen.Message,
	}
}

func (b *CircuitBreaker) timeoutError(cause error) error {
	return &Error{
		Type:    ErrorTypeTimeout,
		Name:    b.opts.name,
		State:   b.State(),
		Message: ErrTimeout.Message,
		Cause:   cause,
	}
}
