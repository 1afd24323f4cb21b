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
	"time"

	"github.com/meshakt/meshakt/internal/validation"
)

const (
	// DefaultFailureThreshold is the number of consecutive failures that opens the breaker
	DefaultFailureThreshold = 5
	// DefaultOpenTimeout is how long the breaker stays open before probing
	DefaultOpenTimeout = 30 * time.Second
)

// options configures the breaker.
type options struct {
	failureThreshold int           // consecutive failures before opening
	openTimeout      time.Duration // how long to stay open before moving to half-open
	clock            func() time.Time
	name             string // carried by the breaker errors
}

var _ validation.Validator = (*options)(nil)

// Validate checks if the options are valid and returns an error if not
func (o *options) Validate() error {
	return validation.New().
		AddAssertion(o.failureThreshold >= 1, "failureThreshold must be at least 1").
		AddValidator(validation.NewPositiveDurationValidator("openTimeout", o.openTimeout)).
		AddAssertion(o.clock != nil, "clock function cannot be nil").
		Validate()
}

// Sanitize adjusts invalid options to their default values.
func (o *options) Sanitize() {
	if o.failureThreshold < 1 {
		o.failureThreshold = DefaultFailureThreshold
	}
	if o.openTimeout <= 0 {
		o.openTimeout = DefaultOpenTimeout
	}
	if o.clock == nil {
		o.clock = time.Now
	}
}

func defaultOptions() *options {
	return &options{
		failureThreshold: DefaultFailureThreshold,
		openTimeout:      DefaultOpenTimeout,
		clock:            time.Now,
	}
}

// Option functional option.
type Option func(*options)

// WithFailureThreshold sets the number of consecutive failures that opens the breaker
func WithFailureThreshold(n int) Option { return func(o *options) { o.failureThreshold = n } }

// WithOpenTimeout sets the cool-down the breaker observes in the open state
// before letting a probe call through.
func WithOpenTimeout(d time.Duration) Option { return func(o *options) { o.openTimeout = d } }

// WithClock overrides the time source. Mostly useful in tests.
func WithClock(clock func() time.Time) Option { return func(o *options) { o.clock = clock } }

// WithName names the dependency the breaker guards
func WithName(name string) Option { return func(o *options) { o.name = name } }
