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

package gateway

import (
	"time"

	"go.opentelemetry.io/otel/metric"

	"github.com/meshakt/meshakt/breaker"
	"github.com/meshakt/meshakt/eventstream"
	"github.com/meshakt/meshakt/internal/validation"
	"github.com/meshakt/meshakt/log"
)

const (
	// DefaultPendingTaskTTL bounds how long a remote ask waits for its reply
	DefaultPendingTaskTTL = 30 * time.Second
	// DefaultSweepInterval is the period of the pending tasks sweep
	DefaultSweepInterval = time.Second
	// DefaultBroadcastConcurrency is the number of in-flight sends of a broadcast
	DefaultBroadcastConcurrency = 5
	// DefaultRequestTimeout bounds how long a local actor takes to answer a remote request
	DefaultRequestTimeout = 5 * time.Second
	// DefaultRegisterRetries is the number of attempts to publish the gateway name
	DefaultRegisterRetries = 10
	// DefaultBreakerOpenTimeout is how long sends to a failing peer are refused
	DefaultBreakerOpenTimeout = 10 * time.Second
)

// Option is the interface that applies a configuration option.
type Option interface {
	// Apply sets the Option value of a config.
	Apply(g *Gateway)
}

var _ Option = OptionFunc(nil)

// OptionFunc implements the Option interface.
type OptionFunc func(*Gateway)

// Apply applies the option to the gateway
func (f OptionFunc) Apply(g *Gateway) {
	f(g)
}

// WithLogger sets the gateway logger
func WithLogger(logger log.Logger) Option {
	return OptionFunc(func(g *Gateway) {
		g.logger = logger
	})
}

// WithPendingTaskTTL sets how long a remote ask waits for its reply when its context has no deadline
func WithPendingTaskTTL(ttl time.Duration) Option {
	return OptionFunc(func(g *Gateway) {
		g.pendingTTL = ttl
	})
}

// WithSweepInterval sets the period of the pending tasks sweep
func WithSweepInterval(interval time.Duration) Option {
	return OptionFunc(func(g *Gateway) {
		g.sweepInterval = interval
	})
}

// WithRequestTimeout sets how long a local actor takes to answer a remote request
func WithRequestTimeout(timeout time.Duration) Option {
	return OptionFunc(func(g *Gateway) {
		g.requestTimeout = timeout
	})
}

// WithBroadcastConcurrency sets the number of in-flight sends of a broadcast
func WithBroadcastConcurrency(n int) Option {
	return OptionFunc(func(g *Gateway) {
		g.broadcastConcurrency = n
	})
}

// WithEventStream sets the message bus inbound events are published to.
// It defaults to the actor system event stream.
func WithEventStream(stream eventstream.Stream) Option {
	return OptionFunc(func(g *Gateway) {
		g.bus = stream
	})
}

// WithMeterProvider sets the provider of the gateway instruments
func WithMeterProvider(provider metric.MeterProvider) Option {
	return OptionFunc(func(g *Gateway) {
		g.meterProvider = provider
	})
}

// WithCircuitBreaker configures the breaker kept for each destination peer
func WithCircuitBreaker(opts ...breaker.Option) Option {
	return OptionFunc(func(g *Gateway) {
		g.breakerOpts = append(g.breakerOpts, opts...)
	})
}

func (g *Gateway) validate() error {
	return validation.New().
		AddValidator(validation.NewPositiveDurationValidator("pending task TTL", g.pendingTTL)).
		AddValidator(validation.NewPositiveDurationValidator("sweep interval", g.sweepInterval)).
		AddValidator(validation.NewPositiveDurationValidator("request timeout", g.requestTimeout)).
		AddAssertion(g.broadcastConcurrency > 0, "broadcast concurrency must be greater than zero").
		Validate()
}
