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

package overlay

import (
	"time"

	"github.com/libp2p/go-libp2p/core/host"
	otelmetric "go.opentelemetry.io/otel/metric"

	"github.com/meshakt/meshakt/eventstream"
)

const (
	// DefaultHelloTimeout bounds the handshake, and how long streams of a peer
	// wait for it before being refused
	DefaultHelloTimeout = 10 * time.Second
	// DefaultLookupTimeout bounds a directory lookup against connected peers
	DefaultLookupTimeout = 5 * time.Second
	// DefaultRecordCacheTTL is how long a name learned from the network is trusted
	DefaultRecordCacheTTL = 30 * time.Second
	// DefaultRepublishInterval is the period at which local names are pushed to the DHT
	DefaultRepublishInterval = 10 * time.Minute
)

// Option is the interface that applies a Node option.
type Option interface {
	// Apply sets the Option value of a Node.
	Apply(node *Node)
}

var _ Option = OptionFunc(nil)

// OptionFunc implements the Option interface.
type OptionFunc func(node *Node)

// Apply applies the option to the Node
func (f OptionFunc) Apply(node *Node) {
	f(node)
}

// WithHost runs the node on an existing host instead of building one.
// The host must carry the node identity. The node owns it and closes it on Close.
func WithHost(h host.Host) Option {
	return OptionFunc(func(node *Node) {
		node.host = h
	})
}

// WithEventStream publishes the peer events on the given stream
func WithEventStream(stream eventstream.Stream) Option {
	return OptionFunc(func(node *Node) {
		node.bus = stream
		node.ownsBus = false
	})
}

// WithMeterProvider sets the otel meter provider of the overlay instruments
func WithMeterProvider(provider otelmetric.MeterProvider) Option {
	return OptionFunc(func(node *Node) {
		node.meterProvider = provider
	})
}

// WithHelloTimeout bounds the handshake with a new peer
func WithHelloTimeout(timeout time.Duration) Option {
	return OptionFunc(func(node *Node) {
		node.helloTimeout = timeout
	})
}

// WithLookupTimeout bounds a directory lookup against connected peers
func WithLookupTimeout(timeout time.Duration) Option {
	return OptionFunc(func(node *Node) {
		node.lookupTimeout = timeout
	})
}

// WithRecordCacheTTL sets how long a name learned from the network is trusted.
// Zero disables the cache.
func WithRecordCacheTTL(ttl time.Duration) Option {
	return OptionFunc(func(node *Node) {
		node.cacheTTL = ttl
	})
}

// WithRepublishInterval sets the period at which local names are pushed to the DHT
func WithRepublishInterval(interval time.Duration) Option {
	return OptionFunc(func(node *Node) {
		node.republishInterval = interval
	})
}
