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

package config

import (
	"time"
)

// Option is the interface that applies a configuration option.
type Option interface {
	// Apply sets the Option value of a config.
	Apply(config *Config)
}

var _ Option = OptionFunc(nil)

// OptionFunc implements the Option interface.
type OptionFunc func(config *Config)

// Apply applies the option to the config
func (f OptionFunc) Apply(c *Config) {
	f(c)
}

// WithDataDir sets the directory holding the node identity
func WithDataDir(dir string) Option {
	return OptionFunc(func(config *Config) {
		config.DataDir = dir
	})
}

// WithListenAddrs sets the multiaddrs the overlay listens on
func WithListenAddrs(addrs ...string) Option {
	return OptionFunc(func(config *Config) {
		config.ListenAddrs = addrs
	})
}

// WithBootstrapPeers sets the peers dialed on start
func WithBootstrapPeers(addrs ...string) Option {
	return OptionFunc(func(config *Config) {
		config.BootstrapPeers = addrs
	})
}

// WithRelays sets the circuit relays a reservation is requested from
func WithRelays(addrs ...string) Option {
	return OptionFunc(func(config *Config) {
		config.Relays = addrs
	})
}

// WithProtocolVersion sets the version announced during the peer handshake
func WithProtocolVersion(version string) Option {
	return OptionFunc(func(config *Config) {
		config.ProtocolVersion = version
	})
}

// WithBootstrapConcurrency sets the number of concurrent bootstrap dials
func WithBootstrapConcurrency(n int) Option {
	return OptionFunc(func(config *Config) {
		config.BootstrapConcurrency = n
	})
}

// WithLiveness sets the ping interval and the silences after which a peer is suspected, then dead
func WithLiveness(pingInterval, suspectAfter, deadAfter time.Duration) Option {
	return OptionFunc(func(config *Config) {
		config.PingInterval = pingInterval
		config.SuspectAfter = suspectAfter
		config.DeadAfter = deadAfter
	})
}

// WithAskTimeout sets the local ask timeout
func WithAskTimeout(timeout time.Duration) Option {
	return OptionFunc(func(config *Config) {
		config.AskTimeout = timeout
	})
}

// WithPendingTaskTTL sets the remote ask timeout
func WithPendingTaskTTL(ttl time.Duration) Option {
	return OptionFunc(func(config *Config) {
		config.PendingTaskTTL = ttl
	})
}

// WithBroadcastConcurrency sets the number of in-flight sends of a broadcast
func WithBroadcastConcurrency(n int) Option {
	return OptionFunc(func(config *Config) {
		config.BroadcastConcurrency = n
	})
}

// WithMDNS turns LAN discovery on or off
func WithMDNS(enabled bool) Option {
	return OptionFunc(func(config *Config) {
		config.EnableMDNS = enabled
	})
}

// WithoutDHT turns the Kademlia directory off
func WithoutDHT() Option {
	return OptionFunc(func(config *Config) {
		config.DisableDHT = true
	})
}

// WithConnectionLimits sets the connection manager watermarks
func WithConnectionLimits(low, high int) Option {
	return OptionFunc(func(config *Config) {
		config.ConnLow = low
		config.ConnHigh = high
	})
}

// WithLogLevel sets the log level
func WithLogLevel(level string) Option {
	return OptionFunc(func(config *Config) {
		config.LogLevel = level
	})
}
