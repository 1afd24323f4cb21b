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

// Package config holds the settings of a meshakt node.
//
// A Config is built from defaults, optionally overlaid with a YAML file
// (Load), then with functional options (New, Load). It is validated once
// built and is read-only afterwards.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	gerrors "github.com/meshakt/meshakt/errors"
	"github.com/meshakt/meshakt/internal/validation"
	"github.com/meshakt/meshakt/log"
)

const (
	// DefaultDataDir is where the node identity is stored
	DefaultDataDir = ".meshakt"
	// DefaultProtocolVersion is announced during the peer handshake
	DefaultProtocolVersion = "meshakt/1.0.0"
	// DefaultBootstrapConcurrency bounds the concurrent bootstrap dials
	DefaultBootstrapConcurrency = 8
	// DefaultPingInterval is the period of the liveness probes
	DefaultPingInterval = 5 * time.Second
	// DefaultSuspectAfter is the silence after which a peer is suspected
	DefaultSuspectAfter = 15 * time.Second
	// DefaultDeadAfter is the silence after which a peer is declared dead
	DefaultDeadAfter = 45 * time.Second
	// DefaultAskTimeout bounds local asks
	DefaultAskTimeout = 5 * time.Second
	// DefaultPendingTaskTTL bounds remote asks
	DefaultPendingTaskTTL = 30 * time.Second
	// DefaultBroadcastConcurrency bounds the in-flight sends of a broadcast
	DefaultBroadcastConcurrency = 5
	// DefaultConnLow is the connection manager low watermark
	DefaultConnLow = 32
	// DefaultConnHigh is the connection manager high watermark
	DefaultConnHigh = 128
)

// DefaultListenAddrs listens on TCP and QUIC on dynamic ports
var DefaultListenAddrs = []string{
	"/ip4/0.0.0.0/tcp/0",
	"/ip4/0.0.0.0/udp/0/quic-v1",
}

// Config defines the node settings
type Config struct {
	// DataDir is the directory holding the node identity
	DataDir string `yaml:"dataDir"`
	// ListenAddrs are the multiaddrs the overlay listens on
	ListenAddrs []string `yaml:"listenAddrs"`
	// BootstrapPeers are dialed on start, as /p2p multiaddrs
	BootstrapPeers []string `yaml:"bootstrapPeers"`
	// Relays are the circuit relays a reservation is requested from, as /p2p multiaddrs
	Relays []string `yaml:"relays"`
	// ProtocolVersion must match between peers
	ProtocolVersion string `yaml:"protocolVersion"`
	// BootstrapConcurrency bounds the concurrent bootstrap dials
	BootstrapConcurrency int `yaml:"bootstrapConcurrency"`
	// PingInterval is the period of the liveness probes
	PingInterval time.Duration `yaml:"pingInterval"`
	// SuspectAfter is the silence after which a peer is suspected
	SuspectAfter time.Duration `yaml:"suspectAfter"`
	// DeadAfter is the silence after which a peer is declared dead
	DeadAfter time.Duration `yaml:"deadAfter"`
	// AskTimeout bounds local asks
	AskTimeout time.Duration `yaml:"askTimeout"`
	// PendingTaskTTL bounds remote asks
	PendingTaskTTL time.Duration `yaml:"pendingTaskTTL"`
	// BroadcastConcurrency bounds the in-flight sends of a broadcast
	BroadcastConcurrency int `yaml:"broadcastConcurrency"`
	// EnableMDNS turns on LAN discovery
	EnableMDNS bool `yaml:"enableMDNS"`
	// DisableDHT turns off the Kademlia directory; names then only resolve through connected peers
	DisableDHT bool `yaml:"disableDHT"`
	// ConnLow and ConnHigh are the connection manager watermarks
	ConnLow  int `yaml:"connLow"`
	ConnHigh int `yaml:"connHigh"`
	// LogLevel is one of debug, info, warn, error
	LogLevel string `yaml:"logLevel"`
}

// Default returns the default settings
func Default() *Config {
	return &Config{
		DataDir:              DefaultDataDir,
		ListenAddrs:          append([]string(nil), DefaultListenAddrs...),
		ProtocolVersion:      DefaultProtocolVersion,
		BootstrapConcurrency: DefaultBootstrapConcurrency,
		PingInterval:         DefaultPingInterval,
		SuspectAfter:         DefaultSuspectAfter,
		DeadAfter:            DefaultDeadAfter,
		AskTimeout:           DefaultAskTimeout,
		PendingTaskTTL:       DefaultPendingTaskTTL,
		BroadcastConcurrency: DefaultBroadcastConcurrency,
		ConnLow:              DefaultConnLow,
		ConnHigh:             DefaultConnHigh,
		LogLevel:             log.InfoLevel.String(),
	}
}

// New creates a validated Config from the defaults and the given options
func New(opts ...Option) (*Config, error) {
	config := Default()
	for _, opt := range opts {
		opt.Apply(config)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Load reads the YAML file at path over the defaults, then applies the options.
// Settings missing from the file keep their default value.
func Load(path string, opts ...Option) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	config := Default()
	if err := yaml.Unmarshal(raw, config); err != nil {
		return nil, errors.Join(gerrors.ErrInvalidConfig, fmt.Errorf("failed to parse config file %s: %w", path, err))
	}

	for _, opt := range opts {
		opt.Apply(config)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate checks every setting and reports all the violations at once
func (c *Config) Validate() error {
	chain := validation.New().
		AddAssertion(strings.TrimSpace(c.DataDir) != "", "data dir is required").
		AddAssertion(len(c.ListenAddrs) > 0, "at least one listen address is required").
		AddAssertion(strings.TrimSpace(c.ProtocolVersion) != "", "protocol version is required").
		AddAssertion(c.BootstrapConcurrency > 0, "bootstrap concurrency must be greater than zero").
		AddAssertion(c.BroadcastConcurrency > 0, "broadcast concurrency must be greater than zero").
		AddAssertion(c.ConnLow > 0 && c.ConnHigh > c.ConnLow, "connection watermarks must satisfy 0 < low < high").
		AddAssertion(log.ParseLevel(c.LogLevel) != log.InvalidLevel, fmt.Sprintf("invalid log level %q", c.LogLevel)).
		AddValidator(validation.NewPositiveDurationValidator("ping interval", c.PingInterval)).
		AddValidator(validation.NewPositiveDurationValidator("suspect after", c.SuspectAfter)).
		AddValidator(validation.NewPositiveDurationValidator("dead after", c.DeadAfter)).
		AddValidator(validation.NewPositiveDurationValidator("ask timeout", c.AskTimeout)).
		AddValidator(validation.NewPositiveDurationValidator("pending task TTL", c.PendingTaskTTL)).
		AddAssertion(c.DeadAfter >= c.SuspectAfter, "dead after must not be shorter than suspect after")

	for _, addr := range c.ListenAddrs {
		chain.AddValidator(validation.NewMultiaddrValidator(addr))
	}
	for _, addr := range c.BootstrapPeers {
		chain.AddValidator(validation.NewPeerAddrValidator(addr))
	}
	for _, addr := range c.Relays {
		chain.AddValidator(validation.NewPeerAddrValidator(addr))
	}

	if err := chain.Validate(); err != nil {
		return errors.Join(gerrors.ErrInvalidConfig, err)
	}
	return nil
}

// Level returns the parsed log level
func (c *Config) Level() log.Level {
	return log.ParseLevel(c.LogLevel)
}
