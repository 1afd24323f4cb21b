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

package actor

import (
	"time"

	"github.com/meshakt/meshakt/eventstream"
	"github.com/meshakt/meshakt/log"
	"github.com/meshakt/meshakt/supervisor"
)

const (
	// DefaultAskTimeout defines the default ask timeout
	DefaultAskTimeout = 5 * time.Second
	// DefaultInitMaxRetries defines the default number of PreStart attempts
	DefaultInitMaxRetries = 5
	// DefaultInitTimeout defines the default PreStart timeout
	DefaultInitTimeout = time.Second
)

// Option is the interface that applies a configuration option.
type Option interface {
	// Apply sets the Option value of a config.
	Apply(sys *actorSystem)
}

var _ Option = OptionFunc(nil)

// OptionFunc implements the Option interface.
type OptionFunc func(*actorSystem)

// Apply applies the options to the actor system
func (f OptionFunc) Apply(c *actorSystem) {
	f(c)
}

// WithLogger sets the actor system custom log
func WithLogger(logger log.Logger) Option {
	return OptionFunc(func(a *actorSystem) {
		a.logger = logger
	})
}

// WithAskTimeout sets the default timeout of Ask calls made without an explicit timeout
func WithAskTimeout(timeout time.Duration) Option {
	return OptionFunc(func(a *actorSystem) {
		a.askTimeout = timeout
	})
}

// WithActorInitMaxRetries sets the number of times PreStart is attempted before giving up
func WithActorInitMaxRetries(value int) Option {
	return OptionFunc(func(a *actorSystem) {
		a.initMaxRetries = value
	})
}

// WithActorInitTimeout sets how long PreStart may take across its retries
func WithActorInitTimeout(timeout time.Duration) Option {
	return OptionFunc(func(a *actorSystem) {
		a.initTimeout = timeout
	})
}

// WithEventStream makes the actor system publish its lifecycle events on the given stream
// instead of a private one. The stream is not closed when the system stops.
func WithEventStream(stream eventstream.Stream) Option {
	return OptionFunc(func(a *actorSystem) {
		a.stream = stream
		a.ownsStream = false
	})
}

// SpawnOption configures an actor at spawn time
type SpawnOption interface {
	// Apply sets the Option value of a config.
	Apply(config *spawnConfig)
}

type spawnConfig struct {
	supervisor *supervisor.Supervisor
	mailbox    Mailbox
}

func newSpawnConfig(opts ...SpawnOption) *spawnConfig {
	config := &spawnConfig{}
	for _, opt := range opts {
		opt.Apply(config)
	}

	if config.supervisor == nil {
		config.supervisor = supervisor.New()
	}
	if config.mailbox == nil {
		config.mailbox = NewDefaultMailbox()
	}
	return config
}

var _ SpawnOption = spawnOption(nil)

type spawnOption func(config *spawnConfig)

func (f spawnOption) Apply(c *spawnConfig) {
	f(c)
}

// WithSupervisor sets the policy the parent applies when the actor fails.
// Without it the actor is restarted on its own.
func WithSupervisor(s *supervisor.Supervisor) SpawnOption {
	return spawnOption(func(config *spawnConfig) {
		config.supervisor = s
	})
}

// WithMailbox sets the actor mailbox
func WithMailbox(mailbox Mailbox) SpawnOption {
	return spawnOption(func(config *spawnConfig) {
		config.mailbox = mailbox
	})
}
