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

package supervisor

import (
	"fmt"
	"time"
)

// Cause classifies why a supervised actor failed
type Cause int

const (
	// PanicCause is raised when the actor panics or reports an error while handling a message
	PanicCause Cause = iota
	// DisconnectedCause is raised when a peer or heartbeat the actor depends on is declared dead
	DisconnectedCause
	// KilledCause is raised when the actor is forcibly terminated
	KilledCause
)

// String returns the string representation of the cause
func (c Cause) String() string {
	switch c {
	case PanicCause:
		return "Panic"
	case DisconnectedCause:
		return "Disconnected"
	case KilledCause:
		return "Killed"
	default:
		return ""
	}
}

// FanOut defines which actors a supervision decision applies to
type FanOut int

const (
	// OneForOne applies the decision to the failing child only.
	// Other sibling actors continue running unaffected.
	OneForOne FanOut = iota
	// AllForOne applies the decision to the failing child and all its siblings.
	// Use it when siblings share state that a single failure leaves inconsistent.
	AllForOne
)

// String returns the string representation of the fan-out
func (f FanOut) String() string {
	switch f {
	case OneForOne:
		return "OneForOne"
	case AllForOne:
		return "AllForOne"
	default:
		return ""
	}
}

// Directive defines the action taken on a failed actor
type Directive int

const (
	// StopDirective stops the failed actor for good
	StopDirective Directive = iota
	// RestartDirective runs PostStop then PreStart on the failed actor, keeping its mailbox
	RestartDirective
)

// String returns the string representation of the directive
func (d Directive) String() string {
	switch d {
	case StopDirective:
		return "Stop"
	case RestartDirective:
		return "Restart"
	default:
		return ""
	}
}

// Decision is the resolved outcome of a Strategy for a given Cause
type Decision struct {
	Directive Directive
	// Delay is the pause observed before restarting
	Delay time.Duration
}

type strategyKind int

const (
	restartKind strategyKind = iota
	stopKind
	restartWithDelayKind
	failureSpecificKind
)

// Strategy maps a failure Cause to a Decision.
// The zero value restarts immediately.
type Strategy struct {
	kind           strategyKind
	delay          time.Duration
	onPanic        *Strategy
	onDisconnected *Strategy
	onKilled       *Strategy
}

// Restart restarts the failed actor immediately
func Restart() Strategy {
	return Strategy{kind: restartKind}
}

// Stop stops the failed actor
func Stop() Strategy {
	return Strategy{kind: stopKind}
}

// RestartWithDelay restarts the failed actor after the given delay
func RestartWithDelay(delay time.Duration) Strategy {
	return Strategy{kind: restartWithDelayKind, delay: delay}
}

// FailureSpecific picks a different strategy per failure cause
func FailureSpecific(onPanic, onDisconnected, onKilled Strategy) Strategy {
	return Strategy{
		kind:           failureSpecificKind,
		onPanic:        &onPanic,
		onDisconnected: &onDisconnected,
		onKilled:       &onKilled,
	}
}

// Decide resolves the strategy for the given cause
func (s Strategy) Decide(cause Cause) Decision {
	switch s.kind {
	case stopKind:
		return Decision{Directive: StopDirective}
	case restartWithDelayKind:
		return Decision{Directive: RestartDirective, Delay: s.delay}
	case failureSpecificKind:
		var next *Strategy
		switch cause {
		case PanicCause:
			next = s.onPanic
		case DisconnectedCause:
			next = s.onDisconnected
		case KilledCause:
			next = s.onKilled
		}
		if next == nil {
			return Decision{Directive: StopDirective}
		}
		return next.Decide(cause)
	default:
		return Decision{Directive: RestartDirective}
	}
}

// String returns the string representation of the strategy
func (s Strategy) String() string {
	switch s.kind {
	case stopKind:
		return "Stop"
	case restartWithDelayKind:
		return fmt.Sprintf("RestartWithDelay(%s)", s.delay)
	case failureSpecificKind:
		return fmt.Sprintf("FailureSpecific(panic=%s, disconnected=%s, killed=%s)",
			s.onPanic, s.onDisconnected, s.onKilled)
	default:
		return "Restart"
	}
}

// Option defines the various options to apply to a given Supervisor
type Option func(*Supervisor)

// WithStrategy sets the supervisor strategy
func WithStrategy(strategy Strategy) Option {
	return func(s *Supervisor) {
		s.strategy = strategy
	}
}

// WithFanOut sets whether decisions apply to the failing child only or to all its siblings
func WithFanOut(fanOut FanOut) Option {
	return func(s *Supervisor) {
		s.fanOut = fanOut
	}
}

// WithMaxRestarts bounds the number of restarts allowed within window.
// Once the budget is exhausted the failed actor is stopped instead.
func WithMaxRestarts(maxRestarts int, window time.Duration) Option {
	return func(s *Supervisor) {
		s.maxRestarts = maxRestarts
		s.window = window
	}
}

// Supervisor holds the policy a parent applies to a failed child.
// It is immutable once built and can be shared between actors.
type Supervisor struct {
	strategy    Strategy
	fanOut      FanOut
	maxRestarts int
	window      time.Duration
}

// New creates a Supervisor. By default it restarts the failed child only, without limit.
func New(opts ...Option) *Supervisor {
	s := &Supervisor{
		strategy: Restart(),
		fanOut:   OneForOne,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Strategy returns the supervisor strategy
func (s *Supervisor) Strategy() Strategy {
	return s.strategy
}

// FanOut returns the supervisor fan-out
func (s *Supervisor) FanOut() FanOut {
	return s.fanOut
}

// Window returns the period over which restarts are counted
func (s *Supervisor) Window() time.Duration {
	return s.window
}

// Decide returns the decision for cause given the number of restarts
// already performed within the restart window.
func (s *Supervisor) Decide(cause Cause, recentRestarts int) Decision {
	decision := s.strategy.Decide(cause)
	if decision.Directive == RestartDirective && s.maxRestarts > 0 && recentRestarts >= s.maxRestarts {
		return Decision{Directive: StopDirective}
	}
	return decision
}
