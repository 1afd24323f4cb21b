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

	"github.com/meshakt/meshakt/supervisor"
)

// PoisonPill stops the receiving actor once the messages queued before it are processed
type PoisonPill struct{}

// Terminated is sent to the watchers of an actor once it has stopped
type Terminated struct {
	ActorID   string
	ActorName string
}

// ActorStarted is published on the system event stream when an actor starts
type ActorStarted struct {
	ActorName string
	StartedAt time.Time
}

// ActorStopped is published on the system event stream when an actor stops
type ActorStopped struct {
	ActorName string
	StoppedAt time.Time
}

// ActorSuspended is published on the system event stream when an actor fails
// and waits for its parent's decision
type ActorSuspended struct {
	ActorName   string
	Cause       supervisor.Cause
	Reason      string
	SuspendedAt time.Time
}

// ActorRestarted is published on the system event stream when an actor has been restarted
type ActorRestarted struct {
	ActorName    string
	Cause        supervisor.Cause
	RestartCount int
	RestartedAt  time.Time
}

// failure is sent by a failed child to its parent
type failure struct {
	child *PID
	cause supervisor.Cause
	err   error
}

// askFailure carries an error reply to an Ask
type askFailure struct {
	err error
}
