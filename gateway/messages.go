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

	"github.com/libp2p/go-libp2p/core/peer"

	"github.com/meshakt/meshakt/envelope"
)

// RegisterTask pre-registers a pending request sent to Peer. The gateway replies
// with the future.Future completed by the reply of Peer, or failed at Deadline.
type RegisterTask struct {
	TaskID   envelope.TaskID
	Peer     peer.ID
	Deadline time.Time
}

// CancelTask fails and removes a pending request
type CancelTask struct {
	TaskID envelope.TaskID
}

// GetState asks the gateway for its State
type GetState struct{}

// State of the gateway registration
type State int

const (
	// Idle gateways are not yet reachable by name
	Idle State = iota
	// Registered gateways have published their name in the directory
	Registered
)

// String returns the string representation of the state
func (s State) String() string {
	if s == Registered {
		return "registered"
	}
	return "idle"
}

// inbound is a frame read from the transport
type inbound struct {
	from peer.ID
	data []byte
}

// sweep fails the pending requests past their deadline
type sweep struct{}

// registered is sent once the gateway name is in the directory
type registered struct{}
