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
	"context"
)

// Actor defines the core interface for an actor.
//
// Actors communicate exclusively via message passing. Each actor has its own
// mailbox and processes messages one at a time, so its fields need no locking
// as long as they are only touched from the hooks below.
//
// State must be initialized in PreStart: a restarted actor goes through
// PostStop then PreStart again on the same instance and is expected to come
// back as if freshly created.
type Actor interface {
	// PreStart is invoked before the actor begins processing messages,
	// and again after every restart.
	// If an error is returned the actor fails to start.
	PreStart(ctx context.Context) error

	// Receive handles the messages sent to the actor's mailbox, one at a time.
	// Long-running or blocking operations should be offloaded to separate goroutines.
	Receive(ctx *ReceiveContext)

	// PostStop is invoked when the actor is stopped and before every restart.
	PostStop(ctx context.Context) error
}
