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
	"errors"
	"time"

	gerrors "github.com/meshakt/meshakt/errors"
	"github.com/meshakt/meshakt/eventstream"
)

// Tell sends an asynchronous message to an actor from outside the actor system.
// Messages from the same sender to the same actor are processed in send order.
func Tell(ctx context.Context, to *PID, message any) error {
	return tell(ctx, nil, to, message)
}

// Ask sends a synchronous message to an actor and waits for its reply.
// It fails with ErrRequestTimeout when no reply arrives within timeout or
// before ctx ends.
func Ask(ctx context.Context, to *PID, message any, timeout time.Duration) (any, error) {
	return ask(ctx, nil, to, message, timeout)
}

// SubscribeActor delivers every message of type T published on the stream to the actor's mailbox.
// Delivery never blocks the publisher.
func SubscribeActor[T any](stream eventstream.Stream, pid *PID) eventstream.Subscriber {
	sub := stream.AddReceiver(pid)
	eventstream.SubscribeTo[T](stream, sub)
	return sub
}

func tell(ctx context.Context, from, to *PID, message any) error {
	if to == nil {
		return gerrors.ErrUndefinedActor
	}
	if message == nil {
		return gerrors.ErrInvalidMessage
	}
	if !to.IsRunning() {
		return gerrors.ErrDead
	}

	to.enqueue(newReceiveContext(context.WithoutCancel(ctx), from, to, message))
	return nil
}

func ask(ctx context.Context, from, to *PID, message any, timeout time.Duration) (any, error) {
	if to == nil {
		return nil, gerrors.ErrUndefinedActor
	}
	if message == nil {
		return nil, gerrors.ErrInvalidMessage
	}
	if timeout <= 0 {
		return nil, gerrors.ErrInvalidTimeout
	}
	if !to.IsRunning() {
		return nil, gerrors.ErrDead
	}

	received := newReceiveContext(ctx, from, to, message).withResponse()
	to.enqueue(received)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case resp := <-received.response:
		if failed, ok := resp.(*askFailure); ok {
			return nil, failed.err
		}
		return resp, nil
	case <-ctx.Done():
		return nil, errors.Join(gerrors.ErrRequestTimeout, ctx.Err())
	case <-timer.C:
		return nil, gerrors.ErrRequestTimeout
	}
}
