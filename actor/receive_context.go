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
	"sync/atomic"

	gerrors "github.com/meshakt/meshakt/errors"
	"github.com/meshakt/meshakt/future"
	"github.com/meshakt/meshakt/log"
)

// ReceiveContext carries a single message through an actor's Receive method.
//
// It is only valid for the duration of the Receive call that got it. Values
// that must outlive the call (sender, message) should be copied out.
type ReceiveContext struct {
	ctx            context.Context
	message        any
	sender         *PID
	self           *PID
	err            error
	response       chan any
	responseClosed atomic.Bool
}

func newReceiveContext(ctx context.Context, from, to *PID, message any) *ReceiveContext {
	return &ReceiveContext{
		ctx:     ctx,
		message: message,
		sender:  from,
		self:    to,
	}
}

// withResponse turns the context into an Ask request
func (rctx *ReceiveContext) withResponse() *ReceiveContext {
	rctx.response = make(chan any, 1)
	return rctx
}

// Self returns the receiver PID of the message
func (rctx *ReceiveContext) Self() *PID {
	return rctx.self
}

// Sender returns the sender PID of the message, nil when sent from outside an actor
func (rctx *ReceiveContext) Sender() *PID {
	return rctx.sender
}

// Message is the actual message sent
func (rctx *ReceiveContext) Message() any {
	return rctx.message
}

// Context returns the context attached to the message
func (rctx *ReceiveContext) Context() context.Context {
	return rctx.ctx
}

// Logger returns the receiver logger
func (rctx *ReceiveContext) Logger() log.Logger {
	return rctx.self.Logger()
}

// Err records an error raised while handling the message. Once Receive
// returns the actor is failed with a panic cause and its parent decides.
func (rctx *ReceiveContext) Err(err error) {
	rctx.err = err
}

// Response sets the reply of an Ask. Only the first reply counts and a
// reply to a plain Tell is dropped.
func (rctx *ReceiveContext) Response(resp any) {
	if rctx.response == nil || !rctx.responseClosed.CompareAndSwap(false, true) {
		return
	}
	select {
	case rctx.response <- resp:
	default:
	}
}

// ResponseError fails an Ask with the given error without failing the actor.
func (rctx *ReceiveContext) ResponseError(err error) {
	rctx.Response(&askFailure{err: err})
}

// Tell sends an asynchronous message to another actor, with the receiver as sender
func (rctx *ReceiveContext) Tell(to *PID, message any) {
	if err := rctx.self.Tell(context.WithoutCancel(rctx.ctx), to, message); err != nil {
		rctx.Err(err)
	}
}

// Spawn creates a child actor of the receiver.
// The child's failures are supervised by the receiver.
func (rctx *ReceiveContext) Spawn(name string, actor Actor, opts ...SpawnOption) *PID {
	cid, err := rctx.self.SpawnChild(context.WithoutCancel(rctx.ctx), name, actor, opts...)
	if err != nil {
		rctx.Err(err)
		return nil
	}
	return cid
}

// Stop stops the given child actor. The receiver stopping itself is queued
// behind the messages already in its mailbox.
func (rctx *ReceiveContext) Stop(child *PID) {
	if child.Equals(rctx.self) {
		rctx.self.enqueue(newReceiveContext(rctx.ctx, rctx.self, rctx.self, new(PoisonPill)))
		return
	}
	if err := child.Stop(context.WithoutCancel(rctx.ctx)); err != nil {
		rctx.Err(err)
	}
}

// Watch subscribes the receiver to the termination of the given actor.
// A Terminated message is delivered once it stops.
func (rctx *ReceiveContext) Watch(cid *PID) {
	rctx.self.Watch(cid)
}

// PipeTo runs task outside of the mailbox loop and delivers its result to the given actor.
// A failed task is logged and nothing is delivered.
func (rctx *ReceiveContext) PipeTo(to *PID, task func() (any, error)) {
	ctx := context.WithoutCancel(rctx.ctx)
	self := rctx.self
	fut := future.New(task)
	go func() {
		result, err := fut.Await(ctx)
		if err != nil {
			self.Logger().Warnf("PipeTo task failed: %v", err)
			return
		}
		if err := self.Tell(ctx, to, result); err != nil {
			self.Logger().Warnf("PipeTo delivery to %s failed: %v", to.Name(), err)
		}
	}()
}

// Unhandled marks the message as not handled by the actor
func (rctx *ReceiveContext) Unhandled() {
	rctx.self.Logger().Debugf("unhandled message %T", rctx.message)
	rctx.ResponseError(gerrors.ErrUnhandled)
}
