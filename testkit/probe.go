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

package testkit

import (
	"context"
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meshakt/meshakt/actor"
)

const (
	// MessagesQueueMax is the number of messages a probe buffers
	MessagesQueueMax = 1000
	// DefaultTimeout bounds every expectation without an explicit duration
	DefaultTimeout = 3 * time.Second
)

// Probe is an actor recording every message it receives so that tests can assert on them
type Probe interface {
	// ExpectMessage asserts that the next message equals message
	ExpectMessage(message any)
	// ExpectMessageWithin asserts that the next message equals message and arrives within duration
	ExpectMessageWithin(duration time.Duration, message any)
	// ExpectNoMessage asserts that nothing arrives for a short while
	ExpectNoMessage()
	// ExpectAnyMessage returns the next message
	ExpectAnyMessage() any
	// ExpectAnyMessageWithin returns the next message arriving within duration
	ExpectAnyMessageWithin(duration time.Duration) any
	// ExpectTerminated asserts that the next message reports the termination of the named actor
	ExpectTerminated(actorName string)
	// Send tells message to the named actor, the probe being the sender
	Send(actorName string, message any)
	// SendSync asks message to the named actor and records the reply as the next message
	SendSync(actorName string, message any, timeout time.Duration)
	// Sender returns the sender of the last received message
	Sender() *actor.PID
	// PID returns the probe actor
	PID() *actor.PID
	// Stop stops the probe actor
	Stop()
}

type message struct {
	sender  *actor.PID
	payload any
}

type probeActor struct {
	queue chan message
}

var _ actor.Actor = (*probeActor)(nil)

func (x *probeActor) PreStart(context.Context) error { return nil }
func (x *probeActor) PostStop(context.Context) error { return nil }

func (x *probeActor) Receive(ctx *actor.ReceiveContext) {
	x.queue <- message{sender: ctx.Sender(), payload: ctx.Message()}
}

type probe struct {
	pt  *testing.T
	ctx context.Context

	pid        *actor.PID
	queue      chan message
	lastSender *actor.PID
	timeout    time.Duration
}

var _ Probe = (*probe)(nil)

// NewProbe spawns a probe in system
func NewProbe(ctx context.Context, t *testing.T, system actor.ActorSystem) (Probe, error) {
	queue := make(chan message, MessagesQueueMax)
	pid, err := system.Spawn(ctx, "probe-"+uuid.NewString(), &probeActor{queue: queue})
	if err != nil {
		return nil, err
	}
	return &probe{
		pt:      t,
		ctx:     ctx,
		pid:     pid,
		queue:   queue,
		timeout: DefaultTimeout,
	}, nil
}

// ExpectMessageOfType returns the next message, failing the test unless it is a T
func ExpectMessageOfType[T any](t *testing.T, p Probe) T {
	t.Helper()
	received := p.ExpectAnyMessage()
	typed, ok := received.(T)
	if !ok {
		var zero T
		require.FailNowf(t, "unexpected message type", "want %s, got %T", reflect.TypeOf(&zero).Elem(), received)
	}
	return typed
}

func (x *probe) ExpectMessage(message any) {
	x.expectMessage(x.timeout, message)
}

func (x *probe) ExpectMessageWithin(duration time.Duration, message any) {
	x.expectMessage(duration, message)
}

func (x *probe) ExpectNoMessage() {
	select {
	case received := <-x.queue:
		x.pt.Fatalf("unexpected message %#v", received.payload)
	case <-time.After(100 * time.Millisecond):
	}
}

func (x *probe) ExpectAnyMessage() any {
	return x.expectAnyMessage(x.timeout)
}

func (x *probe) ExpectAnyMessageWithin(duration time.Duration) any {
	return x.expectAnyMessage(duration)
}

func (x *probe) ExpectTerminated(actorName string) {
	received := x.expectAnyMessage(x.timeout)
	terminated, ok := received.(*actor.Terminated)
	require.Truef(x.pt, ok, "want a termination, got %T", received)
	assert.Equal(x.pt, actorName, terminated.ActorName)
}

func (x *probe) Send(actorName string, message any) {
	to, err := x.pid.ActorSystem().LocalActor(actorName)
	require.NoError(x.pt, err)
	require.NoError(x.pt, x.pid.Tell(x.ctx, to, message))
}

func (x *probe) SendSync(actorName string, message any, timeout time.Duration) {
	to, err := x.pid.ActorSystem().LocalActor(actorName)
	require.NoError(x.pt, err)

	reply, err := x.pid.Ask(x.ctx, to, message, timeout)
	require.NoError(x.pt, err)
	x.queue <- newReply(to, reply)
}

func (x *probe) Sender() *actor.PID {
	return x.lastSender
}

func (x *probe) PID() *actor.PID {
	return x.pid
}

func (x *probe) Stop() {
	require.NoError(x.pt, x.pid.Stop(x.ctx))
}

func (x *probe) expectMessage(duration time.Duration, message any) {
	received := x.expectAnyMessage(duration)
	require.Equal(x.pt, message, received)
}

func (x *probe) expectAnyMessage(duration time.Duration) any {
	select {
	case received := <-x.queue:
		x.lastSender = received.sender
		return received.payload
	case <-time.After(duration):
		require.FailNow(x.pt, fmt.Sprintf("timeout (%v) while waiting for a message", duration))
		return nil
	}
}

func newReply(from *actor.PID, payload any) message {
	return message{sender: from, payload: payload}
}
