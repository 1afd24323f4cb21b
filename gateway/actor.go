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
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/libp2p/go-libp2p/core/peer"

	"github.com/meshakt/meshakt/actor"
	"github.com/meshakt/meshakt/envelope"
	gerrors "github.com/meshakt/meshakt/errors"
	"github.com/meshakt/meshakt/eventstream"
	"github.com/meshakt/meshakt/future"
	"github.com/meshakt/meshakt/internal/metric"
)

type pendingTask struct {
	completer *future.Completer
	peer      peer.ID
	deadline  time.Time
}

// gatewayActor owns the pending tasks table and handles every inbound frame.
// Directory lookups, signing and sends run outside of its mailbox loop.
type gatewayActor struct {
	gateway *Gateway
	pending map[envelope.TaskID]*pendingTask
	state   State
}

var _ actor.Actor = (*gatewayActor)(nil)

func newGatewayActor(g *Gateway) *gatewayActor {
	return &gatewayActor{gateway: g}
}

func (x *gatewayActor) PreStart(context.Context) error {
	x.pending = make(map[envelope.TaskID]*pendingTask)
	x.gateway.pendingCount.Store(0)
	return nil
}

func (x *gatewayActor) Receive(ctx *actor.ReceiveContext) {
	switch msg := ctx.Message().(type) {
	case *inbound:
		x.handleInbound(ctx.Context(), msg)
	case *RegisterTask:
		ctx.Response(x.registerTask(msg))
	case *CancelTask:
		x.complete(msg.TaskID, nil, gerrors.ErrRequestTimeout)
	case *sweep:
		x.sweep(time.Now())
	case *registered:
		x.state = Registered
	case *GetState:
		ctx.Response(x.state)
	default:
		ctx.Unhandled()
	}
}

// PostStop fails the requests still waiting for a reply
func (x *gatewayActor) PostStop(context.Context) error {
	for id, task := range x.pending {
		task.completer.Failure(gerrors.ErrDead)
		delete(x.pending, id)
	}
	x.gateway.pendingCount.Store(0)
	return nil
}

func (x *gatewayActor) registerTask(msg *RegisterTask) future.Future {
	if task, ok := x.pending[msg.TaskID]; ok {
		return task.completer.Future()
	}

	completer := future.NewCompleter()
	x.pending[msg.TaskID] = &pendingTask{completer: completer, peer: msg.Peer, deadline: msg.Deadline}
	x.gateway.pendingCount.Store(int64(len(x.pending)))
	return completer.Future()
}

// complete resolves and removes a pending task. It reports false when the task is unknown.
func (x *gatewayActor) complete(id envelope.TaskID, value any, err error) bool {
	task, ok := x.pending[id]
	if !ok {
		return false
	}

	delete(x.pending, id)
	x.gateway.pendingCount.Store(int64(len(x.pending)))
	if err != nil {
		task.completer.Failure(err)
		return true
	}
	task.completer.Success(value)
	return true
}

func (x *gatewayActor) sweep(now time.Time) {
	for id, task := range x.pending {
		if !task.deadline.IsZero() && !now.Before(task.deadline) {
			x.complete(id, nil, gerrors.ErrRequestTimeout)
		}
	}
}

func (x *gatewayActor) handleInbound(ctx context.Context, msg *inbound) {
	g := x.gateway
	env, err := envelope.Unmarshal[Frame](msg.data)
	if err != nil {
		g.drop(ctx, metric.DropDecode, msg.from, err)
		return
	}

	if !env.Verify() {
		g.drop(ctx, metric.DropVerify, msg.from, gerrors.ErrAuthenticity)
		return
	}

	// the transport authenticates the connection: the signer must be the peer on the other end
	if env.SenderPeerID != msg.from.String() {
		g.drop(ctx, metric.DropSender, msg.from, fmt.Errorf("envelope signed by %s", env.SenderPeerID))
		return
	}

	frame, err := env.Unwrap()
	if err != nil {
		g.drop(ctx, metric.DropVerify, msg.from, err)
		return
	}

	switch frame.Kind {
	case FrameReply:
		x.handleReply(ctx, msg.from, env.CorrelationID, frame)
	case FrameEvent:
		x.handleEvent(ctx, msg.from, frame)
	case FrameTell:
		x.handleTell(ctx, msg.from, frame)
	case FrameRequest:
		if env.CorrelationID == nil {
			g.drop(ctx, metric.DropDecode, msg.from, errors.New("request without correlation id"))
			return
		}
		// replies only ever go back to the gateway of the requester
		if frame.ReplyTo != "" && frame.ReplyTo != Name(msg.from) {
			g.drop(ctx, metric.DropSender, msg.from, fmt.Errorf("request asks for a reply to %s", frame.ReplyTo))
			return
		}
		g.metric.FrameReceived(ctx, frame.Kind.String())
		go g.serveRequest(msg.from, *env.CorrelationID, frame)
	default:
		g.drop(ctx, metric.DropDecode, msg.from, fmt.Errorf("unknown frame kind %d", frame.Kind))
	}
}

func (x *gatewayActor) handleReply(ctx context.Context, from peer.ID, correlationID *envelope.TaskID, frame Frame) {
	g := x.gateway
	if correlationID == nil {
		g.drop(ctx, metric.DropDecode, from, errors.New("reply without correlation id"))
		return
	}

	task, ok := x.pending[*correlationID]
	if !ok {
		g.drop(ctx, metric.DropLate, from, fmt.Errorf("task=(%s) is not pending", *correlationID))
		return
	}
	if task.peer != from {
		g.drop(ctx, metric.DropSender, from, fmt.Errorf("task=(%s) was sent to peer=(%s)", *correlationID, task.peer))
		return
	}

	g.metric.FrameReceived(ctx, frame.Kind.String())
	if frame.Error != nil {
		x.complete(*correlationID, nil, frame.Error.HandlerError())
		return
	}

	reply, err := envelope.DecodePayload(frame.Type, frame.Payload)
	x.complete(*correlationID, reply, err)
}

func (x *gatewayActor) handleEvent(ctx context.Context, from peer.ID, frame Frame) {
	g := x.gateway
	event, err := envelope.DecodePayload(frame.Type, frame.Payload)
	if err != nil {
		g.drop(ctx, metric.DropPayload, from, err)
		return
	}
	g.metric.FrameReceived(ctx, frame.Kind.String())
	eventstream.Emit(g.bus, event)
}

func (x *gatewayActor) handleTell(ctx context.Context, from peer.ID, frame Frame) {
	g := x.gateway
	message, err := envelope.DecodePayload(frame.Type, frame.Payload)
	if err != nil {
		g.drop(ctx, metric.DropPayload, from, err)
		return
	}

	target, err := g.system.LocalActor(frame.Target)
	if err != nil {
		g.drop(ctx, metric.DropNoTarget, from, err)
		return
	}

	g.metric.FrameReceived(ctx, frame.Kind.String())
	if err := actor.Tell(ctx, target, message); err != nil {
		g.logger.Debugf("failed to deliver message from peer=(%s) to actor=(%s): %v", from, frame.Target, err)
	}
}
