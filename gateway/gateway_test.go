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
	"testing"
	"time"

	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meshakt/meshakt/actor"
	"github.com/meshakt/meshakt/address"
	"github.com/meshakt/meshakt/breaker"
	"github.com/meshakt/meshakt/envelope"
	gerrors "github.com/meshakt/meshakt/errors"
	"github.com/meshakt/meshakt/eventstream"
	"github.com/meshakt/meshakt/log"
	"github.com/meshakt/meshakt/overlay/memnet"
)

func TestName(t *testing.T) {
	id := newIdentity(t)
	assert.Equal(t, "gateway-"+id.PeerID().String(), Name(id.PeerID()))
}

func TestNew(t *testing.T) {
	system := newActorSystem(t)
	id := newIdentity(t)
	endpoint := memnet.New().Join(id.PeerID())

	_, err := New(nil, id, endpoint, endpoint)
	require.ErrorIs(t, err, gerrors.ErrInvalidConfig)

	_, err = New(system, id, endpoint, endpoint, WithBroadcastConcurrency(0))
	require.ErrorIs(t, err, gerrors.ErrInvalidConfig)

	_, err = New(system, id, endpoint, endpoint, WithPendingTaskTTL(-time.Second))
	require.ErrorIs(t, err, gerrors.ErrInvalidConfig)

	gw, err := New(system, id, endpoint, endpoint, WithLogger(log.DiscardLogger))
	require.NoError(t, err)
	assert.Equal(t, Name(id.PeerID()), gw.Name())
	assert.Equal(t, id.PeerID(), gw.PeerID())
	assert.Nil(t, gw.PID())

	state, err := gw.State(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Idle, state)

	_, err = gw.RemoteAsk(context.Background(), address.RemoteKey{}, &ping{})
	require.ErrorIs(t, err, gerrors.ErrGatewayNotRegistered)
}

func TestRemoteMessaging(t *testing.T) {
	ctx := context.Background()
	network := memnet.New()
	alice := newTestPeer(t, network, nil)
	bob := newTestPeer(t, network, nil)

	_, err := bob.system.Spawn(ctx, "echo", new(echo))
	require.NoError(t, err)
	bobSink := newSink()
	_, err = bob.system.Spawn(ctx, "sink", bobSink)
	require.NoError(t, err)

	echoAddr := address.Remote(bob.identity.PeerID(), "echo", alice.gateway)

	t.Run("With ask round trip", func(t *testing.T) {
		reply, err := address.Ask[pong](ctx, echoAddr, &ping{Text: "hi"})
		require.NoError(t, err)
		assert.Equal(t, "echo: hi", reply.Text)
		assert.Zero(t, alice.gateway.Pending())
	})
	t.Run("With ask from both sides", func(t *testing.T) {
		_, err := alice.system.Spawn(ctx, "echo", new(echo))
		require.NoError(t, err)

		reply, err := address.Ask[*pong](ctx, address.Remote(alice.identity.PeerID(), "echo", bob.gateway), &ping{Text: "back"})
		require.NoError(t, err)
		assert.Equal(t, "echo: back", reply.Text)
	})
	t.Run("With tell", func(t *testing.T) {
		sinkAddr := address.Remote(bob.identity.PeerID(), "sink", alice.gateway)
		require.NoError(t, sinkAddr.Tell(ctx, &note{Body: "first"}))
		require.NoError(t, sinkAddr.Tell(ctx, &note{Body: "second"}))

		for _, expected := range []string{"first", "second"} {
			select {
			case msg := <-bobSink.received:
				received, ok := msg.(*note)
				require.True(t, ok)
				assert.Equal(t, expected, received.Body)
			case <-time.After(time.Second):
				t.Fatal("message not delivered")
			}
		}
	})
	t.Run("With handler error", func(t *testing.T) {
		_, err := address.Ask[pong](ctx, echoAddr, &refuse{})
		var handlerErr *gerrors.HandlerError
		require.ErrorAs(t, err, &handlerErr)
		assert.Equal(t, gerrors.CodeHandlerFailed, handlerErr.Code)
		assert.Equal(t, "refused", handlerErr.Message)
	})
	t.Run("With unknown target", func(t *testing.T) {
		_, err := address.Ask[pong](ctx, address.Remote(bob.identity.PeerID(), "nobody", alice.gateway), &ping{})
		var handlerErr *gerrors.HandlerError
		require.ErrorAs(t, err, &handlerErr)
		assert.Equal(t, gerrors.CodeActorNotFound, handlerErr.Code)
	})
	t.Run("With unregistered message type", func(t *testing.T) {
		type secret struct{ Value string }
		_, err := address.Ask[pong](ctx, echoAddr, &secret{Value: "x"})
		require.ErrorIs(t, err, gerrors.ErrTypeNotRegistered)
	})
	t.Run("With context deadline", func(t *testing.T) {
		cctx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
		defer cancel()
		_, err := address.Ask[pong](cctx, echoAddr, &stall{})
		require.ErrorIs(t, err, gerrors.ErrRequestTimeout)
		require.Eventually(t, func() bool { return alice.gateway.Pending() == 0 }, time.Second, 10*time.Millisecond)
	})
	t.Run("With unreachable peer", func(t *testing.T) {
		stranger := newIdentity(t).PeerID()
		_, err := address.Ask[pong](ctx, address.Remote(stranger, "echo", alice.gateway), &ping{})
		require.ErrorIs(t, err, gerrors.ErrUnreachablePeer)

		// tells to an unknown gateway are dropped
		require.NoError(t, address.Remote(stranger, "echo", alice.gateway).Tell(ctx, &note{}))
	})
	t.Run("With advertise and resolve", func(t *testing.T) {
		require.NoError(t, bob.gateway.Advertise(ctx, "sink"))
		require.ErrorIs(t, bob.gateway.Advertise(ctx, "unknown"), gerrors.ErrActorNotFound)

		remote, err := alice.gateway.Resolve(ctx, "sink")
		require.NoError(t, err)
		assert.Equal(t, address.RemoteKind, remote.Kind())
		assert.Equal(t, bob.identity.PeerID(), remote.RemoteKey().PeerID)

		local, err := bob.gateway.Resolve(ctx, "sink")
		require.NoError(t, err)
		assert.Equal(t, address.LocalKind, local.Kind())

		_, err = alice.gateway.Resolve(ctx, "unknown")
		require.ErrorIs(t, err, gerrors.ErrNameNotFound)
	})
}

func TestPendingTaskTTL(t *testing.T) {
	ctx := context.Background()
	network := memnet.New()
	alice := newTestPeer(t, network, nil, WithPendingTaskTTL(100*time.Millisecond))
	bob := newTestPeer(t, network, nil)
	_, err := bob.system.Spawn(ctx, "echo", new(echo))
	require.NoError(t, err)

	start := time.Now()
	_, err = address.Ask[pong](ctx, address.Remote(bob.identity.PeerID(), "echo", alice.gateway), &stall{})
	require.ErrorIs(t, err, gerrors.ErrRequestTimeout)
	assert.Less(t, time.Since(start), time.Second)
	assert.Zero(t, alice.gateway.Pending())
}

func TestReplyResolvedAtMostOnce(t *testing.T) {
	ctx := context.Background()
	network := memnet.New()
	alice := newTestPeer(t, network, nil)

	bob := newIdentity(t)
	bobEndpoint := network.Join(bob.PeerID())

	id := envelope.NewTaskID()
	fut, err := alice.gateway.RegisterTask(ctx, id, bob.PeerID(), time.Now().Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, alice.gateway.Pending())

	// a reply signed by another peer than the one asked is dropped
	mallory := newIdentity(t)
	malloryEndpoint := network.Join(mallory.PeerID())
	forged := seal(t, mallory, mustFrame(t, FrameReply, "", &pong{Text: "forged"}), &id)
	require.NoError(t, malloryEndpoint.Send(ctx, alice.identity.PeerID(), forged))

	first := seal(t, bob, mustFrame(t, FrameReply, "", &pong{Text: "first"}), &id)
	second := seal(t, bob, mustFrame(t, FrameReply, "", &pong{Text: "second"}), &id)
	require.NoError(t, bobEndpoint.Send(ctx, alice.identity.PeerID(), first))
	require.NoError(t, bobEndpoint.Send(ctx, alice.identity.PeerID(), second))

	reply, err := fut.Await(ctx)
	require.NoError(t, err)
	assert.Equal(t, "first", reply.(*pong).Text)
	require.Eventually(t, func() bool { return alice.gateway.Pending() == 0 }, time.Second, 10*time.Millisecond)

	// a reply to a task that was never registered is dropped as well
	unknown := envelope.NewTaskID()
	require.NoError(t, bobEndpoint.Send(ctx, alice.identity.PeerID(), seal(t, bob, mustFrame(t, FrameReply, "", &pong{}), &unknown)))

	// cancellation resolves the task once
	cancelled := envelope.NewTaskID()
	fut, err = alice.gateway.RegisterTask(ctx, cancelled, bob.PeerID(), time.Now().Add(time.Minute))
	require.NoError(t, err)
	require.NoError(t, alice.gateway.CancelTask(ctx, cancelled))
	_, err = fut.Await(ctx)
	require.ErrorIs(t, err, gerrors.ErrRequestTimeout)

	require.NoError(t, bobEndpoint.Send(ctx, alice.identity.PeerID(), seal(t, bob, mustFrame(t, FrameReply, "", &pong{}), &cancelled)))
	assert.Zero(t, alice.gateway.Pending())
}

func TestReplyRoutedToRequester(t *testing.T) {
	ctx := context.Background()
	network := memnet.New()
	alice := newTestPeer(t, network, nil)
	_, err := alice.system.Spawn(ctx, "echo", new(echo))
	require.NoError(t, err)

	mallory := newIdentity(t)
	malloryEndpoint := network.Join(mallory.PeerID())
	malloryFrames := new(frameCounter)
	malloryEndpoint.SetReceiver(malloryFrames.receive)
	require.NoError(t, malloryEndpoint.Register(ctx, Name(mallory.PeerID())))

	carol := newIdentity(t)
	carolEndpoint := network.Join(carol.PeerID())
	carolFrames := new(frameCounter)
	carolEndpoint.SetReceiver(carolFrames.receive)
	require.NoError(t, carolEndpoint.Register(ctx, Name(carol.PeerID())))

	to := alice.identity.PeerID()

	// a request asking alice to answer carol
	redirected := mustFrame(t, FrameRequest, "echo", &ping{Text: "redirected"})
	redirected.ReplyTo = Name(carol.PeerID())
	redirectedID := envelope.NewTaskID()
	require.NoError(t, malloryEndpoint.Send(ctx, to, seal(t, mallory, redirected, &redirectedID)))

	request := mustFrame(t, FrameRequest, "echo", &ping{Text: "mine"})
	request.ReplyTo = Name(mallory.PeerID())
	requestID := envelope.NewTaskID()
	require.NoError(t, malloryEndpoint.Send(ctx, to, seal(t, mallory, request, &requestID)))

	require.Eventually(t, func() bool { return malloryFrames.count() == 1 }, time.Second, 10*time.Millisecond)
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 1, malloryFrames.count())
	assert.Zero(t, carolFrames.count())
}

func TestCircuitBreaker(t *testing.T) {
	ctx := context.Background()
	network := memnet.New()

	var counting *countingTransport
	alice := newTestPeer(t, network, func(transport Transport) Transport {
		counting = &countingTransport{Transport: transport}
		return counting
	}, WithCircuitBreaker(breaker.WithFailureThreshold(2), breaker.WithOpenTimeout(time.Minute)))

	bob := newTestPeer(t, network, nil)
	_, err := bob.system.Spawn(ctx, "echo", new(echo))
	require.NoError(t, err)
	carol := newTestPeer(t, network, nil)
	_, err = carol.system.Spawn(ctx, "echo", new(echo))
	require.NoError(t, err)

	bobID := bob.identity.PeerID()
	bobEcho := address.Remote(bobID, "echo", alice.gateway)
	reply, err := address.Ask[*pong](ctx, bobEcho, &ping{Text: "up"})
	require.NoError(t, err)
	assert.Equal(t, "echo: up", reply.Text)

	// bob's gateway name stays registered after it left
	network.Leave(bobID)

	for range 2 {
		_, err := address.Ask[*pong](ctx, bobEcho, &ping{})
		require.ErrorIs(t, err, gerrors.ErrUnreachablePeer)
		require.NotErrorIs(t, err, breaker.ErrOpen)
	}

	sends := counting.sends.Load()
	_, err = address.Ask[*pong](ctx, bobEcho, &ping{})
	require.ErrorIs(t, err, gerrors.ErrUnreachablePeer)
	require.ErrorIs(t, err, breaker.ErrOpen)
	require.ErrorIs(t, err, &breaker.Error{Type: breaker.ErrorTypeOpen, Name: bobID.String()})
	assert.Equal(t, sends, counting.sends.Load())
	require.Eventually(t, func() bool { return alice.gateway.Pending() == 0 }, time.Second, 10*time.Millisecond)

	// tells are dropped while the breaker is open
	require.NoError(t, bobEcho.Tell(ctx, &note{}))
	assert.Equal(t, sends, counting.sends.Load())

	// other peers keep their own breaker
	reply, err = address.Ask[*pong](ctx, address.Remote(carol.identity.PeerID(), "echo", alice.gateway), &ping{Text: "still up"})
	require.NoError(t, err)
	assert.Equal(t, "echo: still up", reply.Text)
}

func TestInboundAuthenticity(t *testing.T) {
	ctx := context.Background()
	network := memnet.New()
	alice := newTestPeer(t, network, nil)
	aliceSink := newSink()
	_, err := alice.system.Spawn(ctx, "sink", aliceSink)
	require.NoError(t, err)

	mallory := newIdentity(t)
	malloryEndpoint := network.Join(mallory.PeerID())
	carol := newIdentity(t)
	carolEndpoint := network.Join(carol.PeerID())

	to := alice.identity.PeerID()

	// tampered signature
	env, err := envelope.Wrap(mallory, mustFrame(t, FrameTell, "sink", &note{Body: "tampered"}), nil)
	require.NoError(t, err)
	env.Signature[0] ^= 0xff
	tampered, err := env.Marshal()
	require.NoError(t, err)
	require.NoError(t, malloryEndpoint.Send(ctx, to, tampered))

	// validly signed by mallory but sent from carol's connection
	relayed := seal(t, mallory, mustFrame(t, FrameTell, "sink", &note{Body: "relayed"}), nil)
	require.NoError(t, carolEndpoint.Send(ctx, to, relayed))

	// garbage
	require.NoError(t, malloryEndpoint.Send(ctx, to, []byte("not an envelope")))

	// a genuine frame goes through
	genuine := seal(t, mallory, mustFrame(t, FrameTell, "sink", &note{Body: "genuine"}), nil)
	require.NoError(t, malloryEndpoint.Send(ctx, to, genuine))

	select {
	case msg := <-aliceSink.received:
		assert.Equal(t, "genuine", msg.(*note).Body)
	case <-time.After(time.Second):
		t.Fatal("genuine message not delivered")
	}

	select {
	case msg := <-aliceSink.received:
		t.Fatalf("unexpected message %v", msg)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestBroadcast(t *testing.T) {
	ctx := context.Background()
	network := memnet.New()

	var counting *countingTransport
	alice := newTestPeer(t, network, func(transport Transport) Transport {
		counting = &countingTransport{Transport: transport, delay: 50 * time.Millisecond}
		return counting
	})

	const targetsCount = 20
	counters := make([]*frameCounter, 0, targetsCount)
	targets := make([]peer.ID, 0, targetsCount+1)
	for range targetsCount {
		id := newIdentity(t)
		counter := new(frameCounter)
		network.Join(id.PeerID()).SetReceiver(counter.receive)
		counters = append(counters, counter)
		targets = append(targets, id.PeerID())
	}
	// a target that is not on the network
	targets = append(targets, newIdentity(t).PeerID())

	start := time.Now()
	fut, err := alice.gateway.Broadcast(ctx, targets, &note{Body: "to all"})
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 50*time.Millisecond)

	failed, err := fut.Await(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, failed)

	assert.LessOrEqual(t, counting.maxInFlight.Load(), int32(DefaultBroadcastConcurrency))
	assert.Greater(t, counting.maxInFlight.Load(), int32(1))
	for _, counter := range counters {
		assert.Equal(t, 1, counter.count())
	}
}

func TestEventRepublished(t *testing.T) {
	ctx := context.Background()
	network := memnet.New()
	alice := newTestPeer(t, network, nil)
	bob := newTestPeer(t, network, nil)

	bobSink := newSink()
	pid, err := bob.system.Spawn(ctx, "listener", bobSink)
	require.NoError(t, err)
	actor.SubscribeActor[note](bob.system.EventStream(), pid)
	assert.Equal(t, 1, eventstream.CountSubscribers[note](bob.system.EventStream()))

	fut, err := alice.gateway.Broadcast(ctx, []peer.ID{bob.identity.PeerID()}, &note{Body: "event"})
	require.NoError(t, err)
	failed, err := fut.Await(ctx)
	require.NoError(t, err)
	assert.Zero(t, failed)

	select {
	case msg := <-bobSink.received:
		assert.Equal(t, "event", msg.(*note).Body)
	case <-time.After(time.Second):
		t.Fatal("event not republished")
	}
}

func TestStop(t *testing.T) {
	ctx := context.Background()
	network := memnet.New()
	alice := newTestPeer(t, network, nil)

	_, err := alice.endpoint.Lookup(ctx, alice.gateway.Name())
	require.NoError(t, err)

	fut, err := alice.gateway.RegisterTask(ctx, envelope.NewTaskID(), newIdentity(t).PeerID(), time.Now().Add(time.Minute))
	require.NoError(t, err)

	require.NoError(t, alice.gateway.Stop(ctx))
	require.NoError(t, alice.gateway.Stop(ctx))

	_, err = fut.Await(ctx)
	require.ErrorIs(t, err, gerrors.ErrDead)

	_, err = alice.endpoint.Lookup(ctx, alice.gateway.Name())
	require.ErrorIs(t, err, gerrors.ErrNameNotFound)
	_, err = alice.system.LocalActor(alice.gateway.Name())
	require.ErrorIs(t, err, gerrors.ErrActorNotFound)
}
