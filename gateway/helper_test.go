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
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/stretchr/testify/require"

	"github.com/meshakt/meshakt/actor"
	"github.com/meshakt/meshakt/envelope"
	"github.com/meshakt/meshakt/identity"
	"github.com/meshakt/meshakt/log"
	"github.com/meshakt/meshakt/overlay/memnet"
)

type ping struct {
	Text string
}

type pong struct {
	Text string
}

type note struct {
	Body string
}

type stall struct{}

type refuse struct{}

func init() {
	envelope.RegisterTypes(new(ping), new(pong), new(note), new(stall), new(refuse))
}

// echo answers pings and refuses what it is told to refuse
type echo struct{}

func (echo) PreStart(context.Context) error { return nil }
func (echo) PostStop(context.Context) error { return nil }
func (echo) Receive(ctx *actor.ReceiveContext) {
	switch msg := ctx.Message().(type) {
	case *ping:
		ctx.Response(&pong{Text: "echo: " + msg.Text})
	case *refuse:
		ctx.ResponseError(errors.New("refused"))
	case *stall:
		// never replies
	default:
		ctx.Unhandled()
	}
}

// sink forwards everything it receives to a channel
type sink struct {
	received chan any
}

func newSink() *sink {
	return &sink{received: make(chan any, 64)}
}

func (s *sink) PreStart(context.Context) error { return nil }
func (s *sink) PostStop(context.Context) error { return nil }
func (s *sink) Receive(ctx *actor.ReceiveContext) {
	s.received <- ctx.Message()
}

type testPeer struct {
	identity *identity.Identity
	system   actor.ActorSystem
	endpoint *memnet.Endpoint
	gateway  *Gateway
}

func newIdentity(t *testing.T) *identity.Identity {
	t.Helper()
	id, err := identity.Generate()
	require.NoError(t, err)
	return id
}

func newActorSystem(t *testing.T) actor.ActorSystem {
	t.Helper()
	ctx := context.Background()
	system, err := actor.NewActorSystem("test", actor.WithLogger(log.DiscardLogger))
	require.NoError(t, err)
	require.NoError(t, system.Start(ctx))
	t.Cleanup(func() { _ = system.Stop(ctx) })
	return system
}

// newTestPeer starts a gateway attached to the network. wrap, when given, decorates its transport.
func newTestPeer(t *testing.T, network *memnet.Network, wrap func(Transport) Transport, opts ...Option) *testPeer {
	t.Helper()
	ctx := context.Background()
	id := newIdentity(t)
	system := newActorSystem(t)
	endpoint := network.Join(id.PeerID())

	var transport Transport = endpoint
	if wrap != nil {
		transport = wrap(endpoint)
	}

	opts = append([]Option{WithSweepInterval(20 * time.Millisecond)}, opts...)
	gw, err := New(system, id, transport, endpoint, opts...)
	require.NoError(t, err)
	require.NoError(t, gw.Start(ctx))
	t.Cleanup(func() { _ = gw.Stop(ctx) })

	require.Eventually(t, func() bool {
		state, err := gw.State(ctx)
		return err == nil && state == Registered
	}, time.Second, 10*time.Millisecond)

	return &testPeer{identity: id, system: system, endpoint: endpoint, gateway: gw}
}

// countingTransport counts the sends and tracks how many are in flight at once
type countingTransport struct {
	Transport
	delay       time.Duration
	sends       atomic.Int32
	inFlight    atomic.Int32
	maxInFlight atomic.Int32
}

func (c *countingTransport) Send(ctx context.Context, to peer.ID, data []byte) error {
	c.sends.Add(1)
	current := c.inFlight.Add(1)
	defer c.inFlight.Add(-1)
	for {
		observed := c.maxInFlight.Load()
		if current <= observed || c.maxInFlight.CompareAndSwap(observed, current) {
			break
		}
	}
	time.Sleep(c.delay)
	return c.Transport.Send(ctx, to, data)
}

// frameCounter counts the frames a bare endpoint receives
type frameCounter struct {
	mu     sync.Mutex
	frames int
}

func (f *frameCounter) receive(peer.ID, []byte) {
	f.mu.Lock()
	f.frames++
	f.mu.Unlock()
}

func (f *frameCounter) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.frames
}

// seal signs a frame with the given identity
func seal(t *testing.T, signer envelope.Signer, frame Frame, correlationID *envelope.TaskID) []byte {
	t.Helper()
	env, err := envelope.Wrap(signer, frame, correlationID)
	require.NoError(t, err)
	data, err := env.Marshal()
	require.NoError(t, err)
	return data
}

func mustFrame(t *testing.T, kind FrameKind, target string, msg any) Frame {
	t.Helper()
	frame, err := newFrame(kind, target, msg)
	require.NoError(t, err)
	return frame
}
