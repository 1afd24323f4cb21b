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

package address

import (
	"context"
	"testing"
	"time"

	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meshakt/meshakt/actor"
	gerrors "github.com/meshakt/meshakt/errors"
	"github.com/meshakt/meshakt/identity"
	"github.com/meshakt/meshakt/log"
)

type greet struct{ Name string }

type greeting struct{ Text string }

type greeter struct{}

func (greeter) PreStart(context.Context) error { return nil }
func (greeter) PostStop(context.Context) error { return nil }
func (greeter) Receive(ctx *actor.ReceiveContext) {
	switch msg := ctx.Message().(type) {
	case *greet:
		ctx.Response(&greeting{Text: "hello " + msg.Name})
	case string:
		ctx.Response(msg)
	}
}

// fakeRemoting records what is sent and replies with a decoded-like pointer
type fakeRemoting struct {
	told  []RemoteKey
	reply any
	err   error
}

func (f *fakeRemoting) RemoteTell(_ context.Context, to RemoteKey, _ any) error {
	f.told = append(f.told, to)
	return f.err
}

func (f *fakeRemoting) RemoteAsk(context.Context, RemoteKey, any) (any, error) {
	return f.reply, f.err
}

func newPeerID(t *testing.T) peer.ID {
	t.Helper()
	id, err := identity.Generate()
	require.NoError(t, err)
	return id.PeerID()
}

func TestLocalAddress(t *testing.T) {
	ctx := context.Background()
	system, err := actor.NewActorSystem("test", actor.WithLogger(log.DiscardLogger))
	require.NoError(t, err)
	require.NoError(t, system.Start(ctx))
	t.Cleanup(func() { _ = system.Stop(ctx) })

	pid, err := system.Spawn(ctx, "greeter", new(greeter))
	require.NoError(t, err)

	addr := Local(pid)
	require.NoError(t, addr.Validate())
	assert.Equal(t, LocalKind, addr.Kind())
	assert.Equal(t, pid.ID(), addr.ID())
	assert.Equal(t, "greeter", addr.Name())
	assert.Equal(t, "meshakt://local/greeter", addr.String())
	assert.True(t, addr.Equals(Local(pid)))
	assert.Same(t, pid, addr.PID())

	t.Run("With Ask returning a pointer reply", func(t *testing.T) {
		reply, err := Ask[*greeting](ctx, addr, &greet{Name: "ada"})
		require.NoError(t, err)
		assert.Equal(t, "hello ada", reply.Text)
	})
	t.Run("With Ask dereferencing the reply", func(t *testing.T) {
		reply, err := Ask[greeting](ctx, addr, &greet{Name: "ada"})
		require.NoError(t, err)
		assert.Equal(t, "hello ada", reply.Text)
	})
	t.Run("With unexpected reply type", func(t *testing.T) {
		_, err := Ask[int](ctx, addr, "text")
		require.ErrorIs(t, err, gerrors.ErrInvalidMessage)
	})
	t.Run("With Tell", func(t *testing.T) {
		require.NoError(t, addr.Tell(ctx, "hi"))
	})
	t.Run("With stale address", func(t *testing.T) {
		stale, err := system.Spawn(ctx, "stale", new(greeter))
		require.NoError(t, err)
		require.NoError(t, stale.Stop(ctx))

		_, err = Ask[string](ctx, Local(stale), "hi")
		require.ErrorIs(t, err, gerrors.ErrDead)
	})
	t.Run("With context deadline", func(t *testing.T) {
		cctx, cancel := context.WithTimeout(ctx, time.Second)
		defer cancel()
		reply, err := Ask[string](cctx, addr, "hi")
		require.NoError(t, err)
		assert.Equal(t, "hi", reply)
	})
}

func TestRemoteAddress(t *testing.T) {
	ctx := context.Background()
	peerID := newPeerID(t)
	remoting := &fakeRemoting{reply: &greeting{Text: "hello"}}

	addr := Remote(peerID, "greeter", remoting)
	require.NoError(t, addr.Validate())
	assert.Equal(t, RemoteKind, addr.Kind())
	assert.Equal(t, peerID.String()+"/greeter", addr.ID())
	assert.Equal(t, "meshakt://"+peerID.String()+"/greeter", addr.String())
	assert.Nil(t, addr.PID())
	assert.Equal(t, RemoteKey{PeerID: peerID, Name: "greeter"}, addr.RemoteKey())

	t.Run("With Tell", func(t *testing.T) {
		require.NoError(t, addr.Tell(ctx, &greet{Name: "ada"}))
		require.Len(t, remoting.told, 1)
		assert.Equal(t, addr.RemoteKey(), remoting.told[0])
	})
	t.Run("With Ask", func(t *testing.T) {
		reply, err := Ask[greeting](ctx, addr, &greet{Name: "ada"})
		require.NoError(t, err)
		assert.Equal(t, "hello", reply.Text)
	})
	t.Run("With remote failure", func(t *testing.T) {
		failing := Remote(peerID, "greeter", &fakeRemoting{err: gerrors.NewHandlerError(gerrors.CodeHandlerFailed, "boom")})
		_, err := Ask[greeting](ctx, failing, &greet{Name: "ada"})
		var handlerErr *gerrors.HandlerError
		require.ErrorAs(t, err, &handlerErr)
		assert.Equal(t, "boom", handlerErr.Message)
	})
	t.Run("With parse", func(t *testing.T) {
		parsed, err := Parse(addr.String(), remoting)
		require.NoError(t, err)
		assert.True(t, parsed.Equals(addr))

		_, err = Parse("http://"+peerID.String()+"/greeter", remoting)
		require.Error(t, err)
		_, err = Parse("meshakt://"+peerID.String(), remoting)
		require.ErrorIs(t, err, gerrors.ErrNameRequired)
		_, err = Parse("meshakt://not-a-peer/greeter", remoting)
		require.Error(t, err)
	})
	t.Run("With equality by identifier", func(t *testing.T) {
		assert.True(t, addr.Equals(Remote(peerID, "greeter", nil)))
		assert.False(t, addr.Equals(Remote(peerID, "other", remoting)))
		assert.False(t, addr.Equals(Remote(newPeerID(t), "greeter", remoting)))
	})
}

func TestInvalidAddress(t *testing.T) {
	ctx := context.Background()
	var zero Address
	require.Error(t, zero.Validate())
	assert.Equal(t, InvalidKind, zero.Kind())
	assert.Empty(t, zero.String())
	assert.False(t, zero.Equals(Address{}))
	require.ErrorIs(t, zero.Tell(ctx, "hi"), gerrors.ErrUndefinedActor)

	_, err := Ask[string](ctx, zero, "hi")
	require.ErrorIs(t, err, gerrors.ErrUndefinedActor)

	noRemoting := Remote(newPeerID(t), "greeter", nil)
	require.Error(t, noRemoting.Validate())
	require.ErrorIs(t, noRemoting.Tell(ctx, "hi"), gerrors.ErrUnreachablePeer)
}
