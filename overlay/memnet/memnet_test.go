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

package memnet

import (
	"context"
	"testing"

	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	gerrors "github.com/meshakt/meshakt/errors"
)

func TestNetwork(t *testing.T) {
	ctx := context.Background()
	network := New()
	a := network.Join(peer.ID("peer-a"))
	b := network.Join(peer.ID("peer-b"))
	assert.Same(t, a, network.Join(peer.ID("peer-a")))
	assert.Equal(t, peer.ID("peer-a"), a.PeerID())

	t.Run("With send", func(t *testing.T) {
		var (
			from peer.ID
			got  []byte
		)
		b.SetReceiver(func(f peer.ID, data []byte) {
			from, got = f, data
		})

		sent := []byte("frame")
		require.NoError(t, a.Send(ctx, b.PeerID(), sent))
		assert.Equal(t, a.PeerID(), from)
		assert.Equal(t, sent, got)

		// the receiver owns its copy
		sent[0] = 'F'
		assert.Equal(t, []byte("frame"), got)
	})
	t.Run("With unknown peer", func(t *testing.T) {
		err := a.Send(ctx, peer.ID("nobody"), []byte("frame"))
		require.ErrorIs(t, err, gerrors.ErrUnreachablePeer)
		var transportErr *gerrors.TransportError
		require.ErrorAs(t, err, &transportErr)
		assert.Equal(t, "send", transportErr.Op)
	})
	t.Run("With canceled context", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		require.ErrorIs(t, a.Send(cctx, b.PeerID(), []byte("frame")), context.Canceled)
	})
	t.Run("With directory", func(t *testing.T) {
		require.NoError(t, a.Register(ctx, "service"))
		owner, err := b.Lookup(ctx, "service")
		require.NoError(t, err)
		assert.Equal(t, a.PeerID(), owner)

		// only the owner can withdraw a name
		require.NoError(t, b.Deregister(ctx, "service"))
		_, err = b.Lookup(ctx, "service")
		require.NoError(t, err)

		require.NoError(t, a.Deregister(ctx, "service"))
		_, err = b.Lookup(ctx, "service")
		require.ErrorIs(t, err, gerrors.ErrNameNotFound)

		require.ErrorIs(t, a.Register(ctx, ""), gerrors.ErrNameRequired)
	})
	t.Run("With leave", func(t *testing.T) {
		network.Leave(b.PeerID())
		require.ErrorIs(t, a.Send(ctx, b.PeerID(), []byte("frame")), gerrors.ErrUnreachablePeer)
	})
}
