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

package overlay

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-msgio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/travisjeffery/go-dynaport"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/meshakt/meshakt/config"
	gerrors "github.com/meshakt/meshakt/errors"
	"github.com/meshakt/meshakt/heartbeat"
	"github.com/meshakt/meshakt/identity"
	"github.com/meshakt/meshakt/log"
)

func TestNew(t *testing.T) {
	ctx := context.Background()

	t.Run("With missing inputs", func(t *testing.T) {
		id, err := identity.Generate()
		require.NoError(t, err)

		node, err := New(ctx, nil, id, log.DiscardLogger)
		require.ErrorIs(t, err, gerrors.ErrInvalidConfig)
		assert.Nil(t, node)
	})
	t.Run("With a host of another identity", func(t *testing.T) {
		mn := newMocknet(t)
		other := newTestNode(t, mn, nil)

		id, err := identity.Generate()
		require.NoError(t, err)
		cfg, err := config.New(config.WithoutDHT())
		require.NoError(t, err)

		node, err := New(ctx, cfg, id, log.DiscardLogger, WithHost(other.Host()))
		require.ErrorIs(t, err, gerrors.ErrInvalidConfig)
		assert.Nil(t, node)
	})
	t.Run("With a libp2p host", func(t *testing.T) {
		id, err := identity.Generate()
		require.NoError(t, err)
		port := dynaport.Get(1)[0]
		cfg, err := config.New(config.WithListenAddrs(fmt.Sprintf("/ip4/127.0.0.1/tcp/%d", port)))
		require.NoError(t, err)

		node, err := New(ctx, cfg, id, log.DiscardLogger)
		require.NoError(t, err)
		require.NotNil(t, node.dht)
		require.NoError(t, node.Start(ctx))

		assert.Equal(t, id.PeerID(), node.PeerID())
		require.NotEmpty(t, node.Addrs())
		for _, addr := range node.Addrs() {
			assert.True(t, strings.HasSuffix(addr.String(), "/p2p/"+id.PeerID().String()))
		}

		// the DHT has no peer to store the name, it still resolves locally
		require.NoError(t, node.Directory().Register(ctx, "orders"))
		owner, err := node.Directory().Lookup(ctx, "orders")
		require.NoError(t, err)
		assert.Equal(t, id.PeerID(), owner)

		require.NoError(t, node.Close())
		require.NoError(t, node.Close())
		assert.ErrorIs(t, node.Start(ctx), gerrors.ErrDead)
	})
}

func TestHandshake(t *testing.T) {
	t.Run("With the same protocol version", func(t *testing.T) {
		mn := newMocknet(t)
		first := newTestNode(t, mn, nil)
		connected := watchEvents[*PeerConnected](t, first)

		second := newTestNode(t, mn, []config.Option{config.WithBootstrapPeers(bootstrapAddr(first))})
		require.NoError(t, mn.LinkAll())
		start(t, first, second)

		require.Eventually(t, func() bool {
			_, fromFirst := findPeer(first, second)
			_, fromSecond := findPeer(second, first)
			return fromFirst && fromSecond
		}, 5*time.Second, 20*time.Millisecond)

		record, _ := findPeer(first, second)
		assert.Equal(t, heartbeat.Alive, record.Liveness)
		assert.Equal(t, Direct, record.Reachability)
		assert.NotEmpty(t, record.Addrs)

		require.Eventually(t, func() bool { return len(connected.all()) > 0 }, time.Second, 10*time.Millisecond)
		assert.Equal(t, second.PeerID(), connected.all()[0].PeerID)
	})
	t.Run("With another protocol version", func(t *testing.T) {
		mn := newMocknet(t)
		first := newTestNode(t, mn, nil)
		rejectedByFirst := watchEvents[*PeerIncompatible](t, first)

		second := newTestNode(t, mn, []config.Option{
			config.WithBootstrapPeers(bootstrapAddr(first)),
			config.WithProtocolVersion("meshakt/2.0.0"),
		})
		rejectedBySecond := watchEvents[*PeerIncompatible](t, second)
		require.NoError(t, mn.LinkAll())
		start(t, first, second)

		require.Eventually(t, func() bool {
			return len(rejectedByFirst.all()) > 0 && len(rejectedBySecond.all()) > 0
		}, 5*time.Second, 20*time.Millisecond)

		event := rejectedByFirst.all()[0]
		assert.Equal(t, second.PeerID(), event.PeerID)
		assert.Equal(t, "meshakt/2.0.0", event.ProtocolVersion)
		assert.Equal(t, config.DefaultProtocolVersion, rejectedBySecond.all()[0].ProtocolVersion)

		require.Eventually(t, func() bool {
			return first.Host().Network().Connectedness(second.PeerID()) != network.Connected
		}, 5*time.Second, 20*time.Millisecond)
		assert.Empty(t, first.Peers())
		assert.Empty(t, second.Peers())
	})
}

func TestTransport(t *testing.T) {
	ctx := context.Background()
	mn := newMocknet(t)
	sender := newTestNode(t, mn, nil)
	receiver := newTestNode(t, mn, nil)
	start(t, sender, receiver)
	require.NoError(t, mn.LinkAll())
	require.NoError(t, mn.ConnectAllButSelf())

	type delivery struct {
		from peer.ID
		data []byte
	}
	received := make(chan delivery, 4)
	collect := func(from peer.ID, data []byte) { received <- delivery{from: from, data: data} }

	t.Run("Delivers a frame with its sender", func(t *testing.T) {
		receiver.Transport().SetReceiver(collect)
		t.Cleanup(func() { receiver.Transport().SetReceiver(nil) })

		require.NoError(t, sender.Transport().Send(ctx, receiver.PeerID(), []byte("frame")))
		select {
		case got := <-received:
			assert.Equal(t, sender.PeerID(), got.from)
			assert.Equal(t, []byte("frame"), got.data)
		case <-time.After(5 * time.Second):
			t.Fatal("frame not delivered")
		}
	})
	t.Run("Delivers a frame sent to itself", func(t *testing.T) {
		sender.Transport().SetReceiver(collect)
		t.Cleanup(func() { sender.Transport().SetReceiver(nil) })

		data := []byte("loopback")
		require.NoError(t, sender.Transport().Send(ctx, sender.PeerID(), data))
		got := <-received
		assert.Equal(t, sender.PeerID(), got.from)
		assert.Equal(t, data, got.data)
	})
	t.Run("With an unknown peer", func(t *testing.T) {
		stranger, err := identity.Generate()
		require.NoError(t, err)

		err = sender.Transport().Send(ctx, stranger.PeerID(), []byte("frame"))
		require.Error(t, err)
		assert.ErrorIs(t, err, gerrors.ErrUnreachablePeer)

		var transportErr *gerrors.TransportError
		require.True(t, errors.As(err, &transportErr))
		assert.Equal(t, "send", transportErr.Op)
		assert.Equal(t, stranger.PeerID().String(), transportErr.Peer)
	})
	t.Run("With an oversized frame", func(t *testing.T) {
		err := sender.Transport().Send(ctx, receiver.PeerID(), make([]byte, MaxFrameSize+1))
		require.Error(t, err)
	})
	t.Run("Without a receiver the frame is dropped", func(t *testing.T) {
		require.NoError(t, sender.Transport().Send(ctx, receiver.PeerID(), []byte("dropped")))
		select {
		case got := <-received:
			t.Fatalf("unexpected delivery of %q", got.data)
		case <-time.After(100 * time.Millisecond):
		}
	})
}

func TestWithoutHello(t *testing.T) {
	ctx := context.Background()
	mn := newMocknet(t)
	node := newTestNode(t, mn, nil, WithHelloTimeout(200*time.Millisecond))
	silent := newSilentHost(t, mn)
	start(t, node)
	require.NoError(t, mn.LinkAll())
	require.NoError(t, mn.ConnectAllButSelf())
	require.NoError(t, node.Directory().Register(ctx, "orders"))

	received := make(chan []byte, 1)
	node.Transport().SetReceiver(func(_ peer.ID, data []byte) { received <- data })
	t.Cleanup(func() { node.Transport().SetReceiver(nil) })

	t.Run("Frames are refused", func(t *testing.T) {
		stream, err := silent.NewStream(ctx, node.PeerID(), GatewayProtocol)
		require.NoError(t, err)
		_ = msgio.NewVarintWriter(stream).WriteMsg([]byte("frame"))
		_ = stream.Close()

		select {
		case got := <-received:
			t.Fatalf("unexpected delivery of %q", got)
		case <-time.After(time.Second):
		}
	})
	t.Run("Lookups are refused", func(t *testing.T) {
		stream, err := silent.NewStream(ctx, node.PeerID(), LookupProtocol)
		require.NoError(t, err)
		_ = stream.SetDeadline(time.Now().Add(2 * time.Second))
		_ = writeCBOR(stream, "orders")

		var value []byte
		require.Error(t, readCBOR(stream, maxRecordSize+1024, &value))
		assert.Empty(t, value)
		_ = stream.Reset()
	})

	assert.Empty(t, node.Peers())
}

func TestDirectory(t *testing.T) {
	ctx := context.Background()

	t.Run("Resolves names through the connected peers", func(t *testing.T) {
		mn := newMocknet(t)
		owner := newTestNode(t, mn, nil)
		asker := newTestNode(t, mn, nil)
		start(t, owner, asker)
		require.NoError(t, mn.LinkAll())
		require.NoError(t, mn.ConnectAllButSelf())

		require.NoError(t, owner.Directory().Register(ctx, "orders"))

		found, err := owner.Directory().Lookup(ctx, "orders")
		require.NoError(t, err)
		assert.Equal(t, owner.PeerID(), found)

		found, err = asker.Directory().Lookup(ctx, "orders")
		require.NoError(t, err)
		assert.Equal(t, owner.PeerID(), found)

		_, err = asker.Directory().Lookup(ctx, "billing")
		require.ErrorIs(t, err, gerrors.ErrNameNotFound)

		require.NoError(t, owner.Directory().Deregister(ctx, "orders"))
		_, err = owner.Directory().Lookup(ctx, "orders")
		require.ErrorIs(t, err, gerrors.ErrNameNotFound)
		_, err = asker.Directory().Lookup(ctx, "orders")
		require.ErrorIs(t, err, gerrors.ErrNameNotFound)

		// registering again supersedes the tombstone
		require.NoError(t, owner.Directory().Register(ctx, "orders"))
		found, err = asker.Directory().Lookup(ctx, "orders")
		require.NoError(t, err)
		assert.Equal(t, owner.PeerID(), found)
	})
	t.Run("Serves learned names from the cache", func(t *testing.T) {
		mn := newMocknet(t)
		owner := newTestNode(t, mn, nil)
		asker := newTestNode(t, mn, nil, WithRecordCacheTTL(time.Minute))
		start(t, owner, asker)
		require.NoError(t, mn.LinkAll())
		require.NoError(t, mn.ConnectAllButSelf())

		require.NoError(t, owner.Directory().Register(ctx, "orders"))
		found, err := asker.Directory().Lookup(ctx, "orders")
		require.NoError(t, err)
		assert.Equal(t, owner.PeerID(), found)

		// the withdrawal is not seen until the cached record expires
		require.NoError(t, owner.Directory().Deregister(ctx, "orders"))
		found, err = asker.Directory().Lookup(ctx, "orders")
		require.NoError(t, err)
		assert.Equal(t, owner.PeerID(), found)
	})
	t.Run("With invalid input", func(t *testing.T) {
		mn := newMocknet(t)
		node := newTestNode(t, mn, nil)

		require.ErrorIs(t, node.Directory().Register(ctx, " "), gerrors.ErrNameRequired)
		require.NoError(t, node.Directory().Deregister(ctx, "unknown"))

		_, err := node.Directory().Lookup(ctx, "unknown")
		require.ErrorIs(t, err, gerrors.ErrNameNotFound)
	})
}

func TestLiveness(t *testing.T) {
	mn := newMocknet(t)
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	watcher := newTestNode(t, mn, nil, WithMeterProvider(provider))
	watched := newTestNode(t, mn, nil)
	changes := watchEvents[*PeerStateChanged](t, watcher)
	start(t, watcher, watched)
	require.NoError(t, mn.LinkAll())
	require.NoError(t, mn.ConnectAllButSelf())

	require.Eventually(t, func() bool {
		record, ok := findPeer(watcher, watched)
		return ok && record.Liveness == heartbeat.Alive && record.RTT > 0 && !record.LastSeen.IsZero()
	}, 5*time.Second, 20*time.Millisecond)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	names := make(map[string]bool)
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			names[m.Name] = true
		}
	}
	assert.True(t, names["overlay_ping_rtt"])
	assert.True(t, names["overlay_connected_peers"])

	require.NoError(t, mn.UnlinkPeers(watcher.PeerID(), watched.PeerID()))
	require.NoError(t, mn.DisconnectPeers(watcher.PeerID(), watched.PeerID()))

	require.Eventually(t, func() bool {
		for _, change := range changes.all() {
			if change.PeerID == watched.PeerID() && change.To == heartbeat.Dead {
				return true
			}
		}
		return false
	}, 5*time.Second, 20*time.Millisecond)

	record, ok := findPeer(watcher, watched)
	require.True(t, ok)
	assert.Equal(t, heartbeat.Dead, record.Liveness)
	assert.Equal(t, network.NotConnected, watcher.Host().Network().Connectedness(watched.PeerID()))
}
