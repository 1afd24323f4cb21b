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
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/libp2p/go-libp2p/core/host"
	mocknet "github.com/libp2p/go-libp2p/p2p/net/mock"
	ma "github.com/multiformats/go-multiaddr"
	"github.com/stretchr/testify/require"
	"github.com/travisjeffery/go-dynaport"

	"github.com/meshakt/meshakt/config"
	"github.com/meshakt/meshakt/eventstream"
	"github.com/meshakt/meshakt/identity"
	"github.com/meshakt/meshakt/log"
)

const (
	pingInterval = 50 * time.Millisecond
	suspectAfter = 300 * time.Millisecond
	deadAfter    = 600 * time.Millisecond
)

func newMocknet(t *testing.T) mocknet.Mocknet {
	t.Helper()
	mn := mocknet.New()
	t.Cleanup(func() { _ = mn.Close() })
	return mn
}

// newTestNode adds a started node to mn. The DHT is off so that names
// resolve through the connected peers.
func newTestNode(t *testing.T, mn mocknet.Mocknet, cfgOpts []config.Option, opts ...Option) *Node {
	t.Helper()

	id, err := identity.Generate()
	require.NoError(t, err)

	addr := ma.StringCast(fmt.Sprintf("/ip4/127.0.0.1/tcp/%d", dynaport.Get(1)[0]))
	h, err := mn.AddPeer(id.PrivateKey(), addr)
	require.NoError(t, err)

	base := []config.Option{
		config.WithListenAddrs(addr.String()),
		config.WithoutDHT(),
		config.WithLiveness(pingInterval, suspectAfter, deadAfter),
	}
	cfg, err := config.New(append(base, cfgOpts...)...)
	require.NoError(t, err)

	node, err := New(context.Background(), cfg, id, log.DiscardLogger,
		append([]Option{WithHost(h), WithRecordCacheTTL(0), WithLookupTimeout(time.Second)}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = node.Close() })
	return node
}

// newSilentHost adds a bare host to mn that never says hello
func newSilentHost(t *testing.T, mn mocknet.Mocknet) host.Host {
	t.Helper()

	id, err := identity.Generate()
	require.NoError(t, err)

	addr := ma.StringCast(fmt.Sprintf("/ip4/127.0.0.1/tcp/%d", dynaport.Get(1)[0]))
	h, err := mn.AddPeer(id.PrivateKey(), addr)
	require.NoError(t, err)
	return h
}

func start(t *testing.T, nodes ...*Node) {
	t.Helper()
	for _, node := range nodes {
		require.NoError(t, node.Start(context.Background()))
	}
}

func bootstrapAddr(node *Node) string {
	return node.Addrs()[0].String()
}

func findPeer(node *Node, other *Node) (PeerRecord, bool) {
	for _, record := range node.Peers() {
		if record.PeerID == other.PeerID() {
			return record, true
		}
	}
	return PeerRecord{}, false
}

// events collects the messages of type T published on a node event stream
type events[T any] struct {
	mu       sync.Mutex
	sub      eventstream.Subscriber
	received []T
}

func watchEvents[T any](t *testing.T, node *Node) *events[T] {
	t.Helper()
	sub := node.EventStream().AddSubscriber()
	eventstream.SubscribeTo[T](node.EventStream(), sub)
	return &events[T]{sub: sub}
}

func (e *events[T]) all() []T {
	e.mu.Lock()
	defer e.mu.Unlock()
	for message := range e.sub.Iterator() {
		if event, ok := message.Payload().(T); ok {
			e.received = append(e.received, event)
		}
	}
	return append([]T(nil), e.received...)
}
