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
	"bytes"
	"context"
	"errors"
	"sync"
	"time"

	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/core/peerstore"
	"github.com/libp2p/go-msgio"

	gerrors "github.com/meshakt/meshakt/errors"
	"github.com/meshakt/meshakt/gateway"
)

const (
	// MaxFrameSize bounds a single gateway frame
	MaxFrameSize = 4 << 20

	frameReadTimeout = 30 * time.Second
)

// Transport carries one frame per stream over GatewayProtocol.
// Streams may run over relay-limited connections.
type Transport struct {
	node *Node

	mu       sync.RWMutex
	receiver func(from peer.ID, data []byte)
}

var _ gateway.Transport = (*Transport)(nil)

func newTransport(node *Node) *Transport {
	return &Transport{node: node}
}

// SetReceiver sets the handler of inbound frames. A nil receiver drops them.
func (t *Transport) SetReceiver(receiver func(from peer.ID, data []byte)) {
	t.mu.Lock()
	t.receiver = receiver
	t.mu.Unlock()
}

// Send writes data to the given peer on a fresh stream
func (t *Transport) Send(ctx context.Context, to peer.ID, data []byte) error {
	if len(data) > MaxFrameSize {
		return gerrors.NewTransportError("send", to.String(), msgio.ErrMsgTooLarge)
	}

	if to == t.node.host.ID() {
		t.deliver(to, bytes.Clone(data))
		return nil
	}

	t.findAddrs(ctx, to)

	stream, err := t.node.host.NewStream(network.WithAllowLimitedConn(ctx, "meshakt-gateway"), to, GatewayProtocol)
	if err != nil {
		return gerrors.NewTransportError("send", to.String(), errors.Join(gerrors.ErrUnreachablePeer, err))
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = stream.SetWriteDeadline(deadline)
	}

	if err := msgio.NewVarintWriter(stream).WriteMsg(data); err != nil {
		_ = stream.Reset()
		return gerrors.NewTransportError("send", to.String(), err)
	}
	return stream.Close()
}

// findAddrs asks the DHT for the addresses of a peer the node cannot dial yet
func (t *Transport) findAddrs(ctx context.Context, to peer.ID) {
	host := t.node.host
	if t.node.dht == nil ||
		host.Network().Connectedness(to) == network.Connected ||
		len(host.Peerstore().Addrs(to)) > 0 {
		return
	}

	info, err := t.node.dht.FindPeer(ctx, to)
	if err != nil {
		t.node.logger.Debugf("failed to find the addresses of peer=(%s): %v", to, err)
		return
	}
	host.Peerstore().AddAddrs(info.ID, info.Addrs, peerstore.TempAddrTTL)
}

func (t *Transport) handle(stream network.Stream) {
	from := stream.Conn().RemotePeer()
	if !t.node.handshaken(from) {
		_ = stream.Reset()
		t.node.logger.Debugf("refusing frame of peer=(%s) without a compatible hello", from)
		return
	}
	_ = stream.SetReadDeadline(time.Now().Add(frameReadTimeout))

	reader := msgio.NewVarintReaderSize(stream, MaxFrameSize)
	msg, err := reader.ReadMsg()
	if err != nil {
		_ = stream.Reset()
		t.node.logger.Debugf("failed to read frame from peer=(%s): %v", from, err)
		return
	}
	data := bytes.Clone(msg)
	reader.ReleaseMsg(msg)
	_ = stream.Close()

	t.deliver(from, data)
}

func (t *Transport) deliver(from peer.ID, data []byte) {
	t.mu.RLock()
	receiver := t.receiver
	t.mu.RUnlock()
	if receiver != nil {
		receiver(from, data)
	}
}
