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
	"io"
	"time"

	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-msgio"

	"github.com/meshakt/meshakt/envelope"
	"github.com/meshakt/meshakt/eventstream"
)

const maxHelloSize = 4 << 10

// Hello is exchanged by both ends of a new connection
type Hello struct {
	ProtocolVersion string   `cbor:"1,keyasint"`
	Capabilities    []string `cbor:"2,keyasint,omitempty"`
}

func (n *Node) hello() Hello {
	return Hello{
		ProtocolVersion: n.config.ProtocolVersion,
		Capabilities:    []string{string(GatewayProtocol), string(LookupProtocol)},
	}
}

// greet runs the handshake as the initiator
func (n *Node) greet(p peer.ID) {
	if p == n.host.ID() || n.peers.alive(p) {
		return
	}
	if n.peers.incompatible(p) {
		_ = n.host.Network().ClosePeer(p)
		return
	}

	ctx, cancel := context.WithTimeout(n.ctx, n.helloTimeout)
	defer cancel()

	stream, err := n.host.NewStream(network.WithAllowLimitedConn(ctx, "meshakt-hello"), p, HelloProtocol)
	if err != nil {
		n.logger.Debugf("failed to open hello stream to peer=(%s): %v", p, err)
		return
	}
	_ = stream.SetDeadline(time.Now().Add(n.helloTimeout))

	if err := writeCBOR(stream, n.hello()); err != nil {
		_ = stream.Reset()
		n.logger.Debugf("failed to send hello to peer=(%s): %v", p, err)
		return
	}

	var remote Hello
	if err := readCBOR(stream, maxHelloSize, &remote); err != nil {
		_ = stream.Reset()
		n.logger.Debugf("failed to read hello of peer=(%s): %v", p, err)
		return
	}
	_ = stream.Close()

	if n.settle(p, remote) {
		return
	}
	_ = n.host.Network().ClosePeer(p)
}

// handleHello runs the handshake as the responder
func (n *Node) handleHello(stream network.Stream) {
	p := stream.Conn().RemotePeer()
	_ = stream.SetDeadline(time.Now().Add(n.helloTimeout))

	var remote Hello
	if err := readCBOR(stream, maxHelloSize, &remote); err != nil {
		_ = stream.Reset()
		n.logger.Debugf("failed to read hello of peer=(%s): %v", p, err)
		return
	}

	compatible := n.settle(p, remote)
	if err := writeCBOR(stream, n.hello()); err != nil {
		_ = stream.Reset()
		n.logger.Debugf("failed to answer hello of peer=(%s): %v", p, err)
		return
	}

	// the initiator closes its end once it has read the answer
	_, _ = io.Copy(io.Discard, stream)
	_ = stream.Close()

	if !compatible {
		_ = n.host.Network().ClosePeer(p)
	}
}

// handshaken waits for the hello of p to settle and reports whether p is compatible.
// Streams of other protocols must not be served before.
func (n *Node) handshaken(p peer.ID) bool {
	ctx, cancel := context.WithTimeout(n.ctx, n.helloTimeout)
	defer cancel()
	return n.peers.await(ctx, p)
}

// settle records the outcome of a handshake and reports whether p is compatible
func (n *Node) settle(p peer.ID, remote Hello) bool {
	if remote.ProtocolVersion != n.config.ProtocolVersion {
		if n.peers.reject(p, remote.ProtocolVersion) {
			n.monitor.Unwatch(p.String())
			n.logger.Warnf("peer=(%s) speaks protocol version=(%s), want=(%s)", p, remote.ProtocolVersion, n.config.ProtocolVersion)
			eventstream.Emit(n.bus, &PeerIncompatible{PeerID: p, ProtocolVersion: remote.ProtocolVersion})
		}
		return false
	}

	reachability := reachabilityOf(n.host.Network(), p)
	if n.peers.accept(p, reachability) {
		n.monitor.Unwatch(p.String())
		n.monitor.Watch(p.String())
		n.logger.Debugf("peer=(%s) connected (%s)", p, reachability)
		eventstream.Emit(n.bus, &PeerConnected{PeerID: p, Reachability: reachability})
	}
	return true
}

// writeCBOR writes v as a single varint-prefixed frame
func writeCBOR(w io.Writer, v any) error {
	data, err := envelope.Canonical(v)
	if err != nil {
		return err
	}
	return msgio.NewVarintWriter(w).WriteMsg(data)
}

// readCBOR reads a single varint-prefixed frame into v
func readCBOR(r io.Reader, maxSize int, v any) error {
	reader := msgio.NewVarintReaderSize(r, maxSize)
	data, err := reader.ReadMsg()
	if err != nil {
		return err
	}
	defer reader.ReleaseMsg(data)
	return envelope.Decode(data, v)
}

