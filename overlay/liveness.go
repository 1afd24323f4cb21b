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
	"time"

	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	"golang.org/x/sync/errgroup"

	"github.com/meshakt/meshakt/eventstream"
	"github.com/meshakt/meshakt/heartbeat"
)

func (n *Node) pingLoop(ctx context.Context) {
	ticker := time.NewTicker(n.config.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n.pingAll(ctx)
		}
	}
}

// pingAll probes every watched peer, a bounded number at a time
func (n *Node) pingAll(ctx context.Context) {
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(n.config.BootstrapConcurrency)
	for _, p := range n.peers.watched() {
		eg.Go(func() error {
			n.probe(ctx, p)
			return nil
		})
	}
	_ = eg.Wait()
}

func (n *Node) probe(ctx context.Context, p peer.ID) {
	ctx, cancel := context.WithTimeout(ctx, n.config.PingInterval)
	defer cancel()

	results := n.ping.Ping(network.WithAllowLimitedConn(ctx, "meshakt-ping"), p)
	select {
	case <-ctx.Done():
		return
	case result, ok := <-results:
		if !ok {
			return
		}
		if result.Error != nil {
			n.logger.Debugf("ping to peer=(%s) failed: %v", p, result.Error)
			return
		}
		if !n.peers.alive(p) {
			return
		}
		n.monitor.Beat(p.String())
		n.peers.setRTT(p, result.RTT)
		n.metric.PingSucceeded(ctx, result.RTT.Milliseconds())
	}
}

// onTransition mirrors a heartbeat transition into the peer table and
// disconnects the peers declared dead
func (n *Node) onTransition(transition heartbeat.Transition) {
	p, err := peer.Decode(transition.Key)
	if err != nil {
		return
	}

	n.peers.setLiveness(p, transition.To)
	n.metric.LivenessChanged(context.Background(), transition.To.String())
	n.logger.Debugf("peer=(%s) is %s", p, transition.To)

	if transition.To == heartbeat.Dead {
		n.monitor.Unwatch(transition.Key)
		if err := n.host.Network().ClosePeer(p); err != nil {
			n.logger.Debugf("failed to disconnect dead peer=(%s): %v", p, err)
		}
		n.logger.Warnf("peer=(%s) is dead, last seen at %s", p, transition.LastSeen.Format(time.RFC3339))
	}

	eventstream.Emit(n.bus, &PeerStateChanged{
		PeerID:   p,
		From:     transition.From,
		To:       transition.To,
		LastSeen: transition.LastSeen,
	})
}
