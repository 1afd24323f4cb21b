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
	"sync/atomic"

	"github.com/libp2p/go-libp2p/core/peer"
	relayclient "github.com/libp2p/go-libp2p/p2p/protocol/circuitv2/client"
	"golang.org/x/sync/errgroup"

	gerrors "github.com/meshakt/meshakt/errors"
)

// bootstrap dials the bootstrap peers concurrently and returns how many answered
func (n *Node) bootstrap(ctx context.Context) int {
	infos, err := addrInfos(n.config.BootstrapPeers)
	if err != nil {
		n.logger.Warn(err)
		return 0
	}

	var connected atomic.Int64
	eg := new(errgroup.Group)
	eg.SetLimit(n.config.BootstrapConcurrency)
	for _, info := range infos {
		if info.ID == n.host.ID() {
			continue
		}
		eg.Go(func() error {
			if err := n.dial(ctx, info); err != nil {
				n.logger.Warn(gerrors.NewTransportError("bootstrap", info.ID.String(), err))
				return nil
			}
			connected.Add(1)
			return nil
		})
	}
	_ = eg.Wait()
	return int(connected.Load())
}

// reserveRelays asks every configured relay for a reservation
func (n *Node) reserveRelays(ctx context.Context) {
	infos, err := addrInfos(n.config.Relays)
	if err != nil {
		n.logger.Warn(err)
		return
	}

	for _, info := range infos {
		if info.ID == n.host.ID() {
			continue
		}
		if err := n.dial(ctx, info); err != nil {
			n.logger.Warn(gerrors.NewTransportError("relay", info.ID.String(), err))
			continue
		}

		reserveCtx, cancel := context.WithTimeout(ctx, dialTimeout)
		reservation, err := relayclient.Reserve(reserveCtx, n.host, info)
		cancel()
		if err != nil {
			n.logger.Warn(gerrors.NewTransportError("reserve", info.ID.String(), err))
			continue
		}
		n.logger.Infof("relay=(%s) reservation valid until %s", info.ID, reservation.Expiration)
	}
}

func (n *Node) dial(ctx context.Context, info peer.AddrInfo) error {
	ctx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()
	return n.host.Connect(ctx, info)
}

// mdnsNotifee connects to the peers found on the local network
type mdnsNotifee struct {
	node *Node
}

func (m *mdnsNotifee) HandlePeerFound(info peer.AddrInfo) {
	if info.ID == m.node.host.ID() {
		return
	}
	go func() {
		if err := m.node.dial(m.node.ctx, info); err != nil {
			m.node.logger.Debugf("failed to connect to mDNS peer=(%s): %v", info.ID, err)
		}
	}()
}
