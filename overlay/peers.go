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
	"sort"
	"sync"
	"time"

	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	ma "github.com/multiformats/go-multiaddr"
	"go.uber.org/atomic"

	"github.com/meshakt/meshakt/heartbeat"
)

// Reachability tells how a peer is connected
type Reachability int

const (
	// Direct means at least one connection does not go through a relay
	Direct Reachability = iota
	// Relayed means every connection goes through a circuit relay
	Relayed
)

// String returns the name of the reachability
func (r Reachability) String() string {
	switch r {
	case Direct:
		return "direct"
	case Relayed:
		return "relayed"
	default:
		return "unknown"
	}
}

// PeerRecord is a snapshot of what the overlay knows about a peer
type PeerRecord struct {
	PeerID       peer.ID
	Addrs        []string
	Reachability Reachability
	Liveness     heartbeat.Liveness
	LastSeen     time.Time
	RTT          time.Duration
}

type peerState struct {
	reachability Reachability
	liveness     heartbeat.Liveness
	incompatible bool
	version      string
	rtt          *atomic.Duration
}

// peerTable tracks the peers that completed the handshake, compatible or not
type peerTable struct {
	mu    sync.RWMutex
	peers map[peer.ID]*peerState
	// closed when the handshake of the peer settles
	waiters map[peer.ID]chan struct{}
}

func newPeerTable() *peerTable {
	return &peerTable{
		peers:   make(map[peer.ID]*peerState),
		waiters: make(map[peer.ID]chan struct{}),
	}
}

// accept records p as compatible and alive.
// It returns false when p was already known alive.
func (t *peerTable) accept(p peer.ID, reachability Reachability) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	state, ok := t.peers[p]
	if ok && !state.incompatible && state.liveness != heartbeat.Dead {
		state.reachability = reachability
		return false
	}
	if !ok {
		state = &peerState{rtt: atomic.NewDuration(0)}
		t.peers[p] = state
	}
	state.incompatible = false
	state.liveness = heartbeat.Alive
	state.reachability = reachability
	t.release(p)
	return true
}

// reject records p as incompatible. It returns false when p was already rejected.
func (t *peerTable) reject(p peer.ID, version string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	state, ok := t.peers[p]
	if ok && state.incompatible {
		return false
	}
	if !ok {
		state = &peerState{rtt: atomic.NewDuration(0)}
		t.peers[p] = state
	}
	state.incompatible = true
	state.version = version
	state.liveness = heartbeat.Dead
	t.release(p)
	return true
}

// await blocks until p is alive or rejected, and reports whether it is alive.
// A dead peer waits for its next handshake.
func (t *peerTable) await(ctx context.Context, p peer.ID) bool {
	t.mu.Lock()
	state, ok := t.peers[p]
	switch {
	case ok && state.incompatible:
		t.mu.Unlock()
		return false
	case ok && state.liveness != heartbeat.Dead:
		t.mu.Unlock()
		return true
	}
	waiter, ok := t.waiters[p]
	if !ok {
		waiter = make(chan struct{})
		t.waiters[p] = waiter
	}
	t.mu.Unlock()

	select {
	case <-waiter:
		return t.alive(p)
	case <-ctx.Done():
		return false
	}
}

// release wakes the waiters of p. The caller holds the lock.
func (t *peerTable) release(p peer.ID) {
	if waiter, ok := t.waiters[p]; ok {
		close(waiter)
		delete(t.waiters, p)
	}
}

func (t *peerTable) incompatible(p peer.ID) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	state, ok := t.peers[p]
	return ok && state.incompatible
}

func (t *peerTable) alive(p peer.ID) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	state, ok := t.peers[p]
	return ok && !state.incompatible && state.liveness != heartbeat.Dead
}

func (t *peerTable) setLiveness(p peer.ID, liveness heartbeat.Liveness) {
	t.mu.Lock()
	if state, ok := t.peers[p]; ok && !state.incompatible {
		state.liveness = liveness
	}
	t.mu.Unlock()
}

func (t *peerTable) setRTT(p peer.ID, rtt time.Duration) {
	t.mu.RLock()
	if state, ok := t.peers[p]; ok {
		state.rtt.Store(rtt)
	}
	t.mu.RUnlock()
}

// watched returns the compatible peers that are not dead
func (t *peerTable) watched() []peer.ID {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]peer.ID, 0, len(t.peers))
	for p, state := range t.peers {
		if !state.incompatible && state.liveness != heartbeat.Dead {
			out = append(out, p)
		}
	}
	return out
}

// records returns a snapshot of the compatible peers, ordered by peer id
func (t *peerTable) records(monitor *heartbeat.Monitor, net network.Network) []PeerRecord {
	t.mu.RLock()
	out := make([]PeerRecord, 0, len(t.peers))
	for p, state := range t.peers {
		if state.incompatible {
			continue
		}
		out = append(out, PeerRecord{
			PeerID:       p,
			Reachability: state.reachability,
			Liveness:     state.liveness,
			RTT:          state.rtt.Load(),
		})
	}
	t.mu.RUnlock()

	for i := range out {
		out[i].LastSeen, _ = monitor.LastSeen(out[i].PeerID.String())
		for _, addr := range net.Peerstore().Addrs(out[i].PeerID) {
			out[i].Addrs = append(out[i].Addrs, addr.String())
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].PeerID < out[j].PeerID })
	return out
}

// reachabilityOf reports Relayed when every open connection to p is a circuit
func reachabilityOf(net network.Network, p peer.ID) Reachability {
	conns := net.ConnsToPeer(p)
	if len(conns) == 0 {
		return Direct
	}
	for _, conn := range conns {
		if !isRelayed(conn.RemoteMultiaddr()) {
			return Direct
		}
	}
	return Relayed
}

func isRelayed(addr ma.Multiaddr) bool {
	_, err := addr.ValueForProtocol(ma.P_CIRCUIT)
	return err == nil
}
