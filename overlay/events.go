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
	"time"

	"github.com/libp2p/go-libp2p/core/peer"

	"github.com/meshakt/meshakt/heartbeat"
)

// PeerConnected is published when a peer completes the handshake
type PeerConnected struct {
	PeerID       peer.ID
	Reachability Reachability
}

// PeerStateChanged is published when the liveness of a peer changes.
// A peer reaching Dead has been disconnected.
type PeerStateChanged struct {
	PeerID   peer.ID
	From     heartbeat.Liveness
	To       heartbeat.Liveness
	LastSeen time.Time
}

// PeerIncompatible is published when a peer announces another protocol version
type PeerIncompatible struct {
	PeerID          peer.ID
	ProtocolVersion string
}
