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

package gateway

import (
	"context"

	"github.com/libp2p/go-libp2p/core/peer"
)

// namePrefix prefixes the directory name of every gateway
const namePrefix = "gateway-"

// Name returns the name the gateway of the given peer registers under
func Name(peerID peer.ID) string {
	return namePrefix + peerID.String()
}

// Transport moves opaque frames between peers
type Transport interface {
	// Send delivers data to the given peer
	Send(ctx context.Context, to peer.ID, data []byte) error
	// SetReceiver sets the handler of inbound frames. A nil receiver drops them.
	SetReceiver(receiver func(from peer.ID, data []byte))
}

// Directory maps names to the peer that registered them
type Directory interface {
	// Register publishes name as served by the local peer
	Register(ctx context.Context, name string) error
	// Deregister withdraws name
	Deregister(ctx context.Context, name string) error
	// Lookup returns the peer serving name
	Lookup(ctx context.Context, name string) (peer.ID, error)
}
