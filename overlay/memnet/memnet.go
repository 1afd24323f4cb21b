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

// Package memnet is an in-process network of peers. Each Endpoint is both
// a transport and a view on a directory shared by the whole network.
package memnet

import (
	"bytes"
	"context"
	"sync"

	"github.com/libp2p/go-libp2p/core/peer"

	gerrors "github.com/meshakt/meshakt/errors"
)

// Network connects the endpoints that joined it
type Network struct {
	mu        sync.RWMutex
	endpoints map[peer.ID]*Endpoint
	names     map[string]peer.ID
}

// New creates an empty Network
func New() *Network {
	return &Network{
		endpoints: make(map[peer.ID]*Endpoint),
		names:     make(map[string]peer.ID),
	}
}

// Join attaches the peer to the network and returns its endpoint.
// Joining twice returns the same endpoint.
func (n *Network) Join(id peer.ID) *Endpoint {
	n.mu.Lock()
	defer n.mu.Unlock()
	if endpoint, ok := n.endpoints[id]; ok {
		return endpoint
	}
	endpoint := &Endpoint{network: n, id: id}
	n.endpoints[id] = endpoint
	return endpoint
}

// Leave detaches the peer. Its names stay registered and become stale.
func (n *Network) Leave(id peer.ID) {
	n.mu.Lock()
	delete(n.endpoints, id)
	n.mu.Unlock()
}

func (n *Network) endpoint(id peer.ID) (*Endpoint, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	endpoint, ok := n.endpoints[id]
	return endpoint, ok
}

// Endpoint is the attachment point of a single peer
type Endpoint struct {
	network  *Network
	id       peer.ID
	mu       sync.RWMutex
	receiver func(from peer.ID, data []byte)
}

// PeerID returns the peer id of the endpoint
func (e *Endpoint) PeerID() peer.ID {
	return e.id
}

// Send hands a copy of data to the receiver of the target peer
func (e *Endpoint) Send(ctx context.Context, to peer.ID, data []byte) error {
	if err := ctx.Err(); err != nil {
		return gerrors.NewTransportError("send", to.String(), err)
	}

	target, ok := e.network.endpoint(to)
	if !ok {
		return gerrors.NewTransportError("send", to.String(), gerrors.ErrUnreachablePeer)
	}

	target.mu.RLock()
	receiver := target.receiver
	target.mu.RUnlock()
	if receiver != nil {
		receiver(e.id, bytes.Clone(data))
	}
	return nil
}

// SetReceiver sets the handler of inbound frames
func (e *Endpoint) SetReceiver(receiver func(from peer.ID, data []byte)) {
	e.mu.Lock()
	e.receiver = receiver
	e.mu.Unlock()
}

// Register maps name to this endpoint, replacing any previous owner
func (e *Endpoint) Register(_ context.Context, name string) error {
	if name == "" {
		return gerrors.ErrNameRequired
	}
	e.network.mu.Lock()
	e.network.names[name] = e.id
	e.network.mu.Unlock()
	return nil
}

// Deregister removes name when this endpoint owns it
func (e *Endpoint) Deregister(_ context.Context, name string) error {
	e.network.mu.Lock()
	if owner, ok := e.network.names[name]; ok && owner == e.id {
		delete(e.network.names, name)
	}
	e.network.mu.Unlock()
	return nil
}

// Lookup returns the peer that registered name
func (e *Endpoint) Lookup(_ context.Context, name string) (peer.ID, error) {
	e.network.mu.RLock()
	defer e.network.mu.RUnlock()
	owner, ok := e.network.names[name]
	if !ok {
		return "", gerrors.NewErrNameNotFound(name)
	}
	return owner, nil
}
