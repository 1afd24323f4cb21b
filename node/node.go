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

// Package node assembles a meshakt process: the persisted identity, the actor
// system, the libp2p overlay and the gateway connecting them.
package node

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/libp2p/go-libp2p/core/peer"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.uber.org/multierr"

	"github.com/meshakt/meshakt/actor"
	"github.com/meshakt/meshakt/address"
	"github.com/meshakt/meshakt/config"
	gerrors "github.com/meshakt/meshakt/errors"
	"github.com/meshakt/meshakt/eventstream"
	"github.com/meshakt/meshakt/future"
	"github.com/meshakt/meshakt/gateway"
	"github.com/meshakt/meshakt/heartbeat"
	"github.com/meshakt/meshakt/identity"
	"github.com/meshakt/meshakt/log"
	"github.com/meshakt/meshakt/overlay"
	"github.com/meshakt/meshakt/supervisor"
)

const systemName = "meshakt"

// Node is a running meshakt process
type Node struct {
	config   *config.Config
	identity *identity.Identity
	logger   log.Logger

	system  actor.ActorSystem
	overlay *overlay.Node
	gateway *gateway.Gateway

	overlayOpts   []overlay.Option
	meterProvider otelmetric.MeterProvider

	mu       sync.Mutex
	watchers map[peer.ID]map[string]*actor.PID
	sub      eventstream.Subscriber
}

// Option configures a Node
type Option func(*Node)

// WithLogger overrides the logger built from the configured level
func WithLogger(logger log.Logger) Option {
	return func(n *Node) {
		n.logger = logger
	}
}

// WithMeterProvider sets the otel meter provider of the overlay and gateway instruments
func WithMeterProvider(provider otelmetric.MeterProvider) Option {
	return func(n *Node) {
		n.meterProvider = provider
	}
}

// WithOverlayOptions passes extra options to the overlay
func WithOverlayOptions(opts ...overlay.Option) Option {
	return func(n *Node) {
		n.overlayOpts = append(n.overlayOpts, opts...)
	}
}

// New loads or creates the identity stored in the configured data directory and
// assembles the node. Nothing runs until Start is called.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*Node, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: config is required", gerrors.ErrInvalidConfig)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	n := &Node{
		config:   cfg,
		watchers: make(map[peer.ID]map[string]*actor.PID),
	}
	for _, opt := range opts {
		opt(n)
	}
	if n.logger == nil {
		n.logger = log.NewZap(cfg.Level(), os.Stdout)
	}

	id, err := identity.Initialize(cfg.DataDir)
	if err != nil {
		return nil, err
	}
	n.identity = id

	system, err := actor.NewActorSystem(systemName,
		actor.WithLogger(n.logger),
		actor.WithAskTimeout(cfg.AskTimeout),
	)
	if err != nil {
		return nil, err
	}
	n.system = system

	overlayOpts := append([]overlay.Option{
		overlay.WithEventStream(system.EventStream()),
		overlay.WithMeterProvider(n.meterProvider),
	}, n.overlayOpts...)
	ov, err := overlay.New(ctx, cfg, id, n.logger, overlayOpts...)
	if err != nil {
		return nil, err
	}
	n.overlay = ov

	gw, err := gateway.New(system, id, ov.Transport(), ov.Directory(),
		gateway.WithLogger(n.logger),
		gateway.WithPendingTaskTTL(cfg.PendingTaskTTL),
		gateway.WithRequestTimeout(cfg.AskTimeout),
		gateway.WithBroadcastConcurrency(cfg.BroadcastConcurrency),
		gateway.WithMeterProvider(n.meterProvider),
	)
	if err != nil {
		return nil, multierr.Combine(err, ov.Close())
	}
	n.gateway = gw
	return n, nil
}

// Start runs the actor system, joins the overlay and starts the gateway
func (n *Node) Start(ctx context.Context) error {
	if err := n.system.Start(ctx); err != nil {
		return err
	}

	n.sub = n.system.EventStream().AddReceiver(peerEvents{node: n})
	eventstream.SubscribeTo[*overlay.PeerStateChanged](n.system.EventStream(), n.sub)

	if err := n.overlay.Start(ctx); err != nil {
		return multierr.Combine(err, n.system.Stop(ctx))
	}
	if err := n.gateway.Start(ctx); err != nil {
		return multierr.Combine(err, n.overlay.Close(), n.system.Stop(ctx))
	}

	n.logger.Infof("node=(%s) started", n.identity.PeerID())
	return nil
}

// Stop stops the gateway, leaves the overlay and stops the actor system
func (n *Node) Stop(ctx context.Context) error {
	err := n.gateway.Stop(ctx)
	if n.sub != nil {
		n.system.EventStream().RemoveSubscriber(n.sub)
	}
	err = multierr.Append(err, n.overlay.Close())
	err = multierr.Append(err, n.system.Stop(ctx))
	if err == nil {
		n.logger.Infof("node=(%s) stopped", n.identity.PeerID())
	}
	return err
}

// PeerID returns the peer id of the node
func (n *Node) PeerID() peer.ID {
	return n.identity.PeerID()
}

// Identity returns the node identity
func (n *Node) Identity() *identity.Identity {
	return n.identity
}

// ActorSystem returns the local actor system
func (n *Node) ActorSystem() actor.ActorSystem {
	return n.system
}

// Overlay returns the overlay node
func (n *Node) Overlay() *overlay.Node {
	return n.overlay
}

// Gateway returns the gateway
func (n *Node) Gateway() *gateway.Gateway {
	return n.gateway
}

// Spawn creates a local actor and returns its address
func (n *Node) Spawn(ctx context.Context, name string, a actor.Actor, opts ...actor.SpawnOption) (address.Address, error) {
	pid, err := n.system.Spawn(ctx, name, a, opts...)
	if err != nil {
		return address.Address{}, err
	}
	return address.Local(pid), nil
}

// Advertise makes a local actor resolvable by the other peers
func (n *Node) Advertise(ctx context.Context, name string) error {
	return n.gateway.Advertise(ctx, name)
}

// Resolve returns the address of an advertised actor, local or remote
func (n *Node) Resolve(ctx context.Context, name string) (address.Address, error) {
	return n.gateway.Resolve(ctx, name)
}

// Remote returns the address of the actor name served by peerID
func (n *Node) Remote(peerID peer.ID, name string) address.Address {
	return address.Remote(peerID, name, n.gateway)
}

// Broadcast sends msg to the gateway of every live peer.
// The future resolves with the number of failed deliveries.
func (n *Node) Broadcast(ctx context.Context, msg any) (future.Future, error) {
	var targets []peer.ID
	for _, record := range n.overlay.Peers() {
		if record.Liveness != heartbeat.Dead {
			targets = append(targets, record.PeerID)
		}
	}
	return n.gateway.Broadcast(ctx, targets, msg)
}

// WatchPeer fails pid with a disconnected cause once peerID is declared dead.
// The watch fires once.
func (n *Node) WatchPeer(pid *actor.PID, peerID peer.ID) {
	n.mu.Lock()
	defer n.mu.Unlock()
	pids, ok := n.watchers[peerID]
	if !ok {
		pids = make(map[string]*actor.PID)
		n.watchers[peerID] = pids
	}
	pids[pid.ID()] = pid
}

// UnwatchPeer cancels a WatchPeer
func (n *Node) UnwatchPeer(pid *actor.PID, peerID peer.ID) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if pids, ok := n.watchers[peerID]; ok {
		delete(pids, pid.ID())
		if len(pids) == 0 {
			delete(n.watchers, peerID)
		}
	}
}

func (n *Node) peerDied(peerID peer.ID) {
	n.mu.Lock()
	pids := n.watchers[peerID]
	delete(n.watchers, peerID)
	n.mu.Unlock()

	for _, pid := range pids {
		pid.Fail(supervisor.DisconnectedCause, fmt.Errorf("%w: peer=(%s)", gerrors.ErrDisconnected, peerID))
	}
}

// peerEvents relays the overlay liveness events to the node
type peerEvents struct {
	node *Node
}

func (p peerEvents) Deliver(message any) error {
	if event, ok := message.(*overlay.PeerStateChanged); ok && event.To == heartbeat.Dead {
		p.node.peerDied(event.PeerID)
	}
	return nil
}
