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

// Package overlay connects peers over libp2p.
//
// A Node owns the libp2p host. It dials the bootstrap peers, reserves relay
// slots, runs the version handshake on every new connection and probes the
// liveness of the compatible peers. It also serves the two surfaces the
// gateway relies on: a Transport carrying opaque frames and a Directory
// mapping names to peers.
package overlay

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/libp2p/go-libp2p"
	dht "github.com/libp2p/go-libp2p-kad-dht"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/core/protocol"
	"github.com/libp2p/go-libp2p/p2p/discovery/mdns"
	"github.com/libp2p/go-libp2p/p2p/net/connmgr"
	"github.com/libp2p/go-libp2p/p2p/protocol/ping"
	noise "github.com/libp2p/go-libp2p/p2p/security/noise"
	tlsp2p "github.com/libp2p/go-libp2p/p2p/security/tls"
	libp2pquic "github.com/libp2p/go-libp2p/p2p/transport/quic"
	"github.com/libp2p/go-libp2p/p2p/transport/tcp"
	ma "github.com/multiformats/go-multiaddr"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.uber.org/atomic"
	"go.uber.org/multierr"

	"github.com/meshakt/meshakt/config"
	gerrors "github.com/meshakt/meshakt/errors"
	"github.com/meshakt/meshakt/eventstream"
	"github.com/meshakt/meshakt/heartbeat"
	"github.com/meshakt/meshakt/identity"
	"github.com/meshakt/meshakt/internal/metric"
	"github.com/meshakt/meshakt/log"
)

const (
	// HelloProtocol carries the version handshake
	HelloProtocol = protocol.ID("/meshakt/hello/1.0.0")
	// GatewayProtocol carries gateway frames
	GatewayProtocol = protocol.ID("/meshakt/gateway/1.0.0")
	// LookupProtocol answers directory queries from connected peers
	LookupProtocol = protocol.ID("/meshakt/lookup/1.0.0")

	dhtProtocolPrefix = protocol.ID("/meshakt")
	mdnsServiceName   = "meshakt"

	dialTimeout = 15 * time.Second
	connGrace   = time.Minute
)

// Node is a peer of the overlay
type Node struct {
	config   *config.Config
	identity *identity.Identity
	logger   log.Logger

	host      host.Host
	dht       *dht.IpfsDHT
	ping      *ping.PingService
	mdns      mdns.Service
	monitor   *heartbeat.Monitor
	peers     *peerTable
	notifiee  *network.NotifyBundle
	directory *Directory
	transport *Transport

	bus     eventstream.Stream
	ownsBus bool

	meterProvider otelmetric.MeterProvider
	metric        *metric.OverlayMetric

	helloTimeout      time.Duration
	lookupTimeout     time.Duration
	cacheTTL          time.Duration
	republishInterval time.Duration

	ctx     context.Context
	cancel  context.CancelFunc
	started *atomic.Bool
	closed  *atomic.Bool
	wg      sync.WaitGroup
}

// New creates a Node listening on the configured addresses.
// Nothing is dialed until Start is called.
func New(ctx context.Context, cfg *config.Config, id *identity.Identity, logger log.Logger, opts ...Option) (*Node, error) {
	if cfg == nil || id == nil {
		return nil, fmt.Errorf("%w: config and identity are required", gerrors.ErrInvalidConfig)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.DiscardLogger
	}

	n := &Node{
		config:            cfg,
		identity:          id,
		logger:            logger.With("peer", id.PeerID().String()),
		peers:             newPeerTable(),
		bus:               eventstream.New(),
		ownsBus:           true,
		helloTimeout:      DefaultHelloTimeout,
		lookupTimeout:     DefaultLookupTimeout,
		cacheTTL:          DefaultRecordCacheTTL,
		republishInterval: DefaultRepublishInterval,
		started:           atomic.NewBool(false),
		closed:            atomic.NewBool(false),
	}

	for _, opt := range opts {
		opt.Apply(n)
	}

	if n.host == nil {
		h, err := newHost(cfg, id)
		if err != nil {
			return nil, gerrors.NewTransportError("listen", id.PeerID().String(), err)
		}
		n.host = h
	} else if n.host.ID() != id.PeerID() {
		return nil, fmt.Errorf("%w: host=(%s) does not carry identity=(%s)", gerrors.ErrInvalidConfig, n.host.ID(), id.PeerID())
	}

	if err := n.init(ctx); err != nil {
		return nil, errors.Join(err, n.host.Close())
	}
	return n, nil
}

func newHost(cfg *config.Config, id *identity.Identity) (host.Host, error) {
	cm, err := connmgr.NewConnManager(cfg.ConnLow, cfg.ConnHigh, connmgr.WithGracePeriod(connGrace))
	if err != nil {
		return nil, err
	}

	opts := []libp2p.Option{
		libp2p.Identity(id.PrivateKey()),
		libp2p.ListenAddrStrings(cfg.ListenAddrs...),
		libp2p.Transport(tcp.NewTCPTransport),
		libp2p.Transport(libp2pquic.NewTransport),
		libp2p.Security(noise.ID, noise.New),
		libp2p.Security(tlsp2p.ID, tlsp2p.New),
		libp2p.ConnectionManager(cm),
		libp2p.EnableRelay(),
		libp2p.EnableHolePunching(),
		libp2p.NATPortMap(),
		libp2p.ProtocolVersion(cfg.ProtocolVersion),
	}

	if len(cfg.Relays) > 0 {
		relays, err := addrInfos(cfg.Relays)
		if err != nil {
			return nil, err
		}
		opts = append(opts, libp2p.EnableAutoRelayWithStaticRelays(relays))
	}

	return libp2p.New(opts...)
}

func (n *Node) init(ctx context.Context) error {
	n.ctx, n.cancel = context.WithCancel(context.WithoutCancel(ctx))

	var providerOpts []metric.ProviderOption
	if n.meterProvider != nil {
		providerOpts = append(providerOpts, metric.WithMeterProvider(n.meterProvider))
	}
	overlayMetric, err := metric.NewOverlayMetric(metric.NewProvider(providerOpts...).Meter(), func() int64 {
		return int64(len(n.host.Network().Peers()))
	})
	if err != nil {
		n.cancel()
		return err
	}
	n.metric = overlayMetric

	n.monitor = heartbeat.NewMonitor(
		heartbeat.WithSuspectAfter(n.config.SuspectAfter),
		heartbeat.WithDeadAfter(n.config.DeadAfter),
		heartbeat.WithCheckInterval(n.config.PingInterval),
		heartbeat.WithListener(n.onTransition),
	)

	n.directory = newDirectory(n)
	n.transport = newTransport(n)
	n.ping = ping.NewPingService(n.host)

	if !n.config.DisableDHT {
		kad, err := dht.New(n.ctx, n.host,
			dht.ProtocolPrefix(dhtProtocolPrefix),
			dht.Mode(dht.ModeAuto),
			dht.NamespacedValidator(recordNamespace, RecordValidator{}),
		)
		if err != nil {
			n.cancel()
			return multierr.Combine(fmt.Errorf("failed to create the DHT: %w", err), n.metric.Close())
		}
		n.dht = kad
	}

	n.host.SetStreamHandler(HelloProtocol, n.handleHello)
	n.host.SetStreamHandler(GatewayProtocol, n.transport.handle)
	n.host.SetStreamHandler(LookupProtocol, n.directory.handle)

	n.notifiee = &network.NotifyBundle{
		ConnectedF: func(_ network.Network, conn network.Conn) {
			go n.greet(conn.RemotePeer())
		},
	}
	n.host.Network().Notify(n.notifiee)
	return nil
}

// Start dials the bootstrap peers, reserves relay slots, bootstraps the DHT
// and starts probing the liveness of the connected peers.
// Individual failures are logged and do not fail Start.
func (n *Node) Start(ctx context.Context) error {
	if n.closed.Load() {
		return gerrors.ErrDead
	}
	if !n.started.CompareAndSwap(false, true) {
		return nil
	}

	n.monitor.Start()

	connected := n.bootstrap(ctx)
	n.logger.Infof("connected to %d/%d bootstrap peers", connected, len(n.config.BootstrapPeers))

	n.reserveRelays(ctx)

	if n.dht != nil {
		if err := n.dht.Bootstrap(n.ctx); err != nil {
			n.logger.Warnf("failed to bootstrap the DHT: %v", err)
		}
	}

	if n.config.EnableMDNS {
		n.mdns = mdns.NewMdnsService(n.host, mdnsServiceName, &mdnsNotifee{node: n})
		if err := n.mdns.Start(); err != nil {
			n.logger.Warnf("failed to start mDNS discovery: %v", err)
			n.mdns = nil
		}
	}

	n.wg.Go(func() { n.pingLoop(n.ctx) })
	if n.dht != nil {
		n.wg.Go(func() { n.directory.republishLoop(n.ctx, n.republishInterval) })
	}

	n.logger.Infof("overlay node started on %v", n.host.Addrs())
	return nil
}

// Close stops the background work and shuts the host down
func (n *Node) Close() error {
	if !n.closed.CompareAndSwap(false, true) {
		return nil
	}

	n.cancel()
	n.wg.Wait()
	n.monitor.Stop()
	n.host.Network().StopNotify(n.notifiee)

	var err error
	if n.mdns != nil {
		err = multierr.Append(err, n.mdns.Close())
	}
	if n.dht != nil {
		err = multierr.Append(err, n.dht.Close())
	}
	err = multierr.Append(err, n.metric.Close())
	err = multierr.Append(err, n.host.Close())
	if n.ownsBus {
		n.bus.Close()
	}

	n.logger.Info("overlay node closed")
	return err
}

// PeerID returns the local peer id
func (n *Node) PeerID() peer.ID {
	return n.host.ID()
}

// Addrs returns the listen addresses of the node, each ending with its /p2p component
func (n *Node) Addrs() []ma.Multiaddr {
	addrs, err := peer.AddrInfoToP2pAddrs(&peer.AddrInfo{ID: n.host.ID(), Addrs: n.host.Addrs()})
	if err != nil {
		return nil
	}
	return addrs
}

// Host returns the underlying libp2p host
func (n *Node) Host() host.Host {
	return n.host
}

// Peers returns the compatible peers, ordered by peer id
func (n *Node) Peers() []PeerRecord {
	return n.peers.records(n.monitor, n.host.Network())
}

// Directory returns the name directory served by the node
func (n *Node) Directory() *Directory {
	return n.directory
}

// Transport returns the frame transport served by the node
func (n *Node) Transport() *Transport {
	return n.transport
}

// EventStream returns the stream the peer events are published on
func (n *Node) EventStream() eventstream.Stream {
	return n.bus
}

func (n *Node) selfAddrs() []string {
	addrs := n.host.Addrs()
	out := make([]string, 0, len(addrs))
	for _, addr := range addrs {
		out = append(out, addr.String())
	}
	return out
}

func addrInfos(addrs []string) ([]peer.AddrInfo, error) {
	out := make([]peer.AddrInfo, 0, len(addrs))
	for _, addr := range addrs {
		info, err := peer.AddrInfoFromString(addr)
		if err != nil {
			return nil, fmt.Errorf("invalid peer address=(%s): %w", addr, err)
		}
		out = append(out, *info)
	}
	return out, nil
}
