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

// Package gateway carries actor messages between peers.
//
// Every process runs a single gateway actor named after its peer id (see
// Name). Outbound messages are wrapped in a Frame, signed into an
// envelope.SignedEnvelope and written to the Transport. Inbound envelopes are
// verified before anything else: a frame that does not verify, or that is not
// signed by the peer it came from, is dropped without a reply.
//
// Requests are correlated with their reply through the envelope correlation
// id. The gateway actor keeps the table of pending requests; each entry is
// resolved at most once, by its reply, its deadline or its cancellation.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/flowchartsman/retry"
	"github.com/libp2p/go-libp2p/core/peer"
	otelmetric "go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"

	"github.com/meshakt/meshakt/actor"
	"github.com/meshakt/meshakt/address"
	"github.com/meshakt/meshakt/breaker"
	"github.com/meshakt/meshakt/envelope"
	gerrors "github.com/meshakt/meshakt/errors"
	"github.com/meshakt/meshakt/eventstream"
	"github.com/meshakt/meshakt/future"
	"github.com/meshakt/meshakt/internal/metric"
	"github.com/meshakt/meshakt/log"
)

// Gateway is the handle on the local gateway actor
type Gateway struct {
	name      string
	system    actor.ActorSystem
	signer    envelope.Signer
	transport Transport
	directory Directory
	bus       eventstream.Stream
	logger    log.Logger

	pendingTTL           time.Duration
	sweepInterval        time.Duration
	requestTimeout       time.Duration
	broadcastConcurrency int

	meterProvider otelmetric.MeterProvider
	metric        *metric.GatewayMetric
	pendingCount  atomic.Int64

	breakerOpts []breaker.Option
	breakersMu  sync.Mutex
	breakers    map[peer.ID]*breaker.CircuitBreaker

	pid     *actor.PID
	started atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

var _ address.Remoting = (*Gateway)(nil)

// New creates a Gateway. It is reachable once Start has been called.
func New(system actor.ActorSystem, signer envelope.Signer, transport Transport, directory Directory, opts ...Option) (*Gateway, error) {
	if system == nil || signer == nil || transport == nil || directory == nil {
		return nil, fmt.Errorf("%w: actor system, signer, transport and directory are required", gerrors.ErrInvalidConfig)
	}

	g := &Gateway{
		name:                 Name(signer.PeerID()),
		system:               system,
		signer:               signer,
		transport:            transport,
		directory:            directory,
		bus:                  system.EventStream(),
		logger:               system.Logger(),
		pendingTTL:           DefaultPendingTaskTTL,
		sweepInterval:        DefaultSweepInterval,
		requestTimeout:       DefaultRequestTimeout,
		broadcastConcurrency: DefaultBroadcastConcurrency,
		breakerOpts:          []breaker.Option{breaker.WithOpenTimeout(DefaultBreakerOpenTimeout)},
		breakers:             make(map[peer.ID]*breaker.CircuitBreaker),
	}

	for _, opt := range opts {
		opt.Apply(g)
	}

	if err := g.validate(); err != nil {
		return nil, errors.Join(gerrors.ErrInvalidConfig, err)
	}

	var providerOpts []metric.ProviderOption
	if g.meterProvider != nil {
		providerOpts = append(providerOpts, metric.WithMeterProvider(g.meterProvider))
	}

	gatewayMetric, err := metric.NewGatewayMetric(metric.NewProvider(providerOpts...).Meter(), g.pendingCount.Load)
	if err != nil {
		return nil, err
	}

	g.metric = gatewayMetric
	g.logger = g.logger.With("gateway", g.name)
	return g, nil
}

// Name returns the name of the gateway actor, also its directory name
func (g *Gateway) Name() string {
	return g.name
}

// PeerID returns the local peer id
func (g *Gateway) PeerID() peer.ID {
	return g.signer.PeerID()
}

// PID returns the gateway actor, nil before Start
func (g *Gateway) PID() *actor.PID {
	return g.pid
}

// Pending returns the number of requests waiting for a reply
func (g *Gateway) Pending() int {
	return int(g.pendingCount.Load())
}

// Start spawns the gateway actor, starts reading frames and publishes the
// gateway name in the directory in the background.
func (g *Gateway) Start(ctx context.Context) error {
	if !g.started.CompareAndSwap(false, true) {
		return nil
	}

	pid, err := g.system.Spawn(ctx, g.name, newGatewayActor(g))
	if err != nil {
		g.started.Store(false)
		return err
	}

	g.pid = pid
	g.transport.SetReceiver(g.receive)

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	g.cancel = cancel

	g.wg.Add(2)
	go g.sweepLoop(runCtx)
	go g.register(runCtx)

	g.logger.Infof("gateway=(%s) started", g.name)
	return nil
}

// Stop withdraws the gateway name from the directory, best effort, and stops the gateway actor.
// Requests still pending fail with ErrDead.
func (g *Gateway) Stop(ctx context.Context) error {
	if !g.started.CompareAndSwap(true, false) {
		return nil
	}

	g.cancel()
	g.wg.Wait()
	g.transport.SetReceiver(nil)

	if err := g.directory.Deregister(ctx, g.name); err != nil {
		g.logger.Warnf("failed to deregister gateway=(%s): %v", g.name, err)
	}

	return errors.Join(g.pid.Stop(ctx), g.metric.Close())
}

// State returns whether the gateway name is published
func (g *Gateway) State(ctx context.Context) (State, error) {
	if !g.started.Load() {
		return Idle, nil
	}
	reply, err := actor.Ask(ctx, g.pid, new(GetState), g.system.AskTimeout())
	if err != nil {
		return Idle, err
	}
	return reply.(State), nil
}

// Advertise publishes a local actor name in the directory so other peers can Resolve it
func (g *Gateway) Advertise(ctx context.Context, name string) error {
	if _, err := g.system.LocalActor(name); err != nil {
		return err
	}
	return g.directory.Register(ctx, name)
}

// Resolve returns the address of the actor advertised under name
func (g *Gateway) Resolve(ctx context.Context, name string) (address.Address, error) {
	peerID, err := g.directory.Lookup(ctx, name)
	if err != nil {
		return address.Address{}, err
	}
	if peerID == g.PeerID() {
		pid, err := g.system.LocalActor(name)
		if err != nil {
			return address.Address{}, err
		}
		return address.Local(pid), nil
	}
	return address.Remote(peerID, name, g), nil
}

// RegisterTask pre-registers a pending request to the given peer and returns the future its reply completes.
// Only a reply signed by that peer completes it. The future fails with ErrRequestTimeout once deadline has passed.
func (g *Gateway) RegisterTask(ctx context.Context, id envelope.TaskID, to peer.ID, deadline time.Time) (future.Future, error) {
	if !g.started.Load() {
		return nil, gerrors.ErrGatewayNotRegistered
	}
	reply, err := actor.Ask(ctx, g.pid, &RegisterTask{TaskID: id, Peer: to, Deadline: deadline}, g.system.AskTimeout())
	if err != nil {
		return nil, err
	}
	return reply.(future.Future), nil
}

// CancelTask fails a pending request with ErrRequestTimeout
func (g *Gateway) CancelTask(ctx context.Context, id envelope.TaskID) error {
	if !g.started.Load() {
		return gerrors.ErrGatewayNotRegistered
	}
	return actor.Tell(ctx, g.pid, &CancelTask{TaskID: id})
}

// RemoteTell sends msg to an actor on another peer.
// A destination that cannot be reached is logged and the message dropped.
func (g *Gateway) RemoteTell(ctx context.Context, to address.RemoteKey, msg any) error {
	if !g.started.Load() {
		return gerrors.ErrGatewayNotRegistered
	}

	frame, err := newFrame(FrameTell, to.Name, msg)
	if err != nil {
		return err
	}

	if err := g.deliver(ctx, to.PeerID, frame, nil); err != nil {
		if errors.Is(err, gerrors.ErrUnreachablePeer) {
			g.logger.Debugf("dropping message to %s: %v", to, err)
			return nil
		}
		return err
	}
	return nil
}

// RemoteAsk sends msg to an actor on another peer and waits for the reply.
// The wait ends at the context deadline or after the pending task TTL, whichever comes first.
func (g *Gateway) RemoteAsk(ctx context.Context, to address.RemoteKey, msg any) (any, error) {
	if !g.started.Load() {
		return nil, gerrors.ErrGatewayNotRegistered
	}

	frame, err := newFrame(FrameRequest, to.Name, msg)
	if err != nil {
		return nil, err
	}
	frame.ReplyTo = g.name

	deadline := time.Now().Add(g.pendingTTL)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}

	id := envelope.NewTaskID()
	fut, err := g.RegisterTask(ctx, id, to.PeerID, deadline)
	if err != nil {
		return nil, err
	}

	if err := g.deliver(ctx, to.PeerID, frame, &id); err != nil {
		_ = g.CancelTask(context.WithoutCancel(ctx), id)
		g.logger.Debugf("cannot ask %s: %v", to, err)
		return nil, err
	}

	reply, err := fut.Await(ctx)
	if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
		_ = g.CancelTask(context.WithoutCancel(ctx), id)
		return nil, errors.Join(gerrors.ErrRequestTimeout, ctxErr)
	}
	return reply, err
}

// Broadcast sends msg as an event to every target peer, never more than the
// broadcast concurrency at a time. It returns at once; the future completes
// with the number of failed sends once every send has finished.
func (g *Gateway) Broadcast(ctx context.Context, targets []peer.ID, msg any) (future.Future, error) {
	if !g.started.Load() {
		return nil, gerrors.ErrGatewayNotRegistered
	}

	frame, err := newFrame(FrameEvent, "", msg)
	if err != nil {
		return nil, err
	}

	// a single signature serves every target
	data, err := g.seal(frame, nil)
	if err != nil {
		return nil, err
	}

	sendCtx := context.WithoutCancel(ctx)
	return future.New(func() (any, error) {
		var failed atomic.Int64
		eg := new(errgroup.Group)
		eg.SetLimit(g.broadcastConcurrency)
		for _, target := range targets {
			eg.Go(func() error {
				_, err := g.breakerFor(target).Execute(sendCtx, func(ctx context.Context) (any, error) {
					if err := g.transport.Send(ctx, target, data); err != nil {
						g.metric.SendFailed(ctx, FrameEvent.String())
						return nil, err
					}
					return nil, nil
				})
				if err != nil {
					failed.Add(1)
					g.logger.Debugf("broadcast to peer=(%s) failed: %v", target, err)
				}
				return nil
			})
		}
		_ = eg.Wait()
		return int(failed.Load()), nil
	}), nil
}

// serveRequest asks the local target and sends the reply back to the gateway of the requesting peer
func (g *Gateway) serveRequest(from peer.ID, id envelope.TaskID, frame Frame) {
	ctx, cancel := context.WithTimeout(context.Background(), g.requestTimeout)
	defer cancel()

	reply := Frame{Kind: FrameReply}
	result, err := g.handleRequest(ctx, frame)
	if err == nil {
		reply.Type, reply.Payload, err = envelope.EncodePayload(result)
	}
	if err != nil {
		reply.Type, reply.Payload = "", nil
		reply.Error = toFrameError(err)
	}

	if err := g.deliver(ctx, from, reply, &id); err != nil {
		g.logger.Debugf("failed to reply task=(%s) to peer=(%s): %v", id, from, err)
	}
}

func (g *Gateway) handleRequest(ctx context.Context, frame Frame) (any, error) {
	message, err := envelope.DecodePayload(frame.Type, frame.Payload)
	if err != nil {
		return nil, err
	}

	target, err := g.system.LocalActor(frame.Target)
	if err != nil {
		return nil, err
	}

	return actor.Ask(ctx, target, message, g.requestTimeout)
}

// locate checks through the directory that the gateway of the given peer is reachable
func (g *Gateway) locate(ctx context.Context, peerID peer.ID) (peer.ID, error) {
	located, err := g.directory.Lookup(ctx, Name(peerID))
	if err != nil {
		return "", err
	}
	if located != peerID {
		return "", fmt.Errorf("gateway of peer=(%s) registered by %s", peerID, located)
	}
	return located, nil
}

// deliver locates the gateway of the peer and sends it the frame through the breaker of that peer.
// While the breaker is open it fails at once with both ErrUnreachablePeer and breaker.ErrOpen.
func (g *Gateway) deliver(ctx context.Context, to peer.ID, frame Frame, correlationID *envelope.TaskID) error {
	_, err := g.breakerFor(to).Execute(ctx, func(ctx context.Context) (any, error) {
		peerID, err := g.locate(ctx, to)
		if err != nil {
			return nil, errors.Join(gerrors.ErrUnreachablePeer, err)
		}
		return nil, g.send(ctx, peerID, frame, correlationID)
	})
	if errors.Is(err, breaker.ErrOpen) {
		return errors.Join(gerrors.ErrUnreachablePeer, err)
	}
	return err
}

func (g *Gateway) breakerFor(p peer.ID) *breaker.CircuitBreaker {
	g.breakersMu.Lock()
	defer g.breakersMu.Unlock()
	cb, ok := g.breakers[p]
	if !ok {
		cb = breaker.NewCircuitBreaker(append(g.breakerOpts, breaker.WithName(p.String()))...)
		g.breakers[p] = cb
	}
	return cb
}

func (g *Gateway) send(ctx context.Context, to peer.ID, frame Frame, correlationID *envelope.TaskID) error {
	data, err := g.seal(frame, correlationID)
	if err != nil {
		return err
	}
	if err := g.transport.Send(ctx, to, data); err != nil {
		g.metric.SendFailed(ctx, frame.Kind.String())
		return err
	}
	return nil
}

func (g *Gateway) seal(frame Frame, correlationID *envelope.TaskID) ([]byte, error) {
	env, err := envelope.Wrap(g.signer, frame, correlationID)
	if err != nil {
		return nil, err
	}
	return env.Marshal()
}

func (g *Gateway) receive(from peer.ID, data []byte) {
	if pid := g.pid; pid != nil {
		if err := pid.Deliver(&inbound{from: from, data: data}); err != nil {
			g.logger.Debugf("dropping frame from peer=(%s): %v", from, err)
		}
	}
}

func (g *Gateway) drop(ctx context.Context, reason string, from peer.ID, err error) {
	g.metric.FrameDropped(ctx, reason)
	g.logger.Debugf("dropping frame from peer=(%s) (reason=%s): %v", from, reason, err)
}

func (g *Gateway) sweepLoop(ctx context.Context) {
	defer g.wg.Done()
	ticker := time.NewTicker(g.sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = g.pid.Deliver(new(sweep))
		}
	}
}

func (g *Gateway) register(ctx context.Context) {
	defer g.wg.Done()
	retrier := retry.NewRetrier(DefaultRegisterRetries, 100*time.Millisecond, 5*time.Second)
	err := retrier.RunContext(ctx, func(ctx context.Context) error {
		return g.directory.Register(ctx, g.name)
	})
	if err != nil {
		g.logger.Warnf("failed to register gateway=(%s): %v", g.name, err)
		return
	}
	_ = g.pid.Deliver(new(registered))
	g.logger.Infof("gateway=(%s) registered", g.name)
}

func newFrame(kind FrameKind, target string, msg any) (Frame, error) {
	typeName, payload, err := envelope.EncodePayload(msg)
	if err != nil {
		return Frame{}, err
	}
	return Frame{Kind: kind, Target: target, Type: typeName, Payload: payload}, nil
}

func toFrameError(err error) *FrameError {
	code := gerrors.CodeHandlerFailed
	switch {
	case errors.Is(err, gerrors.ErrActorNotFound):
		code = gerrors.CodeActorNotFound
	case errors.Is(err, gerrors.ErrRequestTimeout):
		code = gerrors.CodeTimeout
	case errors.Is(err, gerrors.ErrTypeNotRegistered), errors.Is(err, gerrors.ErrInvalidMessage):
		code = gerrors.CodeDecode
	}
	return &FrameError{Code: code, Message: err.Error()}
}
