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
	"strings"
	"sync"
	"time"

	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/core/peerstore"
	ma "github.com/multiformats/go-multiaddr"
	"golang.org/x/sync/errgroup"

	gerrors "github.com/meshakt/meshakt/errors"
	"github.com/meshakt/meshakt/gateway"
)

type learned struct {
	owner   peer.ID
	entry   Entry
	expires time.Time
}

// Directory maps names to the peer serving them.
//
// Names registered locally are answered from memory. Other names are looked
// up in the DHT, then asked to the connected peers. Every record is signed by
// the peer serving the name and verified before use.
type Directory struct {
	node *Node

	mu      sync.Mutex
	local   map[string][]byte
	entries map[string]Entry
	cache   map[string]learned
	lastSeq uint64
}

var _ gateway.Directory = (*Directory)(nil)

func newDirectory(node *Node) *Directory {
	return &Directory{
		node:    node,
		local:   make(map[string][]byte),
		entries: make(map[string]Entry),
		cache:   make(map[string]learned),
	}
}

// Register publishes name as served by the local peer.
// The name is answered locally right away; a failed DHT publication is only logged.
func (d *Directory) Register(ctx context.Context, name string) error {
	if strings.TrimSpace(name) == "" {
		return gerrors.ErrNameRequired
	}
	raw, err := d.store(Entry{Name: name, Addrs: d.node.selfAddrs()})
	if err != nil {
		return err
	}
	d.publish(ctx, name, raw)
	return nil
}

// Deregister withdraws name by publishing a tombstone.
// Withdrawing a name that is not registered locally is a no-op.
func (d *Directory) Deregister(ctx context.Context, name string) error {
	d.mu.Lock()
	entry, ok := d.entries[name]
	d.mu.Unlock()
	if !ok || entry.Deleted {
		return nil
	}

	raw, err := d.store(Entry{Name: name, Deleted: true})
	if err != nil {
		return err
	}
	d.publish(ctx, name, raw)
	return nil
}

// Lookup returns the peer serving name
func (d *Directory) Lookup(ctx context.Context, name string) (peer.ID, error) {
	if owner, found, ok := d.cached(name); ok {
		if !found {
			return "", gerrors.NewErrNameNotFound(name)
		}
		return owner, nil
	}

	var candidates [][]byte
	if d.node.dht != nil {
		if value, err := d.node.dht.GetValue(ctx, RecordKey(name)); err == nil {
			candidates = append(candidates, value)
		} else {
			d.node.logger.Debugf("DHT lookup of name=(%s) failed: %v", name, err)
		}
	}
	if len(candidates) == 0 {
		candidates = d.queryPeers(ctx, name)
	}
	if len(candidates) == 0 {
		return "", gerrors.NewErrNameNotFound(name)
	}

	best, err := RecordValidator{}.Select(RecordKey(name), candidates)
	if err != nil {
		return "", gerrors.NewErrNameNotFound(name)
	}

	entry, owner, err := OpenRecord(candidates[best])
	if err != nil {
		return "", gerrors.NewErrNameNotFound(name)
	}
	d.learn(owner, entry)
	if entry.Deleted {
		return "", gerrors.NewErrNameNotFound(name)
	}
	return owner, nil
}

// store signs entry with the next sequence number and keeps it as the local record of its name
func (d *Directory) store(entry Entry) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	seq := uint64(time.Now().UnixNano())
	if seq <= d.lastSeq {
		seq = d.lastSeq + 1
	}
	entry.Seq = seq

	raw, err := SealRecord(d.node.identity, entry)
	if err != nil {
		return nil, err
	}
	d.lastSeq = seq
	d.local[entry.Name] = raw
	d.entries[entry.Name] = entry
	delete(d.cache, entry.Name)
	return raw, nil
}

func (d *Directory) publish(ctx context.Context, name string, raw []byte) {
	if d.node.dht == nil {
		return
	}
	if err := d.node.dht.PutValue(ctx, RecordKey(name), raw); err != nil {
		d.node.logger.Warnf("failed to publish name=(%s) in the DHT: %v", name, err)
	}
}

// republishLoop pushes the local records to the DHT, first right away then periodically
func (d *Directory) republishLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		d.mu.Lock()
		records := make(map[string][]byte, len(d.local))
		for name, raw := range d.local {
			records[name] = raw
		}
		d.mu.Unlock()

		for name, raw := range records {
			d.publish(ctx, name, raw)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// cached answers from the local records then the learned ones.
// ok is false when the network must be asked.
func (d *Directory) cached(name string) (owner peer.ID, found, ok bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if entry, exists := d.entries[name]; exists && !entry.Deleted {
		return d.node.host.ID(), true, true
	}

	if hit, exists := d.cache[name]; exists {
		if time.Now().Before(hit.expires) {
			return hit.owner, !hit.entry.Deleted, true
		}
		delete(d.cache, name)
	}
	return "", false, false
}

// learn caches a verified record and remembers the addresses of its owner
func (d *Directory) learn(owner peer.ID, entry Entry) {
	if owner != d.node.host.ID() {
		addrs := make([]ma.Multiaddr, 0, len(entry.Addrs))
		for _, raw := range entry.Addrs {
			if addr, err := ma.NewMultiaddr(raw); err == nil {
				addrs = append(addrs, addr)
			}
		}
		if len(addrs) > 0 {
			d.node.host.Peerstore().AddAddrs(owner, addrs, peerstore.TempAddrTTL)
		}
	}

	if d.node.cacheTTL <= 0 {
		return
	}
	d.mu.Lock()
	d.cache[entry.Name] = learned{owner: owner, entry: entry, expires: time.Now().Add(d.node.cacheTTL)}
	d.mu.Unlock()
}

// queryPeers asks every connected compatible peer for its record of name
func (d *Directory) queryPeers(ctx context.Context, name string) [][]byte {
	ctx, cancel := context.WithTimeout(ctx, d.node.lookupTimeout)
	defer cancel()

	var (
		mu     sync.Mutex
		values [][]byte
	)

	eg := new(errgroup.Group)
	eg.SetLimit(d.node.config.BootstrapConcurrency)
	for _, p := range d.node.host.Network().Peers() {
		if d.node.peers.incompatible(p) {
			continue
		}
		eg.Go(func() error {
			value, err := d.ask(ctx, p, name)
			if err != nil {
				d.node.logger.Debugf("lookup of name=(%s) at peer=(%s) failed: %v", name, p, err)
				return nil
			}
			if len(value) > 0 {
				mu.Lock()
				values = append(values, value)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = eg.Wait()
	return values
}

func (d *Directory) ask(ctx context.Context, p peer.ID, name string) ([]byte, error) {
	stream, err := d.node.host.NewStream(network.WithAllowLimitedConn(ctx, "meshakt-lookup"), p, LookupProtocol)
	if err != nil {
		return nil, err
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = stream.SetDeadline(deadline)
	}

	if err := writeCBOR(stream, name); err != nil {
		_ = stream.Reset()
		return nil, err
	}

	var value []byte
	if err := readCBOR(stream, maxRecordSize+1024, &value); err != nil {
		_ = stream.Reset()
		return nil, err
	}
	_ = stream.Close()
	return value, nil
}

// handle answers a lookup with the local record of the name, tombstones included
func (d *Directory) handle(stream network.Stream) {
	if !d.node.handshaken(stream.Conn().RemotePeer()) {
		_ = stream.Reset()
		return
	}
	_ = stream.SetDeadline(time.Now().Add(d.node.lookupTimeout))

	var name string
	if err := readCBOR(stream, maxRecordSize, &name); err != nil {
		_ = stream.Reset()
		return
	}

	d.mu.Lock()
	value := d.local[name]
	d.mu.Unlock()

	if err := writeCBOR(stream, value); err != nil {
		_ = stream.Reset()
		return
	}
	_ = stream.Close()
}
