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

// Package address provides a location-transparent reference to an actor.
//
// An Address is a tagged union with two kinds:
//
//   - Local: the actor runs in this process and is reached through its PID.
//   - Remote: the actor runs on another peer of the overlay and is reached
//     by name through that peer's gateway.
//
// The canonical textual representation of a remote address is:
//
//	meshakt://<peer-id>/<name>
//
// and of a local address:
//
//	meshakt://local/<name>
//
// An Address is a value: copying it is cheap and safe. It does not track the
// actor it designates, so an address to an actor that has stopped, or to a
// peer that has left, silently becomes stale. Sending to a stale address is
// not an error at the sender.
package address

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/libp2p/go-libp2p/core/peer"

	"github.com/meshakt/meshakt/actor"
	gerrors "github.com/meshakt/meshakt/errors"
	"github.com/meshakt/meshakt/internal/validation"
)

// scheme defines the addressing scheme
const scheme = "meshakt"

// Kind tells whether an Address designates a local or a remote actor
type Kind int

const (
	// InvalidKind is the kind of the zero Address
	InvalidKind Kind = iota
	// LocalKind designates an actor running in this process
	LocalKind
	// RemoteKind designates an actor running on another peer
	RemoteKind
)

// String returns the string representation of the kind
func (k Kind) String() string {
	switch k {
	case LocalKind:
		return "local"
	case RemoteKind:
		return "remote"
	default:
		return "invalid"
	}
}

// RemoteKey identifies an actor on a remote peer
type RemoteKey struct {
	PeerID peer.ID
	Name   string
}

// String returns the peer/name form of the key
func (k RemoteKey) String() string {
	return k.PeerID.String() + "/" + k.Name
}

// Remoting carries messages to actors on other peers.
// The gateway implements it.
type Remoting interface {
	// RemoteTell sends msg to the remote actor without waiting for any reply
	RemoteTell(ctx context.Context, to RemoteKey, msg any) error
	// RemoteAsk sends msg to the remote actor and waits for the reply.
	// The wait is bounded by the context deadline when set, by the
	// remoting default timeout otherwise.
	RemoteAsk(ctx context.Context, to RemoteKey, msg any) (any, error)
}

// Address references an actor regardless of where it runs
type Address struct {
	kind     Kind
	local    *actor.PID
	remote   RemoteKey
	remoting Remoting
}

var _ validation.Validator = Address{}

// Local creates the address of an actor running in this process
func Local(pid *actor.PID) Address {
	return Address{kind: LocalKind, local: pid}
}

// Remote creates the address of the actor registered under name on the given peer.
// Messages are carried by sender, usually the local gateway.
func Remote(peerID peer.ID, name string, sender Remoting) Address {
	return Address{
		kind:     RemoteKind,
		remote:   RemoteKey{PeerID: peerID, Name: name},
		remoting: sender,
	}
}

// Parse parses the canonical form of a remote address
func Parse(s string, sender Remoting) (Address, error) {
	rest, ok := strings.CutPrefix(s, scheme+"://")
	if !ok {
		return Address{}, fmt.Errorf("address=(%s): missing %s:// scheme", s, scheme)
	}

	peerPart, name, ok := strings.Cut(rest, "/")
	if !ok || name == "" {
		return Address{}, fmt.Errorf("address=(%s): %w", s, gerrors.ErrNameRequired)
	}

	peerID, err := peer.Decode(peerPart)
	if err != nil {
		return Address{}, fmt.Errorf("address=(%s): invalid peer id: %w", s, err)
	}

	addr := Remote(peerID, name, sender)
	return addr, addr.Validate()
}

// Kind returns the address kind
func (a Address) Kind() Kind {
	return a.kind
}

// PID returns the process id of a local address, nil otherwise
func (a Address) PID() *actor.PID {
	return a.local
}

// RemoteKey returns the key of a remote address, the zero key otherwise
func (a Address) RemoteKey() RemoteKey {
	return a.remote
}

// Name returns the name of the designated actor
func (a Address) Name() string {
	switch a.kind {
	case LocalKind:
		return a.local.Name()
	case RemoteKind:
		return a.remote.Name
	default:
		return ""
	}
}

// ID returns the actor identifier: the PID id of a local actor, peer/name of a remote one.
func (a Address) ID() string {
	switch a.kind {
	case LocalKind:
		return a.local.ID()
	case RemoteKind:
		return a.remote.String()
	default:
		return ""
	}
}

// Equals tells whether both addresses designate the same actor
func (a Address) Equals(other Address) bool {
	return a.kind == other.kind && a.kind != InvalidKind && a.ID() == other.ID()
}

// String returns the canonical form of the address
func (a Address) String() string {
	switch a.kind {
	case LocalKind:
		return fmt.Sprintf("%s://local/%s", scheme, a.local.Name())
	case RemoteKind:
		return fmt.Sprintf("%s://%s", scheme, a.remote.String())
	default:
		return ""
	}
}

// Validate checks that the address can be used to send messages
func (a Address) Validate() error {
	chain := validation.New(validation.FailFast())
	switch a.kind {
	case LocalKind:
		chain.AddAssertion(a.local != nil, "local address requires a PID")
	case RemoteKind:
		chain.
			AddAssertion(a.remote.PeerID.Validate() == nil, "remote address requires a valid peer id").
			AddAssertion(strings.TrimSpace(a.remote.Name) != "", "remote address requires a name").
			AddAssertion(a.remoting != nil, "remote address requires a remoting")
	default:
		chain.AddAssertion(false, "address is not set")
	}
	return chain.Validate()
}

// Tell sends msg to the designated actor without waiting for a reply.
//
// Local messages are enqueued in the target mailbox and keep their send
// order. Remote messages are signed and handed to the remoting on a best
// effort basis: a destination that cannot be located is not reported.
func (a Address) Tell(ctx context.Context, msg any) error {
	switch a.kind {
	case LocalKind:
		return actor.Tell(ctx, a.local, msg)
	case RemoteKind:
		if a.remoting == nil {
			return gerrors.ErrUnreachablePeer
		}
		return a.remoting.RemoteTell(ctx, a.remote, msg)
	default:
		return gerrors.ErrUndefinedActor
	}
}

// Ask sends msg to the designated actor and waits for a reply of type R.
//
// The wait is bounded by the context deadline when set. Otherwise local
// asks use the actor system ask timeout and remote asks the remoting one.
// A remote reply is decoded as *R and dereferenced.
func Ask[R any](ctx context.Context, addr Address, msg any) (R, error) {
	var zero R

	var (
		reply any
		err   error
	)

	switch addr.kind {
	case LocalKind:
		pid := addr.local
		if pid == nil {
			return zero, gerrors.ErrUndefinedActor
		}
		reply, err = actor.Ask(ctx, pid, msg, askTimeout(ctx, pid))
	case RemoteKind:
		if addr.remoting == nil {
			return zero, gerrors.ErrUnreachablePeer
		}
		reply, err = addr.remoting.RemoteAsk(ctx, addr.remote, msg)
	default:
		return zero, gerrors.ErrUndefinedActor
	}

	if err != nil {
		return zero, err
	}
	return as[R](reply)
}

// askTimeout derives the local ask timeout from the context deadline
func askTimeout(ctx context.Context, pid *actor.PID) time.Duration {
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining > 0 {
			return remaining
		}
		return time.Nanosecond
	}
	return pid.ActorSystem().AskTimeout()
}

func as[R any](reply any) (R, error) {
	var zero R
	switch v := reply.(type) {
	case R:
		return v, nil
	case *R:
		if v != nil {
			return *v, nil
		}
	}
	return zero, gerrors.NewErrInvalidMessage(fmt.Errorf("unexpected reply type %T, want %T", reply, zero))
}
