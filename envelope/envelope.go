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

package envelope

import (
	"bytes"
	"fmt"

	"github.com/google/uuid"
	"github.com/libp2p/go-libp2p/core/peer"

	gerrors "github.com/meshakt/meshakt/errors"
	"github.com/meshakt/meshakt/identity"
)

// TaskID correlates an outbound request with its reply
type TaskID string

// NewTaskID returns a fresh random TaskID
func NewTaskID() TaskID {
	return TaskID(uuid.NewString())
}

// String returns the string form of the id
func (id TaskID) String() string {
	return string(id)
}

// Signer produces signatures on behalf of a peer
type Signer interface {
	Sign(data []byte) ([]byte, error)
	PublicKeyBytes() []byte
	PeerID() peer.ID
}

// enforce compilation error
var _ Signer = (*identity.Identity)(nil)

// SignedEnvelope wraps a payload with the signature of its canonical encoding,
// the signer's public key and peer id, and an optional correlation id.
// The payload can only be read back through Unwrap after Verify succeeded.
type SignedEnvelope[T any] struct {
	Inner         T       `cbor:"1,keyasint"`
	Signature     []byte  `cbor:"2,keyasint"`
	PublicKey     []byte  `cbor:"3,keyasint"`
	SenderPeerID  string  `cbor:"4,keyasint"`
	CorrelationID *TaskID `cbor:"5,keyasint,omitempty"`

	verified []byte
}

// Wrap signs inner with signer and returns the resulting envelope
func Wrap[T any](signer Signer, inner T, correlationID *TaskID) (*SignedEnvelope[T], error) {
	payload, err := Canonical(inner)
	if err != nil {
		return nil, fmt.Errorf("failed to encode payload: %w", err)
	}

	signature, err := signer.Sign(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to sign payload: %w", err)
	}

	var correlation *TaskID
	if correlationID != nil {
		id := *correlationID
		correlation = &id
	}

	return &SignedEnvelope[T]{
		Inner:         inner,
		Signature:     signature,
		PublicKey:     signer.PublicKeyBytes(),
		SenderPeerID:  signer.PeerID().String(),
		CorrelationID: correlation,
	}, nil
}

// Verify reports whether the signature covers the payload and the embedded
// public key belongs to SenderPeerID. It says nothing about authorization.
func (e *SignedEnvelope[T]) Verify() bool {
	e.verified = nil

	payload, err := Canonical(e.Inner)
	if err != nil {
		return false
	}

	if !identity.Verify(payload, e.Signature, e.PublicKey) {
		return false
	}

	peerID, err := identity.DerivePeerID(e.PublicKey)
	if err != nil || peerID.String() != e.SenderPeerID {
		return false
	}

	e.verified = payload
	return true
}

// Unwrap returns the payload of a verified envelope.
// It returns errors.ErrNotVerified when Verify has not succeeded or the payload
// changed since.
func (e *SignedEnvelope[T]) Unwrap() (T, error) {
	var zero T
	if e.verified == nil {
		return zero, gerrors.ErrNotVerified
	}

	payload, err := Canonical(e.Inner)
	if err != nil || !bytes.Equal(payload, e.verified) {
		return zero, gerrors.ErrNotVerified
	}
	return e.Inner, nil
}

// Sender returns the peer id of the signer
func (e *SignedEnvelope[T]) Sender() (peer.ID, error) {
	return peer.Decode(e.SenderPeerID)
}

// Marshal returns the wire form of the envelope
func (e *SignedEnvelope[T]) Marshal() ([]byte, error) {
	return Canonical(e)
}

// Unmarshal decodes an envelope from its wire form. The result is unverified.
func Unmarshal[T any](data []byte) (*SignedEnvelope[T], error) {
	out := new(SignedEnvelope[T])
	if err := Decode(data, out); err != nil {
		return nil, gerrors.NewErrInvalidMessage(err)
	}
	return out, nil
}
