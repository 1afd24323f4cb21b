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
	gerrors "github.com/meshakt/meshakt/errors"
)

// FrameKind tells how the receiving gateway handles a frame
type FrameKind uint8

const (
	// FrameTell carries a fire-and-forget message for a local actor
	FrameTell FrameKind = iota + 1
	// FrameRequest carries a message whose reply is expected under the envelope correlation id
	FrameRequest
	// FrameReply carries the reply to a request
	FrameReply
	// FrameEvent carries a message republished on the receiver's message bus
	FrameEvent
)

// String returns the string representation of the kind
func (k FrameKind) String() string {
	switch k {
	case FrameTell:
		return "tell"
	case FrameRequest:
		return "request"
	case FrameReply:
		return "reply"
	case FrameEvent:
		return "event"
	default:
		return "unknown"
	}
}

// Frame is the unit exchanged between gateways, always inside a signed envelope.
// Payload is the canonical encoding of the user message registered under Type.
type Frame struct {
	Kind    FrameKind   `cbor:"1,keyasint"`
	Target  string      `cbor:"2,keyasint,omitempty"`
	ReplyTo string      `cbor:"3,keyasint,omitempty"`
	Type    string      `cbor:"4,keyasint,omitempty"`
	Payload []byte      `cbor:"5,keyasint,omitempty"`
	Error   *FrameError `cbor:"6,keyasint,omitempty"`
}

// FrameError is the failure of a request reported by the remote handler
type FrameError struct {
	Code    string `cbor:"1,keyasint"`
	Message string `cbor:"2,keyasint"`
}

// HandlerError converts the frame error into the error returned to the requester
func (e *FrameError) HandlerError() *gerrors.HandlerError {
	return gerrors.NewHandlerError(e.Code, e.Message)
}
