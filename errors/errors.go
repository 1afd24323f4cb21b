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

package errors

import (
	"errors"
	"fmt"
)

var (
	// ErrAuthenticity is returned when a signed envelope fails signature or
	// sender identity verification.
	ErrAuthenticity = errors.New("envelope authenticity check failed")

	// ErrNotVerified is returned when the payload of an envelope is accessed
	// before the envelope has been successfully verified.
	ErrNotVerified = errors.New("envelope has not been verified")

	// ErrUnreachablePeer is returned when a destination peer or named actor cannot be located or dialed.
	ErrUnreachablePeer = errors.New("peer is unreachable")

	// ErrNameNotFound is returned when a name cannot be resolved by the directory.
	ErrNameNotFound = errors.New("name not found")

	// ErrProtocolMismatch is returned when a remote peer announces an incompatible protocol version.
	ErrProtocolMismatch = errors.New("protocol version mismatch")

	// ErrDead indicates that the actor is no longer alive or has been terminated.
	ErrDead = errors.New("actor is not alive")

	// ErrKilled is the failure recorded when an actor is forcibly terminated.
	ErrKilled = errors.New("actor killed")

	// ErrDisconnected is the failure recorded when a peer an actor depends on is lost.
	ErrDisconnected = errors.New("peer disconnected")

	// ErrRequestTimeout indicates that a request timed out while waiting for a response.
	ErrRequestTimeout = errors.New("request timed out")

	// ErrInvalidTimeout is returned when a timeout value is less than or equal to zero.
	ErrInvalidTimeout = errors.New("invalid timeout")

	// ErrActorNotFound indicates that the specified actor could not be found in the system.
	ErrActorNotFound = errors.New("actor not found")

	// ErrActorAlreadyExists is returned when spawning an actor under a name already in use.
	ErrActorAlreadyExists = errors.New("actor already exists")

	// ErrUndefinedActor is returned when an actor reference is undefined.
	ErrUndefinedActor = errors.New("actor is not defined")

	// ErrUnhandled is the Ask failure of a message the receiving actor does not handle.
	ErrUnhandled = errors.New("unhandled message")

	// ErrReservedName is returned when spawning an actor under a name reserved by the runtime.
	ErrReservedName = errors.New("actor name is reserved")

	// ErrNameRequired is returned when a name is required but not provided.
	ErrNameRequired = errors.New("name is required")

	// ErrInvalidMessage indicates that a message is structurally or semantically invalid.
	ErrInvalidMessage = errors.New("invalid message")

	// ErrTypeNotRegistered is returned when a message type has not been registered with the codec.
	ErrTypeNotRegistered = errors.New("message type is not registered")

	// ErrInitFailure is returned when the actor's PreStart hook fails during initialization.
	ErrInitFailure = errors.New("preStart failed")

	// ErrActorSystemNotStarted indicates that an actor system has not been started before use.
	ErrActorSystemNotStarted = errors.New("actor system is not running")

	// ErrGatewayNotRegistered is returned when the gateway is used before it has been started.
	ErrGatewayNotRegistered = errors.New("gateway is not registered")

	// ErrOverlayClosed is returned when the overlay node has been shut down.
	ErrOverlayClosed = errors.New("overlay is closed")

	// ErrInvalidConfig is returned when the configuration fails validation.
	ErrInvalidConfig = errors.New("invalid configuration")
)

// Handler error codes carried across the wire
const (
	// CodeHandlerFailed is used when the target handler replied with an error
	CodeHandlerFailed = "handler_failed"
	// CodeActorNotFound is used when the target actor is not registered on the receiving node
	CodeActorNotFound = "actor_not_found"
	// CodeTimeout is used when the target handler did not reply in time
	CodeTimeout = "timeout"
	// CodeDecode is used when the request payload could not be decoded
	CodeDecode = "decode_failed"
)

// NewErrActorNotFound formats an ErrActorNotFound with the given actor name.
func NewErrActorNotFound(name string) error {
	return fmt.Errorf("(actor=%s) %w", name, ErrActorNotFound)
}

// NewErrActorAlreadyExists formats an ErrActorAlreadyExists for the given actor name.
func NewErrActorAlreadyExists(name string) error {
	return fmt.Errorf("actor=(%s) %w", name, ErrActorAlreadyExists)
}

// NewErrTypeNotRegistered formats an ErrTypeNotRegistered for the given type name.
func NewErrTypeNotRegistered(typeName string) error {
	return fmt.Errorf("type=(%s) %w", typeName, ErrTypeNotRegistered)
}

// NewErrNameNotFound formats an ErrNameNotFound for the given directory name.
func NewErrNameNotFound(name string) error {
	return fmt.Errorf("name=(%s) %w", name, ErrNameNotFound)
}

// NewErrInitFailure wraps a base error with ErrInitFailure to indicate a startup failure.
func NewErrInitFailure(err error) error {
	return errors.Join(ErrInitFailure, err)
}

// NewErrInvalidMessage wraps a base error with ErrInvalidMessage for additional context.
func NewErrInvalidMessage(err error) error {
	return errors.Join(ErrInvalidMessage, err)
}

// HandlerError is the failure reported by a remote handler in reply to a request.
// It travels inside a reply frame and is surfaced to the requester as is.
type HandlerError struct {
	Code    string
	Message string
}

// enforce compilation error
var _ error = (*HandlerError)(nil)

// NewHandlerError creates a HandlerError
func NewHandlerError(code, message string) *HandlerError {
	return &HandlerError{Code: code, Message: message}
}

// Error implements the standard error interface
func (e *HandlerError) Error() string {
	return fmt.Sprintf("remote handler error (code=%s): %s", e.Code, e.Message)
}

// TransportError records a failed overlay operation against a peer.
type TransportError struct {
	Op   string
	Peer string
	Err  error
}

// enforce compilation error
var _ error = (*TransportError)(nil)

// NewTransportError creates a TransportError
func NewTransportError(op, peer string, err error) *TransportError {
	return &TransportError{Op: op, Peer: peer, Err: err}
}

// Error implements the standard error interface
func (e *TransportError) Error() string {
	return fmt.Sprintf("transport %s (peer=%s): %v", e.Op, e.Peer, e.Err)
}

// Unwrap returns the underlying error
func (e *TransportError) Unwrap() error {
	return e.Err
}

// IdentityError is returned when the persisted node identity cannot be loaded or stored.
// It is fatal: a node never silently replaces a key it cannot read.
type IdentityError struct {
	Path string
	Err  error
}

// enforce compilation error
var _ error = (*IdentityError)(nil)

// NewIdentityError creates an IdentityError
func NewIdentityError(path string, err error) *IdentityError {
	return &IdentityError{Path: path, Err: err}
}

// Error implements the standard error interface
func (e *IdentityError) Error() string {
	return fmt.Sprintf("identity (path=%s): %v", e.Path, e.Err)
}

// Unwrap returns the underlying error
func (e *IdentityError) Unwrap() error {
	return e.Err
}

// PanicError defines the panic error
// wrapping the underlying error
type PanicError struct {
	err error
}

// enforce compilation error
var _ error = (*PanicError)(nil)

// NewPanicError creates an instance of PanicError
func NewPanicError(err error) *PanicError {
	return &PanicError{err}
}

// Error implements the standard error interface
func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.err)
}

// Unwrap returns the underlying error
func (e *PanicError) Unwrap() error {
	return e.err
}
