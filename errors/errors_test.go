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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrors(t *testing.T) {
	err := errors.New("something went wrong")

	panicErr := NewPanicError(err)
	require.EqualError(t, panicErr, "panic: something went wrong")
	assert.ErrorIs(t, panicErr, err)

	transportErr := NewTransportError("send", "12D3KooWpeer", err)
	require.EqualError(t, transportErr, "transport send (peer=12D3KooWpeer): something went wrong")
	assert.ErrorIs(t, transportErr, err)

	identityErr := NewIdentityError("/tmp/identity.key", err)
	require.EqualError(t, identityErr, "identity (path=/tmp/identity.key): something went wrong")
	assert.ErrorIs(t, identityErr, err)

	handlerErr := NewHandlerError(CodeHandlerFailed, "boom")
	require.EqualError(t, handlerErr, "remote handler error (code=handler_failed): boom")

	var target *HandlerError
	wrapped := errors.Join(ErrRequestTimeout, handlerErr)
	require.ErrorAs(t, wrapped, &target)
	assert.Equal(t, "boom", target.Message)

	assert.ErrorIs(t, NewErrActorNotFound("echo"), ErrActorNotFound)
	assert.ErrorIs(t, NewErrActorAlreadyExists("echo"), ErrActorAlreadyExists)
	assert.ErrorIs(t, NewErrTypeNotRegistered("*main.ping"), ErrTypeNotRegistered)
	assert.ErrorIs(t, NewErrNameNotFound("gateway-x"), ErrNameNotFound)
	assert.ErrorIs(t, NewErrInitFailure(err), ErrInitFailure)
	assert.ErrorIs(t, NewErrInvalidMessage(err), err)
}
