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
	"fmt"

	"github.com/fxamacker/cbor/v2"

	gerrors "github.com/meshakt/meshakt/errors"
	"github.com/meshakt/meshakt/internal/types"
)

var (
	// canonical encoding: sorted map keys, shortest-form numbers, definite lengths
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	if encMode, err = cbor.CoreDetEncOptions().EncMode(); err != nil {
		panic(err)
	}

	decOpts := cbor.DecOptions{
		DupMapKey:       cbor.DupMapKeyEnforcedAPF,
		IndefLength:     cbor.IndefLengthForbidden,
		MaxNestedLevels: 64,
	}
	if decMode, err = decOpts.DecMode(); err != nil {
		panic(err)
	}
}

// Canonical returns the deterministic CBOR encoding of v.
// Two equal values always produce the same bytes.
func Canonical(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

// Decode decodes canonical CBOR bytes into v
func Decode(data []byte, v any) error {
	return decMode.Unmarshal(data, v)
}

// RegisterTypes makes the given message types known to the codec so that they can
// travel inside frames. Pass a value or a pointer of each type.
func RegisterTypes(values ...any) {
	for _, value := range values {
		types.GlobalRegistry.Register(value)
	}
}

// TypeName returns the wire name of the type of message
func TypeName(message any) string {
	return types.TypeName(message)
}

// EncodePayload returns the wire name and canonical bytes of a registered message
func EncodePayload(message any) (string, []byte, error) {
	if message == nil {
		return "", nil, gerrors.ErrInvalidMessage
	}

	name := types.TypeName(message)
	if !types.GlobalRegistry.Exists(message) {
		return "", nil, gerrors.NewErrTypeNotRegistered(name)
	}

	data, err := Canonical(message)
	if err != nil {
		return "", nil, fmt.Errorf("failed to encode %s: %w", name, err)
	}
	return name, data, nil
}

// DecodePayload rebuilds a message from its wire name and bytes.
// The returned value is always a pointer to the registered type.
func DecodePayload(name string, data []byte) (any, error) {
	message, ok := types.GlobalRegistry.New(name)
	if !ok {
		return nil, gerrors.NewErrTypeNotRegistered(name)
	}

	if err := Decode(data, message); err != nil {
		return nil, gerrors.NewErrInvalidMessage(fmt.Errorf("failed to decode %s: %w", name, err))
	}
	return message, nil
}
