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

package validation

import (
	"fmt"
	"strings"

	"github.com/libp2p/go-libp2p/core/peer"
	ma "github.com/multiformats/go-multiaddr"
)

type multiaddrValidator struct {
	address  string
	withPeer bool
}

// NewMultiaddrValidator fails when address is not a parseable multiaddr
func NewMultiaddrValidator(address string) Validator {
	return &multiaddrValidator{address: address}
}

// NewPeerAddrValidator fails when address is not a multiaddr ending with a /p2p/<peer-id> component
func NewPeerAddrValidator(address string) Validator {
	return &multiaddrValidator{address: address, withPeer: true}
}

// Validate implements Validator
func (v multiaddrValidator) Validate() error {
	addr, err := ma.NewMultiaddr(strings.TrimSpace(v.address))
	if err != nil {
		return fmt.Errorf("invalid multiaddr=(%s): %w", v.address, err)
	}

	if v.withPeer {
		if _, err := peer.AddrInfoFromP2pAddr(addr); err != nil {
			return fmt.Errorf("invalid peer address=(%s): %w", v.address, err)
		}
	}
	return nil
}
