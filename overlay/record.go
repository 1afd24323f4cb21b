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
	"errors"
	"fmt"

	"github.com/libp2p/go-libp2p/core/peer"
	record "github.com/libp2p/go-libp2p-record"

	"github.com/meshakt/meshakt/envelope"
	gerrors "github.com/meshakt/meshakt/errors"
)

const (
	recordNamespace = "meshakt"
	maxRecordSize   = 64 << 10
)

// ErrInvalidRecord is returned for a directory record that does not verify
// or does not match the key it is stored under
var ErrInvalidRecord = errors.New("invalid directory record")

// Entry is the signed content of a directory record.
// The signer of the record is the peer serving the name.
type Entry struct {
	Name    string   `cbor:"1,keyasint"`
	Addrs   []string `cbor:"2,keyasint,omitempty"`
	Seq     uint64   `cbor:"3,keyasint"`
	Deleted bool     `cbor:"4,keyasint,omitempty"`
}

// RecordKey returns the DHT key of name
func RecordKey(name string) string {
	return "/" + recordNamespace + "/" + name
}

// SealRecord signs entry into its wire form
func SealRecord(signer envelope.Signer, entry Entry) ([]byte, error) {
	env, err := envelope.Wrap(signer, entry, nil)
	if err != nil {
		return nil, err
	}
	return env.Marshal()
}

// OpenRecord verifies a record and returns its entry and owner
func OpenRecord(value []byte) (Entry, peer.ID, error) {
	if len(value) > maxRecordSize {
		return Entry{}, "", fmt.Errorf("%w: %d bytes", ErrInvalidRecord, len(value))
	}

	env, err := envelope.Unmarshal[Entry](value)
	if err != nil {
		return Entry{}, "", errors.Join(ErrInvalidRecord, err)
	}
	if !env.Verify() {
		return Entry{}, "", errors.Join(ErrInvalidRecord, gerrors.ErrAuthenticity)
	}

	entry, err := env.Unwrap()
	if err != nil {
		return Entry{}, "", errors.Join(ErrInvalidRecord, err)
	}
	owner, err := env.Sender()
	if err != nil {
		return Entry{}, "", errors.Join(ErrInvalidRecord, err)
	}
	return entry, owner, nil
}

// RecordValidator checks directory records stored in the DHT.
// A record is valid when its signature verifies, its key derives the signer
// peer id and it is stored under the key of its name. The highest Seq wins.
type RecordValidator struct{}

var _ record.Validator = RecordValidator{}

// Validate implements record.Validator
func (RecordValidator) Validate(key string, value []byte) error {
	entry, _, err := OpenRecord(value)
	if err != nil {
		return err
	}
	if RecordKey(entry.Name) != key {
		return fmt.Errorf("%w: record of name=(%s) stored under key=(%s)", ErrInvalidRecord, entry.Name, key)
	}
	return nil
}

// Select implements record.Validator
func (v RecordValidator) Select(key string, values [][]byte) (int, error) {
	best := -1
	var bestSeq uint64
	for i, value := range values {
		if v.Validate(key, value) != nil {
			continue
		}
		entry, _, _ := OpenRecord(value)
		if best < 0 || entry.Seq > bestSeq {
			best = i
			bestSeq = entry.Seq
		}
	}

	if best < 0 {
		return 0, fmt.Errorf("%w: no valid record under key=(%s)", ErrInvalidRecord, key)
	}
	return best, nil
}
