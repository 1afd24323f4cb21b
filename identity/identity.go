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

package identity

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/peer"

	gerrors "github.com/meshakt/meshakt/errors"
)

// KeyFileName is the name of the private key file kept in the data directory
const KeyFileName = "identity.key"

const (
	keyFileMode fs.FileMode = 0o600
	dirMode     fs.FileMode = 0o700
)

// Identity is the node's long-lived Ed25519 keypair and the peer id derived from it.
// It is created once at startup and passed explicitly to the components that sign.
type Identity struct {
	privKey     crypto.PrivKey
	pubKey      crypto.PubKey
	pubKeyBytes []byte
	peerID      peer.ID
}

// New creates an Identity from an existing private key
func New(privKey crypto.PrivKey) (*Identity, error) {
	if privKey == nil {
		return nil, errors.New("private key is required")
	}

	pubKey := privKey.GetPublic()
	pubKeyBytes, err := crypto.MarshalPublicKey(pubKey)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal public key: %w", err)
	}

	peerID, err := peer.IDFromPublicKey(pubKey)
	if err != nil {
		return nil, fmt.Errorf("failed to derive peer id: %w", err)
	}

	return &Identity{
		privKey:     privKey,
		pubKey:      pubKey,
		pubKeyBytes: pubKeyBytes,
		peerID:      peerID,
	}, nil
}

// Generate creates a fresh in-memory Identity
func Generate() (*Identity, error) {
	privKey, _, err := crypto.GenerateEd25519Key(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}
	return New(privKey)
}

// Initialize loads the identity persisted under dataDir, creating it on first use.
// A key file that exists but cannot be read or decoded yields an *errors.IdentityError;
// it is never overwritten.
func Initialize(dataDir string) (*Identity, error) {
	path := filepath.Join(dataDir, KeyFileName)

	raw, err := os.ReadFile(path)
	switch {
	case err == nil:
		privKey, err := crypto.UnmarshalPrivateKey(raw)
		if err != nil {
			return nil, gerrors.NewIdentityError(path, err)
		}
		id, err := New(privKey)
		if err != nil {
			return nil, gerrors.NewIdentityError(path, err)
		}
		return id, nil
	case errors.Is(err, fs.ErrNotExist):
		return create(dataDir, path)
	default:
		return nil, gerrors.NewIdentityError(path, err)
	}
}

// create generates a new key and writes it to path through a temporary file
func create(dataDir, path string) (*Identity, error) {
	id, err := Generate()
	if err != nil {
		return nil, gerrors.NewIdentityError(path, err)
	}

	raw, err := crypto.MarshalPrivateKey(id.privKey)
	if err != nil {
		return nil, gerrors.NewIdentityError(path, err)
	}

	if err := os.MkdirAll(dataDir, dirMode); err != nil {
		return nil, gerrors.NewIdentityError(path, err)
	}

	tmp, err := os.CreateTemp(dataDir, KeyFileName+".*.tmp")
	if err != nil {
		return nil, gerrors.NewIdentityError(path, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := writeKey(tmp, raw); err != nil {
		return nil, gerrors.NewIdentityError(path, err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		return nil, gerrors.NewIdentityError(path, err)
	}
	return id, nil
}

func writeKey(file *os.File, raw []byte) error {
	if err := file.Chmod(keyFileMode); err != nil {
		_ = file.Close()
		return err
	}
	if _, err := file.Write(raw); err != nil {
		_ = file.Close()
		return err
	}
	if err := file.Sync(); err != nil {
		_ = file.Close()
		return err
	}
	return file.Close()
}

// PeerID returns the peer id derived from the public key
func (i *Identity) PeerID() peer.ID {
	return i.peerID
}

// PublicKey returns the public key
func (i *Identity) PublicKey() crypto.PubKey {
	return i.pubKey
}

// PublicKeyBytes returns the libp2p-marshalled public key
func (i *Identity) PublicKeyBytes() []byte {
	out := make([]byte, len(i.pubKeyBytes))
	copy(out, i.pubKeyBytes)
	return out
}

// PrivateKey returns the private key. It is meant for the overlay host only.
func (i *Identity) PrivateKey() crypto.PrivKey {
	return i.privKey
}

// Sign signs data with the private key
func (i *Identity) Sign(data []byte) ([]byte, error) {
	return i.privKey.Sign(data)
}

// Verify reports whether sig is a valid signature of data by the libp2p-marshalled publicKey.
// Malformed keys or signatures yield false.
func Verify(data, sig, publicKey []byte) bool {
	pubKey, err := crypto.UnmarshalPublicKey(publicKey)
	if err != nil {
		return false
	}
	ok, err := pubKey.Verify(data, sig)
	return err == nil && ok
}

// DerivePeerID returns the peer id of the libp2p-marshalled publicKey
func DerivePeerID(publicKey []byte) (peer.ID, error) {
	pubKey, err := crypto.UnmarshalPublicKey(publicKey)
	if err != nil {
		return "", err
	}
	return peer.IDFromPublicKey(pubKey)
}
