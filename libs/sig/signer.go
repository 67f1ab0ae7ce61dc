// Package sig signs and verifies short messages with rotating HMAC keys.
package sig

import (
	"crypto/hmac"
	"crypto/sha256"
	"hash"

	"github.com/voicescribe/backend/libs/errors"
)

// Signer generates and verifies HMAC signatures. The first key is used for
// signing; all keys are tried during verification so old signatures remain
// valid across key rotation.
type Signer struct {
	keys [][]byte
	hash func() hash.Hash
}

// NewSigner returns a Signer using the provided keys. The hash function
// defaults to SHA-256 when h is nil.
func NewSigner(keys [][]byte, h func() hash.Hash) (*Signer, error) {
	if len(keys) == 0 {
		return nil, errors.New("sig: at least one key is required")
	}
	for _, k := range keys {
		if len(k) == 0 {
			return nil, errors.New("sig: empty key")
		}
	}
	if h == nil {
		h = sha256.New
	}
	return &Signer{keys: keys, hash: h}, nil
}

// Sign returns the signature of msg using the latest key.
func (s *Signer) Sign(msg []byte) ([]byte, error) {
	m := hmac.New(s.hash, s.keys[0])
	if _, err := m.Write(msg); err != nil {
		return nil, errors.Trace(err)
	}
	return m.Sum(nil), nil
}

// Verify returns true if sig is a valid signature of msg by any known key.
func (s *Signer) Verify(msg, sig []byte) bool {
	for _, k := range s.keys {
		m := hmac.New(s.hash, k)
		m.Write(msg)
		if hmac.Equal(sig, m.Sum(nil)) {
			return true
		}
	}
	return false
}
