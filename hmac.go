package qonn

import (
	"crypto/hmac"
	"crypto/sha256"
	"fmt"
)

// HmacKeyLen is the fixed input key length HmacKey.New requires, sized for
// a SHA-256-based key.
const HmacKeyLen = 32

// HmacKey is fixed-length signing used for stateless retry tokens and
// similar. There is no third-party HMAC implementation in the retrieval
// pack more suitable than stdlib crypto/hmac for this narrow a concern
// (see DESIGN.md); the pack's AEAD/HKDF dependencies above cover the parts
// of the crypto surface where the ecosystem materially helps.
type HmacKey struct {
	key []byte
}

// NewHmacKey constructs an HmacKey, failing with a ConfigError if key is not
// exactly HmacKeyLen bytes.
func NewHmacKey(key []byte) (*HmacKey, error) {
	if len(key) != HmacKeyLen {
		return nil, &ConfigError{Reason: fmt.Sprintf("hmac key must be %d bytes, got %d", HmacKeyLen, len(key))}
	}
	k := make([]byte, HmacKeyLen)
	copy(k, key)
	return &HmacKey{key: k}, nil
}

// Sign returns the HMAC-SHA256 tag over data.
func (k *HmacKey) Sign(data []byte) []byte {
	mac := hmac.New(sha256.New, k.key)
	mac.Write(data)
	return mac.Sum(nil)
}

// Verify checks signature against data in constant time. Failure is the
// opaque ErrVerifyFailed; callers must treat it as "unauthenticated token",
// never branch on the underlying mismatch.
func (k *HmacKey) Verify(data, signature []byte) error {
	expected := k.Sign(data)
	if !hmac.Equal(expected, signature) {
		return ErrVerifyFailed
	}
	return nil
}
