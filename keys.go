package qonn

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/binary"
	"fmt"
	"hash"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"

	"github.com/oxidize-dev/qonn/internal/protocol"
)

// Suite names the negotiated AEAD/hash pair. TLS 1.3 over QUIC is limited to
// these three per RFC 9001 section 5.
type Suite uint8

const (
	SuiteAES128GCM Suite = iota
	SuiteAES256GCM
	SuiteChaCha20Poly1305
)

// hashFunc returns the negotiated hash for HKDF derivations: SHA-384 for
// TLS_AES_256_GCM_SHA384, SHA-256 for the other two suites.
func (s Suite) hashFunc() func() hash.Hash {
	switch s {
	case SuiteAES256GCM:
		return sha512.New384
	default:
		return sha256.New
	}
}

// TLS 1.3 cipher suite identifiers, RFC 8446 appendix B.4. Exported so a
// Session implementation can map the suite ID crypto/tls hands it in a
// QUICSetReadSecret/QUICSetWriteSecret event onto a Suite.
const (
	TLSAES128GCMSHA256       uint16 = 0x1301
	TLSAES256GCMSHA384       uint16 = 0x1302
	TLSChaCha20Poly1305SHA256 uint16 = 0x1303
)

// SuiteFromTLS maps a TLS 1.3 cipher suite id onto a Suite, failing if the
// suite isn't one of the three RFC 9001 permits.
func SuiteFromTLS(id uint16) (Suite, error) {
	switch id {
	case TLSAES128GCMSHA256:
		return SuiteAES128GCM, nil
	case TLSAES256GCMSHA384:
		return SuiteAES256GCM, nil
	case TLSChaCha20Poly1305SHA256:
		return SuiteChaCha20Poly1305, nil
	default:
		return 0, fmt.Errorf("qonn: cipher suite %#x is not valid for TLS 1.3 over QUIC", id)
	}
}

func (s Suite) keyLen() int {
	switch s {
	case SuiteAES128GCM:
		return 16
	case SuiteAES256GCM, SuiteChaCha20Poly1305:
		return 32
	default:
		panic("qonn: unknown suite")
	}
}

func (s Suite) newAEAD(key []byte) (cipher.AEAD, error) {
	switch s {
	case SuiteAES128GCM, SuiteAES256GCM:
		block, err := aes.NewCipher(key)
		if err != nil {
			return nil, err
		}
		return cipher.NewGCM(block)
	case SuiteChaCha20Poly1305:
		return chacha20poly1305.New(key)
	default:
		return nil, fmt.Errorf("qonn: unknown suite %d", s)
	}
}

// initialSalt is the QUIC v1 initial salt, RFC 9001 section 5.2.
var initialSalt = []byte{
	0x38, 0x76, 0x2c, 0xf7, 0xf5, 0x59, 0x34, 0xb3,
	0x4d, 0x17, 0x9a, 0xe6, 0xa4, 0xc8, 0x0c, 0xad,
	0xcc, 0xbb, 0x7f, 0x0a,
}

// AEADKeys bundles one direction's packet-protection state: the AEAD for
// payload encryption/decryption, the 12-byte IV it XORs with the packet
// number to form a nonce, the traffic secret used to derive the next key
// generation, and the header-protection subkey.
type AEADKeys struct {
	suite     Suite
	secret    []byte
	aead      cipher.AEAD
	iv        []byte
	headerKey []byte
}

func deriveAEADKeys(suite Suite, secret []byte) AEADKeys {
	keyLen := suite.keyLen()
	key := hkdfExpandLabel(suite.hashFunc(), secret, "quic key", nil, keyLen)
	iv := hkdfExpandLabel(suite.hashFunc(), secret, "quic iv", nil, 12)
	hpKeyLen := keyLen
	hpKey := hkdfExpandLabel(suite.hashFunc(), secret, "quic hp", nil, hpKeyLen)
	aead, err := suite.newAEAD(key)
	if err != nil {
		panic(fmt.Sprintf("qonn: deriving AEAD: %s", err))
	}
	return AEADKeys{suite: suite, secret: secret, aead: aead, iv: iv, headerKey: hpKey}
}

// Keys is a phase's packet-protection key pair: Local for packets this side
// sends, Remote for packets this side receives. A Keys instance is only
// produced at phase boundaries; the two directions are never mixed across
// phases.
type Keys struct {
	Local, Remote AEADKeys
}

// NewInitialKeys deterministically derives the Initial key pair from the
// original destination connection id, per RFC 9001 section 5.2. Same inputs
// always produce the same outputs.
func NewInitialKeys(dcid protocol.ConnectionID, side protocol.Side) *Keys {
	initialSecret := hkdf.Extract(sha256.New, []byte(dcid), initialSalt)
	clientSecret := hkdfExpandLabel(sha256.New, initialSecret, "client in", nil, sha256.Size)
	serverSecret := hkdfExpandLabel(sha256.New, initialSecret, "server in", nil, sha256.Size)

	clientKeys := deriveAEADKeys(SuiteAES128GCM, clientSecret)
	serverKeys := deriveAEADKeys(SuiteAES128GCM, serverSecret)

	if side == protocol.SideClient {
		return &Keys{Local: clientKeys, Remote: serverKeys}
	}
	return &Keys{Local: serverKeys, Remote: clientKeys}
}

// NewKeysFromSecrets builds a Keys pair from traffic secrets the TLS key
// schedule already produced (handshake or 1-RTT secrets), as opposed to the
// salt-derived Initial secrets NewInitialKeys computes. This is what a
// Session implementation calls each time write_handshake crosses a phase
// boundary.
func NewKeysFromSecrets(suite Suite, localSecret, remoteSecret []byte) *Keys {
	return &Keys{
		Local:  deriveAEADKeys(suite, localSecret),
		Remote: deriveAEADKeys(suite, remoteSecret),
	}
}

// nonce builds the per-packet AEAD nonce: the IV with the low bits XORed by
// the packet number, RFC 9001 section 5.3.
func nonce(iv []byte, pn protocol.PacketNumber) []byte {
	n := make([]byte, len(iv))
	copy(n, iv)
	var pnBytes [8]byte
	binary.BigEndian.PutUint64(pnBytes[:], uint64(pn))
	for i := 0; i < 8; i++ {
		n[len(n)-8+i] ^= pnBytes[i]
	}
	return n
}

// Encrypt authenticates and encrypts buf[header_len:] in place using the
// Local direction, with buf[:header_len] as associated data. The caller
// must ensure buf has TagLen() bytes of spare capacity; the returned slice
// has the tag appended.
func (k *Keys) Encrypt(pn protocol.PacketNumber, buf []byte, headerLen int) []byte {
	aad := buf[:headerLen]
	plaintext := buf[headerLen:]
	sealed := k.Local.aead.Seal(plaintext[:0], nonce(k.Local.iv, pn), plaintext, aad)
	return append(buf[:headerLen], sealed...)
}

// Decrypt authenticates and decrypts payload in place using the Remote
// direction, with header as associated data. On success the returned slice
// is the plaintext, sharing payload's backing array and TagLen() bytes
// shorter than payload. On failure the opaque ErrDecryptFailed is
// returned and payload must be discarded by the caller without further
// inspection.
func (k *Keys) Decrypt(pn protocol.PacketNumber, header []byte, payload []byte) ([]byte, error) {
	opened, err := k.Remote.aead.Open(payload[:0], nonce(k.Remote.iv, pn), payload, header)
	if err != nil {
		return nil, ErrDecryptFailed
	}
	return opened, nil
}

// TagLen is the AEAD authentication tag length for the negotiated suite: 16
// bytes for every TLS 1.3 QUIC suite.
func (k *Keys) TagLen() int {
	return k.Local.aead.Overhead()
}

// HeaderKeys derives the header-protection subkeys for both directions from
// this phase's packet-protection keys.
func (k *Keys) HeaderKeys() HeaderKeys {
	return HeaderKeys{
		local:  headerProtector{suite: k.Local.suite, key: k.Local.headerKey},
		remote: headerProtector{suite: k.Remote.suite, key: k.Remote.headerKey},
	}
}

// UpdateKeys derives the next 1-RTT key pair from the current one via
// HKDF-Expand-Label with the "quic ku" label over both traffic secrets, RFC
// 9001 section 6. This is the pure derivation a Session.UpdateKeys
// implementation builds on; it doesn't touch handshake or phase state.
func UpdateKeys(current *Keys) *Keys {
	nextLocal := hkdfExpandLabel(current.Local.suite.hashFunc(), current.Local.secret, "quic ku", nil, len(current.Local.secret))
	nextRemote := hkdfExpandLabel(current.Remote.suite.hashFunc(), current.Remote.secret, "quic ku", nil, len(current.Remote.secret))
	return &Keys{
		Local:  deriveAEADKeys(current.Local.suite, nextLocal),
		Remote: deriveAEADKeys(current.Remote.suite, nextRemote),
	}
}

// hkdfExpandLabel implements TLS 1.3's HKDF-Expand-Label (RFC 8446 section
// 7.1), which both the initial-secret derivation and the "quic key"/"quic
// iv"/"quic hp"/"quic ku" labels build on.
func hkdfExpandLabel(newHash func() hash.Hash, secret []byte, label string, context []byte, length int) []byte {
	fullLabel := "tls13 " + label
	info := make([]byte, 0, 2+1+len(fullLabel)+1+len(context))
	info = append(info, byte(length>>8), byte(length))
	info = append(info, byte(len(fullLabel)))
	info = append(info, fullLabel...)
	info = append(info, byte(len(context)))
	info = append(info, context...)

	out := make([]byte, length)
	r := hkdf.Expand(newHash, secret, info)
	if _, err := r.Read(out); err != nil {
		panic(fmt.Sprintf("qonn: HKDF-Expand-Label: %s", err))
	}
	return out
}
