package qonn

import (
	"crypto/aes"

	"golang.org/x/crypto/chacha20"
)

// headerProtector holds one direction's header-protection key and knows how
// to turn a packet-number-offset sample into a 5-byte mask, per RFC 9001
// section 5.4.
type headerProtector struct {
	suite Suite
	key   []byte
}

func (p headerProtector) mask(sample []byte) [5]byte {
	var out [5]byte
	switch p.suite {
	case SuiteAES128GCM, SuiteAES256GCM:
		block, err := aes.NewCipher(p.key)
		if err != nil {
			panic("qonn: header protection AES key: " + err.Error())
		}
		var buf [16]byte
		block.Encrypt(buf[:], sample)
		copy(out[:], buf[:5])
	case SuiteChaCha20Poly1305:
		// RFC 9001 5.4.4: the sample's first 4 bytes (LE) are the
		// counter, the next 12 are the nonce.
		counter := uint32(sample[0]) | uint32(sample[1])<<8 | uint32(sample[2])<<16 | uint32(sample[3])<<24
		nonce := sample[4:16]
		c, err := chacha20.NewUnauthenticatedCipher(p.key, nonce)
		if err != nil {
			panic("qonn: header protection ChaCha20 key: " + err.Error())
		}
		c.SetCounter(counter)
		var zero [5]byte
		c.XORKeyStream(out[:], zero[:])
	default:
		panic("qonn: unknown suite")
	}
	return out
}

// HeaderKeys protects/unprotects the first byte and packet-number bytes of a
// QUIC packet header by XORing a mask derived from a sample of the
// (already packet-protected) payload, RFC 9001 section 5.4.
type HeaderKeys struct {
	local, remote headerProtector
}

// SampleSize is the number of payload bytes sampled to build the mask: 16
// for every AES and ChaCha20 suite used in TLS 1.3.
func (HeaderKeys) SampleSize() int { return 16 }

// Encrypt applies header protection for a packet this side is sending,
// using the Local direction. pnOffset is the offset of the packet-number
// field within packet; the sample starts 4 bytes after it so that up to a
// 4-byte packet number is always covered. packet[0]'s low bits must already
// hold the true (unmasked) packet-number length.
func (hk HeaderKeys) Encrypt(pnOffset int, packet []byte) {
	mask := hk.local.mask(hk.sample(pnOffset, packet))
	pnLen := int(packet[0]&0x03) + 1
	packet[0] ^= firstByteMask(packet[0], mask[0])
	for i := 0; i < pnLen; i++ {
		packet[pnOffset+i] ^= mask[1+i]
	}
}

// Decrypt reverses Encrypt for a packet this side received, using the
// Remote direction.
func (hk HeaderKeys) Decrypt(pnOffset int, packet []byte) {
	mask := hk.remote.mask(hk.sample(pnOffset, packet))
	packet[0] ^= firstByteMask(packet[0], mask[0])
	pnLen := int(packet[0]&0x03) + 1
	for i := 0; i < pnLen; i++ {
		packet[pnOffset+i] ^= mask[1+i]
	}
}

func (hk HeaderKeys) sample(pnOffset int, packet []byte) []byte {
	sampleOffset := pnOffset + 4
	return packet[sampleOffset : sampleOffset+hk.SampleSize()]
}

// firstByteMask returns the bits of mask[0] that actually apply to the first
// byte: long headers protect only the low 4 bits, short headers the low 5
// (RFC 9001 section 5.4.1).
func firstByteMask(firstByte, maskByte byte) byte {
	if firstByte&0x80 != 0 {
		return maskByte & 0x0f
	}
	return maskByte & 0x1f
}
