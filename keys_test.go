package qonn

import (
	"bytes"
	"testing"

	"github.com/oxidize-dev/qonn/internal/protocol"
)

func TestInitialKeysClientServerAreInverse(t *testing.T) {
	dcid := protocol.ConnectionID{0x83, 0x94, 0xc8, 0xf0, 0x3e, 0x51, 0x57, 0x08}

	client := NewInitialKeys(dcid, protocol.SideClient)
	server := NewInitialKeys(dcid, protocol.SideServer)

	plaintext := []byte("hello from the client")
	header := []byte{0x01, 0x02, 0x03, 0x04}

	buf := append([]byte{}, header...)
	buf = append(buf, plaintext...)
	sealed := client.Encrypt(1, buf, len(header))

	opened, err := server.Decrypt(1, sealed[:len(header)], sealed[len(header):])
	if err != nil {
		t.Fatalf("server failed to decrypt what the client encrypted: %s", err)
	}
	if !bytes.Equal(opened, plaintext) {
		t.Fatalf("round trip mismatch: got %q, want %q", opened, plaintext)
	}
}

func TestDecryptWrongPacketNumberIsOpaque(t *testing.T) {
	dcid := protocol.ConnectionID{1, 2, 3, 4, 5, 6, 7, 8}
	client := NewInitialKeys(dcid, protocol.SideClient)
	server := NewInitialKeys(dcid, protocol.SideServer)

	header := []byte{0xaa, 0xbb}
	plaintext := []byte("payload")
	buf := append(append([]byte{}, header...), plaintext...)
	sealed := client.Encrypt(5, buf, len(header))

	_, err := server.Decrypt(6, sealed[:len(header)], sealed[len(header):])
	if err != ErrDecryptFailed {
		t.Fatalf("expected opaque ErrDecryptFailed for wrong packet number, got %v", err)
	}
}

func TestUpdateKeysChangesBothDirections(t *testing.T) {
	dcid := protocol.ConnectionID{9, 9, 9, 9}
	k1 := NewInitialKeys(dcid, protocol.SideClient)
	k2 := UpdateKeys(k1)

	if bytes.Equal(k1.Local.secret, k2.Local.secret) {
		t.Fatalf("UpdateKeys did not change the local secret")
	}
	if bytes.Equal(k1.Remote.secret, k2.Remote.secret) {
		t.Fatalf("UpdateKeys did not change the remote secret")
	}
}

func TestSuiteFromTLS(t *testing.T) {
	cases := []struct {
		id      uint16
		want    Suite
		wantErr bool
	}{
		{TLSAES128GCMSHA256, SuiteAES128GCM, false},
		{TLSAES256GCMSHA384, SuiteAES256GCM, false},
		{TLSChaCha20Poly1305SHA256, SuiteChaCha20Poly1305, false},
		{0x1304, 0, true},
	}
	for _, c := range cases {
		got, err := SuiteFromTLS(c.id)
		if c.wantErr {
			if err == nil {
				t.Errorf("SuiteFromTLS(%#x): expected error, got none", c.id)
			}
			continue
		}
		if err != nil {
			t.Errorf("SuiteFromTLS(%#x): unexpected error: %s", c.id, err)
		}
		if got != c.want {
			t.Errorf("SuiteFromTLS(%#x) = %v, want %v", c.id, got, c.want)
		}
	}
}

func TestHeaderProtectionRoundTrip(t *testing.T) {
	dcid := protocol.ConnectionID{1, 1, 1, 1}
	client := NewInitialKeys(dcid, protocol.SideClient)
	server := NewInitialKeys(dcid, protocol.SideServer)

	// A minimal long-header packet: first byte, 4 more header bytes, a
	// 4-byte packet number at offset 5, then enough payload for the sample
	// (which starts at offset 9) to read from.
	packet := make([]byte, 5+1+20)
	packet[0] = 0xc3 // long header, low bits claim a 4-byte packet number
	pnOffset := 5

	protected := make([]byte, len(packet))
	copy(protected, packet)
	client.HeaderKeys().Encrypt(pnOffset, protected)
	if bytes.Equal(protected, packet) {
		t.Fatalf("Encrypt did not change the packet at all")
	}

	recovered := make([]byte, len(protected))
	copy(recovered, protected)
	server.HeaderKeys().Decrypt(pnOffset, recovered)
	if recovered[0] != packet[0] {
		t.Fatalf("first byte not recovered: got %#x want %#x", recovered[0], packet[0])
	}
}
