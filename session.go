// Package qonn is the cryptographic abstraction layer that sits between the
// QUIC connection machinery and a pluggable TLS 1.3 session: key-schedule
// lifecycle (Initial -> Handshake -> 1-RTT, with optional 0-RTT), AEAD packet
// protection, header protection, and HMAC signing for stateless tokens.
//
// The one concrete Session implementation lives in the sibling tlssession
// package, wrapping Go's crypto/tls QUIC support. qonn itself only defines
// the contract.
package qonn

import (
	"github.com/oxidize-dev/qonn/internal/protocol"
)

// Phase is a Session's handshake phase. It never goes backwards: Initial ->
// Handshake -> OneRTT -> Closed.
type Phase uint8

const (
	PhaseInitial Phase = iota
	PhaseHandshake
	PhaseOneRTT
	PhaseClosed
)

func (p Phase) String() string {
	switch p {
	case PhaseInitial:
		return "Initial"
	case PhaseHandshake:
		return "Handshake"
	case PhaseOneRTT:
		return "1-RTT"
	case PhaseClosed:
		return "Closed"
	default:
		return "unknown"
	}
}

// Session is a byte-oriented TLS 1.3 handshake with side-channel outputs:
// packet-protection keys at phase boundaries, negotiated ALPN, peer
// transport parameters, and (client-only) 0-RTT support. Implementations
// choose static or dynamic dispatch freely; qonn only requires this
// interface.
type Session interface {
	// Side reports which end of the connection this session represents.
	Side() protocol.Side

	// Phase reports the current handshake phase. Monotonic: never returns
	// an earlier phase than a previous call.
	Phase() Phase

	// ReadHandshake consumes a CRYPTO-frame payload (offset-ordered,
	// already reassembled by the transport). Idempotent on nil/empty
	// input. Fails with a TransportError carrying CryptoError(alert) when
	// the underlying TLS engine raises an alert, or ProtocolViolation
	// otherwise.
	ReadHandshake(data []byte) error

	// WriteHandshake appends any pending outbound handshake bytes to buf
	// (returning the extended slice) and, if this call crosses into the
	// next key phase, the fresh key pair for that phase.
	WriteHandshake(buf []byte) ([]byte, *Keys, error)

	// ALPNProtocol returns the negotiated ALPN identifier. Only
	// meaningful after the first peer flight has been processed.
	ALPNProtocol() ([]byte, bool)

	// TransportParameters returns the peer's decoded transport
	// parameters, once available. A decode failure is a protocol
	// violation.
	TransportParameters() (*TransportParameters, error)

	// SNIHostname is server-only; always ("", false) for a client
	// session.
	SNIHostname() (string, bool)

	// EarlyCrypto yields 0-RTT keys on the client, iff a resumption
	// secret is cached from a previous session to this server. Must be
	// called before the first WriteHandshake.
	EarlyCrypto() (*Keys, bool)

	// EarlyDataAccepted reports whether the server accepted 0-RTT data.
	// Client-only; meaningful only once the handshake has completed (or
	// the server has rejected early data). Before that the second result
	// is false.
	EarlyDataAccepted() (bool, bool)

	// IsHandshaking returns false once the key phase has reached 1-RTT
	// and the peer's Finished message has been processed.
	IsHandshaking() bool

	// UpdateKeys derives the next 1-RTT key pair from current via
	// HKDF-Expand-Label over both traffic secrets, using the negotiated
	// hash. Direction mapping is side-dependent: a client's Local secret
	// is the TLS "client" secret, a server's Local secret is the TLS
	// "server" secret.
	UpdateKeys(current *Keys) (*Keys, error)

	// PeerCertificates returns the peer's validated DER certificate
	// chain, once validated.
	PeerCertificates() ([][]byte, bool)
}
