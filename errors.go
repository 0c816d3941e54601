package qonn

import "fmt"

// TransportErrorCode is the RFC 9001 error space surfaced by a Session.
// Crypto alerts occupy 0x100-0x1ff (CRYPTO_ERROR base + alert code), the
// same layout quic-go's qerr package uses.
type TransportErrorCode uint64

const (
	// ErrNoError is the zero value; never constructed by read/write_handshake.
	ErrNoError TransportErrorCode = 0x0
	// ErrProtocolViolation covers any local-invariant failure the crypto
	// engine can't attribute to a specific TLS alert.
	ErrProtocolViolation TransportErrorCode = 0xa
	cryptoErrorBase      TransportErrorCode = 0x100
)

// CryptoError builds the transport-error code for TLS alert `alert`, per
// RFC 9001 section 4.8.
func CryptoError(alert uint8) TransportErrorCode {
	return cryptoErrorBase + TransportErrorCode(alert)
}

// IsCrypto reports whether this code falls in the crypto-alert range, and if
// so returns the one-byte TLS alert it encodes.
func (c TransportErrorCode) IsCrypto() (alert uint8, ok bool) {
	if c < cryptoErrorBase || c > cryptoErrorBase+0xff {
		return 0, false
	}
	return uint8(c - cryptoErrorBase), true
}

// TransportError is returned by Session.ReadHandshake and
// Session.TransportParameters when the peer (or a local decode) violates the
// protocol. It is never constructed for decrypt failures, which stay opaque
// per spec.
type TransportError struct {
	Code   TransportErrorCode
	Reason string
}

func (e *TransportError) Error() string {
	if alert, ok := e.Code.IsCrypto(); ok {
		return fmt.Sprintf("crypto alert %d: %s", alert, e.Reason)
	}
	return fmt.Sprintf("transport error %#x: %s", uint64(e.Code), e.Reason)
}

// ProtocolViolation builds a TransportError not attributable to a specific
// TLS alert, e.g. a malformed transport-parameters extension.
func ProtocolViolation(reason string) *TransportError {
	return &TransportError{Code: ErrProtocolViolation, Reason: reason}
}

// CryptoAlertError builds a TransportError carrying a TLS alert code, the
// shape Session.ReadHandshake must produce when the underlying TLS engine
// raises an alert.
func CryptoAlertError(alert uint8, reason string) *TransportError {
	return &TransportError{Code: CryptoError(alert), Reason: reason}
}

// ConfigError is returned by builders and HmacKey.New when the caller
// supplies an invalid configuration value (bad DNS name, bad certificate,
// wrong HMAC key length).
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string { return "qonn: invalid configuration: " + e.Reason }

// ErrDecryptFailed is the opaque sentinel returned by Keys.Decrypt. It
// intentionally carries no structured detail about *why* decryption failed:
// leaking that risks an AEAD oracle. Callers must treat any non-nil error
// from Decrypt as "discard this packet silently", never branch on it.
var ErrDecryptFailed = fmt.Errorf("qonn: packet authentication failed")

// ErrVerifyFailed is the HmacKey.Verify counterpart to ErrDecryptFailed:
// an opaque "this token is not authentic", never structured detail.
var ErrVerifyFailed = fmt.Errorf("qonn: hmac verification failed")
