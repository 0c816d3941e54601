// Package http3 is the client-side request pipeline: dialing a QUIC
// endpoint, opening a bidirectional stream per request, framing HEADERS/DATA
// onto it, and exposing a response future plus a body reader.
package http3

import (
	"errors"
	"fmt"

	"github.com/quic-go/quic-go"
)

// ErrorCode is an HTTP/3 stream/connection error code, RFC 9114 section 8.1.
type ErrorCode uint64

const (
	ErrCodeNoError           ErrorCode = 0x100
	ErrCodeGeneralProtocol   ErrorCode = 0x101
	ErrCodeInternalError     ErrorCode = 0x102
	ErrCodeStreamCreation    ErrorCode = 0x103
	ErrCodeFrameUnexpected   ErrorCode = 0x105
	ErrCodeFrameError        ErrorCode = 0x106
	ErrCodeExcessiveLoad     ErrorCode = 0x107
	ErrCodeIDError           ErrorCode = 0x108
	ErrCodeSettingsError     ErrorCode = 0x109
	ErrCodeMissingSettings   ErrorCode = 0x10a
	ErrCodeRequestRejected   ErrorCode = 0x10b
	ErrCodeRequestCancelled  ErrorCode = 0x10c
	ErrCodeRequestIncomplete ErrorCode = 0x10d
)

// Kind classifies what the application can do about an Error: retry, treat
// the connection as dead, etc.
type Kind uint8

const (
	// KindPeer: the peer violated the protocol. Non-retriable on the same
	// stream; the connection may remain usable.
	KindPeer Kind = iota
	// KindInternal: a local invariant violation. Should be unreachable.
	KindInternal
	// KindHeaderEncoding: outgoing header block malformed or exceeds a
	// configured limit.
	KindHeaderEncoding
	// KindHeaderDecoding: incoming header block malformed or exceeds a
	// configured limit.
	KindHeaderDecoding
	// KindQuic: a transport-level failure surfaced from the QUIC layer.
	KindQuic
	// KindCryptoAlert: a TLS alert, carrying the one-byte alert code.
	KindCryptoAlert
	// KindConfig: invalid configuration supplied to a builder.
	KindConfig
)

func (k Kind) String() string {
	switch k {
	case KindPeer:
		return "peer"
	case KindInternal:
		return "internal"
	case KindHeaderEncoding:
		return "header encoding"
	case KindHeaderDecoding:
		return "header decoding"
	case KindQuic:
		return "quic"
	case KindCryptoAlert:
		return "crypto alert"
	case KindConfig:
		return "config"
	default:
		return "unknown"
	}
}

// Error is the error type surfaced to applications driving a request.
type Error struct {
	Kind    Kind
	Message string
	Wrapped error
}

func (e *Error) Error() string {
	if e.Wrapped != nil {
		return fmt.Sprintf("http3: %s: %s: %s", e.Kind, e.Message, e.Wrapped)
	}
	return fmt.Sprintf("http3: %s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Wrapped }

func peerErr(msg string) *Error     { return &Error{Kind: KindPeer, Message: msg} }
func internalErr(msg string) *Error { return &Error{Kind: KindInternal, Message: msg} }

func quicErr(msg string, err error) *Error {
	return &Error{Kind: KindQuic, Message: msg, Wrapped: err}
}

func headerEncodingErr(msg string, err error) *Error {
	return &Error{Kind: KindHeaderEncoding, Message: msg, Wrapped: err}
}

func headerDecodingErr(msg string, err error) *Error {
	return &Error{Kind: KindHeaderDecoding, Message: msg, Wrapped: err}
}

// configErr(msg) mirrors qonn.ConfigError for builder-level mistakes that
// are detected in this package rather than in qonn itself.
func configErr(msg string) *Error { return &Error{Kind: KindConfig, Message: msg} }

// requestError is the internal carrier request-handling code paths use to
// decide whether to reset the stream, close the connection, or both.
type requestError struct {
	err       error
	streamErr ErrorCode
	connErr   ErrorCode
}

func newStreamError(code ErrorCode, err error) *requestError {
	return &requestError{err: err, streamErr: code}
}

func newConnError(code ErrorCode, err error) *requestError {
	return &requestError{err: err, connErr: code}
}

func (e *requestError) Error() string { return e.err.Error() }

func (e *requestError) Unwrap() error { return e.err }

// IsQUICApplicationError reports whether err is a quic-go ApplicationError
// carrying the given code, used to recognize peer-initiated resets with a
// specific HTTP/3 error code.
func IsQUICApplicationError(err error, code ErrorCode) bool {
	var appErr *quic.ApplicationError
	if !errors.As(err, &appErr) {
		return false
	}
	return quic.ApplicationErrorCode(code) == appErr.ErrorCode
}
