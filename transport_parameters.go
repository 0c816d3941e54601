package qonn

import (
	"bytes"
	"fmt"
	"io"

	"github.com/quic-go/quic-go/quicvarint"
)

// TransportParameters is the decoded form of the opaque octet sequence the
// TLS handshake extension carries (RFC 9000 section 18). qonn only models
// the handful of parameters the HTTP/3 client pipeline actually consumes;
// unknown parameters are preserved verbatim so round-tripping a peer's set
// doesn't silently drop fields it didn't understand.
type TransportParameters struct {
	InitialMaxStreamsBidi uint64
	InitialMaxStreamsUni  uint64
	MaxIdleTimeoutMs      uint64
	MaxUDPPayloadSize     uint64
	ActiveConnectionIDs   uint64

	// Unknown holds any (id, value) pairs not recognized above, keyed by
	// their varint id, so Write can reproduce them.
	Unknown map[uint64][]byte
}

// transport parameter ids used by this module, RFC 9000 section 18.2.
const (
	tpInitialMaxStreamsBidi     = 0x08
	tpInitialMaxStreamsUni      = 0x09
	tpMaxIdleTimeout            = 0x01
	tpMaxUDPPayloadSize         = 0x03
	tpActiveConnectionIDLimit   = 0x0e
)

// Write serializes the parameters as a TLV sequence of (varint id, varint
// length, value) tuples, the wire shape `wire.TransportParameters.Marshal`
// uses in quic-go.
func (p *TransportParameters) Write() []byte {
	var buf []byte
	writeParam := func(id, value uint64) {
		buf = quicvarint.Append(buf, id)
		var v []byte
		v = quicvarint.Append(v, value)
		buf = quicvarint.Append(buf, uint64(len(v)))
		buf = append(buf, v...)
	}
	writeParam(tpInitialMaxStreamsBidi, p.InitialMaxStreamsBidi)
	writeParam(tpInitialMaxStreamsUni, p.InitialMaxStreamsUni)
	writeParam(tpMaxIdleTimeout, p.MaxIdleTimeoutMs)
	writeParam(tpMaxUDPPayloadSize, p.MaxUDPPayloadSize)
	writeParam(tpActiveConnectionIDLimit, p.ActiveConnectionIDs)
	for id, v := range p.Unknown {
		buf = quicvarint.Append(buf, id)
		buf = quicvarint.Append(buf, uint64(len(v)))
		buf = append(buf, v...)
	}
	return buf
}

// ReadTransportParameters parses the TLV sequence Write produces. A
// malformed sequence is a protocol violation, per Session.TransportParameters.
func ReadTransportParameters(data []byte) (*TransportParameters, error) {
	r := bytes.NewReader(data)
	tp := &TransportParameters{Unknown: map[uint64][]byte{}}
	for r.Len() > 0 {
		id, err := quicvarint.Read(r)
		if err != nil {
			return nil, ProtocolViolation(fmt.Sprintf("transport parameters: reading id: %s", err))
		}
		length, err := quicvarint.Read(r)
		if err != nil {
			return nil, ProtocolViolation(fmt.Sprintf("transport parameters: reading length: %s", err))
		}
		value := make([]byte, length)
		if _, err := io.ReadFull(r, value); err != nil {
			return nil, ProtocolViolation(fmt.Sprintf("transport parameters: reading value: %s", err))
		}
		switch id {
		case tpInitialMaxStreamsBidi:
			tp.InitialMaxStreamsBidi, err = quicvarint.Read(bytes.NewReader(value))
		case tpInitialMaxStreamsUni:
			tp.InitialMaxStreamsUni, err = quicvarint.Read(bytes.NewReader(value))
		case tpMaxIdleTimeout:
			tp.MaxIdleTimeoutMs, err = quicvarint.Read(bytes.NewReader(value))
		case tpMaxUDPPayloadSize:
			tp.MaxUDPPayloadSize, err = quicvarint.Read(bytes.NewReader(value))
		case tpActiveConnectionIDLimit:
			tp.ActiveConnectionIDs, err = quicvarint.Read(bytes.NewReader(value))
		default:
			tp.Unknown[id] = value
		}
		if err != nil {
			return nil, ProtocolViolation(fmt.Sprintf("transport parameters: decoding id %#x: %s", id, err))
		}
	}
	return tp, nil
}
