package http3

import (
	"bytes"
	"fmt"

	"github.com/quic-go/qpack"
)

// Header is a single decoded or to-be-encoded header field.
type Header struct {
	Name, Value string
}

// encodeHeaders QPACK-encodes fields into a single header block.
func encodeHeaders(fields []Header) ([]byte, error) {
	var buf bytes.Buffer
	enc := qpack.NewEncoder(&buf)
	for _, f := range fields {
		if err := enc.WriteField(qpack.HeaderField{Name: f.Name, Value: f.Value}); err != nil {
			return nil, headerEncodingErr(fmt.Sprintf("encoding field %q", f.Name), err)
		}
	}
	return buf.Bytes(), nil
}

// decodeHeaders fully decodes a HEADERS frame payload against the
// connection-shared dynamic table.
//
// qonn's deployments only ever run with QPACKMaxTableCapacity 0 (see
// DefaultSettings): no dynamic table insertions are ever made, so
// DecodeFull never blocks on an encoder-stream insert that hasn't arrived
// yet. A connection that raised QPACKMaxTableCapacity above zero would need
// full RFC 9204 "blocked streams" bookkeeping (tracking required insert
// count per header block, buffering until the encoder stream catches up);
// that scope decision is recorded in DESIGN.md.
func decodeHeaders(dec *qpack.Decoder, headerBlock []byte) ([]Header, error) {
	fields, err := dec.DecodeFull(headerBlock)
	if err != nil {
		return nil, headerDecodingErr("decoding QPACK header block", err)
	}
	out := make([]Header, 0, len(fields))
	for _, f := range fields {
		out = append(out, Header{Name: f.Name, Value: f.Value})
	}
	return out, nil
}

// newDecoder builds the connection-shared QPACK decoder. The onDecode
// callback is left a no-op: decodeHeaders always uses DecodeFull's return
// value rather than the streaming callback.
func newDecoder() *qpack.Decoder {
	return qpack.NewDecoder(func(qpack.HeaderField) {})
}
