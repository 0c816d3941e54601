package http3

import (
	"fmt"
	"io"

	"github.com/quic-go/quic-go/quicvarint"
)

// FrameType is an HTTP/3 frame type id, RFC 9114 section 7.2.
type FrameType uint64

const (
	FrameTypeData     FrameType = 0x0
	FrameTypeHeaders  FrameType = 0x1
	FrameTypeSettings FrameType = 0x4
)

// isGrease reports whether t is a reserved frame type used for greasing,
// RFC 9114 section 7.2.8: type = 0x1f * N + 0x21 for non-negative N.
func isGrease(t FrameType) bool {
	return t >= 0x21 && (uint64(t)-0x21)%0x1f == 0
}

// HeadersFrame announces the length of a following QPACK header block. The
// caller reads exactly Length bytes, from the same reader, after receiving
// this.
type HeadersFrame struct {
	Length uint64
}

// DataFrame carries a chunk of request/response body. Length bytes follow,
// to be read from the same reader.
type DataFrame struct {
	Length uint64
}

// Frame is the sum type parseNextFrame returns.
type Frame interface{ isFrame() }

func (HeadersFrame) isFrame() {}
func (DataFrame) isFrame()    {}

// parseNextFrame reads one frame header from r (a quic.Stream or any
// io.Reader positioned at a frame boundary), silently skipping and
// discarding any number of grease frames first. It returns io.EOF if the
// stream ended before a frame header was read.
func parseNextFrame(r io.Reader) (Frame, error) {
	for {
		t, err := quicvarint.Read(quicvarint.NewReader(r))
		if err != nil {
			return nil, err
		}
		length, err := quicvarint.Read(quicvarint.NewReader(r))
		if err != nil {
			return nil, err
		}
		ft := FrameType(t)
		switch ft {
		case FrameTypeHeaders:
			return HeadersFrame{Length: length}, nil
		case FrameTypeData:
			return DataFrame{Length: length}, nil
		default:
			if isGrease(ft) {
				if _, err := io.CopyN(io.Discard, r, int64(length)); err != nil {
					return nil, err
				}
				continue
			}
			return nil, fmt.Errorf("http3: unexpected frame type %#x before HEADERS", t)
		}
	}
}

// writeFrameHeader appends a frame type + length varint pair to buf.
func writeFrameHeader(buf []byte, t FrameType, length uint64) []byte {
	buf = quicvarint.Append(buf, uint64(t))
	buf = quicvarint.Append(buf, length)
	return buf
}

// WriteHeadersFrame writes a HEADERS frame header (type+length) followed by
// the already-encoded QPACK header block.
func WriteHeadersFrame(w io.Writer, headerBlock []byte) error {
	buf := writeFrameHeader(nil, FrameTypeHeaders, uint64(len(headerBlock)))
	buf = append(buf, headerBlock...)
	_, err := w.Write(buf)
	return err
}

// WriteDataFrame writes a DATA frame header followed by payload.
func WriteDataFrame(w io.Writer, payload []byte) error {
	buf := writeFrameHeader(nil, FrameTypeData, uint64(len(payload)))
	buf = append(buf, payload...)
	_, err := w.Write(buf)
	return err
}
