package http3

import (
	"fmt"
	"io"

	"github.com/quic-go/quic-go/quicvarint"
)

// Settings identifiers, RFC 9114 section 7.2.4.1 and RFC 9204 (QPACK)
// section 5.
const (
	settingsQPACKMaxTableCapacity uint64 = 0x1
	settingsMaxFieldSectionSize   uint64 = 0x6
	settingsQPACKBlockedStreams   uint64 = 0x7
)

// Settings carries the per-connection limits exchanged on the control
// stream before any request stream is usable.
type Settings struct {
	MaxHeaderListSize     uint64
	QPACKMaxTableCapacity uint64
	QPACKBlockedStreams   uint64
}

// DefaultSettings matches quic-go's http3 defaults: no cap on header list
// size, no dynamic table, no blocked-streams budget. A connection that only
// wants static-table QPACK never needs to raise these.
func DefaultSettings() Settings {
	return Settings{
		MaxHeaderListSize:     0,
		QPACKMaxTableCapacity: 0,
		QPACKBlockedStreams:   0,
	}
}

// Write encodes s as a SETTINGS frame (type 0x4) onto w.
func (s Settings) Write(w io.Writer) error {
	var payload []byte
	if s.MaxHeaderListSize > 0 {
		payload = quicvarint.Append(payload, settingsMaxFieldSectionSize)
		payload = quicvarint.Append(payload, s.MaxHeaderListSize)
	}
	if s.QPACKMaxTableCapacity > 0 {
		payload = quicvarint.Append(payload, settingsQPACKMaxTableCapacity)
		payload = quicvarint.Append(payload, s.QPACKMaxTableCapacity)
	}
	if s.QPACKBlockedStreams > 0 {
		payload = quicvarint.Append(payload, settingsQPACKBlockedStreams)
		payload = quicvarint.Append(payload, s.QPACKBlockedStreams)
	}
	buf := writeFrameHeader(nil, FrameTypeSettings, uint64(len(payload)))
	buf = append(buf, payload...)
	_, err := w.Write(buf)
	return err
}

// ReadSettings parses a SETTINGS frame body already stripped of its frame
// header (length bytes), ignoring unknown identifiers per RFC 9114
// section 7.2.4.
func ReadSettings(r io.Reader, length uint64) (Settings, error) {
	s := Settings{}
	lr := io.LimitReader(r, int64(length))
	br := quicvarint.NewReader(lr)
	var consumed uint64
	for consumed < length {
		id, err := quicvarint.Read(br)
		if err != nil {
			return s, quicErr("reading settings identifier", err)
		}
		val, err := quicvarint.Read(br)
		if err != nil {
			return s, quicErr("reading settings value", err)
		}
		switch id {
		case settingsMaxFieldSectionSize:
			s.MaxHeaderListSize = val
		case settingsQPACKMaxTableCapacity:
			s.QPACKMaxTableCapacity = val
		case settingsQPACKBlockedStreams:
			s.QPACKBlockedStreams = val
		}
		consumed = length - uint64(lr.(*io.LimitedReader).N)
	}
	if consumed != length {
		return s, peerErr(fmt.Sprintf("SETTINGS frame length mismatch: declared %d, consumed %d", length, consumed))
	}
	return s, nil
}

// readControlStreamSettings reads the first frame on a control stream and
// requires it to be SETTINGS, per RFC 9114 section 6.2.1 ("first frame
// sent on the control stream MUST be SETTINGS"). r must be positioned just
// after the stream type varint that identified this as the control stream.
func readControlStreamSettings(r io.Reader) (Settings, error) {
	frame, err := parseNextControlFrame(r)
	if err != nil {
		return Settings{}, err
	}
	sf, ok := frame.(settingsFrame)
	if !ok {
		return Settings{}, newConnError(ErrCodeMissingSettings, peerErr("first control stream frame was not SETTINGS"))
	}
	return sf.Settings, nil
}

// settingsFrame wraps Settings so parseNextControlFrame can return it
// through the Frame sum type alongside HeadersFrame/DataFrame without
// settings.go and frame.go needing to know about each other's internals.
type settingsFrame struct{ Settings Settings }

func (settingsFrame) isFrame() {}

// parseNextControlFrame is parseNextFrame's counterpart for the
// control stream, where SETTINGS (and, in a fuller implementation,
// GOAWAY/MAX_PUSH_ID) appear instead of HEADERS/DATA.
func parseNextControlFrame(r io.Reader) (Frame, error) {
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
		if ft == FrameTypeSettings {
			s, err := ReadSettings(r, length)
			if err != nil {
				return nil, err
			}
			return settingsFrame{Settings: s}, nil
		}
		if isGrease(ft) {
			if _, err := io.CopyN(io.Discard, r, int64(length)); err != nil {
				return nil, err
			}
			continue
		}
		return nil, newConnError(ErrCodeMissingSettings, peerErr(fmt.Sprintf("expected SETTINGS as first control stream frame, got type %#x", t)))
	}
}
