package http3

import (
	"bytes"
	"io"
	"testing"
)

func TestWriteHeadersFrameThenParse(t *testing.T) {
	var buf bytes.Buffer
	block := []byte{0x00, 0x00, ':', 's'}
	if err := WriteHeadersFrame(&buf, block); err != nil {
		t.Fatalf("WriteHeadersFrame: %s", err)
	}

	frame, err := parseNextFrame(&buf)
	if err != nil {
		t.Fatalf("parseNextFrame: %s", err)
	}
	hf, ok := frame.(HeadersFrame)
	if !ok {
		t.Fatalf("expected HeadersFrame, got %T", frame)
	}
	if hf.Length != uint64(len(block)) {
		t.Fatalf("length mismatch: got %d, want %d", hf.Length, len(block))
	}
	payload := make([]byte, hf.Length)
	if _, err := io.ReadFull(&buf, payload); err != nil {
		t.Fatalf("reading payload: %s", err)
	}
	if !bytes.Equal(payload, block) {
		t.Fatalf("payload mismatch: got %x, want %x", payload, block)
	}
}

func TestParseNextFrameSkipsGreaseFrames(t *testing.T) {
	var buf bytes.Buffer
	// A grease frame type (0x21) with a 3-byte payload, then a real DATA frame.
	buf.Write(writeFrameHeader(nil, FrameType(0x21), 3))
	buf.Write([]byte{1, 2, 3})
	if err := WriteDataFrame(&buf, []byte("hi")); err != nil {
		t.Fatalf("WriteDataFrame: %s", err)
	}

	frame, err := parseNextFrame(&buf)
	if err != nil {
		t.Fatalf("parseNextFrame: %s", err)
	}
	df, ok := frame.(DataFrame)
	if !ok {
		t.Fatalf("expected DataFrame after skipping grease, got %T", frame)
	}
	if df.Length != 2 {
		t.Fatalf("length mismatch: got %d, want 2", df.Length)
	}
}

func TestParseNextFrameRejectsUnexpectedType(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(writeFrameHeader(nil, FrameTypeSettings, 0))
	if _, err := parseNextFrame(&buf); err == nil {
		t.Fatal("expected an error for a SETTINGS frame on a request stream")
	}
}

func TestIsGrease(t *testing.T) {
	cases := []struct {
		t    FrameType
		want bool
	}{
		{0x21, true},
		{0x40, true},
		{0x5f, true},
		{FrameTypeData, false},
		{FrameTypeHeaders, false},
		{0x20, false},
	}
	for _, c := range cases {
		if got := isGrease(c.t); got != c.want {
			t.Errorf("isGrease(%#x) = %v, want %v", c.t, got, c.want)
		}
	}
}
