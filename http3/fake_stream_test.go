package http3

import (
	"bytes"
	"context"
	"time"

	"github.com/quic-go/quic-go"
)

// fakeStream is a minimal quic.Stream double: reads come from an in-memory
// buffer, writes go to one, and CancelRead/CancelWrite just record what
// they were called with. Good enough to drive RecvResponse/BodyReader/
// BodyWriter without a real QUIC connection.
type fakeStream struct {
	readBuf       *bytes.Buffer
	writeBuf      bytes.Buffer
	canceledRead  *quic.StreamErrorCode
	canceledWrite *quic.StreamErrorCode
	ctx           context.Context
	cancel        context.CancelFunc
}

func newFakeStream(data []byte) *fakeStream {
	ctx, cancel := context.WithCancel(context.Background())
	return &fakeStream{readBuf: bytes.NewBuffer(data), ctx: ctx, cancel: cancel}
}

func (s *fakeStream) StreamID() quic.StreamID { return quic.StreamID(0) }

func (s *fakeStream) Read(p []byte) (int, error) { return s.readBuf.Read(p) }

func (s *fakeStream) CancelRead(code quic.StreamErrorCode) { s.canceledRead = &code }

func (s *fakeStream) SetReadDeadline(time.Time) error { return nil }

func (s *fakeStream) Write(p []byte) (int, error) { return s.writeBuf.Write(p) }

func (s *fakeStream) Close() error { s.cancel(); return nil }

func (s *fakeStream) CancelWrite(code quic.StreamErrorCode) { s.canceledWrite = &code; s.cancel() }

func (s *fakeStream) Context() context.Context { return s.ctx }

func (s *fakeStream) SetWriteDeadline(time.Time) error { return nil }

func (s *fakeStream) SetDeadline(time.Time) error { return nil }

var _ quic.Stream = (*fakeStream)(nil)
