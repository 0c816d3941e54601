package http3

import (
	"io"
	"sync"

	"github.com/quic-go/quic-go"
)

// BodyReader streams a response (or, in a fuller trailers-supporting
// implementation, request) body off a single quic.Stream, recognizing DATA
// frames. Any other frame in the body is treated as a connection error
// (FRAME_UNEXPECTED) and ends reading with a peer error.
type BodyReader struct {
	stream quic.Stream
	onConn func(applicationErrorCode ErrorCode, reason string)

	mu        sync.Mutex
	remaining uint64 // bytes left in the DATA frame currently being read
	done      bool
}

func newBodyReader(stream quic.Stream, onProtocolError func(ErrorCode, string)) *BodyReader {
	return &BodyReader{stream: stream, onConn: onProtocolError}
}

// Read implements io.Reader, transparently hopping from one DATA frame to
// the next and returning io.EOF once the peer has sent FIN.
func (b *BodyReader) Read(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.done {
		return 0, io.EOF
	}
	if b.remaining == 0 {
		frame, err := parseNextFrame(b.stream)
		if err != nil {
			if err == io.EOF {
				b.done = true
			}
			return 0, err
		}
		df, ok := frame.(DataFrame)
		if !ok {
			// Anything other than DATA here (another HEADERS frame, i.e.
			// trailers) is unsupported; treat it as a protocol violation on
			// the connection.
			b.done = true
			if b.onConn != nil {
				b.onConn(ErrCodeFrameUnexpected, "unexpected frame in response body")
			}
			return 0, peerErr("unexpected frame in response body")
		}
		b.remaining = df.Length
		if b.remaining == 0 {
			return b.Read(p)
		}
	}
	if uint64(len(p)) > b.remaining {
		p = p[:b.remaining]
	}
	n, err := b.stream.Read(p)
	b.remaining -= uint64(n)
	return n, err
}

// Close cancels reading with REQUEST_CANCELLED.
func (b *BodyReader) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.done {
		b.stream.CancelRead(quic.StreamErrorCode(ErrCodeRequestCancelled))
		b.done = true
	}
	return nil
}

// BodyWriter frames an outgoing request body onto the send half of the
// stream SendRequest already used for HEADERS, and closes it (sends FIN)
// once the caller is done.
type BodyWriter struct {
	stream quic.SendStream
	mu     sync.Mutex
	closed bool
	sent   uint64
}

func newBodyWriter(stream quic.SendStream) *BodyWriter {
	return &BodyWriter{stream: stream}
}

// Write frames p as a DATA frame. Every call produces its own frame; a
// caller writing in small increments pays a few bytes of framing overhead
// per call versus writing the whole body at once.
func (w *BodyWriter) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := WriteDataFrame(w.stream, p); err != nil {
		return 0, err
	}
	w.sent += uint64(len(p))
	return len(p), nil
}

// BytesSent returns the total payload bytes framed onto the stream so far,
// not counting DATA frame headers.
func (w *BodyWriter) BytesSent() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.sent
}

// Close sends FIN on the stream, signaling the request body is complete.
func (w *BodyWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	return w.stream.Close()
}

// Cancel resets the send side with code, for abandoning a request body
// mid-write.
func (w *BodyWriter) Cancel(code ErrorCode) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	w.stream.CancelWrite(quic.StreamErrorCode(code))
}
