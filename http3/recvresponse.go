package http3

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"

	"github.com/quic-go/qpack"
	"github.com/quic-go/quic-go"
)

// recvState is RecvResponse's three-phase lifecycle: a response is first
// a raw stream waiting for its HEADERS frame (Receiving), then a header
// block being turned into a *http.Response (Decoding), and once that's
// done the RecvResponse itself is spent (Finished). Polling it again is
// a caller bug, not a retriable error. The state lives behind an
// explicit mutex since there's no single-owner guarantee across calls.
type recvState uint8

const (
	recvStateReceiving recvState = iota
	recvStateDecoding
	recvStateFinished
)

// RecvResponse is the not-yet-resolved response half of a request:
// Connection.SendRequest returns one immediately, before any bytes of the
// response have necessarily arrived. Wait drives it to completion.
type RecvResponse struct {
	mu             sync.Mutex
	state          recvState
	stream         quic.Stream
	decoder        *qpack.Decoder
	maxHeaderBytes uint64
	headerLen      uint64
	requestGzip    bool
	onConnError    func(ErrorCode, string)
}

func newRecvResponse(stream quic.Stream, decoder *qpack.Decoder, maxHeaderBytes uint64, requestGzip bool, onConnError func(ErrorCode, string)) *RecvResponse {
	return &RecvResponse{
		state:          recvStateReceiving,
		stream:         stream,
		decoder:        decoder,
		maxHeaderBytes: maxHeaderBytes,
		requestGzip:    requestGzip,
		onConnError:    onConnError,
	}
}

// Cancel abandons the response before it's finished, resetting the receive
// stream with REQUEST_CANCELLED. It's a no-op once the response has
// already reached Finished, and covers both Receiving and Decoding since
// a caller-driven Cancel can legitimately interrupt either phase.
func (r *RecvResponse) Cancel() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == recvStateFinished {
		return
	}
	r.stream.CancelRead(quic.StreamErrorCode(ErrCodeRequestCancelled))
	r.state = recvStateFinished
}

// Wait blocks until the first HEADERS frame has arrived and been fully
// QPACK-decoded, then returns the resulting *http.Response (Body unset;
// use BodyReader for that) and the stream reader for the body. Calling
// Wait again after it has returned is a programmer error, surfaced as a
// KindInternal error rather than silently re-running.
func (r *RecvResponse) Wait() (*http.Response, io.ReadCloser, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch r.state {
	case recvStateFinished:
		return nil, nil, internalErr("recv response polled after finish")
	case recvStateDecoding:
		// Not reached in practice: Wait holds the mutex across the whole
		// transition and every exit from Decoding sets Finished. Resuming
		// here reads the headerLen-byte header block below.
	case recvStateReceiving:
		frame, err := parseNextFrame(r.stream)
		if err != nil {
			r.state = recvStateFinished
			if err == io.EOF {
				return nil, nil, peerErr("received an empty response")
			}
			return nil, nil, quicErr("reading response", err)
		}
		hf, ok := frame.(HeadersFrame)
		if !ok {
			r.stream.CancelRead(quic.StreamErrorCode(ErrCodeFrameUnexpected))
			r.state = recvStateFinished
			if r.onConnError != nil {
				r.onConnError(ErrCodeFrameUnexpected, "expected first frame to be HEADERS")
			}
			return nil, nil, newConnError(ErrCodeFrameUnexpected, peerErr("expected first frame to be HEADERS"))
		}
		if r.maxHeaderBytes > 0 && hf.Length > r.maxHeaderBytes {
			r.stream.CancelRead(quic.StreamErrorCode(ErrCodeExcessiveLoad))
			r.state = recvStateFinished
			return nil, nil, newStreamError(ErrCodeExcessiveLoad, peerErr(fmt.Sprintf("HEADERS frame too large: %d bytes (max %d)", hf.Length, r.maxHeaderBytes)))
		}
		r.state = recvStateDecoding
		r.headerLen = hf.Length
	}

	block := make([]byte, r.headerLen)
	if _, err := io.ReadFull(r.stream, block); err != nil {
		r.state = recvStateFinished
		return nil, nil, newStreamError(ErrCodeRequestIncomplete, err)
	}
	fields, err := decodeHeaders(r.decoder, block)
	if err != nil {
		r.state = recvStateFinished
		if r.onConnError != nil {
			r.onConnError(ErrCodeGeneralProtocol, "QPACK decoding failed")
		}
		return nil, nil, newConnError(ErrCodeGeneralProtocol, err)
	}

	resp, err := buildResponse(fields)
	if err != nil {
		r.state = recvStateFinished
		return nil, nil, err
	}

	r.state = recvStateFinished

	body := newBodyReader(r.stream, r.onConnError)
	if r.requestGzip && resp.Header.Get("Content-Encoding") == "gzip" {
		resp.Header.Del("Content-Encoding")
		resp.Header.Del("Content-Length")
		resp.ContentLength = -1
		resp.Uncompressed = true
		return resp, newGzipReader(body), nil
	}
	return resp, body, nil
}

// buildResponse turns a decoded field section into an *http.Response.
func buildResponse(fields []Header) (*http.Response, error) {
	res := &http.Response{
		Proto:      "HTTP/3",
		ProtoMajor: 3,
		Header:     http.Header{},
	}
	sawStatus := false
	for _, f := range fields {
		switch f.Name {
		case ":status":
			status, err := strconv.Atoi(f.Value)
			if err != nil {
				return nil, peerErr("malformed non-numeric status pseudo-header")
			}
			res.StatusCode = status
			res.Status = f.Value + " " + http.StatusText(status)
			sawStatus = true
		default:
			res.Header.Add(f.Name, f.Value)
		}
	}
	if !sawStatus {
		return nil, peerErr("response missing :status pseudo-header")
	}

	_, hasTransferEncoding := res.Header["Transfer-Encoding"]
	isInformational := res.StatusCode >= 100 && res.StatusCode < 200
	isNoContent := res.StatusCode == 204
	if !hasTransferEncoding && !isInformational && !isNoContent {
		res.ContentLength = -1
		if clens, ok := res.Header["Content-Length"]; ok && len(clens) == 1 {
			if clen, err := strconv.ParseInt(clens[0], 10, 64); err == nil {
				res.ContentLength = clen
			}
		}
	}
	return res, nil
}
