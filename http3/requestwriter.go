package http3

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"golang.org/x/net/http/httpguts"
)

// MethodGet0RTT is a pseudo HTTP method: used only to mark a *http.Request
// as eligible to be sent before the handshake completes. Connection.
// SendRequest rewrites it to http.MethodGet before anything hits the wire.
const MethodGet0RTT = "GET_0RTT"

// rewriteEarlyMethod clones req and rewrites MethodGet0RTT back to a plain
// GET if present, so the wire never sees the pseudo-method; everything
// downstream of Connection.SendRequest only ever deals in real HTTP methods.
func rewriteEarlyMethod(ctx context.Context, req *http.Request) *http.Request {
	if req.Method != MethodGet0RTT {
		return req
	}
	clone := req.Clone(ctx)
	clone.Method = http.MethodGet
	return clone
}

// writeRequest serializes req onto str as a single HEADERS frame (and, for
// a non-nil body, a DATA frame). requestGzip controls whether an
// Accept-Encoding: gzip header is synthesized for transparent
// decompression on the response side.
func writeRequest(w io.Writer, req *http.Request, requestGzip bool) error {
	fields, err := requestHeaders(req, requestGzip)
	if err != nil {
		return err
	}
	block, err := encodeHeaders(fields)
	if err != nil {
		return err
	}
	if err := WriteHeadersFrame(w, block); err != nil {
		return quicErr("writing HEADERS frame", err)
	}
	if req.Body != nil {
		body, err := io.ReadAll(req.Body)
		if err != nil {
			return quicErr("reading request body", err)
		}
		if len(body) > 0 {
			if err := WriteDataFrame(w, body); err != nil {
				return quicErr("writing DATA frame", err)
			}
		}
	}
	return nil
}

// requestHeaders builds the pseudo-headers (RFC 9114 section 4.3) followed
// by the regular field section for req, validating every field name/value
// with httpguts the way net/http's own h2 and h3 transports do.
func requestHeaders(req *http.Request, requestGzip bool) ([]Header, error) {
	host := req.Host
	if host == "" {
		host = req.URL.Host
	}
	path := req.URL.RequestURI()
	if req.Method == http.MethodConnect {
		path = ""
	}

	fields := []Header{
		{Name: ":method", Value: req.Method},
		{Name: ":scheme", Value: "https"},
		{Name: ":authority", Value: host},
	}
	if path != "" {
		fields = append(fields, Header{Name: ":path", Value: path})
	}

	for name, values := range req.Header {
		if !httpguts.ValidHeaderFieldName(name) {
			return nil, headerEncodingErr(fmt.Sprintf("invalid header field name %q", name), nil)
		}
		lower := strings.ToLower(name)
		switch lower {
		case "host", "content-length", "connection", "transfer-encoding", "upgrade", "keep-alive", "proxy-connection":
			// Framing headers are reconstructed above or have no meaning
			// over QUIC; RFC 9114 section 4.2 forbids sending them.
			continue
		}
		for _, v := range values {
			if !httpguts.ValidHeaderFieldValue(v) {
				return nil, headerEncodingErr(fmt.Sprintf("invalid value for header field %q", name), nil)
			}
			fields = append(fields, Header{Name: lower, Value: v})
		}
	}

	if req.ContentLength > 0 {
		fields = append(fields, Header{Name: "content-length", Value: strconv.FormatInt(req.ContentLength, 10)})
	}
	if requestGzip {
		fields = append(fields, Header{Name: "accept-encoding", Value: "gzip"})
	}

	return fields, nil
}

// shouldRequestGzip gates transparent gzip negotiation on DisableCompression:
// only negotiate when the caller hasn't already taken an opinion on
// encoding or range.
func shouldRequestGzip(disableCompression bool, req *http.Request) bool {
	return !disableCompression &&
		req.Method != http.MethodHead &&
		req.Header.Get("Accept-Encoding") == "" &&
		req.Header.Get("Range") == ""
}
