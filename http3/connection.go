package http3

import (
	"context"
	"io"
	"net/http"
	"sync"

	"github.com/quic-go/qpack"
	"github.com/quic-go/quic-go"
	"github.com/quic-go/quic-go/quicvarint"

	"github.com/oxidize-dev/qonn/internal/qlog"
)

// Unidirectional stream type ids, RFC 9114 section 6.2 and RFC 9204
// section 4.2.
const (
	streamTypeControlStream       uint64 = 0x0
	streamTypeQPACKEncoderStream  uint64 = 0x2
	streamTypeQPACKDecoderStream  uint64 = 0x3
)

// Connection is one negotiated HTTP/3 connection: the QUIC connection plus
// the control stream and shared QPACK decoder state layered on top.
// SendRequest is the client-only half; a server variant would add
// AcceptRequest using the same shared state.
type Connection struct {
	quicConn quic.EarlyConnection
	settings Settings

	decoder *qpack.Decoder

	mu     sync.Mutex
	closed bool

	logger  qlog.Logger
	metrics *Metrics
}

func newConnection(quicConn quic.EarlyConnection, settings Settings, logger qlog.Logger, metrics *Metrics) *Connection {
	return &Connection{
		quicConn: quicConn,
		settings: settings,
		decoder:  newDecoder(),
		logger:   logger,
		metrics:  metrics,
	}
}

// H3Driver is the HTTP/3-layer half of the three handles Connecting.Wait
// resolves: sending our SETTINGS on a fresh control stream, then reading
// the peer's control and QPACK streams for the rest of the connection's
// life. The caller explicitly Run()s it and can observe its exit, rather
// than it running as a bare unmanaged goroutine.
type H3Driver struct {
	conn *Connection
}

// Run sends the local SETTINGS frame and then services incoming
// unidirectional streams until the connection closes or ctx is canceled.
// It must be started as a goroutine; the connection makes no HTTP/3-level
// progress until it is.
func (d *H3Driver) Run(ctx context.Context) error {
	if err := d.conn.openControlStream(); err != nil {
		d.conn.closeWithError(ErrCodeInternalError, "")
		return quicErr("opening control stream", err)
	}
	d.conn.handleUnidirectionalStreams(ctx)
	return nil
}

func (c *Connection) openControlStream() error {
	str, err := c.quicConn.OpenUniStream()
	if err != nil {
		return err
	}
	buf := quicvarint.Append(nil, streamTypeControlStream)
	if err := c.settings.Write(&writerAt{buf: &buf}); err != nil {
		return err
	}
	_, err = str.Write(buf)
	return err
}

// writerAt lets Settings.Write (an io.Writer) append onto an existing
// varint-prefixed buffer instead of allocating its own.
type writerAt struct{ buf *[]byte }

func (w *writerAt) Write(p []byte) (int, error) {
	*w.buf = append(*w.buf, p...)
	return len(p), nil
}

func (c *Connection) handleUnidirectionalStreams(ctx context.Context) {
	for {
		str, err := c.quicConn.AcceptUniStream(ctx)
		if err != nil {
			c.logger.Debugf("accepting unidirectional stream failed: %s", err)
			return
		}
		go func() {
			streamType, err := quicvarint.Read(quicvarint.NewReader(str))
			if err != nil {
				c.logger.Debugf("reading stream type failed: %s", err)
				return
			}
			switch streamType {
			case streamTypeControlStream:
				if _, err := readControlStreamSettings(str); err != nil {
					c.logger.Debugf("peer control stream: %s", err)
					c.closeWithError(ErrCodeMissingSettings, "")
				}
			case streamTypeQPACKEncoderStream, streamTypeQPACKDecoderStream:
				// qonn never raises QPACKMaxTableCapacity above zero (see
				// headers.go), so nothing is ever expected on these streams
				// beyond the stream type byte itself; draining keeps the
				// peer's writes from backing up without acting on them.
				io.Copy(io.Discard, str)
			default:
				str.CancelRead(quic.StreamErrorCode(ErrCodeStreamCreation))
			}
		}()
	}
}

func (c *Connection) closeWithError(code ErrorCode, reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.quicConn.CloseWithError(quic.ApplicationErrorCode(code), reason)
}

// Close gracefully closes the connection with HTTP_NO_ERROR.
func (c *Connection) Close() error {
	c.closeWithError(ErrCodeNoError, "")
	return nil
}

// ForceKeyUpdate forces a 1-RTT key update on the underlying QUIC
// connection for testing purposes. quic-go's public API doesn't expose
// this hook on quic.Connection, so this is wired through an optional
// interface a test double or a quic-go fork can satisfy; production
// connections return a KindInternal *Error rather than silently no-op.
func (c *Connection) ForceKeyUpdate() error {
	type keyUpdater interface{ ForceKeyUpdate() }
	if ku, ok := c.quicConn.(keyUpdater); ok {
		ku.ForceKeyUpdate()
		c.metrics.observeKeyUpdate()
		return nil
	}
	return internalErr("underlying QUIC connection does not support ForceKeyUpdate")
}

// SendRequest opens a new bidirectional stream, writes req as HEADERS (and
// DATA, if it has a body) immediately, and returns the still-unresolved
// response plus a writer for any additional outgoing body bytes.
func (c *Connection) SendRequest(ctx context.Context, req *http.Request, disableCompression bool) (*RecvResponse, *BodyWriter, error) {
	str, err := c.quicConn.OpenStreamSync(ctx)
	if err != nil {
		return nil, nil, quicErr("opening request stream", err)
	}

	requestGzip := shouldRequestGzip(disableCompression, req)
	if requestGzip {
		req = req.Clone(ctx)
	}
	req = rewriteEarlyMethod(ctx, req)
	if err := writeRequest(str, req, requestGzip); err != nil {
		str.CancelWrite(quic.StreamErrorCode(ErrCodeInternalError))
		return nil, nil, err
	}

	recv := newRecvResponse(str, c.decoder, c.settings.MaxHeaderListSize, requestGzip, func(code ErrorCode, reason string) {
		c.closeWithError(code, reason)
	})
	return recv, newBodyWriter(str), nil
}
