package http3

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"net/http"
	"time"

	"github.com/quic-go/quic-go"

	"github.com/oxidize-dev/qonn/internal/qlog"
	"github.com/oxidize-dev/qonn/tlssession"
)

// Config is the plain struct Builder accumulates into before Build.
type Config struct {
	DisableCompression     bool
	EnableDatagrams        bool
	MaxResponseHeaderBytes int64
	QUICConfig             *quic.Config
	Settings               Settings
	Metrics                *Metrics
}

// defaultQUICConfig is conservative: the client never accepts
// server-initiated bidirectional streams.
func defaultQUICConfig() *quic.Config {
	return &quic.Config{
		MaxIncomingStreams: -1,
		KeepAlivePeriod:    0,
	}
}

// Builder accumulates trust roots and configuration across multiple calls
// before producing a Client, rather than a one-shot constructor.
type Builder struct {
	roots  *x509.CertPool
	config Config
	logger qlog.Logger
}

// NewBuilder starts from an empty trust root pool; AddTrustAnchor adds to
// it, and WithSystemRoots seeds it from the OS trust store.
func NewBuilder() *Builder {
	return &Builder{
		roots:  x509.NewCertPool(),
		config: Config{QUICConfig: defaultQUICConfig(), Settings: DefaultSettings()},
		logger: qlog.Default.WithPrefix("h3 client"),
	}
}

// AddTrustAnchor adds one DER-encoded certificate to the trust roots used
// for every Client this Builder produces. Can be called multiple times;
// every call accumulates.
func (b *Builder) AddTrustAnchor(der []byte) error {
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return configErr("parsing trust anchor certificate: " + err.Error())
	}
	b.roots.AddCert(cert)
	return nil
}

// WithSystemRoots replaces the trust pool with the OS's default CA set, so
// certificates added via AddTrustAnchor after this call are trusted in
// addition to it. Certificates added before this call are not carried over.
// If the OS pool cannot be loaded, the pool is left unchanged.
func (b *Builder) WithSystemRoots() *Builder {
	if sys, err := x509.SystemCertPool(); err == nil && sys != nil {
		b.roots = sys
	}
	return b
}

func (b *Builder) WithConfig(c Config) *Builder {
	if c.QUICConfig == nil {
		c.QUICConfig = defaultQUICConfig()
	}
	b.config = c
	return b
}

// Build produces a Client bound to serverName, ready to Dial. TLS config
// construction (ALPN, SNI validation, TLS 1.3 floor) is delegated to
// tlssession.NewClientConfig so the two packages share one source of truth
// for it.
func (b *Builder) Build(serverName string) (*Client, error) {
	tlsConf, err := tlssession.NewClientConfig(serverName, b.roots)
	if err != nil {
		return nil, configErr(err.Error())
	}
	tlsConf.NextProtos = []string{tlssession.ALPN}
	return &Client{
		tlsConf: tlsConf,
		config:  b.config,
		logger:  b.logger,
	}, nil
}

// Client dials one HTTP/3 endpoint, structured around Connecting/H3Driver/
// TransportDriver instead of bare unmanaged goroutines.
type Client struct {
	tlsConf *tls.Config
	config  Config
	logger  qlog.Logger
}

// Dial starts a QUIC handshake to addr and returns a Connecting the caller
// drives to a usable Connection via Wait.
func (c *Client) Dial(ctx context.Context, addr string) (*Connecting, error) {
	quicConf := c.config.QUICConfig.Clone()
	quicConf.EnableDatagrams = c.config.EnableDatagrams

	earlyConn, err := quic.DialAddrEarly(ctx, addr, c.tlsConf, quicConf)
	if err != nil {
		return nil, quicErr("dialing", err)
	}
	return newConnecting(earlyConn, c.config.Settings, c.logger, c.config.Metrics), nil
}

// Get is a convenience wrapper: dial, drive all three handles, send a
// single GET, and return the response once headers arrive. Exercises the
// full pipeline the way cmd/qonn-probe does.
func (c *Client) Get(ctx context.Context, addr, path string) (*http.Response, error) {
	connecting, err := c.Dial(ctx, addr)
	if err != nil {
		return nil, err
	}
	transport, h3, conn, err := connecting.Wait(ctx)
	if err != nil {
		return nil, err
	}
	go func() {
		if err := transport.Run(ctx); err != nil {
			c.logger.Debugf("transport driver exited: %s", err)
		}
	}()
	go func() {
		if err := h3.Run(ctx); err != nil {
			c.logger.Debugf("h3 driver exited: %s", err)
		}
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "https://"+addr+path, nil)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	recv, _, err := conn.SendRequest(ctx, req, c.config.DisableCompression)
	if err != nil {
		c.config.Metrics.observeRequest(req.Method, "send_error", time.Since(start))
		return nil, err
	}
	resp, body, err := recv.Wait()
	if err != nil {
		c.config.Metrics.observeRequest(req.Method, "response_error", time.Since(start))
		return nil, err
	}
	c.config.Metrics.observeRequest(req.Method, "ok", time.Since(start))
	resp.Body = body
	return resp, nil
}

// GetEarly sends a request before the handshake completes: the caller gets
// back a usable Connection and drivers immediately via WaitEarly instead
// of blocking on Wait. The request is tagged MethodGet0RTT before dispatch
// (its metrics are recorded under that method label), and
// Connection.SendRequest rewrites it to a normal GET before it reaches the
// wire; 0-RTT is a transport-layer property of the stream it's written to,
// which quic-go's EarlyConnection already gates (see Connecting.WaitEarly).
func (c *Client) GetEarly(ctx context.Context, addr, path string) (*http.Response, error) {
	connecting, err := c.Dial(ctx, addr)
	if err != nil {
		return nil, err
	}
	transport, h3, conn := connecting.WaitEarly()
	go func() {
		if err := transport.Run(ctx); err != nil {
			c.logger.Debugf("transport driver exited: %s", err)
		}
	}()
	go func() {
		if err := h3.Run(ctx); err != nil {
			c.logger.Debugf("h3 driver exited: %s", err)
		}
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "https://"+addr+path, nil)
	if err != nil {
		return nil, err
	}
	req.Method = MethodGet0RTT
	start := time.Now()
	recv, _, err := conn.SendRequest(ctx, req, c.config.DisableCompression)
	if err != nil {
		c.config.Metrics.observeRequest(req.Method, "send_error", time.Since(start))
		return nil, err
	}
	resp, body, err := recv.Wait()
	if err != nil {
		c.config.Metrics.observeRequest(req.Method, "response_error", time.Since(start))
		return nil, err
	}
	c.config.Metrics.observeRequest(req.Method, "ok", time.Since(start))
	resp.Body = body
	return resp, nil
}
