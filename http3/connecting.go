package http3

import (
	"context"

	"github.com/quic-go/quic-go"

	"github.com/oxidize-dev/qonn/internal/qlog"
)

// TransportDriver is the QUIC-layer handle Connecting.Wait resolves.
// quic-go already drives its own connection internally on background
// goroutines the caller never sees, so there's no per-packet work left for
// this to do; it exists to give callers one place to learn the transport
// closed, alongside H3Driver and Connection.
type TransportDriver struct {
	quicConn quic.EarlyConnection
}

// Run blocks until the QUIC connection closes or ctx is canceled,
// returning the connection's close reason.
func (d *TransportDriver) Run(ctx context.Context) error {
	select {
	case <-d.quicConn.Context().Done():
		return context.Cause(d.quicConn.Context())
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Connecting is an in-progress dial: the QUIC handshake has started but
// neither the transport nor application layer has been driven yet. Wait
// resolves it into a (TransportDriver, H3Driver, Connection) triple once
// the handshake completes.
type Connecting struct {
	earlyConn quic.EarlyConnection
	settings  Settings
	logger    qlog.Logger
	metrics   *Metrics
}

func newConnecting(earlyConn quic.EarlyConnection, settings Settings, logger qlog.Logger, metrics *Metrics) *Connecting {
	return &Connecting{earlyConn: earlyConn, settings: settings, logger: logger, metrics: metrics}
}

// Wait resolves the three handles. TransportDriver (QUIC-level lifecycle)
// and H3Driver (control/QPACK streams) must have Run(ctx) called (as
// goroutines, ordinarily) for the connection to be usable; Connection is
// used for issuing requests.
func (c *Connecting) Wait(ctx context.Context) (*TransportDriver, *H3Driver, *Connection, error) {
	select {
	case <-c.earlyConn.HandshakeComplete():
	case <-ctx.Done():
		return nil, nil, nil, ctx.Err()
	}
	conn := newConnection(c.earlyConn, c.settings, c.logger, c.metrics)
	return &TransportDriver{quicConn: c.earlyConn}, &H3Driver{conn: conn}, conn, nil
}

// WaitEarly resolves the same triple without waiting for the handshake to
// complete, for sending 0-RTT requests. The caller is responsible for
// checking EarlyDataAccepted-equivalent state (qonn.Session.EarlyCrypto) on
// their own before trusting 0-RTT keys are in play; quic-go's
// EarlyConnection already gates OpenStreamSync appropriately before
// HandshakeComplete fires.
func (c *Connecting) WaitEarly() (*TransportDriver, *H3Driver, *Connection) {
	conn := newConnection(c.earlyConn, c.settings, c.logger, c.metrics)
	return &TransportDriver{quicConn: c.earlyConn}, &H3Driver{conn: conn}, conn
}
