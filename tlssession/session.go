// Package tlssession is qonn's one concrete Session implementation. It
// drives Go's standard library crypto/tls QUIC support (tls.QUICConn): call
// Start/HandleData, drain NextEvent in a loop, and translate the resulting
// read/write-secret and transport-parameter events into qonn.Keys and
// qonn.TransportParameters.
package tlssession

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net/netip"
	"sync"

	"github.com/oxidize-dev/qonn"
	"github.com/oxidize-dev/qonn/internal/protocol"
	"github.com/oxidize-dev/qonn/internal/qlog"
)

// ALPN is the HTTP/3-over-QUIC ALPN identifier, RFC 9114 section 3.1.
const ALPN = "h3"

// Session drives crypto/tls's QUIC handshake support and implements
// qonn.Session.
type Session struct {
	conn *tls.QUICConn
	side protocol.Side

	mu sync.Mutex

	phase qonn.Phase

	pendingWrite []byte
	readLevel    tls.QUICEncryptionLevel

	handshakeSuite        qonn.Suite
	handshakeReadSecret    []byte
	handshakeWriteSecret   []byte
	haveHandshakeRead, haveHandshakeWrite bool

	oneRTTSuite            qonn.Suite
	oneRTTReadSecret       []byte
	oneRTTWriteSecret      []byte
	haveOneRTTRead, haveOneRTTWrite bool
	emittedOneRTT          bool
	emittedHandshake       bool

	earlySuite  qonn.Suite
	earlySecret []byte
	haveEarly   bool

	alpn              []byte
	sni               string
	peerParams        *qonn.TransportParameters
	peerParamsErr     error
	peerCerts         [][]byte
	earlyDataAccepted *bool
	isHandshaking     bool

	logger qlog.Logger
}

var _ qonn.Session = (*Session)(nil)

// NewClientConfig builds a *tls.Config for a client session: forces the h3
// ALPN (callers cannot override), rejects IP-address literals and empty
// strings as server names, and attaches roots.
func NewClientConfig(serverName string, roots *x509.CertPool) (*tls.Config, error) {
	if serverName == "" {
		return nil, &qonn.ConfigError{Reason: "server name must not be empty"}
	}
	if _, err := netip.ParseAddr(serverName); err == nil {
		return nil, &qonn.ConfigError{Reason: fmt.Sprintf("server name %q is an IP address literal, not a DNS name", serverName)}
	}
	return &tls.Config{
		ServerName: serverName,
		RootCAs:    roots,
		NextProtos: []string{ALPN},
		MinVersion: tls.VersionTLS13,
	}, nil
}

// NewServerConfig builds a *tls.Config for a server session, forcing the h3
// ALPN.
func NewServerConfig(cert tls.Certificate) *tls.Config {
	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		NextProtos:   []string{ALPN},
		MinVersion:   tls.VersionTLS13,
	}
}

// NewClient starts a client-side session against tlsConf, optionally with a
// cached resumption secret's transport parameters embedded for 0-RTT.
func NewClient(tlsConf *tls.Config, quicConf *tls.QUICConfig) *Session {
	s := &Session{side: protocol.SideClient, phase: qonn.PhaseInitial, isHandshaking: true, logger: qlog.Default.WithPrefix("qonn client session")}
	if quicConf == nil {
		quicConf = &tls.QUICConfig{TLSConfig: tlsConf}
	}
	s.conn = tls.QUICClient(quicConf)
	return s
}

// NewServer starts a server-side session.
func NewServer(tlsConf *tls.Config, quicConf *tls.QUICConfig) *Session {
	s := &Session{side: protocol.SideServer, phase: qonn.PhaseInitial, isHandshaking: true, logger: qlog.Default.WithPrefix("qonn server session")}
	if quicConf == nil {
		quicConf = &tls.QUICConfig{TLSConfig: tlsConf}
	}
	s.conn = tls.QUICServer(quicConf)
	return s
}

// Start must be called once, before the first ReadHandshake/WriteHandshake,
// with the local transport parameters to advertise.
func (s *Session) Start(ctx context.Context, ourParams *qonn.TransportParameters) error {
	s.conn.SetTransportParameters(ourParams.Write())
	if err := s.conn.Start(ctx); err != nil {
		return wrapAlert(err)
	}
	return s.drainEvents()
}

func (s *Session) Side() protocol.Side { return s.side }

func (s *Session) Phase() qonn.Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

func (s *Session) advancePhase(next qonn.Phase) {
	// Never move backwards: PhaseClosed is terminal, and within the
	// handshake phases events only ever arrive in increasing order.
	if next > s.phase {
		s.phase = next
	}
}

func (s *Session) ReadHandshake(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	s.mu.Lock()
	level := s.readLevel
	s.mu.Unlock()
	if err := s.conn.HandleData(level, data); err != nil {
		return wrapAlert(err)
	}
	return s.drainEvents()
}

func (s *Session) WriteHandshake(buf []byte) ([]byte, *qonn.Keys, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	buf = append(buf, s.pendingWrite...)
	s.pendingWrite = nil

	if !s.emittedHandshake && s.haveHandshakeRead && s.haveHandshakeWrite {
		s.emittedHandshake = true
		s.advancePhase(qonn.PhaseHandshake)
		keys := qonn.NewKeysFromSecrets(s.handshakeSuite, s.localSecret(s.handshakeWriteSecret, s.handshakeReadSecret), s.remoteSecret(s.handshakeWriteSecret, s.handshakeReadSecret))
		return buf, keys, nil
	}
	if !s.emittedOneRTT && s.haveOneRTTRead && s.haveOneRTTWrite {
		s.emittedOneRTT = true
		s.advancePhase(qonn.PhaseOneRTT)
		keys := qonn.NewKeysFromSecrets(s.oneRTTSuite, s.localSecret(s.oneRTTWriteSecret, s.oneRTTReadSecret), s.remoteSecret(s.oneRTTWriteSecret, s.oneRTTReadSecret))
		return buf, keys, nil
	}
	return buf, nil, nil
}

// localSecret/remoteSecret apply the side-dependent mapping that also holds
// for the initial key installation: a client's Local secret is the TLS
// "client" secret (its write secret), a server's Local secret is the TLS
// "server" secret (its write secret).
func (s *Session) localSecret(writeSecret, readSecret []byte) []byte {
	return writeSecret
}

func (s *Session) remoteSecret(writeSecret, readSecret []byte) []byte {
	return readSecret
}

func (s *Session) ALPNProtocol() ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.alpn == nil {
		return nil, false
	}
	return s.alpn, true
}

func (s *Session) TransportParameters() (*qonn.TransportParameters, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.peerParamsErr != nil {
		return nil, s.peerParamsErr
	}
	return s.peerParams, nil
}

func (s *Session) SNIHostname() (string, bool) {
	if s.side == protocol.SideClient {
		return "", false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sni == "" {
		return "", false
	}
	return s.sni, true
}

func (s *Session) EarlyCrypto() (*qonn.Keys, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.haveEarly {
		return nil, false
	}
	// 0-RTT has a single direction in flight at this point; the peer
	// direction is filled in once rejection/acceptance is known, so we
	// mirror the secret into both slots until then (the AEAD is only
	// ever used one-directionally for 0-RTT on the client).
	return qonn.NewKeysFromSecrets(s.earlySuite, s.earlySecret, s.earlySecret), true
}

func (s *Session) EarlyDataAccepted() (bool, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.earlyDataAccepted == nil {
		return false, false
	}
	return *s.earlyDataAccepted, true
}

func (s *Session) IsHandshaking() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isHandshaking
}

func (s *Session) UpdateKeys(current *qonn.Keys) (*qonn.Keys, error) {
	return qonn.UpdateKeys(current), nil
}

func (s *Session) PeerCertificates() ([][]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.peerCerts == nil {
		return nil, false
	}
	return s.peerCerts, true
}

// ConnectionState returns the underlying crypto/tls connection state, for
// callers that need e.g. the negotiated cipher suite name for logging.
func (s *Session) ConnectionState() tls.ConnectionState {
	return s.conn.ConnectionState()
}

func (s *Session) drainEvents() error {
	for {
		ev := s.conn.NextEvent()
		done, err := s.handleEvent(ev)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}
}

func (s *Session) handleEvent(ev tls.QUICEvent) (done bool, err error) {
	switch ev.Kind {
	case tls.QUICNoEvent:
		return true, nil
	case tls.QUICSetReadSecret:
		s.setSecret(ev.Level, ev.Suite, ev.Data, false)
		s.mu.Lock()
		s.readLevel = ev.Level
		s.mu.Unlock()
		return false, nil
	case tls.QUICSetWriteSecret:
		s.setSecret(ev.Level, ev.Suite, ev.Data, true)
		return false, nil
	case tls.QUICTransportParameters:
		s.mu.Lock()
		tp, perr := qonn.ReadTransportParameters(ev.Data)
		if perr != nil {
			s.peerParamsErr = perr
		} else {
			s.peerParams = tp
		}
		s.mu.Unlock()
		return false, nil
	case tls.QUICTransportParametersRequired:
		return false, nil
	case tls.QUICRejectedEarlyData:
		s.mu.Lock()
		accepted := false
		s.earlyDataAccepted = &accepted
		s.haveEarly = false
		s.mu.Unlock()
		return false, nil
	case tls.QUICWriteData:
		s.mu.Lock()
		s.pendingWrite = append(s.pendingWrite, ev.Data...)
		s.mu.Unlock()
		return false, nil
	case tls.QUICHandshakeDone:
		s.mu.Lock()
		s.isHandshaking = false
		if s.side == protocol.SideClient && s.earlyDataAccepted == nil {
			accepted := true
			s.earlyDataAccepted = &accepted
		}
		state := s.conn.ConnectionState()
		s.alpn = []byte(state.NegotiatedProtocol)
		s.sni = state.ServerName
		for _, cert := range state.PeerCertificates {
			s.peerCerts = append(s.peerCerts, cert.Raw)
		}
		s.mu.Unlock()
		return false, nil
	default:
		return false, fmt.Errorf("qonn/tlssession: unexpected event kind %d", ev.Kind)
	}
}

func (s *Session) setSecret(level tls.QUICEncryptionLevel, suiteID uint16, secret []byte, write bool) {
	suite, err := qonn.SuiteFromTLS(suiteID)
	if err != nil {
		panic(err) // crypto/tls only negotiates the three suites SuiteFromTLS knows
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	switch level {
	case tls.QUICEncryptionLevelEarly:
		s.earlySuite = suite
		s.earlySecret = secret
		s.haveEarly = true
	case tls.QUICEncryptionLevelHandshake:
		s.handshakeSuite = suite
		if write {
			s.handshakeWriteSecret = secret
			s.haveHandshakeWrite = true
		} else {
			s.handshakeReadSecret = secret
			s.haveHandshakeRead = true
		}
	case tls.QUICEncryptionLevelApplication:
		s.oneRTTSuite = suite
		if write {
			s.oneRTTWriteSecret = secret
			s.haveOneRTTWrite = true
		} else {
			s.oneRTTReadSecret = secret
			s.haveOneRTTRead = true
		}
	}
}

// wrapAlert turns a crypto/tls QUIC alert error into a qonn.TransportError
// carrying the one-byte alert code, or a generic ProtocolViolation if the
// underlying error isn't an alert.
func wrapAlert(err error) error {
	var alertErr tls.AlertError
	if errors.As(err, &alertErr) {
		return qonn.CryptoAlertError(uint8(alertErr), err.Error())
	}
	return qonn.ProtocolViolation(err.Error())
}
