package tlssession

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"testing"

	"github.com/oxidize-dev/qonn"
	"github.com/oxidize-dev/qonn/internal/protocol"
)

func TestNewClientConfigRejectsEmptyServerName(t *testing.T) {
	_, err := NewClientConfig("", x509.NewCertPool())
	if err == nil {
		t.Fatal("expected an error for an empty server name")
	}
	var cfgErr *qonn.ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("got %T, want *qonn.ConfigError", err)
	}
}

func TestNewClientConfigRejectsIPLiteral(t *testing.T) {
	for _, host := range []string{"127.0.0.1", "::1", "203.0.113.7"} {
		if _, err := NewClientConfig(host, x509.NewCertPool()); err == nil {
			t.Errorf("server name %q: expected an error, got none", host)
		}
	}
}

func TestNewClientConfigForcesALPNAndTLS13(t *testing.T) {
	roots := x509.NewCertPool()
	cfg, err := NewClientConfig("example.com", roots)
	if err != nil {
		t.Fatalf("NewClientConfig: %s", err)
	}
	if cfg.ServerName != "example.com" {
		t.Errorf("ServerName = %q, want %q", cfg.ServerName, "example.com")
	}
	if len(cfg.NextProtos) != 1 || cfg.NextProtos[0] != ALPN {
		t.Errorf("NextProtos = %v, want [%q]", cfg.NextProtos, ALPN)
	}
	if cfg.MinVersion != tls.VersionTLS13 {
		t.Errorf("MinVersion = %#x, want TLS 1.3", cfg.MinVersion)
	}
	if cfg.RootCAs != roots {
		t.Error("RootCAs was not the pool we passed in")
	}
}

func TestNewServerConfigForcesALPN(t *testing.T) {
	cfg := NewServerConfig(tls.Certificate{})
	if len(cfg.NextProtos) != 1 || cfg.NextProtos[0] != ALPN {
		t.Errorf("NextProtos = %v, want [%q]", cfg.NextProtos, ALPN)
	}
}

func TestAdvancePhaseNeverGoesBackwards(t *testing.T) {
	s := &Session{phase: qonn.PhaseOneRTT}
	s.advancePhase(qonn.PhaseHandshake)
	if s.phase != qonn.PhaseOneRTT {
		t.Fatalf("phase regressed to %s", s.phase)
	}
	s.advancePhase(qonn.PhaseClosed)
	if s.phase != qonn.PhaseClosed {
		t.Fatalf("phase = %s, want Closed", s.phase)
	}
}

func TestSecretMappingIsSideDependent(t *testing.T) {
	s := &Session{}
	write, read := []byte("write-secret"), []byte("read-secret")
	if got := string(s.localSecret(write, read)); got != "write-secret" {
		t.Errorf("localSecret = %q, want the write secret", got)
	}
	if got := string(s.remoteSecret(write, read)); got != "read-secret" {
		t.Errorf("remoteSecret = %q, want the read secret", got)
	}
}

func TestWrapAlertTranslatesTLSAlert(t *testing.T) {
	err := wrapAlert(tls.AlertError(42))
	var te *qonn.TransportError
	if !errors.As(err, &te) {
		t.Fatalf("got %T, want *qonn.TransportError", err)
	}
	if alert, ok := te.Code.IsCrypto(); !ok || alert != 42 {
		t.Fatalf("Code = %#x, want a crypto alert wrapping 42", te.Code)
	}
}

func TestWrapAlertFallsBackToProtocolViolation(t *testing.T) {
	err := wrapAlert(errors.New("boom"))
	var te *qonn.TransportError
	if !errors.As(err, &te) {
		t.Fatalf("got %T, want *qonn.TransportError", err)
	}
	if _, ok := te.Code.IsCrypto(); ok {
		t.Fatal("expected ErrProtocolViolation, not a crypto alert")
	}
}

func TestSNIHostnameIsClientOnlyFalse(t *testing.T) {
	s := &Session{side: protocol.SideClient}
	if _, ok := s.SNIHostname(); ok {
		t.Fatal("client session must never report an SNI hostname")
	}
}
