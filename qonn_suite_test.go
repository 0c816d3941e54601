package qonn

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestQonn(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "qonn suite")
}

var _ = Describe("Phase", func() {
	It("orders Initial before Handshake before 1-RTT before Closed", func() {
		Expect(PhaseInitial).To(BeNumerically("<", PhaseHandshake))
		Expect(PhaseHandshake).To(BeNumerically("<", PhaseOneRTT))
		Expect(PhaseOneRTT).To(BeNumerically("<", PhaseClosed))
	})

	It("stringifies every defined phase", func() {
		Expect(PhaseInitial.String()).To(Equal("Initial"))
		Expect(PhaseHandshake.String()).To(Equal("Handshake"))
		Expect(PhaseOneRTT.String()).To(Equal("1-RTT"))
		Expect(PhaseClosed.String()).To(Equal("Closed"))
		Expect(Phase(99).String()).To(Equal("unknown"))
	})
})

var _ = Describe("TransportErrorCode", func() {
	It("round-trips a TLS alert through CryptoError/IsCrypto", func() {
		code := CryptoError(42)
		alert, ok := code.IsCrypto()
		Expect(ok).To(BeTrue())
		Expect(alert).To(BeEquivalentTo(42))
	})

	It("reports ErrProtocolViolation as not a crypto alert", func() {
		_, ok := ErrProtocolViolation.IsCrypto()
		Expect(ok).To(BeFalse())
	})

	It("builds a readable message for a crypto alert and a plain violation", func() {
		Expect(CryptoAlertError(70, "bad cert").Error()).To(ContainSubstring("crypto alert 70"))
		Expect(ProtocolViolation("bad transport parameter").Error()).To(ContainSubstring("transport error"))
	})
})
