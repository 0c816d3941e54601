package http3

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestHTTP3(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "http3 suite")
}
