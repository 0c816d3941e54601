// Command qonn-probe dials one HTTP/3 server and prints the response
// status and headers. It exists only to exercise http3.Client end to end,
// the way quic-go ships example/client/main.go; it is not a general
// purpose HTTP/3 CLI.
package main

import (
	"context"
	"encoding/pem"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/oxidize-dev/qonn/http3"
)

func main() {
	addr := flag.String("addr", "localhost:4433", "host:port to dial")
	path := flag.String("path", "/", "request path")
	systemRoots := flag.Bool("system-roots", false, "trust the OS's default CA set, in addition to -ca")
	caFile := flag.String("ca", "", "PEM-encoded CA certificate to trust, in addition to the OS trust store when -system-roots is set")
	timeout := flag.Duration("timeout", 10*time.Second, "overall request timeout")
	flag.Parse()

	logger := logrus.New()

	builder := http3.NewBuilder()
	if *systemRoots {
		builder.WithSystemRoots()
	}
	if *caFile != "" {
		pemBytes, err := os.ReadFile(*caFile)
		if err != nil {
			logger.Fatalf("reading CA file: %s", err)
		}
		block, _ := pem.Decode(pemBytes)
		if block == nil {
			logger.Fatalf("no PEM block found in %s", *caFile)
		}
		if err := builder.AddTrustAnchor(block.Bytes); err != nil {
			logger.Fatalf("adding trust anchor: %s", err)
		}
	}

	reg := prometheus.NewRegistry()
	builder.WithConfig(http3.Config{Metrics: http3.NewMetrics(reg)})

	client, err := builder.Build(hostOf(*addr))
	if err != nil {
		logger.Fatalf("building client: %s", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	resp, err := client.Get(ctx, *addr, *path)
	if err != nil {
		logger.Fatalf("request failed: %s", err)
	}
	defer resp.Body.Close()

	fmt.Printf("%s %s\n", resp.Proto, resp.Status)
	for name, values := range resp.Header {
		for _, v := range values {
			fmt.Printf("%s: %s\n", name, v)
		}
	}
	fmt.Println()
	if _, err := io.Copy(os.Stdout, resp.Body); err != nil {
		logger.Fatalf("reading body: %s", err)
	}
}

// hostOf strips a trailing :port, since the TLS server name must not
// include one (tlssession.NewClientConfig rejects IP literals and empty
// names but not a dangling port).
func hostOf(addr string) string {
	for i := len(addr) - 1; i >= 0; i-- {
		if addr[i] == ':' {
			return addr[:i]
		}
	}
	return addr
}
