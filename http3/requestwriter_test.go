package http3

import (
	"context"
	"net/http"
	"testing"
)

func TestRewriteEarlyMethodRewritesGet0RTT(t *testing.T) {
	req, err := http.NewRequest(MethodGet0RTT, "https://example.com/", nil)
	if err != nil {
		t.Fatalf("NewRequest: %s", err)
	}
	got := rewriteEarlyMethod(context.Background(), req)
	if got.Method != http.MethodGet {
		t.Fatalf("Method = %q, want %q", got.Method, http.MethodGet)
	}
	if req.Method != MethodGet0RTT {
		t.Fatal("rewriteEarlyMethod mutated the original request")
	}
}

func TestRewriteEarlyMethodLeavesOrdinaryMethodsAlone(t *testing.T) {
	req, err := http.NewRequest(http.MethodPost, "https://example.com/", nil)
	if err != nil {
		t.Fatalf("NewRequest: %s", err)
	}
	got := rewriteEarlyMethod(context.Background(), req)
	if got != req {
		t.Fatal("expected the same *http.Request to be returned unchanged")
	}
}

func TestRequestHeadersBuildsPseudoHeadersAndStripsFraming(t *testing.T) {
	req, err := http.NewRequest(http.MethodGet, "https://example.com/widgets?x=1", nil)
	if err != nil {
		t.Fatalf("NewRequest: %s", err)
	}
	req.Header.Set("Host", "should-be-stripped")
	req.Header.Set("Connection", "keep-alive")
	req.Header.Set("X-Custom", "value")

	fields, err := requestHeaders(req, false)
	if err != nil {
		t.Fatalf("requestHeaders: %s", err)
	}

	want := map[string]string{
		":method":    http.MethodGet,
		":scheme":    "https",
		":authority": "example.com",
		":path":      "/widgets?x=1",
		"x-custom":   "value",
	}
	got := map[string]string{}
	for _, f := range fields {
		got[f.Name] = f.Value
	}
	for name, value := range want {
		if got[name] != value {
			t.Errorf("field %q = %q, want %q", name, got[name], value)
		}
	}
	for _, framing := range []string{"host", "connection"} {
		if _, ok := got[framing]; ok {
			t.Errorf("framing header %q should have been stripped", framing)
		}
	}
}

func TestShouldRequestGzip(t *testing.T) {
	newReq := func(method, acceptEncoding, rangeHdr string) *http.Request {
		req, err := http.NewRequest(method, "https://example.com/", nil)
		if err != nil {
			t.Fatalf("NewRequest: %s", err)
		}
		if acceptEncoding != "" {
			req.Header.Set("Accept-Encoding", acceptEncoding)
		}
		if rangeHdr != "" {
			req.Header.Set("Range", rangeHdr)
		}
		return req
	}

	cases := []struct {
		name               string
		disableCompression bool
		req                *http.Request
		want               bool
	}{
		{"plain GET", false, newReq(http.MethodGet, "", ""), true},
		{"disabled by config", true, newReq(http.MethodGet, "", ""), false},
		{"HEAD request", false, newReq(http.MethodHead, "", ""), false},
		{"caller set Accept-Encoding", false, newReq(http.MethodGet, "identity", ""), false},
		{"caller set Range", false, newReq(http.MethodGet, "", "bytes=0-100"), false},
	}
	for _, c := range cases {
		if got := shouldRequestGzip(c.disableCompression, c.req); got != c.want {
			t.Errorf("%s: shouldRequestGzip = %v, want %v", c.name, got, c.want)
		}
	}
}
