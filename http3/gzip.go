package http3

import (
	"compress/gzip"
	"io"
	"sync"
)

// gzipReader lazily constructs a *gzip.Reader on first Read, so opening a
// response whose body turns out to be empty never pays for it.
type gzipReader struct {
	body   io.ReadCloser
	mu     sync.Mutex
	gzip   *gzip.Reader
	closed bool
}

func newGzipReader(body io.ReadCloser) *gzipReader {
	return &gzipReader{body: body}
}

func (r *gzipReader) Read(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.gzip == nil {
		gz, err := gzip.NewReader(r.body)
		if err != nil {
			return 0, err
		}
		r.gzip = gz
	}
	return r.gzip.Read(p)
}

func (r *gzipReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return r.body.Close()
}
