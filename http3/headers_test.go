package http3

import "testing"

func TestEncodeDecodeHeadersRoundTrip(t *testing.T) {
	fields := []Header{
		{Name: ":status", Value: "200"},
		{Name: "content-type", Value: "text/plain"},
		{Name: "x-custom", Value: "value"},
	}
	block, err := encodeHeaders(fields)
	if err != nil {
		t.Fatalf("encodeHeaders: %s", err)
	}

	dec := newDecoder()
	got, err := decodeHeaders(dec, block)
	if err != nil {
		t.Fatalf("decodeHeaders: %s", err)
	}
	if len(got) != len(fields) {
		t.Fatalf("got %d fields, want %d", len(got), len(fields))
	}
	for i, f := range fields {
		if got[i] != f {
			t.Errorf("field %d: got %+v, want %+v", i, got[i], f)
		}
	}
}
