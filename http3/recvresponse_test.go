package http3

import (
	"bytes"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("RecvResponse", func() {
	var buildStream = func(fields []Header) *fakeStream {
		block, err := encodeHeaders(fields)
		Expect(err).NotTo(HaveOccurred())
		var buf bytes.Buffer
		Expect(WriteHeadersFrame(&buf, block)).To(Succeed())
		return newFakeStream(buf.Bytes())
	}

	It("decodes a well-formed response", func() {
		stream := buildStream([]Header{
			{Name: ":status", Value: "200"},
			{Name: "content-type", Value: "text/plain"},
		})
		recv := newRecvResponse(stream, newDecoder(), 0, false, nil)

		resp, body, err := recv.Wait()
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.StatusCode).To(Equal(200))
		Expect(resp.Header.Get("content-type")).To(Equal("text/plain"))
		Expect(body).NotTo(BeNil())
	})

	It("errors when polled again after finishing", func() {
		stream := buildStream([]Header{{Name: ":status", Value: "204"}})
		recv := newRecvResponse(stream, newDecoder(), 0, false, nil)

		_, _, err := recv.Wait()
		Expect(err).NotTo(HaveOccurred())

		_, _, err = recv.Wait()
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("polled after finish"))
	})

	It("rejects a response whose first frame is not HEADERS", func() {
		var buf bytes.Buffer
		Expect(WriteDataFrame(&buf, []byte("oops"))).To(Succeed())
		stream := newFakeStream(buf.Bytes())
		recv := newRecvResponse(stream, newDecoder(), 0, false, nil)

		_, _, err := recv.Wait()
		Expect(err).To(HaveOccurred())
	})

	It("rejects a response missing the :status pseudo-header", func() {
		stream := buildStream([]Header{{Name: "content-type", Value: "text/plain"}})
		recv := newRecvResponse(stream, newDecoder(), 0, false, nil)

		_, _, err := recv.Wait()
		Expect(err).To(HaveOccurred())
	})

	It("Cancel is a no-op once the response has already finished", func() {
		stream := buildStream([]Header{{Name: ":status", Value: "200"}})
		recv := newRecvResponse(stream, newDecoder(), 0, false, nil)

		_, _, err := recv.Wait()
		Expect(err).NotTo(HaveOccurred())

		recv.Cancel()
		Expect(stream.canceledRead).To(BeNil())
	})

	It("Cancel resets the stream while still receiving", func() {
		stream := newFakeStream(nil) // nothing written yet
		recv := newRecvResponse(stream, newDecoder(), 0, false, nil)

		recv.Cancel()
		Expect(stream.canceledRead).NotTo(BeNil())
		Expect(*stream.canceledRead).To(BeEquivalentTo(ErrCodeRequestCancelled))
	})

	It("resets the stream with EXCESSIVE_LOAD when HEADERS exceeds the configured limit", func() {
		stream := buildStream([]Header{
			{Name: ":status", Value: "200"},
			{Name: "x-padding", Value: "0123456789"},
		})
		recv := newRecvResponse(stream, newDecoder(), 4, false, nil)

		_, _, err := recv.Wait()
		Expect(err).To(HaveOccurred())
		Expect(stream.canceledRead).NotTo(BeNil())
		Expect(*stream.canceledRead).To(BeEquivalentTo(ErrCodeExcessiveLoad))
	})
})
