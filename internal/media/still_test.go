package media

import (
	"bytes"
	"errors"
	"image"
	"image/png"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// pngBytes encodes a small test image.
func pngBytes() []byte {
	img := image.NewNRGBA(image.Rect(0, 0, 8, 8))
	var buf bytes.Buffer
	Expect(png.Encode(&buf, img)).To(Succeed())
	return buf.Bytes()
}

var _ = Describe("StillImage", func() {
	When("given a valid PNG", func() {
		It("returns exactly one frame", func() {
			frames, err := StillImage(pngBytes(), "image/png")
			Expect(err).NotTo(HaveOccurred())
			Expect(frames).To(HaveLen(1))
			Expect(frames[0].Index).To(Equal(0))
		})

		It("re-encodes the frame as PNG", func() {
			frames, err := StillImage(pngBytes(), "image/png")
			Expect(err).NotTo(HaveOccurred())
			Expect(frames[0].PNG[:8]).To(Equal([]byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}))
		})
	})

	When("given undecodable bytes", func() {
		It("returns a DecodeError", func() {
			_, err := StillImage([]byte("not an image"), "image/jpeg")
			var decodeErr *DecodeError
			Expect(err).To(HaveOccurred())
			Expect(errors.As(err, &decodeErr)).To(BeTrue())
			Expect(decodeErr.Kind).To(Equal("image"))
		})
	})
})

var _ = Describe("isHEIC", func() {
	It("detects the ftyp heic brand", func() {
		data := append([]byte{0, 0, 0, 24}, []byte("ftypheic")...)
		data = append(data, make([]byte, 16)...)
		Expect(isHEIC(data)).To(BeTrue())
	})

	It("rejects short or unrelated data", func() {
		Expect(isHEIC([]byte("tiny"))).To(BeFalse())
		Expect(isHEIC(pngBytes())).To(BeFalse())
	})
})

var _ = Describe("isHEICMimeType", func() {
	It("matches heic and heif variants case-insensitively", func() {
		Expect(isHEICMimeType("image/heic")).To(BeTrue())
		Expect(isHEICMimeType(" IMAGE/HEIF ")).To(BeTrue())
		Expect(isHEICMimeType("image/png")).To(BeFalse())
	})
})

var _ = Describe("Frames", func() {
	It("routes photos through the still-image path", func() {
		frames, err := Frames("", pngBytes(), "image/png", SampleOptions{})
		Expect(err).NotTo(HaveOccurred())
		Expect(frames).To(HaveLen(1))
	})
})
