package media

import (
	"errors"

	"github.com/gen2brain/go-fitz"
)

// RasterizePDF renders each page of a PDF document to one PNG frame, in
// page order. Most receipts are single page, but multi-page documents
// feed the same downstream pipeline as sampled video frames.
func RasterizePDF(data []byte) ([]Frame, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, &DecodeError{Kind: "pdf", Err: err}
	}
	defer doc.Close()

	pages := doc.NumPage()
	if pages == 0 {
		return nil, &DecodeError{Kind: "pdf", Err: errors.New("document has no pages")}
	}

	frames := make([]Frame, 0, pages)
	for n := 0; n < pages; n++ {
		img, err := doc.Image(n)
		if err != nil {
			return nil, &DecodeError{Kind: "pdf", Err: err}
		}
		png, err := encodePNG(img)
		if err != nil {
			return nil, &DecodeError{Kind: "pdf", Err: err}
		}
		frames = append(frames, Frame{PNG: png, Index: n})
	}
	return frames, nil
}
