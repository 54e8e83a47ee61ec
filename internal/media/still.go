package media

import (
	"bytes"
	"image"
	_ "image/gif"  // Register GIF decoder
	_ "image/jpeg" // Register JPEG decoder
	"image/png"
	"strings"

	"github.com/gen2brain/heic"
)

// StillImage turns a single photo into a one-frame sequence. JPEG, PNG and
// GIF go through the standard image registry; HEIC/HEIF (common on phones)
// is handled by a dedicated decoder since the standard library has none.
func StillImage(data []byte, contentType string) ([]Frame, error) {
	var img image.Image
	var err error

	if isHEIC(data) || isHEICMimeType(contentType) {
		img, err = heic.Decode(bytes.NewReader(data))
	} else {
		img, _, err = image.Decode(bytes.NewReader(data))
	}
	if err != nil {
		return nil, &DecodeError{Kind: "image", Err: err}
	}

	out, err := encodePNG(img)
	if err != nil {
		return nil, &DecodeError{Kind: "image", Err: err}
	}
	return []Frame{{PNG: out, Index: 0}}, nil
}

// encodePNG serializes an image as PNG bytes.
func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// isHEIC sniffs the ftyp box brands that HEIC/HEIF containers start with.
func isHEIC(data []byte) bool {
	if len(data) < 12 || string(data[4:8]) != "ftyp" {
		return false
	}
	switch string(data[8:12]) {
	case "heic", "heif", "mif1", "msf1":
		return true
	}
	return false
}

func isHEICMimeType(mimeType string) bool {
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	return strings.Contains(mimeType, "heic") || strings.Contains(mimeType, "heif")
}
