package media

import (
	"fmt"
	"strings"
	"time"
)

// Frame is a single still image cut from the input media, encoded as PNG.
// Frames are immutable once produced and ordered by Index.
type Frame struct {
	PNG       []byte
	Timestamp time.Duration // position in the source video; zero for documents and photos
	Index     int
}

// DecodeError reports input media that could not be decoded at all.
// The pipeline aborts on it before any external model call is made.
type DecodeError struct {
	Kind string // "video", "pdf" or "image"
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decoding %s: %v", e.Kind, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// SampleOptions are the tunables for video frame sampling.
type SampleOptions struct {
	// SimilarityThreshold is the SSIM score below which a frame is
	// considered different enough from the last selected frame to be
	// selected itself. Higher values select more frames.
	SimilarityThreshold float64

	// DecodeFPS is the rate at which the video is decoded, bounding the
	// amount of work regardless of the native frame rate.
	DecodeFPS int
}

// Frames produces the ordered frame sequence for any supported input.
// Videos are sampled down to distinct frames, PDFs yield one frame per
// page, and photos pass through as a single frame. path must point at the
// file on disk for video inputs; data holds the same bytes for the rest.
func Frames(path string, data []byte, contentType string, opts SampleOptions) ([]Frame, error) {
	switch {
	case strings.HasPrefix(contentType, "video/"):
		return SampleVideo(path, opts)
	case contentType == "application/pdf":
		return RasterizePDF(data)
	default:
		return StillImage(data, contentType)
	}
}
