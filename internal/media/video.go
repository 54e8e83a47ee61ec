package media

import (
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"time"

	ffmpeg "github.com/u2takey/ffmpeg-go"
)

// probeResult is the slice of ffprobe output we care about.
type probeResult struct {
	Streams []struct {
		CodecType string `json:"codec_type"`
		Width     int    `json:"width"`
		Height    int    `json:"height"`
	} `json:"streams"`
}

// probeVideo returns the pixel dimensions of the first video stream, or a
// DecodeError if the container cannot be probed or holds no video at all.
func probeVideo(path string) (width, height int, err error) {
	out, err := ffmpeg.Probe(path)
	if err != nil {
		return 0, 0, &DecodeError{Kind: "video", Err: err}
	}
	var pr probeResult
	if err := json.Unmarshal([]byte(out), &pr); err != nil {
		return 0, 0, &DecodeError{Kind: "video", Err: fmt.Errorf("parsing probe output: %w", err)}
	}
	for _, s := range pr.Streams {
		if s.CodecType == "video" && s.Width > 0 && s.Height > 0 {
			return s.Width, s.Height, nil
		}
	}
	return 0, 0, &DecodeError{Kind: "video", Err: errors.New("no video stream found")}
}

// SampleVideo decodes a video at a bounded frame rate and reduces it to an
// ordered sequence of distinct frames. Each decoded frame is compared to
// the last selected frame by structural similarity; it is selected only
// when the content has changed enough, so a static video yields exactly
// one frame. Frames are rotated to portrait when the camera recorded
// landscape, since receipts are tall.
func SampleVideo(path string, opts SampleOptions) ([]Frame, error) {
	width, height, err := probeVideo(path)
	if err != nil {
		return nil, err
	}

	fps := opts.DecodeFPS
	if fps <= 0 {
		fps = 2
	}

	pr, pw := io.Pipe()
	go func() {
		err := ffmpeg.Input(path).
			Output("pipe:", ffmpeg.KwArgs{
				"format":  "rawvideo",
				"pix_fmt": "rgb24",
				"vf":      fmt.Sprintf("fps=%d", fps),
			}).
			WithOutput(pw).
			Run()
		pw.CloseWithError(err)
	}()

	interval := time.Second / time.Duration(fps)
	frameSize := width * height * 3
	buf := make([]byte, frameSize)
	sel := sampler{threshold: opts.SimilarityThreshold}

	var frames []Frame
	for decoded := 0; ; decoded++ {
		if _, err := io.ReadFull(pr, buf); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				break
			}
			pr.CloseWithError(err)
			return nil, &DecodeError{Kind: "video", Err: err}
		}

		img := rgbFrame(buf, width, height)
		if width > height {
			img = rotate90(img)
		}
		if !sel.keep(grayThumb(img)) {
			continue
		}

		png, err := encodePNG(img)
		if err != nil {
			pr.CloseWithError(err)
			return nil, &DecodeError{Kind: "video", Err: err}
		}
		frames = append(frames, Frame{
			PNG:       png,
			Timestamp: time.Duration(decoded) * interval,
			Index:     len(frames),
		})
	}

	if len(frames) == 0 {
		return nil, &DecodeError{Kind: "video", Err: errors.New("no frames decoded")}
	}
	return frames, nil
}

// rgbFrame copies one raw RGB24 frame into an NRGBA image. The source
// buffer is reused between frames, so the pixels must be copied out.
func rgbFrame(raw []byte, width, height int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for i := 0; i < width*height; i++ {
		img.Pix[i*4+0] = raw[i*3+0]
		img.Pix[i*4+1] = raw[i*3+1]
		img.Pix[i*4+2] = raw[i*3+2]
		img.Pix[i*4+3] = 0xff
	}
	return img
}

// rotate90 rotates an image a quarter turn clockwise.
func rotate90(src *image.NRGBA) *image.NRGBA {
	w := src.Bounds().Dx()
	h := src.Bounds().Dy()
	dst := image.NewNRGBA(image.Rect(0, 0, h, w))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			dst.SetNRGBA(h-1-y, x, src.NRGBAAt(x, y))
		}
	}
	return dst
}
