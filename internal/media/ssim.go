package media

import (
	"image"

	"golang.org/x/image/draw"
)

// thumbSize is the side length of the grayscale thumbnails that frames are
// reduced to before comparison. Small enough to keep SSIM cheap, large
// enough that receipt text blocks still register as structure.
const thumbSize = 300

// SSIM window size and stabilization constants (K1=0.01, K2=0.03 on an
// 8-bit dynamic range, the standard choices).
const (
	ssimWindow = 8
	ssimC1     = (0.01 * 255) * (0.01 * 255)
	ssimC2     = (0.03 * 255) * (0.03 * 255)
)

// ssim computes the mean structural similarity of two grayscale images of
// identical dimensions. Identical images score 1; the score falls toward 0
// (and can go slightly negative) as structure diverges. The mean is taken
// over non-overlapping windows, with partial windows at the right and
// bottom edges included.
func ssim(a, b *image.Gray) float64 {
	w := a.Bounds().Dx()
	h := a.Bounds().Dy()

	var sum float64
	var windows int
	for y := 0; y < h; y += ssimWindow {
		for x := 0; x < w; x += ssimWindow {
			wx := min(ssimWindow, w-x)
			wy := min(ssimWindow, h-y)
			sum += windowSSIM(a, b, x, y, wx, wy)
			windows++
		}
	}
	if windows == 0 {
		return 1
	}
	return sum / float64(windows)
}

// windowSSIM computes the SSIM of one wx-by-wy window anchored at (x, y).
func windowSSIM(a, b *image.Gray, x, y, wx, wy int) float64 {
	n := float64(wx * wy)

	var sumA, sumB float64
	for j := 0; j < wy; j++ {
		ra := a.Pix[(y+j)*a.Stride+x:]
		rb := b.Pix[(y+j)*b.Stride+x:]
		for i := 0; i < wx; i++ {
			sumA += float64(ra[i])
			sumB += float64(rb[i])
		}
	}
	muA := sumA / n
	muB := sumB / n

	var varA, varB, cov float64
	for j := 0; j < wy; j++ {
		ra := a.Pix[(y+j)*a.Stride+x:]
		rb := b.Pix[(y+j)*b.Stride+x:]
		for i := 0; i < wx; i++ {
			da := float64(ra[i]) - muA
			db := float64(rb[i]) - muB
			varA += da * da
			varB += db * db
			cov += da * db
		}
	}
	varA /= n
	varB /= n
	cov /= n

	num := (2*muA*muB + ssimC1) * (2*cov + ssimC2)
	den := (muA*muA + muB*muB + ssimC1) * (varA + varB + ssimC2)
	return num / den
}

// grayThumb scales an image down to a fixed-size grayscale thumbnail for
// similarity comparison.
func grayThumb(src image.Image) *image.Gray {
	g := image.NewGray(image.Rect(0, 0, thumbSize, thumbSize))
	draw.ApproxBiLinear.Scale(g, g.Bounds(), src, src.Bounds(), draw.Src, nil)
	return g
}

// sampler implements the greedy distinct-frame selection: a frame is kept
// when its similarity to the last kept frame drops below the threshold.
// The first frame offered is always kept. Only one reference thumbnail is
// retained, so memory use is constant over the whole video.
type sampler struct {
	threshold float64
	last      *image.Gray
}

func (s *sampler) keep(g *image.Gray) bool {
	if s.last != nil && ssim(s.last, g) >= s.threshold {
		return false
	}
	s.last = g
	return true
}
