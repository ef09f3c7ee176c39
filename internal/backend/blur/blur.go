// Package blur rejects frames that carry too little edge information to
// produce stable features.
package blur

import (
	"image"

	"github.com/jo-hoe/itemlens/internal/common"
)

// DefaultThreshold is the Laplacian variance below which a frame counts as blurry.
// It was tuned by hand on phone captures and should be recalibrated per camera.
const DefaultThreshold = 80.0

// Gate decides whether a grayscale frame is sharp enough to use.
type Gate struct {
	Threshold float64
}

// NewGate returns a gate with the given threshold, falling back to DefaultThreshold when it is not positive.
func NewGate(threshold float64) Gate {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return Gate{Threshold: threshold}
}

// IsBlurry reports whether img should be rejected. A nil or empty image is always rejected.
func (g Gate) IsBlurry(img *image.Gray) bool {
	if img == nil || img.Rect.Empty() {
		return true
	}
	return LaplacianVariance(img) < g.Threshold
}

// LaplacianVariance returns the population variance of the 4-neighbour
// Laplacian response over the whole image, reflecting at the borders
// without repeating the edge pixel.
func LaplacianVariance(img *image.Gray) float64 {
	b := img.Rect
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return 0
	}

	at := func(x, y int) float64 {
		return float64(img.Pix[y*img.Stride+x])
	}

	var sum, sumSq float64
	for y := 0; y < h; y++ {
		up, down := common.Reflect101(y-1, h), common.Reflect101(y+1, h)
		for x := 0; x < w; x++ {
			left, right := common.Reflect101(x-1, w), common.Reflect101(x+1, w)
			v := at(left, y) + at(right, y) + at(x, up) + at(x, down) - 4*at(x, y)
			sum += v
			sumSq += v * v
		}
	}

	n := float64(w * h)
	mean := sum / n
	variance := sumSq/n - mean*mean
	if variance < 0 {
		return 0
	}
	return variance
}
