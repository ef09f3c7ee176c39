package features

import (
	"image"
	"math"

	"github.com/jo-hoe/itemlens/internal/common"
)

// gaussianKernel returns a normalised 1-D kernel of the given odd size.
func gaussianKernel(size int, sigma float64) []float64 {
	k := make([]float64, size)
	half := size / 2
	sum := 0.0
	for i := range k {
		d := float64(i - half)
		k[i] = math.Exp(-d * d / (2 * sigma * sigma))
		sum += k[i]
	}
	for i := range k {
		k[i] /= sum
	}
	return k
}

// gaussianBlur applies a separable Gaussian with reflect-101 borders. The
// descriptor tests compare smoothed intensities, which keeps single-pixel
// noise from flipping bits.
func gaussianBlur(src *image.Gray, size int, sigma float64) *image.Gray {
	w, h := src.Rect.Dx(), src.Rect.Dy()
	k := gaussianKernel(size, sigma)
	half := size / 2

	tmp := make([]float64, w*h)
	for y := 0; y < h; y++ {
		row := src.Pix[y*src.Stride : y*src.Stride+w]
		for x := 0; x < w; x++ {
			acc := 0.0
			for i, kv := range k {
				acc += kv * float64(row[common.Reflect101(x+i-half, w)])
			}
			tmp[y*w+x] = acc
		}
	}

	dst := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			acc := 0.0
			for i, kv := range k {
				acc += kv * tmp[common.Reflect101(y+i-half, h)*w+x]
			}
			dst.Pix[y*dst.Stride+x] = uint8(math.Min(255, math.Max(0, math.Round(acc))))
		}
	}
	return dst
}
