package features

import (
	"image"
	"math"

	"golang.org/x/image/draw"
)

// pyramidLevel is one downscaled copy of the input frame.
type pyramidLevel struct {
	index int
	scale float64 // full-resolution pixels per level pixel
	img   *image.Gray
}

// levelSizes returns the dimensions of every usable level: levels stop as
// soon as one would leave no room inside the detection border.
func levelSizes(width, height, levels int, scaleFactor float64, border int) []image.Point {
	sizes := make([]image.Point, 0, levels)
	for i := 0; i < levels; i++ {
		scale := math.Pow(scaleFactor, float64(i))
		w := int(math.Round(float64(width) / scale))
		h := int(math.Round(float64(height) / scale))
		if w <= 2*border || h <= 2*border {
			break
		}
		sizes = append(sizes, image.Pt(w, h))
	}
	return sizes
}

// buildLevel produces level i of the pyramid from the full-resolution frame.
// Level 0 is the frame itself re-based at the origin.
func buildLevel(src *image.Gray, index int, size image.Point, scaleFactor float64) *pyramidLevel {
	level := &pyramidLevel{
		index: index,
		scale: math.Pow(scaleFactor, float64(index)),
		img:   image.NewGray(image.Rect(0, 0, size.X, size.Y)),
	}
	if index == 0 {
		draw.Draw(level.img, level.img.Rect, src, src.Rect.Min, draw.Src)
		return level
	}
	draw.BiLinear.Scale(level.img, level.img.Rect, src, src.Rect, draw.Src, nil)
	return level
}

// levelQuotas splits maxFeatures across n levels geometrically so coarser
// levels, which cover less area, contribute fewer keypoints.
func levelQuotas(maxFeatures, n int, scaleFactor float64) []int {
	quotas := make([]int, n)
	if n == 0 {
		return quotas
	}
	factor := 1 / scaleFactor
	desired := float64(maxFeatures) * (1 - factor) / (1 - math.Pow(factor, float64(n)))
	sum := 0
	for i := 0; i < n-1; i++ {
		quotas[i] = int(math.Round(desired))
		sum += quotas[i]
		desired *= factor
	}
	quotas[n-1] = max(maxFeatures-sum, 0)
	return quotas
}
