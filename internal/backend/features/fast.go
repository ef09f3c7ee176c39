package features

import (
	"image"
)

// circle is the 16-pixel Bresenham ring of radius 3 used by FAST, clockwise from north.
var circle = [16]image.Point{
	{0, -3}, {1, -3}, {2, -2}, {3, -1},
	{3, 0}, {3, 1}, {2, 2}, {1, 3},
	{0, 3}, {-1, 3}, {-2, 2}, {-3, 1},
	{-3, 0}, {-3, -1}, {-2, -2}, {-1, -3},
}

// arcLength is the number of contiguous ring pixels that must all be
// brighter or all darker than the centre (FAST-9).
const arcLength = 9

// corner is a FAST detection in level coordinates.
type corner struct {
	x, y  int
	score int
}

// detectFAST finds FAST-9 corners inside [border, w-border) x [border, h-border)
// and keeps only local maxima of the corner score in a 3x3 neighbourhood.
func detectFAST(img *image.Gray, threshold, border int) []corner {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	x0, y0, x1, y1 := border, border, w-border, h-border
	if x1 <= x0 || y1 <= y0 {
		return nil
	}

	rw, rh := x1-x0, y1-y0
	scores := make([]int, rw*rh)

	var offsets [16]int
	for i, p := range circle {
		offsets[i] = p.Y*img.Stride + p.X
	}

	for y := y0; y < y1; y++ {
		row := y * img.Stride
		for x := x0; x < x1; x++ {
			scores[(y-y0)*rw+(x-x0)] = cornerScore(img.Pix, row+x, &offsets, threshold)
		}
	}

	var corners []corner
	for ry := 0; ry < rh; ry++ {
		for rx := 0; rx < rw; rx++ {
			s := scores[ry*rw+rx]
			if s == 0 || !isLocalMax(scores, rw, rh, rx, ry, s) {
				continue
			}
			corners = append(corners, corner{x: rx + x0, y: ry + y0, score: s})
		}
	}
	return corners
}

// cornerScore returns 0 when the pixel is not a FAST-9 corner, otherwise the
// summed contrast of the ring pixels beyond the threshold on the winning side.
func cornerScore(pix []uint8, center int, offsets *[16]int, threshold int) int {
	v := int(pix[center])
	hi, lo := v+threshold, v-threshold

	// any 9-pixel arc covers at least two of the four compass points
	brightCompass, darkCompass := 0, 0
	for i := 0; i < 16; i += 4 {
		p := int(pix[center+offsets[i]])
		if p > hi {
			brightCompass++
		} else if p < lo {
			darkCompass++
		}
	}
	if brightCompass < 2 && darkCompass < 2 {
		return 0
	}

	var ring [16]int
	for i := range ring {
		ring[i] = int(pix[center+offsets[i]])
	}

	bright, dark := false, false
	runBright, runDark := 0, 0
	for i := 0; i < 16+arcLength-1; i++ {
		p := ring[i%16]
		if p > hi {
			runBright++
			runDark = 0
		} else if p < lo {
			runDark++
			runBright = 0
		} else {
			runBright, runDark = 0, 0
		}
		if runBright >= arcLength {
			bright = true
		}
		if runDark >= arcLength {
			dark = true
		}
	}
	if !bright && !dark {
		return 0
	}

	sumBright, sumDark := 0, 0
	for _, p := range ring {
		if p > hi {
			sumBright += p - hi
		} else if p < lo {
			sumDark += lo - p
		}
	}
	score := 0
	if bright {
		score = sumBright
	}
	if dark && sumDark > score {
		score = sumDark
	}
	// a corner exactly at the threshold still counts
	return max(score, 1)
}

// isLocalMax reports whether s beats its 3x3 neighbours. Plateaus resolve to
// the first pixel in raster order.
func isLocalMax(scores []int, rw, rh, rx, ry, s int) bool {
	for dy := -1; dy <= 1; dy++ {
		ny := ry + dy
		if ny < 0 || ny >= rh {
			continue
		}
		for dx := -1; dx <= 1; dx++ {
			nx := rx + dx
			if (dx == 0 && dy == 0) || nx < 0 || nx >= rw {
				continue
			}
			n := scores[ny*rw+nx]
			before := dy < 0 || (dy == 0 && dx < 0)
			if n > s || (before && n == s) {
				return false
			}
		}
	}
	return true
}
