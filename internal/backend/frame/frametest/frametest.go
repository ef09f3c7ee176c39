// Package frametest generates deterministic grayscale frames that stand in
// for camera captures in tests.
package frametest

import (
	"bytes"
	"image"
	"image/png"
	"math/rand/v2"
)

// BlockTexture paints random gray blocks with a small per-pixel dither. The
// block junctions give FAST plenty of corners while the dither stays below
// its threshold inside a block. Equal seeds give equal frames.
func BlockTexture(seed uint64, w, h, block int) *image.Gray {
	rng := rand.New(rand.NewPCG(seed, 99))
	bw, bh := (w+block-1)/block, (h+block-1)/block
	values := make([]int, bw*bh)
	for i := range values {
		values[i] = 24 + rng.IntN(208)
	}
	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := values[(y/block)*bw+x/block] + rng.IntN(17) - 8
			img.Pix[y*img.Stride+x] = uint8(min(max(v, 0), 255))
		}
	}
	return img
}

// Crop returns the r part of src, sharing its pixels
func Crop(src *image.Gray, r image.Rectangle) *image.Gray {
	return src.SubImage(r).(*image.Gray)
}

// Flat returns a w x h frame filled with v
func Flat(w, h int, v uint8) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = v
	}
	return img
}

// BoxBlur averages over a (2r+1)^2 window with clamped borders. The result
// is anchored at the origin.
func BoxBlur(src *image.Gray, r int) *image.Gray {
	b := src.Bounds()
	dst := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			sum, n := 0, 0
			for dy := -r; dy <= r; dy++ {
				for dx := -r; dx <= r; dx++ {
					px := min(max(x+dx, 0), b.Dx()-1)
					py := min(max(y+dy, 0), b.Dy()-1)
					sum += int(src.GrayAt(b.Min.X+px, b.Min.Y+py).Y)
					n++
				}
			}
			dst.Pix[y*dst.Stride+x] = uint8((sum + n/2) / n)
		}
	}
	return dst
}

// PNG encodes img, panicking on failure since encoding an in-memory gray
// image cannot fail
func PNG(img image.Image) []byte {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		panic(err)
	}
	return buf.Bytes()
}
