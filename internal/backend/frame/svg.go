package frame

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"math"
	"regexp"
	"strconv"

	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
	"golang.org/x/image/draw"
)

// defaultSVGSize is the raster edge used when an SVG carries no explicit size
const defaultSVGSize = 640

var (
	svgTagPattern  = regexp.MustCompile(`(?is)<svg\b[^>]*>`)
	svgSizePattern = regexp.MustCompile(`(?i)\b(width|height)\s*=\s*["']\s*([0-9]+(?:\.[0-9]+)?)`)
)

// isSVGData checks the first 4KB for an <svg> start tag
func isSVGData(data []byte) bool {
	n := min(len(data), 4096)
	return svgTagPattern.Match(data[:n])
}

// svgExplicitSize extracts the width and height attributes of the root
// element. viewBox is deliberately not treated as a pixel size.
func svgExplicitSize(data []byte) (float64, float64, bool) {
	n := min(len(data), 8192)
	tag := svgTagPattern.Find(data[:n])
	if tag == nil {
		return 0, 0, false
	}
	var w, h float64
	for _, m := range svgSizePattern.FindAllSubmatch(tag, -1) {
		v, err := strconv.ParseFloat(string(m[2]), 64)
		if err != nil || v < 1 || math.IsInf(v, 0) {
			continue
		}
		switch string(bytes.ToLower(m[1])) {
		case "width":
			w = v
		case "height":
			h = v
		}
	}
	return w, h, w > 0 && h > 0
}

// fitPixels shrinks w x h, keeping its aspect ratio, until it holds at most
// maxPixels pixels
func fitPixels(w, h float64, maxPixels int) (int, int) {
	if area := w * h; area > float64(maxPixels) {
		scale := math.Sqrt(float64(maxPixels) / area)
		w, h = w*scale, h*scale
	}
	w, h = min(w, float64(maxPixels)), min(h, float64(maxPixels))
	return max(1, int(w)), max(1, int(h))
}

// renderSVG rasterizes the SVG onto a white canvas
func (d *Decoder) renderSVG(data []byte) (image.Image, error) {
	fw, fh, ok := svgExplicitSize(data)
	if !ok {
		fw, fh = float64(d.svgWidth), float64(d.svgHeight)
	}
	w, h := fitPixels(fw, fh, d.maxPixels)
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("invalid SVG render size %dx%d", w, h)
	}

	icon, err := oksvg.ReadIconStream(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse SVG: %w", err)
	}
	icon.SetTarget(0, 0, float64(w), float64(h))

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)

	scanner := rasterx.NewScannerGV(w, h, dst, dst.Bounds())
	dasher := rasterx.NewDasher(w, h, scanner)
	icon.Draw(dasher, 1.0)
	return dst, nil
}
