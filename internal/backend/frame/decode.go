// Package frame turns raw uploaded bytes into grayscale rasters and keeps the
// original captures on disk.
package frame

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"strings"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

var (
	// ErrEmptyFrame is returned when no image bytes were supplied
	ErrEmptyFrame = errors.New("empty frame")
	// ErrUndecodable is returned when the bytes are not a supported image
	ErrUndecodable = errors.New("undecodable frame")
	// ErrFrameTooLarge is returned, before any pixel buffer is allocated,
	// when the header announces more pixels than the decoder accepts
	ErrFrameTooLarge = fmt.Errorf("%w: frame too large", ErrUndecodable)
)

// DefaultMaxPixels bounds decoded frames. It covers current phone sensors.
const DefaultMaxPixels = 40_000_000

// Decoder converts raw frame bytes to 8-bit luminance
type Decoder struct {
	maxDimension int
	maxPixels    int
	svgWidth     int
	svgHeight    int
}

// NewDecoder creates a decoder. Frames whose longest edge exceeds
// maxDimension are downsized to it; 0 keeps frames at full size. Frames
// with more than maxPixels pixels are rejected; 0 means DefaultMaxPixels.
func NewDecoder(maxDimension, maxPixels int) *Decoder {
	if maxPixels <= 0 {
		maxPixels = DefaultMaxPixels
	}
	return &Decoder{
		maxDimension: maxDimension,
		maxPixels:    maxPixels,
		svgWidth:     defaultSVGSize,
		svgHeight:    defaultSVGSize,
	}
}

// Decode accepts raw image bytes or a base64 data URL
func (d *Decoder) Decode(raw []byte) (*image.Gray, error) {
	data, err := StripDataURL(raw)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, ErrEmptyFrame
	}

	var img image.Image
	format := "svg"
	if isSVGData(data) {
		img, err = d.renderSVG(data)
	} else {
		img, format, err = d.decodeRaster(data)
	}
	if errors.Is(err, ErrFrameTooLarge) {
		slog.Info("Decoder: frame rejected", "error", err, "size_bytes", len(data))
		return nil, err
	}
	if err != nil {
		slog.Debug("Decoder: failed to decode frame", "error", err, "size_bytes", len(data))
		return nil, fmt.Errorf("%w: %v", ErrUndecodable, err)
	}
	if img.Bounds().Empty() {
		return nil, fmt.Errorf("%w: zero-sized image", ErrUndecodable)
	}

	gray := ToGray(img)
	if d.maxDimension > 0 {
		gray = Downsize(gray, d.maxDimension)
	}

	slog.Debug("Decoder: frame decoded",
		"format", format,
		"width", gray.Rect.Dx(),
		"height", gray.Rect.Dy())
	return gray, nil
}

// decodeRaster reads the header first so oversized frames never reach the
// pixel allocation of the codec
func (d *Decoder) decodeRaster(data []byte) (image.Image, string, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, "", err
	}
	if int64(cfg.Width)*int64(cfg.Height) > int64(d.maxPixels) {
		return nil, "", fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrFrameTooLarge, cfg.Width, cfg.Height, d.maxPixels)
	}
	return image.Decode(bytes.NewReader(data))
}

// StripDataURL decodes "data:<mime>;base64,<payload>" and passes anything
// else through unchanged.
func StripDataURL(raw []byte) ([]byte, error) {
	if !bytes.HasPrefix(raw, []byte("data:")) {
		return raw, nil
	}
	header, payload, found := strings.Cut(string(raw), ",")
	if !found {
		return nil, fmt.Errorf("%w: data URL without payload", ErrUndecodable)
	}
	if !strings.HasSuffix(header, ";base64") {
		return nil, fmt.Errorf("%w: data URL is not base64 encoded", ErrUndecodable)
	}
	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: invalid base64 payload: %v", ErrUndecodable, err)
	}
	return data, nil
}

// ToGray converts any image to a *image.Gray anchored at the origin using
// the ITU-R 601 luma weights of color.GrayModel.
func ToGray(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok && g.Rect.Min == (image.Point{}) {
		return g
	}
	b := img.Bounds()
	gray := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(gray, gray.Rect, img, b.Min, draw.Src)
	return gray
}

// Downsize scales img so its longest edge is at most maxDimension, keeping
// the aspect ratio. Smaller images are returned unchanged.
func Downsize(img *image.Gray, maxDimension int) *image.Gray {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	longest := max(w, h)
	if maxDimension <= 0 || longest <= maxDimension {
		return img
	}
	nw := max(1, w*maxDimension/longest)
	nh := max(1, h*maxDimension/longest)
	dst := image.NewGray(image.Rect(0, 0, nw, nh))
	draw.CatmullRom.Scale(dst, dst.Rect, img, img.Rect, draw.Src, nil)
	return dst
}
