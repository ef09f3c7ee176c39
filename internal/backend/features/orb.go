package features

import (
	"fmt"
	"image"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/jo-hoe/itemlens/internal/backend/descriptor"
	"github.com/jo-hoe/itemlens/internal/common"
)

const (
	harrisK         = 0.04
	harrisBlockSize = 7
	smoothingSize   = 7
	smoothingSigma  = 2.0
)

// ORBParams configures the oriented FAST / rotated BRIEF extractor
type ORBParams struct {
	MaxFeatures   int
	ScaleFactor   float64
	Levels        int
	EdgeThreshold int
	PatchSize     int
	FastThreshold int
}

// DefaultORBParams mirrors the usual ORB defaults
func DefaultORBParams() ORBParams {
	return ORBParams{
		MaxFeatures:   500,
		ScaleFactor:   1.2,
		Levels:        8,
		EdgeThreshold: 31,
		PatchSize:     31,
		FastThreshold: 20,
	}
}

// NewORBParamsFromMap creates ORBParams from a generic map, keeping defaults for missing keys
func NewORBParamsFromMap(params map[string]any) (*ORBParams, error) {
	defaults := DefaultORBParams()
	p := &ORBParams{
		MaxFeatures:   common.GetIntParam(params, "maxFeatures", defaults.MaxFeatures),
		ScaleFactor:   common.GetFloatParam(params, "scaleFactor", defaults.ScaleFactor),
		Levels:        common.GetIntParam(params, "levels", defaults.Levels),
		EdgeThreshold: common.GetIntParam(params, "edgeThreshold", defaults.EdgeThreshold),
		PatchSize:     common.GetIntParam(params, "patchSize", defaults.PatchSize),
		FastThreshold: common.GetIntParam(params, "fastThreshold", defaults.FastThreshold),
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// Validate checks parameter ranges
func (p *ORBParams) Validate() error {
	if err := common.ValidatePositive("maxFeatures", float64(p.MaxFeatures)); err != nil {
		return err
	}
	if p.ScaleFactor <= 1 {
		return fmt.Errorf("scaleFactor must be greater than 1, got %v", p.ScaleFactor)
	}
	if err := common.ValidatePositive("levels", float64(p.Levels)); err != nil {
		return err
	}
	if p.PatchSize < 5 {
		return fmt.Errorf("patchSize must be at least 5, got %d", p.PatchSize)
	}
	// orientation moments read a full patch radius, Harris a block plus the Sobel ring
	minEdge := max(p.PatchSize/2+1, harrisBlockSize/2+1)
	if p.EdgeThreshold < minEdge {
		return fmt.Errorf("edgeThreshold must be at least %d for patchSize %d, got %d", minEdge, p.PatchSize, p.EdgeThreshold)
	}
	if p.FastThreshold <= 0 || p.FastThreshold > 255 {
		return fmt.Errorf("fastThreshold must be in (0, 255], got %d", p.FastThreshold)
	}
	return nil
}

// ORBExtractor is a pure Go oriented FAST / rotated BRIEF implementation.
// It uses OpenCV's test pattern, but its pyramid and keypoint selection
// differ in detail, so stored sets must come from the same backend.
type ORBExtractor struct {
	name    string
	params  ORBParams
	pattern []testPair
	// umax[v] is the half-width of the circular patch on row v
	umax []int
}

// NewORBExtractor creates the extractor from configuration parameters
func NewORBExtractor(params map[string]any) (Extractor, error) {
	typed, err := NewORBParamsFromMap(params)
	if err != nil {
		return nil, err
	}
	return NewORBExtractorWithParams(*typed)
}

// NewORBExtractorWithParams creates the extractor from typed parameters
func NewORBExtractorWithParams(params ORBParams) (*ORBExtractor, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	half := params.PatchSize / 2
	umax := make([]int, half+1)
	for v := 0; v <= half; v++ {
		umax[v] = int(math.Floor(math.Sqrt(float64(half*half - v*v))))
	}
	return &ORBExtractor{
		name:    "orb",
		params:  params,
		pattern: samplingPattern(params.PatchSize),
		umax:    umax,
	}, nil
}

// Name returns the extractor name
func (e *ORBExtractor) Name() string {
	return e.name
}

// Params returns the configured parameters
func (e *ORBExtractor) Params() ORBParams {
	return e.params
}

// Extract returns one descriptor per retained keypoint
func (e *ORBExtractor) Extract(img *image.Gray) descriptor.Set {
	_, set := e.Detect(img)
	return set
}

// Detect returns the retained keypoints and their descriptors, index-aligned
func (e *ORBExtractor) Detect(img *image.Gray) ([]Keypoint, descriptor.Set) {
	if img == nil || img.Rect.Empty() {
		return nil, descriptor.Set{}
	}
	start := time.Now()

	sizes := levelSizes(img.Rect.Dx(), img.Rect.Dy(), e.params.Levels, e.params.ScaleFactor, e.params.EdgeThreshold)
	quotas := levelQuotas(e.params.MaxFeatures, len(sizes), e.params.ScaleFactor)

	keypointsPerLevel := make([][]Keypoint, len(sizes))
	descriptorsPerLevel := make([]descriptor.Set, len(sizes))
	parallelFor(len(sizes), func(i int) {
		level := buildLevel(img, i, sizes[i], e.params.ScaleFactor)
		keypointsPerLevel[i], descriptorsPerLevel[i] = e.processLevel(level, quotas[i])
	})

	var keypoints []Keypoint
	set := descriptor.Set{}
	for i := range sizes {
		keypoints = append(keypoints, keypointsPerLevel[i]...)
		set = append(set, descriptorsPerLevel[i]...)
	}

	slog.Debug("ORBExtractor: extraction complete",
		"width", img.Rect.Dx(),
		"height", img.Rect.Dy(),
		"levels", len(sizes),
		"keypoints", len(keypoints),
		"duration_ms", time.Since(start).Milliseconds())

	return keypoints, set
}

// processLevel detects, ranks, orients and describes keypoints on one level
func (e *ORBExtractor) processLevel(level *pyramidLevel, quota int) ([]Keypoint, descriptor.Set) {
	if quota == 0 {
		return nil, nil
	}
	corners := detectFAST(level.img, e.params.FastThreshold, e.params.EdgeThreshold)
	if len(corners) == 0 {
		return nil, nil
	}

	responses := make([]float64, len(corners))
	for i, c := range corners {
		responses[i] = harrisResponse(level.img, c.x, c.y)
	}

	order := make([]int, len(corners))
	for i := range order {
		order[i] = i
	}
	// strongest first; raster order breaks ties so the result is reproducible
	sort.SliceStable(order, func(a, b int) bool {
		return responses[order[a]] > responses[order[b]]
	})
	if len(order) > quota {
		order = order[:quota]
	}

	smoothed := gaussianBlur(level.img, smoothingSize, smoothingSigma)

	keypoints := make([]Keypoint, len(order))
	set := make(descriptor.Set, len(order))
	for k, idx := range order {
		c := corners[idx]
		angle := e.orientation(level.img, c.x, c.y)
		keypoints[k] = Keypoint{
			X:        float64(c.x) * level.scale,
			Y:        float64(c.y) * level.scale,
			Level:    level.index,
			Size:     float64(e.params.PatchSize) * level.scale,
			Angle:    angle,
			Response: responses[idx],
		}
		set[k] = e.describe(smoothed, c.x, c.y, angle)
	}
	return keypoints, set
}

// harrisResponse computes the Harris corner measure over a block around (x, y)
// using 3x3 Sobel gradients.
func harrisResponse(img *image.Gray, x, y int) float64 {
	pix, stride := img.Pix, img.Stride
	at := func(px, py int) float64 { return float64(pix[py*stride+px]) }

	half := harrisBlockSize / 2
	var a, b, c float64
	for dy := -half; dy <= half; dy++ {
		for dx := -half; dx <= half; dx++ {
			px, py := x+dx, y+dy
			ix := (at(px+1, py-1) + 2*at(px+1, py) + at(px+1, py+1)) -
				(at(px-1, py-1) + 2*at(px-1, py) + at(px-1, py+1))
			iy := (at(px-1, py+1) + 2*at(px, py+1) + at(px+1, py+1)) -
				(at(px-1, py-1) + 2*at(px, py-1) + at(px+1, py-1))
			a += ix * ix
			b += iy * iy
			c += ix * iy
		}
	}
	return a*b - c*c - harrisK*(a+b)*(a+b)
}

// orientation returns the angle from the keypoint to the intensity centroid
// of its circular patch.
func (e *ORBExtractor) orientation(img *image.Gray, x, y int) float64 {
	pix, stride := img.Pix, img.Stride
	half := e.params.PatchSize / 2

	var m01, m10 float64
	for v := -half; v <= half; v++ {
		limit := e.umax[abs(v)]
		row := (y + v) * stride
		for u := -limit; u <= limit; u++ {
			p := float64(pix[row+x+u])
			m10 += float64(u) * p
			m01 += float64(v) * p
		}
	}
	return math.Atan2(m01, m10)
}

// describe evaluates the rotated comparison pattern on the smoothed level
func (e *ORBExtractor) describe(smoothed *image.Gray, x, y int, angle float64) descriptor.Descriptor {
	var d descriptor.Descriptor
	w, h := smoothed.Rect.Dx(), smoothed.Rect.Dy()
	sin, cos := math.Sincos(angle)

	sampleAt := func(u, v float64) uint8 {
		px := x + int(math.Round(u*cos-v*sin))
		py := y + int(math.Round(u*sin+v*cos))
		px = min(max(px, 0), w-1)
		py = min(max(py, 0), h-1)
		return smoothed.Pix[py*smoothed.Stride+px]
	}

	for i, p := range e.pattern {
		if sampleAt(p.x1, p.y1) < sampleAt(p.x2, p.y2) {
			d[i/8] |= 1 << (i % 8)
		}
	}
	return d
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func init() {
	if err := DefaultRegistry.Register("orb", NewORBExtractor); err != nil {
		panic(fmt.Sprintf("failed to register orb extractor: %v", err))
	}
}
