//go:build gocv

package features

import (
	"fmt"
	"image"
	"log/slog"

	"github.com/jo-hoe/itemlens/internal/backend/descriptor"
	"gocv.io/x/gocv"
)

// OpenCVORBExtractor delegates detection and description to OpenCV's ORB.
// Only available in binaries built with the gocv tag.
type OpenCVORBExtractor struct {
	params ORBParams
}

// NewOpenCVORBExtractor creates the extractor from configuration parameters
func NewOpenCVORBExtractor(params map[string]any) (Extractor, error) {
	typed, err := NewORBParamsFromMap(params)
	if err != nil {
		return nil, err
	}
	return &OpenCVORBExtractor{params: *typed}, nil
}

// Name returns the extractor name
func (e *OpenCVORBExtractor) Name() string {
	return "orb-opencv"
}

// Extract returns one descriptor per keypoint OpenCV retained
func (e *OpenCVORBExtractor) Extract(img *image.Gray) descriptor.Set {
	if img == nil || img.Rect.Empty() {
		return descriptor.Set{}
	}

	mat, err := gocv.ImageGrayToMatGray(img)
	if err != nil {
		slog.Warn("OpenCVORBExtractor: could not convert frame", "error", err)
		return descriptor.Set{}
	}
	defer mat.Close()

	orb := gocv.NewORBWithParams(
		e.params.MaxFeatures,
		float32(e.params.ScaleFactor),
		e.params.Levels,
		e.params.EdgeThreshold,
		0, // first level
		2, // WTA_K
		gocv.ORBScoreTypeHarris,
		e.params.PatchSize,
		e.params.FastThreshold,
	)
	defer orb.Close()

	mask := gocv.NewMat()
	defer mask.Close()

	keypoints, desc := orb.DetectAndCompute(mat, mask)
	defer desc.Close()
	if desc.Empty() {
		return descriptor.Set{}
	}

	set, err := descriptor.Unmarshal(desc.ToBytes())
	if err != nil {
		slog.Warn("OpenCVORBExtractor: unexpected descriptor layout", "error", err, "keypoints", len(keypoints))
		return descriptor.Set{}
	}
	return set
}

func init() {
	if err := DefaultRegistry.Register("orb-opencv", NewOpenCVORBExtractor); err != nil {
		panic(fmt.Sprintf("failed to register orb-opencv extractor: %v", err))
	}
}
