// Package features turns grayscale frames into sets of binary local feature
// descriptors. Backends are looked up by name in DefaultRegistry so the
// recognition code never depends on a concrete algorithm.
package features

import (
	"image"

	"github.com/jo-hoe/itemlens/internal/backend/descriptor"
	"github.com/jo-hoe/itemlens/internal/common"
)

// Extractor computes a descriptor set for a frame. It returns an empty set,
// never an error, when the frame is nil or has no detectable keypoints.
type Extractor interface {
	Name() string
	Extract(img *image.Gray) descriptor.Set
}

// Keypoint is a detected feature location in full-resolution coordinates.
type Keypoint struct {
	X, Y     float64
	Level    int
	Size     float64
	Angle    float64 // radians, counter-clockwise from +x
	Response float64
}

// DefaultRegistry holds the available extractor backends
var DefaultRegistry = common.NewRegistry[Extractor]("extractor")
