//go:build gocv

package matcher

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/jo-hoe/itemlens/internal/backend/descriptor"
	"gocv.io/x/gocv"
)

// OpenCVMatcher delegates matching to OpenCV's BFMatcher with NORM_HAMMING and cross-check.
// The native matcher is shared by all calls and released by Close.
type OpenCVMatcher struct {
	name        string
	maxDistance int

	mu sync.Mutex
	bf gocv.BFMatcher
}

// NewOpenCVMatcher creates an OpenCV-backed matcher from configuration parameters
func NewOpenCVMatcher(params map[string]any) (Matcher, error) {
	maxDistance, err := maxDistanceParam(params)
	if err != nil {
		return nil, err
	}
	return &OpenCVMatcher{
		name:        "opencv",
		maxDistance: maxDistance,
		bf:          gocv.NewBFMatcherWithParams(gocv.NormHamming, true),
	}, nil
}

// Close releases the native matcher
func (m *OpenCVMatcher) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.bf.Close()
}

// Name returns the matcher name
func (m *OpenCVMatcher) Name() string {
	return m.name
}

// Score counts cross-checked matches closer than the cutoff
func (m *OpenCVMatcher) Score(query, candidate descriptor.Set) int {
	if len(query) == 0 || len(candidate) == 0 {
		return 0
	}

	queryMat, err := toMat(query)
	if err != nil {
		slog.Error("OpenCVMatcher: failed to build query matrix", "error", err)
		return 0
	}
	defer func() { _ = queryMat.Close() }()

	candidateMat, err := toMat(candidate)
	if err != nil {
		slog.Error("OpenCVMatcher: failed to build candidate matrix", "error", err)
		return 0
	}
	defer func() { _ = candidateMat.Close() }()

	m.mu.Lock()
	matches := m.bf.KnnMatch(queryMat, candidateMat, 1)
	m.mu.Unlock()

	// knnMatch with k=1 under cross-check returns at most one match per query row
	score := 0
	for _, row := range matches {
		if len(row) > 0 && row[0].Distance < float64(m.maxDistance) {
			score++
		}
	}
	return score
}

func toMat(s descriptor.Set) (gocv.Mat, error) {
	return gocv.NewMatFromBytes(len(s), descriptor.Size, gocv.MatTypeCV8U, descriptor.Marshal(s))
}

func init() {
	if err := DefaultRegistry.Register("opencv", NewOpenCVMatcher); err != nil {
		panic(fmt.Sprintf("failed to register opencv matcher: %v", err))
	}
}
