package matcher

import (
	"fmt"

	"github.com/jo-hoe/itemlens/internal/backend/descriptor"
)

// CrossCheckMatcher is a brute-force Hamming matcher that keeps a pair only
// when both descriptors are each other's nearest neighbour.
type CrossCheckMatcher struct {
	name        string
	maxDistance int
}

// NewCrossCheckMatcher creates a matcher from configuration parameters
func NewCrossCheckMatcher(params map[string]any) (Matcher, error) {
	maxDistance, err := maxDistanceParam(params)
	if err != nil {
		return nil, err
	}
	return NewCrossCheckMatcherWithDistance(maxDistance), nil
}

// NewCrossCheckMatcherWithDistance creates a matcher with a concrete cutoff
func NewCrossCheckMatcherWithDistance(maxDistance int) *CrossCheckMatcher {
	return &CrossCheckMatcher{
		name:        "crosscheck",
		maxDistance: maxDistance,
	}
}

// Name returns the matcher name
func (m *CrossCheckMatcher) Name() string {
	return m.name
}

// MaxDistance returns the configured cutoff
func (m *CrossCheckMatcher) MaxDistance() int {
	return m.maxDistance
}

// Score counts mutual nearest-neighbour pairs closer than the cutoff.
// Ties resolve to the lowest index in both directions.
func (m *CrossCheckMatcher) Score(query, candidate descriptor.Set) int {
	if len(query) == 0 || len(candidate) == 0 {
		return 0
	}

	// nearest candidate for every query row, and nearest query for every candidate row
	bestCandidate := make([]int, len(query))
	bestCandidateDist := make([]int, len(query))
	bestQuery := make([]int, len(candidate))
	bestQueryDist := make([]int, len(candidate))
	for j := range bestQueryDist {
		bestQueryDist[j] = descriptor.Size*8 + 1
	}

	for i := range query {
		best, bestDist := -1, descriptor.Size*8+1
		for j := range candidate {
			d := descriptor.Distance(&query[i], &candidate[j])
			if d < bestDist {
				best, bestDist = j, d
			}
			if d < bestQueryDist[j] {
				bestQuery[j], bestQueryDist[j] = i, d
			}
		}
		bestCandidate[i], bestCandidateDist[i] = best, bestDist
	}

	score := 0
	for i, j := range bestCandidate {
		if bestQuery[j] == i && bestCandidateDist[i] < m.maxDistance {
			score++
		}
	}
	return score
}

func init() {
	if err := DefaultRegistry.Register("crosscheck", NewCrossCheckMatcher); err != nil {
		panic(fmt.Sprintf("failed to register crosscheck matcher: %v", err))
	}
}
