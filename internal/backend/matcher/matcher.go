// Package matcher scores how many features two descriptor sets share.
package matcher

import (
	"fmt"

	"github.com/jo-hoe/itemlens/internal/backend/descriptor"
	"github.com/jo-hoe/itemlens/internal/common"
)

// DefaultMaxDistance is the Hamming cutoff a cross-checked pair must stay under.
// It is looser than the usual 50 to tolerate phone camera captures.
const DefaultMaxDistance = 55

// Matcher scores a query descriptor set against one stored candidate set.
// Implementations must be deterministic and return 0 when either set is empty.
type Matcher interface {
	Name() string
	Score(query, candidate descriptor.Set) int
}

// DefaultRegistry holds the available matcher backends
var DefaultRegistry = common.NewRegistry[Matcher]("matcher")

// maxDistanceParam reads and validates the shared "maxDistance" parameter
func maxDistanceParam(params map[string]any) (int, error) {
	maxDistance := common.GetIntParam(params, "maxDistance", DefaultMaxDistance)
	if maxDistance <= 0 || maxDistance > descriptor.Size*8 {
		return 0, fmt.Errorf("maxDistance must be in (0, %d], got %d", descriptor.Size*8, maxDistance)
	}
	return maxDistance, nil
}
