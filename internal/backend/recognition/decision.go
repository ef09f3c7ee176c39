package recognition

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	// DefaultMatchThreshold is the lowest winning score accepted as a match
	DefaultMatchThreshold = 30
	// DefaultBorderlineThreshold is the lowest winning score that asks for more captures
	DefaultBorderlineThreshold = 15
)

// Outcome is the three-tier confidence decision, plus the blur rejection
type Outcome int

const (
	NotRecognized Outcome = iota
	Matched
	Borderline
	TooBlurry
)

func (o Outcome) String() string {
	switch o {
	case Matched:
		return "matched"
	case Borderline:
		return "borderline"
	case TooBlurry:
		return "too_blurry"
	default:
		return "not_recognized"
	}
}

// Thresholds holds the score cut points of the decision policy
type Thresholds struct {
	Match      int
	Borderline int
}

// DefaultThresholds returns the empirically tuned cut points
func DefaultThresholds() Thresholds {
	return Thresholds{Match: DefaultMatchThreshold, Borderline: DefaultBorderlineThreshold}
}

// Validate checks that both thresholds are positive and ordered
func (t Thresholds) Validate() error {
	if t.Match <= 0 || t.Borderline <= 0 {
		return fmt.Errorf("thresholds must be positive, got match=%d borderline=%d", t.Match, t.Borderline)
	}
	if t.Borderline > t.Match {
		return fmt.Errorf("borderline threshold %d exceeds match threshold %d", t.Borderline, t.Match)
	}
	return nil
}

// Decide maps the winning score to an outcome
func (t Thresholds) Decide(score int) Outcome {
	switch {
	case score >= t.Match:
		return Matched
	case score >= t.Borderline:
		return Borderline
	default:
		return NotRecognized
	}
}

// Decision is the result of one recognition call. ItemID and URL are only
// set for Matched; Score is the winning score for every scanned outcome.
type Decision struct {
	Outcome Outcome
	ItemID  int64
	URL     string
	Score   int
}

var schemePattern = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9+.-]*://`)

// NormalizeURL prefixes https:// when the stored URL carries no scheme
func NormalizeURL(raw string) string {
	u := strings.TrimSpace(raw)
	if u == "" || schemePattern.MatchString(u) {
		return u
	}
	return "https://" + u
}
