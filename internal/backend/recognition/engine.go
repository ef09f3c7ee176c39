// Package recognition scores a query frame against every enrolled item and
// turns the best score into a match decision.
package recognition

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"time"

	"github.com/jo-hoe/itemlens/internal/backend/blur"
	"github.com/jo-hoe/itemlens/internal/backend/database"
	"github.com/jo-hoe/itemlens/internal/backend/descriptor"
	"github.com/jo-hoe/itemlens/internal/backend/features"
	"github.com/jo-hoe/itemlens/internal/backend/matcher"
)

// Catalog is the read side of the descriptor store the engine scans
type Catalog interface {
	CountItems(ctx context.Context) (int, error)
	GetItemByID(ctx context.Context, id int64) (*database.Item, error)
	GetAllImages(ctx context.Context) ([]*database.Image, error)
}

// Engine runs blur gate, extraction and the per-item best-match scan
type Engine struct {
	catalog    Catalog
	gate       blur.Gate
	extractor  features.Extractor
	matcher    matcher.Matcher
	thresholds Thresholds
}

// NewEngine wires the engine. Thresholds are validated here so a bad
// configuration fails at startup rather than on the first query.
func NewEngine(catalog Catalog, gate blur.Gate, extractor features.Extractor, m matcher.Matcher, thresholds Thresholds) (*Engine, error) {
	if catalog == nil || extractor == nil || m == nil {
		return nil, errors.New("recognition engine needs a catalog, an extractor and a matcher")
	}
	if err := thresholds.Validate(); err != nil {
		return nil, err
	}
	return &Engine{
		catalog:    catalog,
		gate:       gate,
		extractor:  extractor,
		matcher:    m,
		thresholds: thresholds,
	}, nil
}

// Thresholds returns the configured decision cut points
func (e *Engine) Thresholds() Thresholds {
	return e.thresholds
}

// Recognize decides which enrolled item, if any, the frame shows.
// Store failures are returned as errors; everything else is a Decision.
func (e *Engine) Recognize(ctx context.Context, img *image.Gray) (Decision, error) {
	if e.gate.IsBlurry(img) {
		slog.Debug("Engine: frame rejected by blur gate")
		return Decision{Outcome: TooBlurry}, nil
	}

	count, err := e.catalog.CountItems(ctx)
	if err != nil {
		return Decision{}, fmt.Errorf("failed to count items: %w", err)
	}
	if count == 0 {
		slog.Debug("Engine: catalog is empty")
		return Decision{Outcome: NotRecognized}, nil
	}

	start := time.Now()
	query := e.extractor.Extract(img)

	bestItem, bestScore, err := e.scan(ctx, query)
	if err != nil {
		return Decision{}, err
	}

	outcome := e.thresholds.Decide(bestScore)
	slog.Info("Engine: recognition complete",
		"outcome", outcome.String(),
		"item_id", bestItem,
		"score", bestScore,
		"query_descriptors", query.Len(),
		"duration_ms", time.Since(start).Milliseconds())

	decision := Decision{Outcome: outcome, Score: bestScore}
	if outcome != Matched {
		return decision, nil
	}
	item, err := e.catalog.GetItemByID(ctx, bestItem)
	if err != nil {
		return Decision{}, fmt.Errorf("failed to load matched item %d: %w", bestItem, err)
	}
	decision.ItemID = item.ID
	decision.URL = NormalizeURL(item.URL)
	return decision, nil
}

// scan returns the item whose single best image scores highest. The first
// item to reach a score keeps it; later items must beat it strictly.
func (e *Engine) scan(ctx context.Context, query descriptor.Set) (int64, int, error) {
	if query.Len() == 0 {
		return 0, 0, nil
	}
	images, err := e.catalog.GetAllImages(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to load images: %w", err)
	}

	var (
		order     []int64
		itemBest  = map[int64]int{}
		bestItem  int64
		bestScore int
	)
	for _, img := range images {
		if _, seen := itemBest[img.ItemID]; !seen {
			itemBest[img.ItemID] = 0
			order = append(order, img.ItemID)
		}
		if img.Descriptor == nil {
			continue
		}
		candidate, err := descriptor.Unmarshal(img.Descriptor)
		if err != nil {
			slog.Warn("Engine: skipping image with corrupt descriptor",
				"image_id", img.ID,
				"item_id", img.ItemID,
				"error", err)
			continue
		}
		if s := e.matcher.Score(query, candidate); s > itemBest[img.ItemID] {
			itemBest[img.ItemID] = s
		}
	}

	for _, id := range order {
		if s := itemBest[id]; s > bestScore {
			bestItem, bestScore = id, s
		}
	}
	return bestItem, bestScore, nil
}
