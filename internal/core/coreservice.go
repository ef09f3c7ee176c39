package core

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/jo-hoe/itemlens/internal/backend/blur"
	"github.com/jo-hoe/itemlens/internal/backend/database"
	"github.com/jo-hoe/itemlens/internal/backend/descriptor"
	"github.com/jo-hoe/itemlens/internal/backend/features"
	"github.com/jo-hoe/itemlens/internal/backend/frame"
	"github.com/jo-hoe/itemlens/internal/backend/matcher"
	"github.com/jo-hoe/itemlens/internal/backend/recognition"
)

type CoreService struct {
	config          *ServiceConfig
	databaseService database.DatabaseService
	decoder         *frame.Decoder
	frames          *frame.Store
	gate            blur.Gate
	extractor       features.Extractor
	matcher         matcher.Matcher
	engine          *recognition.Engine
}

// EnrollmentStatus is the guided-capture progress of one item
type EnrollmentStatus struct {
	ItemID    int64  `json:"id"`
	URL       string `json:"url"`
	Images    int    `json:"images"`
	Remaining int    `json:"remaining"`
	Complete  bool   `json:"complete"`
}

// FrameResult describes an accepted enrollment frame
type FrameResult struct {
	ImageID     int64 `json:"imageId"`
	Descriptors int   `json:"descriptors"`
	Remaining   int   `json:"remaining"`
	Complete    bool  `json:"complete"`
}

func NewCoreService(ctx context.Context, config *ServiceConfig) (*CoreService, error) {
	extractor, err := features.DefaultRegistry.Create(config.Extractor.Name, config.Extractor.Params)
	if err != nil {
		return nil, fmt.Errorf("failed to create extractor: %w", err)
	}
	m, err := matcher.DefaultRegistry.Create(config.Recognition.Matcher, config.MatcherParams())
	if err != nil {
		return nil, fmt.Errorf("failed to create matcher: %w", err)
	}
	frames, err := frame.NewStore(config.UploadDir)
	if err != nil {
		_ = closeMatcher(m)
		return nil, err
	}

	databaseService, err := getDatabaseService(ctx, config)
	if err != nil {
		_ = closeMatcher(m)
		return nil, err
	}

	gate := blur.NewGate(config.Recognition.BlurThreshold)
	engine, err := recognition.NewEngine(databaseService, gate, extractor, m, config.Thresholds())
	if err != nil {
		_ = databaseService.Close()
		_ = closeMatcher(m)
		return nil, fmt.Errorf("failed to create recognition engine: %w", err)
	}

	slog.Info("core service initialized",
		"extractor", extractor.Name(),
		"matcher", m.Name(),
		"blur_threshold", gate.Threshold,
		"match_threshold", config.Recognition.MatchThreshold,
		"borderline_threshold", config.Recognition.BorderlineThreshold)

	return &CoreService{
		config:          config,
		databaseService: databaseService,
		decoder:         frame.NewDecoder(config.Recognition.MaxFrameDimension, config.Recognition.MaxFramePixels),
		frames:          frames,
		gate:            gate,
		extractor:       extractor,
		matcher:         m,
		engine:          engine,
	}, nil
}

// Config returns the configuration the service was built from
func (service *CoreService) Config() *ServiceConfig {
	return service.config
}

// CatalogReady reports whether the catalog database answers
func (service *CoreService) CatalogReady() bool {
	return service.databaseService.DoesDatabaseExist()
}

// BeginEnrollment creates a new item and returns its id
func (service *CoreService) BeginEnrollment(ctx context.Context, url string) (int64, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return 0, ErrInvalidURL
	}
	id, err := service.databaseService.CreateItem(ctx, url)
	if err != nil {
		return 0, fmt.Errorf("failed to create item: %w", err)
	}
	slog.Info("enrollment started", "item_id", id, "url", url)
	return id, nil
}

// EnrollmentStatus derives the remaining captures from the stored images
func (service *CoreService) EnrollmentStatus(ctx context.Context, itemID int64) (EnrollmentStatus, error) {
	item, err := service.databaseService.GetItemByID(ctx, itemID)
	if err != nil {
		return EnrollmentStatus{}, err
	}
	count, err := service.databaseService.CountImages(ctx, itemID)
	if err != nil {
		return EnrollmentStatus{}, fmt.Errorf("failed to count images of item %d: %w", itemID, err)
	}
	remaining := max(service.config.Recognition.ImagesPerItem-count, 0)
	return EnrollmentStatus{
		ItemID:    item.ID,
		URL:       item.URL,
		Images:    count,
		Remaining: remaining,
		Complete:  remaining == 0,
	}, nil
}

// ListEnrollments returns the status of every item in id order
func (service *CoreService) ListEnrollments(ctx context.Context) ([]EnrollmentStatus, error) {
	items, err := service.databaseService.ListItems(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	statuses := make([]EnrollmentStatus, 0, len(items))
	for _, item := range items {
		status, err := service.EnrollmentStatus(ctx, item.ID)
		if err != nil {
			return nil, err
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}

// SubmitEnrollmentFrame stores one reference capture for the item. Blurry or
// undecodable frames are rejected with an ErrInputRejected error and leave
// the item unchanged.
func (service *CoreService) SubmitEnrollmentFrame(ctx context.Context, itemID int64, raw []byte) (FrameResult, error) {
	status, err := service.EnrollmentStatus(ctx, itemID)
	if err != nil {
		return FrameResult{}, err
	}
	if status.Complete {
		return FrameResult{}, ErrEnrollmentComplete
	}

	payload, img, err := service.decode(raw)
	if err != nil {
		return FrameResult{}, err
	}
	if service.gate.IsBlurry(img) {
		slog.Info("enrollment frame rejected as blurry", "item_id", itemID)
		return FrameResult{}, ErrBlurryFrame
	}

	start := time.Now()
	set := service.extractor.Extract(img)

	path, err := service.frames.Save(payload)
	if err != nil {
		return FrameResult{}, fmt.Errorf("failed to store frame: %w", err)
	}
	imageID, err := service.databaseService.CreateImage(ctx, itemID, path, descriptor.Marshal(set))
	if err != nil {
		if removeErr := service.frames.Remove(path); removeErr != nil {
			slog.Warn("failed to remove orphaned frame", "path", path, "error", removeErr)
		}
		return FrameResult{}, fmt.Errorf("failed to store image of item %d: %w", itemID, err)
	}

	remaining := status.Remaining - 1
	slog.Info("enrollment frame accepted",
		"item_id", itemID,
		"image_id", imageID,
		"descriptors", set.Len(),
		"remaining", remaining,
		"duration_ms", time.Since(start).Milliseconds())

	return FrameResult{
		ImageID:     imageID,
		Descriptors: set.Len(),
		Remaining:   remaining,
		Complete:    remaining == 0,
	}, nil
}

// Recognize decides which enrolled item the frame shows. Undecodable input
// is an ErrInputRejected error; a blurry frame is the TooBlurry outcome.
func (service *CoreService) Recognize(ctx context.Context, raw []byte) (recognition.Decision, error) {
	_, img, err := service.decode(raw)
	if err != nil {
		return recognition.Decision{}, err
	}
	return service.engine.Recognize(ctx, img)
}

// Reindex recomputes every stored descriptor from its saved frame with the
// configured extractor. Images whose frame can no longer be read are
// skipped and counted as failed.
func (service *CoreService) Reindex(ctx context.Context) (updated int, failed int, err error) {
	images, err := service.databaseService.GetAllImages(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to load images: %w", err)
	}
	for _, img := range images {
		if err := ctx.Err(); err != nil {
			return updated, failed, err
		}
		raw, err := service.frames.Load(img.ImagePath)
		if err != nil {
			slog.Warn("reindex: frame unreadable", "image_id", img.ID, "path", img.ImagePath, "error", err)
			failed++
			continue
		}
		_, gray, err := service.decode(raw)
		if err != nil {
			slog.Warn("reindex: frame undecodable", "image_id", img.ID, "path", img.ImagePath, "error", err)
			failed++
			continue
		}
		set := service.extractor.Extract(gray)
		if err := service.databaseService.ReplaceDescriptor(ctx, img.ID, descriptor.Marshal(set)); err != nil {
			return updated, failed, fmt.Errorf("failed to update descriptor of image %d: %w", img.ID, err)
		}
		updated++
	}
	slog.Info("reindex complete", "extractor", service.extractor.Name(), "updated", updated, "failed", failed)
	return updated, failed, nil
}

func (service *CoreService) Close() error {
	return errors.Join(service.databaseService.Close(), closeMatcher(service.matcher))
}

// closeMatcher releases matchers that hold native resources
func closeMatcher(m matcher.Matcher) error {
	if closer, ok := m.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// decode strips a data URL and decodes the frame, mapping codec failures to ErrInputRejected
func (service *CoreService) decode(raw []byte) ([]byte, *image.Gray, error) {
	payload, err := frame.StripDataURL(raw)
	if err == nil {
		var img *image.Gray
		img, err = service.decoder.Decode(payload)
		if err == nil {
			return payload, img, nil
		}
	}
	if errors.Is(err, frame.ErrEmptyFrame) || errors.Is(err, frame.ErrUndecodable) {
		return nil, nil, fmt.Errorf("%w: %w", ErrInputRejected, err)
	}
	return nil, nil, err
}

func getDatabaseService(ctx context.Context, config *ServiceConfig) (database.DatabaseService, error) {
	databaseService, err := database.NewDatabase(ctx, config.Database.Type, config.Database.ConnectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	slog.Info("database initialized successfully", "type", config.Database.Type)
	return databaseService, nil
}
