package backend

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/jo-hoe/itemlens/internal/core"
	"github.com/jo-hoe/itemlens/internal/session"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

type APIService struct {
	coreService *core.CoreService
	config      *core.ServiceConfig
	sessions    *session.Manager
}

type createItemRequest struct {
	URL string `json:"url" validate:"required"`
}

type createItemResponse struct {
	ID        int64 `json:"id"`
	Remaining int   `json:"remaining"`
}

type recognizeResponse struct {
	Outcome string `json:"outcome"`
	ItemID  int64  `json:"itemId,omitempty"`
	URL     string `json:"url,omitempty"`
	Score   int    `json:"score"`
}

func NewAPIService(config *core.ServiceConfig, coreService *core.CoreService, sessions *session.Manager) *APIService {
	return &APIService{
		coreService: coreService,
		config:      config,
		sessions:    sessions,
	}
}

func (s *APIService) SetRoutes(e *echo.Echo) {
	api := e.Group("/api", s.sessions.Middleware(), s.requireLogin)
	upload := middleware.BodyLimit(strconv.FormatInt(s.config.MaxUploadBytes(), 10) + "B")

	api.GET("/items", s.listItemsHandler)
	api.POST("/items", s.createItemHandler)
	api.GET("/items/:id", s.getItemHandler)
	api.POST("/items/:id/images", s.addImageHandler, upload)
	api.POST("/recognize", s.recognizeHandler, upload)
}

// requireLogin answers 401 instead of redirecting, since API clients do not follow login pages
func (s *APIService) requireLogin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		sess := session.FromContext(c)
		if sess == nil || !sess.State.LoggedIn {
			return echo.NewHTTPError(http.StatusUnauthorized, "login required")
		}
		return next(c)
	}
}

func (s *APIService) listItemsHandler(c echo.Context) error {
	statuses, err := s.coreService.ListEnrollments(c.Request().Context())
	if err != nil {
		return s.failure(c, "listItemsHandler", err)
	}
	return c.JSON(http.StatusOK, statuses)
}

func (s *APIService) createItemHandler(c echo.Context) error {
	var req createItemRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	ctx := c.Request().Context()
	id, err := s.coreService.BeginEnrollment(ctx, req.URL)
	if err != nil {
		return s.failure(c, "createItemHandler", err)
	}
	status, err := s.coreService.EnrollmentStatus(ctx, id)
	if err != nil {
		return s.failure(c, "createItemHandler", err)
	}
	return c.JSON(http.StatusCreated, createItemResponse{ID: id, Remaining: status.Remaining})
}

func (s *APIService) getItemHandler(c echo.Context) error {
	id, err := itemID(c)
	if err != nil {
		return err
	}
	status, err := s.coreService.EnrollmentStatus(c.Request().Context(), id)
	if err != nil {
		return s.failure(c, "getItemHandler", err)
	}
	return c.JSON(http.StatusOK, status)
}

func (s *APIService) addImageHandler(c echo.Context) error {
	id, err := itemID(c)
	if err != nil {
		return err
	}
	raw, err := formImage(c)
	if err != nil {
		return err
	}
	result, err := s.coreService.SubmitEnrollmentFrame(c.Request().Context(), id, raw)
	if err != nil {
		return s.failure(c, "addImageHandler", err)
	}
	return c.JSON(http.StatusCreated, result)
}

func (s *APIService) recognizeHandler(c echo.Context) error {
	raw, err := formImage(c)
	if err != nil {
		return err
	}
	decision, err := s.coreService.Recognize(c.Request().Context(), raw)
	if err != nil {
		return s.failure(c, "recognizeHandler", err)
	}
	return c.JSON(http.StatusOK, recognizeResponse{
		Outcome: decision.Outcome.String(),
		ItemID:  decision.ItemID,
		URL:     decision.URL,
		Score:   decision.Score,
	})
}

// failure maps core errors to HTTP errors; unknown errors are logged and hidden
func (s *APIService) failure(c echo.Context, handler string, err error) error {
	switch {
	case errors.Is(err, core.ErrItemNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "item not found")
	case errors.Is(err, core.ErrBlurryFrame):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "image is too blurry")
	case errors.Is(err, core.ErrInputRejected):
		return echo.NewHTTPError(http.StatusBadRequest, "image could not be decoded")
	case errors.Is(err, core.ErrEnrollmentComplete):
		return echo.NewHTTPError(http.StatusConflict, "enrollment already complete")
	case errors.Is(err, core.ErrInvalidURL):
		return echo.NewHTTPError(http.StatusBadRequest, "url must not be empty")
	}
	slog.Error(handler+": request failed",
		"status", http.StatusInternalServerError, "path", c.Path(), "error", err)
	return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
}

func itemID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid item id")
	}
	return id, nil
}

func formImage(c echo.Context) ([]byte, error) {
	file, err := c.FormFile("image")
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "missing image file")
	}
	src, err := file.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open uploaded file: %w", err)
	}
	defer func() {
		_ = src.Close()
	}()
	raw, err := io.ReadAll(src)
	if err != nil {
		return nil, fmt.Errorf("failed to read uploaded file: %w", err)
	}
	return raw, nil
}
