package frontend

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/jo-hoe/itemlens/internal/backend/recognition"
	"github.com/jo-hoe/itemlens/internal/core"
	"github.com/jo-hoe/itemlens/internal/session"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

const (
	mimeSVG = "image/svg+xml"

	loginPath   = "/login"
	homePath    = "/"
	addPath     = "/add"
	capturePath = "/capture_images"
)

type FrontendService struct {
	coreService *core.CoreService
	config      *core.ServiceConfig
	sessions    *session.Manager
	guard       *session.Guard
}

type loginForm struct {
	Username string `form:"username"`
	Password string `form:"password"`
}

type addItemForm struct {
	ItemURL string `form:"itemURL" validate:"required"`
}

type recognizeRequest struct {
	ImgData string `json:"imgData" validate:"required"`
}

func NewFrontendService(config *core.ServiceConfig, coreService *core.CoreService, sessions *session.Manager, guard *session.Guard) *FrontendService {
	return &FrontendService{
		coreService: coreService,
		config:      config,
		sessions:    sessions,
		guard:       guard,
	}
}

func (service *FrontendService) SetRoutes(e *echo.Echo) {
	e.Renderer = newTemplate()

	sessionMiddleware := service.sessions.Middleware()
	bodyLimit := middleware.BodyLimit(strconv.FormatInt(service.config.MaxUploadBytes(), 10) + "B")
	withSession := []echo.MiddlewareFunc{service.noCache, sessionMiddleware}
	loggedIn := []echo.MiddlewareFunc{service.noCache, sessionMiddleware, service.requireLogin}
	upload := []echo.MiddlewareFunc{service.noCache, sessionMiddleware, service.requireLogin, bodyLimit}

	e.GET(loginPath, service.loginPageHandler, withSession...)
	e.POST(loginPath, service.loginHandler, withSession...)
	e.GET("/logout", service.logoutHandler, withSession...)

	e.GET(homePath, service.indexHandler, loggedIn...)
	e.GET(addPath, service.addItemPageHandler, loggedIn...)
	e.POST(addPath, service.addItemHandler, loggedIn...)
	e.GET(capturePath, service.captureImagesHandler, loggedIn...)
	e.POST("/add_image", service.addImageHandler, upload...)
	e.GET("/view", service.viewPageHandler, loggedIn...)
	e.POST("/view", service.recognizeHandler, upload...)

	e.GET("/probe", func(ctx echo.Context) error {
		return ctx.String(http.StatusOK, "ok")
	})
	e.StaticFS("/static", echo.MustSubFS(assetsFS, "static"))
	e.GET("/icon.svg", service.iconHandler)
}

// requireLogin sends anonymous sessions to the login page
func (service *FrontendService) requireLogin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		sess := session.FromContext(ctx)
		if sess == nil || !sess.State.LoggedIn {
			return ctx.Redirect(http.StatusFound, loginPath)
		}
		return next(ctx)
	}
}

func (service *FrontendService) noCache(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		ctx.Response().Header().Set("Cache-Control", "no-store, no-cache, must-revalidate, max-age=0")
		ctx.Response().Header().Set("Pragma", "no-cache")
		ctx.Response().Header().Set("Expires", "0")
		return next(ctx)
	}
}

func (service *FrontendService) render(ctx echo.Context, status int, name string, data pageData) error {
	state := session.FromContext(ctx).State
	data.LoggedIn = state.LoggedIn
	data.Flashes = state.PopFlashes()
	return ctx.Render(status, name, data)
}

func (service *FrontendService) redirectWithFlash(ctx echo.Context, path, message string) error {
	session.FromContext(ctx).State.AddFlash(message)
	return ctx.Redirect(http.StatusFound, path)
}

func (service *FrontendService) loginPageHandler(ctx echo.Context) error {
	state := session.FromContext(ctx).State
	if state.LoggedIn {
		return service.redirectWithFlash(ctx, homePath, "You are already logged in.")
	}
	if remaining, locked := service.guard.LockedFor(state); locked {
		state.AddFlash(lockedOutMessage(remaining.Minutes()))
	}
	return service.render(ctx, http.StatusOK, "login.html", pageData{Title: "Login"})
}

func (service *FrontendService) loginHandler(ctx echo.Context) error {
	var form loginForm
	if err := ctx.Bind(&form); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid login form")
	}

	sess := session.FromContext(ctx)
	result := service.guard.Attempt(sess.State, form.Username, form.Password)
	switch result.Outcome {
	case session.AlreadyLoggedIn:
		return service.redirectWithFlash(ctx, homePath, "You are already logged in.")
	case session.LoginSucceeded:
		if err := service.sessions.Renew(ctx); err != nil {
			return err
		}
		slog.Info("login succeeded", "remote_ip", ctx.RealIP())
		return service.redirectWithFlash(ctx, homePath, "Login successful!")
	case session.LockedOut:
		if result.JustLocked {
			slog.Warn("login locked out", "remote_ip", ctx.RealIP(), "lockout_minutes", service.config.Auth.LockoutMinutes)
			sess.State.AddFlash(fmt.Sprintf("Too many failed attempts. You are locked out for %d minutes.", service.config.Auth.LockoutMinutes))
		} else {
			sess.State.AddFlash(lockedOutMessage(result.RetryIn.Minutes()))
		}
	default:
		slog.Info("login failed", "remote_ip", ctx.RealIP(), "tries_left", result.TriesLeft)
		sess.State.AddFlash(fmt.Sprintf("Invalid credentials. You have %d tries left.", result.TriesLeft))
	}
	return service.render(ctx, http.StatusOK, "login.html", pageData{Title: "Login"})
}

func lockedOutMessage(minutes float64) string {
	return fmt.Sprintf("You are locked out. Please wait %d more minutes.", int(minutes))
}

func (service *FrontendService) logoutHandler(ctx echo.Context) error {
	sess := session.FromContext(ctx)
	sess.State.Clear()
	if err := service.sessions.Renew(ctx); err != nil {
		return err
	}
	return service.redirectWithFlash(ctx, loginPath, "You have been logged out.")
}

func (service *FrontendService) indexHandler(ctx echo.Context) error {
	return service.render(ctx, http.StatusOK, "index.html", pageData{Title: "Home"})
}

func (service *FrontendService) addItemPageHandler(ctx echo.Context) error {
	return service.render(ctx, http.StatusOK, "add.html", pageData{
		Title:         "Add item",
		ImagesPerItem: service.config.Recognition.ImagesPerItem,
	})
}

func (service *FrontendService) addItemHandler(ctx echo.Context) error {
	var form addItemForm
	if err := ctx.Bind(&form); err != nil {
		return service.redirectWithFlash(ctx, addPath, "URL is required.")
	}
	if err := ctx.Validate(&form); err != nil {
		return service.redirectWithFlash(ctx, addPath, "URL is required.")
	}

	id, err := service.coreService.BeginEnrollment(ctx.Request().Context(), form.ItemURL)
	if errors.Is(err, core.ErrInvalidURL) {
		return service.redirectWithFlash(ctx, addPath, "URL is required.")
	}
	if err != nil {
		slog.Error("addItemHandler: failed to create item", "status", http.StatusInternalServerError, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to create item")
	}

	session.FromContext(ctx).State.EnrollmentItemID = id
	return ctx.Redirect(http.StatusFound, capturePath)
}

func (service *FrontendService) captureImagesHandler(ctx echo.Context) error {
	state := session.FromContext(ctx).State
	if state.EnrollmentItemID == 0 {
		return service.redirectWithFlash(ctx, addPath, "No item found in session. Please add an item first.")
	}

	status, err := service.coreService.EnrollmentStatus(ctx.Request().Context(), state.EnrollmentItemID)
	if errors.Is(err, core.ErrItemNotFound) {
		state.EnrollmentItemID = 0
		return service.redirectWithFlash(ctx, addPath, "No item found in session. Please add an item first.")
	}
	if err != nil {
		slog.Error("captureImagesHandler: failed to load enrollment", "item_id", state.EnrollmentItemID, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to load item")
	}

	return service.render(ctx, http.StatusOK, "capture_images.html", pageData{
		Title:         "Capture images",
		Remaining:     status.Remaining,
		ImagesPerItem: service.config.Recognition.ImagesPerItem,
		ItemURL:       status.URL,
	})
}

func (service *FrontendService) addImageHandler(ctx echo.Context) error {
	state := session.FromContext(ctx).State
	itemID := state.EnrollmentItemID

	file, err := ctx.FormFile("image")
	if err != nil || itemID == 0 {
		return service.redirectWithFlash(ctx, homePath, "Missing file or item_id. Please start over.")
	}
	raw, err := readUpload(file)
	if err != nil {
		slog.Error("addImageHandler: failed to read uploaded file",
			"status", http.StatusInternalServerError, "error", err, "filename", file.Filename)
		return ctx.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to read uploaded file"})
	}

	result, err := service.coreService.SubmitEnrollmentFrame(ctx.Request().Context(), itemID, raw)
	switch {
	case errors.Is(err, core.ErrBlurryFrame):
		state.AddFlash("That image was too blurry. Please capture again.")
		return ctx.JSON(http.StatusBadRequest, echo.Map{"error": "Image is blurry"})
	case errors.Is(err, core.ErrInputRejected):
		return ctx.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid image data."})
	case errors.Is(err, core.ErrEnrollmentComplete):
		state.EnrollmentItemID = 0
		return ctx.JSON(http.StatusConflict, echo.Map{"error": "All images already captured."})
	case errors.Is(err, core.ErrItemNotFound):
		state.EnrollmentItemID = 0
		return ctx.JSON(http.StatusNotFound, echo.Map{"error": "Item not found. Please start over."})
	case err != nil:
		slog.Error("addImageHandler: failed to store frame",
			"status", http.StatusInternalServerError, "item_id", itemID, "error", err)
		return ctx.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to store image"})
	}

	if !result.Complete {
		return ctx.JSON(http.StatusOK, echo.Map{
			"success":   true,
			"message":   fmt.Sprintf("Image captured. %d more to go.", result.Remaining),
			"remaining": result.Remaining,
		})
	}
	state.EnrollmentItemID = 0
	return ctx.JSON(http.StatusOK, echo.Map{
		"success":   true,
		"message":   "All images captured successfully.",
		"remaining": 0,
	})
}

func (service *FrontendService) viewPageHandler(ctx echo.Context) error {
	return service.render(ctx, http.StatusOK, "view.html", pageData{Title: "Recognize"})
}

func (service *FrontendService) recognizeHandler(ctx echo.Context) error {
	var req recognizeRequest
	if err := ctx.Bind(&req); err != nil || ctx.Validate(&req) != nil {
		return ctx.JSON(http.StatusBadRequest, echo.Map{"error": "No image data received."})
	}

	decision, err := service.coreService.Recognize(ctx.Request().Context(), []byte(req.ImgData))
	if errors.Is(err, core.ErrInputRejected) {
		return ctx.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid image data."})
	}
	if err != nil {
		slog.Error("recognizeHandler: recognition failed", "status", http.StatusInternalServerError, "error", err)
		return ctx.JSON(http.StatusInternalServerError, echo.Map{"error": "Recognition failed."})
	}

	switch decision.Outcome {
	case recognition.TooBlurry:
		return ctx.JSON(http.StatusBadRequest, echo.Map{"error": "Image is too blurry. Try again."})
	case recognition.Matched:
		return ctx.JSON(http.StatusOK, echo.Map{"redirectUrl": decision.URL})
	case recognition.Borderline:
		return ctx.JSON(http.StatusOK, echo.Map{"borderline": true})
	}
	if decision.Score == 0 {
		return ctx.JSON(http.StatusNotFound, echo.Map{"error": "No match found."})
	}
	return ctx.JSON(http.StatusNotFound, echo.Map{"error": "Item not recognized."})
}

func (service *FrontendService) iconHandler(ctx echo.Context) error {
	data, err := assetsFS.ReadFile("views/icon.svg")
	if err != nil {
		slog.Error("iconHandler: failed to read icon.svg", "status", http.StatusInternalServerError, "error", err)
		return ctx.String(http.StatusInternalServerError, "Failed to load icon")
	}
	// Cache for 7 days
	ctx.Response().Header().Set("Cache-Control", "public, max-age=604800, immutable")
	return ctx.Blob(http.StatusOK, mimeSVG, data)
}

func readUpload(file *multipart.FileHeader) ([]byte, error) {
	src, err := file.Open()
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := src.Close(); cerr != nil {
			slog.Error("failed to close uploaded file reader", "error", cerr, "filename", file.Filename)
		}
	}()
	return io.ReadAll(src)
}
