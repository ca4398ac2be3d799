package server

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gofiber/fiber/v3/middleware/recover"
	fiberutils "github.com/gofiber/utils/v2"
	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	archdesigner "github.com/menta2k/arch-designer"
	"github.com/menta2k/arch-designer/internal/prefs"
	"github.com/menta2k/arch-designer/pkg/client"
	"github.com/menta2k/arch-designer/pkg/cropper"
	"github.com/menta2k/arch-designer/pkg/generation"
	"github.com/menta2k/arch-designer/pkg/processing"
	"github.com/menta2k/arch-designer/pkg/session"
	"github.com/menta2k/arch-designer/pkg/types"
)

var errSessionNotFound = errors.New("session not found or expired")

// ThemeStore persists the theme preference
type ThemeStore interface {
	Theme(ctx context.Context) (prefs.Theme, error)
	SetTheme(ctx context.Context, theme prefs.Theme) error
	ToggleTheme(ctx context.Context) (prefs.Theme, error)
}

// Config holds HTTP server settings
type Config struct {
	SessionTTL      time.Duration
	MaxUploadBytes  int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	GenerateTimeout time.Duration
	MinInterval     time.Duration
	AccessLog       bool
}

// Server exposes workspaces over HTTP. Each session owns one workspace.
type Server struct {
	app       *fiber.App
	cfg       Config
	sessions  *cache.Cache
	generator client.ImageGenerator
	engine    *cropper.Engine
	themes    ThemeStore
	logger    *slog.Logger
}

// New creates the server and registers its routes
func New(cfg Config, generator client.ImageGenerator, engine *cropper.Engine, themes ThemeStore, logger *slog.Logger) *Server {
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = time.Hour
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 20 << 20
	}
	if cfg.GenerateTimeout <= 0 {
		cfg.GenerateTimeout = 2 * time.Minute
	}
	if engine == nil {
		engine = cropper.New()
	}

	s := &Server{
		cfg:       cfg,
		sessions:  cache.New(cfg.SessionTTL, cfg.SessionTTL/2),
		generator: generator,
		engine:    engine,
		themes:    themes,
		logger:    logger,
	}

	s.app = fiber.New(fiber.Config{
		AppName:      "arch-designer",
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		BodyLimit:    cfg.MaxUploadBytes,
		ErrorHandler: s.errorHandler,
	})
	s.routes()
	return s
}

func (s *Server) routes() {
	s.app.Use(recover.New())
	if s.cfg.AccessLog {
		s.app.Use(logger.New(logger.Config{
			Format:     "[${time}] ${status} - ${latency} ${method} ${path}\n",
			TimeFormat: "15:04:05",
			TimeZone:   "Local",
		}))
	}

	s.app.Get("/health/live", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "alive"})
	})
	s.app.Get("/health/ready", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ready", "sessions": s.sessions.ItemCount()})
	})

	api := s.app.Group("/api")

	api.Get("/preferences/theme", s.getTheme)
	api.Put("/preferences/theme", s.putTheme)
	api.Post("/preferences/theme/toggle", s.toggleTheme)

	api.Post("/sessions", s.createSession)
	api.Get("/sessions/:id", s.getSession)
	api.Delete("/sessions/:id", s.deleteSession)
	api.Put("/sessions/:id/prompt", s.putPrompt)
	api.Post("/sessions/:id/generate", s.generate)
	api.Get("/sessions/:id/result", s.downloadResult)
	api.Post("/sessions/:id/clear", s.clearAll)

	api.Get("/sessions/:id/slots/:role", s.getSlot)
	api.Delete("/sessions/:id/slots/:role", s.removeImage)

	slots := api.Group("/sessions/:id/slots/:role")
	slots.Post("/file", s.selectFile)
	slots.Get("/source", s.getSource)
	slots.Put("/display", s.putDisplay)
	slots.Put("/crop", s.putCrop)
	slots.Post("/suggest-crop", s.suggestCrop)
	slots.Put("/transform", s.putTransform)
	slots.Post("/confirm", s.confirm)
	slots.Post("/cancel", s.cancel)
	slots.Get("/image", s.getImage)
}

// App returns the underlying fiber application
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen serves HTTP on addr until Shutdown is called
func (s *Server) Listen(addr string) error {
	s.logger.Info("Starting HTTP server", "addr", addr)
	return s.app.Listen(addr, fiber.ListenConfig{DisableStartupMessage: true})
}

// Shutdown stops the server and drops all sessions
func (s *Server) Shutdown(ctx context.Context) error {
	s.sessions.Flush()
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) newWorkspace() (string, *archdesigner.Workspace) {
	id := uuid.NewString()
	ws := archdesigner.New(s.generator,
		archdesigner.WithLogger(s.logger.With("session", id)),
		archdesigner.WithRenderer(s.engine),
		archdesigner.WithMinInterval(s.cfg.MinInterval),
	)
	s.sessions.Set(id, ws, cache.DefaultExpiration)
	return id, ws
}

// workspace looks up the session and extends its expiry. The id is copied
// because fiber reuses the request path buffer that Params points into.
func (s *Server) workspace(c fiber.Ctx) (*archdesigner.Workspace, error) {
	id := fiberutils.CopyString(c.Params("id"))
	v, ok := s.sessions.Get(id)
	if !ok {
		return nil, errSessionNotFound
	}
	s.sessions.Set(id, v, cache.DefaultExpiration)
	return v.(*archdesigner.Workspace), nil
}

func (s *Server) slot(c fiber.Ctx) (*archdesigner.Workspace, *session.Slot, error) {
	ws, err := s.workspace(c)
	if err != nil {
		return nil, nil, err
	}
	role, err := types.ParseRole(c.Params("role"))
	if err != nil {
		return nil, nil, fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return ws, ws.Slot(role), nil
}

func (s *Server) errorHandler(c fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	switch {
	case errors.As(err, &fe):
		code = fe.Code
	case errors.Is(err, errSessionNotFound):
		code = fiber.StatusNotFound
	case errors.Is(err, session.ErrInvalidTransition), errors.Is(err, generation.ErrBusy):
		code = fiber.StatusConflict
	case errors.Is(err, session.ErrCropRequired), errors.Is(err, session.ErrTransformFailed):
		code = fiber.StatusUnprocessableEntity
	case errors.Is(err, processing.ErrUnsupportedFormat):
		code = fiber.StatusUnsupportedMediaType
	case errors.Is(err, prefs.ErrInvalidTheme):
		code = fiber.StatusBadRequest
	}
	if code >= fiber.StatusInternalServerError {
		s.logger.Error("Request failed", "method", c.Method(), "path", c.Path(), "error", err)
	}
	return c.Status(code).JSON(fiber.Map{"error": err.Error()})
}
