// Package httpserver provides HTTP server and routing.
package httpserver

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"go.uber.org/zap"

	"github.com/DeZhao-Zhang/datacube-explorer/internal/app/service"
	"github.com/DeZhao-Zhang/datacube-explorer/internal/metrics"
	"github.com/DeZhao-Zhang/datacube-explorer/internal/stac"
	"github.com/DeZhao-Zhang/datacube-explorer/internal/transport/httpserver/dto"
	"github.com/DeZhao-Zhang/datacube-explorer/internal/transport/httpserver/handler"
	"github.com/DeZhao-Zhang/datacube-explorer/internal/transport/httpserver/middleware"
	"github.com/DeZhao-Zhang/datacube-explorer/internal/validator"
)

// ServerConfig holds server configuration.
type ServerConfig struct {
	Port      int
	BodyLimit int
	Debug     bool

	// BaseURL prefixes redirect targets; empty means root-relative.
	BaseURL string
	// Location expands /api periods and groups timelines.
	Location *time.Location
	// MetricsPath serves Prometheus metrics; empty disables the endpoint.
	MetricsPath string
}

// Server wraps Fiber app with handlers.
type Server struct {
	App    *fiber.App
	Logger *zap.Logger
}

// NewServer creates a new HTTP server with all routes configured.
func NewServer(
	cfg ServerConfig,
	searchSvc *service.SearchService,
	overviewSvc *service.OverviewService,
	syncSvc *service.SyncService,
	source middleware.Pinger,
	v *validator.Validator,
	m *metrics.Provider,
	logger *zap.Logger,
) *Server {
	app := fiber.New(fiber.Config{
		AppName:               "datacube-explorer",
		BodyLimit:             cfg.BodyLimit,
		ErrorHandler:          errorHandler(logger),
		DisableStartupMessage: !cfg.Debug,
	})

	// Health check middleware MUST be registered BEFORE other middleware
	// so Kubernetes health checks answer even under high load
	app.Use(middleware.NewHealthCheck(source))

	app.Use(requestid.New())
	app.Use(middleware.Recover(logger))
	app.Use(middleware.Logger(logger))
	if m != nil {
		app.Use(middleware.Metrics(m))
	}
	app.Use(compress.New())

	if m != nil && cfg.MetricsPath != "" {
		app.Get(cfg.MetricsPath, adaptor.HTTPHandler(m.Handler()))
	}

	searchHandler := handler.NewSearchHandler(searchSvc, v, logger)
	stacHandler := handler.NewStacHandler(searchSvc, stac.NewLinks(cfg.BaseURL), cfg.Location, v, logger)
	overviewHandler := handler.NewOverviewHandler(overviewSvc, cfg.Location, logger)
	adminHandler := handler.NewAdminHandler(syncSvc, v, logger)

	registerRoutes(app, searchHandler, stacHandler, overviewHandler, adminHandler)

	return &Server{
		App:    app,
		Logger: logger,
	}
}

// registerRoutes sets up all API routes.
func registerRoutes(
	app *fiber.App,
	searchHandler *handler.SearchHandler,
	stacHandler *handler.StacHandler,
	overviewHandler *handler.OverviewHandler,
	adminHandler *handler.AdminHandler,
) {
	// Health checks are handled by middleware (/livez, /readyz)

	app.Get("/", func(c *fiber.Ctx) error {
		return c.Redirect("/stac")
	})

	st := app.Group("/stac")
	st.Get("/", stacHandler.Root)
	st.Get("/search", searchHandler.Search)
	st.Post("/search", searchHandler.SearchPost)
	st.Get("/collections", stacHandler.Collections)
	st.Get("/collections/:product", stacHandler.Collection)
	st.Get("/collections/:product/items", stacHandler.Items)
	st.Get("/collections/:product/items/:id", stacHandler.Item)

	api := app.Group("/api")
	api.Get("/datasets/:product/:year?/:month?/:day?", stacHandler.Datasets)
	api.Get("/footprint/:product/:year?/:month?/:day?", overviewHandler.Footprint)
	api.Get("/regions/:product/:year?/:month?/:day?", overviewHandler.Regions)
	api.Get("/timeline/:product/:year?/:month?/:day?", overviewHandler.Timeline)

	admin := app.Group("/api/v1/admin")
	admin.Post("/sync", adminHandler.SyncAll)
	admin.Post("/sync/:provider", adminHandler.SyncProvider)
	admin.Get("/providers", adminHandler.GetProviders)
}

// errorHandler returns a custom error handler that logs based on HTTP status code.
// 404s are logged at DEBUG level (expected client behavior), 4xx at WARN, 5xx at ERROR.
func errorHandler(logger *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		if e, ok := err.(*fiber.Error); ok {
			code = e.Code
		}

		switch {
		case code == fiber.StatusNotFound:
			logger.Debug("resource not found",
				zap.String("path", c.Path()),
				zap.String("method", c.Method()),
			)
			return c.Status(code).JSON(dto.ErrorResponse{
				Error: err.Error(),
				Code:  dto.CodeNotFound,
			})
		case code >= 500:
			logger.Error("server error",
				zap.Error(err),
				zap.Int("status", code),
				zap.String("path", c.Path()),
			)
		case code >= 400:
			logger.Warn("client error",
				zap.Error(err),
				zap.Int("status", code),
				zap.String("path", c.Path()),
			)
		default:
			logger.Error("unhandled error",
				zap.Error(err),
				zap.Int("status", code),
				zap.String("path", c.Path()),
			)
		}

		return c.Status(code).JSON(dto.ErrorResponse{
			Error: err.Error(),
			Code:  "UNHANDLED_ERROR",
		})
	}
}

// Start starts the HTTP server.
func (s *Server) Start(port int) error {
	s.Logger.Info("starting HTTP server", zap.Int("port", port))

	return s.App.Listen(fmt.Sprintf(":%d", port))
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown() error {
	s.Logger.Info("shutting down HTTP server")

	return s.App.Shutdown()
}
