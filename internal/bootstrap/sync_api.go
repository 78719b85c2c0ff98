package bootstrap

import (
	"strings"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"

	httpin "mirror_sync/adapter/in/http"
	"mirror_sync/config"
	"mirror_sync/infra/middleware"
	"mirror_sync/pkg/logger"
)

// NewAPI builds the admin API process: Fiber app, middleware stack and
// handlers on top of a shared dependency graph.
func NewAPI(cfg *config.Config) (*fiber.App, func(), error) {
	logLevel := logger.ParseLevel(cfg.LogLevel)
	if cfg.IsDevelopment() {
		logLevel = logger.LevelDebug
	}
	logger.Init(logger.Config{
		Level:   logLevel,
		Service: "mirror-sync-api",
	})

	deps, cleanup, err := NewDependencies(cfg)
	if err != nil {
		logger.WithError(err).Error("failed to initialize dependencies")
		return nil, nil, err
	}

	app := fiber.New(fiber.Config{
		ErrorHandler:          middleware.ErrorHandler(),
		DisableStartupMessage: cfg.IsProduction(),
		StrictRouting:         false,
		CaseSensitive:         false,

		ReadBufferSize:  16384,
		WriteBufferSize: 16384,

		JSONEncoder: json.Marshal,
		JSONDecoder: json.Unmarshal,

		BodyLimit: 1 * 1024 * 1024,
	})

	// Global middleware stack (order matters)
	app.Use(middleware.Recover())
	app.Use(middleware.RequestID())
	app.Use(middleware.RequestLogger())
	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))

	allowOrigins := strings.Join(cfg.AllowedOrigins, ",")
	app.Use(cors.New(cors.Config{
		AllowOrigins:  allowOrigins,
		AllowMethods:  "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:  "Origin,Content-Type,Accept,Authorization,X-Request-ID",
		ExposeHeaders: "X-Request-ID",
		MaxAge:        86400,
	}))

	// Health check (no auth required)
	healthHandler := httpin.NewHealthHandler(deps.DB, deps.Redis, deps.Replica)
	healthHandler.Register(app)

	// Admin routes require a bearer token
	app.Use("/api", middleware.JWTAuth(cfg.JWTSecret))

	adminHandler := httpin.NewAdminHandler(deps.Registry, deps.Scheduler, deps.Sweeper, deps.Stats, deps.Log)
	adminHandler.Register(app)

	logger.Info("API server initialized: %d entity types", len(deps.Registry.Types()))
	return app, cleanup, nil
}
