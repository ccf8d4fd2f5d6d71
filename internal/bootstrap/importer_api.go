package bootstrap

import (
	"context"
	"strings"

	"importer_server/adapter/in/http"
	"importer_server/config"
	"importer_server/infra/middleware"
	"importer_server/pkg/logger"
	"importer_server/pkg/metrics"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
)

func NewAPI(cfg *config.Config) (*fiber.App, func(), error) {
	deps, cleanup, err := NewDependencies(cfg)
	if err != nil {
		logger.WithError(err).Error("Failed to initialize dependencies")
		return nil, nil, err
	}

	app := newApp(cfg, deps)
	logger.Info("API server initialized successfully")
	return app, cleanup, nil
}

func newApp(cfg *config.Config, deps *Dependencies) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler:          middleware.ErrorHandler(),
		DisableStartupMessage: cfg.IsProduction(),

		// go-json for request and response bodies
		JSONEncoder: json.Marshal,
		JSONDecoder: json.Unmarshal,

		BodyLimit:          64 * 1024,
		ServerHeader:       "",
		DisableDefaultDate: true,
	})

	// Global middleware stack (order matters)
	app.Use(middleware.Recover())
	app.Use(middleware.RequestID())
	app.Use(middleware.SecurityHeaders())
	app.Use(middleware.RequestLogger())
	app.Use(compress.New(compress.Config{Level: compress.LevelBestSpeed}))

	allowOrigins := strings.Join(cfg.AllowedOrigins, ",")
	allowCredentials := true
	if allowOrigins == "" || allowOrigins == "*" {
		// credentials are never allowed with a wildcard origin
		allowOrigins = "*"
		allowCredentials = false
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     allowOrigins,
		AllowMethods:     "GET,POST,OPTIONS",
		AllowHeaders:     "Origin,Content-Type,Accept,Authorization,X-Request-ID," + http.HeaderDAVToken,
		ExposeHeaders:    "X-Request-ID,Retry-After",
		AllowCredentials: allowCredentials,
		MaxAge:           86400,
	}))

	// Health check (no auth required)
	http.NewHealthHandler(map[string]http.Pinger{
		"postgres": deps.DB,
		"redis": http.PingFunc(func(ctx context.Context) error {
			return deps.Redis.Ping(ctx).Err()
		}),
	}).
		WithPool("postgres", func() metrics.PoolStats { return metrics.PGXStats(deps.DB) }).
		WithPool("sqlx", func() metrics.PoolStats {
			if deps.SQLDB == nil {
				return metrics.PoolStats{}
			}
			return metrics.SQLStats(deps.SQLDB.DB)
		}).
		Register(app)

	api := app.Group("/api/v1")
	api.Use(middleware.JWTAuth(cfg.JWTSecret, deps.Blacklist))
	api.Use(middleware.RateLimit(deps.Limiter, "ratelimit:api"))

	http.NewImportHandler(deps.ImportService).Register(api)

	return app
}
