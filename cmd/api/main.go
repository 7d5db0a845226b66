package main

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"

	"instashare/docs"
	"instashare/internal/archive"
	"instashare/internal/cache"
	"instashare/internal/config"
	"instashare/internal/database"
	"instashare/internal/database/migration"
	handlers "instashare/internal/http/handler"
	"instashare/internal/http/middleware"
	"instashare/internal/otel"
	"instashare/internal/repository/postgres"
	"instashare/internal/service"
	"instashare/internal/storage"
)

// @title InstaShare API
// @version 1.0
// @BasePath /
func main() {
	// Load configuration from environment variables (.env auto-loaded if present)
	cfg := config.Load()

	ctx := context.Background()

	shutdownTracing, err := otel.Init(ctx, time.UTC)
	if err != nil {
		log.Fatalf("failed to initialize tracing: %v", err)
	}
	defer shutdownTracing(ctx)

	// Initialize PostgreSQL connection (with pooling via database/sql)
	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := migration.EnsureMigrated(ctx, db, time.UTC, cfg.Database.Host); err != nil {
		log.Fatalf("failed to run migrations: %v", err)
	}

	// Initialize reusable S3-compatible object storage client (MinIO-supported)
	objStore, err := storage.NewMinIO(cfg.MinIO)
	if err != nil {
		log.Fatalf("failed to initialize object storage: %v", err)
	}

	// Redis is optional; without it status polls always hit the database.
	var statusBackend *database.Cache
	if cfg.Redis.Addr != "" {
		statusBackend, err = database.ConnectCache(cfg.Redis)
		if err != nil {
			log.Fatalf("failed to connect to redis: %v", err)
		}
		defer statusBackend.Close()
	}

	// Initialize repositories and services
	userRepo := postgres.NewUserPostgres(db)
	fileRepo := postgres.NewFilePostgres(db)
	jobRepo := postgres.NewJobPostgres(db)

	authSvc := service.NewAuthService(userRepo, cfg.Auth)
	fileSvc := service.NewFileService(objStore, fileRepo)
	jobSvc, err := service.NewJobService(
		fileRepo, jobRepo, objStore,
		archive.NewRunner(),
		cache.NewJobStatusCache(statusBackend),
		cfg.Archive,
		prometheus.DefaultRegisterer,
	)
	if err != nil {
		log.Fatalf("failed to initialize job service: %v", err)
	}

	app := fiber.New(fiber.Config{
		ErrorHandler: handlers.ErrorHandler(),
	})

	// Register global middleware
	// RequestID middleware adds/propagates X-Request-ID and stores it in context
	app.Use(middleware.RequestID())
	// JSON Logger middleware for structured request logs
	app.Use(middleware.Logger())
	app.Use(otelfiber.Middleware())

	promMiddleware, err := middleware.NewPrometheusMiddleware(prometheus.DefaultRegisterer)
	if err != nil {
		log.Fatalf("failed to initialize metrics middleware: %v", err)
	}
	app.Use(promMiddleware.Handler())

	metricsHandler := fasthttpadaptor.NewFastHTTPHandler(promhttp.Handler())
	app.Get("/metrics", func(c *fiber.Ctx) error {
		metricsHandler(c.Context())
		return nil
	})

	// Swagger metadata follows the incoming host and scheme
	app.Use("/swagger", func(c *fiber.Ctx) error {
		scheme := c.Protocol()
		if proto := c.Get("X-Forwarded-Proto"); proto != "" {
			scheme = strings.Split(proto, ",")[0]
		}
		docs.SwaggerInfo.Host = c.Get("Host")
		docs.SwaggerInfo.Schemes = []string{scheme}
		return c.Next()
	})

	// Register HTTP routes with injected services
	h := handlers.New(db, authSvc, fileSvc, jobSvc)
	h.RegisterRoutes(app)

	addr := ":" + cfg.Port

	if err := app.Listen(addr); err != nil {
		log.Fatalf("failed to start server: %v", err)
	}
}
