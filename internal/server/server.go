// Package server contains the HTTP handlers and wiring for the report API.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "casedesk/docs" // swagger docs
	"casedesk/internal/authz"
	"casedesk/internal/cache"
	"casedesk/internal/config"
	"casedesk/internal/database"
	"casedesk/internal/middleware"
	"casedesk/internal/models"
	"casedesk/internal/repository"
	"casedesk/internal/service"
	"casedesk/internal/storage"

	"github.com/ansrivas/fiberprometheus/v2"
	sentryfiber "github.com/getsentry/sentry-go/fiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/swagger"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	files          storage.FileStore
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	reports        *service.ReportService
	attachments    *service.AttachmentService
	queries        *service.QueryService
}

// NewServer creates a new server instance with all dependencies
func NewServer(cfg *config.Config) (*Server, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	cache.InitRedis(cfg.RedisURL)
	cache.ReportTTL = cfg.ReportCacheTTL()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	files, err := NewFileStore(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("file storage init failed: %w", err)
	}

	srv, err := NewServerWithDeps(cfg, db, cache.GetClient(), files)
	if err != nil {
		return nil, err
	}
	srv.promMiddleware = middleware.InitMetrics("casedesk-api")
	return srv, nil
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// Metrics are left off so tests can build many servers in one process.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client, files storage.FileStore) (*Server, error) {
	if db == nil {
		return nil, errors.New("database is required")
	}
	if files == nil {
		return nil, errors.New("file store is required")
	}

	store := repository.NewStore(db)
	uow := repository.NewUnitOfWork(db)
	return &Server{
		config:      cfg,
		db:          db,
		redis:       redisClient,
		files:       files,
		reports:     service.NewReportService(store, uow, files),
		attachments: service.NewAttachmentService(store, uow, files),
		queries:     service.NewQueryService(store.Reports()),
	}, nil
}

// NewFileStore builds the attachment store selected by STORAGE_BACKEND.
func NewFileStore(ctx context.Context, cfg *config.Config) (storage.FileStore, error) {
	switch cfg.StorageBackend {
	case "", "disk":
		disk, err := storage.NewDiskStore(cfg.StorageDir)
		if err != nil {
			return nil, err
		}
		return disk, nil
	case "minio":
		store, err := storage.NewMinioStore(ctx, storage.MinioConfig{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
		})
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported storage backend %q", cfg.StorageBackend)
	}
}

// NewApp returns a Fiber app configured with the API error handler.
func NewApp(appName string, bodyLimit int) *fiber.App {
	return fiber.New(fiber.Config{
		AppName:   appName,
		BodyLimit: bodyLimit,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			var fe *fiber.Error
			// Oversized uploads are cut off by fasthttp before any handler runs.
			if errors.As(err, &fe) && fe.Code == fiber.StatusRequestEntityTooLarge {
				return models.RespondWithError(c, fiber.StatusBadRequest,
					models.NewValidationError("File too large (max 10 MiB)"))
			}
			if errors.As(err, &fe) {
				return models.RespondWithError(c, fe.Code, fe)
			}
			middleware.Logger.ErrorContext(c.UserContext(), "unhandled error", slog.String("error", err.Error()))
			return models.RespondWithError(c, fiber.StatusInternalServerError,
				models.NewInternalError(err))
		},
	})
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	// Panic recovery
	app.Use(recover.New())

	if s.config.SentryDSN != "" {
		app.Use(sentryfiber.New(sentryfiber.Options{
			Repanic:         true,
			WaitForDelivery: false,
		}))
	}

	app.Use(requestid.New())

	if s.config.TracingEnabled {
		app.Use(middleware.TracingMiddleware())
	}

	// Context Middleware to propagate Request ID and Trace ID
	app.Use(middleware.ContextMiddleware())

	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	app.Use(helmet.New())

	app.Use(middleware.StructuredLogger())

	// CORS runs before the limiter so rejected requests still carry CORS headers.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, If-Match",
		ExposeHeaders:    "ETag, Content-Disposition, X-Trace-ID",
		AllowCredentials: origins != "*",
		MaxAge:           86400,
	}))

	// Global rate limiting (100 requests per minute per IP)
	app.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: 1 * time.Minute,
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many requests, please try again later.",
			})
		},
	}))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	api := app.Group("/api")

	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)
	app.Get("/health", s.ReadinessCheck)

	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}
	api.Get("/metrics/dashboard", monitor.New(monitor.Config{
		Title: "Casedesk API Metrics",
	}))

	api.Get("/swagger/*", swagger.HandlerDefault)

	protected := api.Group("", s.AuthRequired())

	reports := protected.Group("/reports")
	reports.Post("/", middleware.RateLimit(s.redis, 30, time.Minute, "create_report"), s.CreateReport)
	reports.Get("/", s.GetMyReports)
	// Define specific /:id/:resource routes BEFORE generic /:id route
	reports.Post("/:id/submit", s.SubmitReport)
	reports.Get("/:id/history", s.GetReportHistory)
	reports.Post("/:id/attachments", middleware.RateLimit(s.redis, 20, time.Minute, "upload_attachment"), s.UploadAttachment)
	reports.Get("/:id/attachments", s.ListAttachments)
	reports.Get("/:id", s.GetReport)
	reports.Put("/:id", s.UpdateReport)
	reports.Delete("/:id", s.DeleteReport)

	attachments := protected.Group("/attachments")
	attachments.Get("/:id", s.DownloadAttachment)
	attachments.Delete("/:id", s.DeleteAttachment)

	admin := protected.Group("/admin", s.ReviewerRequired())
	adminReports := admin.Group("/reports")
	adminReports.Get("/", s.SearchReports)
	adminReports.Get("/export", middleware.RateLimit(s.redis, 5, time.Minute, "export_reports"), s.ExportReports)
	adminReports.Post("/:id/review", s.ReviewReport)
	adminReports.Post("/:id/archive", s.ArchiveReport)
}

// LivenessCheck handles liveness checks
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck handles readiness checks. Redis only counts when configured.
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	sqlDB, err := s.db.DB()
	if err != nil {
		dbStatus = "unhealthy"
	} else if err := sqlDB.PingContext(ctx); err != nil {
		dbStatus = "unhealthy"
	}

	redisStatus := "disabled"
	if s.redis != nil {
		redisStatus = "healthy"
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	if dbStatus == "unhealthy" || redisStatus == "unhealthy" {
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overallStatus,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"time": time.Now(),
	})
}

// AuthRequired returns the authentication middleware
func (s *Server) AuthRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenString, err := middleware.BearerToken(c)
		if err != nil {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Authorization required"))
		}

		actor, jti, err := middleware.ParseToken(s.config.JWTSecret, tokenString)
		if err != nil {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Invalid or expired token"))
		}

		// Check JTI for revocation
		if jti != "" && s.redis != nil {
			revoked, err := s.redis.Exists(c.UserContext(), "blacklist:"+jti).Result()
			if err == nil && revoked > 0 {
				return models.RespondWithError(c, fiber.StatusUnauthorized,
					models.NewUnauthorizedError("Token has been revoked"))
			}
		}

		middleware.SetActor(c, actor)
		ctx := context.WithValue(c.UserContext(), middleware.UserIDKey, actor.ID)
		c.SetUserContext(ctx)

		return c.Next()
	}
}

// ReviewerRequired rejects callers without the Supervisor or Administrator role.
// Must be placed after AuthRequired.
func (s *Server) ReviewerRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, ok := middleware.ActorFrom(c)
		if !ok {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Authorization required"))
		}
		if !authz.IsReviewer(actor) {
			return models.RespondWithError(c, fiber.StatusForbidden,
				models.NewForbiddenError("Reviewer role required"))
		}
		return c.Next()
	}
}

// Start builds the app and listens on the configured port.
func (s *Server) Start() error {
	app := NewApp("Casedesk API", int(models.MaxAttachmentSize)+1<<20)
	s.app = app

	s.SetupMiddleware(app)
	s.SetupRoutes(app)

	middleware.Logger.Info("Server starting", slog.String("port", s.config.Port))
	return app.Listen(":" + s.config.Port)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			middleware.Logger.Error("error shutting down HTTP server", slog.String("error", err.Error()))
		}
	}

	if err := database.Close(s.db); err != nil {
		middleware.Logger.Error("error closing sql DB", slog.String("error", err.Error()))
	}

	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			middleware.Logger.Error("error closing redis", slog.String("error", err.Error()))
		}
	}

	middleware.Logger.Info("Server shutdown complete")
	return nil
}
