package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/omar-mostafa205/Planna/internal/config"
	"github.com/omar-mostafa205/Planna/internal/domain"
	"github.com/omar-mostafa205/Planna/internal/handler"
	"github.com/omar-mostafa205/Planna/internal/logger"
	"github.com/omar-mostafa205/Planna/internal/metrics"
	"github.com/omar-mostafa205/Planna/internal/middleware"
	"github.com/omar-mostafa205/Planna/internal/repository"
	"github.com/omar-mostafa205/Planna/internal/service"
	"github.com/omar-mostafa205/Planna/internal/telemetry"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/mongo"
)

// AppDependencies holds the dependencies required to start the application.
// Profiles, Extractor, Generator and Archive override the defaults built from
// Config; tests use them to avoid real model calls.
type AppDependencies struct {
	Config      *config.Config
	MongoDB     *mongo.Database
	RedisClient *redis.Client                 // optional: disables plan cache and idempotent replay
	AuthClient  middleware.FirebaseAuthClient // nil falls back to HMAC JWT auth
	Registry    *prometheus.Registry          // optional

	Profiles  domain.ProfileRepository
	Extractor domain.MetricExtractor
	Generator domain.PlanGenerator
	Archive   domain.ScanArchive
}

// NewApp creates and configures the Fiber application with the given dependencies
func NewApp(deps AppDependencies) *fiber.App {
	cfg := deps.Config

	// Repositories
	profiles := deps.Profiles
	if profiles == nil {
		profiles = repository.NewMongoProfileRepository(deps.MongoDB)
	}

	var planCache domain.PlanCache
	if deps.RedisClient != nil {
		planCache = repository.NewRedisCacheRepository(deps.RedisClient)
	}

	archive := deps.Archive
	if archive == nil && cfg.S3.Endpoint != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		s3Repo, err := repository.NewSeaweedS3Repository(ctx, cfg.S3)
		cancel()
		if err != nil {
			log.Warn().Err(err).Msg("scan archive unavailable, continuing without it")
		} else {
			archive = s3Repo
		}
	}

	// Model adapters share one OpenRouter client
	extractor, generator := deps.Extractor, deps.Generator
	if extractor == nil || generator == nil {
		client := service.NewOpenRouterClient(cfg.OpenRouter.APIKey, cfg.OpenRouter.BaseURL, nil)
		if extractor == nil {
			extractor = service.NewOpenRouterVision(client, cfg.OpenRouter.VisionModel, cfg.OpenRouter.VisionMaxTokens, cfg.OpenRouter.VisionTimeout)
		}
		if generator == nil {
			generator = service.NewOpenRouterGenerator(client, cfg.OpenRouter.PlanModel, cfg.OpenRouter.GenerationTimeout)
		}
	}

	// Metrics
	registry := deps.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
		registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}
	collector := metrics.NewCollector(registry)

	// Services
	planService := service.NewPlanService(
		service.NewImagePreprocessor(cfg.Server.MaxUploadBytes(), cfg.Image.TargetHeight, cfg.Image.Quality),
		extractor,
		generator,
		profiles,
		planCache,
		archive,
		collector,
		cfg.Server.PlanCacheTTL,
	)
	profileService := service.NewProfileService(profiles)

	// Handlers
	planHandler := handler.NewPlanHandler(planService, cfg.Server.MaxUploadSizeMB)
	profileHandler := handler.NewProfileHandler(profileService)

	// Leave room for multipart framing and text fields so an oversized image
	// still reaches the handler and gets a 400
	bodyLimit := int(2*cfg.Server.MaxUploadBytes() + 1<<20)

	app := fiber.New(fiber.Config{
		AppName:      "Planna API",
		BodyLimit:    bodyLimit,
		ErrorHandler: newErrorHandler(cfg.Server.MaxUploadSizeMB),
	})

	// Global middleware
	app.Use(telemetry.FiberMiddleware())
	app.Use(logger.RequestLogger())
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:  "*",
		AllowHeaders:  "Origin, Content-Type, Accept, Authorization, X-Correlation-ID",
		AllowMethods:  "GET, POST, OPTIONS",
		ExposeHeaders: "X-Idempotent-Replay, X-Trace-ID",
	}))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "healthy",
			"service": "planna",
		})
	})
	app.Get("/metrics", metrics.Handler(registry))

	authenticate := authMiddleware(deps)
	idempotent := middleware.IdempotencyMiddleware(deps.RedisClient, cfg.Server.IdempotencyTTL)
	tagUser := telemetry.TagUser(middleware.GetUserID)

	registerPlanRoutes := func(r fiber.Router) {
		r.Post("/generate-plan", authenticate, tagUser, idempotent, planHandler.GeneratePlan)
		r.Get("/get-plan", authenticate, tagUser, planHandler.GetPlan)
	}
	registerPlanRoutes(app)

	v1 := app.Group("/v1")
	registerPlanRoutes(v1)
	v1.Post("/profile/sync", authenticate, tagUser, profileHandler.SyncProfile)

	return app
}

func authMiddleware(deps AppDependencies) fiber.Handler {
	if deps.AuthClient != nil {
		return middleware.FirebaseAuth(deps.AuthClient)
	}
	return middleware.VerifyPlannaToken(deps.Config.JWT.Secret)
}

// newErrorHandler renders errors that escape the handlers as {"error": ...}.
// An over-limit body is an input problem, so 413 becomes 400.
func newErrorHandler(maxUploadMB int64) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		msg := "Internal server error"
		if e, ok := err.(*fiber.Error); ok {
			code = e.Code
			msg = e.Message
		}
		if code == fiber.StatusRequestEntityTooLarge {
			code = fiber.StatusBadRequest
			msg = fmt.Sprintf("Image size exceeds %dMB limit", maxUploadMB)
		}

		if code >= http.StatusInternalServerError {
			log.Error().Err(err).Str("path", c.Path()).Msg("unhandled error")
		}
		return c.Status(code).JSON(fiber.Map{
			"error": msg,
		})
	}
}
