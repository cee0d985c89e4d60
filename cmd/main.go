package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/omar-mostafa205/Planna/internal/config"
	"github.com/omar-mostafa205/Planna/internal/logger"
	"github.com/omar-mostafa205/Planna/internal/middleware"
	"github.com/omar-mostafa205/Planna/internal/server"
	"github.com/omar-mostafa205/Planna/internal/telemetry"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.opentelemetry.io/contrib/instrumentation/go.mongodb.org/mongo-driver/mongo/otelmongo"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// Logger isn't configured yet; the default zerolog writer is fine here
		log.Fatal().Err(err).Msg("failed to load config")
	}

	logger.SetupDefault(os.Stdout, cfg.Log.Level, cfg.Log.Pretty)
	log.Info().Str("port", cfg.Server.Port).Msg("starting Planna plan service")

	ctx := context.Background()

	otelProvider, err := telemetry.Initialize(ctx, telemetry.Config{
		ServiceName:    cfg.OTEL.ServiceName,
		ServiceVersion: cfg.OTEL.ServiceVersion,
		Environment:    cfg.OTEL.Environment,
		OTLPEndpoint:   cfg.OTEL.Endpoint,
		OTLPHeaders:    telemetry.BasicAuthHeaders(cfg.OTEL.InstanceID, cfg.OTEL.Token),
		Enabled:        cfg.OTEL.Enabled,
	})
	if err != nil {
		log.Warn().Err(err).Msg("failed to initialize OpenTelemetry")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = otelProvider.Shutdown(shutdownCtx)
	}()

	// Identity: Firebase when configured, HMAC JWT otherwise
	var authClient middleware.FirebaseAuthClient
	if cfg.Firebase.Enabled() {
		firebaseApp, err := middleware.InitFirebase(
			cfg.Firebase.ProjectID,
			cfg.Firebase.PrivateKey,
			cfg.Firebase.ClientEmail,
		)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize Firebase")
		}
		client, err := firebaseApp.Auth(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to get Firebase Auth client")
		}
		authClient = client
		log.Info().Msg("firebase auth initialized")
	} else {
		log.Info().Msg("firebase not configured, using HMAC JWT auth")
	}

	// MongoDB with OpenTelemetry instrumentation
	ctxMongo, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	mongoOpts := options.Client().ApplyURI(cfg.MongoDB.URI)
	if cfg.OTEL.Enabled {
		mongoOpts.SetMonitor(otelmongo.NewMonitor())
	}

	mongoClient, err := mongo.Connect(ctxMongo, mongoOpts)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to MongoDB")
	}
	defer func() {
		if err := mongoClient.Disconnect(context.Background()); err != nil {
			log.Error().Err(err).Msg("error disconnecting from MongoDB")
		}
	}()

	if err := mongoClient.Ping(ctxMongo, nil); err != nil {
		log.Fatal().Err(err).Msg("failed to ping MongoDB")
	}
	log.Info().Str("database", cfg.MongoDB.Database).Msg("MongoDB connected")

	// Redis is optional: without it there is no plan cache and no idempotent replay
	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       0,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("redis unreachable, running without cache")
			_ = redisClient.Close()
			redisClient = nil
		} else {
			defer redisClient.Close()
			log.Info().Msg("Redis connected")
		}
	}

	app := server.NewApp(server.AppDependencies{
		Config:      cfg,
		MongoDB:     mongoClient.Database(cfg.MongoDB.Database),
		RedisClient: redisClient,
		AuthClient:  authClient,
	})

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan
		log.Info().Msg("shutting down gracefully")
		// In-flight generations are allowed to finish
		if err := app.ShutdownWithTimeout(2 * cfg.OpenRouter.GenerationTimeout); err != nil {
			log.Error().Err(err).Msg("shutdown did not complete")
		}
	}()

	if err := app.Listen(":" + cfg.Server.Port); err != nil {
		log.Fatal().Err(err).Msg("failed to start server")
	}
}
