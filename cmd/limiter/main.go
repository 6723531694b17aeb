package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/altura-labs/secgate/pkg/config"
	handlers "github.com/altura-labs/secgate/pkg/handlers/http"
	infraLogger "github.com/altura-labs/secgate/pkg/infra/logger"
	"github.com/altura-labs/secgate/pkg/infra/prometheus"
	"github.com/altura-labs/secgate/pkg/ratelimit"
	"github.com/altura-labs/secgate/pkg/safeerr"
	"github.com/altura-labs/secgate/pkg/server"
	"github.com/altura-labs/secgate/pkg/server/middleware"
	"github.com/altura-labs/secgate/pkg/version"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

func main() {
	envFile := os.Getenv("ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil {
		log.Println("no .env file found, using system environment variables")
	}

	if err := config.Load("./config"); err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	cfg := config.GetConfig()

	logger := infraLogger.NewLogger(cfg.Environment)

	prometheus.Initialize()

	table, err := ratelimit.NewTable(cfg.RateLimits, logger)
	if err != nil {
		logger.Fatalf("Invalid rate limit configuration: %v", err)
	}

	store, cleanup, err := buildStore(cfg, logger)
	if err != nil {
		logger.Fatalf("Failed to initialize rate limit store: %v", err)
	}
	defer cleanup()

	service := ratelimit.NewService(store, table, logger, []byte(cfg.Security.JWTSecret))
	translator := safeerr.NewTranslator(logger, cfg.IsProduction(), nil)

	transport := middleware.NewTransport(
		middleware.NewSecurityHeadersMiddleware(),
		middleware.NewMetricsMiddleware(),
	)

	srv := server.NewLimiterServer(server.LimiterServerDI{
		MiddlewareTransport: transport,
		CheckHandler:        handlers.NewRateLimitCheckHandler(logger, service),
		HealthHandler:       handlers.NewHealthHandler(),
		Config:              cfg,
		Logger:              logger,
		Translator:          translator,
	})

	go func() {
		if err := srv.Run(); err != nil {
			logger.WithError(err).Fatal("server terminated")
		}
	}()
	logger.WithFields(logrus.Fields{
		"port":    cfg.Server.Port,
		"version": version.Version,
	}).Info("rate limit service started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	if err := srv.Shutdown(); err != nil {
		logger.WithError(err).Error("graceful shutdown failed")
	}
}

func buildStore(cfg *config.Config, logger *logrus.Logger) (ratelimit.Store, func(), error) {
	if cfg.Redis.Enabled {
		client := redis.NewClient(&redis.Options{
			Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(context.Background()).Err(); err != nil {
			return nil, nil, fmt.Errorf("redis unreachable: %w", err)
		}
		logger.Infof("using redis rate limit store at %s:%d", cfg.Redis.Host, cfg.Redis.Port)
		return ratelimit.NewRedisStore(client, nil), func() { _ = client.Close() }, nil
	}

	store := ratelimit.NewMemoryStore(nil)
	store.Start()
	logger.Infof("using in-memory rate limit store")
	return store, store.Stop, nil
}
