package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/waynekhien/social-media/internal/audit"
	"github.com/waynekhien/social-media/internal/config"
	"github.com/waynekhien/social-media/internal/database"
	"github.com/waynekhien/social-media/internal/handler"
	"github.com/waynekhien/social-media/internal/hub"
	"github.com/waynekhien/social-media/internal/notifier"
	"github.com/waynekhien/social-media/internal/registry"
	"github.com/waynekhien/social-media/internal/repository"
	"github.com/waynekhien/social-media/internal/service"
	"github.com/waynekhien/social-media/internal/storage"
	pkglog "github.com/waynekhien/social-media/pkg/log"
	"github.com/waynekhien/social-media/pkg/middleware"
)

func main() {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		l := pkglog.L()
		l.Fatal().Err(err).Msg("failed to load config")
	}

	// 2. Initialize structured logger
	pkglog.Init(pkglog.Config{
		Level:       cfg.Log.Level,
		Pretty:      cfg.Log.Level == "debug",
		ServiceName: "messaging-service",
	})
	logger := pkglog.L()

	// 3. Connect MongoDB and ensure indexes. The unique index on the
	// normalized participant pair must exist before any request runs.
	connectCtx, connectCancel := context.WithTimeout(context.Background(), cfg.Mongo.ConnectTimeout)
	client, db, err := database.New(connectCtx, database.Config{
		URI:      cfg.Mongo.URI,
		Database: cfg.Mongo.Database,
	})
	connectCancel()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to mongodb")
	}
	defer func() {
		disconnectCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Disconnect(disconnectCtx); err != nil {
			logger.Warn().Err(err).Msg("error disconnecting mongodb")
		}
	}()

	indexCtx, indexCancel := context.WithTimeout(context.Background(), 30*time.Second)
	err = database.EnsureIndexes(indexCtx, db)
	indexCancel()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to ensure indexes")
	}
	logger.Info().Msg("mongodb indexes ensured")

	// 4. Create repositories
	userRepo := repository.NewMongoUserRepository(db)
	convRepo := repository.NewMongoConversationRepository(db)
	msgRepo := repository.NewMongoMessageRepository(db)

	// 5. Connection registry (Redis) with TTL heartbeat
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	connRegistry, err := registry.NewRedisRegistry(cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer connRegistry.Close()
	connRegistry.StartHeartbeat(ctx)
	logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")

	// 6. Delivery hub
	wsHub := hub.NewHub()
	go wsHub.Run()

	// 7. Image storage collaborator
	var uploader storage.Uploader
	switch cfg.Storage.Driver {
	case "s3":
		uploader, err = storage.NewS3Uploader(ctx, storage.S3Config{
			Endpoint:        cfg.Storage.Endpoint,
			Region:          cfg.Storage.Region,
			Bucket:          cfg.Storage.Bucket,
			AccessKeyID:     cfg.Storage.AccessKeyID,
			SecretAccessKey: cfg.Storage.SecretAccessKey,
			UsePathStyle:    cfg.Storage.UsePathStyle,
			PublicURL:       cfg.Storage.PublicURL,
		})
	default:
		uploader, err = storage.NewLocalUploader(storage.LocalConfig{
			BasePath: cfg.Storage.LocalPath,
			BaseURL:  cfg.Storage.PublicURL,
		})
	}
	if err != nil {
		logger.Fatal().Err(err).Str("driver", cfg.Storage.Driver).Msg("failed to initialize storage")
	}

	// 8. Message-events producer (optional)
	var events audit.EventProducer = audit.NopProducer{}
	if cfg.Kafka.Brokers != "" {
		producer, err := audit.NewConfluentProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			logger.Warn().Err(err).Msg("failed to create kafka producer, message events disabled")
		} else {
			events = producer
			logger.Info().Str("topic", cfg.Kafka.Topic).Msg("kafka event producer started")
		}
	} else {
		logger.Warn().Msg("KAFKA_BROKERS not configured; message events disabled")
	}

	// 9. Service
	msgNotifier := notifier.NewHubNotifier(connRegistry, wsHub)
	svc := service.NewMessagingService(userRepo, convRepo, msgRepo, uploader, msgNotifier, events)

	// 10. Setup Gin router + HTTP server
	authMiddleware := middleware.NewAuthMiddleware(cfg.Auth.JWTSecret)
	httpHandler := handler.NewHTTPHandler(svc, authMiddleware)
	wsHandler := handler.NewWSHandler(wsHub, connRegistry, cfg.Socket)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(pkglog.GinMiddleware(logger))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ws", authMiddleware.RequireAuth(), wsHandler.HandleWebSocket)
	httpHandler.RegisterRoutes(r)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		logger.Info().Str("addr", addr).Msg("messaging-service starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("HTTP server error")
		}
	}()

	// 11. Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info().Msg("shutdown signal received")

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)

		// 1. cancel() — stop the registry heartbeat
		cancel()

		// 2. drain the HTTP server
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("HTTP server forced to shutdown")
		}

		// 3. flush the event producer
		if err := events.Close(); err != nil {
			logger.Warn().Err(err).Msg("error closing event producer")
		}
	}()

	select {
	case <-shutdownDone:
		logger.Info().Msg("messaging-service stopped")
	case <-time.After(30 * time.Second):
		logger.Warn().Msg("shutdown timed out after 30s")
	}
}
