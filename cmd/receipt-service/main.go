package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"receipt-service/internal/api"
	"receipt-service/internal/api/handlers"
	"receipt-service/internal/repository"
	"receipt-service/internal/service"
	"receipt-service/pkg/config"
	"receipt-service/pkg/logger"
	"receipt-service/pkg/postgres"
	redispkg "receipt-service/pkg/redis"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// @title Receipt Service API
// @version 1.0
// @description Receipt extraction, spending review and receipt-grounded chat

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8081
// @BasePath /

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize global logger
	if err := logger.Init(cfg.Logger.Level); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	appLogger := logger.Get()
	appLogger.Info("Starting receipt service")

	// Initialize database
	ctx := context.Background()
	db, err := postgres.NewPool(ctx, &cfg.Database, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	if err := postgres.EnsureSchema(ctx, db, &cfg.RAG, appLogger); err != nil {
		appLogger.Fatal("Failed to prepare schema", zap.Error(err))
	}

	// Redis only backs the embedding cache; run without it if unreachable.
	var cache *redis.Client
	if cfg.Redis.Addr != "" {
		cache, err = redispkg.NewClient(ctx, &cfg.Redis, appLogger)
		if err != nil {
			appLogger.Warn("Redis unavailable, embedding cache disabled", zap.Error(err))
			cache = nil
		} else {
			defer cache.Close()
		}
	}

	embedder, closeEmbedder, err := service.NewConfiguredEmbedder(ctx, cfg, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to initialize embedder", zap.Error(err))
	}
	defer closeEmbedder()
	if cache != nil {
		embedder = service.NewCachedEmbedder(embedder, cache, cfg.Redis.CacheTTL, logger.Named("embedding-cache"))
	}

	// Initialize repositories
	receiptRepo := repository.NewReceiptRepository(db, appLogger)
	embeddingRepo := repository.NewEmbeddingRepository(db, appLogger)

	// Providers are built per request from the caller's keys.
	dispatcher := service.NewDispatcher([]service.ProviderSpec{
		{Name: service.ProviderGemini, Factory: service.NewGeminiFactory(&cfg.Gemini, &cfg.Extraction, appLogger)},
		{Name: service.ProviderGigaChat, Factory: service.NewGigaChatFactory(&cfg.GigaChat, &cfg.Extraction, appLogger)},
	}, logger.Named("dispatcher"))
	appLogger.Info("Providers registered", zap.Strings("providers", dispatcher.Names()))

	// Initialize services
	embeddingService := service.NewEmbeddingService(embedder, embeddingRepo, logger.Named("embeddings"))
	extractionEngine := service.NewExtractionEngine(&cfg.Extraction, logger.Named("extraction"))
	receiptService := service.NewReceiptService(
		dispatcher,
		extractionEngine,
		service.NewPageRenderer(appLogger),
		receiptRepo,
		embeddingService,
		appLogger,
	)
	reviewService := service.NewReviewService(dispatcher, &cfg.Extraction, appLogger)
	retrievalService := service.NewRetrievalService(embedder, embeddingRepo, receiptRepo, &cfg.RAG, logger.Named("retrieval"))
	chatService := service.NewChatService(retrievalService, dispatcher, &cfg.Extraction, appLogger)

	// Initialize handlers
	checks := []handlers.HealthCheck{{Name: "postgres", Check: db.Ping}}
	if cache != nil {
		checks = append(checks, handlers.HealthCheck{
			Name:  "redis",
			Check: func(ctx context.Context) error { return cache.Ping(ctx).Err() },
		})
	}

	app := api.SetupRouter(api.Handlers{
		Receipt:   handlers.NewReceiptHandler(receiptService, reviewService, appLogger),
		Chat:      handlers.NewChatHandler(chatService, appLogger),
		Embedding: handlers.NewEmbeddingHandler(embeddingService, appLogger),
		Health:    handlers.NewHealthHandler(checks...),
	}, &cfg.Server, appLogger)

	// Start server
	go func() {
		addr := ":" + cfg.Server.Port
		appLogger.Info("Server starting", zap.String("address", addr))
		if err := app.Listen(addr); err != nil {
			appLogger.Fatal("Server failed", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		appLogger.Error("Server shutdown error", zap.Error(err))
	}
}
