// Command backfill rebuilds the retrieval index from stored receipts.
package main

import (
	"context"
	"flag"
	"log"

	"receipt-service/internal/repository"
	"receipt-service/internal/service"
	"receipt-service/pkg/config"
	"receipt-service/pkg/logger"
	"receipt-service/pkg/postgres"

	"go.uber.org/zap"
)

func main() {
	userID := flag.String("user", "", "only backfill this user's receipts")
	force := flag.Bool("force", false, "re-embed receipts that already have chunks")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	appLogger, err := logger.New(cfg.Logger.Level)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer appLogger.Sync()

	// Connect to database
	ctx := context.Background()
	db, err := postgres.NewPool(ctx, &cfg.Database, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	if err := postgres.EnsureSchema(ctx, db, &cfg.RAG, appLogger); err != nil {
		appLogger.Fatal("Failed to prepare schema", zap.Error(err))
	}

	embedder, closeEmbedder, err := service.NewConfiguredEmbedder(ctx, cfg, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to initialize embedder", zap.Error(err))
	}
	defer closeEmbedder()

	receiptRepo := repository.NewReceiptRepository(db, appLogger)
	embeddingRepo := repository.NewEmbeddingRepository(db, appLogger)
	embeddings := service.NewEmbeddingService(embedder, embeddingRepo, appLogger)

	users := []string{*userID}
	if *userID == "" {
		users, err = receiptRepo.DistinctUserIDs(ctx)
		if err != nil {
			appLogger.Fatal("Failed to list users", zap.Error(err))
		}
	}

	var processed, skipped, failed int
	for _, user := range users {
		filter := repository.ReceiptFilter{UserID: user}
		total, err := receiptRepo.Count(ctx, filter)
		if err != nil {
			appLogger.Error("Failed to count receipts", zap.String("user_id", user), zap.Error(err))
			failed++
			continue
		}
		appLogger.Info("Backfilling user", zap.String("user_id", user), zap.Int64("receipts", total))

		receipts, err := receiptRepo.Find(ctx, filter)
		if err != nil {
			appLogger.Error("Failed to load receipts", zap.String("user_id", user), zap.Error(err))
			failed++
			continue
		}

		for i := range receipts {
			receipt := &receipts[i]
			if !*force {
				existing, err := embeddingRepo.CountByReceiptID(ctx, receipt.ID)
				if err == nil && existing > 0 {
					skipped++
					continue
				}
			}

			result, err := embeddings.Reembed(ctx, receipt)
			if err != nil {
				appLogger.Error("Failed to embed receipt", zap.String("receipt_id", receipt.ID), zap.Error(err))
				failed++
				continue
			}
			if result.Partial() {
				appLogger.Warn("Receipt partially embedded",
					zap.String("receipt_id", receipt.ID),
					zap.Int("stored", result.Stored),
					zap.Int("total", result.Total),
				)
			}
			processed++
		}
	}

	appLogger.Info("Backfill completed",
		zap.Int("users", len(users)),
		zap.Int("processed", processed),
		zap.Int("skipped", skipped),
		zap.Int("errors", failed),
	)
}
