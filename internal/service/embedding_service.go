package service

import (
	"context"
	"fmt"

	"receipt-service/internal/models"

	"go.uber.org/zap"
)

type EmbeddingStore interface {
	Create(ctx context.Context, chunk *models.EmbeddingChunk) error
	DeleteByReceiptID(ctx context.Context, receiptID string) (int64, error)
}

// EmbedResult counts stored fragments against produced fragments.
type EmbedResult struct {
	Stored int
	Total  int
}

// Partial is true when some but not all chunks were stored.
func (r EmbedResult) Partial() bool {
	return r.Stored > 0 && r.Stored < r.Total
}

type EmbeddingService struct {
	embedder Embedder
	store    EmbeddingStore
	logger   *zap.Logger
}

func NewEmbeddingService(embedder Embedder, store EmbeddingStore, logger *zap.Logger) *EmbeddingService {
	return &EmbeddingService{
		embedder: embedder,
		store:    store,
		logger:   logger,
	}
}

// EmbedReceipt chunks a receipt and stores one vector per chunk. A chunk
// that fails to embed or store is skipped; the error is only returned when
// nothing could be stored.
func (s *EmbeddingService) EmbedReceipt(ctx context.Context, userID, receiptID string, data *models.StoredReceipt) (EmbedResult, error) {
	chunks := ChunkReceipt(receiptID, data)
	result := EmbedResult{Total: len(chunks)}

	var lastErr error
	for _, text := range chunks {
		vector, err := s.embedder.Embed(ctx, text)
		if err != nil {
			s.logger.Warn("Failed to embed chunk", zap.String("receipt_id", receiptID), zap.Error(err))
			lastErr = err
			continue
		}

		err = s.store.Create(ctx, &models.EmbeddingChunk{
			UserID:    userID,
			ReceiptID: receiptID,
			TextChunk: text,
			Embedding: vector,
		})
		if err != nil {
			s.logger.Warn("Failed to store chunk", zap.String("receipt_id", receiptID), zap.Error(err))
			lastErr = err
			continue
		}
		result.Stored++
	}

	s.logger.Info("Receipt embedded",
		zap.String("receipt_id", receiptID),
		zap.Int("stored", result.Stored),
		zap.Int("total", result.Total),
	)

	if result.Total > 0 && result.Stored == 0 {
		return result, fmt.Errorf("failed to store any embeddings: %w", lastErr)
	}
	return result, nil
}

func (s *EmbeddingService) DeleteReceipt(ctx context.Context, receiptID string) (int64, error) {
	deleted, err := s.store.DeleteByReceiptID(ctx, receiptID)
	if err != nil {
		return 0, err
	}
	s.logger.Info("Embeddings deleted", zap.String("receipt_id", receiptID), zap.Int64("deleted", deleted))
	return deleted, nil
}

// Reembed replaces every chunk of a stored receipt.
func (s *EmbeddingService) Reembed(ctx context.Context, receipt *models.StoredReceipt) (EmbedResult, error) {
	if _, err := s.DeleteReceipt(ctx, receipt.ID); err != nil {
		return EmbedResult{}, fmt.Errorf("failed to clear embeddings for %s: %w", receipt.ID, err)
	}
	return s.EmbedReceipt(ctx, receipt.UserID, receipt.ID, receipt)
}
