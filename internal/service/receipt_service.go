package service

import (
	"context"
	"fmt"

	"receipt-service/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type ReceiptStore interface {
	Create(ctx context.Context, receipt *models.StoredReceipt) error
}

// UploadedFile is one file of a multipart upload.
type UploadedFile struct {
	Name string
	Data []byte
}

type ReceiptService struct {
	dispatcher *Dispatcher
	engine     *ExtractionEngine
	renderer   *PageRenderer
	store      ReceiptStore
	embeddings *EmbeddingService
	logger     *zap.Logger
}

func NewReceiptService(
	dispatcher *Dispatcher,
	engine *ExtractionEngine,
	renderer *PageRenderer,
	store ReceiptStore,
	embeddings *EmbeddingService,
	logger *zap.Logger,
) *ReceiptService {
	return &ReceiptService{
		dispatcher: dispatcher,
		engine:     engine,
		renderer:   renderer,
		store:      store,
		embeddings: embeddings,
		logger:     logger,
	}
}

// Extract reads a receipt from the uploaded files. It returns (nil, nil)
// when no provider produced a valid receipt.
func (s *ReceiptService) Extract(ctx context.Context, creds Credentials, files []UploadedFile) (*models.Receipt, error) {
	var images []Image
	for _, f := range files {
		pages, err := s.renderer.Render(f.Name, f.Data)
		if err != nil {
			return nil, err
		}
		images = append(images, pages...)
	}
	if len(images) == 0 {
		return nil, fmt.Errorf("%w: no files uploaded", ErrUnsupportedFile)
	}

	return Dispatch(ctx, s.dispatcher, creds, func(ctx context.Context, p Provider) (*models.Receipt, error) {
		model, err := p.ExtractionModel(ctx)
		if err != nil {
			return nil, err
		}

		outcome, err := s.engine.Run(ctx, model, images)
		if err != nil {
			return nil, err
		}

		s.logger.Info("Extraction finished",
			zap.String("provider", p.Name()),
			zap.String("state", string(outcome.State)),
			zap.Int("attempts", outcome.Attempts),
		)
		if outcome.State != StateSuccess {
			return nil, nil
		}
		return outcome.Receipt, nil
	})
}

// Save persists an extracted receipt and indexes it for retrieval.
// Embedding failures are logged; the stored receipt is still returned.
func (s *ReceiptService) Save(ctx context.Context, userID string, receipt *models.Receipt) (*models.StoredReceipt, error) {
	record := receipt.ToRecord(uuid.New().String(), userID)
	record.MerchantName = sanitizeUTF8(record.MerchantName)

	if err := s.store.Create(ctx, record); err != nil {
		return nil, err
	}
	s.logger.Info("Receipt stored", zap.String("receipt_id", record.ID), zap.String("user_id", userID))

	if s.embeddings != nil {
		if _, err := s.embeddings.EmbedReceipt(ctx, userID, record.ID, record); err != nil {
			s.logger.Warn("Failed to embed stored receipt", zap.String("receipt_id", record.ID), zap.Error(err))
		}
	}
	return record, nil
}
