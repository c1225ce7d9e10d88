package handlers

import (
	"context"
	"fmt"
	"strings"

	"receipt-service/internal/dto"
	"receipt-service/internal/models"
	"receipt-service/internal/service"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type ReceiptIndexer interface {
	EmbedReceipt(ctx context.Context, userID, receiptID string, data *models.StoredReceipt) (service.EmbedResult, error)
	DeleteReceipt(ctx context.Context, receiptID string) (int64, error)
}

type EmbeddingHandler struct {
	indexer ReceiptIndexer
	logger  *zap.Logger
}

func NewEmbeddingHandler(indexer ReceiptIndexer, logger *zap.Logger) *EmbeddingHandler {
	return &EmbeddingHandler{
		indexer: indexer,
		logger:  logger,
	}
}

// EmbedReceipt godoc
// @Summary Index a stored receipt for retrieval
// @Tags embeddings
// @Accept json
// @Produce json
// @Param request body dto.EmbedReceiptRequest true "Receipt to index"
// @Success 200 {object} dto.MessageResponse "No chunks to embed"
// @Success 201 {object} dto.MessageResponse
// @Success 207 {object} dto.MessageResponse "Partially embedded"
// @Failure 400 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /embed-receipt [post]
func (h *EmbeddingHandler) EmbedReceipt(c *fiber.Ctx) error {
	var req dto.EmbedReceiptRequest
	if err := c.BodyParser(&req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "Invalid request body")
	}

	userID := strings.TrimSpace(req.UserID)
	receiptID := strings.TrimSpace(req.ReceiptID)
	if userID == "" || receiptID == "" || req.ReceiptData == nil {
		return errorJSON(c, fiber.StatusBadRequest, "Missing userId, receiptId, or receiptData")
	}

	result, err := h.indexer.EmbedReceipt(c.Context(), userID, receiptID, req.ReceiptData)
	if err != nil {
		h.logger.Error("Failed to embed receipt", zap.String("receipt_id", receiptID), zap.Error(err))
		return errorJSON(c, fiber.StatusInternalServerError, "Internal server error during embedding")
	}

	switch {
	case result.Total == 0:
		return c.JSON(dto.MessageResponse{Message: "No text chunks to embed"})
	case result.Stored == result.Total:
		return c.Status(fiber.StatusCreated).JSON(dto.MessageResponse{
			Message: fmt.Sprintf("Successfully embedded %d chunks for receipt %s", result.Stored, receiptID),
		})
	default:
		return c.Status(fiber.StatusMultiStatus).JSON(dto.MessageResponse{
			Warning: fmt.Sprintf("Partially embedded %d/%d chunks for receipt %s", result.Stored, result.Total, receiptID),
		})
	}
}

// DeleteEmbeddings godoc
// @Summary Remove every indexed chunk of a receipt
// @Tags embeddings
// @Produce json
// @Param receiptId path string true "Receipt ID"
// @Success 200 {object} dto.DeleteEmbeddingsResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /delete-embeddings/{receiptId} [delete]
func (h *EmbeddingHandler) DeleteEmbeddings(c *fiber.Ctx) error {
	receiptID := strings.TrimSpace(c.Params("receiptId"))
	if receiptID == "" {
		return errorJSON(c, fiber.StatusBadRequest, "Missing receiptId parameter")
	}

	deleted, err := h.indexer.DeleteReceipt(c.Context(), receiptID)
	if err != nil {
		h.logger.Error("Failed to delete embeddings", zap.String("receipt_id", receiptID), zap.Error(err))
		return errorJSON(c, fiber.StatusInternalServerError, "Internal server error during embedding deletion")
	}

	return c.JSON(dto.DeleteEmbeddingsResponse{
		Message: fmt.Sprintf("Successfully deleted %d embeddings for receipt %s", deleted, receiptID),
		Deleted: deleted,
	})
}
