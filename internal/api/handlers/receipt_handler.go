package handlers

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"

	"receipt-service/internal/dto"
	"receipt-service/internal/models"
	"receipt-service/internal/service"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

var allowedExtensions = map[string]bool{".png": true, ".jpg": true, ".jpeg": true, ".pdf": true}

type ReceiptExtractor interface {
	Extract(ctx context.Context, creds service.Credentials, files []service.UploadedFile) (*models.Receipt, error)
	Save(ctx context.Context, userID string, receipt *models.Receipt) (*models.StoredReceipt, error)
}

type Reviewer interface {
	Review(ctx context.Context, creds service.Credentials, receipts []models.StoredReceipt, query string) (string, error)
}

type ReceiptHandler struct {
	receipts ReceiptExtractor
	reviewer Reviewer
	logger   *zap.Logger
}

func NewReceiptHandler(receipts ReceiptExtractor, reviewer Reviewer, logger *zap.Logger) *ReceiptHandler {
	return &ReceiptHandler{
		receipts: receipts,
		reviewer: reviewer,
		logger:   logger,
	}
}

// Upload godoc
// @Summary Extract a receipt from an image or PDF
// @Description Runs structured extraction against the caller's providers, default first. When userId is given the receipt is stored and indexed.
// @Tags receipts
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "Receipt image (png, jpg, jpeg) or PDF"
// @Param defaultModel formData string true "Provider tried first: GEMINI or GIGACHAT"
// @Param geminiKey formData string false "Gemini API key or UNSET"
// @Param gigachatKey formData string false "GigaChat authorization key or UNSET"
// @Param userId formData string false "Store the receipt for this user"
// @Success 200 {object} dto.ReceiptResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 401 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /upload [post]
func (h *ReceiptHandler) Upload(c *fiber.Ctx) error {
	file, err := c.FormFile("file")
	if err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "No file received")
	}
	if file.Filename == "" {
		return errorJSON(c, fiber.StatusBadRequest, "No selected file")
	}

	creds := credentials(dto.APIKeys{
		DefaultModel: c.FormValue("defaultModel"),
		GeminiKey:    c.FormValue("geminiKey"),
		GigaChatKey:  c.FormValue("gigachatKey"),
	})
	if msg := validateKeys(creds); msg != "" {
		return errorJSON(c, fiber.StatusBadRequest, msg)
	}

	if !allowedExtensions[strings.ToLower(filepath.Ext(file.Filename))] {
		return errorJSON(c, fiber.StatusBadRequest, "Invalid file type received")
	}

	src, err := file.Open()
	if err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "Failed to open file")
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "Failed to read file")
	}

	receipt, err := h.receipts.Extract(c.Context(), creds, []service.UploadedFile{{Name: filepath.Base(file.Filename), Data: data}})
	if err != nil {
		if handled, werr := credentialsFailure(c, err); handled {
			return werr
		}
		if errors.Is(err, service.ErrUnsupportedFile) {
			return errorJSON(c, fiber.StatusBadRequest, "Invalid file type received")
		}
		h.logger.Error("Failed to extract receipt", zap.Error(err))
		return errorJSON(c, fiber.StatusInternalServerError, "Internal server error during upload")
	}
	if receipt == nil {
		return errorJSON(c, fiber.StatusBadRequest, "Image is not a receipt or error parsing receipt")
	}

	resp := dto.NewReceiptResponse(receipt)
	if userID := strings.TrimSpace(c.FormValue("userId")); userID != "" {
		record, err := h.receipts.Save(c.Context(), userID, receipt)
		if err != nil {
			h.logger.Error("Failed to store receipt", zap.String("user_id", userID), zap.Error(err))
			return errorJSON(c, fiber.StatusInternalServerError, "Failed to store receipt")
		}
		resp.ReceiptID = record.ID
	}

	return c.JSON(resp)
}

// Review godoc
// @Summary Spending insights for a list of receipts
// @Description Returns a short insights text. When no provider answers, built-in advice is returned.
// @Tags receipts
// @Accept json
// @Produce json
// @Param request body dto.ReviewRequest true "Receipts and provider keys"
// @Success 200 {string} string
// @Failure 400 {object} dto.ErrorResponse
// @Failure 401 {object} dto.ErrorResponse
// @Router /review [post]
func (h *ReceiptHandler) Review(c *fiber.Ctx) error {
	var req dto.ReviewRequest
	if err := c.BodyParser(&req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "Invalid request body")
	}

	creds := credentials(req.APIKeys)
	if msg := validateKeys(creds); msg != "" {
		return errorJSON(c, fiber.StatusBadRequest, msg)
	}
	if req.Receipts == nil {
		return errorJSON(c, fiber.StatusBadRequest, "Missing receipts parameter")
	}

	insights, err := h.reviewer.Review(c.Context(), creds, req.Receipts, req.Query)
	if err != nil {
		if handled, werr := credentialsFailure(c, err); handled {
			return werr
		}
		h.logger.Error("Failed to review receipts", zap.Error(err))
		return errorJSON(c, fiber.StatusInternalServerError, "Internal server error during review")
	}

	return c.JSON(insights)
}
