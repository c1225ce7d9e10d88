package handlers

import (
	"context"
	"strings"

	"receipt-service/internal/dto"
	"receipt-service/internal/service"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type ChatResponder interface {
	Chat(ctx context.Context, creds service.Credentials, userID, message string, history []service.HistoryEntry) (*service.Answer, error)
}

type ChatHandler struct {
	chat   ChatResponder
	logger *zap.Logger
}

func NewChatHandler(chat ChatResponder, logger *zap.Logger) *ChatHandler {
	return &ChatHandler{
		chat:   chat,
		logger: logger,
	}
}

// Chat godoc
// @Summary Ask a question about your receipts
// @Description Retrieves matching receipts, reconciles category totals, and answers with the caller's providers.
// @Tags chat
// @Accept json
// @Produce json
// @Param request body dto.ChatRequest true "Message, history and provider keys"
// @Success 200 {object} dto.ChatResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 401 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ChatResponse
// @Router /chat [post]
func (h *ChatHandler) Chat(c *fiber.Ctx) error {
	var req dto.ChatRequest
	if err := c.BodyParser(&req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "Invalid request body")
	}

	userID := strings.TrimSpace(req.UserID)
	if userID == "" || strings.TrimSpace(req.Message) == "" {
		return errorJSON(c, fiber.StatusBadRequest, "Missing userId or message")
	}

	creds := credentials(req.APIKeys)
	if validateKeys(creds) != "" {
		return errorJSON(c, fiber.StatusBadRequest, "Missing defaultModel or API keys (Gemini/GigaChat)")
	}

	h.logger.Info("Processing chat", zap.String("user_id", userID), zap.Int("history", len(req.History)))

	answer, err := h.chat.Chat(c.Context(), creds, userID, req.Message, req.History)
	if err != nil {
		if handled, werr := credentialsFailure(c, err); handled {
			return werr
		}
		h.logger.Error("Chat failed", zap.Error(err))
		return errorJSON(c, fiber.StatusInternalServerError, "Internal server error during chat processing")
	}
	if !answer.Answered {
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ChatResponse{Response: answer.Response})
	}

	return c.JSON(dto.ChatResponse{Response: answer.Response})
}
