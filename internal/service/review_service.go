package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"receipt-service/internal/models"
	"receipt-service/pkg/config"

	"go.uber.org/zap"
)

// ReviewService produces spending insights for a list of receipts.
type ReviewService struct {
	dispatcher  *Dispatcher
	maxAttempts int
	tokenBuffer int
	logger      *zap.Logger
}

func NewReviewService(dispatcher *Dispatcher, cfg *config.ExtractionConfig, logger *zap.Logger) *ReviewService {
	return &ReviewService{
		dispatcher:  dispatcher,
		maxAttempts: max(cfg.MaxAttempts, 1),
		tokenBuffer: cfg.TokenBuffer,
		logger:      logger,
	}
}

type reviewReply struct {
	Status   bool   `json:"status"`
	Insights string `json:"insights"`
}

// Review returns the insights text. When no provider produces insights the
// built-in advisory text is returned. Only *CredentialsError is surfaced.
func (s *ReviewService) Review(ctx context.Context, creds Credentials, receipts []models.StoredReceipt, query string) (string, error) {
	receiptText := FormatReceipts(receipts)

	insights, err := Dispatch(ctx, s.dispatcher, creds, func(ctx context.Context, p Provider) (*string, error) {
		model, err := p.ReviewModel(ctx)
		if err != nil {
			return nil, err
		}
		return s.run(ctx, model, receiptText, query)
	})
	if err != nil {
		return "", err
	}
	if insights == nil {
		s.logger.Warn("No provider produced insights, returning fallback")
		return FallbackInsights, nil
	}
	return *insights, nil
}

// run asks for insights, re-prompting while the model reports status=false.
func (s *ReviewService) run(ctx context.Context, model Model, receiptText, query string) (*string, error) {
	history := []Message{{
		Role: RoleUser,
		Text: fmt.Sprintf("%s\n\nReceipts:\n%s\n\nUser query: %s", reviewPrompt, receiptText, query),
	}}

	for attempt := 1; ; attempt++ {
		reply, err := model.Generate(ctx, history)
		if err != nil {
			return nil, fmt.Errorf("failed to generate review: %w", err)
		}
		history = append(history, Message{Role: RoleModel, Text: reply.Text})

		var parsed reviewReply
		if err := json.Unmarshal([]byte(cleanModelJSON(reply.Text)), &parsed); err != nil {
			return nil, fmt.Errorf("failed to decode review response: %w", err)
		}

		if parsed.Status && strings.TrimSpace(parsed.Insights) != "" {
			s.logger.Info("Review generated", zap.Int("attempt", attempt))
			insights := strings.TrimSpace(parsed.Insights)
			return &insights, nil
		}

		if attempt >= s.maxAttempts || !tokenBudgetAllows(ctx, model, reply.TotalTokens, reviewErrorResponse, s.tokenBuffer, s.logger) {
			s.logger.Warn("Model could not produce a review", zap.Int("attempts", attempt))
			return nil, nil
		}
		history = append(history, Message{Role: RoleUser, Text: reviewErrorResponse})
	}
}

// FormatReceipts renders receipts as the plain-text block sent to the model.
func FormatReceipts(receipts []models.StoredReceipt) string {
	var b strings.Builder
	for _, r := range receipts {
		fmt.Fprintf(&b, "Merchant: %s\n", r.MerchantName)
		fmt.Fprintf(&b, "Date: %s\n", r.Date)
		fmt.Fprintf(&b, "Category: %s\n", r.Category)
		fmt.Fprintf(&b, "Total Cost: %s\n", r.TotalCost)
		b.WriteString("Itemized List:\n")
		for _, it := range r.ItemizedList {
			fmt.Fprintf(&b, "  - %s: %d x $%s\n", it.ItemName, it.ItemQuantity, it.ItemCost)
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
