package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"receipt-service/internal/models"
	"receipt-service/pkg/config"

	"go.uber.org/zap"
)

type ExtractionState string

const (
	StateInit          ExtractionState = "INIT"
	StateAwaitingModel ExtractionState = "AWAITING_MODEL"
	StateValidating    ExtractionState = "VALIDATING"
	StateRetryFeedback ExtractionState = "RETRY_FEEDBACK"
	StateSuccess       ExtractionState = "SUCCESS"
	StateNotReceipt    ExtractionState = "NOT_RECEIPT"
	StateExhausted     ExtractionState = "EXHAUSTED"
)

// ExtractionOutcome is the terminal result of one extraction run.
// Receipt is set only in StateSuccess.
type ExtractionOutcome struct {
	State    ExtractionState
	Receipt  *models.Receipt
	Attempts int
	// History is the full conversation, including model replies and repair prompts.
	History []Message
}

// ExtractionEngine drives request/repair cycles against a single model.
type ExtractionEngine struct {
	maxAttempts int
	tokenBuffer int
	logger      *zap.Logger
}

func NewExtractionEngine(cfg *config.ExtractionConfig, logger *zap.Logger) *ExtractionEngine {
	maxAttempts := cfg.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &ExtractionEngine{
		maxAttempts: maxAttempts,
		tokenBuffer: cfg.TokenBuffer,
		logger:      logger,
	}
}

// Run extracts a receipt from images. Model transport errors are returned
// as errors; everything else ends in a terminal state.
func (e *ExtractionEngine) Run(ctx context.Context, model Model, images []Image) (*ExtractionOutcome, error) {
	history := []Message{{Role: RoleUser, Text: extractionPrompt(), Images: images}}
	state := StateInit

	for attempt := 1; ; attempt++ {
		state = e.transition(state, StateAwaitingModel, attempt)
		reply, err := model.Generate(ctx, history)
		if err != nil {
			return nil, fmt.Errorf("failed to generate receipt (attempt %d): %w", attempt, err)
		}
		history = append(history, Message{Role: RoleModel, Text: reply.Text})

		state = e.transition(state, StateValidating, attempt)
		receipt, notReceipt, verr := decodeReceipt(reply.Text)
		if notReceipt {
			e.transition(state, StateNotReceipt, attempt)
			return &ExtractionOutcome{State: StateNotReceipt, Attempts: attempt, History: history}, nil
		}
		if verr == nil {
			e.transition(state, StateSuccess, attempt)
			return &ExtractionOutcome{State: StateSuccess, Receipt: receipt, Attempts: attempt, History: history}, nil
		}

		state = e.transition(state, StateRetryFeedback, attempt)
		e.logger.Warn("Receipt validation failed",
			zap.Int("attempt", attempt),
			zap.Error(verr),
			zap.String("raw_response", truncate(reply.Text, 500)),
		)

		if attempt >= e.maxAttempts {
			e.logger.Warn("Max attempts reached, unable to parse receipt", zap.Int("attempts", attempt))
			return e.exhausted(state, attempt, history), nil
		}

		feedback := extractionFeedback(verr)
		if !e.withinBudget(ctx, model, reply.TotalTokens, verr.Error()) {
			return e.exhausted(state, attempt, history), nil
		}
		history = append(history, Message{Role: RoleUser, Text: feedback})
	}
}

func (e *ExtractionEngine) exhausted(from ExtractionState, attempt int, history []Message) *ExtractionOutcome {
	e.transition(from, StateExhausted, attempt)
	return &ExtractionOutcome{State: StateExhausted, Attempts: attempt, History: history}
}

// withinBudget applies usage + cost(text) + buffer <= input limit.
func (e *ExtractionEngine) withinBudget(ctx context.Context, model Model, usage int, text string) bool {
	return tokenBudgetAllows(ctx, model, usage, text, e.tokenBuffer, e.logger)
}

func tokenBudgetAllows(ctx context.Context, model Model, usage int, text string, buffer int, logger *zap.Logger) bool {
	cost, err := model.CountTokens(ctx, text)
	if err != nil {
		logger.Warn("Failed to count tokens, treating budget as exhausted", zap.Error(err))
		return false
	}
	projected := usage + cost + buffer
	if projected > model.InputTokenLimit() {
		logger.Warn("Token limit would be exceeded",
			zap.Int("projected", projected),
			zap.Int("limit", model.InputTokenLimit()),
		)
		return false
	}
	return true
}

func (e *ExtractionEngine) transition(from, to ExtractionState, attempt int) ExtractionState {
	e.logger.Debug("Extraction state change",
		zap.String("from", string(from)),
		zap.String("to", string(to)),
		zap.Int("attempt", attempt),
	)
	return to
}

// decodeReceipt parses the model reply. notReceipt is true when the model
// reported the Invalid category.
func decodeReceipt(text string) (receipt *models.Receipt, notReceipt bool, err error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(cleanModelJSON(text))))
	dec.UseNumber()

	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		return nil, false, fmt.Errorf("invalid JSON: %w", err)
	}
	if fields == nil {
		return nil, false, fmt.Errorf("invalid JSON: expected an object")
	}

	if category, _ := fields["category"].(string); strings.TrimSpace(category) == string(models.CategoryInvalid) {
		return nil, true, nil
	}

	receipt, err = models.NewReceipt(fields)
	if err != nil {
		return nil, false, err
	}
	return receipt, false, nil
}
