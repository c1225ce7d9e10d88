package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"receipt-service/pkg/config"

	"go.uber.org/zap"
)

// ContextBuilder abstracts RetrievalService for the chat service.
type ContextBuilder interface {
	BuildContext(ctx context.Context, userID, query string) *RetrievalContext
}

type ChatService struct {
	retrieval   ContextBuilder
	dispatcher  *Dispatcher
	maxAttempts int
	logger      *zap.Logger
}

func NewChatService(retrieval ContextBuilder, dispatcher *Dispatcher, cfg *config.ExtractionConfig, logger *zap.Logger) *ChatService {
	return &ChatService{
		retrieval:   retrieval,
		dispatcher:  dispatcher,
		maxAttempts: max(cfg.MaxAttempts, 1),
		logger:      logger,
	}
}

// Answer is the chat reply. Answered is false when every provider failed and
// Response holds the apology text.
type Answer struct {
	Response string
	Answered bool
}

// Chat answers a question about the user's receipts using retrieved context.
func (s *ChatService) Chat(ctx context.Context, creds Credentials, userID, message string, history []HistoryEntry) (*Answer, error) {
	retrieved := s.retrieval.BuildContext(ctx, userID, message)
	prompt := buildChatPrompt(history, retrieved.Text, message)

	s.logger.Debug("Chat prompt assembled",
		zap.String("user_id", userID),
		zap.Int("context_length", len(retrieved.Text)),
		zap.Int("history", len(history)),
	)

	reply, err := Dispatch(ctx, s.dispatcher, creds, func(ctx context.Context, p Provider) (*string, error) {
		model, err := p.ChatModel(ctx)
		if err != nil {
			return nil, err
		}
		return s.generate(ctx, model, prompt)
	})
	if err != nil {
		return nil, err
	}
	if reply == nil {
		s.logger.Warn("No provider answered the chat request")
		return &Answer{Response: ChatApology}, nil
	}
	return &Answer{Response: *reply, Answered: true}, nil
}

// generate retries transient failures. A rejected key ends the loop so the
// dispatcher can record it.
func (s *ChatService) generate(ctx context.Context, model Model, prompt string) (*string, error) {
	var lastErr error
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		reply, err := model.Generate(ctx, []Message{{Role: RoleUser, Text: prompt}})
		if err != nil {
			var keyErr *APIKeyError
			if errors.As(err, &keyErr) {
				return nil, err
			}
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			s.logger.Warn("Chat generation failed", zap.Int("attempt", attempt), zap.Error(err))
			lastErr = err
			continue
		}

		text := strings.TrimSpace(reply.Text)
		if text == "" {
			lastErr = fmt.Errorf("empty response")
			continue
		}
		return &text, nil
	}
	return nil, fmt.Errorf("chat failed after %d attempts: %w", s.maxAttempts, lastErr)
}
