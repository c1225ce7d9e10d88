package service

import (
	"context"
	"fmt"
	"strings"

	"receipt-service/pkg/config"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

// NewConfiguredEmbedder builds the server-side embedder named by
// RAG.EmbeddingProvider. The returned func releases its client.
func NewConfiguredEmbedder(ctx context.Context, cfg *config.Config, logger *zap.Logger) (Embedder, func(), error) {
	switch strings.ToLower(cfg.RAG.EmbeddingProvider) {
	case "gemini":
		if cfg.Gemini.APIKey == "" {
			return nil, nil, fmt.Errorf("GEMINI_API_KEY is required for gemini embeddings")
		}
		client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.Gemini.APIKey))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create Gemini client: %w", err)
		}
		logger.Info("Using Gemini embeddings", zap.String("model", cfg.Gemini.EmbeddingModel))
		return NewGeminiEmbedder(client, &cfg.Gemini), func() { client.Close() }, nil
	case "gigachat":
		if cfg.GigaChat.APIKey == "" {
			return nil, nil, fmt.Errorf("GIGACHAT_API_KEY is required for gigachat embeddings")
		}
		logger.Info("Using GigaChat embeddings", zap.String("model", cfg.GigaChat.EmbeddingModel))
		return NewGigaChatEmbedder(&cfg.GigaChat, logger), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown embedding provider %q", cfg.RAG.EmbeddingProvider)
	}
}
