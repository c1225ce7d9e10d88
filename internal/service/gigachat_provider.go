package service

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"receipt-service/pkg/config"

	"github.com/Role1776/gigago"
	"go.uber.org/zap"
)

// GigaChatProvider serves structured calls over REST and free-form chat
// through the gigago client.
type GigaChatProvider struct {
	api         *gigaChatAPI
	cfg         *config.GigaChatConfig
	apiKey      string
	tokenBuffer int
	logger      *zap.Logger

	chatClient *gigago.Client
}

// NewGigaChatFactory validates the authorization key by requesting an
// access token before returning the provider.
func NewGigaChatFactory(cfg *config.GigaChatConfig, extraction *config.ExtractionConfig, logger *zap.Logger) ProviderFactory {
	return func(ctx context.Context, apiKey string) (Provider, error) {
		api := newGigaChatAPI(cfg, apiKey, logger)
		if _, err := api.token(ctx); err != nil {
			return nil, err
		}
		if cfg.InsecureSkipVerify {
			logger.Warn("GigaChat TLS certificate verification is disabled")
		}
		return &GigaChatProvider{
			api:         api,
			cfg:         cfg,
			apiKey:      apiKey,
			tokenBuffer: extraction.TokenBuffer,
			logger:      logger.With(zap.String("provider", ProviderGigaChat)),
		}, nil
	}
}

func (p *GigaChatProvider) Name() string { return ProviderGigaChat }

func (p *GigaChatProvider) ExtractionModel(ctx context.Context) (Model, error) {
	return &gigaChatModel{
		api:         p.api,
		name:        p.cfg.Model,
		system:      extractionSystemInstruction,
		temperature: 0.1,
		topP:        0.1,
		maxTokens:   p.tokenBuffer,
		limit:       p.cfg.InputTokenLimit,
		logger:      p.logger,
	}, nil
}

func (p *GigaChatProvider) ReviewModel(ctx context.Context) (Model, error) {
	return &gigaChatModel{
		api:         p.api,
		name:        p.cfg.Model,
		system:      reviewSystemInstruction,
		temperature: 1.0,
		topP:        1.0,
		maxTokens:   p.tokenBuffer,
		limit:       p.cfg.InputTokenLimit,
		logger:      p.logger,
	}, nil
}

func (p *GigaChatProvider) ChatModel(ctx context.Context) (Model, error) {
	opts := []gigago.Option{
		gigago.WithCustomScope(p.cfg.Scope),
	}
	if p.cfg.InsecureSkipVerify {
		opts = append(opts, gigago.WithCustomInsecureSkipVerify(true))
	}

	client, err := gigago.NewClient(ctx, p.apiKey, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GigaChat client: %w", err)
	}
	p.chatClient = client

	model := client.GenerativeModel(p.cfg.Model)
	model.SystemInstruction = chatSystemInstruction
	model.Temperature = 0.7

	return &gigagoChatModel{
		model: model,
		api:   p.api,
		name:  p.cfg.Model,
		limit: p.cfg.InputTokenLimit,
	}, nil
}

func (p *GigaChatProvider) Close() error {
	if p.chatClient != nil {
		p.chatClient.Close()
	}
	return nil
}

// gigaChatModel keeps uploaded attachment ids so repeated turns of the same
// conversation do not upload the images again.
type gigaChatModel struct {
	api         *gigaChatAPI
	name        string
	system      string
	temperature float64
	topP        float64
	maxTokens   int
	limit       int
	logger      *zap.Logger

	mu    sync.Mutex
	files map[string]string
}

func (m *gigaChatModel) Generate(ctx context.Context, history []Message) (*Reply, error) {
	if len(history) == 0 {
		return nil, fmt.Errorf("empty conversation")
	}

	messages := make([]gigaChatMessage, 0, len(history)+1)
	if m.system != "" {
		messages = append(messages, gigaChatMessage{Role: "system", Content: m.system})
	}
	for i, msg := range history {
		out := gigaChatMessage{Role: "user", Content: msg.Text}
		if msg.Role == RoleModel {
			out.Role = "assistant"
		}
		for j, img := range msg.Images {
			id, err := m.attachment(ctx, fmt.Sprintf("%d/%d", i, j), img)
			if err != nil {
				return nil, err
			}
			out.Attachments = append(out.Attachments, id)
		}
		messages = append(messages, out)
	}

	return m.api.chatCompletion(ctx, &gigaChatCompletionRequest{
		Model:             m.name,
		Messages:          messages,
		Temperature:       m.temperature,
		TopP:              m.topP,
		MaxTokens:         m.maxTokens,
		RepetitionPenalty: 1.0,
	})
}

func (m *gigaChatModel) attachment(ctx context.Context, key string, img Image) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if id, ok := m.files[key]; ok {
		return id, nil
	}
	name := "page-" + strings.ReplaceAll(key, "/", "-") + extensionFor(img.MIMEType)
	id, err := m.api.uploadFile(ctx, name, img.MIMEType, img.Data)
	if err != nil {
		return "", fmt.Errorf("failed to upload image: %w", err)
	}
	if m.files == nil {
		m.files = make(map[string]string)
	}
	m.files[key] = id
	return id, nil
}

func (m *gigaChatModel) CountTokens(ctx context.Context, text string) (int, error) {
	return m.api.countTokens(ctx, m.name, text)
}

func (m *gigaChatModel) InputTokenLimit() int { return m.limit }

// gigagoChatModel sends the conversation as a single user turn.
type gigagoChatModel struct {
	model *gigago.GenerativeModel
	api   *gigaChatAPI
	name  string
	limit int
}

func (m *gigagoChatModel) Generate(ctx context.Context, history []Message) (*Reply, error) {
	parts := make([]string, 0, len(history))
	for _, msg := range history {
		parts = append(parts, msg.Text)
	}

	messages := []gigago.Message{
		{Role: gigago.RoleUser, Content: strings.Join(parts, "\n\n")},
	}
	resp, err := m.model.Generate(ctx, messages)
	if err != nil {
		return nil, fmt.Errorf("failed to generate response: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no response from GigaChat")
	}
	return &Reply{Text: strings.TrimSpace(resp.Choices[0].Message.Content)}, nil
}

func (m *gigagoChatModel) CountTokens(ctx context.Context, text string) (int, error) {
	return m.api.countTokens(ctx, m.name, text)
}

func (m *gigagoChatModel) InputTokenLimit() int { return m.limit }

// GigaChatEmbedder embeds text with the server-side GigaChat key.
type GigaChatEmbedder struct {
	api   *gigaChatAPI
	model string
}

func NewGigaChatEmbedder(cfg *config.GigaChatConfig, logger *zap.Logger) *GigaChatEmbedder {
	return &GigaChatEmbedder{
		api:   newGigaChatAPI(cfg, cfg.APIKey, logger),
		model: cfg.EmbeddingModel,
	}
}

func (e *GigaChatEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return e.api.embed(ctx, e.model, sanitizeUTF8(text))
}

func (e *GigaChatEmbedder) ModelName() string { return "gigachat/" + e.model }

func extensionFor(mimeType string) string {
	switch mimeType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	default:
		return ""
	}
}
