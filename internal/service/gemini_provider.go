package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"receipt-service/internal/models"
	"receipt-service/pkg/config"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const ProviderGemini = "GEMINI"

// GeminiProvider owns one genai client for the lifetime of a request.
type GeminiProvider struct {
	client      *genai.Client
	cfg         *config.GeminiConfig
	tokenLimit  int
	tokenBuffer int
	logger      *zap.Logger
}

// NewGeminiFactory checks the key by fetching model metadata, which also
// yields the input token limit.
func NewGeminiFactory(cfg *config.GeminiConfig, extraction *config.ExtractionConfig, logger *zap.Logger) ProviderFactory {
	return func(ctx context.Context, apiKey string) (Provider, error) {
		client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
		if err != nil {
			return nil, geminiError(err)
		}

		info, err := client.GenerativeModel(cfg.Model).Info(ctx)
		if err != nil {
			client.Close()
			return nil, geminiError(err)
		}

		return &GeminiProvider{
			client:      client,
			cfg:         cfg,
			tokenLimit:  int(info.InputTokenLimit),
			tokenBuffer: extraction.TokenBuffer,
			logger:      logger.With(zap.String("provider", ProviderGemini)),
		}, nil
	}
}

// geminiError reports a rejected API key as *APIKeyError.
func geminiError(err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusBadRequest && strings.Contains(apiErr.Message, "API key") {
		return &APIKeyError{Provider: ProviderGemini, Err: err}
	}
	msg := err.Error()
	if strings.Contains(msg, "API key not valid") || strings.Contains(msg, "API_KEY_INVALID") {
		return &APIKeyError{Provider: ProviderGemini, Err: err}
	}
	return fmt.Errorf("gemini: %w", err)
}

func (p *GeminiProvider) Name() string { return ProviderGemini }

func (p *GeminiProvider) ExtractionModel(ctx context.Context) (Model, error) {
	model := p.client.GenerativeModel(p.cfg.Model)
	model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(extractionSystemInstruction)}}
	model.SetTemperature(0.1)
	model.SetTopP(0.1)
	model.SetTopK(1)
	model.SetCandidateCount(1)
	model.SetMaxOutputTokens(int32(p.tokenBuffer))
	model.ResponseMIMEType = "application/json"
	model.ResponseSchema = receiptSchema()
	model.SafetySettings = permissiveSafety()
	return &geminiModel{model: model, limit: p.tokenLimit}, nil
}

func (p *GeminiProvider) ReviewModel(ctx context.Context) (Model, error) {
	model := p.client.GenerativeModel(p.cfg.Model)
	model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(reviewSystemInstruction)}}
	model.SetTemperature(1.0)
	model.SetTopP(1.0)
	model.SetTopK(40)
	model.SetMaxOutputTokens(int32(p.tokenBuffer))
	model.ResponseMIMEType = "application/json"
	model.ResponseSchema = reviewSchema()
	model.SafetySettings = permissiveSafety()
	return &geminiModel{model: model, limit: p.tokenLimit}, nil
}

func (p *GeminiProvider) ChatModel(ctx context.Context) (Model, error) {
	model := p.client.GenerativeModel(p.cfg.Model)
	model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(chatSystemInstruction)}}
	model.SetTemperature(0.7)
	return &geminiModel{model: model, limit: p.tokenLimit}, nil
}

func (p *GeminiProvider) Close() error {
	return p.client.Close()
}

type geminiModel struct {
	model *genai.GenerativeModel
	limit int
}

func (m *geminiModel) Generate(ctx context.Context, history []Message) (*Reply, error) {
	if len(history) == 0 {
		return nil, fmt.Errorf("empty conversation")
	}
	contents := toGeminiContents(history)

	cs := m.model.StartChat()
	cs.History = contents[:len(contents)-1]
	resp, err := cs.SendMessage(ctx, contents[len(contents)-1].Parts...)
	if err != nil {
		return nil, geminiError(err)
	}

	text, err := responseText(resp)
	if err != nil {
		return nil, err
	}
	reply := &Reply{Text: text}
	if resp.UsageMetadata != nil {
		reply.TotalTokens = int(resp.UsageMetadata.TotalTokenCount)
	}
	return reply, nil
}

func (m *geminiModel) CountTokens(ctx context.Context, text string) (int, error) {
	resp, err := m.model.CountTokens(ctx, genai.Text(text))
	if err != nil {
		return 0, geminiError(err)
	}
	return int(resp.TotalTokens), nil
}

func (m *geminiModel) InputTokenLimit() int { return m.limit }

func toGeminiContents(history []Message) []*genai.Content {
	contents := make([]*genai.Content, 0, len(history))
	for _, msg := range history {
		parts := make([]genai.Part, 0, len(msg.Images)+1)
		for _, img := range msg.Images {
			parts = append(parts, genai.Blob{MIMEType: img.MIMEType, Data: img.Data})
		}
		if msg.Text != "" {
			parts = append(parts, genai.Text(msg.Text))
		}
		role := "user"
		if msg.Role == RoleModel {
			role = "model"
		}
		contents = append(contents, &genai.Content{Role: role, Parts: parts})
	}
	return contents
}

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("no response from Gemini")
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}
	return strings.TrimSpace(b.String()), nil
}

func receiptSchema() *genai.Schema {
	categories := make([]string, 0, len(models.AllCategories))
	for _, c := range models.AllCategories {
		categories = append(categories, string(c))
	}

	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"merchant_name": {Type: genai.TypeString, Description: "The name of the merchant"},
			"total_cost":    {Type: genai.TypeString, Description: "The total cost of the receipt"},
			"category":      {Type: genai.TypeString, Enum: categories, Description: "The category of spending"},
			"date":          {Type: genai.TypeString, Description: "The date of the receipt"},
			"itemized_list": {
				Type: genai.TypeArray,
				Items: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"item_name":     {Type: genai.TypeString},
						"item_cost":     {Type: genai.TypeString},
						"item_quantity": {Type: genai.TypeInteger},
					},
					Required: []string{"item_name", "item_cost", "item_quantity"},
				},
			},
		},
		Required: []string{"merchant_name", "total_cost", "category", "date", "itemized_list"},
	}
}

func reviewSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"status":   {Type: genai.TypeBoolean},
			"insights": {Type: genai.TypeString},
		},
		Required: []string{"status", "insights"},
	}
}

func permissiveSafety() []*genai.SafetySetting {
	categories := []genai.HarmCategory{
		genai.HarmCategoryHarassment,
		genai.HarmCategoryHateSpeech,
		genai.HarmCategorySexuallyExplicit,
		genai.HarmCategoryDangerousContent,
	}
	settings := make([]*genai.SafetySetting, 0, len(categories))
	for _, c := range categories {
		settings = append(settings, &genai.SafetySetting{Category: c, Threshold: genai.HarmBlockNone})
	}
	return settings
}

// GeminiEmbedder embeds text with the server-side Gemini key.
type GeminiEmbedder struct {
	model *genai.EmbeddingModel
	name  string
}

func NewGeminiEmbedder(client *genai.Client, cfg *config.GeminiConfig) *GeminiEmbedder {
	return &GeminiEmbedder{
		model: client.EmbeddingModel(cfg.EmbeddingModel),
		name:  cfg.EmbeddingModel,
	}
}

func (e *GeminiEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	res, err := e.model.EmbedContent(ctx, genai.Text(sanitizeUTF8(text)))
	if err != nil {
		return nil, geminiError(err)
	}
	if res.Embedding == nil || len(res.Embedding.Values) == 0 {
		return nil, fmt.Errorf("empty embedding from Gemini")
	}
	return res.Embedding.Values, nil
}

func (e *GeminiEmbedder) ModelName() string { return "gemini/" + e.name }
