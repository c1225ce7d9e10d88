package service

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"receipt-service/pkg/config"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	ProviderGigaChat = "GIGACHAT"
	// tokenRefreshMargin renews the access token this long before it expires.
	tokenRefreshMargin = time.Minute
	defaultTokenTTL    = 30 * time.Minute
)

// gigaChatAPI is a thin REST client for the GigaChat API.
// Documentation: https://developers.sber.ru/docs/ru/gigachat/api/main
type gigaChatAPI struct {
	cfg        *config.GigaChatConfig
	apiKey     string
	httpClient *http.Client
	logger     *zap.Logger

	mu          sync.Mutex
	accessToken string
	expiresAt   time.Time
}

func newGigaChatAPI(cfg *config.GigaChatConfig, apiKey string, logger *zap.Logger) *gigaChatAPI {
	httpClient := &http.Client{Timeout: 2 * time.Minute}
	if cfg.InsecureSkipVerify {
		httpClient.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
	}
	return &gigaChatAPI{
		cfg:        cfg,
		apiKey:     apiKey,
		httpClient: httpClient,
		logger:     logger,
	}
}

// token returns a cached access token, fetching a new one when needed.
// A rejected authorization key is reported as *APIKeyError.
func (a *gigaChatAPI) token(ctx context.Context) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.accessToken != "" && time.Now().Add(tokenRefreshMargin).Before(a.expiresAt) {
		return a.accessToken, nil
	}

	rqUID := uuid.New().String()
	form := url.Values{}
	form.Set("scope", a.cfg.Scope)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.OAuthURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to create OAuth request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("RqUID", rqUID)
	// The authorization key is already Base64-encoded.
	req.Header.Set("Authorization", "Basic "+a.apiKey)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to get access token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		a.logger.Error("OAuth request failed",
			zap.Int("status", resp.StatusCode),
			zap.String("response", truncate(string(body), 300)),
			zap.String("rq_uid", rqUID),
		)
		err := fmt.Errorf("OAuth failed with status %d: %s", resp.StatusCode, string(body))
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusBadRequest {
			return "", &APIKeyError{Provider: ProviderGigaChat, Err: err}
		}
		return "", err
	}

	var oauthResp struct {
		AccessToken string `json:"access_token"`
		ExpiresAt   int64  `json:"expires_at"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&oauthResp); err != nil {
		return "", fmt.Errorf("failed to decode OAuth response: %w", err)
	}
	if oauthResp.AccessToken == "" {
		return "", fmt.Errorf("empty access token in OAuth response")
	}

	a.accessToken = oauthResp.AccessToken
	a.expiresAt = time.Now().Add(defaultTokenTTL)
	if oauthResp.ExpiresAt > 0 {
		a.expiresAt = time.UnixMilli(oauthResp.ExpiresAt)
	}
	a.logger.Debug("Access token obtained", zap.Time("expires_at", a.expiresAt))
	return a.accessToken, nil
}

func (a *gigaChatAPI) invalidate() {
	a.mu.Lock()
	a.accessToken = ""
	a.mu.Unlock()
}

// do sends an authorized request. On 401 the token is refreshed and the
// request is sent once more.
func (a *gigaChatAPI) do(ctx context.Context, method, path, contentType string, body []byte, out interface{}) error {
	for attempt := 0; attempt < 2; attempt++ {
		token, err := a.token(ctx)
		if err != nil {
			return err
		}

		req, err := http.NewRequestWithContext(ctx, method, a.cfg.BaseURL+path, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", contentType)
		req.Header.Set("Accept", "application/json")
		req.Header.Set("Authorization", "Bearer "+token)

		resp, err := a.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("request to %s failed: %w", path, err)
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return fmt.Errorf("failed to read response: %w", err)
		}

		if resp.StatusCode == http.StatusUnauthorized && attempt == 0 {
			a.logger.Warn("Access token rejected, refreshing", zap.String("path", path))
			a.invalidate()
			continue
		}
		if resp.StatusCode == http.StatusRequestEntityTooLarge {
			return fmt.Errorf("file too large (413): %s", string(respBody))
		}
		if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
			return fmt.Errorf("%s failed with status %d: %s", path, resp.StatusCode, string(respBody))
		}

		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("failed to decode %s response: %w", path, err)
		}
		return nil
	}
	return fmt.Errorf("%s: unauthorized after token refresh", path)
}

func (a *gigaChatAPI) postJSON(ctx context.Context, path string, in, out interface{}) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}
	return a.do(ctx, http.MethodPost, path, "application/json", body, out)
}

// uploadFile stores an image for use as a chat attachment and returns its id.
func (a *gigaChatAPI) uploadFile(ctx context.Context, fileName, mimeType string, data []byte) (string, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	// "general" makes the file usable in generation requests.
	if err := writer.WriteField("purpose", "general"); err != nil {
		return "", fmt.Errorf("failed to write purpose field: %w", err)
	}
	part, err := writer.CreatePart(map[string][]string{
		"Content-Type":        {mimeType},
		"Content-Disposition": {fmt.Sprintf(`form-data; name="file"; filename="%s"`, fileName)},
	})
	if err != nil {
		return "", fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return "", fmt.Errorf("failed to copy file: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("failed to close writer: %w", err)
	}

	var uploadResp struct {
		ID string `json:"id"`
	}
	if err := a.do(ctx, http.MethodPost, "/files", writer.FormDataContentType(), body.Bytes(), &uploadResp); err != nil {
		return "", err
	}
	if uploadResp.ID == "" {
		return "", fmt.Errorf("upload returned no file id")
	}

	a.logger.Debug("File uploaded to GigaChat", zap.String("file_id", uploadResp.ID))
	return uploadResp.ID, nil
}

type gigaChatMessage struct {
	Role        string   `json:"role"`
	Content     string   `json:"content"`
	Attachments []string `json:"attachments,omitempty"`
}

type gigaChatCompletionRequest struct {
	Model             string            `json:"model"`
	Messages          []gigaChatMessage `json:"messages"`
	Temperature       float64           `json:"temperature"`
	TopP              float64           `json:"top_p"`
	MaxTokens         int               `json:"max_tokens,omitempty"`
	Stream            bool              `json:"stream"`
	RepetitionPenalty float64           `json:"repetition_penalty"`
}

type gigaChatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

func (a *gigaChatAPI) chatCompletion(ctx context.Context, req *gigaChatCompletionRequest) (*Reply, error) {
	var resp gigaChatCompletionResponse
	if err := a.postJSON(ctx, "/chat/completions", req, &resp); err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no choices in GigaChat response")
	}
	return &Reply{
		Text:        strings.TrimSpace(resp.Choices[0].Message.Content),
		TotalTokens: resp.Usage.TotalTokens,
	}, nil
}

func (a *gigaChatAPI) countTokens(ctx context.Context, model, text string) (int, error) {
	var resp []struct {
		Tokens     int `json:"tokens"`
		Characters int `json:"characters"`
	}
	err := a.postJSON(ctx, "/tokens/count", map[string]interface{}{
		"model": model,
		"input": []string{text},
	}, &resp)
	if err != nil {
		return 0, err
	}
	if len(resp) == 0 {
		return 0, fmt.Errorf("empty token count response")
	}
	return resp[0].Tokens, nil
}

func (a *gigaChatAPI) embed(ctx context.Context, model, text string) ([]float32, error) {
	var resp struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		} `json:"data"`
	}
	err := a.postJSON(ctx, "/embeddings", map[string]interface{}{
		"model": model,
		"input": []string{text},
	}, &resp)
	if err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("empty embedding response")
	}
	return resp.Data[0].Embedding, nil
}
