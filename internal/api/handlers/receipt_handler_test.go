package handlers

import (
	"errors"
	"io"
	"net/http"
	"testing"

	"receipt-service/internal/dto"
	"receipt-service/internal/models"
	"receipt-service/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func receiptApp(extractor *fakeExtractor, reviewer *fakeReviewer) *fiber.App {
	h := NewReceiptHandler(extractor, reviewer, zap.NewNop())
	app := fiber.New()
	app.Post("/upload", h.Upload)
	app.Post("/review", h.Review)
	return app
}

var uploadFields = map[string]string{
	"defaultModel": "GEMINI",
	"geminiKey":    "key",
	"gigachatKey":  "UNSET",
}

func TestUploadReturnsReceipt(t *testing.T) {
	extractor := &fakeExtractor{receipt: sampleReceipt(t)}
	app := receiptApp(extractor, &fakeReviewer{})

	status, body := do(t, app, multipartRequest(t, "/upload", "receipt.png", []byte("img"), uploadFields))

	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "FairPrice", body["merchant_name"])
	assert.Equal(t, "12.50", body["total_cost"])
	assert.Equal(t, "15/01/2024", body["date"])
	assert.NotContains(t, body, "receipt_id")
	assert.Equal(t, "GEMINI", extractor.gotCreds.DefaultModel)
	assert.Equal(t, "UNSET", extractor.gotCreds.Keys[service.ProviderGigaChat])
	require.Len(t, extractor.gotFiles, 1)
	assert.Equal(t, "receipt.png", extractor.gotFiles[0].Name)
}

func TestUploadStoresForUser(t *testing.T) {
	extractor := &fakeExtractor{receipt: sampleReceipt(t)}
	app := receiptApp(extractor, &fakeReviewer{})

	fields := map[string]string{"userId": "u-1"}
	for k, v := range uploadFields {
		fields[k] = v
	}
	status, body := do(t, app, multipartRequest(t, "/upload", "receipt.jpg", []byte("img"), fields))

	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "r-1", body["receipt_id"])
	assert.Equal(t, "u-1", extractor.savedUser)
}

func TestUploadValidation(t *testing.T) {
	tests := []struct {
		name     string
		fileName string
		fields   map[string]string
		want     string
	}{
		{name: "no file", fields: uploadFields, want: "No file received"},
		{name: "no default model", fileName: "r.png", fields: map[string]string{"geminiKey": "k"}, want: errMissingDefaultModel},
		{name: "no keys", fileName: "r.png", fields: map[string]string{"defaultModel": "GEMINI", "geminiKey": "UNSET"}, want: errMissingKeys},
		{name: "bad extension", fileName: "r.gif", fields: uploadFields, want: "Invalid file type received"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := receiptApp(&fakeExtractor{receipt: sampleReceipt(t)}, &fakeReviewer{})
			status, body := do(t, app, multipartRequest(t, "/upload", tt.fileName, []byte("x"), tt.fields))
			assert.Equal(t, http.StatusBadRequest, status)
			assert.Equal(t, tt.want, body["error"])
		})
	}
}

func TestUploadNotAReceipt(t *testing.T) {
	app := receiptApp(&fakeExtractor{}, &fakeReviewer{})

	status, body := do(t, app, multipartRequest(t, "/upload", "r.pdf", []byte("x"), uploadFields))

	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Image is not a receipt or error parsing receipt", body["error"])
}

func TestUploadRejectedCredentials(t *testing.T) {
	extractor := &fakeExtractor{err: &service.CredentialsError{Providers: []string{"GEMINI", "GIGACHAT"}}}
	app := receiptApp(extractor, &fakeReviewer{})

	status, body := do(t, app, multipartRequest(t, "/upload", "r.png", []byte("x"), uploadFields))

	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "Invalid API keys for [GEMINI, GIGACHAT]", body["error"])
}

func TestUploadInternalError(t *testing.T) {
	app := receiptApp(&fakeExtractor{err: errors.New("boom")}, &fakeReviewer{})

	status, _ := do(t, app, multipartRequest(t, "/upload", "r.png", []byte("x"), uploadFields))

	assert.Equal(t, http.StatusInternalServerError, status)
}

func TestReviewReturnsInsightsString(t *testing.T) {
	reviewer := &fakeReviewer{insights: "Spend less on coffee."}
	app := receiptApp(&fakeExtractor{}, reviewer)

	req := jsonRequest(t, http.MethodPost, "/review", dto.ReviewRequest{
		APIKeys:  dto.APIKeys{DefaultModel: "GIGACHAT", GigaChatKey: "key"},
		Receipts: []models.StoredReceipt{{MerchantName: "Cafe", TotalCost: "4.20"}},
	})
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `"Spend less on coffee."`, string(raw))
	require.Len(t, reviewer.got, 1)
	assert.Equal(t, "Cafe", reviewer.got[0].MerchantName)
}

func TestReviewValidation(t *testing.T) {
	app := receiptApp(&fakeExtractor{}, &fakeReviewer{})

	status, body := do(t, app, jsonRequest(t, http.MethodPost, "/review", dto.ReviewRequest{
		APIKeys: dto.APIKeys{DefaultModel: "GEMINI", GeminiKey: "k"},
	}))
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Missing receipts parameter", body["error"])

	status, body = do(t, app, jsonRequest(t, http.MethodPost, "/review", dto.ReviewRequest{
		APIKeys: dto.APIKeys{GeminiKey: "k"},
	}))
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, errMissingDefaultModel, body["error"])
}
