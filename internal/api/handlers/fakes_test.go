package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"receipt-service/internal/models"
	"receipt-service/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
)

func sampleReceipt(t *testing.T) *models.Receipt {
	t.Helper()
	r, err := models.NewReceipt(map[string]any{
		"merchant_name": "FairPrice",
		"date":          "15/01/2024",
		"total_cost":    "$12.50",
		"category":      "Food",
		"itemized_list": []any{
			map[string]any{"item_name": "Milk", "item_cost": "4.50", "item_quantity": 2},
		},
	})
	require.NoError(t, err)
	return r
}

type fakeExtractor struct {
	receipt   *models.Receipt
	err       error
	saveErr   error
	gotCreds  service.Credentials
	gotFiles  []service.UploadedFile
	savedUser string
}

func (f *fakeExtractor) Extract(_ context.Context, creds service.Credentials, files []service.UploadedFile) (*models.Receipt, error) {
	f.gotCreds = creds
	f.gotFiles = files
	return f.receipt, f.err
}

func (f *fakeExtractor) Save(_ context.Context, userID string, receipt *models.Receipt) (*models.StoredReceipt, error) {
	f.savedUser = userID
	if f.saveErr != nil {
		return nil, f.saveErr
	}
	return receipt.ToRecord("r-1", userID), nil
}

type fakeReviewer struct {
	insights string
	err      error
	got      []models.StoredReceipt
}

func (f *fakeReviewer) Review(_ context.Context, _ service.Credentials, receipts []models.StoredReceipt, _ string) (string, error) {
	f.got = receipts
	return f.insights, f.err
}

type fakeChat struct {
	answer     *service.Answer
	err        error
	gotHistory []service.HistoryEntry
}

func (f *fakeChat) Chat(_ context.Context, _ service.Credentials, _, _ string, history []service.HistoryEntry) (*service.Answer, error) {
	f.gotHistory = history
	return f.answer, f.err
}

type fakeIndexer struct {
	result    service.EmbedResult
	err       error
	deleted   int64
	deleteErr error
}

func (f *fakeIndexer) EmbedReceipt(context.Context, string, string, *models.StoredReceipt) (service.EmbedResult, error) {
	return f.result, f.err
}

func (f *fakeIndexer) DeleteReceipt(context.Context, string) (int64, error) {
	return f.deleted, f.deleteErr
}

func jsonRequest(t *testing.T, method, target string, body any) *http.Request {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(method, target, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func multipartRequest(t *testing.T, target, fileName string, data []byte, fields map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if fileName != "" {
		part, err := w.CreateFormFile("file", fileName)
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func do(t *testing.T, app *fiber.App, req *http.Request) (int, map[string]any) {
	t.Helper()
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var out map[string]any
	_ = json.Unmarshal(raw, &out)
	return resp.StatusCode, out
}
