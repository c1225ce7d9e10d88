package service

import (
	"context"
	"errors"
	"testing"

	"receipt-service/internal/models"
	"receipt-service/pkg/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newReviewService(specs ...ProviderSpec) *ReviewService {
	return NewReviewService(NewDispatcher(specs, zap.NewNop()), &config.ExtractionConfig{MaxAttempts: 4, TokenBuffer: 2048}, zap.NewNop())
}

func TestReviewReturnsInsights(t *testing.T) {
	model := &scriptedModel{replies: []string{`{"status": true, "insights": "Cook at home more."}`}}
	svc := newReviewService(providerSpec("GEMINI", model, nil))

	got, err := svc.Review(context.Background(), Credentials{Keys: map[string]string{"GEMINI": "k"}}, []models.StoredReceipt{*sampleStored()}, "")
	require.NoError(t, err)
	assert.Equal(t, "Cook at home more.", got)

	require.Len(t, model.seen, 1)
	assert.Contains(t, model.seen[0][0].Text, "Merchant: FairPrice")
}

func TestReviewRetriesOnStatusFalse(t *testing.T) {
	model := &scriptedModel{replies: []string{
		`{"status": false, "insights": ""}`,
		`{"status": true, "insights": "Fewer snacks."}`,
	}}
	svc := newReviewService(providerSpec("GEMINI", model, nil))

	got, err := svc.Review(context.Background(), Credentials{Keys: map[string]string{"GEMINI": "k"}}, nil, "")
	require.NoError(t, err)
	assert.Equal(t, "Fewer snacks.", got)
	require.Len(t, model.seen, 2)
	assert.Equal(t, reviewErrorResponse, model.seen[1][2].Text)
}

func TestReviewFallsBackToAdvice(t *testing.T) {
	model := &scriptedModel{replies: []string{`{"status": false, "insights": ""}`}}
	svc := newReviewService(providerSpec("GEMINI", model, nil))

	got, err := svc.Review(context.Background(), Credentials{Keys: map[string]string{"GEMINI": "k"}}, nil, "")
	require.NoError(t, err)
	assert.Equal(t, FallbackInsights, got)
	assert.Equal(t, 4, model.calls)
}

func TestReviewSurfacesCredentialErrors(t *testing.T) {
	svc := newReviewService(providerSpec("GEMINI", nil, nil), providerSpec("GIGACHAT", nil, nil))

	_, err := svc.Review(context.Background(), Credentials{Keys: map[string]string{"GEMINI": "bad", "GIGACHAT": "bad"}}, nil, "")

	var credErr *CredentialsError
	require.True(t, errors.As(err, &credErr))
	assert.Equal(t, []string{"GEMINI", "GIGACHAT"}, credErr.Providers)
}

func TestFormatReceipts(t *testing.T) {
	got := FormatReceipts([]models.StoredReceipt{*sampleStored()})

	assert.Equal(t, "Merchant: FairPrice\nDate: 2024-01-15\nCategory: Food\nTotal Cost: 12.50\nItemized List:\n"+
		"  - Milk: 2 x $4.50\n  - Bread: 1 x $3.50", got)
}
