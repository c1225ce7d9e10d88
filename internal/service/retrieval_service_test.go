package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"receipt-service/internal/models"
	"receipt-service/pkg/config"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func ragConfig() *config.RAGConfig {
	return &config.RAGConfig{NumCandidates: 50, TopK: 10, MaxContextChars: 24000}
}

func foodReceipts() []models.StoredReceipt {
	return []models.StoredReceipt{
		{ID: "r-1", UserID: "u", MerchantName: "Cafe", Date: "2024-01-02", TotalCost: "20.00", Category: "Food"},
		{ID: "r-2", UserID: "u", MerchantName: "Bakery", Date: "2024-01-03", TotalCost: "22.00", Category: "Food",
			ItemizedList: []models.StoredItem{{ItemName: "Bun", ItemCost: "2.00", ItemQuantity: 3}}},
	}
}

func TestDetectCategory(t *testing.T) {
	tests := []struct {
		query string
		want  models.Category
		found bool
	}{
		{"How much did I spend on food?", models.CategoryFood, true},
		{"taxi rides last month", models.CategoryTransport, true},
		{"what about my RENT", models.CategoryHousing, true},
		{"movie tickets", models.CategoryLeisure, true},
		{"tuition fees", models.CategoryOthers, true},
		// food is checked before transport
		{"lunch on the train", models.CategoryFood, true},
		{"show my latest receipt", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			got, found := DetectCategory(tt.query)
			assert.Equal(t, tt.found, found)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBuildContextPrefersServerTotals(t *testing.T) {
	receipts := &fakeReceipts{
		receipts: foodReceipts(),
		totals:   map[string]decimal.Decimal{"Food": decimal.RequireFromString("42.50")},
	}
	svc := NewRetrievalService(&staticEmbedder{vector: []float32{1}}, &fakeChunks{}, receipts, ragConfig(), zap.NewNop())

	rc := svc.BuildContext(context.Background(), "u", "How much did I spend on food?")

	assert.Equal(t, models.CategoryFood, rc.Category)
	require.Len(t, rc.Aggregates, 1)
	assert.True(t, rc.Aggregates[0].Corrected)
	assert.Equal(t, "42.50", rc.Aggregates[0].Total.StringFixed(2))
	assert.Contains(t, rc.Text, "- Food: $42.50 across 2 receipt(s)")
	assert.Contains(t, rc.Text, "Food: $42.50 (merchants: Bakery, Cafe)")
	assert.NotContains(t, rc.Text, "$42.00")
	assert.True(t, strings.HasPrefix(rc.Text, "AUTHORITATIVE TOTALS"))

	require.Len(t, receipts.filters, 1)
	assert.Equal(t, "Food", receipts.filters[0].Category)
	assert.Equal(t, "u", receipts.filters[0].UserID)
}

func TestBuildContextMergesPaddedAndBlankCategories(t *testing.T) {
	receipts := &fakeReceipts{
		receipts: []models.StoredReceipt{
			{ID: "r-1", MerchantName: "Cafe", TotalCost: "10.00", Category: " Food"},
			{ID: "r-2", MerchantName: "Bakery", TotalCost: "5.00", Category: "Food"},
			{ID: "r-3", MerchantName: "Kiosk", TotalCost: "3.00", Category: ""},
		},
		totals: map[string]decimal.Decimal{
			" Food": decimal.RequireFromString("10.00"),
			"Food":  decimal.RequireFromString("5.00"),
			"":      decimal.RequireFromString("3.00"),
		},
	}
	svc := NewRetrievalService(&staticEmbedder{vector: []float32{1}}, &fakeChunks{}, receipts, ragConfig(), zap.NewNop())

	rc := svc.BuildContext(context.Background(), "u", "How much did I spend on food?")

	require.Len(t, rc.Aggregates, 2)
	byName := map[string]CategoryAggregate{}
	for _, agg := range rc.Aggregates {
		byName[agg.Name] = agg
	}
	food := byName["Food"]
	assert.Equal(t, "15.00", food.Total.StringFixed(2))
	assert.False(t, food.Corrected)
	assert.Len(t, food.Receipts, 2)
	assert.Equal(t, "3.00", byName[uncategorized].Total.StringFixed(2))
	assert.False(t, byName[uncategorized].Corrected)
}

func TestBuildContextKeepsClientTotalWithinTolerance(t *testing.T) {
	receipts := &fakeReceipts{
		receipts: foodReceipts(),
		totals:   map[string]decimal.Decimal{"Food": decimal.RequireFromString("42.01")},
	}
	svc := NewRetrievalService(&staticEmbedder{vector: []float32{1}}, &fakeChunks{}, receipts, ragConfig(), zap.NewNop())

	rc := svc.BuildContext(context.Background(), "u", "food spending")

	require.Len(t, rc.Aggregates, 1)
	assert.False(t, rc.Aggregates[0].Corrected)
	assert.Contains(t, rc.Text, "- Food: $42.00 across 2 receipt(s)")
}

func TestBuildContextUsesMatchedReceiptsWithoutCategory(t *testing.T) {
	chunks := &fakeChunks{matches: []models.ChunkMatch{
		{ReceiptID: "r-1", TextChunk: "Merchant: Cafe [receipt r-1]", Score: 0.91234},
		{ReceiptID: "r-1", TextChunk: "Receipt from Cafe", Score: 0.8},
		{ReceiptID: "r-2", TextChunk: "Merchant: Bakery [receipt r-2]", Score: 0.7},
	}}
	receipts := &fakeReceipts{receipts: foodReceipts()}
	svc := NewRetrievalService(&staticEmbedder{vector: []float32{1}}, chunks, receipts, ragConfig(), zap.NewNop())

	rc := svc.BuildContext(context.Background(), "u", "show my latest receipt")

	require.Len(t, receipts.filters, 1)
	assert.Equal(t, []string{"r-1", "r-2"}, receipts.filters[0].IDs)
	assert.Contains(t, rc.Text, "- Merchant: Cafe [receipt r-1] (Relevance score: 0.9123)")
	assert.Contains(t, rc.Text, "Receipt ID: r-2")

	// layers appear in a fixed order
	totals := strings.Index(rc.Text, "AUTHORITATIVE TOTALS")
	matched := strings.Index(rc.Text, "Relevance score")
	breakdown := strings.Index(rc.Text, "Spending breakdown by category")
	details := strings.Index(rc.Text, "Receipt details")
	assert.True(t, totals < matched && matched < breakdown && breakdown < details)
}

func TestBuildContextEmbeddingFailure(t *testing.T) {
	receipts := &fakeReceipts{}
	svc := NewRetrievalService(&staticEmbedder{err: errors.New("quota")}, &fakeChunks{}, receipts, ragConfig(), zap.NewNop())

	rc := svc.BuildContext(context.Background(), "u", "food")

	assert.Equal(t, NoContextAvailable, rc.Text)
	assert.Empty(t, receipts.filters)
}

func TestBuildContextNothingFound(t *testing.T) {
	svc := NewRetrievalService(&staticEmbedder{vector: []float32{1}}, &fakeChunks{}, &fakeReceipts{}, ragConfig(), zap.NewNop())

	rc := svc.BuildContext(context.Background(), "u", "anything at all")

	assert.Equal(t, noMatchingContext, rc.Text)
}

func TestBuildContextSurvivesStoreErrors(t *testing.T) {
	receipts := &fakeReceipts{receipts: foodReceipts(), totalsErr: errors.New("timeout")}
	chunks := &fakeChunks{err: errors.New("index missing")}
	svc := NewRetrievalService(&staticEmbedder{vector: []float32{1}}, chunks, receipts, ragConfig(), zap.NewNop())

	rc := svc.BuildContext(context.Background(), "u", "food")

	assert.Contains(t, rc.Text, "- Food: $42.00 across 2 receipt(s)")
}

func TestLimitContext(t *testing.T) {
	text := "line one\nline two\nline three"

	assert.Equal(t, text, limitContext(text, 0))
	assert.Equal(t, text, limitContext(text, len(text)))

	got := limitContext(text+"\n"+strings.Repeat("x", 100), 60)
	assert.True(t, strings.HasSuffix(got, "[context truncated]"))
	assert.LessOrEqual(t, len([]rune(got)), 60)
	assert.NotContains(t, got, "xxx")
}
