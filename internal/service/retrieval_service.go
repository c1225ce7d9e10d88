package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"receipt-service/internal/models"
	"receipt-service/internal/repository"
	"receipt-service/pkg/config"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	NoContextAvailable = "No relevant context found."
	noMatchingContext  = "No relevant context found in your receipts for this query."
	uncategorized      = "Uncategorized"
)

// reconcileTolerance is the largest client/server difference accepted as equal.
var reconcileTolerance = decimal.NewFromFloat(0.01)

// Embedder turns text into a fixed-length vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	ModelName() string
}

type ChunkSearcher interface {
	SearchSimilar(ctx context.Context, userID string, vector []float32, numCandidates, limit int) ([]models.ChunkMatch, error)
}

type ReceiptReader interface {
	Find(ctx context.Context, filter repository.ReceiptFilter) ([]models.StoredReceipt, error)
	CategoryTotals(ctx context.Context, filter repository.ReceiptFilter) (map[string]decimal.Decimal, error)
}

type categoryKeywords struct {
	Name     string
	Category models.Category
	Keywords []string
}

// categoryTable is scanned in order; the first entry with a keyword found
// in the query wins.
var categoryTable = []categoryKeywords{
	{"food", models.CategoryFood, []string{"food", "grocer", "restaurant", "dining", "meal", "lunch", "dinner", "breakfast", "coffee", "cafe", "snack", "drink"}},
	{"transport", models.CategoryTransport, []string{"transport", "taxi", "grab", "uber", "train", "mrt", "fuel", "petrol", "parking", "commute", "travel", "flight"}},
	{"housing", models.CategoryHousing, []string{"housing", "rent", "utilit", "electricity", "mortgage", "furniture", "household"}},
	{"clothing", models.CategoryClothing, []string{"clothing", "clothes", "apparel", "shoes", "fashion", "shirt", "dress"}},
	{"healthcare", models.CategoryHealthcare, []string{"health", "medical", "doctor", "clinic", "pharmacy", "medicine", "dental", "hospital"}},
	{"entertainment", models.CategoryLeisure, []string{"entertainment", "leisure", "movie", "cinema", "concert", "game", "hobby", "fun"}},
	{"education", models.CategoryOthers, []string{"education", "tuition", "course", "book", "school", "class"}},
}

// DetectCategory returns the first category whose keywords appear in the query.
func DetectCategory(query string) (models.Category, bool) {
	q := strings.ToLower(query)
	for _, entry := range categoryTable {
		for _, kw := range entry.Keywords {
			if strings.Contains(q, kw) {
				return entry.Category, true
			}
		}
	}
	return "", false
}

// CategoryAggregate is recomputed on every query.
type CategoryAggregate struct {
	Name      string
	Total     decimal.Decimal
	Merchants []string
	Receipts  []models.StoredReceipt
	// Corrected is true when the server-side figure replaced the client sum.
	Corrected bool
}

// RetrievalContext is the assembled context and the facts it was built from.
type RetrievalContext struct {
	Text       string
	Category   models.Category
	Matches    []models.ChunkMatch
	Receipts   []models.StoredReceipt
	Aggregates []CategoryAggregate
}

// RetrievalService assembles the receipt context for a chat query.
type RetrievalService struct {
	embedder Embedder
	chunks   ChunkSearcher
	receipts ReceiptReader
	config   *config.RAGConfig
	logger   *zap.Logger
}

func NewRetrievalService(embedder Embedder, chunks ChunkSearcher, receipts ReceiptReader, cfg *config.RAGConfig, logger *zap.Logger) *RetrievalService {
	return &RetrievalService{
		embedder: embedder,
		chunks:   chunks,
		receipts: receipts,
		config:   cfg,
		logger:   logger,
	}
}

// BuildContext never fails: store and embedding errors shrink the context instead.
func (s *RetrievalService) BuildContext(ctx context.Context, userID, query string) *RetrievalContext {
	vector, err := s.embedder.Embed(ctx, query)
	if err != nil {
		s.logger.Error("Failed to generate query embedding", zap.Error(err))
		return &RetrievalContext{Text: NoContextAvailable}
	}

	matches, err := s.chunks.SearchSimilar(ctx, userID, vector, s.config.NumCandidates, s.config.TopK)
	if err != nil {
		s.logger.Warn("Vector search failed, continuing without matched chunks", zap.Error(err))
		matches = nil
	}
	s.logger.Info("Vector search completed", zap.String("user_id", userID), zap.Int("matches", len(matches)))

	result := &RetrievalContext{Matches: matches}

	filter, ok := s.receiptFilter(userID, query, matches, result)
	if ok {
		receipts, err := s.receipts.Find(ctx, filter)
		if err != nil {
			s.logger.Warn("Failed to fetch receipts", zap.Error(err))
		} else {
			result.Receipts = receipts
			result.Aggregates = s.aggregate(ctx, filter, receipts)
		}
	}

	if len(result.Matches) == 0 && len(result.Receipts) == 0 {
		result.Text = noMatchingContext
		return result
	}

	result.Text = limitContext(renderContext(result), s.config.MaxContextChars)
	return result
}

// receiptFilter picks exhaustive category retrieval when the query names a
// category, otherwise the receipts behind the matched chunks.
func (s *RetrievalService) receiptFilter(userID, query string, matches []models.ChunkMatch, result *RetrievalContext) (repository.ReceiptFilter, bool) {
	if category, found := DetectCategory(query); found {
		result.Category = category
		s.logger.Info("Category detected, fetching all receipts in category", zap.String("category", string(category)))
		return repository.ReceiptFilter{UserID: userID, Category: string(category)}, true
	}

	ids := make([]string, 0, len(matches))
	seen := make(map[string]bool, len(matches))
	for _, m := range matches {
		if m.ReceiptID == "" || seen[m.ReceiptID] {
			continue
		}
		seen[m.ReceiptID] = true
		ids = append(ids, m.ReceiptID)
	}
	if len(ids) == 0 {
		return repository.ReceiptFilter{}, false
	}
	return repository.ReceiptFilter{UserID: userID, IDs: ids}, true
}

// aggregate sums totals per category and reconciles them with the database.
func (s *RetrievalService) aggregate(ctx context.Context, filter repository.ReceiptFilter, receipts []models.StoredReceipt) []CategoryAggregate {
	byName := make(map[string]*CategoryAggregate)
	var order []string
	for _, r := range receipts {
		name := categoryName(r.Category)
		agg, ok := byName[name]
		if !ok {
			agg = &CategoryAggregate{Name: name, Total: decimal.Zero}
			byName[name] = agg
			order = append(order, name)
		}
		agg.Total = agg.Total.Add(r.TotalAmount())
		agg.Receipts = append(agg.Receipts, r)
		if r.MerchantName != "" && !containsString(agg.Merchants, r.MerchantName) {
			agg.Merchants = append(agg.Merchants, r.MerchantName)
		}
	}

	serverTotals, err := s.receipts.CategoryTotals(ctx, filter)
	if err != nil {
		s.logger.Warn("Server-side aggregation failed, using client totals", zap.Error(err))
		serverTotals = nil
	}
	for key, server := range normalizeTotals(serverTotals) {
		agg, ok := byName[key]
		if !ok {
			byName[key] = &CategoryAggregate{Name: key, Total: server, Corrected: true}
			order = append(order, key)
			continue
		}
		if agg.Total.Sub(server).Abs().GreaterThan(reconcileTolerance) {
			s.logger.Warn("Client total disagrees with aggregation, using aggregation",
				zap.String("category", key),
				zap.String("client", agg.Total.StringFixed(2)),
				zap.String("server", server.StringFixed(2)),
			)
			agg.Total = server
			agg.Corrected = true
		}
	}

	sort.Strings(order)
	out := make([]CategoryAggregate, 0, len(order))
	for _, name := range order {
		agg := byName[name]
		sort.Strings(agg.Merchants)
		out = append(out, *agg)
	}
	return out
}

func categoryName(raw string) string {
	if name := strings.TrimSpace(raw); name != "" {
		return name
	}
	return uncategorized
}

// normalizeTotals merges server rows whose categories differ only by padding.
func normalizeTotals(totals map[string]decimal.Decimal) map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, len(totals))
	for name, total := range totals {
		key := categoryName(name)
		out[key] = out[key].Add(total)
	}
	return out
}

func renderContext(rc *RetrievalContext) string {
	var b strings.Builder

	if len(rc.Aggregates) > 0 {
		b.WriteString("AUTHORITATIVE TOTALS (use these figures verbatim; do not recompute them):\n")
		grand := decimal.Zero
		for _, agg := range rc.Aggregates {
			fmt.Fprintf(&b, "- %s: $%s across %d receipt(s)\n", agg.Name, models.FormatAmount(agg.Total), len(agg.Receipts))
			grand = grand.Add(agg.Total)
		}
		if rc.Category != "" {
			fmt.Fprintf(&b, "The question is about %s spending. These are ALL of the user's %s receipts.\n", rc.Category, rc.Category)
		}
		fmt.Fprintf(&b, "Total across these receipts: $%s\n\n", models.FormatAmount(grand))
	}

	if len(rc.Matches) > 0 {
		b.WriteString("Here's some potentially relevant context from your receipts:\n")
		for _, m := range rc.Matches {
			fmt.Fprintf(&b, "- %s (Relevance score: %.4f)\n", m.TextChunk, m.Score)
		}
		b.WriteString("\n")
	}

	if len(rc.Aggregates) > 0 {
		b.WriteString("Spending breakdown by category:\n")
		for _, agg := range rc.Aggregates {
			fmt.Fprintf(&b, "%s: $%s", agg.Name, models.FormatAmount(agg.Total))
			if len(agg.Merchants) > 0 {
				fmt.Fprintf(&b, " (merchants: %s)", strings.Join(agg.Merchants, ", "))
			}
			b.WriteString("\n")
			for _, r := range agg.Receipts {
				fmt.Fprintf(&b, "  - %s on %s: $%s\n", r.MerchantName, r.Date, models.FormatAmount(r.TotalAmount()))
				for _, it := range r.ItemizedList {
					fmt.Fprintf(&b, "      * %s: %d x $%s\n", it.ItemName, it.ItemQuantity, it.ItemCost)
				}
			}
		}
		b.WriteString("\n")
	}

	if len(rc.Receipts) > 0 {
		b.WriteString("Receipt details:\n")
		for _, r := range rc.Receipts {
			fmt.Fprintf(&b, "Receipt ID: %s\n", r.ID)
			fmt.Fprintf(&b, "  Merchant: %s\n", r.MerchantName)
			fmt.Fprintf(&b, "  Date: %s\n", r.Date)
			fmt.Fprintf(&b, "  Category: %s\n", r.Category)
			fmt.Fprintf(&b, "  Total Cost: %s\n", r.TotalCost)
			b.WriteString("  Itemized List:\n")
			for _, it := range r.ItemizedList {
				fmt.Fprintf(&b, "    - %s: %d x $%s\n", it.ItemName, it.ItemQuantity, it.ItemCost)
			}
		}
	}

	return strings.TrimSpace(b.String())
}

// limitContext cuts the context at a line boundary so it fits maxChars runes.
// Later sections are lost first.
func limitContext(text string, maxChars int) string {
	if maxChars <= 0 || utf8.RuneCountInString(text) <= maxChars {
		return text
	}
	const marker = "\n[context truncated]"
	runes := []rune(text)
	cut := string(runes[:max(maxChars-utf8.RuneCountInString(marker), 0)])
	if i := strings.LastIndex(cut, "\n"); i > 0 {
		cut = cut[:i]
	}
	return cut + marker
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
