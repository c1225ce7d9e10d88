package service

import (
	"context"
	"errors"
	"sync"

	"receipt-service/internal/models"
	"receipt-service/internal/repository"

	"github.com/shopspring/decimal"
)

const validReceiptJSON = `{"merchant_name":"FairPrice","date":"15/01/2024","total_cost":"$12.50","category":"Food",` +
	`"itemized_list":[{"item_name":"Milk","item_cost":"4.50","item_quantity":2},{"item_name":"Bread","item_cost":"3.50","item_quantity":1}]}`

// scriptedModel replays replies in order and repeats the last one.
type scriptedModel struct {
	mu       sync.Mutex
	replies  []string
	errs     []error
	usage    int
	limit    int
	countErr error
	calls    int
	seen     [][]Message
}

func (m *scriptedModel) Generate(ctx context.Context, history []Message) (*Reply, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := make([]Message, len(history))
	copy(snapshot, history)
	m.seen = append(m.seen, snapshot)

	i := m.calls
	m.calls++
	if i < len(m.errs) && m.errs[i] != nil {
		return nil, m.errs[i]
	}
	if len(m.replies) == 0 {
		return &Reply{TotalTokens: m.usage}, nil
	}
	if i >= len(m.replies) {
		i = len(m.replies) - 1
	}
	return &Reply{Text: m.replies[i], TotalTokens: m.usage}, nil
}

func (m *scriptedModel) CountTokens(ctx context.Context, text string) (int, error) {
	if m.countErr != nil {
		return 0, m.countErr
	}
	return len(text) / 4, nil
}

func (m *scriptedModel) InputTokenLimit() int {
	if m.limit == 0 {
		return 1 << 20
	}
	return m.limit
}

type fakeProvider struct {
	name   string
	model  Model
	closed bool
}

func (p *fakeProvider) Name() string                                       { return p.name }
func (p *fakeProvider) ExtractionModel(ctx context.Context) (Model, error) { return p.model, nil }
func (p *fakeProvider) ReviewModel(ctx context.Context) (Model, error)     { return p.model, nil }
func (p *fakeProvider) ChatModel(ctx context.Context) (Model, error)       { return p.model, nil }
func (p *fakeProvider) Close() error                                       { p.closed = true; return nil }

// providerSpec registers a provider whose factory rejects keys starting with "bad".
func providerSpec(name string, model Model, built *[]string) ProviderSpec {
	return ProviderSpec{
		Name: name,
		Factory: func(ctx context.Context, apiKey string) (Provider, error) {
			if built != nil {
				*built = append(*built, name)
			}
			if len(apiKey) >= 3 && apiKey[:3] == "bad" {
				return nil, &APIKeyError{Provider: name, Err: errors.New("API key not valid")}
			}
			return &fakeProvider{name: name, model: model}, nil
		},
	}
}

type staticEmbedder struct {
	vector []float32
	err    error
	calls  int
}

func (e *staticEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	return e.vector, nil
}

func (e *staticEmbedder) ModelName() string { return "static" }

type fakeChunks struct {
	matches []models.ChunkMatch
	err     error
}

func (f *fakeChunks) SearchSimilar(ctx context.Context, userID string, vector []float32, numCandidates, limit int) ([]models.ChunkMatch, error) {
	return f.matches, f.err
}

type fakeReceipts struct {
	receipts  []models.StoredReceipt
	totals    map[string]decimal.Decimal
	findErr   error
	totalsErr error
	filters   []repository.ReceiptFilter
	created   []*models.StoredReceipt
}

func (f *fakeReceipts) Find(ctx context.Context, filter repository.ReceiptFilter) ([]models.StoredReceipt, error) {
	f.filters = append(f.filters, filter)
	return f.receipts, f.findErr
}

func (f *fakeReceipts) CategoryTotals(ctx context.Context, filter repository.ReceiptFilter) (map[string]decimal.Decimal, error) {
	return f.totals, f.totalsErr
}

func (f *fakeReceipts) Create(ctx context.Context, receipt *models.StoredReceipt) error {
	f.created = append(f.created, receipt)
	return nil
}

type fakeEmbeddingStore struct {
	chunks  []*models.EmbeddingChunk
	failAt  map[int]bool
	deleted []string
	calls   int
}

func (s *fakeEmbeddingStore) Create(ctx context.Context, chunk *models.EmbeddingChunk) error {
	i := s.calls
	s.calls++
	if s.failAt[i] {
		return errors.New("insert failed")
	}
	s.chunks = append(s.chunks, chunk)
	return nil
}

func (s *fakeEmbeddingStore) DeleteByReceiptID(ctx context.Context, receiptID string) (int64, error) {
	s.deleted = append(s.deleted, receiptID)
	var kept []*models.EmbeddingChunk
	var n int64
	for _, c := range s.chunks {
		if c.ReceiptID == receiptID {
			n++
			continue
		}
		kept = append(kept, c)
	}
	s.chunks = kept
	return n, nil
}
