package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"receipt-service/internal/models"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var receiptColumns = []string{"id", "user_id", "merchant_name", "date", "total_cost", "category", "itemized_list", "created_at"}

// totalCostNumeric coerces the free-text total_cost column. Values that are
// not plain decimals count as zero.
const totalCostNumeric = `CASE WHEN btrim(replace(total_cost, '$', '')) ~ '^-{0,1}[0-9]+(\.[0-9]+){0,1}$' ` +
	`THEN btrim(replace(total_cost, '$', ''))::numeric ELSE 0 END`

// ReceiptFilter narrows receipt queries. Zero fields are not applied; a
// non-nil empty IDs matches nothing.
type ReceiptFilter struct {
	UserID   string
	Category string
	IDs      []string
}

func (f ReceiptFilter) where() squirrel.Eq {
	eq := squirrel.Eq{}
	if f.UserID != "" {
		eq["user_id"] = f.UserID
	}
	if f.Category != "" {
		eq["btrim(category)"] = strings.TrimSpace(f.Category)
	}
	if f.IDs != nil {
		eq["id"] = f.IDs
	}
	return eq
}

// apply adds the filter to q. An empty filter adds no WHERE clause.
func (f ReceiptFilter) apply(q squirrel.SelectBuilder) squirrel.SelectBuilder {
	if eq := f.where(); len(eq) > 0 {
		return q.Where(eq)
	}
	return q
}

type ReceiptRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewReceiptRepository(db *pgxpool.Pool, logger *zap.Logger) *ReceiptRepository {
	return &ReceiptRepository{
		db:     db,
		logger: logger,
	}
}

func buildInsertReceipt(r *models.StoredReceipt) (string, []interface{}, error) {
	items, err := json.Marshal(r.ItemizedList)
	if err != nil {
		return "", nil, fmt.Errorf("failed to encode itemized list: %w", err)
	}
	if r.ItemizedList == nil {
		items = []byte("[]")
	}
	createdAt := r.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	return squirrel.Insert("receipts").
		Columns(receiptColumns...).
		Values(r.ID, r.UserID, r.MerchantName, r.Date, string(r.TotalCost), r.Category, string(items), createdAt).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
}

func (r *ReceiptRepository) Create(ctx context.Context, receipt *models.StoredReceipt) error {
	sql, args, err := buildInsertReceipt(receipt)
	if err != nil {
		return err
	}

	_, err = r.db.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("failed to insert receipt: %w", err)
	}
	return nil
}

func buildFindReceipts(f ReceiptFilter) (string, []interface{}, error) {
	q := squirrel.Select(receiptColumns...).From("receipts")
	return f.apply(q).
		OrderBy("date DESC", "created_at DESC").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
}

// Find returns every receipt matching the filter. There is no page limit.
func (r *ReceiptRepository) Find(ctx context.Context, f ReceiptFilter) ([]models.StoredReceipt, error) {
	sql, args, err := buildFindReceipts(f)
	if err != nil {
		return nil, err
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query receipts: %w", err)
	}
	defer rows.Close()

	var receipts []models.StoredReceipt
	for rows.Next() {
		var (
			rec       models.StoredReceipt
			date      *string
			totalCost *string
			category  *string
			items     []byte
		)
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.MerchantName, &date, &totalCost, &category, &items, &rec.CreatedAt); err != nil {
			return nil, err
		}
		rec.Date = deref(date)
		rec.TotalCost = models.LooseString(deref(totalCost))
		rec.Category = deref(category)
		if len(items) > 0 {
			if err := json.Unmarshal(items, &rec.ItemizedList); err != nil {
				r.logger.Warn("Skipping malformed itemized list", zap.String("receipt_id", rec.ID), zap.Error(err))
			}
		}
		receipts = append(receipts, rec)
	}

	return receipts, rows.Err()
}

// categoryKey folds NULL, blank and padded categories the way the client groups them.
const categoryKey = "COALESCE(btrim(category), '')"

func buildCategoryTotals(f ReceiptFilter) (string, []interface{}, error) {
	q := squirrel.Select(categoryKey, fmt.Sprintf("SUM(%s)::text", totalCostNumeric)).From("receipts")
	return f.apply(q).
		GroupBy(categoryKey).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
}

// CategoryTotals sums total_cost per category inside the database.
func (r *ReceiptRepository) CategoryTotals(ctx context.Context, f ReceiptFilter) (map[string]decimal.Decimal, error) {
	sql, args, err := buildCategoryTotals(f)
	if err != nil {
		return nil, err
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate receipts: %w", err)
	}
	defer rows.Close()

	totals := make(map[string]decimal.Decimal)
	for rows.Next() {
		var category, sum string
		if err := rows.Scan(&category, &sum); err != nil {
			return nil, err
		}
		amount, err := decimal.NewFromString(sum)
		if err != nil {
			return nil, fmt.Errorf("unexpected aggregate %q: %w", sum, err)
		}
		totals[category] = totals[category].Add(amount)
	}

	return totals, rows.Err()
}

func (r *ReceiptRepository) Count(ctx context.Context, f ReceiptFilter) (int64, error) {
	sql, args, err := f.apply(squirrel.Select("COUNT(*)").From("receipts")).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return 0, err
	}

	var count int64
	if err := r.db.QueryRow(ctx, sql, args...).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// DistinctUserIDs lists every user with at least one receipt.
func (r *ReceiptRepository) DistinctUserIDs(ctx context.Context) ([]string, error) {
	sql, args, err := squirrel.Select("DISTINCT user_id").
		From("receipts").
		OrderBy("user_id").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, err
	}
	return r.scanStrings(ctx, sql, args)
}

func (r *ReceiptRepository) scanStrings(ctx context.Context, sql string, args []interface{}) ([]string, error) {
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
