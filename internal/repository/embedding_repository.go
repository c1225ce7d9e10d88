package repository

import (
	"context"
	"fmt"
	"time"

	"receipt-service/internal/models"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

type EmbeddingRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewEmbeddingRepository(db *pgxpool.Pool, logger *zap.Logger) *EmbeddingRepository {
	return &EmbeddingRepository{
		db:     db,
		logger: logger,
	}
}

func toVector(values []float32) pgtype.FlatArray[float32] {
	arr := make(pgtype.FlatArray[float32], 0, len(values))
	return append(arr, values...)
}

func buildInsertEmbedding(chunk *models.EmbeddingChunk) (string, []interface{}, error) {
	createdAt := chunk.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	return squirrel.Insert("receipt_embeddings").
		Columns("user_id", "receipt_id", "text_chunk", "embedding", "created_at").
		Values(chunk.UserID, chunk.ReceiptID, chunk.TextChunk, squirrel.Expr("?::float4[]::vector", toVector(chunk.Embedding)), createdAt).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
}

func (r *EmbeddingRepository) Create(ctx context.Context, chunk *models.EmbeddingChunk) error {
	sql, args, err := buildInsertEmbedding(chunk)
	if err != nil {
		return err
	}

	if _, err := r.db.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("failed to insert embedding: %w", err)
	}
	return nil
}

// buildSearchSimilar ranks chunks by cosine distance. The score maps the
// distance range [0, 2] onto [1, 0].
func buildSearchSimilar(userID string, vector []float32, limit int) (string, []interface{}, error) {
	vec := toVector(vector)
	return squirrel.Select("receipt_id", "text_chunk").
		Column(squirrel.Expr("1 - (embedding <=> ?::float4[]::vector) / 2 AS score", vec)).
		From("receipt_embeddings").
		Where(squirrel.Eq{"user_id": userID}).
		OrderByClause("embedding <=> ?::float4[]::vector", vec).
		Limit(uint64(limit)).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
}

// SearchSimilar returns the top limit chunks for the user. numCandidates
// sets the HNSW candidate list size for this query only.
func (r *EmbeddingRepository) SearchSimilar(ctx context.Context, userID string, vector []float32, numCandidates, limit int) ([]models.ChunkMatch, error) {
	sql, args, err := buildSearchSimilar(userID, vector, limit)
	if err != nil {
		return nil, err
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin search: %w", err)
	}
	defer tx.Rollback(ctx)

	if numCandidates > 0 {
		if _, err := tx.Exec(ctx, fmt.Sprintf("SET LOCAL hnsw.ef_search = %d", numCandidates)); err != nil {
			return nil, fmt.Errorf("failed to set candidate count: %w", err)
		}
	}

	rows, err := tx.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search embeddings: %w", err)
	}
	defer rows.Close()

	var matches []models.ChunkMatch
	for rows.Next() {
		var m models.ChunkMatch
		if err := rows.Scan(&m.ReceiptID, &m.TextChunk, &m.Score); err != nil {
			return nil, err
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return matches, tx.Commit(ctx)
}

func (r *EmbeddingRepository) DeleteByReceiptID(ctx context.Context, receiptID string) (int64, error) {
	sql, args, err := squirrel.Delete("receipt_embeddings").
		Where(squirrel.Eq{"receipt_id": receiptID}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return 0, err
	}

	tag, err := r.db.Exec(ctx, sql, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete embeddings: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *EmbeddingRepository) CountByReceiptID(ctx context.Context, receiptID string) (int64, error) {
	sql, args, err := squirrel.Select("COUNT(*)").
		From("receipt_embeddings").
		Where(squirrel.Eq{"receipt_id": receiptID}).
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
