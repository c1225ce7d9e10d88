package postgres

import (
	"context"
	"fmt"

	"receipt-service/pkg/config"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

func NewPool(ctx context.Context, cfg *config.DatabaseConfig, logger *zap.Logger) (*pgxpool.Pool, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode,
	)

	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("Database connection established",
		zap.String("host", cfg.Host),
		zap.String("database", cfg.DBName),
	)

	return pool, nil
}

// SchemaStatements returns the DDL for the receipt and embedding tables.
// The vector column is sized to the embedding model in use.
func SchemaStatements(dimensions int, indexName string) []string {
	return []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		`CREATE TABLE IF NOT EXISTS receipts (
			id            TEXT PRIMARY KEY,
			user_id       TEXT NOT NULL,
			merchant_name TEXT NOT NULL,
			date          TEXT,
			total_cost    TEXT,
			category      TEXT,
			itemized_list JSONB NOT NULL DEFAULT '[]'::jsonb,
			created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS receipts_user_category_idx ON receipts (user_id, category)`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS receipt_embeddings (
			id         BIGSERIAL PRIMARY KEY,
			user_id    TEXT NOT NULL,
			receipt_id TEXT NOT NULL,
			text_chunk TEXT NOT NULL,
			embedding  vector(%d) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`, dimensions),
		`CREATE INDEX IF NOT EXISTS receipt_embeddings_receipt_idx ON receipt_embeddings (receipt_id)`,
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON receipt_embeddings USING hnsw (embedding vector_cosine_ops)`, indexName),
	}
}

// EnsureSchema creates missing tables and indexes.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool, cfg *config.RAGConfig, logger *zap.Logger) error {
	for _, stmt := range SchemaStatements(cfg.EmbeddingDimensions, cfg.VectorIndexName) {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	logger.Info("Database schema ready", zap.Int("embedding_dimensions", cfg.EmbeddingDimensions))
	return nil
}
