package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const embeddingKeyPrefix = "embedding:"

// CachedEmbedder memoizes vectors in Redis. Cache failures fall through to
// the wrapped embedder.
type CachedEmbedder struct {
	inner  Embedder
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func NewCachedEmbedder(inner Embedder, client *redis.Client, ttl time.Duration, logger *zap.Logger) *CachedEmbedder {
	return &CachedEmbedder{
		inner:  inner,
		client: client,
		ttl:    ttl,
		logger: logger,
	}
}

func (c *CachedEmbedder) cacheKey(text string) string {
	sum := sha256.Sum256([]byte(c.inner.ModelName() + "\x00" + text))
	return embeddingKeyPrefix + hex.EncodeToString(sum[:])
}

func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	key := c.cacheKey(text)

	cached, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var vector []float32
		if jerr := json.Unmarshal(cached, &vector); jerr == nil && len(vector) > 0 {
			return vector, nil
		}
		c.logger.Warn("Discarding corrupt cached embedding", zap.String("key", key))
	case !errors.Is(err, redis.Nil):
		c.logger.Warn("Embedding cache lookup failed", zap.Error(err))
	}

	vector, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	if payload, err := json.Marshal(vector); err == nil {
		if err := c.client.Set(ctx, key, payload, c.ttl).Err(); err != nil {
			c.logger.Warn("Failed to cache embedding", zap.Error(err))
		}
	}
	return vector, nil
}

func (c *CachedEmbedder) ModelName() string { return c.inner.ModelName() }
