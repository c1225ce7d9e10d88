package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("EXTRACTION_MAX_ATTEMPTS", "")
	t.Setenv("RAG_NUM_CANDIDATES", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.Extraction.MaxAttempts)
	assert.Equal(t, 2048, cfg.Extraction.TokenBuffer)
	assert.Equal(t, 50, cfg.RAG.NumCandidates)
	assert.Equal(t, 10, cfg.RAG.TopK)
	assert.Equal(t, "vector_index", cfg.RAG.VectorIndexName)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("EXTRACTION_MAX_ATTEMPTS", "6")
	t.Setenv("GIGACHAT_INSECURE_SKIP_VERIFY", "false")
	t.Setenv("EMBEDDING_CACHE_TTL", "90s")
	t.Setenv("SERVER_READ_TIMEOUT", "15")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 6, cfg.Extraction.MaxAttempts)
	assert.False(t, cfg.GigaChat.InsecureSkipVerify)
	assert.Equal(t, 90*time.Second, cfg.Redis.CacheTTL)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
}

func TestGetEnvAsIntFallsBackOnGarbage(t *testing.T) {
	t.Setenv("SOME_INT", "twelve")
	assert.Equal(t, 3, getEnvAsInt("SOME_INT", 3))
}
