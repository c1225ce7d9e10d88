package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestEmbedReceiptStoresEveryChunk(t *testing.T) {
	store := &fakeEmbeddingStore{}
	svc := NewEmbeddingService(&staticEmbedder{vector: []float32{0.5, 0.5}}, store, zap.NewNop())

	res, err := svc.EmbedReceipt(context.Background(), "user-1", "r-1", sampleStored())
	require.NoError(t, err)

	assert.Equal(t, 8, res.Total)
	assert.Equal(t, 8, res.Stored)
	assert.False(t, res.Partial())
	for _, c := range store.chunks {
		assert.Equal(t, "user-1", c.UserID)
		assert.Equal(t, "r-1", c.ReceiptID)
		assert.Equal(t, []float32{0.5, 0.5}, c.Embedding)
	}
}

func TestEmbedReceiptPartial(t *testing.T) {
	store := &fakeEmbeddingStore{failAt: map[int]bool{0: true}}
	svc := NewEmbeddingService(&staticEmbedder{vector: []float32{1}}, store, zap.NewNop())

	res, err := svc.EmbedReceipt(context.Background(), "user-1", "r-1", sampleStored())
	require.NoError(t, err)
	assert.True(t, res.Partial())
	assert.Equal(t, 7, res.Stored)
}

func TestEmbedReceiptNothingStored(t *testing.T) {
	svc := NewEmbeddingService(&staticEmbedder{err: errors.New("quota")}, &fakeEmbeddingStore{}, zap.NewNop())

	res, err := svc.EmbedReceipt(context.Background(), "user-1", "r-1", sampleStored())
	require.Error(t, err)
	assert.Equal(t, 0, res.Stored)
}

func TestReembedReplacesChunks(t *testing.T) {
	store := &fakeEmbeddingStore{}
	svc := NewEmbeddingService(&staticEmbedder{vector: []float32{1}}, store, zap.NewNop())
	receipt := sampleStored()

	_, err := svc.EmbedReceipt(context.Background(), receipt.UserID, receipt.ID, receipt)
	require.NoError(t, err)
	res, err := svc.Reembed(context.Background(), receipt)
	require.NoError(t, err)

	assert.Equal(t, []string{"r-1"}, store.deleted)
	assert.Len(t, store.chunks, res.Total)
}

func TestDeleteReceipt(t *testing.T) {
	store := &fakeEmbeddingStore{}
	svc := NewEmbeddingService(&staticEmbedder{vector: []float32{1}}, store, zap.NewNop())
	_, err := svc.EmbedReceipt(context.Background(), "u", "r-1", sampleStored())
	require.NoError(t, err)

	n, err := svc.DeleteReceipt(context.Background(), "r-1")
	require.NoError(t, err)
	assert.Equal(t, int64(8), n)

	n, err = svc.DeleteReceipt(context.Background(), "r-1")
	require.NoError(t, err)
	assert.Zero(t, n)
}
