package search

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aryan-at-ul/Browser-history-as-chats-and-trends/internal/store"
)

func newTestMetadata(t *testing.T) *store.SQLiteStore {
	t.Helper()
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestResultCacheRoundTrip(t *testing.T) {
	cache := NewResultCache(newTestMetadata(t), true)
	ctx := context.Background()

	_, ok := cache.Get(ctx, "unseen query")
	assert.False(t, ok)

	results := []*ScoredResult{
		{
			Chunk: &store.ChunkRecord{
				URL:           "https://a.com",
				ChunkIndex:    2,
				ChunkText:     "cached text",
				LastVisitTime: "2026-08-30 10:00:00",
			},
			SearchType:    TypeHybrid,
			KeywordScore:  1.0,
			CombinedScore: 0.95,
		},
	}
	cache.Put(ctx, "my query", results)

	got, ok := cache.Get(ctx, "my query")
	require.True(t, ok)
	require.Len(t, got, 1)
	assert.Equal(t, "https://a.com", got[0].Chunk.URL)
	assert.Equal(t, 2, got[0].Chunk.ChunkIndex)
	assert.Equal(t, TypeHybrid, got[0].SearchType)
	assert.InDelta(t, 0.95, got[0].CombinedScore, 1e-9)
}

func TestResultCacheKeyedOnRawQuery(t *testing.T) {
	cache := NewResultCache(newTestMetadata(t), true)
	ctx := context.Background()

	cache.Put(ctx, "Rust async", []*ScoredResult{})

	// Case differs, so the hash differs.
	_, ok := cache.Get(ctx, "rust async")
	assert.False(t, ok)

	_, ok = cache.Get(ctx, "Rust async")
	assert.True(t, ok)
}

func TestResultCacheDisabled(t *testing.T) {
	cache := NewResultCache(newTestMetadata(t), false)
	ctx := context.Background()

	cache.Put(ctx, "query", []*ScoredResult{{Chunk: &store.ChunkRecord{URL: "https://a.com"}}})
	_, ok := cache.Get(ctx, "query")
	assert.False(t, ok)
}

func TestQueryHashStable(t *testing.T) {
	assert.Equal(t, QueryHash("abc"), QueryHash("abc"))
	assert.NotEqual(t, QueryHash("abc"), QueryHash("abd"))
	assert.Len(t, QueryHash("abc"), 64)
}
