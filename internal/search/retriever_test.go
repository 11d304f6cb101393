package search

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aryan-at-ul/Browser-history-as-chats-and-trends/internal/embed"
	"github.com/aryan-at-ul/Browser-history-as-chats-and-trends/internal/store"
)

// testEngine wires a retriever over real stores with the static embedder.
type testEngine struct {
	metadata  *store.SQLiteStore
	index     *store.HNSWStore
	embedder  embed.Embedder
	processor *Processor
	retriever *Retriever
}

func newTestEngine(t *testing.T, cacheEnabled bool) *testEngine {
	t.Helper()

	metadata := newTestMetadata(t)
	index, err := store.NewHNSWStore(t.TempDir()+"/vectors.hnsw", store.VectorStoreConfig{Dimensions: 32})
	require.NoError(t, err)

	embedder := embed.NewCachedEmbedder(embed.NewStaticEmbedder(32), 100)
	processor := NewProcessor(embedder)

	fusion := NewFusion(0, 0)
	retriever, err := NewRetriever(
		NewVectorSearcher(index, metadata),
		NewKeywordSearcher(metadata),
		NewResultCache(metadata, cacheEnabled),
		fusion,
		10,
	)
	require.NoError(t, err)

	return &testEngine{
		metadata:  metadata,
		index:     index,
		embedder:  embedder,
		processor: processor,
		retriever: retriever,
	}
}

// indexPage stores a page with chunks in both the metadata store and the
// vector index.
func (e *testEngine) indexPage(t *testing.T, url, title, domain, visit string, chunks ...string) {
	t.Helper()
	ctx := context.Background()

	hid, err := e.metadata.SaveHistory(ctx, &store.HistoryEntry{
		URL: url, Title: title, Domain: domain, VisitCount: 1, LastVisitTime: visit,
	})
	require.NoError(t, err)

	cid, err := e.metadata.SaveContent(ctx, hid, "")
	require.NoError(t, err)
	require.NoError(t, e.metadata.SaveChunks(ctx, cid, chunks))

	for i, text := range chunks {
		vec, err := e.embedder.Embed(ctx, text)
		require.NoError(t, err)
		require.NoError(t, e.index.Add(ctx, store.ChunkKey(url, i), vec))
	}
}

func recentStamp(daysAgo int) string {
	return time.Now().AddDate(0, 0, -daysAgo).Format("2006-01-02 15:04:05")
}

func TestRetrieverHybridSearch(t *testing.T) {
	e := newTestEngine(t, false)
	ctx := context.Background()

	e.indexPage(t, "https://go.dev/blog/error-handling", "Errors", "go.dev", recentStamp(1),
		"error handling patterns in go programs")
	e.indexPage(t, "https://example.com/cooking", "Pasta", "example.com", recentStamp(2),
		"boiling pasta and making sauce")

	intent := e.processor.Process(ctx, "error handling in go")
	results := e.retriever.Search(ctx, intent, 5)

	require.NotEmpty(t, results)
	assert.Equal(t, "https://go.dev/blog/error-handling", results[0].Chunk.URL)
	// Found by both channels.
	assert.Equal(t, TypeHybrid, results[0].SearchType)
	assert.Positive(t, results[0].CombinedScore)
}

func TestRetrieverKeywordOnlyWithoutIndex(t *testing.T) {
	metadata := newTestMetadata(t)
	ctx := context.Background()

	hid, err := metadata.SaveHistory(ctx, &store.HistoryEntry{
		URL: "https://a.com/docs", Title: "Terraform docs", Domain: "a.com",
		VisitCount: 1, LastVisitTime: recentStamp(1),
	})
	require.NoError(t, err)
	cid, err := metadata.SaveContent(ctx, hid, "")
	require.NoError(t, err)
	require.NoError(t, metadata.SaveChunks(ctx, cid, []string{"terraform module structure"}))

	embedder := embed.NewStaticEmbedder(32)
	retriever, err := NewRetriever(
		NewVectorSearcher(nil, metadata), // cold start: no vector index
		NewKeywordSearcher(metadata),
		NewResultCache(metadata, false),
		NewFusion(0, 0),
		10,
	)
	require.NoError(t, err)

	intent := NewProcessor(embedder).Process(ctx, "terraform module")
	results := retriever.Search(ctx, intent, 5)

	require.Len(t, results, 1)
	assert.Equal(t, TypeKeyword, results[0].SearchType)
}

func TestRetrieverServesFromCache(t *testing.T) {
	e := newTestEngine(t, true)
	ctx := context.Background()

	e.indexPage(t, "https://a.com/p", "Page", "a.com", recentStamp(1), "unique marker text")

	intent := e.processor.Process(ctx, "unique marker")
	first := e.retriever.Search(ctx, intent, 5)
	require.NotEmpty(t, first)

	// Remove the underlying data; the cache should still serve the snapshot.
	require.NoError(t, e.index.Delete(ctx, store.ChunkKey("https://a.com/p", 0)))

	second := e.retriever.Search(ctx, intent, 5)
	require.Len(t, second, len(first))
	assert.Equal(t, first[0].Chunk.URL, second[0].Chunk.URL)
}

func TestRetrieverTimeFilterApplied(t *testing.T) {
	e := newTestEngine(t, false)
	ctx := context.Background()

	e.indexPage(t, "https://old.com/p", "Old docker article", "old.com", recentStamp(60),
		"docker containers in production")
	e.indexPage(t, "https://new.com/p", "New docker article", "new.com", recentStamp(2),
		"docker compose workflow tips")

	intent := e.processor.Process(ctx, "docker articles this week")
	require.NotNil(t, intent.TimeInfo)

	results := e.retriever.Search(ctx, intent, 5)
	require.NotEmpty(t, results)
	assert.Equal(t, "https://new.com/p", results[0].Chunk.URL)
}

func TestRetrieverTruncatesToTopK(t *testing.T) {
	e := newTestEngine(t, false)
	ctx := context.Background()

	for i := 0; i < 8; i++ {
		e.indexPage(t, "https://site.com/p"+string(rune('a'+i)), "Go notes", "site.com",
			recentStamp(1), "golang notes and tips")
	}

	intent := e.processor.Process(ctx, "golang notes")
	results := e.retriever.Search(ctx, intent, 3)
	assert.LessOrEqual(t, len(results), 3)
}

func TestNewRetrieverValidation(t *testing.T) {
	metadata := newTestMetadata(t)
	vs := NewVectorSearcher(nil, metadata)
	ks := NewKeywordSearcher(metadata)
	cache := NewResultCache(metadata, false)

	_, err := NewRetriever(nil, ks, cache, NewFusion(0, 0), 10)
	assert.Error(t, err)
	_, err = NewRetriever(vs, nil, cache, NewFusion(0, 0), 10)
	assert.Error(t, err)
	_, err = NewRetriever(vs, ks, nil, NewFusion(0, 0), 10)
	assert.Error(t, err)
	_, err = NewRetriever(vs, ks, cache, nil, 10)
	assert.Error(t, err)
}
