package search

import (
	"context"
	"log/slog"

	"github.com/aryan-at-ul/Browser-history-as-chats-and-trends/internal/store"
)

// VectorSearcher finds chunks by embedding similarity. A nil index means the
// vector side is cold (no index built yet) and search degrades to empty
// results rather than failing.
type VectorSearcher struct {
	index    store.VectorStore
	metadata store.MetadataStore
}

// NewVectorSearcher creates a vector searcher. index may be nil.
func NewVectorSearcher(index store.VectorStore, metadata store.MetadataStore) *VectorSearcher {
	return &VectorSearcher{index: index, metadata: metadata}
}

// Search returns up to k results ordered by increasing distance. Failures
// are logged and return empty results; the hybrid pipeline falls back to
// keyword matches.
func (s *VectorSearcher) Search(ctx context.Context, embedding []float32, k int) []*ScoredResult {
	if s.index == nil {
		slog.Debug("vector index unavailable, skipping vector search")
		return nil
	}

	matches, err := s.index.Search(ctx, embedding, k)
	if err != nil {
		slog.Warn("vector search failed", "error", err)
		return nil
	}
	if len(matches) == 0 {
		return nil
	}

	keys := make([]string, len(matches))
	distances := make(map[string]float32, len(matches))
	for i, m := range matches {
		keys[i] = m.Key
		distances[m.Key] = m.Distance
	}

	chunks, err := s.metadata.GetChunksByKeys(ctx, keys)
	if err != nil {
		slog.Warn("vector result lookup failed", "error", err)
		return nil
	}

	// GetChunksByKeys preserves input order and skips keys whose metadata
	// rows are gone, so results stay sorted by distance.
	results := make([]*ScoredResult, 0, len(chunks))
	for _, chunk := range chunks {
		results = append(results, &ScoredResult{
			Chunk:       chunk,
			SearchType:  TypeVector,
			VectorScore: float64(distances[chunk.Key()]),
		})
	}
	return results
}
