package search

import (
	"context"
	"log/slog"

	"github.com/aryan-at-ul/Browser-history-as-chats-and-trends/internal/store"
)

// KeywordSearcher finds chunks by substring match over content, titles, and
// URLs.
type KeywordSearcher struct {
	metadata store.MetadataStore
}

// NewKeywordSearcher creates a keyword searcher.
func NewKeywordSearcher(metadata store.MetadataStore) *KeywordSearcher {
	return &KeywordSearcher{metadata: metadata}
}

// Search returns up to k results for the given terms, newest first.
// Failures are logged and return empty results.
func (s *KeywordSearcher) Search(ctx context.Context, terms []string, k int) []*ScoredResult {
	if len(terms) == 0 {
		return nil
	}

	chunks, err := s.metadata.SearchChunksByTerms(ctx, terms, k)
	if err != nil {
		slog.Warn("keyword search failed", "error", err)
		return nil
	}

	results := make([]*ScoredResult, 0, len(chunks))
	for _, chunk := range chunks {
		results = append(results, &ScoredResult{
			Chunk:        chunk,
			SearchType:   TypeKeyword,
			KeywordScore: 1.0,
		})
	}
	return results
}
