package search

import (
	"context"
	"fmt"
	"log/slog"
)

// Retriever runs the hybrid search pipeline: cache check, parallel-channel
// retrieval at double depth, time filtering, fusion, and ranking.
type Retriever struct {
	vector  *VectorSearcher
	keyword *KeywordSearcher
	cache   *ResultCache
	fusion  *Fusion
	topK    int
}

// NewRetriever creates a retriever. All collaborators are required.
func NewRetriever(vector *VectorSearcher, keyword *KeywordSearcher, cache *ResultCache, fusion *Fusion, topK int) (*Retriever, error) {
	if vector == nil {
		return nil, fmt.Errorf("retriever requires a vector searcher")
	}
	if keyword == nil {
		return nil, fmt.Errorf("retriever requires a keyword searcher")
	}
	if cache == nil {
		return nil, fmt.Errorf("retriever requires a result cache")
	}
	if fusion == nil {
		return nil, fmt.Errorf("retriever requires a fusion stage")
	}
	if topK <= 0 {
		topK = 10
	}
	return &Retriever{
		vector:  vector,
		keyword: keyword,
		cache:   cache,
		fusion:  fusion,
		topK:    topK,
	}, nil
}

// Search retrieves the topK best chunks for an intent. Results are served
// from the cache when available; otherwise both channels run at twice the
// requested depth so fusion has headroom, time constraints are applied per
// channel, and the merged set is ranked and truncated.
func (r *Retriever) Search(ctx context.Context, intent *QueryIntent, topK int) []*ScoredResult {
	if topK <= 0 {
		topK = r.topK
	}

	if cached, ok := r.cache.Get(ctx, intent.OriginalQuery); ok {
		slog.Debug("search cache hit", "query", intent.OriginalQuery)
		if len(cached) > topK {
			cached = cached[:topK]
		}
		return cached
	}

	depth := topK * 2
	vectorResults := r.vector.Search(ctx, intent.Embedding, depth)
	keywordResults := r.keyword.Search(ctx, intent.KeyTerms, depth)

	if intent.TimeInfo != nil {
		vectorResults = r.fusion.FilterByTime(vectorResults, intent.TimeInfo)
		keywordResults = r.fusion.FilterByTime(keywordResults, intent.TimeInfo)
	}

	merged := r.fusion.Merge(vectorResults, keywordResults)
	ranked := r.fusion.Rank(merged)
	if len(ranked) > topK {
		ranked = ranked[:topK]
	}

	slog.Debug("hybrid search complete",
		"query", intent.CleanedQuery,
		"vector", len(vectorResults),
		"keyword", len(keywordResults),
		"returned", len(ranked))

	r.cache.Put(ctx, intent.OriginalQuery, ranked)
	return ranked
}
