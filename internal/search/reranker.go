package search

import (
	"context"
	"log/slog"
	"sort"
	"time"
)

// Rerank blend weights. With a relevance model the model score dominates;
// without one the blend falls back to keyword overlap and freshness alone.
const (
	rerankModelWeight   = 0.5
	rerankKeywordWeight = 0.3
	rerankFreshWeight   = 0.2
	basicKeywordWeight  = 0.5
	basicFreshWeight    = 0.5
	defaultRerankScore  = 0.5
	DefaultChunksPerURL = 2
)

// RelevanceScorer scores query/passage relevance, typically a cross-encoder.
type RelevanceScorer interface {
	// Score returns a relevance in [0,1] for the passage against the query.
	Score(ctx context.Context, query, passage string) (float64, error)

	// Available reports whether the model can currently serve requests.
	Available(ctx context.Context) bool

	// Close releases model resources.
	Close() error
}

// Reranker refines a candidate list: dedupe with a per-URL chunk cap,
// rescore by relevance signals, and re-sort. A nil scorer is valid and
// selects the basic blend, as does disabling model scoring outright.
type Reranker struct {
	scorer          RelevanceScorer
	modelEnabled    bool
	maxChunksPerURL int
	now             func() time.Time
}

// NewReranker creates a reranker. scorer may be nil; modelEnabled gates the
// relevance model even when a scorer is wired; maxChunksPerURL caps how many
// chunks one page contributes (non-positive uses the default).
func NewReranker(scorer RelevanceScorer, modelEnabled bool, maxChunksPerURL int) *Reranker {
	if maxChunksPerURL <= 0 {
		maxChunksPerURL = DefaultChunksPerURL
	}
	return &Reranker{
		scorer:          scorer,
		modelEnabled:    modelEnabled,
		maxChunksPerURL: maxChunksPerURL,
		now:             time.Now,
	}
}

// FilterAndRerank deduplicates candidates, computes freshness and keyword
// overlap, optionally applies the relevance model, and returns the list
// sorted by final score. Model failures degrade to the basic blend; this
// stage never errors.
func (r *Reranker) FilterAndRerank(ctx context.Context, query string, candidates []*ScoredResult) []*ScoredResult {
	filtered := r.dedupe(candidates)
	if len(filtered) == 0 {
		return filtered
	}

	now := r.now()
	queryTerms := ExtractKeywords(query)
	for _, c := range filtered {
		c.FreshnessScore = FreshnessScore(c.Chunk.LastVisitTime, now)
		c.KeywordScore = keywordOverlap(queryTerms, c.Chunk.ChunkText)
	}

	useModel := r.modelEnabled && r.scorer != nil && len(filtered) > 1 && r.scorer.Available(ctx)
	if useModel {
		if err := r.modelScore(ctx, query, filtered); err != nil {
			slog.Warn("relevance model failed, using basic ranking", "error", err)
			useModel = false
		}
	}

	for _, c := range filtered {
		if useModel {
			c.FinalScore = rerankModelWeight*c.RerankScore +
				rerankKeywordWeight*c.KeywordScore +
				rerankFreshWeight*c.FreshnessScore
			c.Reranked = true
		} else {
			c.FinalScore = basicKeywordWeight*c.KeywordScore +
				basicFreshWeight*c.FreshnessScore
		}
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].FinalScore > filtered[j].FinalScore
	})
	return filtered
}

// dedupe removes duplicate chunks and caps chunks per URL, preserving input
// order so higher-ranked candidates win the cap.
func (r *Reranker) dedupe(candidates []*ScoredResult) []*ScoredResult {
	seen := make(map[string]bool, len(candidates))
	perURL := make(map[string]int)

	out := make([]*ScoredResult, 0, len(candidates))
	for _, c := range candidates {
		key := c.Key()
		if seen[key] {
			continue
		}
		if perURL[c.Chunk.URL] >= r.maxChunksPerURL {
			continue
		}
		seen[key] = true
		perURL[c.Chunk.URL]++
		out = append(out, c)
	}
	return out
}

// modelScore runs the relevance model over every candidate. Any single
// failure aborts model scoring so results stay consistently blended.
func (r *Reranker) modelScore(ctx context.Context, query string, candidates []*ScoredResult) error {
	for _, c := range candidates {
		score, err := r.scorer.Score(ctx, query, c.Chunk.ChunkText)
		if err != nil {
			return err
		}
		c.RerankScore = score
	}
	return nil
}

// keywordOverlap returns the fraction of query terms present in the text.
// No query terms yields the neutral default score.
func keywordOverlap(queryTerms []string, text string) float64 {
	if len(queryTerms) == 0 {
		return defaultRerankScore
	}

	textTerms := make(map[string]bool)
	for _, t := range ExtractKeywords(text) {
		textTerms[t] = true
	}

	matched := 0
	for _, t := range queryTerms {
		if textTerms[t] {
			matched++
		}
	}
	return float64(matched) / float64(len(queryTerms))
}
