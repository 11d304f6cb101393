// Package search implements hybrid retrieval over indexed browsing history:
// query understanding, vector and keyword search, score fusion, optional
// reranking, and a query-result cache.
package search

import (
	"github.com/aryan-at-ul/Browser-history-as-chats-and-trends/internal/store"
)

// SearchType labels how a result was retrieved.
type SearchType string

const (
	// TypeVector marks a result found only by vector similarity.
	TypeVector SearchType = "vector"
	// TypeKeyword marks a result found only by keyword match.
	TypeKeyword SearchType = "keyword"
	// TypeHybrid marks a result found by both channels.
	TypeHybrid SearchType = "hybrid"
	// TypeDirectQuery marks a result from the activity-summary lookup.
	TypeDirectQuery SearchType = "direct_query"
	// TypeDomainSpecific marks a result from a domain-scoped lookup.
	TypeDomainSpecific SearchType = "domain_specific"
	// TypeRecentHistory marks a result from the recent-chunks fallback.
	TypeRecentHistory SearchType = "recent_history"
	// TypeEmergencyFallback marks a result from the last-resort tier.
	TypeEmergencyFallback SearchType = "emergency_fallback"
)

// TimeType identifies a recognized temporal expression in a query.
type TimeType string

const (
	TimeToday     TimeType = "today"
	TimeYesterday TimeType = "yesterday"
	TimeThisWeek  TimeType = "this_week"
	TimeLastWeek  TimeType = "last_week"
	TimeThisMonth TimeType = "this_month"
	TimeLastMonth TimeType = "last_month"
	TimeThisYear  TimeType = "this_year"
	TimeRecent    TimeType = "recent"
	TimeDaysAgo   TimeType = "days_ago"
)

// TimeInfo is a parsed temporal constraint. Value is only meaningful for
// TimeDaysAgo, where it holds the day count.
type TimeInfo struct {
	Type  TimeType `json:"type"`
	Value int      `json:"value,omitempty"`
}

// QueryIntent is the structured understanding of a raw user query.
type QueryIntent struct {
	OriginalQuery string    `json:"original_query"`
	CleanedQuery  string    `json:"cleaned_query"`
	KeyTerms      []string  `json:"key_terms"`
	TimeInfo      *TimeInfo `json:"time_info,omitempty"`
	Embedding     []float32 `json:"-"`
}

// ScoredResult is a retrieved chunk with its per-channel and blended scores.
type ScoredResult struct {
	Chunk *store.ChunkRecord `json:"chunk"`

	SearchType SearchType `json:"search_type"`

	// VectorScore is the raw vector distance (lower is closer). Only
	// meaningful when the search type says the vector channel returned
	// this result.
	VectorScore float64 `json:"vector_score"`
	// KeywordScore is 1 when the result matched a keyword, else 0.
	KeywordScore float64 `json:"keyword_score"`
	// FreshnessScore is the tiered recency score in [0,1].
	FreshnessScore float64 `json:"freshness_score"`
	// RerankScore is the cross-encoder relevance, when reranked.
	RerankScore float64 `json:"rerank_score"`
	Reranked    bool    `json:"reranked"`

	// CombinedScore is the fusion blend used for hybrid ranking.
	CombinedScore float64 `json:"combined_score"`
	// FinalScore is the post-rerank blend used for context ordering.
	FinalScore float64 `json:"final_score"`

	RelevanceNotes []string `json:"relevance_notes,omitempty"`
}

// Key returns the chunk identity key for this result.
func (r *ScoredResult) Key() string {
	return r.Chunk.Key()
}
