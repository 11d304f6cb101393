package search

import (
	"sort"
	"time"
)

// Default fusion weights for the combined hybrid score.
const (
	defaultVectorWeight  = 0.6
	defaultKeywordWeight = 0.3

	// timeBoostMax and timeBoostDecay shape the additive recency boost:
	// max(0, timeBoostMax - timeBoostDecay * ageDays).
	timeBoostMax   = 0.5
	timeBoostDecay = 0.05
)

// Fusion merges and ranks results from the vector and keyword channels.
type Fusion struct {
	vectorWeight  float64
	keywordWeight float64
	now           func() time.Time
}

// NewFusion creates a fusion stage using wall-clock time for recency.
// Non-positive weights fall back to the defaults.
func NewFusion(vectorWeight, keywordWeight float64) *Fusion {
	if vectorWeight <= 0 {
		vectorWeight = defaultVectorWeight
	}
	if keywordWeight <= 0 {
		keywordWeight = defaultKeywordWeight
	}
	return &Fusion{
		vectorWeight:  vectorWeight,
		keywordWeight: keywordWeight,
		now:           time.Now,
	}
}

// Merge combines the two result channels, deduplicating on chunk identity.
// A chunk found by both becomes hybrid and carries both channel scores.
// Vector results keep their position; keyword-only results follow.
func (f *Fusion) Merge(vector, keyword []*ScoredResult) []*ScoredResult {
	merged := make([]*ScoredResult, 0, len(vector)+len(keyword))
	byKey := make(map[string]*ScoredResult, len(vector))

	for _, r := range vector {
		merged = append(merged, r)
		byKey[r.Key()] = r
	}

	for _, r := range keyword {
		if existing, ok := byKey[r.Key()]; ok {
			existing.SearchType = TypeHybrid
			existing.KeywordScore = r.KeywordScore
			continue
		}
		merged = append(merged, r)
		byKey[r.Key()] = r
	}

	return merged
}

// Rank computes combined scores and sorts descending. Equal scores preserve
// merge order, so repeated ranking is stable.
func (f *Fusion) Rank(results []*ScoredResult) []*ScoredResult {
	now := f.now()
	for _, r := range results {
		similarity := 0.0
		// Only results the vector channel actually returned get a similarity.
		// The search type records channel membership, so an exact match with
		// distance zero still scores 1.0.
		if r.SearchType == TypeVector || r.SearchType == TypeHybrid {
			similarity = 1.0 / (1.0 + r.VectorScore)
		}

		boost := 0.0
		if t, ok := parseVisitTime(r.Chunk.LastVisitTime); ok {
			ageDays := now.Sub(t).Hours() / 24
			if b := timeBoostMax - timeBoostDecay*ageDays; b > 0 {
				boost = b
			}
		}

		r.CombinedScore = f.vectorWeight*similarity + f.keywordWeight*r.KeywordScore + boost
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].CombinedScore > results[j].CombinedScore
	})
	return results
}

// FilterByTime keeps results whose visit time falls within the query's time
// frame. Results with missing or unparseable timestamps are kept. When
// filtering leaves fewer than min(3, len/2) results, excluded items backfill
// in their original order up to min(5, len/2), so a narrow time frame never
// empties the result set.
func (f *Fusion) FilterByTime(results []*ScoredResult, info *TimeInfo) []*ScoredResult {
	if info == nil || len(results) == 0 {
		return results
	}

	cutoff := f.timeCutoff(info)
	kept := make([]*ScoredResult, 0, len(results))
	var excluded []*ScoredResult

	for _, r := range results {
		t, ok := parseVisitTime(r.Chunk.LastVisitTime)
		if !ok || !t.Before(cutoff) {
			kept = append(kept, r)
		} else {
			excluded = append(excluded, r)
		}
	}

	minKeep := min(3, len(results)/2)
	if len(kept) >= minKeep {
		return kept
	}

	target := min(5, len(results)/2)
	for _, r := range excluded {
		if len(kept) >= target {
			break
		}
		kept = append(kept, r)
	}
	return kept
}

// timeCutoff maps a time frame to its inclusive start instant.
func (f *Fusion) timeCutoff(info *TimeInfo) time.Time {
	now := f.now()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	switch info.Type {
	case TimeToday:
		return midnight
	case TimeYesterday:
		return midnight.AddDate(0, 0, -1)
	case TimeThisWeek:
		return now.AddDate(0, 0, -7)
	case TimeLastWeek:
		return now.AddDate(0, 0, -14)
	case TimeThisMonth:
		return now.AddDate(0, 0, -30)
	case TimeLastMonth:
		return now.AddDate(0, 0, -60)
	case TimeThisYear:
		return time.Date(now.Year(), 1, 1, 0, 0, 0, 0, now.Location())
	case TimeDaysAgo:
		return now.AddDate(0, 0, -info.Value)
	default: // TimeRecent and anything unrecognized
		return now.AddDate(0, 0, -14)
	}
}

// FreshnessScore maps a visit timestamp to a tiered recency score in [0,1].
// Unparseable or absent timestamps score zero.
func FreshnessScore(lastVisit string, now time.Time) float64 {
	t, ok := parseVisitTime(lastVisit)
	if !ok {
		return 0.0
	}

	ageDays := now.Sub(t).Hours() / 24
	switch {
	case ageDays <= 1:
		return 1.0
	case ageDays <= 7:
		return 0.8
	case ageDays <= 30:
		return 0.5
	default:
		score := 1.0 / (1.0 + ageDays/30.0)
		if score < 0.1 {
			return 0.1
		}
		return score
	}
}

// visitTimeFormats are the accepted timestamp layouts, tried in order.
var visitTimeFormats = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006/01/02 15:04:05",
	"01/02/2006 15:04:05",
	"2006-01-02",
}

// parseVisitTime parses the stored visit timestamp, trying each known
// layout. History exported from different browsers uses different formats.
func parseVisitTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range visitTimeFormats {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
