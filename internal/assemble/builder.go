// Package assemble builds ranked context windows for a query, layering
// hybrid retrieval over direct lookups and progressively broader fallbacks
// so a query never comes back empty while any history exists.
package assemble

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/aryan-at-ul/Browser-history-as-chats-and-trends/internal/search"
	"github.com/aryan-at-ul/Browser-history-as-chats-and-trends/internal/store"
)

// DefaultTopK is the default context window size.
const DefaultTopK = 5

// activitySummaryScanLimit caps how much recent history the direct lookup
// scans before filtering.
const activitySummaryScanLimit = 50

// Builder assembles a context window through a tiered strategy:
// activity-summary direct lookup, hybrid search with reranking, domain
// lookup, recent chunks, and a last-resort emergency tier.
type Builder struct {
	processor *search.Processor
	retriever *search.Retriever
	reranker  *search.Reranker
	metadata  store.MetadataStore
	topK      int
	now       func() time.Time
}

// NewBuilder creates a context builder. All collaborators are required.
func NewBuilder(processor *search.Processor, retriever *search.Retriever, reranker *search.Reranker, metadata store.MetadataStore, topK int) (*Builder, error) {
	if processor == nil {
		return nil, fmt.Errorf("builder requires a query processor")
	}
	if retriever == nil {
		return nil, fmt.Errorf("builder requires a retriever")
	}
	if reranker == nil {
		return nil, fmt.Errorf("builder requires a reranker")
	}
	if metadata == nil {
		return nil, fmt.Errorf("builder requires a metadata store")
	}
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &Builder{
		processor: processor,
		retriever: retriever,
		reranker:  reranker,
		metadata:  metadata,
		topK:      topK,
		now:       time.Now,
	}, nil
}

// Build assembles up to topK context results for a query. Tier errors route
// to the next tier and ultimately to the emergency tier, so Build itself
// never fails.
func (b *Builder) Build(ctx context.Context, query string, topK int) []*search.ScoredResult {
	if topK <= 0 {
		topK = b.topK
	}

	intent := b.processor.Process(ctx, query)

	var results []*search.ScoredResult

	if isActivitySummaryQuery(query) && intent.TimeInfo != nil {
		summary, err := b.activitySummary(ctx, query, intent, topK)
		if err != nil {
			slog.Warn("activity summary lookup failed", "error", err)
			return b.emergency(ctx, topK)
		}
		results = summary
	}

	if len(results) == 0 {
		hybrid := b.hybridSearch(ctx, query, intent, topK)
		results = hybrid

		// A thin hybrid result set gets topped up rather than replaced.
		if len(hybrid) < min(3, topK) {
			if domain := extractDomain(query); domain != "" {
				extra, err := b.domainLookup(ctx, domain, topK)
				if err != nil {
					slog.Warn("domain lookup failed", "domain", domain, "error", err)
					return b.emergency(ctx, topK)
				}
				results = mergeByURL(results, extra, topK)
			}
			if len(results) < min(3, topK) {
				recent, err := b.recentChunks(ctx, topK)
				if err != nil {
					slog.Warn("recent chunk lookup failed", "error", err)
					return b.emergency(ctx, topK)
				}
				results = mergeByURL(results, recent, topK)
			}
		}
	}

	if len(results) == 0 {
		recent, err := b.recentChunks(ctx, topK)
		if err != nil {
			slog.Warn("recent chunk lookup failed", "error", err)
			return b.emergency(ctx, topK)
		}
		results = recent
	}

	if len(results) == 0 {
		results = b.emergency(ctx, topK)
	}

	results = b.ensureDiversity(results, topK)
	if len(results) > topK {
		results = results[:topK]
	}
	b.annotate(results, intent)
	return results
}

// hybridSearch runs retrieval plus reranking. Both stages are soft-failing,
// so this tier returns what it can.
func (b *Builder) hybridSearch(ctx context.Context, query string, intent *search.QueryIntent, topK int) []*search.ScoredResult {
	candidates := b.retriever.Search(ctx, intent, topK*2)
	if len(candidates) == 0 {
		return nil
	}
	reranked := b.reranker.FilterAndRerank(ctx, query, candidates)
	if len(reranked) > topK {
		reranked = reranked[:topK]
	}
	return reranked
}

// activitySummaryPhrases identify "what have I been up to" style queries
// that want a direct history summary instead of content retrieval.
var activitySummaryPhrases = []string{
	"what have i been",
	"what did i do",
	"what was i doing",
	"what did i look at",
	"what did i read",
	"what did i browse",
	"show me my activity",
	"my browsing",
	"my history",
	"summarize my",
	"been up to",
	"been browsing",
	"been reading",
	"been looking at",
}

func isActivitySummaryQuery(query string) bool {
	lower := strings.ToLower(query)
	for _, phrase := range activitySummaryPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

// activitySummary answers activity queries straight from history rows:
// scan recent entries, keep those inside the query's time frame, narrow by
// topical keywords when that leaves enough matches, then order by recency
// and visit count.
func (b *Builder) activitySummary(ctx context.Context, query string, intent *search.QueryIntent, topK int) ([]*search.ScoredResult, error) {
	entries, err := b.metadata.RecentHistory(ctx, activitySummaryScanLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to load recent history: %w", err)
	}
	if len(entries) == 0 {
		return nil, nil
	}

	cutoff := b.now().AddDate(0, 0, -extractTimeFrameDays(query))
	var inFrame []*store.HistoryEntry
	for _, e := range entries {
		t, ok := parseVisit(e.LastVisitTime)
		if !ok || !t.Before(cutoff) {
			inFrame = append(inFrame, e)
		}
	}
	if len(inFrame) == 0 {
		inFrame = entries
	}

	// Topical narrowing is only trusted when it keeps a meaningful share;
	// otherwise the keywords were probably filler words.
	if terms := intent.KeyTerms; len(terms) > 0 {
		var matched []*store.HistoryEntry
		for _, e := range inFrame {
			haystack := strings.ToLower(e.Title + " " + e.URL)
			for _, term := range terms {
				if strings.Contains(haystack, term) {
					matched = append(matched, e)
					break
				}
			}
		}
		if len(matched) >= min(5, len(inFrame)/2) {
			inFrame = matched
		}
	}

	sort.SliceStable(inFrame, func(i, j int) bool {
		if inFrame[i].LastVisitTime != inFrame[j].LastVisitTime {
			return inFrame[i].LastVisitTime > inFrame[j].LastVisitTime
		}
		return inFrame[i].VisitCount > inFrame[j].VisitCount
	})

	if len(inFrame) > topK {
		inFrame = inFrame[:topK]
	}

	results := make([]*search.ScoredResult, 0, len(inFrame))
	for _, e := range inFrame {
		results = append(results, &search.ScoredResult{
			Chunk:      historySummaryChunk(e),
			SearchType: search.TypeDirectQuery,
		})
	}
	return results, nil
}

// historySummaryChunk synthesizes a chunk describing a history entry.
func historySummaryChunk(e *store.HistoryEntry) *store.ChunkRecord {
	return &store.ChunkRecord{
		HistoryID: e.ID,
		URL:       e.URL,
		Domain:    e.Domain,
		Title:     e.Title,
		ChunkText: fmt.Sprintf("Title: %s\nURL: %s\nDomain: %s\nVisited: %s\nVisit count: %d",
			e.Title, e.URL, e.Domain, e.LastVisitTime, e.VisitCount),
		LastVisitTime: e.LastVisitTime,
		VisitCount:    e.VisitCount,
	}
}

// numericFrameRe catches "in the last 3 weeks" style spans.
var numericFrameRe = regexp.MustCompile(`(?:in|the|last|past)\s+(\d+)\s+(day|days|week|weeks|month|months)`)

// framePhrase maps a time phrase to a day span; ordered most specific first.
type framePhrase struct {
	phrase string
	days   int
}

var framePhrases = []framePhrase{
	{"today", 1},
	{"yesterday", 2},
	{"this week", 7},
	{"past week", 7},
	{"last week", 14},
	{"this month", 30},
	{"past month", 30},
	{"recently", 14},
	{"recent", 14},
	{"past few days", 5},
	{"last few days", 5},
}

// extractTimeFrameDays converts a query's time phrasing to a lookback span
// in days. Activity phrasings without an explicit frame default to 14 days.
func extractTimeFrameDays(query string) int {
	lower := strings.ToLower(query)

	if m := numericFrameRe.FindStringSubmatch(lower); m != nil {
		n, err := strconv.Atoi(m[1])
		if err == nil && n > 0 {
			switch {
			case strings.HasPrefix(m[2], "day"):
				return n
			case strings.HasPrefix(m[2], "week"):
				return n * 7
			default:
				return n * 30
			}
		}
	}

	for _, fp := range framePhrases {
		if strings.Contains(lower, fp.phrase) {
			return fp.days
		}
	}

	for _, hint := range []string{"lately", "been", "interested"} {
		if strings.Contains(lower, hint) {
			return 14
		}
	}
	return 14
}

// domainRe pulls an explicit domain mention out of a query, e.g.
// "articles on github.com".
var domainRe = regexp.MustCompile(`(?:on|about|from|at)\s+([a-zA-Z0-9.-]+\.[a-zA-Z]{2,})`)

func extractDomain(query string) string {
	if m := domainRe.FindStringSubmatch(strings.ToLower(query)); m != nil {
		return m[1]
	}
	return ""
}

// domainLookup returns history entries for an explicitly mentioned domain.
func (b *Builder) domainLookup(ctx context.Context, domain string, topK int) ([]*search.ScoredResult, error) {
	entries, err := b.metadata.DomainHistory(ctx, domain, topK)
	if err != nil {
		return nil, fmt.Errorf("failed to load history for %s: %w", domain, err)
	}

	results := make([]*search.ScoredResult, 0, len(entries))
	for _, e := range entries {
		results = append(results, &search.ScoredResult{
			Chunk:      historySummaryChunk(e),
			SearchType: search.TypeDomainSpecific,
		})
	}
	return results, nil
}

// recentChunks falls back to the most recently visited pages.
func (b *Builder) recentChunks(ctx context.Context, topK int) ([]*search.ScoredResult, error) {
	entries, err := b.metadata.RecentHistory(ctx, topK)
	if err != nil {
		return nil, fmt.Errorf("failed to load recent history: %w", err)
	}

	results := make([]*search.ScoredResult, 0, len(entries))
	for _, e := range entries {
		results = append(results, &search.ScoredResult{
			Chunk:      historySummaryChunk(e),
			SearchType: search.TypeRecentHistory,
		})
	}
	return results, nil
}

// emergency is the last-resort tier: minimal results from whatever history
// can be read, or an empty set. It never errors.
func (b *Builder) emergency(ctx context.Context, topK int) []*search.ScoredResult {
	entries, err := b.metadata.RecentHistory(ctx, topK)
	if err != nil {
		slog.Error("emergency history lookup failed", "error", err)
		return []*search.ScoredResult{}
	}

	results := make([]*search.ScoredResult, 0, len(entries))
	for _, e := range entries {
		results = append(results, &search.ScoredResult{
			Chunk: &store.ChunkRecord{
				HistoryID:     e.ID,
				URL:           e.URL,
				Domain:        e.Domain,
				Title:         e.Title,
				ChunkText:     fmt.Sprintf("Title: %s\nURL: %s", e.Title, e.URL),
				LastVisitTime: e.LastVisitTime,
				VisitCount:    e.VisitCount,
			},
			SearchType: search.TypeEmergencyFallback,
		})
	}
	return results
}

// mergeByURL appends extras whose URL is not already present, up to limit.
func mergeByURL(base, extra []*search.ScoredResult, limit int) []*search.ScoredResult {
	seen := make(map[string]bool, len(base))
	for _, r := range base {
		seen[r.Chunk.URL] = true
	}
	for _, r := range extra {
		if len(base) >= limit {
			break
		}
		if seen[r.Chunk.URL] {
			continue
		}
		seen[r.Chunk.URL] = true
		base = append(base, r)
	}
	return base
}

// ensureDiversity rebalances results so no single domain dominates the
// window. Small result sets are left alone. Each domain first contributes
// its best result (domains with more candidates seeded first), domains are
// then capped at max(1, topK/5), and remaining slots backfill in rank order.
// If the capped pass leaves the window under-filled, leftovers top it up
// regardless of domain.
func (b *Builder) ensureDiversity(results []*search.ScoredResult, topK int) []*search.ScoredResult {
	if len(results) <= topK/2 {
		return results
	}

	byDomain := make(map[string][]*search.ScoredResult)
	for _, r := range results {
		d := r.Chunk.Domain
		byDomain[d] = append(byDomain[d], r)
	}
	if len(byDomain) <= 1 {
		if len(results) > topK {
			return results[:topK]
		}
		return results
	}

	domains := make([]string, 0, len(byDomain))
	for d := range byDomain {
		domains = append(domains, d)
	}
	sort.Slice(domains, func(i, j int) bool {
		if len(byDomain[domains[i]]) != len(byDomain[domains[j]]) {
			return len(byDomain[domains[i]]) > len(byDomain[domains[j]])
		}
		return domains[i] < domains[j]
	})

	domainCap := max(1, topK/5)
	perDomain := make(map[string]int)
	picked := make(map[string]bool)
	var out []*search.ScoredResult

	// Seed: the best result from each domain, richest domains first.
	for _, d := range domains {
		if len(out) >= topK {
			break
		}
		r := byDomain[d][0]
		out = append(out, r)
		perDomain[d]++
		picked[r.Key()] = true
	}

	// Backfill in original rank order, honoring the per-domain cap.
	for _, r := range results {
		if len(out) >= topK {
			break
		}
		if picked[r.Key()] {
			continue
		}
		d := r.Chunk.Domain
		if perDomain[d] >= domainCap {
			continue
		}
		out = append(out, r)
		perDomain[d]++
		picked[r.Key()] = true
	}

	// Capped backfill can leave the window short when few domains are
	// present. Fill the remaining slots with leftovers in rank order,
	// ignoring the cap.
	for _, r := range results {
		if len(out) >= topK {
			break
		}
		if picked[r.Key()] {
			continue
		}
		out = append(out, r)
		picked[r.Key()] = true
	}

	return out
}

// annotate attaches human-readable relevance notes and defaults the search
// type for results that reached the window untagged.
func (b *Builder) annotate(results []*search.ScoredResult, intent *search.QueryIntent) {
	now := b.now()
	for _, r := range results {
		if r.SearchType == "" {
			r.SearchType = search.TypeHybrid
		}

		var notes []string
		if len(intent.KeyTerms) > 0 {
			text := strings.ToLower(r.Chunk.ChunkText + " " + r.Chunk.Title)
			var matched []string
			for _, term := range intent.KeyTerms {
				if strings.Contains(text, term) {
					matched = append(matched, term)
				}
			}
			if len(matched) > 0 {
				notes = append(notes, "matches: "+strings.Join(matched, ", "))
			}
		}

		if t, ok := parseVisit(r.Chunk.LastVisitTime); ok {
			notes = append(notes, "visited "+recencyLabel(t, now))
		}
		r.RelevanceNotes = notes
	}
}

// recencyLabel buckets a visit time into a friendly phrase.
func recencyLabel(t, now time.Time) string {
	days := int(now.Sub(t).Hours() / 24)
	switch {
	case days <= 0:
		return "today"
	case days == 1:
		return "yesterday"
	case days <= 7:
		return "this week"
	default:
		return fmt.Sprintf("%d days ago", days)
	}
}

// visitFormats mirrors the layouts accepted elsewhere in the pipeline.
var visitFormats = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006/01/02 15:04:05",
	"01/02/2006 15:04:05",
	"2006-01-02",
}

func parseVisit(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range visitFormats {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
