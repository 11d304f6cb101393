package search

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/aryan-at-ul/Browser-history-as-chats-and-trends/internal/embed"
)

// Processor turns raw queries into structured QueryIntent values. It never
// fails: embedding errors degrade to a zero vector so keyword search can
// still proceed.
type Processor struct {
	embedder embed.Embedder
	now      func() time.Time
}

// NewProcessor creates a query processor using the given embedder.
func NewProcessor(embedder embed.Embedder) *Processor {
	return &Processor{embedder: embedder, now: time.Now}
}

// daysAgoRe matches explicit "N days ago" expressions.
var daysAgoRe = regexp.MustCompile(`(\d+)\s+days?\s+ago`)

// timePattern pairs a regex with the time type it detects. Order matters:
// more specific phrases are listed before looser ones.
type timePattern struct {
	re  *regexp.Regexp
	typ TimeType
}

var explicitTimePatterns = []timePattern{
	{regexp.MustCompile(`\b(today|tonight|currently)\b`), TimeToday},
	{regexp.MustCompile(`\byesterday\b`), TimeYesterday},
	{regexp.MustCompile(`\b(this week|past week|current week|last 7 days)\b`), TimeThisWeek},
	{regexp.MustCompile(`\b(last week|previous week|1 week ago)\b`), TimeLastWeek},
	{regexp.MustCompile(`\b(this month|current month|last 30 days)\b`), TimeThisMonth},
	{regexp.MustCompile(`\b(last month|previous month|1 month ago)\b`), TimeLastMonth},
	{regexp.MustCompile(`\b(this year|current year)\b`), TimeThisYear},
	{regexp.MustCompile(`\b(recent|recently|lately|past few days)\b`), TimeRecent},
}

// implicitTimePatterns catch activity-style phrasings that imply recency
// without naming a time frame.
var implicitTimePatterns = []*regexp.Regexp{
	regexp.MustCompile(`\bwhat have i been\b`),
	regexp.MustCompile(`\bwhat did i\b`),
	regexp.MustCompile(`\bwhat was i\b`),
	regexp.MustCompile(`\bshow me what i\b`),
	regexp.MustCompile(`\btopics i\b`),
	regexp.MustCompile(`\bwebsites i\b`),
}

var nonWordRe = regexp.MustCompile(`[^\w\s]`)
var whitespaceRe = regexp.MustCompile(`\s+`)

// queryStopWords are dropped when extracting key terms from queries.
var queryStopWords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "or": true, "but": true,
	"in": true, "on": true, "at": true, "to": true, "for": true, "of": true,
	"with": true, "by": true, "from": true, "about": true, "into": true,
	"is": true, "are": true, "was": true, "were": true, "be": true,
	"been": true, "being": true, "have": true, "has": true, "had": true,
	"do": true, "does": true, "did": true, "will": true, "would": true,
	"could": true, "should": true, "may": true, "might": true, "can": true,
	"this": true, "that": true, "these": true, "those": true, "it": true,
	"its": true, "i": true, "me": true, "my": true, "we": true, "our": true,
	"you": true, "your": true, "what": true, "when": true, "where": true,
	"which": true, "who": true, "how": true, "why": true, "all": true,
	"any": true, "some": true, "show": true, "tell": true, "find": true,
	"get": true, "not": true, "no": true, "so": true, "if": true,
	"then": true, "than": true, "as": true, "just": true,
}

// Process analyzes a raw query into cleaned text, key terms, an optional
// time constraint, and an embedding.
func (p *Processor) Process(ctx context.Context, query string) *QueryIntent {
	intent := &QueryIntent{OriginalQuery: query}

	lower := strings.ToLower(query)
	intent.TimeInfo = p.extractTimeInfo(lower)
	intent.CleanedQuery = cleanQuery(lower)
	intent.KeyTerms = ExtractKeywords(intent.CleanedQuery)
	intent.Embedding = p.embedQuery(ctx, intent.CleanedQuery)

	slog.Debug("processed query",
		"cleaned", intent.CleanedQuery,
		"terms", intent.KeyTerms,
		"time", fmt.Sprintf("%v", intent.TimeInfo))

	return intent
}

// extractTimeInfo detects temporal expressions. Explicit "N days ago"
// phrases win; then named frames; then implicit activity phrasings.
func (p *Processor) extractTimeInfo(lower string) *TimeInfo {
	if m := daysAgoRe.FindStringSubmatch(lower); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil && n >= 1 && n <= 365 {
			return &TimeInfo{Type: TimeDaysAgo, Value: n}
		}
	}

	for _, tp := range explicitTimePatterns {
		if tp.re.MatchString(lower) {
			return &TimeInfo{Type: tp.typ}
		}
	}

	// The bare current year ("what did I read in 2026") also means this year.
	if strings.Contains(lower, strconv.Itoa(p.now().Year())) {
		return &TimeInfo{Type: TimeThisYear}
	}

	for _, re := range implicitTimePatterns {
		if re.MatchString(lower) {
			return &TimeInfo{Type: TimeRecent}
		}
	}
	return nil
}

// cleanQuery lowercases, strips punctuation, and collapses whitespace.
func cleanQuery(lower string) string {
	cleaned := nonWordRe.ReplaceAllString(lower, " ")
	cleaned = whitespaceRe.ReplaceAllString(cleaned, " ")
	return strings.TrimSpace(cleaned)
}

// ExtractKeywords returns the significant terms of a text: lowercased,
// stop words removed, short tokens dropped.
func ExtractKeywords(text string) []string {
	cleaned := cleanQuery(strings.ToLower(text))
	if cleaned == "" {
		return nil
	}

	var terms []string
	for _, word := range strings.Fields(cleaned) {
		if len(word) <= 2 || queryStopWords[word] {
			continue
		}
		terms = append(terms, word)
	}
	return terms
}

// embedQuery returns the query embedding, or a zero vector on failure so
// retrieval can continue keyword-only.
func (p *Processor) embedQuery(ctx context.Context, cleaned string) []float32 {
	dims := p.embedder.Dimensions()
	if cleaned == "" {
		return make([]float32, dims)
	}

	vec, err := p.embedder.Embed(ctx, cleaned)
	if err != nil {
		slog.Warn("query embedding failed, continuing keyword-only", "error", err)
		return make([]float32, dims)
	}
	return vec
}
