package search

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aryan-at-ul/Browser-history-as-chats-and-trends/internal/store"
)

// fakeScorer scores passages by a fixed map, or fails every call.
type fakeScorer struct {
	scores map[string]float64
	fail   bool
}

func (f *fakeScorer) Score(_ context.Context, _, passage string) (float64, error) {
	if f.fail {
		return 0, errors.New("model unavailable")
	}
	return f.scores[passage], nil
}

func (f *fakeScorer) Available(context.Context) bool { return true }
func (f *fakeScorer) Close() error                   { return nil }

func newRerankerNow() func() time.Time {
	return func() time.Time { return fusionNow }
}

func chunkResult(url string, idx int, text, visit string) *ScoredResult {
	return &ScoredResult{
		Chunk: &store.ChunkRecord{
			URL:           url,
			ChunkIndex:    idx,
			ChunkText:     text,
			LastVisitTime: visit,
		},
	}
}

func TestRerankerBasicBlend(t *testing.T) {
	r := NewReranker(nil, false, 2)
	r.now = newRerankerNow()

	// Full keyword overlap, fresh visit.
	fresh := chunkResult("https://a.com", 0, "rust async runtime internals", daysBefore(0))
	// No overlap, old visit.
	stale := chunkResult("https://b.com", 0, "cooking pasta at home", daysBefore(90))

	out := r.FilterAndRerank(context.Background(), "rust async runtime", []*ScoredResult{stale, fresh})
	require.Len(t, out, 2)

	assert.Equal(t, "https://a.com", out[0].Chunk.URL)
	// 0.5 * 1.0 keyword + 0.5 * 1.0 freshness = 1.0
	assert.InDelta(t, 1.0, out[0].FinalScore, 1e-9)
	assert.False(t, out[0].Reranked)
}

func TestRerankerModelBlend(t *testing.T) {
	scorer := &fakeScorer{scores: map[string]float64{
		"about go generics": 0.9,
		"about rust macros": 0.1,
	}}
	r := NewReranker(scorer, true, 2)
	r.now = newRerankerNow()

	a := chunkResult("https://a.com", 0, "about go generics", daysBefore(1))
	b := chunkResult("https://b.com", 0, "about rust macros", daysBefore(1))

	out := r.FilterAndRerank(context.Background(), "go generics tutorial", []*ScoredResult{b, a})
	require.Len(t, out, 2)

	assert.Equal(t, "https://a.com", out[0].Chunk.URL)
	assert.True(t, out[0].Reranked)
	assert.InDelta(t, 0.9, out[0].RerankScore, 1e-9)
	// 0.5*0.9 + 0.3*(1/2 overlap) + 0.2*1.0 freshness
	assert.InDelta(t, 0.5*0.9+0.3*0.5+0.2*1.0, out[0].FinalScore, 1e-9)
}

func TestRerankerModelFailureFallsBack(t *testing.T) {
	r := NewReranker(&fakeScorer{fail: true}, true, 2)
	r.now = newRerankerNow()

	a := chunkResult("https://a.com", 0, "kubernetes networking deep dive", daysBefore(1))
	b := chunkResult("https://b.com", 0, "unrelated text", daysBefore(1))

	out := r.FilterAndRerank(context.Background(), "kubernetes networking", []*ScoredResult{a, b})
	require.Len(t, out, 2)

	for _, res := range out {
		assert.False(t, res.Reranked, "model failure must degrade to basic blend")
	}
	assert.Equal(t, "https://a.com", out[0].Chunk.URL)
}

func TestRerankerDisabledSkipsModel(t *testing.T) {
	scorer := &fakeScorer{scores: map[string]float64{"about go generics": 0.9}}
	r := NewReranker(scorer, false, 2)
	r.now = newRerankerNow()

	a := chunkResult("https://a.com", 0, "about go generics", daysBefore(1))
	b := chunkResult("https://b.com", 0, "about rust macros", daysBefore(1))

	out := r.FilterAndRerank(context.Background(), "go generics tutorial", []*ScoredResult{a, b})
	require.Len(t, out, 2)
	for _, res := range out {
		assert.False(t, res.Reranked, "disabled reranker must not consult the model")
	}
}

func TestRerankerSingleCandidateSkipsModel(t *testing.T) {
	scorer := &fakeScorer{fail: true} // would fail if called
	r := NewReranker(scorer, true, 2)
	r.now = newRerankerNow()

	a := chunkResult("https://a.com", 0, "single result", daysBefore(1))
	out := r.FilterAndRerank(context.Background(), "single", []*ScoredResult{a})
	require.Len(t, out, 1)
	assert.False(t, out[0].Reranked)
}

func TestRerankerPerURLCap(t *testing.T) {
	r := NewReranker(nil, false, 2)
	r.now = newRerankerNow()

	var candidates []*ScoredResult
	for i := 0; i < 4; i++ {
		candidates = append(candidates, chunkResult("https://a.com", i, "chunk text", daysBefore(1)))
	}
	candidates = append(candidates, chunkResult("https://b.com", 0, "other page", daysBefore(1)))

	out := r.FilterAndRerank(context.Background(), "query words", candidates)

	perURL := map[string]int{}
	for _, res := range out {
		perURL[res.Chunk.URL]++
	}
	assert.Equal(t, 2, perURL["https://a.com"])
	assert.Equal(t, 1, perURL["https://b.com"])
}

func TestRerankerDedupesExactChunks(t *testing.T) {
	r := NewReranker(nil, false, 2)
	r.now = newRerankerNow()

	a1 := chunkResult("https://a.com", 0, "duplicate chunk", daysBefore(1))
	a2 := chunkResult("https://a.com", 0, "duplicate chunk", daysBefore(1))

	out := r.FilterAndRerank(context.Background(), "duplicate", []*ScoredResult{a1, a2})
	assert.Len(t, out, 1)
}

func TestKeywordOverlap(t *testing.T) {
	assert.InDelta(t, 1.0, keywordOverlap([]string{"rust", "async"}, "rust async runtime"), 1e-9)
	assert.InDelta(t, 0.5, keywordOverlap([]string{"rust", "async"}, "rust only here"), 1e-9)
	assert.InDelta(t, 0.0, keywordOverlap([]string{"rust"}, "nothing relevant"), 1e-9)
	assert.InDelta(t, defaultRerankScore, keywordOverlap(nil, "any text"), 1e-9)
}

func TestRerankerEmptyInput(t *testing.T) {
	r := NewReranker(nil, false, 2)
	out := r.FilterAndRerank(context.Background(), "query", nil)
	assert.Empty(t, out)
}
