package search

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aryan-at-ul/Browser-history-as-chats-and-trends/internal/embed"
)

func newTestProcessor() *Processor {
	p := NewProcessor(embed.NewStaticEmbedder(32))
	p.now = func() time.Time {
		return time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	}
	return p
}

func TestProcessTimeExpressions(t *testing.T) {
	p := newTestProcessor()
	ctx := context.Background()

	tests := []struct {
		query string
		want  TimeType
		value int
	}{
		{"what did I read today", TimeToday, 0},
		{"articles from yesterday", TimeYesterday, 0},
		{"news this week", TimeThisWeek, 0},
		{"docs from the past week", TimeThisWeek, 0},
		{"stuff from last week", TimeLastWeek, 0},
		{"browsing this month", TimeThisMonth, 0},
		{"pages from last month", TimeLastMonth, 0},
		{"everything this year", TimeThisYear, 0},
		{"recently visited sites", TimeRecent, 0},
		{"pages from 3 days ago", TimeDaysAgo, 3},
		{"pages from 10 days ago", TimeDaysAgo, 10},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			intent := p.Process(ctx, tt.query)
			require.NotNil(t, intent.TimeInfo, "expected time info for %q", tt.query)
			assert.Equal(t, tt.want, intent.TimeInfo.Type)
			if tt.value > 0 {
				assert.Equal(t, tt.value, intent.TimeInfo.Value)
			}
		})
	}
}

func TestProcessImplicitRecency(t *testing.T) {
	p := newTestProcessor()
	ctx := context.Background()

	for _, q := range []string{
		"what have I been reading about rust",
		"show me what I looked at",
		"topics I explored",
		"websites I visited",
	} {
		intent := p.Process(ctx, q)
		require.NotNil(t, intent.TimeInfo, "query %q", q)
		assert.Equal(t, TimeRecent, intent.TimeInfo.Type, "query %q", q)
	}
}

func TestProcessNoTimeInfo(t *testing.T) {
	p := newTestProcessor()

	intent := p.Process(context.Background(), "golang error handling patterns")
	assert.Nil(t, intent.TimeInfo)
}

func TestProcessDaysAgoOutOfRange(t *testing.T) {
	p := newTestProcessor()

	intent := p.Process(context.Background(), "pages from 400 days ago")
	if intent.TimeInfo != nil {
		assert.NotEqual(t, TimeDaysAgo, intent.TimeInfo.Type)
	}
}

func TestProcessCleaningAndTerms(t *testing.T) {
	p := newTestProcessor()

	intent := p.Process(context.Background(), "What's the BEST way to learn Kubernetes?!")
	assert.Equal(t, "what s the best way to learn kubernetes", intent.CleanedQuery)
	assert.Contains(t, intent.KeyTerms, "best")
	assert.Contains(t, intent.KeyTerms, "learn")
	assert.Contains(t, intent.KeyTerms, "kubernetes")
	assert.NotContains(t, intent.KeyTerms, "the")
	assert.NotContains(t, intent.KeyTerms, "what")
}

func TestProcessEmptyQuery(t *testing.T) {
	p := newTestProcessor()

	intent := p.Process(context.Background(), "")
	assert.Equal(t, "", intent.CleanedQuery)
	assert.Empty(t, intent.KeyTerms)
	assert.Nil(t, intent.TimeInfo)
	require.Len(t, intent.Embedding, 32)
	for _, x := range intent.Embedding {
		assert.Zero(t, x)
	}
}

func TestExtractKeywords(t *testing.T) {
	terms := ExtractKeywords("How do I configure the nginx reverse proxy")
	assert.Equal(t, []string{"configure", "nginx", "reverse", "proxy"}, terms)

	assert.Empty(t, ExtractKeywords(""))
	assert.Empty(t, ExtractKeywords("is it in an"))
}
