package cmd

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitChunksShortText(t *testing.T) {
	chunks := splitChunks("short paragraph", 1200)
	assert.Equal(t, []string{"short paragraph"}, chunks)
}

func TestSplitChunksParagraphBoundaries(t *testing.T) {
	para := strings.Repeat("word ", 100) // ~500 chars
	text := strings.TrimSpace(strings.Repeat(para+"\n\n", 5))

	chunks := splitChunks(text, 1200)
	require.Greater(t, len(chunks), 1)
	for _, c := range chunks {
		assert.LessOrEqual(t, len(c), 1300, "chunks stay near the target size")
		assert.NotEmpty(t, strings.TrimSpace(c))
	}
}

func TestSplitChunksOversizedParagraph(t *testing.T) {
	text := strings.Repeat("x", 3000)
	chunks := splitChunks(text, 1200)
	require.Len(t, chunks, 3)
	assert.Len(t, chunks[0], 1200)
	assert.Len(t, chunks[1], 1200)
	assert.Len(t, chunks[2], 600)
}

func TestDomainOf(t *testing.T) {
	assert.Equal(t, "github.com", domainOf("https://github.com/golang/go"))
	assert.Equal(t, "news.ycombinator.com", domainOf("https://news.ycombinator.com/item?id=1"))
	assert.Equal(t, "", domainOf("://not a url"))
}
