package embed

import (
	"context"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticEmbedderDeterministic(t *testing.T) {
	e := NewStaticEmbedder(0)
	ctx := context.Background()

	a, err := e.Embed(ctx, "golang concurrency patterns")
	require.NoError(t, err)
	b, err := e.Embed(ctx, "golang concurrency patterns")
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Len(t, a, DefaultDimensions)
}

func TestStaticEmbedderEmptyInput(t *testing.T) {
	e := NewStaticEmbedder(64)
	ctx := context.Background()

	for _, text := range []string{"", "   ", "\n\t"} {
		vec, err := e.Embed(ctx, text)
		require.NoError(t, err)
		assert.Len(t, vec, 64)
		for _, x := range vec {
			assert.Zero(t, x)
		}
	}
}

func TestStaticEmbedderNormalized(t *testing.T) {
	e := NewStaticEmbedder(128)

	vec, err := e.Embed(context.Background(), "vector databases and similarity search")
	require.NoError(t, err)

	var sum float64
	for _, x := range vec {
		sum += float64(x) * float64(x)
	}
	assert.InDelta(t, 1.0, math.Sqrt(sum), 1e-5)
}

func TestStaticEmbedderDifferentTextsDiffer(t *testing.T) {
	e := NewStaticEmbedder(0)
	ctx := context.Background()

	a, err := e.Embed(ctx, "cooking pasta recipes")
	require.NoError(t, err)
	b, err := e.Embed(ctx, "kubernetes cluster networking")
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestStaticEmbedderBatch(t *testing.T) {
	e := NewStaticEmbedder(0)
	ctx := context.Background()

	texts := []string{"first text", "second text", ""}
	vecs, err := e.EmbedBatch(ctx, texts)
	require.NoError(t, err)
	require.Len(t, vecs, 3)

	single, err := e.Embed(ctx, "second text")
	require.NoError(t, err)
	assert.Equal(t, single, vecs[1])
}

func TestStaticEmbedderClosed(t *testing.T) {
	e := NewStaticEmbedder(0)
	require.NoError(t, e.Close())

	assert.False(t, e.Available(context.Background()))
	_, err := e.Embed(context.Background(), "anything")
	assert.Error(t, err)
}

// countingEmbedder wraps StaticEmbedder and counts Embed calls.
type countingEmbedder struct {
	*StaticEmbedder
	mu    sync.Mutex
	calls int
}

func (c *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	return c.StaticEmbedder.Embed(ctx, text)
}

func (c *countingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := c.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

func TestCachedEmbedderAvoidsRecompute(t *testing.T) {
	inner := &countingEmbedder{StaticEmbedder: NewStaticEmbedder(0)}
	cached := NewCachedEmbedder(inner, 10)
	ctx := context.Background()

	a, err := cached.Embed(ctx, "repeated query")
	require.NoError(t, err)
	b, err := cached.Embed(ctx, "repeated query")
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Equal(t, 1, inner.calls)
}

func TestCachedEmbedderBatchMixedHits(t *testing.T) {
	inner := &countingEmbedder{StaticEmbedder: NewStaticEmbedder(0)}
	cached := NewCachedEmbedder(inner, 10)
	ctx := context.Background()

	_, err := cached.Embed(ctx, "warm")
	require.NoError(t, err)
	require.Equal(t, 1, inner.calls)

	vecs, err := cached.EmbedBatch(ctx, []string{"warm", "cold one", "cold two"})
	require.NoError(t, err)
	require.Len(t, vecs, 3)
	assert.Equal(t, 3, inner.calls, "only the two cold texts hit the inner embedder")
}

func TestCachedEmbedderPassthrough(t *testing.T) {
	inner := NewStaticEmbedder(32)
	cached := NewCachedEmbedder(inner, 0)

	assert.Equal(t, 32, cached.Dimensions())
	assert.Equal(t, "static", cached.ModelName())
	assert.True(t, cached.Available(context.Background()))
}
