package search

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/aryan-at-ul/Browser-history-as-chats-and-trends/internal/store"
)

// ResultCache persists full result snapshots keyed by a hash of the raw
// query text. Entries are overwritten on write but never invalidated, so a
// hit after re-indexing can serve a stale snapshot until the same query is
// searched again.
type ResultCache struct {
	metadata store.MetadataStore
	enabled  bool
}

// NewResultCache creates a result cache. When enabled is false, Get always
// misses and Put is a no-op.
func NewResultCache(metadata store.MetadataStore, enabled bool) *ResultCache {
	return &ResultCache{metadata: metadata, enabled: enabled}
}

// QueryHash returns the cache key for a raw query.
func QueryHash(query string) string {
	sum := sha256.Sum256([]byte(query))
	return hex.EncodeToString(sum[:])
}

// Get returns the cached results for a query, or (nil, false) on a miss.
// Corrupt entries are treated as misses.
func (c *ResultCache) Get(ctx context.Context, query string) ([]*ScoredResult, bool) {
	if !c.enabled {
		return nil, false
	}

	data, err := c.metadata.GetSearchCache(ctx, QueryHash(query))
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			slog.Warn("search cache read failed", "error", err)
		}
		return nil, false
	}

	var results []*ScoredResult
	if err := json.Unmarshal(data, &results); err != nil {
		slog.Warn("search cache entry corrupt, ignoring", "error", err)
		return nil, false
	}
	return results, true
}

// Put stores the results for a query. Failures are logged, not returned:
// caching is best-effort.
func (c *ResultCache) Put(ctx context.Context, query string, results []*ScoredResult) {
	if !c.enabled {
		return
	}

	data, err := json.Marshal(results)
	if err != nil {
		slog.Warn("search cache encode failed", "error", err)
		return
	}
	if err := c.metadata.PutSearchCache(ctx, QueryHash(query), data); err != nil {
		slog.Warn("search cache write failed", "error", err)
	}
}
