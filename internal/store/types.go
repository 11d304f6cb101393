// Package store provides persistent storage for browsing history metadata
// and content vectors.
package store

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotFound indicates a requested record does not exist.
var ErrNotFound = errors.New("not found")

// HistoryEntry is a single browsing history record.
type HistoryEntry struct {
	ID            int64  `json:"id"`
	URL           string `json:"url"`
	Title         string `json:"title"`
	Domain        string `json:"domain"`
	VisitCount    int    `json:"visit_count"`
	TypedCount    int    `json:"typed_count"`
	LastVisitTime string `json:"last_visit_time"`
}

// DomainStat aggregates browsing activity for one domain.
type DomainStat struct {
	Domain      string `json:"domain"`
	PageCount   int    `json:"page_count"`
	TotalVisits int    `json:"total_visits"`
}

// ChunkRecord is a retrievable unit of page content joined with its history
// metadata. A page's extracted text is split into ordered chunks; the pair
// (URL, ChunkIndex) identifies a chunk across both stores.
type ChunkRecord struct {
	HistoryID     int64             `json:"history_id"`
	ContentID     int64             `json:"content_id"`
	URL           string            `json:"url"`
	Domain        string            `json:"domain"`
	Title         string            `json:"title"`
	ChunkIndex    int               `json:"chunk_index"`
	ChunkText     string            `json:"chunk_text"`
	LastVisitTime string            `json:"last_visit_time"`
	VisitCount    int               `json:"visit_count"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// Key returns the identity key for this chunk.
func (c *ChunkRecord) Key() string {
	return ChunkKey(c.URL, c.ChunkIndex)
}

// ChunkKey builds the identity key shared by the metadata store and the
// vector index for a (url, chunk index) pair.
func ChunkKey(url string, chunkIndex int) string {
	return fmt.Sprintf("%s#%d", url, chunkIndex)
}

// MetadataStore persists history entries, page content chunks, and the
// search result cache.
type MetadataStore interface {
	// SaveHistory upserts a history entry keyed by URL and returns its row id.
	SaveHistory(ctx context.Context, entry *HistoryEntry) (int64, error)

	// SaveContent stores extracted page text for a history row and returns
	// the content id.
	SaveContent(ctx context.Context, historyID int64, contentData string) (int64, error)

	// SaveChunks stores ordered text chunks for a content row.
	SaveChunks(ctx context.Context, contentID int64, chunks []string) error

	// GetChunksByKeys resolves chunk identity keys to full records, in input
	// order. Keys with no matching row are silently skipped.
	GetChunksByKeys(ctx context.Context, keys []string) ([]*ChunkRecord, error)

	// SearchChunksByTerms finds chunks whose text, title, or URL contains any
	// of the given terms, newest first, up to limit.
	SearchChunksByTerms(ctx context.Context, terms []string, limit int) ([]*ChunkRecord, error)

	// RecentHistory returns the most recently visited history entries.
	RecentHistory(ctx context.Context, limit int) ([]*HistoryEntry, error)

	// DomainHistory returns history entries whose URL contains the domain.
	DomainHistory(ctx context.Context, domain string, limit int) ([]*HistoryEntry, error)

	// DomainStats aggregates page and visit counts per domain.
	DomainStats(ctx context.Context, limit int) ([]*DomainStat, error)

	// GetSearchCache returns the cached result blob for a query hash, or
	// ErrNotFound.
	GetSearchCache(ctx context.Context, queryHash string) ([]byte, error)

	// PutSearchCache stores (or overwrites) the result blob for a query hash.
	PutSearchCache(ctx context.Context, queryHash string, results []byte) error

	// Close releases database resources.
	Close() error
}

// VectorResult is a nearest-neighbor match from the vector index.
// Distance is the raw metric distance; lower is closer.
type VectorResult struct {
	Key      string
	Distance float32
}

// VectorStoreConfig configures a vector index.
type VectorStoreConfig struct {
	// Dimensions is the embedding dimension. Required.
	Dimensions int
	// Metric is the distance metric ("l2" or "cosine"). Default: l2.
	Metric string
	// M is the HNSW connectivity parameter. Default: 16.
	M int
	// EfSearch is the HNSW search depth. Default: 20.
	EfSearch int
}

// VectorStore indexes embeddings under chunk identity keys.
type VectorStore interface {
	// Add indexes a vector under the given key, replacing any existing entry.
	Add(ctx context.Context, key string, vector []float32) error

	// Search returns up to k nearest neighbors, closest first.
	Search(ctx context.Context, vector []float32, k int) ([]VectorResult, error)

	// Delete removes a key from the index.
	Delete(ctx context.Context, key string) error

	// Count returns the number of live vectors.
	Count() int

	// Save persists the index to disk.
	Save(ctx context.Context) error

	// Close persists and releases the index.
	Close() error
}

// ErrDimensionMismatch indicates a vector's dimension does not match the
// index configuration.
type ErrDimensionMismatch struct {
	Expected int
	Got      int
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("vector dimension mismatch: expected %d, got %d", e.Expected, e.Got)
}
