package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/aryan-at-ul/Browser-history-as-chats-and-trends/internal/assemble"
	"github.com/aryan-at-ul/Browser-history-as-chats-and-trends/internal/config"
	"github.com/aryan-at-ul/Browser-history-as-chats-and-trends/internal/embed"
	"github.com/aryan-at-ul/Browser-history-as-chats-and-trends/internal/search"
	"github.com/aryan-at-ul/Browser-history-as-chats-and-trends/internal/store"
)

// engine bundles the wired retrieval stack for a command invocation.
type engine struct {
	cfg       config.Config
	metadata  *store.SQLiteStore
	index     *store.HNSWStore
	embedder  embed.Embedder
	processor *search.Processor
	retriever *search.Retriever
	reranker  *search.Reranker
	builder   *assemble.Builder
}

// openEngine opens the stores and wires the full pipeline. When the vector
// index has never been built the engine runs keyword-only; forWrite creates
// the index file on first use instead.
func openEngine(forWrite bool) (*engine, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	metadata, err := store.NewSQLiteStore(cfg.Paths.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}

	vectorCfg := store.VectorStoreConfig{Dimensions: cfg.Embeddings.Dimensions}
	var index *store.HNSWStore
	if forWrite {
		index, err = store.OpenHNSWStore(cfg.Paths.VectorIndexPath, vectorCfg)
		if err != nil {
			_ = metadata.Close()
			return nil, fmt.Errorf("failed to open vector index: %w", err)
		}
	} else if _, statErr := os.Stat(cfg.Paths.VectorIndexPath); statErr == nil {
		index, err = store.OpenHNSWStore(cfg.Paths.VectorIndexPath, vectorCfg)
		if err != nil {
			_ = metadata.Close()
			return nil, fmt.Errorf("failed to load vector index: %w", err)
		}
	} else {
		slog.Debug("vector index not built yet, running keyword-only")
	}

	embedder := embed.NewCachedEmbedder(
		embed.NewStaticEmbedder(cfg.Embeddings.Dimensions),
		cfg.Embeddings.CacheSize,
	)

	processor := search.NewProcessor(embedder)

	// A nil *HNSWStore must stay a nil interface inside the searcher.
	var vectorIndex store.VectorStore
	if index != nil {
		vectorIndex = index
	}

	retriever, err := search.NewRetriever(
		search.NewVectorSearcher(vectorIndex, metadata),
		search.NewKeywordSearcher(metadata),
		search.NewResultCache(metadata, cfg.Search.CacheResults),
		search.NewFusion(cfg.Search.VectorWeight, cfg.Search.KeywordWeight),
		cfg.Search.TopK,
	)
	if err != nil {
		_ = metadata.Close()
		return nil, err
	}

	// No relevance model ships with the CLI, so the scorer is nil and the
	// reranker runs its basic keyword+freshness blend. The enabled flag is
	// still threaded through so a wired-in scorer honors the config.
	reranker := search.NewReranker(nil, cfg.Rerank.Enabled, cfg.Rerank.MaxChunksPerURL)

	builder, err := assemble.NewBuilder(processor, retriever, reranker, metadata, cfg.Search.MaxContextChunks)
	if err != nil {
		_ = metadata.Close()
		return nil, err
	}

	return &engine{
		cfg:       cfg,
		metadata:  metadata,
		index:     index,
		embedder:  embedder,
		processor: processor,
		retriever: retriever,
		reranker:  reranker,
		builder:   builder,
	}, nil
}

// close releases engine resources. Index persistence errors are logged, not
// fatal: search state is rebuildable.
func (e *engine) close() {
	if e.index != nil {
		if err := e.index.Close(); err != nil {
			slog.Warn("failed to persist vector index", "error", err)
		}
	}
	if err := e.embedder.Close(); err != nil {
		slog.Warn("failed to close embedder", "error", err)
	}
	if err := e.metadata.Close(); err != nil {
		slog.Warn("failed to close database", "error", err)
	}
}
