package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aryan-at-ul/Browser-history-as-chats-and-trends/internal/output"
	"github.com/aryan-at-ul/Browser-history-as-chats-and-trends/internal/store"
)

// chunkSize is the target character length of a content chunk.
const chunkSize = 1200

// importEntry is one record in a history export file.
type importEntry struct {
	URL           string `json:"url"`
	Title         string `json:"title"`
	Domain        string `json:"domain,omitempty"`
	VisitCount    int    `json:"visit_count"`
	TypedCount    int    `json:"typed_count,omitempty"`
	LastVisitTime string `json:"last_visit_time"`
	Content       string `json:"content,omitempty"`
}

func newImportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import a browsing history export",
		Long: `Import history entries from a JSON export file and index their content.

The file holds an array of entries with url, title, visit_count,
last_visit_time, and optionally extracted page content. Content is split
into chunks, embedded, and added to the vector index; entries without
content remain searchable by title and URL.

Re-importing the same URL replaces its history row.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd.Context(), cmd, args[0])
		},
	}
	return cmd
}

func runImport(ctx context.Context, cmd *cobra.Command, path string) error {
	out := output.New(cmd.OutOrStdout())

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read export file: %w", err)
	}

	var entries []importEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("failed to parse export file: %w", err)
	}
	if len(entries) == 0 {
		out.Warning("export file contains no entries")
		return nil
	}

	e, err := openEngine(true)
	if err != nil {
		return err
	}
	defer e.close()

	var pages, chunksIndexed int
	for _, entry := range entries {
		if entry.URL == "" {
			continue
		}
		if entry.Domain == "" {
			entry.Domain = domainOf(entry.URL)
		}

		hid, err := e.metadata.SaveHistory(ctx, &store.HistoryEntry{
			URL:           entry.URL,
			Title:         entry.Title,
			Domain:        entry.Domain,
			VisitCount:    entry.VisitCount,
			TypedCount:    entry.TypedCount,
			LastVisitTime: entry.LastVisitTime,
		})
		if err != nil {
			return fmt.Errorf("failed to import %s: %w", entry.URL, err)
		}
		pages++

		if strings.TrimSpace(entry.Content) == "" {
			continue
		}

		cid, err := e.metadata.SaveContent(ctx, hid, entry.Content)
		if err != nil {
			return fmt.Errorf("failed to store content for %s: %w", entry.URL, err)
		}

		chunks := splitChunks(entry.Content, chunkSize)
		if err := e.metadata.SaveChunks(ctx, cid, chunks); err != nil {
			return fmt.Errorf("failed to store chunks for %s: %w", entry.URL, err)
		}

		vectors, err := e.embedder.EmbedBatch(ctx, chunks)
		if err != nil {
			return fmt.Errorf("failed to embed content for %s: %w", entry.URL, err)
		}
		for i, vec := range vectors {
			if err := e.index.Add(ctx, store.ChunkKey(entry.URL, i), vec); err != nil {
				return fmt.Errorf("failed to index chunk %d of %s: %w", i, entry.URL, err)
			}
			chunksIndexed++
		}
	}

	if err := e.index.Save(ctx); err != nil {
		return fmt.Errorf("failed to persist vector index: %w", err)
	}

	out.Successf("imported %d pages, indexed %d chunks", pages, chunksIndexed)
	return nil
}

// splitChunks breaks text into chunks near the target size, preferring
// paragraph boundaries so chunks stay coherent.
func splitChunks(text string, target int) []string {
	text = strings.TrimSpace(text)
	if len(text) <= target {
		return []string{text}
	}

	var chunks []string
	var current strings.Builder
	for _, para := range strings.Split(text, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		if current.Len() > 0 && current.Len()+len(para) > target {
			chunks = append(chunks, current.String())
			current.Reset()
		}
		// Oversized paragraphs are split hard.
		for len(para) > target {
			chunks = append(chunks, para[:target])
			para = para[target:]
		}
		if para != "" {
			if current.Len() > 0 {
				current.WriteString("\n\n")
			}
			current.WriteString(para)
		}
	}
	if current.Len() > 0 {
		chunks = append(chunks, current.String())
	}
	if len(chunks) == 0 {
		chunks = []string{text}
	}
	return chunks
}

// domainOf extracts the host from a URL, or empty on parse failure.
func domainOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return u.Hostname()
}
