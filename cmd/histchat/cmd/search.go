package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aryan-at-ul/Browser-history-as-chats-and-trends/internal/output"
)

// searchOptions holds CLI flags for search.
type searchOptions struct {
	limit  int
	format string // "text", "json"
}

func newSearchCmd() *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search indexed browsing history",
		Long: `Search browsing history using hybrid retrieval.

Combines vector similarity and keyword matching with score fusion and a
recency boost. Temporal phrases in the query ("yesterday", "this week",
"3 days ago") narrow results to that time frame.

Examples:
  histchat search "rust async runtime"
  histchat search "docker articles this week" --limit 5
  histchat search "kubernetes" --format json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			return runSearch(cmd.Context(), cmd, query, opts)
		},
	}

	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 10, "Maximum number of results")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")

	return cmd
}

func runSearch(ctx context.Context, cmd *cobra.Command, query string, opts searchOptions) error {
	e, err := openEngine(false)
	if err != nil {
		return err
	}
	defer e.close()

	slog.Info("search started", "query", query, "limit", opts.limit)

	intent := e.processor.Process(ctx, query)
	results := e.retriever.Search(ctx, intent, opts.limit)

	slog.Info("search complete", "query", query, "results", len(results))

	out := output.New(cmd.OutOrStdout())
	switch opts.format {
	case "json":
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	case "text":
		out.Results(results)
		return nil
	default:
		return fmt.Errorf("unknown format %q (want text or json)", opts.format)
	}
}
