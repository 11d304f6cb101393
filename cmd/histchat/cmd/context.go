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

func newContextCmd() *cobra.Command {
	var limit int
	var format string

	cmd := &cobra.Command{
		Use:   "context <query>",
		Short: "Assemble a context window for a query",
		Long: `Assemble a ranked, diversity-balanced context window for a query.

Runs the full pipeline: activity-summary detection, hybrid search with
reranking, domain and recency fallbacks, and per-domain balancing. This is
the context an assistant would receive for the question.

Examples:
  histchat context "what have I been reading this week"
  histchat context "articles about zig from lobste.rs"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			return runContext(cmd.Context(), cmd, query, limit, format)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 5, "Maximum number of context chunks")
	cmd.Flags().StringVarP(&format, "format", "f", "text", "Output format: text, json")

	return cmd
}

func runContext(ctx context.Context, cmd *cobra.Command, query string, limit int, format string) error {
	e, err := openEngine(false)
	if err != nil {
		return err
	}
	defer e.close()

	slog.Info("context build started", "query", query, "limit", limit)

	results := e.builder.Build(ctx, query, limit)

	slog.Info("context build complete", "query", query, "chunks", len(results))

	out := output.New(cmd.OutOrStdout())
	switch format {
	case "json":
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	case "text":
		out.Results(results)
		return nil
	default:
		return fmt.Errorf("unknown format %q (want text or json)", format)
	}
}
