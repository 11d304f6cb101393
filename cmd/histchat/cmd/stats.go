package cmd

import (
	"github.com/spf13/cobra"

	"github.com/aryan-at-ul/Browser-history-as-chats-and-trends/internal/output"
)

func newStatsCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show browsing statistics by domain",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := openEngine(false)
			if err != nil {
				return err
			}
			defer e.close()

			stats, err := e.metadata.DomainStats(cmd.Context(), limit)
			if err != nil {
				return err
			}

			out := output.New(cmd.OutOrStdout())
			out.DomainStats(stats)
			if e.index != nil {
				out.Newline()
				out.Statusf("", "vector index: %d chunks", e.index.Count())
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of domains")

	return cmd
}
