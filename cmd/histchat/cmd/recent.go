package cmd

import (
	"github.com/spf13/cobra"

	"github.com/aryan-at-ul/Browser-history-as-chats-and-trends/internal/output"
)

func newRecentCmd() *cobra.Command {
	var limit int
	var domain string

	cmd := &cobra.Command{
		Use:   "recent",
		Short: "List recently visited pages",
		Long: `List the most recently visited pages, newest first.

Examples:
  histchat recent
  histchat recent --limit 20
  histchat recent --domain github.com`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := openEngine(false)
			if err != nil {
				return err
			}
			defer e.close()

			ctx := cmd.Context()
			out := output.New(cmd.OutOrStdout())

			if domain != "" {
				entries, err := e.metadata.DomainHistory(ctx, domain, limit)
				if err != nil {
					return err
				}
				out.History(entries)
				return nil
			}

			entries, err := e.metadata.RecentHistory(ctx, limit)
			if err != nil {
				return err
			}
			out.History(entries)
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "Maximum number of entries")
	cmd.Flags().StringVarP(&domain, "domain", "d", "", "Only entries from this domain")

	return cmd
}
