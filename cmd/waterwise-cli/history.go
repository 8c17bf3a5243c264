package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"waterwise/internal/cli"
)

func newHistoryCmd(opts *rootOptions) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show daily totals since sign-up, most recent first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, app *cli.App) error {
				records := app.Service.History(ctx)
				if limit > 0 && len(records) > limit {
					records = records[:limit]
				}

				out := cmd.OutOrStdout()
				if opts.asJSON {
					return writeJSON(out, records)
				}
				for _, r := range records {
					fmt.Fprintf(out, "%s  %6d ml  %3d%%\n", r.Date, r.Intake, r.Percentage)
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 30, "Number of days to show (0 for all)")
	return cmd
}
