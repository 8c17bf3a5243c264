package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"waterwise/internal/cli"
)

func newTodayCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "today",
		Short: "Show today's intake, progress and drinks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, app *cli.App) error {
				view, err := app.Service.Today(ctx)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				if opts.asJSON {
					return writeJSON(out, view)
				}
				fmt.Fprintf(out, "%s  %s of %s  %s (%s)\n",
					view.Date, litres(view.IntakeTotal), litres(view.Goal),
					strings.ReplaceAll(view.Label, "\n", " "), view.Mood)
				for _, e := range view.Events {
					fmt.Fprintf(out, "  %s  %5d ml\n", e.Time, e.Amount)
				}
				return nil
			})
		},
	}
}
