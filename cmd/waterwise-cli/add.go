package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"waterwise/internal/cli"
	"waterwise/internal/core"
)

func newAddCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "add <ml>",
		Short: "Record a drink of the given size in millilitres",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("amount must be a whole number of millilitres: %q", args[0])
			}
			return opts.withApp(cmd, func(ctx context.Context, app *cli.App) error {
				event, view, err := app.Service.AddIntake(ctx, amount)
				synced := true
				if errors.Is(err, core.ErrSyncFailure) {
					synced = false
				} else if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				if opts.asJSON {
					return writeJSON(out, map[string]any{"event": event, "today": view, "synced": synced})
				}
				fmt.Fprintf(out, "Added %d ml at %s. Today: %d/%d ml (%d%%)\n",
					event.Amount, event.Time, view.IntakeTotal, view.Goal, view.Percentage)
				if !synced {
					fmt.Fprintln(cmd.ErrOrStderr(), "Warning: saved locally, remote sync failed")
				}
				return nil
			})
		},
	}
}
