package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"waterwise/internal/cli"
)

type opener func(ctx context.Context) (*cli.App, error)

type rootOptions struct {
	open   opener
	asJSON bool
}

func newRootCmd(open opener) *cobra.Command {
	opts := &rootOptions{open: open}
	root := &cobra.Command{
		Use:   "waterwise",
		Short: "WaterWise - track daily water intake from the terminal",
		Long: `waterwise records water intake against a daily goal and shows
per-day history since sign-up. It uses the same backend as the server,
selected with DATA_BACKEND.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().BoolVar(&opts.asJSON, "json", false, "Print JSON instead of text")

	root.AddCommand(newAddCmd(opts))
	root.AddCommand(newTodayCmd(opts))
	root.AddCommand(newHistoryCmd(opts))
	root.AddCommand(newProfileCmd(opts))
	return root
}

// withApp opens the application for one command and closes it afterwards.
func (o *rootOptions) withApp(cmd *cobra.Command, fn func(ctx context.Context, app *cli.App) error) (err error) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	app, err := o.open(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := app.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return fn(ctx, app)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func litres(ml int) string {
	return fmt.Sprintf("%.2fL", float64(ml)/1000)
}
