package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"waterwise/internal/cli"
	"waterwise/internal/core"
)

func newProfileCmd(opts *rootOptions) *cobra.Command {
	var (
		name   string
		goal   int
		weight int
		gender string
	)
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Show the profile, or update it with flags",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, app *cli.App) error {
				p, err := app.Service.Profile(ctx)
				if err != nil {
					return err
				}

				flags := cmd.Flags()
				if flags.Changed("name") || flags.Changed("goal") || flags.Changed("weight") || flags.Changed("gender") {
					if flags.Changed("name") {
						p.Name = name
					}
					if flags.Changed("goal") {
						p.Goal = goal
					}
					if flags.Changed("weight") {
						p.Weight = weight
					}
					if flags.Changed("gender") {
						p.Gender = gender
					}
					if p, err = app.Service.UpdateProfile(ctx, p); err != nil {
						return err
					}
				}

				return printProfile(cmd, opts, p)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Display name")
	cmd.Flags().IntVar(&goal, "goal", 0, fmt.Sprintf("Daily goal in ml (%d-%d)", core.MinGoal, core.MaxGoal))
	cmd.Flags().IntVar(&weight, "weight", 0, fmt.Sprintf("Weight in kg (1-%d)", core.MaxWeight))
	cmd.Flags().StringVar(&gender, "gender", "", "Gender")
	return cmd
}

func printProfile(cmd *cobra.Command, opts *rootOptions, p core.Profile) error {
	out := cmd.OutOrStdout()
	if opts.asJSON {
		return writeJSON(out, p)
	}
	fmt.Fprintf(out, "Name:     %s\n", p.Name)
	fmt.Fprintf(out, "Goal:     %d ml\n", p.Goal)
	fmt.Fprintf(out, "Weight:   %d kg\n", p.Weight)
	fmt.Fprintf(out, "Gender:   %s\n", p.Gender)
	fmt.Fprintf(out, "Since:    %s\n", p.SignUpDate)
	return nil
}
