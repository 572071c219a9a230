package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/alchemorsel/cookcard/internal/domain/cookcard"
)

var errNoDatabase = errors.New("no database configured; set database.driver to sqlite or postgres")

func newTierCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tier",
		Short: "Inspect and assign subscription tiers",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "get REQUESTER",
		Short: "Show the tier a requester resolves to",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithDeps(cmd.Context(), func(ctx context.Context, d commandDeps) error {
				if d.Persistence.Tiers == nil {
					return errNoDatabase
				}
				tier, err := d.Persistence.Tiers.ResolveTier(ctx, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", args[0], tier)
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "assign REQUESTER TIER",
		Short: "Assign a tier (free, plus, pro, internal) to a requester",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			tier, err := cookcard.ParseTier(args[1])
			if err != nil {
				return &exitError{code: 2, err: fmt.Errorf("%w: %q", err, args[1])}
			}
			return runWithDeps(cmd.Context(), func(ctx context.Context, d commandDeps) error {
				if d.Persistence.Tiers == nil {
					return errNoDatabase
				}
				if err := d.Persistence.Tiers.AssignTier(ctx, args[0], tier); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s is now on the %s tier\n", args[0], tier)
				return nil
			})
		},
	})

	return cmd
}
