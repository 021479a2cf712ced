package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"xpose-triage/internal/domain/services"
)

// unchecked treats every generated ID as free; used when no database is at hand
type unchecked struct{}

func (unchecked) Exists(context.Context, string) (bool, error) { return false, nil }

func newTrackIDCommand(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trackid",
		Short: "Generate and verify tracking IDs",
	}

	var (
		count    int
		rejected bool
	)
	gen := &cobra.Command{
		Use:   "gen",
		Short: "Print new tracking IDs without reserving them",
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := services.NewTrackingIDGenerator(c.cfg.Tracking.Prefix, c.cfg.Tracking.MaxAttempts, unchecked{}, c.log)
			for i := 0; i < count; i++ {
				next := ids.NewAcceptedID
				if rejected {
					next = ids.NewRejectedID
				}
				id, err := next(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), id)
			}
			return nil
		},
	}
	gen.Flags().IntVarP(&count, "count", "n", 1, "number of IDs")
	gen.Flags().BoolVar(&rejected, "rejected", false, "generate the rejected-report shape")

	verify := &cobra.Command{
		Use:   "verify ID...",
		Short: "Check the checksum of tracking IDs",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			invalid := 0
			for _, id := range args {
				state := "valid"
				switch {
				case !services.VerifyTrackingID(id):
					state = "INVALID"
					invalid++
				case services.IsRejectedID(id):
					state = "valid (rejected)"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", id, state)
			}
			if invalid > 0 {
				return fmt.Errorf("%d of %d IDs failed verification", invalid, len(args))
			}
			return nil
		},
	}

	cmd.AddCommand(gen, verify)
	return cmd
}
