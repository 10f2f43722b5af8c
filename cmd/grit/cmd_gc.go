package main

import (
	"fmt"
	"time"

	"github.com/gritvcs/grit/pkg/repo"
	"github.com/spf13/cobra"
)

func newGCCmd() *cobra.Command {
	var grace time.Duration
	var reflogRetention time.Duration
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "gc",
		Short: "Delete unreachable objects",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := repo.Open(".")
			if err != nil {
				return err
			}

			summary, err := r.GC(repo.GCOptions{
				GracePeriod:     grace,
				ReflogRetention: reflogRetention,
				DryRun:          dryRun,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			verb := "deleted"
			if dryRun {
				verb = "would delete"
			}
			fmt.Fprintf(out, "scanned %d objects, %d reachable, %s %d, %d in grace period\n",
				summary.Scanned, summary.Reachable, verb, summary.Deleted, summary.Skipped)
			if summary.ReflogsPruned > 0 {
				fmt.Fprintf(out, "pruned %d reflog entries\n", summary.ReflogsPruned)
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&grace, "grace", 0, "protect unreachable objects newer than this (default 24h)")
	cmd.Flags().DurationVar(&reflogRetention, "reflog-retention", 0, "keep reflog entries newer than this (default 2160h)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report without deleting")
	return cmd
}
