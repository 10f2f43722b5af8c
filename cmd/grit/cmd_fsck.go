package main

import (
	"fmt"

	"github.com/gritvcs/grit/pkg/repo"
	"github.com/spf13/cobra"
)

func newFsckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fsck",
		Short: "Verify object store integrity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := repo.Open(".")
			if err != nil {
				return err
			}

			report, err := r.Fsck()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, issue := range report.Issues {
				fmt.Fprintf(out, "%s: %s\n", issue.Hash.Short(), issue.Problem)
			}
			if len(report.Issues) > 0 {
				return fmt.Errorf("fsck: %d problem(s) in %d objects", len(report.Issues), report.Objects)
			}
			fmt.Fprintf(out, "checked %d objects, no problems found\n", report.Objects)
			return nil
		},
	}
}
