package main

import (
	"fmt"

	"github.com/gritvcs/grit/pkg/diff"
	"github.com/gritvcs/grit/pkg/repo"
	"github.com/spf13/cobra"
)

func newDiffCmd() *cobra.Command {
	var staged bool
	var cached bool
	var context int

	cmd := &cobra.Command{
		Use:   "diff [<old-rev> <new-rev>]",
		Short: "Show changes as a unified diff",
		Args:  cobra.RangeArgs(0, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := repo.Open(".")
			if err != nil {
				return err
			}

			var diffs []*diff.FileDiff
			switch {
			case len(args) == 2:
				diffs, err = r.DiffCommits(args[0], args[1], context)
			case len(args) == 1:
				diffs, err = r.DiffCommits(args[0], "HEAD", context)
			case staged || cached:
				diffs, err = r.DiffStaged(context)
			default:
				diffs, err = r.DiffWorktree(context)
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, d := range diffs {
				fmt.Fprint(out, d.Unified())
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&staged, "staged", false, "diff HEAD against the staging area")
	cmd.Flags().BoolVar(&cached, "cached", false, "alias for --staged")
	cmd.Flags().IntVarP(&context, "context", "U", diff.DefaultContext, "lines of context around changes")
	return cmd
}
