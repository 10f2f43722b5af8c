package main

import (
	"fmt"
	"os"

	"github.com/gritvcs/grit/pkg/repo"
	"github.com/spf13/cobra"
)

func newMergeCmd() *cobra.Command {
	var abort bool
	var cont bool
	var listConflicts bool

	cmd := &cobra.Command{
		Use:   "merge [rev]",
		Short: "Merge a branch or commit into the current branch",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := repo.Open(".")
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if abort {
				return r.Abort()
			}
			if listConflicts {
				pending, err := r.PendingOperation()
				if err != nil {
					return err
				}
				if pending == nil {
					return fmt.Errorf("merge: no operation in progress")
				}
				for _, p := range pending.Conflicted {
					fmt.Fprintln(out, p)
				}
				return nil
			}
			if cont {
				res, err := r.Continue()
				if err != nil {
					return err
				}
				if len(res.NewCommits) > 0 {
					fmt.Fprintf(out, "merge committed as %s\n", res.NewCommits[0].Short())
				}
				return nil
			}

			if len(args) != 1 {
				return fmt.Errorf("merge: revision required")
			}
			rev := args[0]

			res, err := r.Merge(rev, os.Getenv("USER"))
			if err != nil {
				return err
			}

			switch {
			case res.AlreadyUpToDate:
				fmt.Fprintln(out, "Already up to date.")
			case res.FastForward:
				fmt.Fprintf(out, "Fast-forward to %s\n", res.CommitHash.Short())
			case len(res.Conflicts) > 0:
				for _, c := range res.Conflicts {
					fmt.Fprintf(out, "CONFLICT (%s): %s\n", c.Type, c.Path)
				}
				return fmt.Errorf("automatic merge failed; fix conflicts and run 'grit merge --continue'")
			default:
				fmt.Fprintf(out, "Merge made commit %s\n", res.CommitHash.Short())
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&abort, "abort", false, "abort the in-progress merge")
	cmd.Flags().BoolVar(&cont, "continue", false, "finish the merge after resolving conflicts")
	cmd.Flags().BoolVar(&listConflicts, "conflicts", false, "list conflicted paths of the in-progress merge")
	return cmd
}
