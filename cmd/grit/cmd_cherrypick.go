package main

import (
	"fmt"
	"os"

	"github.com/gritvcs/grit/pkg/repo"
	"github.com/spf13/cobra"
)

func newCherryPickCmd() *cobra.Command {
	var abort, cont, skip, noCommit bool

	cmd := &cobra.Command{
		Use:   "cherry-pick <rev>...",
		Short: "Apply the changes of existing commits onto HEAD",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := repo.Open(".")
			if err != nil {
				return err
			}
			if done, err := runRewriteControl(cmd, r, abort, cont, skip); done {
				return err
			}
			if len(args) == 0 {
				return fmt.Errorf("cherry-pick: revision required")
			}

			res, err := r.CherryPick(args, os.Getenv("USER"), noCommit)
			if err != nil {
				return err
			}
			return printRewriteResult(cmd, res)
		},
	}
	cmd.Flags().BoolVar(&abort, "abort", false, "abort the in-progress cherry-pick")
	cmd.Flags().BoolVar(&cont, "continue", false, "resume after resolving conflicts")
	cmd.Flags().BoolVar(&skip, "skip", false, "skip the conflicted commit and resume")
	cmd.Flags().BoolVarP(&noCommit, "no-commit", "n", false, "apply changes without committing")
	return cmd
}

// runRewriteControl handles the shared --abort/--continue/--skip flags of
// the rewrite commands. It reports whether a control flag consumed the run.
func runRewriteControl(cmd *cobra.Command, r *repo.Repo, abort, cont, skip bool) (bool, error) {
	switch {
	case abort:
		return true, r.Abort()
	case cont:
		res, err := r.Continue()
		if err != nil {
			return true, err
		}
		return true, printRewriteResult(cmd, res)
	case skip:
		res, err := r.Skip()
		if err != nil {
			return true, err
		}
		return true, printRewriteResult(cmd, res)
	}
	return false, nil
}

// printRewriteResult reports the outcome of a rewrite run. A paused run
// returns an error so the command exits non-zero while the persisted state
// stays resumable.
func printRewriteResult(cmd *cobra.Command, res *repo.RewriteResult) error {
	out := cmd.OutOrStdout()
	for _, h := range res.NewCommits {
		fmt.Fprintf(out, "%s: %s\n", res.Kind, h.Short())
	}
	if res.Done {
		return nil
	}
	for _, c := range res.Conflicts {
		fmt.Fprintf(out, "CONFLICT (%s): %s\n", c.Type, c.Path)
	}
	return fmt.Errorf("%s stopped at %s; fix conflicts and run 'grit %s --continue'",
		res.Kind, res.Stopped.Short(), res.Kind)
}
