package main

import (
	"fmt"
	"os"

	"github.com/gritvcs/grit/pkg/repo"
	"github.com/spf13/cobra"
)

func newRevertCmd() *cobra.Command {
	var abort, cont, skip, noCommit bool

	cmd := &cobra.Command{
		Use:   "revert <rev>...",
		Short: "Create commits undoing the changes of existing commits",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := repo.Open(".")
			if err != nil {
				return err
			}
			if done, err := runRewriteControl(cmd, r, abort, cont, skip); done {
				return err
			}
			if len(args) == 0 {
				return fmt.Errorf("revert: revision required")
			}

			res, err := r.Revert(args, os.Getenv("USER"), noCommit)
			if err != nil {
				return err
			}
			return printRewriteResult(cmd, res)
		},
	}
	cmd.Flags().BoolVar(&abort, "abort", false, "abort the in-progress revert")
	cmd.Flags().BoolVar(&cont, "continue", false, "resume after resolving conflicts")
	cmd.Flags().BoolVar(&skip, "skip", false, "skip the conflicted commit and resume")
	cmd.Flags().BoolVarP(&noCommit, "no-commit", "n", false, "apply changes without committing")
	return cmd
}
