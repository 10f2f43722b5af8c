package main

import (
	"fmt"
	"os"

	"github.com/gritvcs/grit/pkg/repo"
	"github.com/spf13/cobra"
)

func newRebaseCmd() *cobra.Command {
	var abort, cont, skip bool
	var onto string

	cmd := &cobra.Command{
		Use:   "rebase <upstream>",
		Short: "Replay the current branch on top of another revision",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := repo.Open(".")
			if err != nil {
				return err
			}
			if done, err := runRewriteControl(cmd, r, abort, cont, skip); done {
				return err
			}
			if len(args) != 1 {
				return fmt.Errorf("rebase: target revision required")
			}

			res, err := r.Rebase(args[0], onto, os.Getenv("USER"))
			if err != nil {
				return err
			}
			if err := printRewriteResult(cmd, res); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "rebase complete")
			return nil
		},
	}
	cmd.Flags().StringVar(&onto, "onto", "", "replay onto this revision instead of <upstream>")
	cmd.Flags().BoolVar(&abort, "abort", false, "abort the in-progress rebase")
	cmd.Flags().BoolVar(&cont, "continue", false, "resume after resolving conflicts")
	cmd.Flags().BoolVar(&skip, "skip", false, "skip the conflicted commit and resume")
	return cmd
}
