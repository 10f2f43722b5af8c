package main

import (
	"fmt"

	"github.com/gritvcs/grit/pkg/repo"
	"github.com/spf13/cobra"
)

func newBranchCmd() *cobra.Command {
	var delete_ bool

	cmd := &cobra.Command{
		Use:   "branch [name] [start-rev]",
		Short: "List, create, or delete branches",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := repo.Open(".")
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if len(args) == 0 {
				if delete_ {
					return fmt.Errorf("branch name required with -d")
				}
				current, _ := r.CurrentBranch()
				branches, err := r.ListBranches()
				if err != nil {
					return err
				}
				for _, b := range branches {
					marker := "  "
					if b == current {
						marker = "* "
					}
					fmt.Fprintf(out, "%s%s\n", marker, b)
				}
				return nil
			}

			name := args[0]
			if delete_ {
				return r.DeleteBranch(name)
			}

			startRev := "HEAD"
			if len(args) == 2 {
				startRev = args[1]
			}
			target, err := r.ResolveCommit(startRev)
			if err != nil {
				return err
			}
			return r.CreateBranch(name, target)
		},
	}
	cmd.Flags().BoolVarP(&delete_, "delete", "d", false, "delete the branch")
	return cmd
}
