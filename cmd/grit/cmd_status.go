package main

import (
	"fmt"
	"io"

	"github.com/gritvcs/grit/pkg/repo"
	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the working tree status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := repo.Open(".")
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			branch, err := r.CurrentBranch()
			if err != nil {
				return err
			}
			if branch != "" {
				fmt.Fprintf(out, "On branch %s\n", branch)
			} else {
				fmt.Fprintln(out, "HEAD detached")
			}

			if pending, err := r.PendingOperation(); err == nil && pending != nil {
				fmt.Fprintf(out, "You are in the middle of a %s", pending.Kind)
				if len(pending.Conflicted) > 0 {
					fmt.Fprintf(out, " with %d conflicted path(s)", len(pending.Conflicted))
				}
				fmt.Fprintln(out)
				for _, p := range pending.Conflicted {
					fmt.Fprintf(out, "  both modified: %s\n", p)
				}
			}

			entries, err := r.Status()
			if err != nil {
				return err
			}
			printStatusEntries(out, entries)
			return nil
		},
	}
}

func printStatusEntries(out io.Writer, entries []repo.StatusEntry) {
	clean := true
	for _, e := range entries {
		if e.IndexStatus == repo.StatusClean && e.WorkStatus == repo.StatusClean {
			continue
		}
		clean = false
		fmt.Fprintf(out, "%s%s %s\n", statusCode(e.IndexStatus), statusCode(e.WorkStatus), e.Path)
	}
	if clean {
		fmt.Fprintln(out, "nothing to commit, working tree clean")
	}
}

func statusCode(s repo.FileStatus) string {
	switch s {
	case repo.StatusNew:
		return "A"
	case repo.StatusModified:
		return "M"
	case repo.StatusDeleted:
		return "D"
	case repo.StatusUntracked:
		return "?"
	case repo.StatusDirty:
		return "M"
	case repo.StatusConflict:
		return "U"
	default:
		return " "
	}
}
