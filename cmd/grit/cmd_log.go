package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/gritvcs/grit/pkg/repo"
	"github.com/spf13/cobra"
)

func newLogCmd() *cobra.Command {
	var limit int
	var oneline bool

	cmd := &cobra.Command{
		Use:   "log [rev]",
		Short: "Show commit history",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := repo.Open(".")
			if err != nil {
				return err
			}

			rev := "HEAD"
			if len(args) == 1 {
				rev = args[0]
			}
			start, err := r.ResolveCommit(rev)
			if err != nil {
				return err
			}

			entries, err := r.Log(start, limit)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, e := range entries {
				subject := e.Commit.Message
				if i := strings.IndexByte(subject, '\n'); i >= 0 {
					subject = subject[:i]
				}
				if oneline {
					fmt.Fprintf(out, "%s %s\n", e.Hash.Short(), subject)
					continue
				}
				fmt.Fprintf(out, "commit %s\n", e.Hash)
				if e.Commit.Signature != "" {
					fmt.Fprintln(out, "signed: yes")
				}
				fmt.Fprintf(out, "Author: %s\n", e.Commit.Author)
				fmt.Fprintf(out, "Date:   %s\n", time.Unix(e.Commit.AuthorTime, 0).UTC().Format(time.RFC3339))
				fmt.Fprintf(out, "\n    %s\n\n", strings.ReplaceAll(strings.TrimRight(e.Commit.Message, "\n"), "\n", "\n    "))
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "maximum commits to show (0 = all)")
	cmd.Flags().BoolVar(&oneline, "oneline", false, "one line per commit")
	return cmd
}
