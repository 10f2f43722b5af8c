package main

import (
	"fmt"
	"os"

	"github.com/gritvcs/grit/pkg/repo"
	"github.com/spf13/cobra"
)

func newTagCmd() *cobra.Command {
	var annotate bool
	var message string
	var delete_ bool
	var force bool

	cmd := &cobra.Command{
		Use:   "tag [name] [rev]",
		Short: "List, create, or delete tags",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := repo.Open(".")
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if len(args) == 0 {
				tags, err := r.ListTags()
				if err != nil {
					return err
				}
				for _, t := range tags {
					fmt.Fprintln(out, t)
				}
				return nil
			}

			name := args[0]
			if delete_ {
				return r.DeleteTag(name)
			}

			rev := "HEAD"
			if len(args) == 2 {
				rev = args[1]
			}
			target, err := r.ResolveCommit(rev)
			if err != nil {
				return err
			}

			if annotate || message != "" {
				tagger := os.Getenv("USER")
				tagHash, err := r.CreateAnnotatedTag(name, target, tagger, message, force)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "tag %s -> %s\n", name, tagHash.Short())
				return nil
			}
			return r.CreateTag(name, target, force)
		},
	}
	cmd.Flags().BoolVarP(&annotate, "annotate", "a", false, "create an annotated tag object")
	cmd.Flags().StringVarP(&message, "message", "m", "", "tag message (implies -a)")
	cmd.Flags().BoolVarP(&delete_, "delete", "d", false, "delete the tag")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "replace an existing tag")
	return cmd
}
