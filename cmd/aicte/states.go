package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/collegelist/aicte/internal/regions"
)

func newStatesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "states",
		Short: "List the regions and their slugs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tSLUG")
			for _, e := range regions.Entries() {
				fmt.Fprintf(w, "%s\t%s\n", e.Name, e.Slug)
			}
			return w.Flush()
		},
	}
}
