package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/collegelist/aicte/internal/snapshot"
)

func newDeleteCmd(a *app) *cobra.Command {
	var (
		force        bool
		keepSnapshot bool
	)

	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Remove stored artifacts",
		Long: `Remove every region artifact and the download and enrichment bookkeeping
files. The snapshots are removed too unless --keep-snapshot is given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !force {
				return invalidArgs(errors.New("refusing to delete without --force"))
			}

			st, err := a.openStore(cmd)
			if err != nil {
				return err
			}
			defer st.Close()

			n, err := snapshot.Delete(cmd.Context(), st, keepSnapshot)
			if err != nil {
				return storageError(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d region artifacts\n", n)
			return nil
		},
	}

	f := cmd.Flags()
	f.BoolVar(&force, "force", false, "Confirm the deletion")
	f.BoolVar(&keepSnapshot, "keep-snapshot", false, "Keep institutions.json and its metadata")
	return cmd
}
