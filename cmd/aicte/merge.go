package main

import (
	"github.com/spf13/cobra"

	"github.com/collegelist/aicte/internal/snapshot"
)

func newMergeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "merge",
		Short: "Rebuild the snapshot from the region artifacts already stored",
		Long: `Merge every states/<slug>.json into institutions.json and rewrite
institutions.meta.json. Error artifacts are skipped. The failures of the
last download are kept.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			st, err := a.openStore(cmd)
			if err != nil {
				return err
			}
			defer st.Close()

			failures, err := snapshot.ReadFailures(ctx, st)
			if err != nil {
				return storageError(err)
			}
			sum, err := snapshot.Merge(ctx, st, failures)
			if err != nil {
				return storageError(err)
			}
			logMerge(cmd, sum)
			return nil
		},
	}
}
