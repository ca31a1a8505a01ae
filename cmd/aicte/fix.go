package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/collegelist/aicte/internal/regions"
	"github.com/collegelist/aicte/internal/snapshot"
)

func newFixCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fix",
		Short: "Download again the regions that are missing or failed, then merge",
		Long: `Find the regions whose artifact is missing, an error artifact or unreadable,
download only those, and merge the snapshot again.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			st, err := a.openStore(cmd)
			if err != nil {
				return err
			}
			res, err := snapshot.Validate(ctx, st, regions.All())
			st.Close()
			if err != nil {
				return storageError(err)
			}

			broken := res.Broken()
			if len(broken) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "Nothing to fix")
				return nil
			}
			slog.InfoContext(ctx, "fixing regions", "count", len(broken), "regions", broken)
			return a.download(cmd, broken)
		},
	}

	f := cmd.Flags()
	f.IntVar(&a.flags.Download.Concurrency, "concurrency", 0, "Parallel region downloads (default 2)")
	f.IntVar(&a.flags.Download.Retries, "retries", 0, "Retries per region (default 3)")
	return cmd
}
