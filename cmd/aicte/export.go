package main

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/collegelist/aicte/internal/export"
	"github.com/collegelist/aicte/internal/snapshot"
	"github.com/collegelist/aicte/pkg/store"
)

func newExportCmd(a *app) *cobra.Command {
	var (
		sqlitePath string
		csv        bool
		enriched   bool
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the snapshot to SQLite or CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if sqlitePath == "" && !csv {
				return invalidArgs(errors.New("--sqlite or --csv is required"))
			}
			ctx := cmd.Context()

			st, err := a.openStore(cmd)
			if err != nil {
				return err
			}
			defer st.Close()

			from := store.SnapshotKey
			if enriched {
				from = store.EnrichedKey
			}

			if sqlitePath != "" {
				db, err := export.OpenSQLite(sqlitePath)
				if err != nil {
					return err
				}
				defer db.Close()

				n, err := export.SQLite(ctx, db, st, from)
				if err != nil {
					return storageError(err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d institutions written to %s\n", n, sqlitePath)
			}

			if csv {
				n, err := snapshot.ExportCSV(ctx, st, from)
				if err != nil {
					return storageError(err)
				}
				slog.InfoContext(ctx, "wrote csv", "from", from, "rows", n)
				fmt.Fprintf(cmd.OutOrStdout(), "%d institutions written to %s\n", n, store.CSVKey)
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&sqlitePath, "sqlite", "", "Write the institutions table to this SQLite file")
	f.BoolVar(&csv, "csv", false, "Write institutions.csv next to the snapshot")
	f.BoolVar(&enriched, "enriched", false, "Export the enriched snapshot instead")
	return cmd
}
