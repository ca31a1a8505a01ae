package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/collegelist/aicte/internal/regions"
	"github.com/collegelist/aicte/internal/snapshot"
)

var errInvalid = errors.New("region artifacts are incomplete")

func newValidateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check that every region has a usable artifact",
		Long: `Verify that states/<slug>.json exists for every region and holds records
rather than an error artifact. Nothing is downloaded.

Exits with 7 when a region is missing, failed or unreadable.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.openStore(cmd)
			if err != nil {
				return err
			}
			defer st.Close()

			res, err := snapshot.Validate(cmd.Context(), st, regions.All())
			if err != nil {
				return storageError(err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Regions: %d\n", res.Regions)
			fmt.Fprintf(out, "Records: %d\n", res.Records)
			if res.Valid {
				fmt.Fprintln(out, "Status: VALID")
				return nil
			}

			fmt.Fprintln(out, "Status: INVALID")
			fmt.Fprintf(out, "Missing: %d\n", len(res.Missing))
			fmt.Fprintf(out, "Failed: %d\n", len(res.Failed))
			fmt.Fprintf(out, "Unreadable: %d\n", len(res.Unreadable))
			for _, e := range res.Errors {
				fmt.Fprintf(out, "  - %s\n", e)
			}
			return &exitError{code: ExitValidationFailed, err: errInvalid}
		},
	}
}
