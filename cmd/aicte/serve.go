package main

import (
	"errors"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/collegelist/aicte/internal/api"
	"github.com/collegelist/aicte/internal/rows"
)

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the directory API",
		Long: `Serve the stored snapshot and region artifacts over HTTP, and proxy
live listings and course lookups to the AICTE dashboard.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.cfg
			st, err := a.openStore(cmd)
			if err != nil {
				return err
			}
			defer st.Close()

			srv := api.New(st, a.client(cfg.Download), api.Options{
				InstituteEndpoint: cfg.Upstream.InstituteEndpoint,
				CourseEndpoint:    cfg.Upstream.CourseEndpoint,
				Year:              cfg.Year,
				Course:            cfg.Course,
				Fields:            cfg.InstitutionFields(),
				ProgrammeFields:   rows.ProgrammeFields,
			})
			if err := srv.Serve(cmd.Context(), cfg.Listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&a.flags.Listen, "listen", "", "Listen address (default :8080)")
	return cmd
}
