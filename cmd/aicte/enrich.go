package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/collegelist/aicte/internal/enrich"
	"github.com/collegelist/aicte/internal/snapshot"
	"github.com/collegelist/aicte/pkg/store"
)

func newEnrichCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "enrich",
		Short: "Attach approved programmes to every stored institution",
		Long: `Look up the programmes of every institution in the region artifacts,
rewrite each artifact with them, and write institutions-with-programmes.json.
Institutions whose lookup failed are listed in _state_merge_failures.json.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg := a.cfg

			st, err := a.openStore(cmd)
			if err != nil {
				return err
			}
			defer st.Close()

			total := 0
			if meta, err := snapshot.ReadMeta(ctx, st); err == nil {
				total = meta.Records
			}

			opts := enrich.Options{
				Concurrency: cfg.Enrich.Concurrency,
				Endpoint:    cfg.Upstream.CourseEndpoint,
				Year:        cfg.Year,
				Course:      cfg.Course,
				Retries:     cfg.Enrich.Retries,
				Backoff:     cfg.Enrich.Backoff,
				Progress:    a.reporter("Enriching institutions", "institutions", total, cfg.Enrich.Concurrency),
			}
			sum, err := enrich.New(a.client(cfg.Enrich), st, opts).Run(ctx)
			if opts.Progress != nil {
				opts.Progress.Stop()
			}
			if err != nil {
				return storageError(err)
			}

			slog.InfoContext(ctx, "enrichment finished",
				"files", sum.Files,
				"institutions", sum.Institutions,
				"failed", len(sum.Failed),
			)
			fmt.Fprintf(cmd.OutOrStdout(), "%d institutions from %d region files written to %s\n",
				sum.Institutions, sum.Files, store.EnrichedKey)
			if len(sum.Failed) > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "%d lookups failed, see %s\n", len(sum.Failed), store.EnrichFailuresKey)
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.IntVar(&a.flags.Enrich.Concurrency, "concurrency", 0, "Institutions looked up per batch (default 8)")
	f.IntVar(&a.flags.Enrich.Retries, "retries", 0, "Retries per institution (default 2)")
	f.StringVar(&a.flags.Year, "year", "", "Academic year (default 2025-2026)")
	f.StringVar(&a.flags.Course, "course", "", "Course id (default 1)")
	return cmd
}
