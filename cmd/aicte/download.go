package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/collegelist/aicte/internal/downloader"
	"github.com/collegelist/aicte/internal/regions"
	"github.com/collegelist/aicte/internal/snapshot"
	"github.com/collegelist/aicte/pkg/store"
)

func newDownloadCmd(a *app) *cobra.Command {
	var only []string

	cmd := &cobra.Command{
		Use:   "download",
		Short: "Download every region, then merge the snapshot",
		Long: `Download the institution listing of every region into states/<slug>.json,
record the regions that failed, and merge all region artifacts into
institutions.json with its metadata.

A failed region never aborts the run; it is listed in
states/_download_failures.json and the exit code stays 0.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := selectRegions(only)
			if err != nil {
				return invalidArgs(err)
			}
			return a.download(cmd, list)
		},
	}

	f := cmd.Flags()
	f.StringSliceVar(&only, "state", nil, "Download only these regions (name or slug, repeatable)")
	f.IntVar(&a.flags.Download.Concurrency, "concurrency", 0, "Parallel region downloads (default 2)")
	f.IntVar(&a.flags.Download.Retries, "retries", 0, "Retries per region (default 3)")
	f.DurationVar(&a.flags.Upstream.PoliteDelay, "polite-delay", 0, "Pause between a worker's downloads (default 300ms)")
	f.StringVar(&a.flags.Year, "year", "", "Academic year (default 2025-2026)")
	f.StringVar(&a.flags.Course, "course", "", "Course id (default 1)")
	f.BoolVar(&a.flags.CSV, "csv", false, "Also write institutions.csv")
	return cmd
}

func selectRegions(only []string) ([]string, error) {
	if len(only) == 0 {
		return regions.All(), nil
	}
	out := make([]string, 0, len(only))
	for _, s := range only {
		r, ok := regions.Lookup(s)
		if !ok {
			return nil, fmt.Errorf("unknown region %q", s)
		}
		out = append(out, r)
	}
	return out, nil
}

func (a *app) download(cmd *cobra.Command, list []string) error {
	ctx := cmd.Context()
	cfg := a.cfg

	st, err := a.openStore(cmd)
	if err != nil {
		return err
	}
	defer st.Close()

	opts := downloader.DefaultOptions()
	opts.Concurrency = cfg.Download.Concurrency
	opts.PoliteDelay = cfg.Upstream.PoliteDelay
	opts.Query.Year = cfg.Year
	opts.Query.Course = cfg.Course
	opts.Endpoint = cfg.Upstream.InstituteEndpoint
	opts.Fields = cfg.InstitutionFields()
	opts.Progress = a.reporter("Downloading institutions", "regions", len(list), opts.Concurrency)

	slog.InfoContext(ctx, "starting download",
		"regions", len(list),
		"concurrency", opts.Concurrency,
		"retries", cfg.Download.Retries,
		"year", cfg.Year,
	)

	results := downloader.New(a.client(cfg.Download), st, opts).RunAll(ctx, list)
	if opts.Progress != nil {
		opts.Progress.Stop()
	}

	failed := downloader.Failures(results)
	failures := make([]snapshot.Failure, 0, len(failed))
	for _, r := range failed {
		slog.WarnContext(ctx, "region failed", "region", r.Region, "reason", r.Reason)
		failures = append(failures, snapshot.Failure{Region: r.Region, Reason: r.Reason})
	}
	slog.InfoContext(ctx, "download finished",
		"ok", len(results)-len(failed),
		"failed", len(failed),
		"records", downloader.Records(results),
	)

	sum, err := snapshot.Merge(ctx, st, failures)
	if err != nil {
		return storageError(err)
	}
	logMerge(cmd, sum)

	if cfg.CSV {
		n, err := snapshot.ExportCSV(ctx, st, store.SnapshotKey)
		if err != nil {
			return storageError(fmt.Errorf("write csv: %w", err))
		}
		slog.InfoContext(ctx, "wrote csv", "key", store.CSVKey, "rows", n)
	}
	return nil
}

func logMerge(cmd *cobra.Command, sum *snapshot.Summary) {
	for _, key := range sum.Skipped {
		slog.DebugContext(cmd.Context(), "skipped artifact", "key", key)
	}
	slog.InfoContext(cmd.Context(), "merged snapshot",
		"key", store.SnapshotKey,
		"records", sum.Records,
		"files", sum.Files,
		"skipped", len(sum.Skipped),
		"last_grabbed", sum.Meta.LastGrabbed,
	)
	fmt.Fprintf(cmd.OutOrStdout(), "%d records from %d region files written to %s\n",
		sum.Records, sum.Files, store.SnapshotKey)
}
