package snapshot

import (
	"context"
	"fmt"

	"github.com/jszwec/csvutil"

	"github.com/collegelist/aicte/internal/catalog"
	"github.com/collegelist/aicte/internal/rows"
	"github.com/collegelist/aicte/pkg/store"
)

// Load reads a merged snapshot (plain or enriched) from st.
func Load(ctx context.Context, st *store.Store, key string) ([]rows.Record, error) {
	data, err := st.Read(ctx, key)
	if err != nil {
		return nil, err
	}
	p, err := rows.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", key, err)
	}
	return p.Records(rows.InstitutionFields), nil
}

// ExportCSV writes the summaries of the snapshot stored under from as CSV to
// store.CSVKey and returns the number of rows.
func ExportCSV(ctx context.Context, st *store.Store, from string) (int, error) {
	recs, err := Load(ctx, st, from)
	if err != nil {
		return 0, err
	}

	summaries := make([]catalog.Summary, 0, len(recs))
	for _, rec := range recs {
		summaries = append(summaries, catalog.Summarize(rec))
	}

	data, err := csvutil.Marshal(summaries)
	if err != nil {
		return 0, fmt.Errorf("encode csv: %w", err)
	}
	if err := st.Write(ctx, store.CSVKey, data, "text/csv"); err != nil {
		return 0, err
	}
	return len(summaries), nil
}
