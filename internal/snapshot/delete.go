package snapshot

import (
	"context"
	"fmt"

	"github.com/collegelist/aicte/pkg/store"
)

// Delete removes every region artifact and the bookkeeping files of the
// download and enrichment stages. Unless keepSnapshot is set, the snapshots,
// their metadata and the CSV export are removed too. Missing keys are not an
// error. It returns the number of region artifacts removed.
func Delete(ctx context.Context, st *store.Store, keepSnapshot bool) (int, error) {
	keys, err := st.RegionKeys(ctx)
	if err != nil {
		return 0, fmt.Errorf("list region artifacts: %w", err)
	}
	for _, key := range keys {
		if err := st.Delete(ctx, key); err != nil {
			return 0, fmt.Errorf("delete %s: %w", key, err)
		}
	}

	extra := []string{store.FailuresKey, store.EnrichFailuresKey, store.EnrichProgressKey}
	if !keepSnapshot {
		extra = append(extra, store.SnapshotKey, store.MetaKey, store.EnrichedKey, store.CSVKey)
	}
	for _, key := range extra {
		if err := st.Delete(ctx, key); err != nil {
			return 0, fmt.Errorf("delete %s: %w", key, err)
		}
	}
	return len(keys), nil
}
