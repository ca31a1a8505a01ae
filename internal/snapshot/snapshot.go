package snapshot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/collegelist/aicte/internal/rows"
	"github.com/collegelist/aicte/pkg/store"
)

// TimeFormat is the layout of Meta.LastGrabbed: ISO-8601 in UTC with
// millisecond precision.
const TimeFormat = "2006-01-02T15:04:05.000Z"

// Meta describes the snapshot it sits next to.
type Meta struct {
	LastGrabbed string `json:"last_grabbed"`
	Records     int    `json:"records"`
}

// Failure is one entry of the download failures artifact.
type Failure struct {
	Region string `json:"region"`
	Reason string `json:"reason"`
}

// Summary is the outcome of a merge.
type Summary struct {
	Records         int
	Files           int      // region artifacts merged
	Skipped         []string // keys of error artifacts and unreadable files
	FailuresWritten bool
	Meta            Meta
}

// Merge combines every region artifact in st into the snapshot and writes its
// metadata. When failures is non-empty the failures artifact is written;
// otherwise a stale one is removed.
//
// Records keep the bucket listing order. Only a failure to write the
// snapshot itself is returned.
func Merge(ctx context.Context, st *store.Store, failures []Failure) (*Summary, error) {
	keys, err := st.RegionKeys(ctx)
	if err != nil {
		return nil, fmt.Errorf("list region artifacts: %w", err)
	}

	sum := &Summary{}
	combined := make([]rows.Record, 0)

	for _, key := range keys {
		recs, err := readArtifact(ctx, st, key)
		if err != nil {
			if !errors.Is(err, errErrorArtifact) {
				slog.WarnContext(ctx, "skipping unreadable region artifact", "key", key, "err", err)
			}
			sum.Skipped = append(sum.Skipped, key)
			continue
		}
		combined = append(combined, recs...)
		sum.Files++
	}

	if err := st.WriteJSON(ctx, store.SnapshotKey, combined); err != nil {
		return nil, fmt.Errorf("write snapshot: %w", err)
	}
	sum.Records = len(combined)

	grabbed, err := st.ModTime(ctx, store.SnapshotKey)
	if err != nil || grabbed.IsZero() {
		grabbed = time.Now()
	}
	sum.Meta = Meta{
		LastGrabbed: grabbed.UTC().Format(TimeFormat),
		Records:     sum.Records,
	}
	if err := st.WriteJSON(ctx, store.MetaKey, sum.Meta); err != nil {
		slog.ErrorContext(ctx, "failed to write snapshot metadata", "err", err)
	}

	written, err := WriteFailures(ctx, st, failures)
	if err != nil {
		slog.ErrorContext(ctx, "failed to write download failures", "err", err)
	}
	sum.FailuresWritten = written

	slog.InfoContext(ctx, "snapshot written",
		"records", sum.Records,
		"files", sum.Files,
		"skipped", len(sum.Skipped),
	)
	return sum, nil
}

// WriteFailures writes the download failures artifact when failures is
// non-empty and removes it otherwise. It reports whether an artifact was
// written.
func WriteFailures(ctx context.Context, st *store.Store, failures []Failure) (bool, error) {
	if len(failures) == 0 {
		return false, st.Delete(ctx, store.FailuresKey)
	}
	if err := st.WriteJSON(ctx, store.FailuresKey, failures); err != nil {
		return false, err
	}
	return true, nil
}

// ReadFailures returns the failures of the last download run. A missing
// artifact means none.
func ReadFailures(ctx context.Context, st *store.Store) ([]Failure, error) {
	var out []Failure
	err := st.ReadJSON(ctx, store.FailuresKey, &out)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	return out, err
}

// ReadMeta returns the snapshot metadata.
func ReadMeta(ctx context.Context, st *store.Store) (*Meta, error) {
	var m Meta
	if err := st.ReadJSON(ctx, store.MetaKey, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

var errErrorArtifact = errors.New("error artifact")

// readArtifact returns the records held by a region artifact. Arrays are
// flattened as they are, lone objects lifted to one record.
func readArtifact(ctx context.Context, st *store.Store, key string) ([]rows.Record, error) {
	data, err := st.Read(ctx, key)
	if err != nil {
		return nil, err
	}
	p, err := rows.Parse(data)
	if err != nil {
		return nil, err
	}

	switch p.Kind {
	case rows.Object:
		if IsErrorArtifact(p.Object) {
			return nil, errErrorArtifact
		}
		return []rows.Record{p.Object}, nil
	case rows.Objects:
		// The snapshot is a list of institution records; anything else in
		// the array has no place in it.
		out := make([]rows.Record, 0, len(p.Items))
		for _, it := range p.Items {
			rec, ok := it.(map[string]any)
			if !ok {
				continue
			}
			out = append(out, rec)
		}
		if dropped := len(p.Items) - len(out); dropped > 0 {
			slog.DebugContext(ctx, "dropped non-object elements", "key", key, "count", dropped)
		}
		return out, nil
	case rows.Rows:
		// Artifacts are written already mapped; raw rows only appear if
		// something else wrote the file.
		return rows.Map(p.Rows, rows.InstitutionFields), nil
	default:
		return nil, fmt.Errorf("unexpected %s payload", p.Kind)
	}
}

// IsErrorArtifact reports whether rec is a tagged error object.
func IsErrorArtifact(rec rows.Record) bool {
	_, ok := rec["error"]
	return ok
}
