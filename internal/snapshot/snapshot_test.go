package snapshot

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"gocloud.dev/blob/memblob"

	"github.com/collegelist/aicte/internal/rows"
	"github.com/collegelist/aicte/pkg/store"
)

func newStore(t *testing.T) *store.Store {
	t.Helper()
	bucket := memblob.OpenBucket(nil)
	t.Cleanup(func() { bucket.Close() })
	return store.New(bucket)
}

func put(t *testing.T, st *store.Store, key, body string) {
	t.Helper()
	require.NoError(t, st.Write(context.Background(), key, []byte(body), "application/json"))
}

func readAll(t *testing.T, st *store.Store) []rows.Record {
	t.Helper()
	recs, err := Load(context.Background(), st, store.SnapshotKey)
	require.NoError(t, err)
	return recs
}

func TestMergeFlattensInListingOrder(t *testing.T) {
	ctx := context.Background()
	st := newStore(t)

	put(t, st, "states/sikkim.json", `{"aicte_id":"S-1"}`)
	put(t, st, "states/goa.json", `[{"aicte_id":"G-1"},{"aicte_id":"G-2"}]`)
	put(t, st, "states/delhi.json", `{"error":"non-json","raw":"<html></html>"}`)
	put(t, st, "states/empty.json", `[]`)

	sum, err := Merge(ctx, st, nil)
	require.NoError(t, err)
	require.Equal(t, 3, sum.Records)
	require.Equal(t, 3, sum.Files)
	require.Equal(t, []string{"states/delhi.json"}, sum.Skipped)
	require.False(t, sum.FailuresWritten)

	var ids []string
	for _, rec := range readAll(t, st) {
		ids = append(ids, rec["aicte_id"].(string))
	}
	require.Equal(t, []string{"G-1", "G-2", "S-1"}, ids)

	meta, err := ReadMeta(ctx, st)
	require.NoError(t, err)
	require.Equal(t, 3, meta.Records)
	_, err = time.Parse(TimeFormat, meta.LastGrabbed)
	require.NoError(t, err)
}

func TestMergeIsIdempotent(t *testing.T) {
	ctx := context.Background()
	st := newStore(t)

	put(t, st, "states/goa.json", `[{"aicte_id":"G-1","women":null},{"aicte_id":"G-2"}]`)
	put(t, st, "states/kerala.json", `[{"aicte_id":"K-1","intake":120}]`)

	_, err := Merge(ctx, st, nil)
	require.NoError(t, err)
	first, err := st.Read(ctx, store.SnapshotKey)
	require.NoError(t, err)

	_, err = Merge(ctx, st, nil)
	require.NoError(t, err)
	second, err := st.Read(ctx, store.SnapshotKey)
	require.NoError(t, err)

	if diff := cmp.Diff(string(first), string(second)); diff != "" {
		t.Errorf("snapshot changed between merges (-first +second):\n%s", diff)
	}
	require.Contains(t, string(second), `"intake": 120`, "numbers keep their text")
	require.Contains(t, string(second), `"women": null`)
}

func TestMergeSkipsUnreadableArtifacts(t *testing.T) {
	ctx := context.Background()
	st := newStore(t)

	put(t, st, "states/goa.json", `[{"aicte_id":"G-1"}]`)
	put(t, st, "states/broken.json", `[{"aicte_id":`)
	put(t, st, "states/scalar.json", `"hello"`)

	sum, err := Merge(ctx, st, nil)
	require.NoError(t, err)
	require.Equal(t, 1, sum.Records)
	require.ElementsMatch(t, []string{"states/broken.json", "states/scalar.json"}, sum.Skipped)
}

func TestMergeDropsNonObjectElements(t *testing.T) {
	ctx := context.Background()
	st := newStore(t)

	put(t, st, "states/goa.json", `[{"aicte_id":"G-1"},"stray",7,null,[1],{"aicte_id":"G-2"}]`)

	sum, err := Merge(ctx, st, nil)
	require.NoError(t, err)
	require.Equal(t, 2, sum.Records)
	require.Empty(t, sum.Skipped)

	recs := readAll(t, st)
	require.Len(t, recs, 2)
	require.Equal(t, "G-1", recs[0]["aicte_id"])
	require.Equal(t, "G-2", recs[1]["aicte_id"])
}

func TestMergeIgnoresBookkeepingFiles(t *testing.T) {
	ctx := context.Background()
	st := newStore(t)

	put(t, st, "states/goa.json", `[{"aicte_id":"G-1"}]`)
	put(t, st, store.FailuresKey, `[{"region":"Delhi","reason":"non-json"}]`)

	sum, err := Merge(ctx, st, nil)
	require.NoError(t, err)
	require.Equal(t, 1, sum.Records)
	require.Empty(t, sum.Skipped)
}

func TestMergeEmpty(t *testing.T) {
	ctx := context.Background()
	st := newStore(t)

	sum, err := Merge(ctx, st, nil)
	require.NoError(t, err)
	require.Zero(t, sum.Records)

	raw, err := st.Read(ctx, store.SnapshotKey)
	require.NoError(t, err)
	require.Equal(t, "[]", string(raw))
}

func TestMergeFailuresArtifact(t *testing.T) {
	ctx := context.Background()
	st := newStore(t)
	put(t, st, "states/goa.json", `[]`)

	failures := []Failure{{Region: "Delhi", Reason: "non-json"}}
	sum, err := Merge(ctx, st, failures)
	require.NoError(t, err)
	require.True(t, sum.FailuresWritten)

	got, err := ReadFailures(ctx, st)
	require.NoError(t, err)
	require.Equal(t, failures, got)

	// A clean run removes the stale artifact.
	sum, err = Merge(ctx, st, nil)
	require.NoError(t, err)
	require.False(t, sum.FailuresWritten)

	ok, err := st.Exists(ctx, store.FailuresKey)
	require.NoError(t, err)
	require.False(t, ok)

	got, err = ReadFailures(ctx, st)
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestMetaTimeFormat(t *testing.T) {
	fixed := time.Date(2025, 7, 1, 10, 30, 0, 123_000_000, time.FixedZone("IST", 5*3600+1800))
	m := Meta{LastGrabbed: fixed.UTC().Format(TimeFormat), Records: 0}
	require.Equal(t, "2025-07-01T05:00:00.123Z", m.LastGrabbed)

	data, err := json.Marshal(m)
	require.NoError(t, err)
	require.JSONEq(t, `{"last_grabbed":"2025-07-01T05:00:00.123Z","records":0}`, string(data))
}

func TestExportCSV(t *testing.T) {
	ctx := context.Background()
	st := newStore(t)
	put(t, st, store.SnapshotKey, `[
		{"aicte_id":"1-1","institute_name":"Goa College, Farmagudi","district":"North Goa"},
		{"aicte_id":"1-2","institute_name":"Padre Conceicao","programmes":[{},{}]}
	]`)

	n, err := ExportCSV(ctx, st, store.SnapshotKey)
	require.NoError(t, err)
	require.Equal(t, 2, n)

	raw, err := st.Read(ctx, store.CSVKey)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	require.Equal(t, []string{
		"id,name,university,state,district,programmes_count",
		`1-1,"Goa College, Farmagudi",,,North Goa,0`,
		"1-2,Padre Conceicao,,,,2",
	}, lines)
}

func TestExportCSVMissingSnapshot(t *testing.T) {
	_, err := ExportCSV(context.Background(), newStore(t), store.SnapshotKey)
	require.ErrorIs(t, err, store.ErrNotFound)
}
