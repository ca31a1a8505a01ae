package store

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"gocloud.dev/blob/memblob"
)

func newMemStore(t *testing.T) *Store {
	t.Helper()
	bucket := memblob.OpenBucket(nil)
	t.Cleanup(func() { bucket.Close() })
	return New(bucket)
}

func TestWriteReadJSON(t *testing.T) {
	ctx := context.Background()
	s := newMemStore(t)

	in := []map[string]any{{"id": "1-1", "name": "A & B <Institute>"}}
	require.NoError(t, s.WriteJSON(ctx, RegionKey("goa"), in))

	raw, err := s.Read(ctx, "states/goa.json")
	require.NoError(t, err)
	require.Contains(t, string(raw), `"A & B <Institute>"`, "HTML must not be escaped")
	require.Contains(t, string(raw), "\n  {", "output is indented")

	var out []map[string]any
	require.NoError(t, s.ReadJSON(ctx, RegionKey("goa"), &out))
	require.Equal(t, "A & B <Institute>", out[0]["name"])
}

func TestReadJSONKeepsNumbers(t *testing.T) {
	ctx := context.Background()
	s := newMemStore(t)
	require.NoError(t, s.Write(ctx, "n.json", []byte(`{"records": 12345678901234567}`), "application/json"))

	var out map[string]any
	require.NoError(t, s.ReadJSON(ctx, "n.json", &out))
	require.Equal(t, json.Number("12345678901234567"), out["records"])
}

func TestReadMissing(t *testing.T) {
	ctx := context.Background()
	s := newMemStore(t)

	_, err := s.Read(ctx, SnapshotKey)
	require.ErrorIs(t, err, ErrNotFound)

	_, err = s.ModTime(ctx, SnapshotKey)
	require.ErrorIs(t, err, ErrNotFound)

	ok, err := s.Exists(ctx, SnapshotKey)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestDeleteMissingIsNoop(t *testing.T) {
	ctx := context.Background()
	s := newMemStore(t)

	require.NoError(t, s.Delete(ctx, FailuresKey))

	require.NoError(t, s.WriteJSON(ctx, FailuresKey, []string{"x"}))
	require.NoError(t, s.Delete(ctx, FailuresKey))
	ok, err := s.Exists(ctx, FailuresKey)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestModTime(t *testing.T) {
	ctx := context.Background()
	s := newMemStore(t)
	require.NoError(t, s.WriteJSON(ctx, SnapshotKey, []any{}))

	mt, err := s.ModTime(ctx, SnapshotKey)
	require.NoError(t, err)
	require.False(t, mt.IsZero())
}

func TestRegionKeys(t *testing.T) {
	ctx := context.Background()
	s := newMemStore(t)

	for _, key := range []string{
		"states/sikkim.json",
		"states/goa.json",
		"states/delhi.json",
		"states/_download_failures.json",
		"states/notes.txt",
		"states/nested/goa.json",
		"institutions.json",
	} {
		require.NoError(t, s.Write(ctx, key, []byte("[]"), "application/json"))
	}

	keys, err := s.RegionKeys(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{
		"states/delhi.json",
		"states/goa.json",
		"states/sikkim.json",
	}, keys)
}

func TestRegionKeysEmpty(t *testing.T) {
	keys, err := newMemStore(t).RegionKeys(context.Background())
	require.NoError(t, err)
	require.Empty(t, keys)
}

func TestIsRegionKey(t *testing.T) {
	tests := []struct {
		key  string
		want bool
	}{
		{"states/goa.json", true},
		{"states/tamil-nadu.json", true},
		{"states/_download_failures.json", false},
		{"states/.json", false},
		{"states/goa.txt", false},
		{"states/a/b.json", false},
		{"goa.json", false},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			require.Equal(t, tt.want, IsRegionKey(tt.key))
		})
	}
}

func TestRegionSlug(t *testing.T) {
	require.Equal(t, "tamil-nadu", RegionSlug(RegionKey("tamil-nadu")))
}

func TestOpenDirCreatesDirectory(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "data")

	s, err := OpenDir(dir)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.WriteJSON(ctx, RegionKey("goa"), []any{}))

	data, err := os.ReadFile(filepath.Join(dir, "states", "goa.json"))
	require.NoError(t, err)
	require.Equal(t, "[]", string(data))
}

func TestOpenURL(t *testing.T) {
	ctx := context.Background()
	s, err := Open(ctx, "mem://")
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.WriteJSON(ctx, MetaKey, map[string]any{"records": 0}))
	ok, err := s.Exists(ctx, MetaKey)
	require.NoError(t, err)
	require.True(t, ok)
}
