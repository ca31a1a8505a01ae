package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"gocloud.dev/blob"
	"gocloud.dev/blob/fileblob"
	"gocloud.dev/gcerrors"
)

// Artifact keys.
const (
	StatesPrefix      = "states/"
	SnapshotKey       = "institutions.json"
	MetaKey           = "institutions.meta.json"
	FailuresKey       = StatesPrefix + "_download_failures.json"
	EnrichedKey       = "institutions-with-programmes.json"
	EnrichFailuresKey = "_state_merge_failures.json"
	EnrichProgressKey = "_state_merge_progress.json"
	CSVKey            = "institutions.csv"
)

// ErrNotFound is returned when an artifact does not exist.
var ErrNotFound = errors.New("store: artifact not found")

// ErrorArtifact is persisted in place of a region's records when upstream
// did not return usable data.
type ErrorArtifact struct {
	Error string `json:"error"`
	Raw   string `json:"raw"`
}

// Store reads and writes artifacts in a blob bucket.
type Store struct {
	bucket *blob.Bucket
	owned  bool
}

// New wraps an open bucket. Closing the Store does not close the bucket.
func New(bucket *blob.Bucket) *Store {
	return &Store{bucket: bucket}
}

// Open opens the bucket at a gocloud URL, e.g. "file:///srv/aicte",
// "mem://" or "s3://bucket?region=ap-south-1". The driver must be linked in
// by the caller with a blank import.
func Open(ctx context.Context, bucketURL string) (*Store, error) {
	b, err := blob.OpenBucket(ctx, bucketURL)
	if err != nil {
		return nil, fmt.Errorf("store: open bucket: %w", err)
	}
	return &Store{bucket: b, owned: true}, nil
}

// OpenDir opens a local directory as a bucket, creating it if needed.
func OpenDir(dir string) (*Store, error) {
	b, err := fileblob.OpenBucket(dir, &fileblob.Options{CreateDir: true})
	if err != nil {
		return nil, fmt.Errorf("store: open directory %s: %w", dir, err)
	}
	return &Store{bucket: b, owned: true}, nil
}

// Close releases the bucket if the Store opened it.
func (s *Store) Close() error {
	if !s.owned {
		return nil
	}
	return s.bucket.Close()
}

// Bucket returns the underlying bucket.
func (s *Store) Bucket() *blob.Bucket {
	return s.bucket
}

// RegionKey returns the key of the artifact for a region slug.
func RegionKey(slug string) string {
	return StatesPrefix + slug + ".json"
}

// IsRegionKey reports whether key names a per-region artifact. Keys whose
// base name starts with '_' are bookkeeping files and are excluded.
func IsRegionKey(key string) bool {
	if !strings.HasPrefix(key, StatesPrefix) || !strings.HasSuffix(key, ".json") {
		return false
	}
	rest := strings.TrimPrefix(key, StatesPrefix)
	return rest != ".json" && !strings.Contains(rest, "/") && !strings.HasPrefix(rest, "_")
}

// Encode renders v as indented JSON without HTML escaping, so raw upstream
// pages stay readable in error artifacts.
func Encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// WriteJSON stores v under key as indented JSON.
func (s *Store) WriteJSON(ctx context.Context, key string, v any) error {
	data, err := Encode(v)
	if err != nil {
		return fmt.Errorf("store: encode %s: %w", key, err)
	}
	return s.Write(ctx, key, data, "application/json")
}

// Write stores data under key.
func (s *Store) Write(ctx context.Context, key string, data []byte, contentType string) error {
	opts := &blob.WriterOptions{ContentType: contentType}
	if err := s.bucket.WriteAll(ctx, key, data, opts); err != nil {
		return fmt.Errorf("store: write %s: %w", key, err)
	}
	return nil
}

// Read returns the content stored under key. A missing key yields an error
// wrapping ErrNotFound.
func (s *Store) Read(ctx context.Context, key string) ([]byte, error) {
	data, err := s.bucket.ReadAll(ctx, key)
	if err != nil {
		if isNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return nil, fmt.Errorf("store: read %s: %w", key, err)
	}
	return data, nil
}

// ReadJSON decodes the JSON stored under key into v, keeping numbers as
// json.Number.
func (s *Store) ReadJSON(ctx context.Context, key string, v any) error {
	data, err := s.Read(ctx, key)
	if err != nil {
		return err
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("store: decode %s: %w", key, err)
	}
	return nil
}

// Exists reports whether key exists.
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	ok, err := s.bucket.Exists(ctx, key)
	if err != nil {
		return false, fmt.Errorf("store: stat %s: %w", key, err)
	}
	return ok, nil
}

// Delete removes key. Deleting a missing key is not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.bucket.Delete(ctx, key); err != nil && !isNotExist(err) {
		return fmt.Errorf("store: delete %s: %w", key, err)
	}
	return nil
}

// ModTime returns the modification time of key as reported by the driver.
// The zero time is returned when the driver does not track it.
func (s *Store) ModTime(ctx context.Context, key string) (time.Time, error) {
	attrs, err := s.bucket.Attributes(ctx, key)
	if err != nil {
		if isNotExist(err) {
			return time.Time{}, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return time.Time{}, fmt.Errorf("store: attributes %s: %w", key, err)
	}
	return attrs.ModTime, nil
}

// RegionKeys lists the per-region artifacts in bucket listing order, which
// is lexicographic by key for the gocloud drivers.
func (s *Store) RegionKeys(ctx context.Context) ([]string, error) {
	var keys []string
	iter := s.bucket.List(&blob.ListOptions{Prefix: StatesPrefix, Delimiter: "/"})
	for {
		obj, err := iter.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("store: list %s: %w", StatesPrefix, err)
		}
		if obj.IsDir || !IsRegionKey(obj.Key) {
			continue
		}
		keys = append(keys, obj.Key)
	}
	return keys, nil
}

// RegionSlug returns the slug part of a region artifact key.
func RegionSlug(key string) string {
	return strings.TrimSuffix(path.Base(key), ".json")
}

func isNotExist(err error) bool {
	return gcerrors.Code(err) == gcerrors.NotFound
}
