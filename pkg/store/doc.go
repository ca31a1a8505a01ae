// Package store keeps the JSON artifacts of the dataset builder in a blob
// bucket.
//
// Any gocloud.dev/blob driver works; the CLI uses a local directory by
// default and accepts bucket URLs for object storage.
//
// # Storage Layout
//
//	{bucket}/states/{slug}.json                  (one per region)
//	{bucket}/states/_download_failures.json      (only after a run with failures)
//	{bucket}/institutions.json                   (merged snapshot)
//	{bucket}/institutions.meta.json              ({"last_grabbed": ..., "records": ...})
//	{bucket}/institutions-with-programmes.json   (enriched snapshot)
//	{bucket}/_state_merge_failures.json          (ids whose enrichment failed)
//	{bucket}/_state_merge_progress.json          (enrichment checkpoint)
//	{bucket}/institutions.csv                    (optional export)
//
// A region artifact holds an array of records, a lone record, or an
// [ErrorArtifact]:
//
//	{"error": "non-json", "raw": "<html>...</html>"}
//
// Keys under states/ whose name starts with '_' are bookkeeping and never
// returned by [Store.RegionKeys].
package store
