// Package snapshot merges the per-region artifacts into the snapshot the API
// serves offline.
//
// Merge reads every states/{slug}.json in listing order, drops error
// artifacts, and writes institutions.json with institutions.meta.json next to
// it. The download failures artifact is written when a run had failures and
// removed when it had none, so it always describes the latest run.
//
// Validate reports which regions lack a usable artifact and Delete clears
// the stored artifacts.
//
// Listing order is lexicographic by key for the fileblob, memblob, s3blob
// and gcsblob drivers. Consumers that need a domain order must sort.
package snapshot
