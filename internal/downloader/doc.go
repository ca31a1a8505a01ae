// Package downloader sweeps the region list and stores one listing artifact
// per region.
//
// # Usage
//
//	d := downloader.New(client, st, downloader.Options{
//	    Concurrency: 2,
//	    PoliteDelay: 300 * time.Millisecond,
//	    Progress:    reporter,
//	})
//	results := d.RunAll(ctx, regions.All())
//
// # Worker Pool
//
// RunAll seeds a buffered channel with every region and closes it, then
// starts Concurrency workers that drain it. Receiving from the channel is the
// only synchronisation between workers, so no region is taken twice and none
// is lost. RunAll returns after every worker has finished.
//
// # Outcomes
//
// DownloadRegion always returns a Result. A body that is not JSON, or a JSON
// scalar, is stored as an error artifact and reported as a failure with
// reason "non-json" or "unexpected-payload"; fetch and storage errors are
// reported with their error text.
package downloader
