// Package progress reports how far a batch of region downloads or
// institution lookups has come.
//
// # Usage
//
//	reporter := progress.NewReporter(progress.Options{
//	    Title:   "Downloading 36 regions",
//	    Unit:    "regions",
//	    Total:   36,
//	    Workers: 2,
//	})
//
//	reporter.Start()
//	defer reporter.Stop()
//
//	reporter.Started()
//	reporter.Completed(records)
//
// # Output Format
//
//	[aicte] Downloading 36 regions
//	[aicte] 36 regions | Workers: 2
//	[aicte] Progress: 41.7% | 14 completed | 1 failed | 2 in-progress | 19 pending | 4210 records
//	[aicte] Done: 35 completed | 1 failed | 10512 records
//	[aicte] Total time: 1m 12s
package progress
