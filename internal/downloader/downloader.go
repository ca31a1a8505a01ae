package downloader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	aictehttp "github.com/collegelist/aicte/internal/http"
	"github.com/collegelist/aicte/internal/progress"
	"github.com/collegelist/aicte/internal/regions"
	"github.com/collegelist/aicte/internal/rows"
	"github.com/collegelist/aicte/internal/upstream"
	"github.com/collegelist/aicte/pkg/store"
)

// Failure reasons recorded for regions whose upstream answer could not be
// used. Other failures carry the error text as reason.
const (
	ReasonNonJSON           = "non-json"
	ReasonUnexpectedPayload = "unexpected-payload"
)

// Fetcher performs one logical upstream GET, retries included.
type Fetcher interface {
	Get(ctx context.Context, url string, headers map[string]string) (*aictehttp.Response, error)
}

// Options configures the downloader.
type Options struct {
	// Concurrency is the number of parallel workers. Values below 1 are
	// treated as 1.
	// Default: 2
	Concurrency int

	// PoliteDelay is how long a worker waits before taking its next region.
	// Default: 300ms
	PoliteDelay time.Duration

	// Query is the base institute query; State is replaced per region.
	// Default: upstream.DefaultInstituteQuery()
	Query upstream.InstituteQuery

	// Endpoint is the institute listing endpoint.
	// Default: upstream.InstituteEndpoint
	Endpoint string

	// Fields names the columns of row-shaped payloads.
	// Default: rows.InstitutionFields
	Fields []string

	// Progress is an optional progress reporter.
	Progress *progress.Reporter
}

// DefaultOptions returns options with sensible defaults.
func DefaultOptions() Options {
	return Options{
		Concurrency: 2,
		PoliteDelay: 300 * time.Millisecond,
		Query:       upstream.DefaultInstituteQuery(),
		Endpoint:    upstream.InstituteEndpoint,
		Fields:      rows.InstitutionFields,
	}
}

// Result is the outcome of downloading one region.
type Result struct {
	Region string `json:"region"`
	OK     bool   `json:"ok"`
	Count  int    `json:"count,omitempty"`
	Reason string `json:"reason,omitempty"`
	Key    string `json:"key,omitempty"`
}

// Downloader fetches region listings and stores one artifact per region.
type Downloader struct {
	fetcher Fetcher
	store   *store.Store
	opts    Options
}

// New creates a Downloader. Zero fields of opts take their defaults, except
// PoliteDelay where zero means no delay.
func New(fetcher Fetcher, st *store.Store, opts Options) *Downloader {
	def := DefaultOptions()
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if opts.PoliteDelay < 0 {
		opts.PoliteDelay = 0
	}
	if opts.Query == (upstream.InstituteQuery{}) {
		opts.Query = def.Query
	}
	if opts.Endpoint == "" {
		opts.Endpoint = def.Endpoint
	}
	if len(opts.Fields) == 0 {
		opts.Fields = def.Fields
	}
	return &Downloader{fetcher: fetcher, store: st, opts: opts}
}

// DownloadRegion fetches one region and persists its artifact. It never
// returns an error: every problem is reported in the Result.
func (d *Downloader) DownloadRegion(ctx context.Context, region string) Result {
	slug := regions.Slug(region)
	key := store.RegionKey(slug)
	logger := slog.With("region", region)

	q := d.opts.Query
	q.State = region
	url := upstream.URL(d.opts.Endpoint, q.Values())

	res, err := d.fetcher.Get(ctx, url, upstream.Headers)
	if err != nil {
		logger.ErrorContext(ctx, "region fetch failed", "err", err)
		return Result{Region: region, Reason: err.Error()}
	}
	if !res.OK() {
		logger.WarnContext(ctx, "upstream returned non-2xx status", "status", res.StatusCode)
	}

	payload, err := rows.Parse(res.Body)
	if errors.Is(err, rows.ErrNotJSON) {
		logger.WarnContext(ctx, "upstream returned non-JSON body",
			"status", res.StatusCode,
			"page", upstream.Describe(res.Body),
		)
		return d.persistError(ctx, region, key, ReasonNonJSON, res.Body)
	}
	if payload.Kind == rows.Scalar {
		logger.WarnContext(ctx, "upstream returned a scalar payload", "payload", string(res.Body))
		return d.persistError(ctx, region, key, ReasonUnexpectedPayload, res.Body)
	}

	value := payload.Value(d.opts.Fields)
	if payload.Kind == rows.Rows {
		if extra := rows.Overflowing(value.([]rows.Record)); len(extra) > 0 {
			logger.WarnContext(ctx, "upstream sent more columns than the field list names", "extra", extra)
		}
	}

	if err := d.store.WriteJSON(ctx, key, value); err != nil {
		logger.ErrorContext(ctx, "region write failed", "err", err)
		return Result{Region: region, Reason: err.Error()}
	}

	count := payload.Count()
	logger.InfoContext(ctx, "region saved", "records", count, "key", key)
	return Result{Region: region, OK: true, Count: count, Key: key}
}

func (d *Downloader) persistError(ctx context.Context, region, key, reason string, body []byte) Result {
	artifact := store.ErrorArtifact{Error: reason, Raw: string(body)}
	if err := d.store.WriteJSON(ctx, key, artifact); err != nil {
		slog.ErrorContext(ctx, "region write failed", "region", region, "err", err)
		return Result{Region: region, Reason: fmt.Sprintf("%s: %v", reason, err)}
	}
	return Result{Region: region, Reason: reason, Key: key}
}

// RunAll downloads every region with Concurrency workers pulling from one
// shared queue, and returns once all of them are done. Results are in the
// order of the input. Cancelling ctx makes the remaining regions fail fast;
// each still gets a Result.
func (d *Downloader) RunAll(ctx context.Context, list []string) []Result {
	results := make([]Result, len(list))

	type job struct {
		index  int
		region string
	}

	// Seeded and closed up front; receiving is the atomic pop.
	jobs := make(chan job, len(list))
	for i, r := range list {
		jobs <- job{index: i, region: r}
	}
	close(jobs)

	workers := d.opts.Concurrency
	reporter := d.opts.Progress

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				if reporter != nil {
					reporter.Started()
				}

				res := d.DownloadRegion(ctx, j.region)
				results[j.index] = res

				if reporter != nil {
					if res.OK {
						reporter.Completed(res.Count)
					} else {
						reporter.Failed()
					}
				}

				if len(jobs) > 0 && d.opts.PoliteDelay > 0 {
					wait(ctx, d.opts.PoliteDelay)
				}
			}
		}()
	}

	wg.Wait()
	return results
}

// Failures returns the results that did not succeed.
func Failures(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if !r.OK {
			out = append(out, r)
		}
	}
	return out
}

// Records sums the record counts of the successful results.
func Records(results []Result) int {
	n := 0
	for _, r := range results {
		if r.OK {
			n += r.Count
		}
	}
	return n
}

func wait(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
