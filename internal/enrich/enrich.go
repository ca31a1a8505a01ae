// Package enrich attaches the approved programmes of every institution to
// the region artifacts and writes the enriched snapshot.
package enrich

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/collegelist/aicte/internal/catalog"
	aictehttp "github.com/collegelist/aicte/internal/http"
	"github.com/collegelist/aicte/internal/progress"
	"github.com/collegelist/aicte/internal/rows"
	"github.com/collegelist/aicte/internal/snapshot"
	"github.com/collegelist/aicte/internal/upstream"
	"github.com/collegelist/aicte/pkg/store"
)

// Keys removed from every programme; state and university are hoisted to
// the institution first.
var stripped = []string{"aicte_id", "institute_name", "state", "university"}

// Fetcher performs one logical upstream GET, retries included.
type Fetcher interface {
	Get(ctx context.Context, url string, headers map[string]string) (*aictehttp.Response, error)
}

// Options configures the enricher.
type Options struct {
	// Concurrency is the batch size; a batch is fetched in parallel.
	// Default: 8
	Concurrency int

	// Endpoint is the course listing endpoint.
	// Default: upstream.CourseEndpoint
	Endpoint string

	// Year and Course select the listing.
	// Default: upstream.DefaultYear, upstream.DefaultCourse
	Year   string
	Course string

	// Fields names the columns of row-shaped programme payloads.
	// Default: rows.ProgrammeFields
	Fields []string

	// Retries is how many times a lookup whose body cannot be used is
	// repeated. Transport failures are retried by the Fetcher.
	// Default: 0
	Retries int

	// Backoff is the delay before the first repeat, doubled for each
	// later one.
	// Default: 300ms
	Backoff time.Duration

	// Progress is an optional progress reporter counting institutions.
	Progress *progress.Reporter
}

// Listing is the programme list of one institution with the values hoisted
// out of it.
type Listing struct {
	Programmes []rows.Record
	State      string
	University string
}

// Checkpoint is written after every batch.
type Checkpoint struct {
	File      string `json:"file"`
	Processed int    `json:"processed"`
}

// Summary is the outcome of a run.
type Summary struct {
	Files        int
	Institutions int
	Failed       []string // unique ids, in order of failure
}

// Enricher looks up programmes and merges them into stored records.
type Enricher struct {
	fetcher Fetcher
	store   *store.Store
	opts    Options
}

// New creates an Enricher. Zero fields of opts take their defaults.
func New(fetcher Fetcher, st *store.Store, opts Options) *Enricher {
	if opts.Concurrency < 1 {
		opts.Concurrency = 8
	}
	if opts.Endpoint == "" {
		opts.Endpoint = upstream.CourseEndpoint
	}
	if opts.Year == "" {
		opts.Year = upstream.DefaultYear
	}
	if opts.Course == "" {
		opts.Course = upstream.DefaultCourse
	}
	if len(opts.Fields) == 0 {
		opts.Fields = rows.ProgrammeFields
	}
	if opts.Retries < 0 {
		opts.Retries = 0
	}
	if opts.Backoff <= 0 {
		opts.Backoff = 300 * time.Millisecond
	}
	return &Enricher{fetcher: fetcher, store: st, opts: opts}
}

// Programmes fetches the programme listing of an institution. A non-2xx
// answer yields an empty listing. A body that cannot be used is fetched
// again up to Retries times before it is reported as an error.
func (e *Enricher) Programmes(ctx context.Context, id string) (*Listing, error) {
	attempts := e.opts.Retries + 1
	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		l, err := e.fetchProgrammes(ctx, id)
		if err == nil || !errors.Is(err, errUnusableBody) {
			return l, err
		}
		lastErr = err
		if attempt == attempts {
			break
		}

		delay := e.opts.Backoff * time.Duration(1<<uint(min(attempt-1, 20)))
		slog.WarnContext(ctx, "programme lookup returned an unusable body",
			"id", id,
			"attempt", attempt,
			"err", err,
			"retry_in", delay,
		)
		if err := sleep(ctx, delay); err != nil {
			return nil, err
		}
	}
	return nil, lastErr
}

var errUnusableBody = errors.New("unusable body")

func (e *Enricher) fetchProgrammes(ctx context.Context, id string) (*Listing, error) {
	v := upstream.ProgrammeValues(id, e.opts.Year, e.opts.Course, nil)
	res, err := e.fetcher.Get(ctx, upstream.URL(e.opts.Endpoint, v), upstream.Headers)
	if err != nil {
		return nil, err
	}
	if !res.OK() {
		slog.WarnContext(ctx, "upstream failed for institution", "id", id, "status", res.StatusCode)
		return &Listing{Programmes: []rows.Record{}}, nil
	}

	p, err := rows.Parse(res.Body)
	if err != nil {
		return nil, fmt.Errorf("programmes of %s: %w: %w (%s)", id, errUnusableBody, err, upstream.Describe(res.Body))
	}
	if p.Kind == rows.Scalar {
		return nil, fmt.Errorf("programmes of %s: %w: unexpected %s payload", id, errUnusableBody, p.Kind)
	}

	return hoist(p.Records(e.opts.Fields)), nil
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// hoist copies each programme without the institution-level keys and keeps
// the first non-empty state and university seen.
func hoist(recs []rows.Record) *Listing {
	l := &Listing{Programmes: make([]rows.Record, 0, len(recs))}
	for _, rec := range recs {
		cp := make(rows.Record, len(rec))
		for k, v := range rec {
			cp[k] = v
		}
		if s, ok := cp["state"].(string); ok && s != "" && l.State == "" {
			l.State = s
		}
		if s, ok := cp["university"].(string); ok && s != "" && l.University == "" {
			l.University = s
		}
		for _, k := range stripped {
			delete(cp, k)
		}
		l.Programmes = append(l.Programmes, cp)
	}
	return l
}

// Apply attaches l to inst. State and university are only set when inst has
// no value for them.
func Apply(inst rows.Record, l *Listing) {
	progs := make([]any, len(l.Programmes))
	for i, p := range l.Programmes {
		progs[i] = map[string]any(p)
	}
	inst["programmes"] = progs
	if l.State != "" && !present(inst["state"]) {
		inst["state"] = l.State
	}
	if l.University != "" && !present(inst["university"]) {
		inst["university"] = l.University
	}
}

func present(v any) bool {
	s, isString := v.(string)
	return v != nil && (!isString || s != "")
}

// Run enriches every region artifact in place, then writes the enriched
// snapshot and the failures artifact. Institutions without an id are left
// untouched.
func (e *Enricher) Run(ctx context.Context) (*Summary, error) {
	keys, err := e.store.RegionKeys(ctx)
	if err != nil {
		return nil, fmt.Errorf("list region artifacts: %w", err)
	}
	slog.InfoContext(ctx, "found region artifacts", "count", len(keys))

	sum := &Summary{}
	combined := make([]rows.Record, 0)
	failed := newIDSet()

	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		insts, err := e.load(ctx, key)
		if errors.Is(err, errErrorArtifact) {
			continue
		}
		if err != nil {
			slog.WarnContext(ctx, "skipping region artifact", "key", key, "err", err)
			continue
		}

		e.enrichFile(ctx, key, insts, failed)

		if err := e.store.WriteJSON(ctx, key, insts); err != nil {
			slog.WarnContext(ctx, "failed to write enriched region artifact", "key", key, "err", err)
		} else {
			slog.InfoContext(ctx, "wrote enriched region artifact", "key", key, "institutions", len(insts))
		}

		combined = append(combined, insts...)
		sum.Files++
	}
	sum.Institutions = len(combined)

	if err := e.store.WriteJSON(ctx, store.EnrichedKey, combined); err != nil {
		return nil, fmt.Errorf("write enriched snapshot: %w", err)
	}

	sum.Failed = failed.list()
	if len(sum.Failed) > 0 {
		if err := e.store.WriteJSON(ctx, store.EnrichFailuresKey, sum.Failed); err != nil {
			slog.WarnContext(ctx, "failed to write enrichment failures", "err", err)
		}
	} else if err := e.store.Delete(ctx, store.EnrichFailuresKey); err != nil {
		slog.WarnContext(ctx, "failed to remove stale enrichment failures", "err", err)
	}
	return sum, nil
}

var errErrorArtifact = errors.New("error artifact")

// load returns the institutions of a region artifact. Artifacts wrapping
// their list in {"data": [...]} are accepted.
func (e *Enricher) load(ctx context.Context, key string) ([]rows.Record, error) {
	data, err := e.store.Read(ctx, key)
	if err != nil {
		return nil, err
	}
	p, err := rows.Parse(data)
	if err != nil {
		return nil, err
	}

	switch p.Kind {
	case rows.Objects:
		return p.Records(nil), nil
	case rows.Object:
		if snapshot.IsErrorArtifact(p.Object) {
			return nil, errErrorArtifact
		}
		if list, ok := p.Object["data"].([]any); ok {
			return rows.Classify(list).Records(nil), nil
		}
		return nil, fmt.Errorf("object without a data list")
	case rows.Rows:
		return p.Records(rows.InstitutionFields), nil
	default:
		return nil, fmt.Errorf("unexpected %s payload", p.Kind)
	}
}

func (e *Enricher) enrichFile(ctx context.Context, key string, insts []rows.Record, failed *idSet) {
	size := e.opts.Concurrency
	reporter := e.opts.Progress

	for i := 0; i < len(insts); i += size {
		end := min(i+size, len(insts))

		var g errgroup.Group
		for _, inst := range insts[i:end] {
			id, ok := catalog.PrimaryID(inst)
			if !ok {
				continue
			}
			g.Go(func() error {
				if reporter != nil {
					reporter.Started()
				}
				l, err := e.Programmes(ctx, id)
				if err != nil {
					slog.WarnContext(ctx, "programme lookup failed", "id", id, "err", err)
					failed.add(id)
					if reporter != nil {
						reporter.Failed()
					}
					return nil
				}
				Apply(inst, l)
				if reporter != nil {
					reporter.Completed(len(l.Programmes))
				}
				return nil
			})
		}
		g.Wait()

		cp := Checkpoint{File: path.Base(key), Processed: end}
		if err := e.store.WriteJSON(ctx, store.EnrichProgressKey, cp); err != nil {
			slog.DebugContext(ctx, "failed to write checkpoint", "err", err)
		}
	}
}

// idSet collects ids once each, keeping first-seen order.
type idSet struct {
	mu   sync.Mutex
	seen map[string]bool
	ids  []string
}

func newIDSet() *idSet {
	return &idSet{seen: make(map[string]bool)}
}

func (s *idSet) add(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.seen[id] {
		s.seen[id] = true
		s.ids = append(s.ids, id)
	}
}

func (s *idSet) list() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.ids...)
}
