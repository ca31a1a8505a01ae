//go:build integration

package downloader_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/collegelist/aicte/internal/downloader"
	aictehttp "github.com/collegelist/aicte/internal/http"
	"github.com/collegelist/aicte/internal/regions"
	"github.com/collegelist/aicte/internal/snapshot"
	"github.com/collegelist/aicte/internal/testutils"
	"github.com/collegelist/aicte/pkg/store"
)

func TestIntegrationDownloadToMinio(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	t.Log("Starting fake upstream...")
	up := testutils.NewUpstream(t)
	all := regions.All()
	for i, r := range all {
		// Every fifth region is blocked; the rest list i institutions.
		if i%5 == 4 {
			up.SetState(r, testutils.HTML(403, "Request Rejected"))
			continue
		}
		rows := [][]string{}
		for j := 0; j < i; j++ {
			id := fmt.Sprintf("1-%d-%d", i, j)
			rows = append(rows, []string{id, "Institute " + id, "Addr", "Dist", "Private", "N", "N", id})
		}
		up.SetState(r, testutils.JSON(t, rows))
	}

	t.Log("Starting Minio container...")
	st := testutils.StartMinio(t, ctx, "aicte-test").OpenStore(t, ctx)

	opts := downloader.DefaultOptions()
	opts.Endpoint = up.InstituteURL()
	opts.Concurrency = 4
	opts.PoliteDelay = 10 * time.Millisecond
	d := downloader.New(aictehttp.NewClient(aictehttp.DefaultOptions()), st, opts)

	results := d.RunAll(ctx, all)
	if len(results) != len(all) {
		t.Fatalf("got %d results, want %d", len(results), len(all))
	}

	var (
		failures []snapshot.Failure
		want     int
	)
	for i, res := range results {
		if i%5 == 4 {
			if res.OK || res.Reason != downloader.ReasonNonJSON {
				t.Errorf("%s: expected non-json failure, got %+v", res.Region, res)
			}
			failures = append(failures, snapshot.Failure{Region: res.Region, Reason: res.Reason})
			continue
		}
		if !res.OK || res.Count != i {
			t.Errorf("%s: expected %d records, got %+v", res.Region, i, res)
		}
		want += i
	}

	sum, err := snapshot.Merge(ctx, st, failures)
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if sum.Records != want {
		t.Errorf("snapshot has %d records, want %d", sum.Records, want)
	}
	if !sum.FailuresWritten {
		t.Error("expected failures artifact")
	}

	got, err := snapshot.ReadFailures(ctx, st)
	if err != nil {
		t.Fatalf("read failures: %v", err)
	}
	if len(got) != len(failures) {
		t.Errorf("failures artifact has %d entries, want %d", len(got), len(failures))
	}

	keys, err := st.RegionKeys(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(keys) != len(all) {
		t.Errorf("bucket has %d region artifacts, want %d", len(keys), len(all))
	}
	if ok, _ := st.Exists(ctx, store.MetaKey); !ok {
		t.Error("snapshot metadata missing")
	}
}
