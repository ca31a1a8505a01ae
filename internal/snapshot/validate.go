package snapshot

import (
	"context"
	"errors"
	"fmt"

	"github.com/collegelist/aicte/internal/regions"
	"github.com/collegelist/aicte/pkg/store"
)

// ValidationResult describes the state of the stored region artifacts.
type ValidationResult struct {
	Valid      bool     // every region has a usable artifact
	Regions    int      // regions checked
	Records    int      // records across the usable artifacts
	Missing    []string // regions without an artifact
	Failed     []string // regions whose artifact is an error artifact
	Unreadable []string // regions whose artifact cannot be parsed
	Errors     []string // one message per problem
}

// Broken returns the regions that need downloading again.
func (r *ValidationResult) Broken() []string {
	out := make([]string, 0, len(r.Missing)+len(r.Failed)+len(r.Unreadable))
	out = append(out, r.Missing...)
	out = append(out, r.Failed...)
	return append(out, r.Unreadable...)
}

// Validate checks that each region in list has an artifact holding records.
// Problems with individual artifacts are reported in the result; only a
// cancelled context is returned as an error.
func Validate(ctx context.Context, st *store.Store, list []string) (*ValidationResult, error) {
	res := &ValidationResult{Valid: true, Regions: len(list), Errors: make([]string, 0)}

	for _, region := range list {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		key := store.RegionKey(regions.Slug(region))

		recs, err := readArtifact(ctx, st, key)
		switch {
		case err == nil:
			res.Records += len(recs)
		case errors.Is(err, store.ErrNotFound):
			res.Valid = false
			res.Missing = append(res.Missing, region)
			res.Errors = append(res.Errors, fmt.Sprintf("%s missing: %s", region, key))
		case errors.Is(err, errErrorArtifact):
			res.Valid = false
			res.Failed = append(res.Failed, region)
			res.Errors = append(res.Errors, fmt.Sprintf("%s failed: %s", region, errorReason(ctx, st, key)))
		default:
			res.Valid = false
			res.Unreadable = append(res.Unreadable, region)
			res.Errors = append(res.Errors, fmt.Sprintf("%s unreadable: %v", region, err))
		}
	}
	return res, nil
}

func errorReason(ctx context.Context, st *store.Store, key string) string {
	var a store.ErrorArtifact
	if err := st.ReadJSON(ctx, key, &a); err != nil || a.Error == "" {
		return "error artifact"
	}
	return a.Error
}
