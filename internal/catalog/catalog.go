// Package catalog answers questions about stored institution records: which
// id and name a record goes by, whether it matches a query, and how it is
// summarised in listings.
//
// Records come from several upstream shapes, so most accessors look at a
// short list of alias keys and take the first usable one.
package catalog

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/collegelist/aicte/internal/regions"
	"github.com/collegelist/aicte/internal/rows"
)

// Search limits.
const (
	DefaultLimit = 25
	MaxLimit     = 200
	MinQueryLen  = 3
)

// Summary is the listing form of an institution.
type Summary struct {
	ID              *string `json:"id" csv:"id"`
	Name            *string `json:"name" csv:"name"`
	University      *string `json:"university" csv:"university"`
	State           *string `json:"state" csv:"state"`
	District        *string `json:"district" csv:"district"`
	ProgrammesCount int     `json:"programmes_count" csv:"programmes_count"`
}

// PrimaryID returns the identifier used to look up an institution upstream:
// the first truthy of id, aicte_id and other_id, then other if it is a
// non-empty string.
func PrimaryID(rec rows.Record) (string, bool) {
	for _, k := range []string{"id", "aicte_id", "other_id"} {
		if v := rec[k]; truthy(v) {
			return String(v), true
		}
	}
	if s, ok := rec["other"].(string); ok && s != "" {
		return s, true
	}
	return "", false
}

// MatchesID reports whether any of the id aliases of rec equals id, ignoring
// case.
func MatchesID(rec rows.Record, id string) bool {
	for _, k := range []string{"id", "aicte_id", "other_id", "other"} {
		v := rec[k]
		if !truthy(v) {
			continue
		}
		if strings.EqualFold(String(v), id) {
			return true
		}
	}
	return false
}

// Find returns the first record matching id.
func Find(recs []rows.Record, id string) (rows.Record, bool) {
	for _, rec := range recs {
		if MatchesID(rec, id) {
			return rec, true
		}
	}
	return nil, false
}

// Name returns the institution name.
func Name(rec rows.Record) (string, bool) {
	return first(rec, "institute_name", "institute", "name")
}

// University returns the affiliating university.
func University(rec rows.Record) (string, bool) {
	return first(rec, "university", "affiliated_university")
}

// District returns the district, falling back to the city.
func District(rec rows.Record) (string, bool) {
	return first(rec, "district", "city")
}

// State returns the state the record names, if any.
func State(rec rows.Record) (string, bool) {
	return first(rec, "state")
}

// Programmes returns the programme list attached by enrichment.
func Programmes(rec rows.Record) []any {
	p, _ := rec["programmes"].([]any)
	return p
}

// Summarize renders rec in listing form.
func Summarize(rec rows.Record) Summary {
	s := Summary{ProgrammesCount: len(Programmes(rec))}
	if id, ok := firstAlias(rec, "id", "aicte_id", "institute_id", "other_id"); ok {
		s.ID = &id
	}
	s.Name = ptr(Name(rec))
	s.University = ptr(University(rec))
	s.State = ptr(State(rec))
	s.District = ptr(District(rec))
	return s
}

// Query is a search request.
type Query struct {
	State string
	Q     string
	Page  int
	Limit int
	// FilterState drops records whose state does not match State. It is
	// off when the records were read from the region's own artifact.
	FilterState bool
}

// Page is one page of search results.
type Page struct {
	Total   int       `json:"total"`
	Page    int       `json:"page"`
	Limit   int       `json:"limit"`
	Results []Summary `json:"results"`
}

// NormalizePage returns page, or 1 when it is below 1.
func NormalizePage(page int) int {
	if page < 1 {
		return 1
	}
	return page
}

// NormalizeLimit clamps limit to [1, MaxLimit]; zero means DefaultLimit.
func NormalizeLimit(limit int) int {
	switch {
	case limit == 0:
		return DefaultLimit
	case limit < 1:
		return 1
	case limit > MaxLimit:
		return MaxLimit
	default:
		return limit
	}
}

// Search filters recs by q and pages the result.
func Search(recs []rows.Record, q Query) Page {
	page := NormalizePage(q.Page)
	limit := NormalizeLimit(q.Limit)
	needle := strings.ToLower(strings.TrimSpace(q.Q))

	var matched []rows.Record
	for _, rec := range recs {
		if q.FilterState && !inState(rec, q.State) {
			continue
		}
		if needle != "" && !matchesText(rec, needle) {
			continue
		}
		matched = append(matched, rec)
	}

	out := Page{Total: len(matched), Page: page, Limit: limit, Results: []Summary{}}
	start := (page - 1) * limit
	if start >= len(matched) {
		return out
	}
	end := start + limit
	if end > len(matched) {
		end = len(matched)
	}
	for _, rec := range matched[start:end] {
		out.Results = append(out.Results, Summarize(rec))
	}
	return out
}

func inState(rec rows.Record, state string) bool {
	s, _ := first(rec, "state", "region")
	s = strings.ToLower(s)
	return strings.Contains(s, strings.ToLower(state)) || strings.Contains(s, regions.Slug(state))
}

func matchesText(rec rows.Record, needle string) bool {
	name, _ := Name(rec)
	uni, _ := University(rec)
	district, _ := first(rec, "district", "city", "taluk")
	address, _ := first(rec, "address")
	for _, s := range []string{name, uni, district, address} {
		if strings.Contains(strings.ToLower(s), needle) {
			return true
		}
	}
	for _, p := range Programmes(rec) {
		prog, ok := p.(map[string]any)
		if !ok {
			continue
		}
		pn, _ := first(prog, "programme_name", "programme", "name")
		if strings.Contains(strings.ToLower(pn), needle) {
			return true
		}
	}
	return false
}

// String renders a scalar JSON value as text.
func String(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}

func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case string:
		return t != ""
	case bool:
		return t
	case json.Number:
		f, err := t.Float64()
		return err != nil || f != 0
	case float64:
		return t != 0
	case int:
		return t != 0
	default:
		return true
	}
}

// first returns the first key of rec holding a non-empty scalar.
func first(rec rows.Record, keys ...string) (string, bool) {
	for _, k := range keys {
		v, ok := rec[k]
		if !ok || v == nil {
			continue
		}
		switch v.(type) {
		case map[string]any, []any:
			continue
		}
		if s := String(v); s != "" {
			return s, true
		}
	}
	return "", false
}

// firstAlias is like first but stops at the first present key, even if it
// holds an empty string.
func firstAlias(rec rows.Record, keys ...string) (string, bool) {
	for _, k := range keys {
		if v, ok := rec[k]; ok && v != nil {
			return String(v), true
		}
	}
	return "", false
}

func ptr(s string, ok bool) *string {
	if !ok {
		return nil
	}
	return &s
}
