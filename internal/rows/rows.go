// Package rows turns upstream table payloads into keyed records.
//
// The upstream directory answers either with an array of arrays (one array per
// row, columns identified only by position) or with an array of objects.
// [Classify] decides which one a decoded payload is, and [Map] attaches field
// names to positional rows.
//
// Column order is an unversioned upstream contract. If upstream adds or
// reorders columns, records gain col_<n> keys or carry values under the wrong
// names; [Overflowing] helps spot the first case.
package rows

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
)

// Record is one keyed upstream row.
type Record = map[string]any

// InstitutionFields names the columns of the institute listing endpoint.
var InstitutionFields = []string{
	"aicte_id",
	"institute_name",
	"address",
	"district",
	"institution_type",
	"women",
	"minority",
	"other_id",
}

// ProgrammeFields names the columns of the course listing endpoint.
var ProgrammeFields = []string{
	"aicte_id",
	"institute_name",
	"state",
	"programme",
	"university",
	"level",
	"course",
	"course_type",
	"shift",
	"availability",
	"intake",
	"enrollment",
	"placement",
}

// ErrNotJSON is returned by Parse when the body is not a JSON document.
var ErrNotJSON = errors.New("rows: payload is not json")

// Kind identifies the shape of a decoded payload.
type Kind int

const (
	// Rows is a non-empty array whose first element is an array.
	Rows Kind = iota
	// Objects is any other array, including the empty one.
	Objects
	// Object is a single JSON object.
	Object
	// Scalar is a string, number, boolean or null.
	Scalar
)

func (k Kind) String() string {
	switch k {
	case Rows:
		return "rows"
	case Objects:
		return "objects"
	case Object:
		return "object"
	case Scalar:
		return "scalar"
	default:
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Payload is a classified upstream payload. Exactly one of the value fields
// is set, according to Kind.
type Payload struct {
	Kind   Kind
	Rows   [][]any
	Items  []any
	Object Record
	Scalar any
}

// Classify determines the shape of v, a value produced by encoding/json.
func Classify(v any) Payload {
	switch t := v.(type) {
	case []any:
		if len(t) > 0 {
			if _, ok := t[0].([]any); ok {
				out := make([][]any, len(t))
				for i, el := range t {
					// A stray non-array row maps to an empty record.
					row, _ := el.([]any)
					out[i] = row
				}
				return Payload{Kind: Rows, Rows: out}
			}
		}
		return Payload{Kind: Objects, Items: t}
	case map[string]any:
		return Payload{Kind: Object, Object: t}
	default:
		return Payload{Kind: Scalar, Scalar: t}
	}
}

// Parse decodes body and classifies it. Numbers are kept as json.Number so
// identifiers survive a round trip unchanged.
func Parse(body []byte) (Payload, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return Payload{}, fmt.Errorf("%w: %v", ErrNotJSON, err)
	}
	// Trailing garbage after a valid document is still not JSON.
	if _, err := dec.Token(); err != io.EOF {
		return Payload{}, fmt.Errorf("%w: trailing data", ErrNotJSON)
	}
	return Classify(v), nil
}

// Map zips each row against fields. Positions past the end of fields are
// named col_<index>. Every position yields a key, nil values included.
func Map(rows [][]any, fields []string) []Record {
	out := make([]Record, 0, len(rows))
	for _, row := range rows {
		rec := make(Record, len(row))
		for i, v := range row {
			rec[fieldName(fields, i)] = v
		}
		out = append(out, rec)
	}
	return out
}

func fieldName(fields []string, i int) string {
	if i < len(fields) && fields[i] != "" {
		return fields[i]
	}
	return "col_" + strconv.Itoa(i)
}

// Value renders the payload as the JSON value to persist or serve: rows are
// mapped with fields, everything else is returned unchanged.
func (p Payload) Value(fields []string) any {
	switch p.Kind {
	case Rows:
		return Map(p.Rows, fields)
	case Objects:
		return p.Items
	case Object:
		return p.Object
	default:
		return p.Scalar
	}
}

// Count is the number of records the payload holds. A lone object counts as
// one; a scalar counts as zero.
func (p Payload) Count() int {
	switch p.Kind {
	case Rows:
		return len(p.Rows)
	case Objects:
		return len(p.Items)
	case Object:
		return 1
	default:
		return 0
	}
}

// Records returns the payload as a list of records. Rows are mapped, a lone
// object is wrapped, array elements that are not objects are dropped.
func (p Payload) Records(fields []string) []Record {
	switch p.Kind {
	case Rows:
		return Map(p.Rows, fields)
	case Objects:
		out := make([]Record, 0, len(p.Items))
		for _, it := range p.Items {
			if rec, ok := it.(map[string]any); ok {
				out = append(out, rec)
			}
		}
		return out
	case Object:
		return []Record{p.Object}
	default:
		return nil
	}
}

// ParseFields splits a comma-separated field list, trimming blanks and
// dropping empty entries. It returns nil when nothing remains.
func ParseFields(s string) []string {
	var out []string
	for _, f := range strings.Split(s, ",") {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

// Overflowing returns the synthetic col_<n> keys present in recs, which
// indicate that upstream sent more columns than the field list names.
func Overflowing(recs []Record) []string {
	seen := make(map[string]bool)
	var out []string
	for _, rec := range recs {
		for k := range rec {
			if strings.HasPrefix(k, "col_") && !seen[k] {
				seen[k] = true
				out = append(out, k)
			}
		}
	}
	sort.Strings(out)
	return out
}
