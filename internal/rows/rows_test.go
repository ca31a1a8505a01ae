package rows

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestMapEmpty(t *testing.T) {
	require.Empty(t, Map(nil, InstitutionFields))
	require.Empty(t, Map([][]any{}, InstitutionFields))
}

func TestMapZipsFields(t *testing.T) {
	in := [][]any{{"1-123", "Some College", "Road", "Chennai", "Private", "N", "N", "1-123"}}
	got := Map(in, InstitutionFields)

	want := []Record{{
		"aicte_id":         "1-123",
		"institute_name":   "Some College",
		"address":          "Road",
		"district":         "Chennai",
		"institution_type": "Private",
		"women":            "N",
		"minority":         "N",
		"other_id":         "1-123",
	}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Map mismatch (-want +got):\n%s", diff)
	}
}

func TestMapDeterministic(t *testing.T) {
	in := [][]any{
		{"a", json.Number("2"), nil},
		{"b"},
		{},
	}
	first := Map(in, []string{"x", "y"})
	second := Map(in, []string{"x", "y"})
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("repeated Map calls differ:\n%s", diff)
	}
}

func TestMapOverflowNamesExtraColumns(t *testing.T) {
	got := Map([][]any{{"a", "b", "c", "d"}}, []string{"first", "second"})

	want := []Record{{"first": "a", "second": "b", "col_2": "c", "col_3": "d"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Map mismatch (-want +got):\n%s", diff)
	}
	require.Equal(t, []string{"col_2", "col_3"}, Overflowing(got))
}

func TestMapKeepsNilValues(t *testing.T) {
	got := Map([][]any{{"a", nil, nil}}, []string{"x", "y"})

	require.Len(t, got, 1)
	v, ok := got[0]["y"]
	require.True(t, ok, "nil value must keep its key")
	require.Nil(t, v)
	v, ok = got[0]["col_2"]
	require.True(t, ok, "nil overflow value must keep its key")
	require.Nil(t, v)

	b, err := json.Marshal(got[0])
	require.NoError(t, err)
	require.JSONEq(t, `{"x":"a","y":null,"col_2":null}`, string(b))
}

func TestMapBlankFieldName(t *testing.T) {
	got := Map([][]any{{"a", "b"}}, []string{"", "name"})
	require.Equal(t, Record{"col_0": "a", "name": "b"}, got[0])
}

func TestParseShapes(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		kind  Kind
		count int
	}{
		{"rows", `[["a","b"],["c"]]`, Rows, 2},
		{"objects", `[{"aicte_id":"x"}]`, Objects, 1},
		{"empty array", `[]`, Objects, 0},
		{"object", `{"aicte_id":"x"}`, Object, 1},
		{"string", `"blocked"`, Scalar, 0},
		{"null", `null`, Scalar, 0},
		{"number", `42`, Scalar, 0},
		{"padded", " \n[[1]]\n ", Rows, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Parse([]byte(tt.body))
			require.NoError(t, err)
			require.Equal(t, tt.kind, p.Kind)
			require.Equal(t, tt.count, p.Count())
		})
	}
}

func TestParseNotJSON(t *testing.T) {
	for _, body := range []string{
		"<html>blocked</html>",
		"",
		`{"a":1} trailing`,
		`[[1]][[2]]`,
	} {
		_, err := Parse([]byte(body))
		require.Error(t, err, "body %q", body)
		require.True(t, errors.Is(err, ErrNotJSON), "body %q: %v", body, err)
	}
}

func TestParseKeepsNumbers(t *testing.T) {
	p, err := Parse([]byte(`[[12345678901234567890, 1.50]]`))
	require.NoError(t, err)

	recs := p.Records([]string{"id", "score"})
	require.Equal(t, json.Number("12345678901234567890"), recs[0]["id"])
	require.Equal(t, json.Number("1.50"), recs[0]["score"])
}

func TestClassifyStrayRow(t *testing.T) {
	p := Classify([]any{[]any{"a"}, map[string]any{"odd": true}})
	require.Equal(t, Rows, p.Kind)

	recs := p.Records([]string{"x"})
	require.Len(t, recs, 2)
	require.Empty(t, recs[1])
}

func TestPayloadRecords(t *testing.T) {
	obj := Classify(map[string]any{"aicte_id": "x"})
	require.Equal(t, []Record{{"aicte_id": "x"}}, obj.Records(nil))

	mixed := Classify([]any{map[string]any{"a": 1}, "stray", nil})
	require.Equal(t, []Record{{"a": 1}}, mixed.Records(nil))
	require.Equal(t, 3, mixed.Count())

	require.Nil(t, Classify("x").Records(nil))
}

func TestPayloadValue(t *testing.T) {
	items := []any{map[string]any{"a": "b"}}
	require.Equal(t, items, Classify(items).Value(nil))
	require.Equal(t, []Record{{"f": "v"}}, Classify([]any{[]any{"v"}}).Value([]string{"f"}))
}

func TestParseFields(t *testing.T) {
	require.Equal(t, []string{"id", "name", "district"}, ParseFields(" id, name,,district ,"))
	require.Nil(t, ParseFields(""))
	require.Nil(t, ParseFields(" , "))
}

// The institute listing currently has eight columns. A sample shaped like
// production data must map without synthetic keys; if this fails, upstream
// has most likely changed its column layout.
func TestInstitutionFieldsCoverSample(t *testing.T) {
	sample := `[["1-44637260871","K RAMAKRISHNAN COLLEGE OF TECHNOLOGY","KARIYAMANICKAM ROAD","TIRUCHIRAPPALLI","Private-Self Financing","N","N","1-44637260871"]]`

	p, err := Parse([]byte(sample))
	require.NoError(t, err)
	require.Empty(t, Overflowing(p.Records(InstitutionFields)))
}

func TestKindString(t *testing.T) {
	require.Equal(t, "rows", Rows.String())
	require.Equal(t, "scalar", Scalar.String())
	require.Equal(t, "kind(9)", Kind(9).String())
}
