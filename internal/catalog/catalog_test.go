package catalog

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/collegelist/aicte/internal/rows"
)

func str(s string) *string { return &s }

func TestPrimaryID(t *testing.T) {
	tests := []struct {
		name string
		rec  rows.Record
		want string
		ok   bool
	}{
		{"id wins", rows.Record{"id": "X", "aicte_id": "1-1"}, "X", true},
		{"aicte_id", rows.Record{"aicte_id": "1-123"}, "1-123", true},
		{"numeric aicte_id", rows.Record{"aicte_id": json.Number("42")}, "42", true},
		{"empty aicte_id falls through", rows.Record{"aicte_id": "", "other_id": "O-1"}, "O-1", true},
		{"zero is falsy", rows.Record{"aicte_id": json.Number("0"), "other": "abc"}, "abc", true},
		{"other must be a string", rows.Record{"other": json.Number("7")}, "", false},
		{"nothing", rows.Record{"institute_name": "A"}, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := PrimaryID(tt.rec)
			require.Equal(t, tt.ok, ok)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestMatchesID(t *testing.T) {
	rec := rows.Record{"aicte_id": "1-ABC", "other_id": nil}
	require.True(t, MatchesID(rec, "1-ABC"))
	require.True(t, MatchesID(rec, "1-abc"))
	require.False(t, MatchesID(rec, "1-AB"))

	found, ok := Find([]rows.Record{{"id": "a"}, rec}, "1-abc")
	require.True(t, ok)
	require.Equal(t, rec, found)

	_, ok = Find(nil, "x")
	require.False(t, ok)
}

func TestSummarize(t *testing.T) {
	rec := rows.Record{
		"aicte_id":       "1-1",
		"institute_name": "Goa College of Engineering",
		"city":           "Ponda",
		"programmes":     []any{map[string]any{"programme": "ENGINEERING"}, map[string]any{}},
	}
	require.Equal(t, Summary{
		ID:              str("1-1"),
		Name:            str("Goa College of Engineering"),
		District:        str("Ponda"),
		ProgrammesCount: 2,
	}, Summarize(rec))

	data, err := json.Marshal(Summarize(rows.Record{}))
	require.NoError(t, err)
	require.JSONEq(t, `{"id":null,"name":null,"university":null,"state":null,"district":null,"programmes_count":0}`, string(data))
}

func TestNormalize(t *testing.T) {
	require.Equal(t, 1, NormalizePage(0))
	require.Equal(t, 1, NormalizePage(-4))
	require.Equal(t, 3, NormalizePage(3))

	require.Equal(t, DefaultLimit, NormalizeLimit(0))
	require.Equal(t, 1, NormalizeLimit(-5))
	require.Equal(t, MaxLimit, NormalizeLimit(1000))
	require.Equal(t, 50, NormalizeLimit(50))
}

func sample() []rows.Record {
	return []rows.Record{
		{"aicte_id": "1", "institute_name": "Alpha Institute of Technology", "state": "Tamil Nadu", "district": "Chennai"},
		{"aicte_id": "2", "institute_name": "Beta College", "state": "Tamil Nadu", "university": "Anna University"},
		{"aicte_id": "3", "institute_name": "Gamma Polytechnic", "state": "Kerala", "address": "Near Anna Nagar"},
		{"aicte_id": "4", "institute_name": "Delta School", "state": "tamil-nadu", "programmes": []any{
			map[string]any{"programme": "Computer Applications"},
		}},
	}
}

func TestSearchText(t *testing.T) {
	page := Search(sample(), Query{State: "Tamil Nadu", Q: "anna", FilterState: true})
	require.Equal(t, 1, page.Total)
	require.Equal(t, "2", *page.Results[0].ID)

	page = Search(sample(), Query{State: "Tamil Nadu", Q: "anna"})
	require.Equal(t, 2, page.Total, "state filter off")

	page = Search(sample(), Query{State: "Tamil Nadu", Q: "COMPUTER", FilterState: true})
	require.Equal(t, 1, page.Total, "slug state and programme names match")
	require.Equal(t, "4", *page.Results[0].ID)
	require.Equal(t, 1, page.Results[0].ProgrammesCount)
}

func TestSearchPagination(t *testing.T) {
	var recs []rows.Record
	for i := 0; i < 30; i++ {
		recs = append(recs, rows.Record{"aicte_id": fmt.Sprint(i), "institute_name": fmt.Sprintf("College %02d", i)})
	}

	page := Search(recs, Query{Q: "college", Page: 2, Limit: 10})
	require.Equal(t, 30, page.Total)
	require.Equal(t, 2, page.Page)
	require.Equal(t, 10, page.Limit)
	require.Len(t, page.Results, 10)
	require.Equal(t, "10", *page.Results[0].ID)

	page = Search(recs, Query{Q: "college", Page: 4, Limit: 10})
	require.Equal(t, 30, page.Total)
	require.NotNil(t, page.Results)
	require.Empty(t, page.Results)

	page = Search(recs, Query{Q: "college"})
	require.Equal(t, DefaultLimit, page.Limit)
	require.Len(t, page.Results, DefaultLimit)
}
