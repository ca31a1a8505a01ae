// Package upstream knows how to address the AICTE dashboard endpoints.
package upstream

import (
	"bytes"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

const (
	// InstituteEndpoint lists approved institutes, filtered by state.
	InstituteEndpoint = "https://facilities.aicte-india.org/dashboard/pages/php/approvedinstituteserver.php"

	// CourseEndpoint lists the approved courses of one institute.
	CourseEndpoint = "https://facilities.aicte-india.org/dashboard/pages/php/approvedcourse.php"

	// DefaultYear is the academic year queried when none is configured.
	DefaultYear = "2025-2026"

	// DefaultCourse is the course id queried when none is configured.
	DefaultCourse = "1"

	// DefaultState is used by the online listing when the caller names none.
	DefaultState = "Tamil Nadu"
)

// Headers are sent with every upstream request. The endpoints only answer
// with JSON when the request looks like the dashboard's own XHR.
var Headers = map[string]string{
	"Accept":           "application/json, text/javascript, */*; q=0.01",
	"X-Requested-With": "XMLHttpRequest",
}

// InstituteQuery holds the parameters of an institute listing request.
type InstituteQuery struct {
	Year            string
	Program         string
	Level           string
	InstitutionType string
	Women           string
	Minority        string
	State           string
	Course          string
}

// DefaultInstituteQuery returns the parameter set the dashboard uses for an
// unfiltered listing of DefaultState.
func DefaultInstituteQuery() InstituteQuery {
	return InstituteQuery{
		Year:            DefaultYear,
		Program:         "1",
		Level:           "1",
		InstitutionType: "1",
		Women:           "1",
		Minority:        "1",
		State:           DefaultState,
		Course:          DefaultCourse,
	}
}

// Values renders q as upstream query parameters.
func (q InstituteQuery) Values() url.Values {
	v := url.Values{}
	v.Set("method", "fetchdata")
	v.Set("year", q.Year)
	v.Set("program", q.Program)
	v.Set("level", q.Level)
	v.Set("institutiontype", q.InstitutionType)
	v.Set("Women", q.Women)
	v.Set("Minority", q.Minority)
	v.Set("state", q.State)
	v.Set("course", q.Course)
	return v
}

// Override replaces parameters of base with those present in extra, except
// the keys listed in skip.
func Override(base, extra url.Values, skip ...string) url.Values {
	out := url.Values{}
	for k, vs := range base {
		out[k] = append([]string(nil), vs...)
	}
	for k, vs := range extra {
		if contains(skip, k) || len(vs) == 0 {
			continue
		}
		out.Set(k, vs[len(vs)-1])
	}
	return out
}

// ProgrammeValues returns the course endpoint parameters for an institute.
// The endpoint expects aicteid, course and year wrapped in slashes; values
// already wrapped are left alone. extra may override course and year and add
// other parameters; skip lists keys of extra to ignore.
func ProgrammeValues(aicteID, year, course string, extra url.Values, skip ...string) url.Values {
	v := url.Values{}
	v.Set("method", "fetchdata")
	v.Set("aicteid", Wrap(aicteID))
	v.Set("course", Wrap(course))
	v.Set("year", Wrap(year))

	for k, vs := range extra {
		if contains(skip, k) || len(vs) == 0 || k == "aicteid" {
			continue
		}
		val := vs[len(vs)-1]
		if k == "course" || k == "year" {
			val = Wrap(val)
		}
		v.Set(k, val)
	}
	return v
}

// Wrap surrounds s with slashes unless it already is. A lone slash counts
// as wrapped.
func Wrap(s string) string {
	if s == "" || s == "/" {
		return s
	}
	if strings.HasPrefix(s, "/") && strings.HasSuffix(s, "/") {
		return s
	}
	return "/" + s + "/"
}

// URL joins an endpoint and query parameters.
func URL(endpoint string, v url.Values) string {
	if len(v) == 0 {
		return endpoint
	}
	sep := "?"
	if strings.Contains(endpoint, "?") {
		sep = "&"
	}
	return endpoint + sep + v.Encode()
}

// Describe summarises a non-JSON body for log lines: the HTML title if there
// is one, otherwise the first bit of visible text.
func Describe(body []byte) string {
	const max = 120

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return truncate(strings.TrimSpace(string(body)), max)
	}
	if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
		return truncate(title, max)
	}
	return truncate(strings.Join(strings.Fields(doc.Text()), " "), max)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	s = s[:n]
	for !utf8.ValidString(s) {
		s = s[:len(s)-1]
	}
	return s + "…"
}

func contains(list []string, s string) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}
	return false
}
