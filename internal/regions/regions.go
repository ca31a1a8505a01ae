// Package regions holds the fixed list of administrative regions the upstream
// directory is partitioned by, and the slug rule used to name their artifacts.
package regions

import (
	"regexp"
	"strings"
)

// all is never handed out directly; All returns a copy.
var all = [...]string{
	"Andaman and Nicobar Islands",
	"Andhra Pradesh",
	"Arunachal Pradesh",
	"Assam",
	"Bihar",
	"Chandigarh",
	"Chhattisgarh",
	"Dadra and Nagar Haveli",
	"Daman and Diu",
	"Delhi",
	"Goa",
	"Gujarat",
	"Haryana",
	"Himachal Pradesh",
	"Jammu and Kashmir",
	"Jharkhand",
	"Karnataka",
	"Kerala",
	"Madhya Pradesh",
	"Maharashtra",
	"Manipur",
	"Meghalaya",
	"Mizoram",
	"Nagaland",
	"Odisha",
	"Orissa",
	"Puducherry",
	"Punjab",
	"Rajasthan",
	"Sikkim",
	"Tamil Nadu",
	"Telangana",
	"Tripura",
	"Uttar Pradesh",
	"Uttarakhand",
	"West Bengal",
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// All returns the region names in their canonical order.
func All() []string {
	out := make([]string, len(all))
	copy(out, all[:])
	return out
}

// Len returns the number of known regions.
func Len() int {
	return len(all)
}

// Slug returns a filesystem-safe identifier for s: lowercase, every run of
// characters outside [a-z0-9] collapsed to a single '-', and no leading or
// trailing '-'.
func Slug(s string) string {
	return strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(s), "-"), "-")
}

// Lookup resolves a region by name or slug, case-insensitively.
func Lookup(nameOrSlug string) (string, bool) {
	want := Slug(nameOrSlug)
	if want == "" {
		return "", false
	}
	for _, r := range all {
		if Slug(r) == want {
			return r, true
		}
	}
	return "", false
}

// Entry pairs a region name with its slug.
type Entry struct {
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// Entries returns every region with its slug.
func Entries() []Entry {
	out := make([]Entry, 0, len(all))
	for _, r := range all {
		out = append(out, Entry{Name: r, Slug: Slug(r)})
	}
	return out
}
