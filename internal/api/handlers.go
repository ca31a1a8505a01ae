package api

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/collegelist/aicte/internal/catalog"
	"github.com/collegelist/aicte/internal/regions"
	"github.com/collegelist/aicte/internal/rows"
	"github.com/collegelist/aicte/internal/upstream"
	"github.com/collegelist/aicte/pkg/store"
)

// Request parameters that shape the response and are never sent upstream.
var localParams = []string{"online", "fields", "keys", "columns"}

// Data sources reported in listings.
const (
	sourceOffline = "offline"
	sourceOnline  = "online"
	sourceLocal   = "local"
)

type listing struct {
	Source string `json:"source"`
	Data   any    `json:"data"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleInstitutions serves the snapshot, or with online=1 a live listing.
func (s *Server) handleInstitutions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	fields := requestFields(q, s.opts.Fields)

	if !isOnline(q.Get("online")) {
		data, err := s.store.Read(r.Context(), store.SnapshotKey)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, errorBody{
				Error: fmt.Sprintf("failed to read offline data: %v", err),
			})
			return
		}
		w.Header().Set("X-Data-Source", sourceOffline)
		writeJSON(w, http.StatusOK, listing{Source: sourceOffline, Data: decode(data, fields)})
		return
	}

	params := upstream.Override(upstream.DefaultInstituteQuery().Values(), q, localParams...)
	params.Set("year", firstNonEmpty(q.Get("year"), s.opts.Year))
	params.Set("course", firstNonEmpty(q.Get("course"), s.opts.Course))

	res, err := s.fetcher.Get(r.Context(), upstream.URL(s.opts.InstituteEndpoint, params), upstream.Headers)
	if err != nil {
		slog.ErrorContext(r.Context(), "online listing failed", "err", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: err.Error()})
		return
	}

	status := http.StatusOK
	if !res.OK() {
		status = http.StatusBadGateway
	}
	w.Header().Set("X-Data-Source", sourceOnline)
	writeJSON(w, status, listing{Source: sourceOnline, Data: decode(res.Body, fields)})
}

func (s *Server) handleStates(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"states": regions.Entries()})
}

// handleState serves one region artifact as stored.
func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	state := r.PathValue("state")
	key := store.RegionKey(regions.Slug(state))

	data, err := s.store.Read(r.Context(), key)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error":  "not_found",
			"state":  state,
			"detail": err.Error(),
		})
		return
	}

	p, err := rows.Parse(data)
	if err != nil {
		writeJSON(w, http.StatusBadGateway, map[string]string{
			"error": "invalid-json",
			"raw":   string(data),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"source": sourceLocal,
		"state":  state,
		"data":   p.Value(s.opts.Fields),
	})
}

type institutionDetail struct {
	Source     string  `json:"source"`
	ID         string  `json:"id"`
	Name       *string `json:"name"`
	University *string `json:"university"`
	State      *string `json:"state"`
	District   *string `json:"district"`
	Address    any     `json:"address"`
	Programmes any     `json:"programmes"`
}

// handleInstitutionDetail finds one institution in its region artifact.
func (s *Server) handleInstitutionDetail(w http.ResponseWriter, r *http.Request) {
	state := r.PathValue("state")
	id := r.PathValue("aicteid")

	recs, err := s.regionRecords(r, state)
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "Not found"})
		return
	}
	inst, ok := catalog.Find(recs, id)
	if !ok {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "Not found"})
		return
	}

	sum := catalog.Summarize(inst)
	detail := institutionDetail{
		Source:     sourceLocal,
		ID:         id,
		Name:       sum.Name,
		University: sum.University,
		State:      sum.State,
		District:   nil,
		Address:    inst["address"],
		Programmes: inst["programmes"],
	}
	if d, ok := inst["district"].(string); ok {
		detail.District = &d
	}
	if detail.State == nil {
		st := state
		if region, ok := inst["region"].(string); ok && region != "" {
			st = region
		}
		detail.State = &st
	}
	if detail.Programmes == nil {
		detail.Programmes = []any{}
	}
	writeJSON(w, http.StatusOK, detail)
}

// handleSearch filters the region artifact, or the snapshot when the region
// has none.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	state := q.Get("state")
	text := strings.TrimSpace(q.Get("q"))

	if state == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "please provide the 'state' query parameter"})
		return
	}
	if utf8.RuneCountInString(text) < catalog.MinQueryLen {
		writeJSON(w, http.StatusBadRequest, errorBody{
			Error: fmt.Sprintf("search query 'q' must be provided and be at least %d characters", catalog.MinQueryLen),
		})
		return
	}

	recs, err := s.regionRecords(r, state)
	fromRegion := err == nil && len(recs) > 0
	if !fromRegion {
		recs = s.snapshotRecords(r)
	}

	page, _ := strconv.Atoi(q.Get("page"))
	limit, _ := strconv.Atoi(q.Get("limit"))

	w.Header().Set("X-Data-Source", sourceLocal)
	writeJSON(w, http.StatusOK, catalog.Search(recs, catalog.Query{
		State:       state,
		Q:           text,
		Page:        page,
		Limit:       limit,
		FilterState: !fromRegion,
	}))
}

// handleCourses proxies the course listing of one institution.
func (s *Server) handleCourses(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("aicteid")
	q := r.URL.Query()

	params := upstream.ProgrammeValues(id, s.opts.Year, s.opts.Course, q, localParams...)
	res, err := s.fetcher.Get(r.Context(), upstream.URL(s.opts.CourseEndpoint, params), upstream.Headers)
	if err != nil {
		slog.ErrorContext(r.Context(), "course lookup failed", "id", id, "err", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, decode(res.Body, requestFields(q, s.opts.ProgrammeFields)))
}

var errNoRecords = errors.New("no records")

func (s *Server) regionRecords(r *http.Request, state string) ([]rows.Record, error) {
	data, err := s.store.Read(r.Context(), store.RegionKey(regions.Slug(state)))
	if err != nil {
		return nil, err
	}
	p, err := rows.Parse(data)
	if err != nil {
		return nil, err
	}
	if p.Kind == rows.Object {
		if list, ok := p.Object["data"].([]any); ok {
			p = rows.Classify(list)
		} else {
			return nil, errNoRecords
		}
	}
	return p.Records(s.opts.Fields), nil
}

func (s *Server) snapshotRecords(r *http.Request) []rows.Record {
	data, err := s.store.Read(r.Context(), store.SnapshotKey)
	if err != nil {
		return nil
	}
	p, err := rows.Parse(data)
	if err != nil {
		return nil
	}
	return p.Records(s.opts.Fields)
}

// decode parses a body for a response: rows are mapped with fields, other
// JSON is passed through, and anything else is returned as {"raw": body}.
func decode(body []byte, fields []string) any {
	p, err := rows.Parse(body)
	if err != nil {
		return rawBody{Raw: string(body)}
	}
	return p.Value(fields)
}

// requestFields returns the field list named by the fields, keys or columns
// parameter, or def.
func requestFields(q url.Values, def []string) []string {
	for _, k := range []string{"fields", "keys", "columns"} {
		if v, ok := q[k]; ok && len(v) > 0 {
			if f := rows.ParseFields(v[0]); len(f) > 0 {
				return f
			}
			return def
		}
	}
	return def
}

func isOnline(v string) bool {
	switch v {
	case "1", "true", "yes":
		return true
	}
	return false
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
