// Package testutils provides shared test infrastructure.
package testutils

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
)

// Upstream endpoint paths served by the fake.
const (
	InstitutePath = "/dashboard/pages/php/approvedinstituteserver.php"
	CoursePath    = "/dashboard/pages/php/approvedcourse.php"
)

// Reply is a canned upstream answer.
type Reply struct {
	Status int    // default 200
	Body   string // sent verbatim
	Drop   bool   // close the connection without answering
}

// JSON returns a Reply whose body is v encoded as JSON.
func JSON(t *testing.T, v any) Reply {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal reply: %v", err)
	}
	return Reply{Body: string(data)}
}

// HTML returns a block page Reply.
func HTML(status int, title string) Reply {
	return Reply{
		Status: status,
		Body:   "<html><head><title>" + title + "</title></head><body><h1>" + title + "</h1></body></html>",
	}
}

// Upstream is a fake of the two dashboard endpoints. Institute listings are
// keyed by state name, course listings by the unwrapped aicteid. Anything
// not configured answers with an empty JSON array.
type Upstream struct {
	Server *httptest.Server

	mu       sync.Mutex
	states   map[string]Reply
	courses  map[string]Reply
	requests map[string][]url.Values
}

// NewUpstream starts a fake upstream that is closed when the test ends.
func NewUpstream(t *testing.T) *Upstream {
	t.Helper()

	u := &Upstream{
		states:   make(map[string]Reply),
		courses:  make(map[string]Reply),
		requests: make(map[string][]url.Values),
	}
	u.Server = httptest.NewServer(http.HandlerFunc(u.serve))
	t.Cleanup(u.Server.Close)
	return u
}

// SetState configures the listing returned for a state.
func (u *Upstream) SetState(state string, r Reply) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.states[state] = r
}

// SetCourse configures the course listing returned for an institute id.
func (u *Upstream) SetCourse(aicteID string, r Reply) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.courses[aicteID] = r
}

// InstituteURL is the fake institute listing endpoint.
func (u *Upstream) InstituteURL() string {
	return u.Server.URL + InstitutePath
}

// CourseURL is the fake course listing endpoint.
func (u *Upstream) CourseURL() string {
	return u.Server.URL + CoursePath
}

// Requests returns the query parameters received on path, in arrival order.
func (u *Upstream) Requests(path string) []url.Values {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]url.Values(nil), u.requests[path]...)
}

func (u *Upstream) serve(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	u.mu.Lock()
	u.requests[r.URL.Path] = append(u.requests[r.URL.Path], q)
	var (
		reply Reply
		ok    bool
	)
	switch r.URL.Path {
	case InstitutePath:
		reply, ok = u.states[q.Get("state")]
	case CoursePath:
		reply, ok = u.courses[strings.Trim(q.Get("aicteid"), "/")]
	default:
		u.mu.Unlock()
		http.NotFound(w, r)
		return
	}
	u.mu.Unlock()

	if !ok {
		reply = Reply{Body: "[]"}
	}
	if reply.Drop {
		if hj, ok := w.(http.Hijacker); ok {
			if conn, _, err := hj.Hijack(); err == nil {
				conn.Close()
				return
			}
		}
	}
	if reply.Status == 0 {
		reply.Status = http.StatusOK
	}
	if strings.HasPrefix(reply.Body, "<") {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
	} else {
		w.Header().Set("Content-Type", "application/json")
	}
	w.WriteHeader(reply.Status)
	w.Write([]byte(reply.Body))
}
