// Package api serves the institution directory over HTTP, from the local
// snapshot or by forwarding to upstream.
//
// Every response carries permissive CORS headers and every OPTIONS request
// is answered with 204, whatever the path.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	aictehttp "github.com/collegelist/aicte/internal/http"
	"github.com/collegelist/aicte/internal/rows"
	"github.com/collegelist/aicte/internal/upstream"
	"github.com/collegelist/aicte/pkg/store"
)

// Fetcher performs one logical upstream GET, retries included.
type Fetcher interface {
	Get(ctx context.Context, url string, headers map[string]string) (*aictehttp.Response, error)
}

// Options configures the server.
type Options struct {
	// InstituteEndpoint and CourseEndpoint are the upstream endpoints.
	// Default: upstream.InstituteEndpoint, upstream.CourseEndpoint
	InstituteEndpoint string
	CourseEndpoint    string

	// Year and Course are used by the course proxy when the request names
	// none, and by the online listing as defaults.
	// Default: upstream.DefaultYear, upstream.DefaultCourse
	Year   string
	Course string

	// Fields and ProgrammeFields name the columns of row-shaped payloads
	// when the request does not.
	// Default: rows.InstitutionFields, rows.ProgrammeFields
	Fields          []string
	ProgrammeFields []string
}

// Server holds the API handlers.
type Server struct {
	store   *store.Store
	fetcher Fetcher
	opts    Options
	mux     *http.ServeMux
}

// New creates a Server. Zero fields of opts take their defaults.
func New(st *store.Store, fetcher Fetcher, opts Options) *Server {
	if opts.InstituteEndpoint == "" {
		opts.InstituteEndpoint = upstream.InstituteEndpoint
	}
	if opts.CourseEndpoint == "" {
		opts.CourseEndpoint = upstream.CourseEndpoint
	}
	if opts.Year == "" {
		opts.Year = upstream.DefaultYear
	}
	if opts.Course == "" {
		opts.Course = upstream.DefaultCourse
	}
	if len(opts.Fields) == 0 {
		opts.Fields = rows.InstitutionFields
	}
	if len(opts.ProgrammeFields) == 0 {
		opts.ProgrammeFields = rows.ProgrammeFields
	}

	s := &Server{store: st, fetcher: fetcher, opts: opts, mux: http.NewServeMux()}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /api/health", s.handleHealth)
	s.mux.HandleFunc("GET /api/institutions", s.handleInstitutions)
	s.mux.HandleFunc("GET /api/institutions/states", s.handleStates)
	s.mux.HandleFunc("GET /api/institutions/state/{state}", s.handleState)
	s.mux.HandleFunc("GET /api/institutions/states/{state}/{aicteid}", s.handleInstitutionDetail)
	s.mux.HandleFunc("GET /api/institutions/search", s.handleSearch)
	s.mux.HandleFunc("GET /api/institution/{aicteid}", s.handleCourses)
}

// Handler returns the root handler with CORS and request logging applied.
func (s *Server) Handler() http.Handler {
	return logRequests(cors(s.mux))
}

// Serve listens on addr until ctx is done, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.InfoContext(ctx, "listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// CORS headers set on every response.
var corsHeaders = map[string]string{
	"Access-Control-Allow-Origin":      "*",
	"Access-Control-Allow-Methods":     "GET,OPTIONS",
	"Access-Control-Allow-Headers":     "Content-Type,Authorization",
	"Access-Control-Allow-Credentials": "false",
}

func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for k, v := range corsHeaders {
			w.Header().Set(k, v)
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		slog.InfoContext(r.Context(), "request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"elapsed", time.Since(start),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := store.Encode(v)
	if err != nil {
		slog.Error("encode response", "err", err)
		status = http.StatusInternalServerError
		data = []byte(`{"error":"encode response"}`)
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(data)
}

type errorBody struct {
	Error string `json:"error"`
}

type rawBody struct {
	Raw string `json:"raw"`
}
