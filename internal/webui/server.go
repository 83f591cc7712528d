// Package webui serves the query console and its JSON API.
package webui

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"net"
	"net/http"
	"net/http/pprof"
	"strconv"
	"time"

	"github.com/klauspost/compress/gzhttp"

	"github.com/heapql/internal/oql"
	apperrors "github.com/heapql/pkg/errors"
	"github.com/heapql/pkg/model"
	"github.com/heapql/pkg/utils"
)

//go:embed templates/*
var templatesFS embed.FS

//go:embed static/*
var staticFS embed.FS

// maxBodyBytes bounds request bodies (queries and saved queries).
const maxBodyBytes = 1 << 20

// QueryService is the part of the query service the web UI uses.
type QueryService interface {
	Execute(ctx context.Context, req *model.QueryRequest) (*model.QueryResult, error)
	Cancel(runID string) error
	ListRuns(ctx context.Context, snapshot string, limit int) ([]*model.QueryRun, error)
	ClassHistogram(ctx context.Context, snapshot, category string) ([]model.ClassHistogramEntry, error)
	Inspect(ctx context.Context, snapshot, objectID string) (*model.ObjectDetail, error)
	ListSnapshots(ctx context.Context) ([]model.SnapshotInfo, error)
	ListQueries(ctx context.Context, tag string) ([]*model.SavedQuery, error)
	SaveQuery(ctx context.Context, q *model.SavedQuery) error
	DeleteQuery(ctx context.Context, name string) error
	HealthCheck(ctx context.Context) error
}

// Server represents the web UI server.
type Server struct {
	addr   string
	svc    QueryService
	logger utils.Logger
	index  *template.Template
	server *http.Server
	debug  bool
}

// Option configures a Server.
type Option func(*Server)

// WithDebugHandlers exposes the Go runtime profiles under /debug/pprof/.
func WithDebugHandlers() Option {
	return func(s *Server) { s.debug = true }
}

// NewServer creates a web UI server listening on addr.
func NewServer(addr string, svc QueryService, logger utils.Logger, opts ...Option) (*Server, error) {
	if logger == nil {
		logger = &utils.NullLogger{}
	}
	index, err := template.ParseFS(templatesFS, "templates/index.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse index template: %w", err)
	}
	s := &Server{addr: addr, svc: svc, logger: logger, index: index}
	for _, opt := range opts {
		opt(s)
	}
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// Writes wait for query results; engine.query_timeout bounds them.
		WriteTimeout: 0,
	}
	return s, nil
}

// Handler returns the HTTP handler with all routes registered.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	staticSubFS, _ := fs.Sub(staticFS, "static")
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.FS(staticSubFS))))

	mux.HandleFunc("POST /api/query", s.handleQuery)
	mux.HandleFunc("GET /api/runs", s.handleListRuns)
	mux.HandleFunc("DELETE /api/runs/{id}", s.handleCancelRun)
	mux.HandleFunc("GET /api/classes", s.handleClasses)
	mux.HandleFunc("GET /api/objects/{id}", s.handleObject)
	mux.HandleFunc("GET /api/snapshots", s.handleSnapshots)
	mux.HandleFunc("GET /api/queries", s.handleListQueries)
	mux.HandleFunc("POST /api/queries", s.handleSaveQuery)
	mux.HandleFunc("DELETE /api/queries/{name}", s.handleDeleteQuery)
	mux.HandleFunc("GET /api/catalog", s.handleCatalog)
	mux.HandleFunc("GET /api/health", s.handleHealth)

	mux.HandleFunc("GET /{$}", s.handleIndex)

	if s.debug {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}

	return gzhttp.GzipHandler(s.logRequests(mux))
}

// Start listens on the configured address and serves until Shutdown.
func (s *Server) Start() error {
	l, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	return s.Serve(l)
}

// Serve serves requests on l until Shutdown. It returns nil after a
// graceful shutdown.
func (s *Server) Serve(l net.Listener) error {
	s.logger.Info("Starting web server at http://%s", l.Addr())
	err := s.server.Serve(l)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	data := map[string]interface{}{
		"Catalog": oql.Catalog(),
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.index.Execute(w, data); err != nil {
		s.logger.Error("Failed to execute template: %v", err)
	}
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req model.QueryRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	result, err := s.svc.Execute(r.Context(), &req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit")
	if err != nil {
		s.writeError(w, err)
		return
	}
	runs, err := s.svc.ListRuns(r.Context(), r.URL.Query().Get("snapshot"), limit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, runs)
}

func (s *Server) handleCancelRun(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Cancel(r.PathValue("id")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleClasses(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	snapshot, err := requiredParam(r, "snapshot")
	if err != nil {
		s.writeError(w, err)
		return
	}
	entries, err := s.svc.ClassHistogram(r.Context(), snapshot, q.Get("category"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleObject(w http.ResponseWriter, r *http.Request) {
	snapshot, err := requiredParam(r, "snapshot")
	if err != nil {
		s.writeError(w, err)
		return
	}
	detail, err := s.svc.Inspect(r.Context(), snapshot, r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, detail)
}

func (s *Server) handleSnapshots(w http.ResponseWriter, r *http.Request) {
	snapshots, err := s.svc.ListSnapshots(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, snapshots)
}

func (s *Server) handleListQueries(w http.ResponseWriter, r *http.Request) {
	queries, err := s.svc.ListQueries(r.Context(), r.URL.Query().Get("tag"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, queries)
}

func (s *Server) handleSaveQuery(w http.ResponseWriter, r *http.Request) {
	var q model.SavedQuery
	if err := decodeBody(w, r, &q); err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.svc.SaveQuery(r.Context(), &q); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, &q)
}

func (s *Server) handleDeleteQuery(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.DeleteQuery(r.Context(), r.PathValue("name")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, oql.Catalog())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.HealthCheck(r.Context()); err != nil {
		s.writeJSON(w, http.StatusServiceUnavailable, errorBody{
			Code:    apperrors.GetErrorCode(err),
			Message: apperrors.GetErrorMessage(err),
		})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("Failed to encode response: %v", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := apperrors.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("Request failed: %v", err)
	}
	s.writeJSON(w, status, errorBody{
		Code:    apperrors.GetErrorCode(err),
		Message: apperrors.GetErrorMessage(err),
	})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return apperrors.Wrap(apperrors.CodeInvalidInput, "invalid request body", err)
	}
	return nil
}

func requiredParam(r *http.Request, name string) (string, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return "", apperrors.New(apperrors.CodeInvalidInput, name+" is required")
	}
	return v, nil
}

func intParam(r *http.Request, name string) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, apperrors.New(apperrors.CodeInvalidInput, "invalid "+name+": "+v)
	}
	return n, nil
}

// statusRecorder captures the response status for request logging.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Debug("%s %s %d %v", r.Method, r.URL.Path, rec.status, time.Since(start))
	})
}
