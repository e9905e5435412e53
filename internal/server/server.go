// Package server exposes the clustering pipeline over a small JSON API.
//
// Endpoints:
//
//	GET  /healthz      - liveness probe
//	POST /v1/streams   - upload a merge stream, returns its content hash
//	POST /v1/cut       - cut a stream into clusterings, returns JSON
//	POST /v1/map       - assemble a resolution map, returns DOT/SVG/JSON
//
// The cut and map endpoints accept either a raw merge stream as the request
// body or a ?stream=<hash> reference to a previously uploaded stream.
package server

import (
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/canopyviz/canopy/pkg/observability"
	"github.com/canopyviz/canopy/pkg/pipeline"
)

// maxStreamBytes caps uploaded merge streams.
const maxStreamBytes = 64 << 20

// Server routes pipeline requests.
type Server struct {
	runner *pipeline.Runner
	logger *log.Logger
}

// New creates a server around a pipeline runner.
// If logger is nil, log.Default() is used.
func New(runner *pipeline.Runner, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	return &Server{runner: runner, logger: logger}
}

// Router assembles the HTTP routes with request-id and logging middleware.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(s.logRequests)

	r.Get("/healthz", s.handleHealth)
	r.Route("/v1", func(r chi.Router) {
		r.Post("/streams", s.handleUploadStream)
		r.Post("/cut", s.handleCut)
		r.Post("/map", s.handleMap)
	})
	return r
}

// requestIDHeader carries the per-request identifier.
const requestIDHeader = "X-Request-ID"

// requestID assigns a request id to every request, honoring one supplied by
// the client.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r)
	})
}

// statusRecorder captures the response status for logging.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// logRequests logs every request with its status and duration, and feeds
// the HTTP observability hooks.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		observability.HTTP().OnRequest(r.Context(), r.Method, r.URL.Path)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		elapsed := time.Since(start)
		observability.HTTP().OnResponse(r.Context(), r.Method, r.URL.Path, rec.status, elapsed)
		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"request_id", rec.Header().Get(requestIDHeader),
			"duration", elapsed.Round(time.Millisecond))
	})
}
