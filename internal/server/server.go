package server

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/tensorkv/tensorkv/internal/engine"
	"github.com/tensorkv/tensorkv/internal/metrics"
)

// DefaultMaxRequestBytes caps request bodies when no limit is configured:
// 64 MiB covers a generously chunked tensor without letting one request
// exhaust memory.
const DefaultMaxRequestBytes = 64 << 20

// Server is the HTTP/JSON transport over the storage engine. It owns the
// route table and middleware chain and implements http.Handler; listener
// lifecycle belongs to the caller.
type Server struct {
	engine    *engine.Engine
	logger    *slog.Logger
	metrics   *metrics.Metrics
	router    *mux.Router
	maxBytes  int64
	chunkSize int
}

// Option configures a Server.
type Option func(*Server)

// WithMetrics mounts the /metrics endpoint and enables request
// instrumentation.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithMaxRequestBytes caps the size of request bodies. Non-positive values
// keep the default.
func WithMaxRequestBytes(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxBytes = n
		}
	}
}

// WithChunkSize advertises the chunk capacity clients should split their
// payloads into, via the X-Tensorkv-Chunk-Size response header.
func WithChunkSize(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.chunkSize = n
		}
	}
}

// New builds the transport around eng. A nil logger falls back to
// slog.Default.
func New(eng *engine.Engine, logger *slog.Logger, opts ...Option) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		engine:   eng,
		logger:   logger.With("component", "http"),
		maxBytes: DefaultMaxRequestBytes,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.router = s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// routes builds the route table and wraps it in the middleware chain:
// request-id first so everything downstream can log it, then access
// logging, CORS and instrumentation.
func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()

	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/stores", s.handleCreateStore).Methods(http.MethodPost)
	api.HandleFunc("/stores", s.handleListStores).Methods(http.MethodGet)
	api.HandleFunc("/stores/{store}/keys", s.handleList).Methods(http.MethodGet)
	api.HandleFunc("/stores/{store}/keys/{key}", s.handlePut).Methods(http.MethodPut)
	api.HandleFunc("/stores/{store}/keys/{key}", s.handleGet).Methods(http.MethodGet)
	api.HandleFunc("/stores/{store}/keys/{key}", s.handleDelete).Methods(http.MethodDelete)

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)
	}

	// Preflight requests must match a route for the middleware chain to
	// run; the cors middleware answers them before this handler is reached.
	r.PathPrefix("/").Methods(http.MethodOptions).HandlerFunc(
		func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) })

	r.Use(s.requestID, s.accessLog, s.cors)
	if s.metrics != nil {
		r.Use(s.instrument)
	}
	return r
}

// writeJSON renders one response. Encoding failures are logged, not
// surfaced; by that point the status line is already on the wire.
func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("write response", "err", err, "path", r.URL.Path)
	}
}

// statusOf maps an engine outcome kind onto an HTTP status. Taxonomy
// failures are client errors or conflicts, never 500s.
func statusOf(kind engine.Kind) int {
	switch kind {
	case engine.KindOK:
		return http.StatusOK
	case engine.KindNotFound:
		return http.StatusNotFound
	case engine.KindAlreadyExists:
		return http.StatusConflict
	case engine.KindInvalidRange, engine.KindOutOfRange, engine.KindInvalidShape,
		engine.KindSizeMismatch, engine.KindIntegrityMismatch:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
