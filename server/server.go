// Package server exposes the Constellation engine over HTTP: a streaming
// chat endpoint speaking the progress-event wire protocol, a non-streaming
// chat endpoint returning the final turn snapshot, knowledge-base management
// endpoints, health, and Prometheus metrics.
package server

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/constellahq/constellation/bus"
	"github.com/constellahq/constellation/engine"
	"github.com/constellahq/constellation/kb"
	"github.com/constellahq/constellation/metrics"
)

// Server wires the coordinator and its supporting services into an HTTP API.
type Server struct {
	coordinator *engine.Coordinator
	knowledge   *kb.Store
	publisher   *bus.Publisher
	logger      *slog.Logger
	allowOrigin string
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithKnowledge attaches the knowledge store for the management endpoints.
func WithKnowledge(store *kb.Store) Option {
	return func(s *Server) { s.knowledge = store }
}

// WithPublisher mirrors streamed progress events onto the event bus.
func WithPublisher(p *bus.Publisher) Option {
	return func(s *Server) { s.publisher = p }
}

// WithAllowOrigin sets the CORS origin allowed to call the API.
func WithAllowOrigin(origin string) Option {
	return func(s *Server) { s.allowOrigin = origin }
}

// New creates a Server around a coordinator.
func New(coordinator *engine.Coordinator, opts ...Option) *Server {
	s := &Server{
		coordinator: coordinator,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /chat", s.handleChat)
	mux.HandleFunc("POST /chat/stream", s.handleChatStream)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /knowledge", s.handleKnowledgeStatus)
	mux.HandleFunc("POST /knowledge/toggle", s.handleKnowledgeToggle)
	mux.HandleFunc("POST /knowledge/ingest", s.handleKnowledgeIngest)
	mux.Handle("GET /metrics", metrics.Handler())
	return s.cors(mux)
}

// cors applies the configured allow-origin to every response and answers
// preflight requests. With no origin configured it is a passthrough.
func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.allowOrigin != "" {
			w.Header().Set("Access-Control-Allow-Origin", s.allowOrigin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func newTurnID() string {
	return uuid.NewString()
}
