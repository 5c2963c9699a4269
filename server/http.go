// Package server provides the HTTP API for the prewarm cache engine.
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	prewarmcache "github.com/wolfeidau/prewarm-cache"
	"github.com/wolfeidau/prewarm-cache/engine"
	"github.com/wolfeidau/prewarm-cache/telemetry"
)

// Config holds server configuration.
type Config struct {
	// Address to listen on (e.g., ":8080")
	Address string

	// Engine is the prewarm cache engine to expose. Required.
	Engine *engine.Engine

	// Logger for the server
	Logger *slog.Logger
}

// Server is the HTTP server for the prewarm cache.
type Server struct {
	config     Config
	engine     *engine.Engine
	httpServer *http.Server
	logger     *slog.Logger
}

// New creates a new server with the given configuration.
func New(cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Address == "" {
		cfg.Address = ":8080"
	}

	s := &Server{
		config: cfg,
		engine: cfg.Engine,
		logger: cfg.Logger,
	}

	mux := http.NewServeMux()
	s.registerRoutes(mux)

	s.httpServer = &http.Server{
		Addr:         cfg.Address,
		Handler:      s.loggingMiddleware(mux),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// registerRoutes sets up the HTTP routes.
func (s *Server) registerRoutes(mux *http.ServeMux) {
	// Health check
	mux.HandleFunc("GET /health", s.handleHealth)

	// Engine stats
	mux.HandleFunc("GET /stats", s.handleStats)

	// Prometheus metrics endpoint (returns 404 if not enabled)
	mux.Handle("GET /metrics", telemetry.PrometheusHandler())

	// Animation lifecycle
	mux.HandleFunc("POST /animations", s.handleRegister)
	mux.HandleFunc("GET /animations", s.handleList)
	mux.HandleFunc("GET /animations/{id}", s.handleGet)
	mux.HandleFunc("POST /animations/{id}/access", s.handleAccess)
	mux.HandleFunc("POST /animations/{id}/warm", s.handleWarm)
	mux.HandleFunc("POST /animations/{id}/hot", s.handleMarkHot)
	mux.HandleFunc("POST /animations/{id}/cold", s.handleMarkCold)
	mux.HandleFunc("DELETE /animations/{id}", s.handleEvict)
	mux.HandleFunc("DELETE /animations", s.handleEvictAll)

	// Scheduler and predictor
	mux.HandleFunc("POST /warm-next", s.handleWarmNext)
	mux.HandleFunc("POST /predict", s.handlePredict)

	// Full reset: counters, entries, pending queue
	mux.HandleFunc("POST /reset", s.handleReset)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Stats())
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var defs []prewarmcache.AnimationDefinition
	if err := json.NewDecoder(r.Body).Decode(&defs); err != nil {
		writeError(w, http.StatusBadRequest, "decoding definitions: "+err.Error())
		return
	}
	for _, def := range defs {
		if def.ID == "" {
			writeError(w, http.StatusBadRequest, "definition missing id")
			return
		}
	}

	created := s.engine.Register(r.Context(), defs...)
	writeJSON(w, http.StatusAccepted, map[string]int{"created": created})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	type listResponse struct {
		Pending []string `json:"pending_warms"`
		Count   int      `json:"count"`
	}
	writeJSON(w, http.StatusOK, listResponse{
		Pending: s.engine.Pending(),
		Count:   s.engine.Stats().Entries,
	})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	e, ok := s.engine.Get(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "animation not found")
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (s *Server) handleAccess(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	data, hit := s.engine.Access(id)

	e, ok := s.engine.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "animation not found")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"hit":    hit,
		"status": e.Status,
		"data":   data,
	})
}

func (s *Server) handleWarm(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	s.engine.Warm(r.Context(), id)

	e, ok := s.engine.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "animation not found")
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (s *Server) handleWarmNext(w http.ResponseWriter, r *http.Request) {
	s.engine.WarmNext(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMarkHot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"promoted": s.engine.MarkHot(r.PathValue("id"))})
}

func (s *Server) handleMarkCold(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"reset": s.engine.MarkCold(r.PathValue("id"))})
}

func (s *Server) handleEvict(w http.ResponseWriter, r *http.Request) {
	if !s.engine.Evict(r.PathValue("id")) {
		writeError(w, http.StatusNotFound, "animation not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleEvictAll evicts everything, or only one type when the "type" query
// parameter is set.
func (s *Server) handleEvictAll(w http.ResponseWriter, r *http.Request) {
	var evicted int
	if t := r.URL.Query().Get("type"); t != "" {
		evicted = s.engine.EvictByType(prewarmcache.AnimationType(t))
	} else {
		evicted = s.engine.EvictAll()
	}
	writeJSON(w, http.StatusOK, map[string]int{"evicted": evicted})
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	var pctx prewarmcache.PredictionContext
	if err := json.NewDecoder(r.Body).Decode(&pctx); err != nil {
		writeError(w, http.StatusBadRequest, "decoding context: "+err.Error())
		return
	}

	var predicted []string
	if r.URL.Query().Get("warm") == "true" {
		predicted = s.engine.PredictAndWarm(r.Context(), pctx)
	} else {
		predicted = s.engine.Predict(pctx)
	}
	if predicted == nil {
		predicted = []string{}
	}
	writeJSON(w, http.StatusOK, map[string][]string{"predicted": predicted})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	s.engine.Reset()
	w.WriteHeader(http.StatusNoContent)
}

// loggingMiddleware logs HTTP requests with structured fields for analysis.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}

		wrapped := &responseWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		duration := time.Since(start)

		s.logger.Info("http request",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", wrapped.status,
			"bytes_sent", wrapped.bytesWritten,
			"duration_ms", duration.Milliseconds(),
			"remote_addr", r.RemoteAddr,
			"user_agent", r.UserAgent(),
		)
	})
}

// Start starts the server.
func (s *Server) Start() error {
	s.logger.Info("starting server", "address", s.config.Address)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down server")
	return s.httpServer.Shutdown(ctx)
}

// Address returns the server's listen address.
func (s *Server) Address() string {
	return s.config.Address
}

// Handler returns the server's root handler, for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// responseWriter wraps http.ResponseWriter to capture the status code and
// bytes written.
type responseWriter struct {
	http.ResponseWriter
	status       int
	bytesWritten int64
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += int64(n)
	return n, err
}

// Unwrap returns the underlying ResponseWriter.
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}
