// Package api exposes the backtest session control surface over HTTP:
// session creation, SSE and websocket event streams, status queries,
// cancellation, and cleanup.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"backtestd/session"
)

// Server hosts the backtest HTTP endpoints.
type Server struct {
	registry *session.Registry
	log      *slog.Logger
	http     *http.Server

	drainTimeout time.Duration
	maxIdlePolls int
}

func NewServer(addr string, registry *session.Registry, log *slog.Logger) *Server {
	s := &Server{
		registry:     registry,
		log:          log,
		drainTimeout: session.DrainTimeout,
		maxIdlePolls: session.MaxIdlePolls,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /backtest/start", s.handleStart)
	mux.HandleFunc("POST /backtest/run-sync", s.handleRunSync)
	mux.HandleFunc("GET /backtest/stream/{id}", s.handleStreamSSE)
	mux.HandleFunc("GET /backtest/ws/{id}", s.handleStreamWS)
	mux.HandleFunc("GET /backtest/status/{id}", s.handleStatus)
	mux.HandleFunc("GET /backtest/sessions", s.handleList)
	mux.HandleFunc("POST /backtest/cancel/{id}", s.handleCancel)
	mux.HandleFunc("DELETE /backtest/{id}", s.handleCleanup)
	mux.HandleFunc("DELETE /backtest", s.handleCleanupAll)

	s.http = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler exposes the routing for tests.
func (s *Server) Handler() http.Handler { return s.http.Handler }

// ListenAndServe blocks until the listener fails or Shutdown is called.
func (s *Server) ListenAndServe() error {
	s.log.Info("listening", "addr", s.http.Addr)
	return s.http.ListenAndServe()
}

// Shutdown drains in-flight requests and cancels every live session.
func (s *Server) Shutdown(ctx context.Context) error {
	s.registry.CleanupAll()
	return s.http.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
