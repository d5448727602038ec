package control

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server provides HTTP endpoints for health monitoring and metrics.
type Server struct {
	engine *Engine
	server *http.Server
}

// NewServer creates a debug server over the engine.
func NewServer(engine *Engine, port int) *Server {
	mux := http.NewServeMux()
	s := &Server{
		engine: engine,
		server: &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: mux,
		},
	}

	mux.HandleFunc("/health", s.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())

	return s
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	return s.server.ListenAndServe()
}

// Stop stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	state := s.engine.Monitor().State()
	stats := s.engine.Store().Stats()
	depth, _ := s.engine.QueueLen(r.Context())

	status := http.StatusOK
	if !state.Online {
		status = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"online":        state.Online,
		"quality":       state.Quality,
		"rtt_ms":        state.RTT.Milliseconds(),
		"cache":         stats,
		"offline_queue": depth,
	})
}
