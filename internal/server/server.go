// Package server exposes the liveness endpoint used by uptime probes.
// It carries no business logic.
package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

type Server struct {
	mux *http.ServeMux
	log *slog.Logger
}

func New(logger *slog.Logger) *Server {
	s := &Server{mux: http.NewServeMux(), log: logger}
	s.mux.HandleFunc("/healthz", s.handleHealth)
	return s
}

// Router returns the configured handler.
func (s *Server) Router() http.Handler {
	return s.mux
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(map[string]string{"status": "ok"}); err != nil {
		s.log.Error("health response failed", "err", err)
	}
}
