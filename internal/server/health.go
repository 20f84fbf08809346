package server

import (
	"context"
	"net/http"
	"time"
)

type healthResponse struct {
	Status        string `json:"status"`
	Records       int    `json:"records"`
	Confirmations int    `json:"confirmations"`
	QueueEnabled  bool   `json:"queue_enabled"`
}

// GET /healthz
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	out := healthResponse{Status: "ok", QueueEnabled: s.Queue != nil}
	if s.Store != nil {
		if err := s.Store.Ping(ctx); err != nil {
			s.logger.Warn("http.health.db_unavailable", "err", err)
			writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "unavailable"})
			return
		}
	}
	if s.Records != nil {
		if n, err := s.Records.CountRecords(ctx); err == nil {
			out.Records = n
		}
	}
	if s.Confirmations != nil {
		out.Confirmations = s.Confirmations.Len()
	}
	writeJSON(w, http.StatusOK, out)
}
