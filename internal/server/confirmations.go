package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/joseph-ayodele/article-matcher/internal/common"
)

type confirmRequest struct {
	Text     string   `json:"text"`
	RecordID int64    `json:"record_id"`
	Score    *float64 `json:"score,omitempty"`
}

// POST /api/confirmations
func (s *Server) handleConfirm(w http.ResponseWriter, r *http.Request) {
	var req confirmRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		s.writeError(w, r, invalid("invalid request body"))
		return
	}
	score := 100.0
	if req.Score != nil {
		score = *req.Score
	}
	v := common.NewValidator().
		Field("text", req.Text, common.Required, common.MaxLength(2000)).
		Field("record_id", req.RecordID, common.InRange(1, 1<<62)).
		Field("score", score, common.InRange(0, 100))
	if err := common.ValidateAndReturnError(v); err != nil {
		s.writeError(w, r, err)
		return
	}

	ctx := r.Context()
	if _, err := s.Records.GetRecord(ctx, req.RecordID); err != nil {
		s.writeError(w, r, err)
		return
	}
	m, err := s.Confirmations.Confirm(ctx, req.Text, req.RecordID, score)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

// POST /api/confirmations/import
func (s *Server) handleImportConfirmations(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.MaxUploadBytes+1<<20)
	if err := r.ParseMultipartForm(8 << 20); err != nil {
		s.writeError(w, r, invalid("multipart form with a file field is required"))
		return
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, r, invalid("file is required"))
		return
	}
	defer func() { _ = file.Close() }()
	data, err := io.ReadAll(file)
	if err != nil {
		s.writeError(w, r, fmt.Errorf("read upload: %w", err))
		return
	}

	stats, err := s.Export.ImportConfirmations(r.Context(), data)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
