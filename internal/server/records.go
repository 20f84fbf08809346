package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/joseph-ayodele/article-matcher/internal/common"
	"github.com/joseph-ayodele/article-matcher/internal/match"
)

const (
	defaultSearchLimit = 20
	maxSearchLimit     = 200
)

func urlParam(r *http.Request, key string) string {
	return strings.TrimSpace(chi.URLParam(r, key))
}

type searchResponse struct {
	Query string            `json:"query"`
	Hits  []match.SearchHit `json:"hits"`
}

// GET /api/records/search?query=&min_score=&limit=
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := strings.TrimSpace(q.Get("query"))
	minScore := s.Options.Match.MinScore
	limit := defaultSearchLimit

	v := common.NewValidator().Field("query", query, common.Required, common.MaxLength(500))
	if raw := q.Get("min_score"); raw != "" {
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			s.writeError(w, r, invalid("min_score must be a number"))
			return
		}
		minScore = f
	}
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			s.writeError(w, r, invalid("limit must be an integer"))
			return
		}
		limit = n
	}
	v.Field("min_score", minScore, common.InRange(0, 100)).
		Field("limit", limit, common.InRange(1, maxSearchLimit))
	if err := common.ValidateAndReturnError(v); err != nil {
		s.writeError(w, r, err)
		return
	}

	cat, err := s.Documents.LoadCatalog(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	hits, err := s.Matcher.Search(r.Context(), query, cat, minScore, limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if hits == nil {
		hits = []match.SearchHit{}
	}
	writeJSON(w, http.StatusOK, searchResponse{Query: query, Hits: hits})
}

// GET /api/records/{id}
func (s *Server) handleGetRecord(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(urlParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		s.writeError(w, r, invalid("id must be a positive integer"))
		return
	}
	rec, err := s.Records.GetRecord(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}
