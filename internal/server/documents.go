package server

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/article-matcher/constants"
	"github.com/joseph-ayodele/article-matcher/internal/async"
	"github.com/joseph-ayodele/article-matcher/internal/common"
	"github.com/joseph-ayodele/article-matcher/internal/pipeline"
)

const (
	formatJSON = "json"
	formatXLSX = "xlsx"
)

type documentParams struct {
	input  pipeline.Input
	opts   pipeline.Options
	format string
}

// readDocument parses the multipart upload and the run options of a document request.
func (s *Server) readDocument(w http.ResponseWriter, r *http.Request) (documentParams, error) {
	var p documentParams
	r.Body = http.MaxBytesReader(w, r.Body, s.MaxUploadBytes+1<<20)
	if err := r.ParseMultipartForm(8 << 20); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return p, invalid(fmt.Sprintf("upload exceeds %d bytes", s.MaxUploadBytes))
		}
		return p, invalid("multipart form with a file field is required")
	}
	file, hdr, err := r.FormFile("file")
	if err != nil {
		return p, invalid("file is required")
	}
	defer func() { _ = file.Close() }()
	if hdr.Size > s.MaxUploadBytes {
		return p, invalid(fmt.Sprintf("upload exceeds %d bytes", s.MaxUploadBytes))
	}
	data, err := io.ReadAll(io.LimitReader(file, s.MaxUploadBytes+1))
	if err != nil {
		return p, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > s.MaxUploadBytes {
		return p, invalid(fmt.Sprintf("upload exceeds %d bytes", s.MaxUploadBytes))
	}

	p.input = pipeline.Input{
		DocumentID: uuid.New(),
		Name:       hdr.Filename,
		Data:       data,
		MediaType:  mediaTypeOf(hdr),
	}

	p.opts = s.Options
	minScore := p.opts.Match.MinScore
	if v := strings.TrimSpace(r.FormValue("min_score")); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return p, invalid("min_score must be a number")
		}
		minScore = f
	}
	if v := strings.TrimSpace(r.FormValue("include_unmatched")); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return p, invalid("include_unmatched must be a boolean")
		}
		p.opts.IncludeUnmatched = b
	}
	p.format = strings.ToLower(strings.TrimSpace(r.FormValue("format")))
	if p.format == "" {
		p.format = formatJSON
	}

	v := common.NewValidator().
		Field("min_score", minScore, common.InRange(0, 100)).
		Field("format", p.format, oneOf(formatJSON, formatXLSX))
	if err := common.ValidateAndReturnError(v); err != nil {
		return p, err
	}
	p.opts.Match.MinScore = minScore
	return p, nil
}

// mediaTypeOf trusts a specific part Content-Type and falls back to the file extension.
func mediaTypeOf(hdr *multipart.FileHeader) string {
	mt := constants.NormalizeMediaType(hdr.Header.Get("Content-Type"))
	if mt != "" && mt != "application/octet-stream" {
		return mt
	}
	return constants.MediaTypeForExt(filepath.Ext(hdr.Filename))
}

func oneOf(allowed ...string) common.ValidationRule {
	return func(field string, value interface{}) *common.ValidationError {
		str, _ := value.(string)
		for _, a := range allowed {
			if str == a {
				return nil
			}
		}
		return &common.ValidationError{Field: field, Value: value, Message: "must be one of " + strings.Join(allowed, ", ")}
	}
}

// POST /api/documents
func (s *Server) handleProcessDocument(w http.ResponseWriter, r *http.Request) {
	p, err := s.readDocument(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	ctx := r.Context()

	cat, err := s.Documents.LoadCatalog(ctx)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.Documents.ProcessWithCatalog(ctx, p.input, cat, p.opts)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if p.format == formatXLSX {
		data, err := s.Export.ResultsXLSX(ctx, []*pipeline.Result{res})
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		name := strings.TrimSuffix(p.input.Name, filepath.Ext(p.input.Name))
		if name == "" {
			name = res.DocumentID.String()
		}
		w.Header().Set("Content-Type", constants.MediaTypeXLSX)
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name+"-matches.xlsx"))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// POST /api/jobs
func (s *Server) handleSubmitJob(w http.ResponseWriter, r *http.Request) {
	if s.Queue == nil {
		writeJSON(w, http.StatusNotImplemented, errorBody{Error: "job queue is disabled"})
		return
	}
	p, err := s.readDocument(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	id, err := s.Queue.Enqueue(r.Context(), async.Job{ID: p.input.DocumentID, Input: p.input, Options: p.opts})
	if err != nil {
		if errors.Is(err, async.ErrQueueClosed) {
			writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: err.Error()})
			return
		}
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"id": id, "status": constants.JobStatusQueued})
}

// GET /api/jobs/{id}
func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	if s.Queue == nil {
		writeJSON(w, http.StatusNotImplemented, errorBody{Error: "job queue is disabled"})
		return
	}
	id, err := uuid.Parse(urlParam(r, "id"))
	if err != nil {
		s.writeError(w, r, invalid("id must be a UUID"))
		return
	}
	st, ok := s.Queue.Status(id)
	if !ok {
		s.writeError(w, r, common.NewAppError("NOT_FOUND", "job not found", common.ErrNotFound))
		return
	}
	writeJSON(w, http.StatusOK, st)
}
