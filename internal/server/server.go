package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/joseph-ayodele/article-matcher/constants"
	"github.com/joseph-ayodele/article-matcher/internal/async"
	"github.com/joseph-ayodele/article-matcher/internal/common"
	"github.com/joseph-ayodele/article-matcher/internal/confirm"
	"github.com/joseph-ayodele/article-matcher/internal/entity"
	"github.com/joseph-ayodele/article-matcher/internal/export"
	"github.com/joseph-ayodele/article-matcher/internal/match"
	"github.com/joseph-ayodele/article-matcher/internal/pipeline"
)

// Documents runs the extraction and matching pipeline.
type Documents interface {
	LoadCatalog(ctx context.Context) (*match.Catalog, error)
	ProcessWithCatalog(ctx context.Context, in pipeline.Input, cat *match.Catalog, opts pipeline.Options) (*pipeline.Result, error)
}

// Records reads the catalog.
type Records interface {
	GetRecord(ctx context.Context, id int64) (*entity.CatalogRecord, error)
	CountRecords(ctx context.Context) (int, error)
}

// Pinger reports backing store health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps wires the HTTP API. Queue and Store are optional.
type Deps struct {
	Documents      Documents
	Matcher        *match.Matcher
	Records        Records
	Confirmations  *confirm.Cache
	Export         *export.Service
	Queue          async.Queue
	Store          Pinger
	Options        pipeline.Options
	MaxUploadBytes int64
	RequestTimeout time.Duration
	Logger         *slog.Logger
}

type Server struct {
	Deps
	logger *slog.Logger
}

func New(d Deps) *Server {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.MaxUploadBytes <= 0 {
		d.MaxUploadBytes = constants.MaxUploadBytes
	}
	if d.Options.Workers == 0 {
		d.Options = pipeline.DefaultOptions()
	}
	return &Server{Deps: d, logger: d.Logger}
}

// Routes builds the chi router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestContext)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		if s.RequestTimeout > 0 {
			r.Use(middleware.Timeout(s.RequestTimeout))
		}
		r.Post("/documents", s.handleProcessDocument)
		r.Post("/jobs", s.handleSubmitJob)
		r.Get("/jobs/{id}", s.handleJobStatus)

		r.Get("/records/search", s.handleSearch)
		r.Get("/records/{id}", s.handleGetRecord)

		r.Post("/confirmations", s.handleConfirm)
		r.Post("/confirmations/import", s.handleImportConfirmations)
	})
	return r
}

// requestContext carries chi's request id into the context key the pipeline logs with.
func (s *Server) requestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx := common.WithRequestID(r.Context(), middleware.GetReqID(r.Context()))
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r.WithContext(ctx))
		s.logger.Info("http.request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"request_id", common.RequestIDFromContext(ctx),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
	})
}

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor maps domain errors onto HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, common.ErrUnsupportedFormat):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, common.ErrEmptyExtraction), errors.Is(err, common.ErrExtractionFailed):
		return http.StatusUnprocessableEntity
	case errors.Is(err, common.ErrInvalidInput), errors.Is(err, common.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, common.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	body := errorBody{Error: err.Error(), Code: common.ErrorCode(err)}
	if status == http.StatusInternalServerError {
		s.logger.Error("http.request.failed", "path", r.URL.Path, "request_id", common.RequestIDFromContext(r.Context()), "err", err)
		body.Error = "internal error"
	}
	var ae *common.AppError
	if errors.As(err, &ae) && status != http.StatusInternalServerError {
		body.Error = ae.Message
	}
	writeJSON(w, status, body)
}

func invalid(msg string) error {
	return common.NewAppError("INVALID_INPUT", msg, common.ErrInvalidInput)
}
