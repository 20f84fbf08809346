package extract

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/joseph-ayodele/article-matcher/constants"
	"github.com/joseph-ayodele/article-matcher/internal/common"
	"github.com/joseph-ayodele/article-matcher/internal/ocr"
)

// Registry dispatches documents to extractors by declared media type.
type Registry struct {
	extractors map[string]Extractor
	logger     *slog.Logger
}

func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{extractors: map[string]Extractor{}, logger: logger}
}

// Config wires the default extractor set.
type Config struct {
	Chain         *ocr.Chain
	Renderer      *ocr.PDFRenderer
	Runner        ocr.Runner
	HeicConverter string
}

// NewDefaultRegistry registers an extractor for every supported media type.
func NewDefaultRegistry(cfg Config, logger *slog.Logger) *Registry {
	r := NewRegistry(logger)

	img := NewImageExtractor(cfg.Chain, cfg.Runner, cfg.HeicConverter)
	for _, mt := range []string{
		constants.MediaTypeJPEG, constants.MediaTypeJPG, constants.MediaTypePNG,
		constants.MediaTypeTIFF, constants.MediaTypeBMP, constants.MediaTypeWEBP,
		constants.MediaTypeHEIC, constants.MediaTypeHEIF,
	} {
		r.Register(mt, img)
	}
	r.Register(constants.MediaTypePDF, NewPDFExtractor(cfg.Chain, cfg.Renderer, r.logger))
	sheet := SpreadsheetExtractor{}
	r.Register(constants.MediaTypeXLSX, sheet)
	r.Register(constants.MediaTypeXLS, sheet)
	r.Register(constants.MediaTypeCSV, CSVExtractor{})
	r.Register(constants.MediaTypeDOCX, DocxExtractor{})
	r.Register(constants.MediaTypePlain, TextExtractor{})
	return r
}

// Register binds an extractor to a media type, replacing any previous binding.
func (r *Registry) Register(mediaType string, e Extractor) {
	r.extractors[constants.NormalizeMediaType(mediaType)] = e
}

// Supports reports whether a media type has an extractor.
func (r *Registry) Supports(mediaType string) bool {
	_, ok := r.extractors[constants.NormalizeMediaType(mediaType)]
	return ok
}

// MediaTypes lists the registered media types, sorted.
func (r *Registry) MediaTypes() []string {
	out := make([]string, 0, len(r.extractors))
	for mt := range r.extractors {
		out = append(out, mt)
	}
	sort.Strings(out)
	return out
}

// Extract runs the extractor registered for mediaType.
func (r *Registry) Extract(ctx context.Context, data []byte, mediaType string) (*Document, error) {
	mt := constants.NormalizeMediaType(mediaType)
	e, ok := r.extractors[mt]
	if !ok {
		r.logger.Warn("extract.unsupported", "media_type", mediaType)
		return nil, common.UnsupportedFormatError(mediaType)
	}
	if len(data) == 0 {
		return nil, common.NewAppError("INVALID_INPUT", "document is empty", common.ErrInvalidInput)
	}

	start := time.Now()
	doc, err := e.Extract(ctx, data, mt)
	if err != nil {
		r.logger.Error("extract.failed",
			"media_type", mt,
			"bytes", len(data),
			"error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return nil, err
	}
	if doc == nil {
		return nil, common.ExtractionError(mt, fmt.Errorf("extractor returned no document"))
	}
	doc.MediaType = mt
	doc.Format = constants.MapMediaTypeToFormat(mt)
	doc.Duration = time.Since(start)
	r.logger.Info("extract.ok",
		"media_type", mt,
		"method", doc.Method,
		"pages", doc.Pages,
		"tables", len(doc.Tables),
		"chars", len(doc.Text),
		"warnings", len(doc.Warnings),
		"elapsed_ms", doc.Duration.Milliseconds(),
	)
	return doc, nil
}
