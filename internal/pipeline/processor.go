// Package pipeline drives one document through extraction, line splitting and matching.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/joseph-ayodele/article-matcher/constants"
	"github.com/joseph-ayodele/article-matcher/internal/common"
	"github.com/joseph-ayodele/article-matcher/internal/entity"
	"github.com/joseph-ayodele/article-matcher/internal/extract"
	"github.com/joseph-ayodele/article-matcher/internal/match"
	"github.com/joseph-ayodele/article-matcher/internal/structure"
)

// CatalogSource lists the catalog a run matches against.
type CatalogSource interface {
	ListRecords(ctx context.Context) ([]entity.CatalogRecord, error)
}

// Input is one uploaded document.
type Input struct {
	DocumentID uuid.UUID
	Name       string
	Data       []byte
	MediaType  string
}

// Options tune a run.
type Options struct {
	Match            match.Options
	IncludeUnmatched bool
	// Workers > 1 matches lines of one document in parallel; order is preserved.
	Workers int
}

func DefaultOptions() Options {
	return Options{Match: match.DefaultOptions(), IncludeUnmatched: true, Workers: 1}
}

// TableMapping reports the column layout inferred for one sheet.
type TableMapping struct {
	Sheet   string                  `json:"sheet"`
	Mapping structure.ColumnMapping `json:"mapping"`
}

// Result is the outcome of one document. Matches are in input order.
type Result struct {
	DocumentID     uuid.UUID            `json:"document_id"`
	Name           string               `json:"name,omitempty"`
	Format         constants.Format     `json:"format"`
	Method         string               `json:"method"`
	Pages          int                  `json:"pages,omitempty"`
	Mappings       []TableMapping       `json:"mappings,omitempty"`
	Matches        []entity.MatchResult `json:"matches"`
	LinesProcessed int                  `json:"lines_processed"`
	LinesMatched   int                  `json:"lines_matched"`
	Warnings       []string             `json:"warnings,omitempty"`
	Duration       time.Duration        `json:"duration_ns"`
}

// Processor coordinates extraction, structure inference and matching.
type Processor struct {
	Logger    *slog.Logger
	Extractor extract.Extractor
	Structure *structure.Inferrer
	Matcher   *match.Matcher
	Catalog   CatalogSource
}

func NewProcessor(logger *slog.Logger, ex extract.Extractor, inf *structure.Inferrer, m *match.Matcher, catalog CatalogSource) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	if inf == nil {
		inf = structure.NewInferrer(nil, 0, logger)
	}
	return &Processor{Logger: logger, Extractor: ex, Structure: inf, Matcher: m, Catalog: catalog}
}

// LoadCatalog reads and prepares the catalog once so it can be shared across documents.
func (p *Processor) LoadCatalog(ctx context.Context) (*match.Catalog, error) {
	start := time.Now()
	records, err := p.Catalog.ListRecords(ctx)
	if err != nil {
		p.Logger.Error("pipeline.catalog.failed", "error", err)
		return nil, fmt.Errorf("list catalog: %w", err)
	}
	cat := match.NewCatalog(records)
	p.Logger.Info("pipeline.catalog.ok", "records", cat.Len(), "elapsed_ms", time.Since(start).Milliseconds())
	return cat, nil
}

// Process runs one document against the current catalog.
func (p *Processor) Process(ctx context.Context, in Input, opts Options) (*Result, error) {
	cat, err := p.LoadCatalog(ctx)
	if err != nil {
		return nil, err
	}
	return p.ProcessWithCatalog(ctx, in, cat, opts)
}

// ProcessWithCatalog runs one document against a prepared catalog. On cancellation the
// partial result is discarded and ctx.Err() is returned.
func (p *Processor) ProcessWithCatalog(ctx context.Context, in Input, cat *match.Catalog, opts Options) (*Result, error) {
	if in.DocumentID == uuid.Nil {
		in.DocumentID = uuid.New()
	}
	ctx = common.WithDocumentID(ctx, in.DocumentID.String())
	start := time.Now()
	log := p.Logger.With("document_id", in.DocumentID, "name", in.Name)

	doc, err := p.Extractor.Extract(ctx, in.Data, in.MediaType)
	if err != nil {
		log.Error("pipeline.extract.failed", "media_type", in.MediaType, "error", err)
		return nil, err
	}

	res := &Result{
		DocumentID: in.DocumentID,
		Name:       in.Name,
		Format:     doc.Format,
		Method:     doc.Method,
		Pages:      doc.Pages,
		Warnings:   doc.Warnings,
	}

	var lines []entity.RecognizedLine
	if doc.Tabular() {
		mappings := make([]structure.Mapping, len(doc.Tables))
		for i, t := range doc.Tables {
			mappings[i] = p.Structure.Infer(ctx, t.Rows)
			res.Mappings = append(res.Mappings, TableMapping{Sheet: t.Sheet, Mapping: mappings[i].Public()})
			log.Info("pipeline.structure",
				"sheet", t.Sheet,
				"source", mappings[i].Source,
				"identifier_col", mappings[i].IdentifierCol,
				"descriptive_col", mappings[i].DescriptiveCol,
			)
		}
		lines = TableLines(in.DocumentID, doc.Tables, mappings)
	} else {
		lines = SplitLines(in.DocumentID, doc.Text)
	}
	if len(lines) == 0 {
		log.Warn("pipeline.extract.empty", "method", doc.Method)
		return nil, common.NewAppError("EMPTY_EXTRACTION", "no text could be recognized in the document", common.ErrEmptyExtraction)
	}

	matches, err := p.matchAll(ctx, lines, cat, opts)
	if err != nil {
		log.Warn("pipeline.process.cancelled", "lines", len(lines), "error", err)
		return nil, err
	}

	res.LinesProcessed = len(matches)
	for _, m := range matches {
		if m.Matched() {
			res.LinesMatched++
		}
	}
	if opts.IncludeUnmatched {
		res.Matches = matches
	} else {
		res.Matches = make([]entity.MatchResult, 0, res.LinesMatched)
		for _, m := range matches {
			if m.Matched() {
				res.Matches = append(res.Matches, m)
			}
		}
	}
	res.Duration = time.Since(start)

	log.Info("pipeline.process.ok",
		"method", res.Method,
		"lines", res.LinesProcessed,
		"matched", res.LinesMatched,
		"elapsed_ms", res.Duration.Milliseconds(),
	)
	return res, nil
}

func (p *Processor) matchAll(ctx context.Context, lines []entity.RecognizedLine, cat *match.Catalog, opts Options) ([]entity.MatchResult, error) {
	out := make([]entity.MatchResult, len(lines))
	if opts.Workers <= 1 {
		for i, l := range lines {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			out[i] = p.Matcher.MatchLine(ctx, l, cat, opts.Match)
		}
		return out, ctx.Err()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Workers)
	for i := range lines {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out[i] = p.Matcher.MatchLine(gctx, lines[i], cat, opts.Match)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// BatchItem is the outcome of one document in a batch. Exactly one of Result and Err is set.
type BatchItem struct {
	Input  Input
	Result *Result
	Err    error
}

// ProcessBatch processes documents one after another against a single catalog snapshot.
// A failing document is recorded and does not stop the others; only cancellation does.
func (p *Processor) ProcessBatch(ctx context.Context, inputs []Input, opts Options) ([]BatchItem, error) {
	cat, err := p.LoadCatalog(ctx)
	if err != nil {
		return nil, err
	}
	items := make([]BatchItem, 0, len(inputs))
	failed := 0
	for _, in := range inputs {
		if err := ctx.Err(); err != nil {
			return items, err
		}
		res, err := p.ProcessWithCatalog(ctx, in, cat, opts)
		if err != nil && ctx.Err() != nil {
			return items, ctx.Err()
		}
		if err != nil {
			failed++
		}
		items = append(items, BatchItem{Input: in, Result: res, Err: err})
	}
	p.Logger.Info("pipeline.batch.ok", "documents", len(inputs), "failed", failed)
	return items, nil
}
