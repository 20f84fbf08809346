package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/joseph-ayodele/article-matcher/internal/common"
	"github.com/joseph-ayodele/article-matcher/internal/ocr"
)

// PageRenderer rasterizes PDF pages for OCR.
type PageRenderer interface {
	Available() bool
	Render(ctx context.Context, pdf []byte) ([][]byte, error)
}

// PDFExtractor reads the embedded text layer and falls back to render + OCR
// when no page yields text. Documents that pdfcpu reports as carrying images get
// their blank text-layer pages OCR'd as well.
type PDFExtractor struct {
	chain    *ocr.Chain
	renderer PageRenderer
	logger   *slog.Logger

	// textLayer and inspect are swappable in tests.
	textLayer func(data []byte) ([]string, error)
	inspect   func(data []byte) (pdfInfo, error)
}

func NewPDFExtractor(chain *ocr.Chain, renderer *ocr.PDFRenderer, logger *slog.Logger) *PDFExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	e := &PDFExtractor{chain: chain, logger: logger, textLayer: pdfTextLayer, inspect: inspectPDF}
	if renderer != nil {
		e.renderer = renderer
	}
	return e
}

func (e *PDFExtractor) Extract(ctx context.Context, data []byte, _ string) (*Document, error) {
	var warns []string
	info, err := e.inspect(data)
	if err != nil {
		warns = append(warns, "pdf validation: "+err.Error())
	}

	pages, textErr := e.textLayer(data)
	if textErr == nil && strings.TrimSpace(strings.Join(pages, "")) != "" {
		if blank := blankPages(pages); info.hasImages && blank > 0 && e.canOCR() {
			doc, err := e.fillBlankPages(ctx, data, pages, info)
			if err == nil {
				doc.Warnings = append(warns, doc.Warnings...)
				return doc, nil
			}
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, err
			}
			e.logger.Warn("extract.pdf.mixed_failed", "blank_pages", blank, "err", err)
			warns = append(warns, "ocr of image-only pages: "+err.Error())
		}
		return &Document{
			Text:     ocr.Normalize(strings.Join(pages, "\n")),
			Method:   "pdf-text",
			Pages:    len(pages),
			Warnings: warns,
		}, nil
	}
	if textErr != nil {
		warns = append(warns, "pdf text layer: "+textErr.Error())
	}
	e.logger.Info("extract.pdf.no_text_layer", "pages", len(pages), "page_count", info.pageCount, "has_images", info.hasImages)

	doc, ocrErr := e.ocrPages(ctx, data, info)
	if ocrErr != nil {
		if errors.Is(ocrErr, context.Canceled) || errors.Is(ocrErr, context.DeadlineExceeded) {
			return nil, ocrErr
		}
		return nil, common.ExtractionError("pdf", errors.Join(textErr, ocrErr))
	}
	doc.Warnings = append(warns, doc.Warnings...)
	return doc, nil
}

func (e *PDFExtractor) canOCR() bool {
	return e.chain != nil && e.renderer != nil && e.renderer.Available()
}

func blankPages(pages []string) int {
	n := 0
	for _, p := range pages {
		if strings.TrimSpace(p) == "" {
			n++
		}
	}
	return n
}

// render rasterizes the document and notes when the renderer stopped short of pdfcpu's page count.
func (e *PDFExtractor) render(ctx context.Context, data []byte, info pdfInfo) ([][]byte, []string, error) {
	images, err := e.renderer.Render(ctx, data)
	if err != nil {
		return nil, nil, err
	}
	var warns []string
	if info.pageCount > len(images) {
		warns = append(warns, fmt.Sprintf("ocr limited to %d of %d pages", len(images), info.pageCount))
	}
	return images, warns, nil
}

// fillBlankPages keeps the text layer where it has text and OCRs the remaining pages.
func (e *PDFExtractor) fillBlankPages(ctx context.Context, data []byte, pages []string, info pdfInfo) (*Document, error) {
	images, warns, err := e.render(ctx, data, info)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(pages))
	copy(out, pages)
	filled := 0
	for i, p := range pages {
		if strings.TrimSpace(p) != "" || i >= len(images) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		txt, _, err := e.chain.Recognize(ctx, images[i])
		if err != nil {
			warns = append(warns, fmt.Sprintf("page %d: %v", i+1, err))
			continue
		}
		out[i] = txt
		filled++
	}
	e.logger.Info("extract.pdf.mixed", "pages", len(pages), "ocr_pages", filled)
	return &Document{
		Text:     ocr.Normalize(strings.Join(out, "\n")),
		Method:   "pdf-mixed",
		Pages:    len(pages),
		Warnings: warns,
	}, nil
}

func (e *PDFExtractor) ocrPages(ctx context.Context, data []byte, info pdfInfo) (*Document, error) {
	if e.renderer == nil || !e.renderer.Available() {
		return nil, fmt.Errorf("pdf renderer unavailable")
	}
	if e.chain == nil {
		return nil, common.ErrNoOCRBackend
	}
	images, warns, err := e.render(ctx, data, info)
	if err != nil {
		return nil, err
	}
	if len(images) == 0 {
		return nil, fmt.Errorf("pdf renderer produced no pages")
	}

	var (
		b    strings.Builder
		errs []error
	)
	for i, img := range images {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		txt, _, err := e.chain.Recognize(ctx, img)
		if err != nil {
			warns = append(warns, fmt.Sprintf("page %d: %v", i+1, err))
			errs = append(errs, err)
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(txt)
	}
	if len(errs) == len(images) {
		return nil, errors.Join(errs...)
	}
	return &Document{
		Text:     ocr.Normalize(b.String()),
		Method:   "pdf-ocr",
		Pages:    len(images),
		Warnings: warns,
	}, nil
}

// pdfTextLayer returns the embedded text of each page. Malformed documents can panic
// inside the parser, which is reported as an error.
func pdfTextLayer(data []byte) (pages []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdf parser panic: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	n := reader.NumPage()
	pages = make([]string, 0, n)
	for i := 1; i <= n; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		txt, err := page.GetPlainText(nil)
		if err != nil {
			pages = append(pages, "")
			continue
		}
		pages = append(pages, txt)
	}
	return pages, nil
}

type pdfInfo struct {
	pageCount int
	hasImages bool
}

// inspectPDF validates the structure and checks for image XObjects.
func inspectPDF(data []byte) (info pdfInfo, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdfcpu panic: %v", r)
		}
	}()

	ctx, err := api.ReadValidateAndOptimize(bytes.NewReader(data), model.NewDefaultConfiguration())
	if err != nil {
		return pdfInfo{}, err
	}
	info.pageCount = ctx.PageCount
	if ctx.Optimize != nil {
		for pageNr := 1; pageNr <= ctx.PageCount; pageNr++ {
			if len(pdfcpu.ImageObjNrs(ctx, pageNr)) > 0 {
				info.hasImages = true
				break
			}
		}
	}
	return info, nil
}
