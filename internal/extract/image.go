package extract

import (
	"context"
	"errors"

	"github.com/joseph-ayodele/article-matcher/constants"
	"github.com/joseph-ayodele/article-matcher/internal/common"
	"github.com/joseph-ayodele/article-matcher/internal/ocr"
)

// ImageExtractor recognizes raster images through the OCR chain.
type ImageExtractor struct {
	chain         *ocr.Chain
	runner        ocr.Runner
	heicConverter string
}

func NewImageExtractor(chain *ocr.Chain, runner ocr.Runner, heicConverter string) *ImageExtractor {
	return &ImageExtractor{chain: chain, runner: runner, heicConverter: heicConverter}
}

func (e *ImageExtractor) Extract(ctx context.Context, data []byte, mediaType string) (*Document, error) {
	if e.chain == nil {
		return nil, common.ExtractionError("image-ocr", common.ErrNoOCRBackend)
	}
	var warns []string
	if constants.IsHEIC(mediaType) {
		png, err := ocr.ConvertHEIC(ctx, e.runner, e.heicConverter, data)
		if err != nil {
			return nil, common.ExtractionError("image-ocr", err)
		}
		data = png
		warns = append(warns, "converted HEIC to PNG before OCR")
	}

	txt, provider, err := e.chain.Recognize(ctx, data)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, common.ExtractionError("image-ocr", err)
	}
	return &Document{
		Text:     txt,
		Method:   "image-ocr",
		Pages:    1,
		Warnings: append(warns, "ocr provider: "+provider),
	}, nil
}
