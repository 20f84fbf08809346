package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"

	"github.com/joseph-ayodele/article-matcher/internal/catalog"
	"github.com/joseph-ayodele/article-matcher/internal/common"
	"github.com/joseph-ayodele/article-matcher/internal/confirm"
	"github.com/joseph-ayodele/article-matcher/internal/export"
	"github.com/joseph-ayodele/article-matcher/internal/extract"
	"github.com/joseph-ayodele/article-matcher/internal/llm"
	"github.com/joseph-ayodele/article-matcher/internal/llm/openai"
	"github.com/joseph-ayodele/article-matcher/internal/match"
	"github.com/joseph-ayodele/article-matcher/internal/ocr"
	"github.com/joseph-ayodele/article-matcher/internal/pipeline"
	"github.com/joseph-ayodele/article-matcher/internal/repository"
	"github.com/joseph-ayodele/article-matcher/internal/structure"
)

// App holds the wired components shared by the binaries.
type App struct {
	Config        *common.Config
	Logger        *slog.Logger
	Store         repository.Store
	Confirmations *confirm.Cache
	Matcher       *match.Matcher
	Processor     *pipeline.Processor
	Export        *export.Service
	Importer      *catalog.Importer
	OCR           *ocr.Chain
}

// New opens the store and wires the pipeline from cfg. Semantic assist is enabled only when
// an API key is configured.
func New(ctx context.Context, cfg *common.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	store, err := repository.Open(ctx, cfg.Database, logger)
	if err != nil {
		return nil, err
	}

	registry, chain := NewRegistry(cfg, logger)

	var (
		semantic llm.SemanticMatcher
		columns  llm.ColumnInferrer
	)
	if cfg.AssistEnabled() {
		client := openai.NewClient(openai.Config{
			APIKey:            cfg.LLM.APIKey,
			BaseURL:           cfg.LLM.BaseURL,
			Model:             cfg.LLM.Model,
			Temperature:       cfg.LLM.Temperature,
			Timeout:           cfg.LLM.Timeout,
			RequestsPerMinute: cfg.LLM.RequestsPerMinute,
			LenientOptional:   true,
		}, logger)
		semantic, columns = client, client
		logger.Info("app.assist.enabled", "model", cfg.LLM.Model)
	}

	cache := confirm.NewCache(store, cfg.Matching.MinContainment, logger)
	if err := cache.Reload(ctx); err != nil {
		logger.Warn("app.confirm.preload_failed", "err", err)
	}
	matcher := match.NewMatcher(cache, semantic, logger)
	inferrer := structure.NewInferrer(columns, cfg.Matching.AssistTimeout, logger)

	return &App{
		Config:        cfg,
		Logger:        logger,
		Store:         store,
		Confirmations: cache,
		Matcher:       matcher,
		Processor:     pipeline.NewProcessor(logger, registry, inferrer, matcher, store),
		Export:        export.NewService(cache, logger),
		Importer:      catalog.NewImporter(store, logger),
		OCR:           chain,
	}, nil
}

// NewRegistry wires the extractor registry and its OCR chain. A configured remote OCR
// sidecar is tried before tesseract.
func NewRegistry(cfg *common.Config, logger *slog.Logger) (*extract.Registry, *ocr.Chain) {
	runner := ocr.ExecRunner{Logger: logger}
	chain := ocr.NewChain(logger, remoteProvider(cfg.OCR, logger), ocr.NewTesseractProvider(ocr.TesseractConfig{
		Binary:      cfg.OCR.Tesseract,
		Lang:        cfg.OCR.Language,
		TessdataDir: cfg.OCR.TessdataDir,
		PSM:         6,
	}, runner))
	registry := extract.NewDefaultRegistry(extract.Config{
		Chain: chain,
		Renderer: ocr.NewPDFRenderer(ocr.RenderConfig{
			Pdftoppm: cfg.OCR.Pdftoppm,
			DPI:      cfg.OCR.DPI,
			MaxPages: cfg.OCR.MaxPages,
		}, runner),
		Runner:        runner,
		HeicConverter: cfg.OCR.HeicConverter,
	}, logger)
	return registry, chain
}

func remoteProvider(cfg common.OCRConfig, logger *slog.Logger) ocr.Provider {
	if strings.TrimSpace(cfg.RemoteURL) == "" {
		return nil
	}
	return ocr.NewHTTPProvider(cfg.RemoteURL, cfg.RemoteTimeout, logger)
}

// Options translates the matching config into pipeline options.
func (a *App) Options() pipeline.Options {
	opts := pipeline.DefaultOptions()
	m := a.Config.Matching
	opts.Match.MinScore = m.MinScore
	opts.Match.TrustScore = m.TrustScore
	opts.Match.AssistMinConfidence = m.AssistMinConfidence
	if m.AssistTimeout > 0 {
		opts.Match.AssistTimeout = m.AssistTimeout
	}
	if m.SampleSize > 0 {
		opts.Match.SampleSize = m.SampleSize
	}
	if m.Workers > 0 {
		opts.Workers = m.Workers
	}
	return opts
}

func (a *App) Close() error {
	if a.Store == nil {
		return nil
	}
	return a.Store.Close()
}

// NewLogger builds the process logger. format is "text" or "json".
func NewLogger(w io.Writer, format, level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// LoadConfig reads and validates the configuration file at path (optional).
func LoadConfig(path string) (*common.Config, error) {
	cfg, err := common.LoadConfig(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ExitCode maps an error onto a process exit status: 2 for bad input, 1 otherwise.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, common.ErrInvalidInput), errors.Is(err, common.ErrValidation), errors.Is(err, common.ErrUnsupportedFormat):
		return 2
	default:
		return 1
	}
}
