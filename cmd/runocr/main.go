package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joseph-ayodele/article-matcher/internal/app"
	"github.com/joseph-ayodele/article-matcher/internal/ingest"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	configPath := flag.String("config", "", "path to config file (optional)")
	flag.Parse()
	if flag.NArg() != 1 {
		logger.Error("usage", "cmd", "runocr [-config config.yaml] <document>")
		os.Exit(2)
	}
	path := flag.Arg(0)

	cfg, err := app.LoadConfig(*configPath)
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(2)
	}

	in, err := ingest.Load(path, cfg.Server.MaxUploadBytes)
	if err != nil {
		logger.Error("load document", "path", path, "error", err)
		os.Exit(app.ExitCode(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	registry, chain := app.NewRegistry(cfg, logger)
	for _, p := range chain.Providers() {
		logger.Info("ocr provider", "name", p.Name(), "available", p.Available(ctx))
	}

	start := time.Now()
	doc, err := registry.Extract(ctx, in.Data, in.MediaType)
	dur := time.Since(start)
	if err != nil {
		logger.Error("text extraction failed", "path", path, "error", err, "duration_ms", dur.Milliseconds())
		os.Exit(app.ExitCode(err))
	}

	logger.Info("text extraction OK",
		"method", doc.Method,
		"pages", doc.Pages,
		"tables", len(doc.Tables),
		"bytes", len(doc.Text),
		"warnings", doc.Warnings,
		"duration_ms", dur.Milliseconds(),
	)
	fmt.Println(doc.Text)
}
