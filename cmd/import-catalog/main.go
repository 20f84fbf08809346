package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"github.com/joseph-ayodele/article-matcher/internal/app"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to config file (optional)")
		file       = flag.String("file", "", "catalog workbook (.xlsx) to import (required)")
		logLevel   = flag.String("log-level", "info", "log level")
	)
	flag.Parse()

	logger := app.NewLogger(os.Stderr, "text", *logLevel)
	if *file == "" {
		logger.Error("usage", "cmd", "import-catalog -file catalog.xlsx")
		os.Exit(2)
	}

	cfg, err := app.LoadConfig(*configPath)
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(2)
	}
	data, err := os.ReadFile(*file)
	if err != nil {
		logger.Error("read catalog", "file", *file, "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("open store", "error", err)
		os.Exit(1)
	}
	defer func() { _ = a.Close() }()

	stats, err := a.Importer.ImportWorkbook(ctx, data)
	if err != nil {
		logger.Error("import failed", "file", *file, "error", err)
		os.Exit(app.ExitCode(err))
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(stats); err != nil {
		fmt.Fprintln(os.Stderr, err)
	}
}
