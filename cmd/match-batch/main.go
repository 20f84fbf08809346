package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/joseph-ayodele/article-matcher/internal/app"
	"github.com/joseph-ayodele/article-matcher/internal/async"
	"github.com/joseph-ayodele/article-matcher/internal/ingest"
	"github.com/joseph-ayodele/article-matcher/internal/pipeline"
)

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func main() {
	var (
		configPath  = flag.String("config", "", "path to config file (optional)")
		dir         = flag.String("dir", "", "directory of documents to match (required)")
		out         = flag.String("out", "", "output XLSX file path (defaults to <dir>/../matches.xlsx)")
		exts        = flag.String("ext", "", "comma-separated extensions to include (default: all supported)")
		workers     = flag.Int("workers", 4, "documents processed in parallel")
		minScore    = flag.Float64("min-score", -1, "override the minimum score (0-100)")
		noUnmatched = flag.Bool("no-unmatched", false, "leave unmatched lines out of the report")
		hidden      = flag.Bool("hidden", false, "include hidden files and directories")
		timeout     = flag.Duration("timeout", 3*time.Minute, "per-document processing timeout")
	)
	flag.Parse()

	if *dir == "" {
		printError("Error: --dir is required\n")
		os.Exit(2)
	}
	if *out == "" {
		*out = filepath.Join(filepath.Dir(filepath.Clean(*dir)), "matches.xlsx")
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg, err := app.LoadConfig(*configPath)
	if err != nil {
		printError("Error: %v\n", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		printError("Error: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = a.Close() }()

	opts := a.Options()
	if *minScore >= 0 {
		if *minScore > 100 {
			printError("Error: --min-score must be between 0 and 100\n")
			os.Exit(2)
		}
		opts.Match.MinScore = *minScore
	}
	opts.IncludeUnmatched = !*noUnmatched

	files, stats, err := ingest.ScanDirectory(ctx, *dir, ingest.ExtSet(strings.Split(*exts, ",")), !*hidden)
	if err != nil {
		printError("Error: %v\n", err)
		os.Exit(1)
	}
	logger.Info("batch.scan.ok", "dir", *dir, "scanned", stats.Scanned, "matched", stats.Matched, "failed", stats.Failed)

	var (
		mu      sync.Mutex
		results []*pipeline.Result
		failed  []string
	)
	fail := func(format string, args ...any) {
		mu.Lock()
		defer mu.Unlock()
		failed = append(failed, fmt.Sprintf(format, args...))
	}
	queue := async.NewProcessorQueue(a.Processor, logger,
		async.WithWorkers(*workers),
		async.WithQueueSize(len(files)+1),
		async.WithProcessTimeout(*timeout),
		async.WithSink(func(_ context.Context, job async.Job, res *pipeline.Result, err error) {
			if err != nil {
				fail("%s: %v", job.Input.Name, err)
				return
			}
			mu.Lock()
			defer mu.Unlock()
			results = append(results, res)
		}),
	)

	start := time.Now()
	for _, f := range files {
		if f.Err != "" {
			fail("%s: %s", f.Path, f.Err)
			continue
		}
		in, err := ingest.Load(f.Path, cfg.Server.MaxUploadBytes)
		if err != nil {
			fail("%s: %v", f.Path, err)
			continue
		}
		rel, _ := filepath.Rel(*dir, f.Path)
		in.Name = rel
		if _, err := queue.Enqueue(ctx, async.Job{Input: in, Options: opts}); err != nil {
			fail("%s: %v", f.Path, err)
		}
	}
	queue.Shutdown(ctx)
	if ctx.Err() != nil {
		printError("Interrupted\n")
		os.Exit(130)
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Name < results[j].Name })
	data, err := a.Export.ResultsXLSX(ctx, results)
	if err != nil {
		printError("Error: export: %v\n", err)
		os.Exit(1)
	}
	if err := os.WriteFile(*out, data, 0o644); err != nil {
		printError("Error: writing %s: %v\n", *out, err)
		os.Exit(1)
	}

	matched, lines := 0, 0
	for _, r := range results {
		matched += r.LinesMatched
		lines += r.LinesProcessed
	}
	logger.Info("batch.ok",
		"documents", len(results),
		"failed", len(failed),
		"lines", lines,
		"matched", matched,
		"out", *out,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	for _, f := range failed {
		printError("failed: %s\n", f)
	}
	if len(failed) > 0 && len(results) == 0 {
		os.Exit(1)
	}
}
