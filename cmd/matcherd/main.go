package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joseph-ayodele/article-matcher/internal/app"
	"github.com/joseph-ayodele/article-matcher/internal/async"
	"github.com/joseph-ayodele/article-matcher/internal/ingest"
	"github.com/joseph-ayodele/article-matcher/internal/pipeline"
	"github.com/joseph-ayodele/article-matcher/internal/server"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to config file (optional)")
		logFormat  = flag.String("log-format", "text", "log format: text or json")
		logLevel   = flag.String("log-level", "info", "log level")
		watchDir   = flag.String("watch", "", "inbox directory to watch for documents (optional)")
		watchOut   = flag.String("watch-out", "", "directory for inbox XLSX reports (defaults to <watch>/results)")
	)
	flag.Parse()

	logger := app.NewLogger(os.Stdout, *logFormat, *logLevel)
	slog.SetDefault(logger)

	cfg, err := app.LoadConfig(*configPath)
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to start", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Error("failed to close store", "error", err)
		}
	}()

	opts := a.Options()
	queue := async.NewProcessorQueue(a.Processor, logger,
		async.WithWorkers(cfg.Server.Workers),
		async.WithQueueSize(512),
		async.WithProcessTimeout(cfg.Server.RequestTimeout),
	)

	srv := server.New(server.Deps{
		Documents:      a.Processor,
		Matcher:        a.Matcher,
		Records:        a.Store,
		Confirmations:  a.Confirmations,
		Export:         a.Export,
		Queue:          queue,
		Store:          a.Store,
		Options:        opts,
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
		RequestTimeout: cfg.Server.RequestTimeout,
		Logger:         logger,
	})
	httpServer := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	grpcServer, healthServer := server.NewGRPCServer()
	go server.MonitorHealth(ctx, healthServer, a.Store, 15*time.Second, logger)

	var inbox *async.ProcessorQueue
	if *watchDir != "" {
		inbox, err = startInbox(ctx, a, opts, *watchDir, *watchOut, logger)
		if err != nil {
			logger.Error("failed to watch inbox", "dir", *watchDir, "error", err)
			os.Exit(1)
		}
	}

	if addr := cfg.Server.GRPCAddr; addr != "" {
		if !strings.Contains(addr, ":") {
			addr = ":" + addr
		}
		lis, err := net.Listen("tcp", addr)
		if err != nil {
			logger.Error("failed to listen on address", "addr", addr, "error", err)
			os.Exit(1)
		}
		logger.Info("grpc health listening", "addr", addr)
		go func() {
			if err := grpcServer.Serve(lis); err != nil {
				logger.Error("gRPC serve error", "error", err)
			}
		}()
	}

	go func() {
		logger.Info("article-matcher listening", "addr", httpServer.Addr, "assist", cfg.AssistEnabled())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http serve error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", "error", err)
	}
	queue.Shutdown(shutdownCtx)
	if inbox != nil {
		inbox.Shutdown(shutdownCtx)
	}
	grpcServer.GracefulStop()
}

// startInbox processes every document dropped into dir and writes one XLSX report per document.
func startInbox(ctx context.Context, a *app.App, opts pipeline.Options, dir, out string, logger *slog.Logger) (*async.ProcessorQueue, error) {
	if out == "" {
		out = filepath.Join(dir, "results")
	}
	if err := os.MkdirAll(out, 0o755); err != nil {
		return nil, err
	}
	absOut, _ := filepath.Abs(out)

	sink := func(ctx context.Context, job async.Job, res *pipeline.Result, err error) {
		if err != nil {
			return
		}
		data, err := a.Export.ResultsXLSX(ctx, []*pipeline.Result{res})
		if err != nil {
			logger.Error("inbox.report.failed", "name", job.Input.Name, "error", err)
			return
		}
		name := strings.TrimSuffix(job.Input.Name, filepath.Ext(job.Input.Name))
		path := filepath.Join(out, fmt.Sprintf("%s-matches.xlsx", name))
		if err := os.WriteFile(path, data, 0o644); err != nil {
			logger.Error("inbox.report.failed", "path", path, "error", err)
			return
		}
		logger.Info("inbox.report.ok", "path", path, "matched", res.LinesMatched)
	}
	q := async.NewProcessorQueue(a.Processor, logger,
		async.WithWorkers(1),
		async.WithProcessTimeout(a.Config.Server.RequestTimeout),
		async.WithSink(sink),
	)

	events, errs, err := ingest.StartWatcher(ctx, ingest.WatchConfig{
		Roots:       []string{dir},
		InitialScan: true,
		SkipHidden:  true,
		Debounce:    500 * time.Millisecond,
		Logger:      logger,
	})
	if err != nil {
		q.Shutdown(context.Background())
		return nil, err
	}

	go func() {
		for {
			select {
			case path, ok := <-events:
				if !ok {
					return
				}
				if abs, _ := filepath.Abs(path); strings.HasPrefix(abs, absOut+string(filepath.Separator)) {
					continue
				}
				in, err := ingest.Load(path, a.Config.Server.MaxUploadBytes)
				if err != nil {
					logger.Warn("inbox.load.failed", "path", path, "error", err)
					continue
				}
				if _, err := q.Enqueue(ctx, async.Job{ID: in.DocumentID, Input: in, Options: opts}); err != nil {
					logger.Warn("inbox.enqueue.failed", "path", path, "error", err)
				}
			case err, ok := <-errs:
				if !ok {
					errs = nil
					continue
				}
				logger.Warn("inbox.watch.error", "error", err)
			}
		}
	}()
	return q, nil
}
