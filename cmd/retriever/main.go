package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/dadassist/legal-retriever/internal/clock"
	"github.com/dadassist/legal-retriever/internal/config"
	"github.com/dadassist/legal-retriever/internal/logging"
	"github.com/dadassist/legal-retriever/internal/pipeline"
	"github.com/dadassist/legal-retriever/internal/rotation"
	"github.com/dadassist/legal-retriever/internal/telemetry"
)

func main() {
	os.Exit(realMain())
}

// errNoArticles marks a run that completed but produced nothing to hand off.
var errNoArticles = errors.New("no quality articles extracted")

// Exit codes.
const (
	exitOK         = 0
	exitFailure    = 1
	exitNoArticles = 2
)

// realMain runs the command and returns the process exit code.
func realMain() int {
	cfgPath := flag.String("config", "", "Path to config file")
	candidatesPath := flag.String("candidates", "", "Path to search results JSON (- for stdin)")
	nextQuery := flag.Bool("next-query", false, "Print the next search query in rotation and exit")
	query := flag.String("query", "", "Query label recorded with the batch (defaults to the last rotated query)")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		return exitFailure
	}
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		return exitFailure
	}
	defer func() {
		if syncErr := logger.Sync(); syncErr != nil {
			fmt.Fprintf(os.Stderr, "logger sync failed: %v\n", syncErr)
		}
	}()
	zap.ReplaceGlobals(logger)

	if *nextQuery {
		q, err := rotation.Advance(cfg.Rotation.StatePath, cfg.Rotation.Queries, clock.New())
		if err != nil {
			logger.Error("advance query rotation failed", zap.Error(err))
			return exitFailure
		}
		fmt.Println(q)
		return exitOK
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tp, err := telemetry.Setup(ctx, "legal-retriever", cfg.Tracing, os.Stderr)
	if err != nil {
		logger.Warn("tracer init failed", zap.Error(err))
	} else {
		defer func() {
			if err := tp.Shutdown(context.Background()); err != nil {
				logger.Warn("tracer shutdown failed", zap.Error(err))
			}
		}()
	}

	return exitCode(logger, run(ctx, cfg, logger, *candidatesPath, *query))
}

func exitCode(logger *zap.Logger, err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, errNoArticles):
		logger.Warn("run finished without articles, previous handoff left in place")
		return exitNoArticles
	default:
		logger.Error("run failed", zap.Error(err))
		return exitFailure
	}
}

func run(ctx context.Context, cfg config.Config, logger *zap.Logger, candidatesPath, query string) error {
	data, err := readCandidates(candidatesPath, os.Stdin)
	if err != nil {
		return err
	}
	candidates, skipped, err := pipeline.ParseSearchResults(data)
	if err != nil {
		return err
	}
	for _, s := range skipped {
		logger.Warn("skipping search result", zap.Error(s))
	}
	if query == "" {
		st, err := rotation.LoadState(cfg.Rotation.StatePath)
		if err != nil {
			logger.Warn("read rotation state failed", zap.Error(err))
		}
		query = st.LastQuery
	}

	app, err := build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer app.Close()

	report, err := app.pipeline.Run(ctx, pipeline.Batch{Query: query, Candidates: candidates})
	if err != nil {
		return err
	}
	logReport(logger, report)

	if cfg.Metrics.PushgatewayURL != "" {
		if err := app.recorder.Push(ctx, cfg.Metrics.PushgatewayURL, cfg.Metrics.Job); err != nil {
			logger.Warn("push metrics failed", zap.Error(err))
		}
	}
	if report.NoArticles {
		return errNoArticles
	}
	return nil
}

func readCandidates(path string, stdin io.Reader) ([]byte, error) {
	switch path {
	case "":
		return nil, errors.New("-candidates is required")
	case "-":
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("read candidates from stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read candidates: %w", err)
	}
	return data, nil
}

func logReport(logger *zap.Logger, r pipeline.Report) {
	methods := make(map[string]int, len(r.ByMethod))
	for m, n := range r.ByMethod {
		methods[string(m)] = n
	}
	logger.Info("run complete",
		zap.String("run_id", r.RunID),
		zap.String("query", r.Query),
		zap.Int("candidates", r.Candidates),
		zap.Int("excluded", r.Excluded),
		zap.Int("duplicates", r.Duplicates),
		zap.Int("rejected", r.Rejected),
		zap.Int("selected", r.Selected),
		zap.Int("retrieved", r.Retrieved),
		zap.Int("failed", r.Failed),
		zap.Int("low_quality", r.LowQuality),
		zap.Int("accepted", r.Accepted),
		zap.Any("by_method", methods),
		zap.Any("by_category", r.ByCategory),
		zap.String("results_dir", r.Manifest.ResultsDir),
		zap.Duration("duration", r.Duration),
	)
}
