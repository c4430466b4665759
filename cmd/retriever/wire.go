package main

import (
	"context"
	"fmt"

	"cloud.google.com/go/pubsub"
	gcsclient "cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/dadassist/legal-retriever/internal/category"
	"github.com/dadassist/legal-retriever/internal/clock"
	"github.com/dadassist/legal-retriever/internal/config"
	"github.com/dadassist/legal-retriever/internal/crawler"
	"github.com/dadassist/legal-retriever/internal/exclusion"
	"github.com/dadassist/legal-retriever/internal/extractor"
	collyfetcher "github.com/dadassist/legal-retriever/internal/fetcher/colly"
	"github.com/dadassist/legal-retriever/internal/handoff"
	"github.com/dadassist/legal-retriever/internal/id/uuid"
	"github.com/dadassist/legal-retriever/internal/metrics"
	"github.com/dadassist/legal-retriever/internal/pipeline"
	pubsubpublisher "github.com/dadassist/legal-retriever/internal/publisher/pubsub"
	"github.com/dadassist/legal-retriever/internal/relevance"
	"github.com/dadassist/legal-retriever/internal/retriever"
	"github.com/dadassist/legal-retriever/internal/storage/gcs"
	"github.com/dadassist/legal-retriever/internal/storage/local"
	"github.com/dadassist/legal-retriever/internal/storage/memory"
	"github.com/dadassist/legal-retriever/internal/storage/postgres"
)

// app is the wired object graph for one run.
type app struct {
	pipeline *pipeline.Pipeline
	recorder *metrics.Recorder
	closers  []func()
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func build(ctx context.Context, cfg config.Config, logger *zap.Logger) (*app, error) {
	a := &app{recorder: metrics.NewRecorder()}
	clk := clock.New()

	filter, err := relevance.New(cfg.RelevanceSettings())
	if err != nil {
		return nil, fmt.Errorf("build relevance filter: %w", err)
	}
	excl, err := exclusion.Load(exclusion.Options{
		Path:    cfg.Exclusion.Path,
		MaxSize: cfg.Exclusion.MaxSize,
		Clock:   clk,
	})
	if err != nil {
		return nil, fmt.Errorf("load exclusion set: %w", err)
	}
	logger.Info("exclusion set loaded", zap.String("path", cfg.Exclusion.Path), zap.Int("urls", excl.Len()))

	rcfg := cfg.RetrieverSettings()
	userAgent := ""
	if len(rcfg.UserAgents) > 0 {
		userAgent = rcfg.UserAgents[0]
	}
	fetcher := collyfetcher.New(collyfetcher.Config{
		UserAgent:    userAgent,
		Timeout:      cfg.Retriever.DirectTimeout,
		MaxBodyBytes: cfg.Retriever.MaxBodyBytes,
	})
	ext := extractor.New(cfg.ExtractorSettings(), clk)
	seq := retriever.New(rcfg, fetcher, ext, a.recorder, logger.Named("retriever"))
	methods := make([]string, 0, 4)
	for _, m := range seq.Methods() {
		methods = append(methods, string(m))
	}
	logger.Debug("retrieval chain", zap.Strings("methods", methods))

	blobs, err := a.blobStore(ctx, cfg)
	if err != nil {
		a.Close()
		return nil, err
	}
	writer, err := handoff.NewWriter(blobs, cfg.Output.Prefix, clk)
	if err != nil {
		a.Close()
		return nil, err
	}

	opts := pipeline.Options{
		Filter:      filter,
		Retriever:   seq,
		Exclusions:  excl,
		Categoriser: category.New(nil),
		Handoff:     writer,
		Recorder:    a.recorder,
		IDs:         uuid.NewGenerator(),
		Clock:       clk,
		Quality:     pipeline.QualityGate{MinWords: cfg.Quality.MinWords, MinChars: cfg.Quality.MinChars},
		Logger:      logger.Named("pipeline"),
	}

	if cfg.DB.DSN != "" {
		store, err := postgres.NewArticleStore(ctx, postgres.ArticleStoreConfig{
			DSN:      cfg.DB.DSN,
			Table:    cfg.DB.Table,
			MaxConns: cfg.DB.MaxConns,
		})
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("connect article store: %w", err)
		}
		a.closers = append(a.closers, store.Close)
		opts.Store = store
	}

	if cfg.PubSub.ProjectID != "" {
		client, err := pubsub.NewClient(ctx, cfg.PubSub.ProjectID)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("create pubsub client: %w", err)
		}
		pub := pubsubpublisher.New(client, map[string]string{"source": "legal-retriever"})
		a.closers = append(a.closers, func() {
			pub.Stop()
			if err := client.Close(); err != nil {
				logger.Warn("close pubsub client failed", zap.Error(err))
			}
		})
		opts.Publisher = pub
		opts.Topic = cfg.PubSub.TopicName
	}

	p, err := pipeline.New(opts)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.pipeline = p
	return a, nil
}

func (a *app) blobStore(ctx context.Context, cfg config.Config) (crawler.BlobStore, error) {
	switch cfg.Output.Backend {
	case config.BackendGCS:
		client, err := gcsclient.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("create gcs client: %w", err)
		}
		a.closers = append(a.closers, func() { _ = client.Close() })
		store, err := gcs.New(client, gcs.Config{Bucket: cfg.Output.GCSBucket})
		if err != nil {
			return nil, err
		}
		if err := store.CheckBucket(ctx); err != nil {
			return nil, err
		}
		return store, nil
	case config.BackendMemory:
		return memory.NewBlobStore(), nil
	default:
		return local.New(local.Config{Dir: cfg.Output.Dir})
	}
}
