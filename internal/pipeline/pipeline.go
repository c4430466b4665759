// Package pipeline runs one retrieval batch end to end.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/dadassist/legal-retriever/internal/crawler"
	"github.com/dadassist/legal-retriever/internal/handoff"
	"github.com/dadassist/legal-retriever/internal/metrics"
	"github.com/dadassist/legal-retriever/internal/relevance"
	"github.com/dadassist/legal-retriever/internal/retriever"
)

const tracerName = "github.com/dadassist/legal-retriever/internal/pipeline"

// Default quality gate.
const (
	DefaultMinWords = 100
	DefaultMinChars = 500
)

// Retriever runs the fallback chain for one target.
type Retriever interface {
	Retrieve(ctx context.Context, target retriever.Target) (crawler.Article, bool)
}

// CandidateFilter selects candidates worth retrieving.
type CandidateFilter interface {
	Apply(candidates []crawler.Candidate, excluded relevance.ExclusionChecker) relevance.Result
}

// Exclusions is the persisted set of attempted URLs.
type Exclusions interface {
	Contains(rawURL string) bool
	Add(rawURL string) bool
	Save() error
}

// Categoriser assigns a topical bucket.
type Categoriser interface {
	Classify(article crawler.Article) string
}

// HandoffWriter persists a run's artifacts.
type HandoffWriter interface {
	Write(ctx context.Context, batch handoff.Batch) (handoff.Manifest, error)
}

// Recorder receives run metrics.
type Recorder interface {
	ObserveCandidate(outcome string)
	ObserveRetrieval(rawURL string, success bool, d time.Duration)
	ObserveQualityRejection()
	ObserveArticle(category string)
	MarkSuccess(at time.Time)
}

// QualityGate is the minimum size of an article worth handing off.
type QualityGate struct {
	MinWords int
	MinChars int
}

// Passes reports whether a meets both thresholds.
func (q QualityGate) Passes(a crawler.Article) bool {
	return a.WordCount >= q.MinWords && a.CharCount >= q.MinChars
}

// Options wires a Pipeline. Store, Publisher and Recorder are optional.
type Options struct {
	Filter      CandidateFilter
	Retriever   Retriever
	Exclusions  Exclusions
	Categoriser Categoriser
	Handoff     HandoffWriter
	Store       crawler.ArticleStore
	Publisher   crawler.Publisher
	Topic       string
	Recorder    Recorder
	IDs         crawler.IDGenerator
	Clock       crawler.Clock
	Quality     QualityGate
	Logger      *zap.Logger
}

// Pipeline orchestrates one batch: filter, retrieve, gate, categorise, hand
// off, then record every attempted URL in the exclusion set.
type Pipeline struct {
	opts   Options
	logger *zap.Logger
}

// New validates opts and returns a Pipeline.
func New(opts Options) (*Pipeline, error) {
	switch {
	case opts.Filter == nil:
		return nil, errors.New("pipeline: filter is required")
	case opts.Retriever == nil:
		return nil, errors.New("pipeline: retriever is required")
	case opts.Exclusions == nil:
		return nil, errors.New("pipeline: exclusion set is required")
	case opts.Categoriser == nil:
		return nil, errors.New("pipeline: categoriser is required")
	case opts.Handoff == nil:
		return nil, errors.New("pipeline: handoff writer is required")
	case opts.IDs == nil:
		return nil, errors.New("pipeline: id generator is required")
	case opts.Clock == nil:
		return nil, errors.New("pipeline: clock is required")
	}
	if opts.Publisher != nil && opts.Topic == "" {
		return nil, errors.New("pipeline: topic is required when a publisher is set")
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{opts: opts, logger: logger}, nil
}

// Batch is the input to Run.
type Batch struct {
	Query      string
	Candidates []crawler.Candidate
}

// Report summarises a run.
type Report struct {
	RunID       string
	Query       string
	Candidates  int
	Excluded    int
	Duplicates  int
	Rejected    int
	Selected    int
	Retrieved   int
	Failed      int
	LowQuality  int
	Accepted    int
	StoreErrors int
	// NoArticles is set when nothing passed the quality gate. No handoff is
	// written in that case and the previous latest-run pointer stays intact.
	NoArticles  bool
	ByMethod    map[crawler.Method]int
	ByCategory  map[string]int
	Manifest    handoff.Manifest
	NoticeID    string
	Duration    time.Duration
}

// Notice is published once the handoff files exist.
type Notice struct {
	RunID       string         `json:"run_id"`
	Query       string         `json:"query,omitempty"`
	ResultsDir  string         `json:"results_dir"`
	AllArticles string         `json:"all_articles_uri"`
	Total       int            `json:"total_articles"`
	Categories  map[string]int `json:"categories"`
}

// Run processes one batch. Individual URL failures only show up in the
// report; handoff and exclusion-save failures abort with an error.
func (p *Pipeline) Run(ctx context.Context, batch Batch) (Report, error) {
	started := p.opts.Clock.Now()
	runID, err := p.opts.IDs.NewID()
	if err != nil {
		return Report{}, fmt.Errorf("generate run id: %w", err)
	}
	ctx, span := otel.Tracer(tracerName).Start(ctx, "pipeline.Run",
		trace.WithAttributes(attribute.String("run.id", runID), attribute.Int("candidates", len(batch.Candidates))))
	defer span.End()
	logger := p.logger.With(zap.String("run_id", runID))
	report := Report{
		RunID:      runID,
		Query:      batch.Query,
		Candidates: len(batch.Candidates),
		ByMethod:   make(map[crawler.Method]int),
		ByCategory: make(map[string]int),
	}

	filtered := p.opts.Filter.Apply(batch.Candidates, p.opts.Exclusions)
	p.recordDecisions(logger, filtered)
	report.Excluded = filtered.Excluded()
	report.Duplicates = filtered.Duplicates()
	report.Rejected = len(filtered.Decisions) - report.Excluded - report.Duplicates - filtered.Passed()
	report.Selected = len(filtered.Selected)
	logger.Info("candidates filtered",
		zap.Int("candidates", report.Candidates),
		zap.Int("excluded", report.Excluded),
		zap.Int("duplicates", report.Duplicates),
		zap.Int("rejected", report.Rejected),
		zap.Int("selected", report.Selected),
	)

	var accepted []crawler.Article
	for _, c := range filtered.Selected {
		if err := ctx.Err(); err != nil {
			return report, fmt.Errorf("run canceled: %w", err)
		}
		article, ok := p.retrieve(ctx, c)
		p.opts.Exclusions.Add(c.URL)
		if !ok {
			report.Failed++
			continue
		}
		report.Retrieved++
		report.ByMethod[article.Method]++

		if !p.opts.Quality.Passes(article) {
			report.LowQuality++
			if p.opts.Recorder != nil {
				p.opts.Recorder.ObserveQualityRejection()
			}
			logger.Info("article below quality gate",
				zap.String("url", c.URL),
				zap.Int("words", article.WordCount),
				zap.Int("chars", article.CharCount),
			)
			continue
		}
		article = article.WithCategory(p.opts.Categoriser.Classify(article))
		report.ByCategory[article.Category]++
		accepted = append(accepted, article)
	}
	report.Accepted = len(accepted)

	if len(accepted) == 0 {
		report.NoArticles = true
		logger.Warn("no quality articles extracted, skipping handoff")
		if err := p.opts.Exclusions.Save(); err != nil {
			span.SetStatus(codes.Error, "exclusion save failed")
			return report, fmt.Errorf("save exclusion set: %w", err)
		}
		report.Duration = p.opts.Clock.Now().Sub(started)
		return report, nil
	}

	manifest, err := p.opts.Handoff.Write(ctx, handoff.Batch{RunID: runID, Query: batch.Query, Articles: accepted})
	if err != nil {
		span.SetStatus(codes.Error, "handoff failed")
		return report, fmt.Errorf("write handoff: %w", err)
	}
	report.Manifest = manifest
	logger.Info("handoff written", zap.String("results_dir", manifest.ResultsDir), zap.Int("articles", len(accepted)))

	p.storeArticles(ctx, logger, runID, accepted, &report)
	report.NoticeID = p.publish(ctx, logger, batch.Query, manifest)

	if err := p.opts.Exclusions.Save(); err != nil {
		span.SetStatus(codes.Error, "exclusion save failed")
		return report, fmt.Errorf("save exclusion set: %w", err)
	}
	span.SetAttributes(attribute.Int("articles.accepted", report.Accepted))

	finished := p.opts.Clock.Now()
	report.Duration = finished.Sub(started)
	if p.opts.Recorder != nil {
		for _, a := range accepted {
			p.opts.Recorder.ObserveArticle(a.Category)
		}
		p.opts.Recorder.MarkSuccess(finished)
	}
	return report, nil
}

func (p *Pipeline) retrieve(ctx context.Context, c crawler.Candidate) (crawler.Article, bool) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "pipeline.retrieve",
		trace.WithAttributes(attribute.String("url.full", c.URL)))
	defer span.End()

	start := p.opts.Clock.Now()
	article, ok := p.opts.Retriever.Retrieve(ctx, retriever.Target{URL: c.URL, TitleHint: c.Title})
	elapsed := p.opts.Clock.Now().Sub(start)
	span.SetAttributes(attribute.Bool("retrieved", ok))
	if p.opts.Recorder != nil {
		p.opts.Recorder.ObserveRetrieval(c.URL, ok, elapsed)
	}
	if !ok {
		return crawler.Article{}, false
	}
	return article.WithCandidate(c), true
}

func (p *Pipeline) recordDecisions(logger *zap.Logger, res relevance.Result) {
	for _, d := range res.Decisions {
		outcome := metrics.OutcomeRejected
		switch {
		case d.Excluded, d.Duplicate:
			outcome = metrics.OutcomeExcluded
		case d.Pass:
			outcome = metrics.OutcomeSelected
		default:
			logger.Debug("candidate rejected", zap.String("url", d.Candidate.URL), zap.String("reason", d.Reason()))
		}
		if p.opts.Recorder != nil {
			p.opts.Recorder.ObserveCandidate(outcome)
		}
	}
}

func (p *Pipeline) storeArticles(ctx context.Context, logger *zap.Logger, runID string, articles []crawler.Article, report *Report) {
	if p.opts.Store == nil {
		return
	}
	for _, a := range articles {
		if err := p.opts.Store.StoreArticle(ctx, runID, a); err != nil {
			report.StoreErrors++
			logger.Warn("store article failed", zap.String("url", a.URL), zap.Error(err))
		}
	}
}

func (p *Pipeline) publish(ctx context.Context, logger *zap.Logger, query string, m handoff.Manifest) string {
	if p.opts.Publisher == nil {
		return ""
	}
	id, err := p.opts.Publisher.Publish(ctx, p.opts.Topic, Notice{
		RunID:       m.RunID,
		Query:       query,
		ResultsDir:  m.ResultsDir,
		AllArticles: m.AllArticles,
		Total:       m.Total,
		Categories:  m.Counts,
	})
	if err != nil {
		logger.Warn("publish notice failed", zap.String("topic", p.opts.Topic), zap.Error(err))
		return ""
	}
	logger.Info("notice published", zap.String("topic", p.opts.Topic), zap.String("message_id", id))
	return id
}
