package retriever

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/dadassist/legal-retriever/internal/crawler"
)

// Observer receives one call per strategy attempt.
type Observer interface {
	ObserveAttempt(method crawler.Method, success bool)
}

// Sequencer tries strategies in order and stops at the first success.
type Sequencer struct {
	strategies []Strategy
	observer   Observer
	logger     *zap.Logger
}

// New builds the fixed four-step chain: direct, alternate agents, cache
// mirror, archive snapshot. observer may be nil.
func New(
	cfg Config,
	fetcher crawler.Fetcher,
	extractor crawler.Extractor,
	observer Observer,
	logger *zap.Logger,
) *Sequencer {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg = cfg.withDefaults()
	base := attempter{fetcher: fetcher, extractor: extractor, logger: logger}
	pause := func(ctx context.Context) error {
		return sleepWithContext(ctx, cfg.AgentPause)
	}
	return newSequencer(logger, observer,
		directStrategy{attempter: base, cfg: cfg},
		alternateAgentStrategy{attempter: base, cfg: cfg, pause: pause},
		cacheMirrorStrategy{attempter: base, cfg: cfg},
		archiveSnapshotStrategy{attempter: base, cfg: cfg},
	)
}

func newSequencer(logger *zap.Logger, observer Observer, strategies ...Strategy) *Sequencer {
	return &Sequencer{
		strategies: strategies,
		observer:   observer,
		logger:     logger,
	}
}

// Retrieve returns the first non-empty article produced by the chain, tagged
// with the method that produced it. ok is false when every strategy failed or
// the context ended between strategies.
func (s *Sequencer) Retrieve(ctx context.Context, target Target) (crawler.Article, bool) {
	for _, strategy := range s.strategies {
		if ctx.Err() != nil {
			s.logger.Warn("retrieval interrupted", zap.String("url", target.URL), zap.Error(ctx.Err()))
			return crawler.Article{}, false
		}
		method := strategy.Method()
		article, ok := strategy.Retrieve(ctx, target)
		ok = ok && !article.Empty()
		s.observe(method, ok)
		if ok {
			s.logger.Info("article retrieved",
				zap.String("url", target.URL),
				zap.String("method", string(method)),
				zap.Int("words", article.WordCount),
			)
			return article.WithMethod(method), true
		}
		s.logger.Debug("strategy failed", zap.String("url", target.URL), zap.String("method", string(method)))
	}
	s.logger.Warn("all retrieval strategies failed", zap.String("url", target.URL))
	return crawler.Article{}, false
}

// Methods lists the chain in execution order.
func (s *Sequencer) Methods() []crawler.Method {
	out := make([]crawler.Method, 0, len(s.strategies))
	for _, strategy := range s.strategies {
		out = append(out, strategy.Method())
	}
	return out
}

func (s *Sequencer) observe(method crawler.Method, success bool) {
	if s.observer != nil {
		s.observer.ObserveAttempt(method, success)
	}
}

func sleepWithContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("agent pause: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}
