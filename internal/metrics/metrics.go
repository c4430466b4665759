// Package metrics exposes Prometheus collectors for one retrieval run.
package metrics

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/dadassist/legal-retriever/internal/crawler"
)

// Candidate outcomes recorded by ObserveCandidate.
const (
	OutcomeSelected = "selected"
	OutcomeRejected = "rejected"
	OutcomeExcluded = "excluded"
)

// Recorder owns a private registry so a batch run can push exactly its own
// series to a Pushgateway.
type Recorder struct {
	registry *prometheus.Registry

	candidates       *prometheus.CounterVec
	attempts         *prometheus.CounterVec
	failures         *prometheus.CounterVec
	articles         *prometheus.CounterVec
	qualityRejected  prometheus.Counter
	retrievalSeconds *prometheus.HistogramVec
	lastSuccess      prometheus.Gauge
}

// NewRecorder registers the run collectors on a fresh registry.
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Recorder{
		registry: reg,
		candidates: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "retriever_candidates_total",
				Help: "Search candidates seen, labeled by filter outcome.",
			},
			[]string{"outcome"},
		),
		attempts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "retriever_attempts_total",
				Help: "Retrieval strategy attempts, labeled by method and result.",
			},
			[]string{"method", "result"},
		),
		failures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "retriever_failures_total",
				Help: "Candidates for which every strategy failed, labeled by site.",
			},
			[]string{"site"},
		),
		articles: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "retriever_articles_total",
				Help: "Articles handed off, labeled by category.",
			},
			[]string{"category"},
		),
		qualityRejected: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "retriever_quality_rejections_total",
				Help: "Retrieved articles dropped by the quality gate.",
			},
		),
		retrievalSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "retriever_retrieval_duration_seconds",
				Help:    "Time spent retrieving one candidate across all strategies.",
				Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"result"},
		),
		lastSuccess: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "retriever_last_success_timestamp_seconds",
				Help: "Unix time of the last run that completed its handoff.",
			},
		),
	}
}

// Registry exposes the underlying registry, mainly for tests.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// ObserveCandidate counts one candidate under outcome.
func (r *Recorder) ObserveCandidate(outcome string) {
	r.candidates.WithLabelValues(outcome).Inc()
}

// ObserveAttempt counts one strategy attempt.
func (r *Recorder) ObserveAttempt(method crawler.Method, success bool) {
	r.attempts.WithLabelValues(string(method), result(success)).Inc()
}

// ObserveRetrieval records the total time spent on one candidate. Failures
// are also counted per site.
func (r *Recorder) ObserveRetrieval(rawURL string, success bool, d time.Duration) {
	r.retrievalSeconds.WithLabelValues(result(success)).Observe(d.Seconds())
	if !success {
		r.failures.WithLabelValues(SanitizeSite(rawURL)).Inc()
	}
}

// ObserveQualityRejection counts an article that failed the quality gate.
func (r *Recorder) ObserveQualityRejection() {
	r.qualityRejected.Inc()
}

// ObserveArticle counts a handed-off article.
func (r *Recorder) ObserveArticle(category string) {
	r.articles.WithLabelValues(category).Inc()
}

// MarkSuccess stamps the completion time of a successful run.
func (r *Recorder) MarkSuccess(at time.Time) {
	r.lastSuccess.Set(float64(at.Unix()))
}

// Push sends the registry to a Pushgateway, replacing the job's series.
func (r *Recorder) Push(ctx context.Context, gatewayURL, job string) error {
	if gatewayURL == "" {
		return fmt.Errorf("pushgateway url is required")
	}
	if job == "" {
		return fmt.Errorf("push job name is required")
	}
	if err := push.New(gatewayURL, job).Gatherer(r.registry).PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics: %w", err)
	}
	return nil
}

// SanitizeSite extracts a lowercase hostname for use as a label.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}

func result(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}
