package retriever

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/dadassist/legal-retriever/internal/crawler"
)

// Target is the unit of work for a strategy.
type Target struct {
	URL       string
	TitleHint string
}

// Strategy is one retrieval method in the fallback chain.
type Strategy interface {
	Method() crawler.Method
	Retrieve(ctx context.Context, target Target) (crawler.Article, bool)
}

// attempter performs fetch+extract and folds every failure into ok=false.
type attempter struct {
	fetcher   crawler.Fetcher
	extractor crawler.Extractor
	logger    *zap.Logger
}

func (a attempter) fetchAndExtract(
	ctx context.Context,
	method crawler.Method,
	fetchURL string,
	headers http.Header,
	cfg Config,
	target Target,
) (crawler.Article, bool) {
	body, ok := a.fetchOK(ctx, method, fetchURL, headers, cfg.DirectTimeout)
	if !ok {
		return crawler.Article{}, false
	}
	article, err := a.extractor.Extract(body, target.URL, target.TitleHint)
	if err != nil {
		a.logger.Debug("extraction failed",
			zap.String("method", string(method)),
			zap.String("url", target.URL),
			zap.Error(err),
		)
		return crawler.Article{}, false
	}
	if article.Empty() {
		a.logger.Debug("extraction yielded no text",
			zap.String("method", string(method)),
			zap.String("url", target.URL),
		)
		return crawler.Article{}, false
	}
	return article, true
}

func (a attempter) fetchOK(
	ctx context.Context,
	method crawler.Method,
	fetchURL string,
	headers http.Header,
	timeout time.Duration,
) ([]byte, bool) {
	resp, err := a.fetcher.Fetch(ctx, crawler.FetchRequest{
		URL:     fetchURL,
		Headers: headers,
		Timeout: timeout,
	})
	if err != nil {
		a.logger.Debug("fetch failed",
			zap.String("method", string(method)),
			zap.String("url", fetchURL),
			zap.Error(err),
		)
		return nil, false
	}
	if !resp.OK() {
		a.logger.Debug("fetch returned non-200 or empty body",
			zap.String("method", string(method)),
			zap.String("url", fetchURL),
			zap.Int("status", resp.StatusCode),
			zap.Int("bytes", len(resp.Body)),
		)
		return nil, false
	}
	return resp.Body, true
}

func defaultHeaders(userAgent string) http.Header {
	return http.Header{"User-Agent": {userAgent}}
}

func browserHeaders(userAgent string) http.Header {
	return http.Header{
		"User-Agent":      {userAgent},
		"Accept":          {"text/html,application/xhtml+xml"},
		"Accept-Language": {"en-US,en;q=0.9"},
		"Referer":         {"https://www.google.com/"},
	}
}

// directStrategy fetches the URL with the default header set.
type directStrategy struct {
	attempter
	cfg Config
}

func (s directStrategy) Method() crawler.Method { return crawler.MethodDirect }

func (s directStrategy) Retrieve(ctx context.Context, target Target) (crawler.Article, bool) {
	return s.fetchAndExtract(ctx, s.Method(), target.URL, defaultHeaders(s.cfg.UserAgents[0]), s.cfg, target)
}

// alternateAgentStrategy rotates through the remaining user agents with
// browser-like headers, pausing between attempts.
type alternateAgentStrategy struct {
	attempter
	cfg   Config
	pause func(ctx context.Context) error
}

func (s alternateAgentStrategy) Method() crawler.Method { return crawler.MethodAlternateAgent }

func (s alternateAgentStrategy) Retrieve(ctx context.Context, target Target) (crawler.Article, bool) {
	for i, ua := range s.cfg.UserAgents[1:] {
		if i > 0 {
			if err := s.pause(ctx); err != nil {
				return crawler.Article{}, false
			}
		}
		if article, ok := s.fetchAndExtract(ctx, s.Method(), target.URL, browserHeaders(ua), s.cfg, target); ok {
			return article, true
		}
	}
	return crawler.Article{}, false
}

// cacheMirrorStrategy fetches the page through a public HTML cache keyed by URL.
type cacheMirrorStrategy struct {
	attempter
	cfg Config
}

func (s cacheMirrorStrategy) Method() crawler.Method { return crawler.MethodCacheMirror }

func (s cacheMirrorStrategy) Retrieve(ctx context.Context, target Target) (crawler.Article, bool) {
	mirrorURL := s.cfg.CacheMirrorPrefix + target.URL
	return s.fetchAndExtract(ctx, s.Method(), mirrorURL, defaultHeaders(s.cfg.UserAgents[0]), s.cfg, target)
}

// archiveSnapshotStrategy resolves the closest archived snapshot and fetches it.
type archiveSnapshotStrategy struct {
	attempter
	cfg Config
}

func (s archiveSnapshotStrategy) Method() crawler.Method { return crawler.MethodArchiveSnapshot }

func (s archiveSnapshotStrategy) Retrieve(ctx context.Context, target Target) (crawler.Article, bool) {
	snapshotURL, ok := s.lookup(ctx, target.URL)
	if !ok {
		return crawler.Article{}, false
	}
	return s.fetchAndExtract(ctx, s.Method(), snapshotURL, defaultHeaders(s.cfg.UserAgents[0]), s.cfg, target)
}

func (s archiveSnapshotStrategy) lookup(ctx context.Context, targetURL string) (string, bool) {
	lookupURL := s.cfg.ArchiveLookupURL + "?url=" + url.QueryEscape(targetURL)
	body, ok := s.fetchOK(ctx, s.Method(), lookupURL, nil, s.cfg.ArchiveLookupTimeout)
	if !ok {
		return "", false
	}
	if !gjson.ValidBytes(body) {
		s.logger.Debug("archive lookup returned invalid json", zap.String("url", targetURL))
		return "", false
	}
	snapshot := gjson.GetBytes(body, "archived_snapshots.closest.url").String()
	if snapshot == "" {
		s.logger.Debug("no archived snapshot", zap.String("url", targetURL))
		return "", false
	}
	return snapshot, true
}
