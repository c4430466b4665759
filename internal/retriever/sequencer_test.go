package retriever

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dadassist/legal-retriever/internal/clock"
	"github.com/dadassist/legal-retriever/internal/crawler"
	"github.com/dadassist/legal-retriever/internal/extractor"
)

const targetURL = "https://legalaid.vic.gov.au/parenting-orders"

type fakeResult struct {
	status int
	body   string
	err    error
}

type fakeFetcher struct {
	mu        sync.Mutex
	responses map[string]fakeResult
	requests  []crawler.FetchRequest
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{responses: make(map[string]fakeResult)}
}

func (f *fakeFetcher) on(rawURL string, status int, body string) *fakeFetcher {
	f.responses[rawURL] = fakeResult{status: status, body: body}
	return f
}

func (f *fakeFetcher) fail(rawURL string, err error) *fakeFetcher {
	f.responses[rawURL] = fakeResult{err: err}
	return f
}

func (f *fakeFetcher) Fetch(_ context.Context, req crawler.FetchRequest) (crawler.FetchResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	res, ok := f.responses[req.URL]
	if !ok {
		return crawler.FetchResponse{URL: req.URL, StatusCode: http.StatusNotFound}, nil
	}
	if res.err != nil {
		return crawler.FetchResponse{}, res.err
	}
	return crawler.FetchResponse{URL: req.URL, StatusCode: res.status, Body: []byte(res.body)}, nil
}

func (f *fakeFetcher) urls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.requests))
	for _, r := range f.requests {
		out = append(out, r.URL)
	}
	return out
}

type recordingObserver struct {
	attempts []string
}

func (o *recordingObserver) ObserveAttempt(method crawler.Method, success bool) {
	result := "fail"
	if success {
		result = "ok"
	}
	o.attempts = append(o.attempts, string(method)+":"+result)
}

func articleHTML(text string) string {
	return "<html><head><title>Parenting Orders</title></head><body><nav>menu</nav><article>" +
		text + "</article></body></html>"
}

func longText() string {
	return strings.Repeat("Parenting orders set out arrangements for children after separation. ", 12)
}

func testConfig() Config {
	return Config{AgentPause: -1}
}

func newTestSequencer(f crawler.Fetcher, obs Observer) *Sequencer {
	ext := extractor.New(extractor.Config{}, clock.Fixed(time.Unix(1700000000, 0).UTC()))
	return New(testConfig(), f, ext, obs, zap.NewNop())
}

func lookupURL(target string) string {
	return DefaultArchiveLookupURL + "?url=" + url.QueryEscape(target)
}

func TestSequencerDirectSuccessStopsEarly(t *testing.T) {
	t.Parallel()

	f := newFakeFetcher().on(targetURL, http.StatusOK, articleHTML(longText()))
	obs := &recordingObserver{}

	article, ok := newTestSequencer(f, obs).Retrieve(context.Background(), Target{URL: targetURL})
	require.True(t, ok)
	require.Equal(t, crawler.MethodDirect, article.Method)
	require.Equal(t, strings.TrimSpace(longText()), article.Body)
	require.Equal(t, "Parenting Orders", article.Title)
	require.Equal(t, []string{targetURL}, f.urls())
	require.Equal(t, []string{"direct:ok"}, obs.attempts)

	require.Equal(t, DefaultUserAgents[0], f.requests[0].Headers.Get("User-Agent"))
	require.Equal(t, DefaultDirectTimeout, f.requests[0].Timeout)
}

func TestSequencerFallsThroughToArchive(t *testing.T) {
	t.Parallel()

	snapshot := "http://web.archive.org/web/20240101000000/" + targetURL
	f := newFakeFetcher().
		on(targetURL, http.StatusForbidden, "blocked").
		on(DefaultCacheMirrorPrefix+targetURL, http.StatusNotFound, "").
		on(lookupURL(targetURL), http.StatusOK,
			`{"url":"x","archived_snapshots":{"closest":{"status":"200","available":true,"url":"`+snapshot+`"}}}`).
		on(snapshot, http.StatusOK, articleHTML(longText()))
	obs := &recordingObserver{}

	article, ok := newTestSequencer(f, obs).Retrieve(context.Background(), Target{URL: targetURL, TitleHint: "Hint"})
	require.True(t, ok)
	require.Equal(t, crawler.MethodArchiveSnapshot, article.Method)
	require.Equal(t, targetURL, article.URL)
	require.Equal(t, "Hint", article.Title)
	require.Equal(t, []string{
		targetURL,
		targetURL,
		targetURL,
		DefaultCacheMirrorPrefix + targetURL,
		lookupURL(targetURL),
		snapshot,
	}, f.urls())
	require.Equal(t, []string{
		"direct:fail",
		"alternate_agent:fail",
		"cache_mirror:fail",
		"archive_snapshot:ok",
	}, obs.attempts)
	require.Equal(t, DefaultArchiveLookupTimeout, f.requests[4].Timeout)
}

func TestSequencerEmptyBodyCountsAsFailure(t *testing.T) {
	t.Parallel()

	f := newFakeFetcher().
		on(targetURL, http.StatusOK, "").
		on(DefaultCacheMirrorPrefix+targetURL, http.StatusOK, articleHTML(longText()))
	obs := &recordingObserver{}

	article, ok := newTestSequencer(f, obs).Retrieve(context.Background(), Target{URL: targetURL})
	require.True(t, ok)
	require.Equal(t, crawler.MethodCacheMirror, article.Method)
	require.Equal(t, []string{
		"direct:fail",
		"alternate_agent:fail",
		"cache_mirror:ok",
	}, obs.attempts)
}

func TestSequencerAllStrategiesFail(t *testing.T) {
	t.Parallel()

	f := newFakeFetcher().
		fail(targetURL, errors.New("connection reset")).
		on(DefaultCacheMirrorPrefix+targetURL, http.StatusOK, "<html><body><nav>only nav</nav></body></html>").
		on(lookupURL(targetURL), http.StatusOK, `{"url":"x","archived_snapshots":{}}`)

	article, ok := newTestSequencer(f, nil).Retrieve(context.Background(), Target{URL: targetURL})
	require.False(t, ok)
	require.Equal(t, crawler.Article{}, article)
	require.Len(t, f.urls(), 5)
}

func TestSequencerArchiveInvalidJSON(t *testing.T) {
	t.Parallel()

	f := newFakeFetcher().on(lookupURL(targetURL), http.StatusOK, "<html>not json</html>")

	_, ok := newTestSequencer(f, nil).Retrieve(context.Background(), Target{URL: targetURL})
	require.False(t, ok)
	require.Len(t, f.urls(), 5)
}

func TestSequencerCanceledContext(t *testing.T) {
	t.Parallel()

	f := newFakeFetcher().on(targetURL, http.StatusOK, articleHTML(longText()))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, ok := newTestSequencer(f, nil).Retrieve(ctx, Target{URL: targetURL})
	require.False(t, ok)
	require.Empty(t, f.urls())
}

func TestSequencerMethodsOrder(t *testing.T) {
	t.Parallel()

	require.Equal(t, []crawler.Method{
		crawler.MethodDirect,
		crawler.MethodAlternateAgent,
		crawler.MethodCacheMirror,
		crawler.MethodArchiveSnapshot,
	}, newTestSequencer(newFakeFetcher(), nil).Methods())
}

func TestAlternateAgentRotatesWithPause(t *testing.T) {
	t.Parallel()

	f := &agentFetcher{okAgent: "agent-c", body: articleHTML(longText())}
	pauses := 0
	cfg := Config{UserAgents: []string{"agent-a", "agent-b", "agent-c"}}.withDefaults()
	ext := extractor.New(extractor.Config{}, clock.Fixed(time.Unix(0, 0)))
	s := alternateAgentStrategy{
		attempter: attempter{fetcher: f, extractor: ext, logger: zap.NewNop()},
		cfg:       cfg,
		pause: func(context.Context) error {
			pauses++
			return nil
		},
	}

	article, ok := s.Retrieve(context.Background(), Target{URL: targetURL})
	require.True(t, ok)
	require.False(t, article.Empty())
	require.Equal(t, []string{"agent-b", "agent-c"}, f.agents)
	require.Equal(t, 1, pauses)
	require.Equal(t, "https://www.google.com/", f.headers[0].Get("Referer"))
	require.Equal(t, "en-US,en;q=0.9", f.headers[0].Get("Accept-Language"))
}

func TestAlternateAgentStopsWhenPauseCanceled(t *testing.T) {
	t.Parallel()

	f := &agentFetcher{okAgent: "never"}
	cfg := Config{UserAgents: []string{"a", "b", "c", "d"}}.withDefaults()
	s := alternateAgentStrategy{
		attempter: attempter{fetcher: f, extractor: extractor.New(extractor.Config{}, clock.New()), logger: zap.NewNop()},
		cfg:       cfg,
		pause:     func(context.Context) error { return context.Canceled },
	}

	_, ok := s.Retrieve(context.Background(), Target{URL: targetURL})
	require.False(t, ok)
	require.Equal(t, []string{"b"}, f.agents)
}

func TestSleepWithContext(t *testing.T) {
	t.Parallel()

	require.NoError(t, sleepWithContext(context.Background(), 0))
	require.NoError(t, sleepWithContext(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, sleepWithContext(ctx, time.Hour), context.Canceled)
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	require.NoError(t, Config{}.Validate())
	require.Error(t, Config{UserAgents: []string{"ok", " "}}.Validate())
	require.Error(t, Config{ArchiveLookupURL: "not a url"}.Validate())
	require.Error(t, Config{CacheMirrorPrefix: "ftp://mirror/"}.Validate())

	cfg := Config{AgentPause: -1}.withDefaults()
	require.Zero(t, cfg.AgentPause)
	require.Equal(t, DefaultAgentPause, Config{}.withDefaults().AgentPause)
}

type agentFetcher struct {
	okAgent string
	body    string
	agents  []string
	headers []http.Header
}

func (f *agentFetcher) Fetch(_ context.Context, req crawler.FetchRequest) (crawler.FetchResponse, error) {
	ua := req.Headers.Get("User-Agent")
	f.agents = append(f.agents, ua)
	f.headers = append(f.headers, req.Headers)
	if ua == f.okAgent {
		return crawler.FetchResponse{StatusCode: http.StatusOK, Body: []byte(f.body)}, nil
	}
	return crawler.FetchResponse{StatusCode: http.StatusForbidden}, nil
}
