// Package crawler defines core types shared across subsystems.
package crawler

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Method identifies which fallback strategy produced an article.
type Method string

// Retrieval methods, in the order the sequencer tries them.
const (
	MethodDirect          Method = "direct"
	MethodAlternateAgent  Method = "alternate_agent"
	MethodCacheMirror     Method = "cache_mirror"
	MethodArchiveSnapshot Method = "archive_snapshot"
)

// ErrInvalidCandidate is returned when a search result cannot be turned into a Candidate.
var ErrInvalidCandidate = errors.New("invalid candidate")

// Candidate is an organic search result that has not yet been evaluated.
type Candidate struct {
	URL         string `json:"url"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Position    int    `json:"position"`
}

// NewCandidate validates the raw search-result fields and returns a Candidate.
func NewCandidate(rawURL, title, description string, position int) (Candidate, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return Candidate{}, fmt.Errorf("%w: url is required", ErrInvalidCandidate)
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return Candidate{}, fmt.Errorf("%w: parse %q: %v", ErrInvalidCandidate, rawURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return Candidate{}, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidCandidate, u.Scheme)
	}
	if u.Hostname() == "" {
		return Candidate{}, fmt.Errorf("%w: missing host in %q", ErrInvalidCandidate, rawURL)
	}
	return Candidate{
		URL:         rawURL,
		Title:       strings.TrimSpace(title),
		Description: strings.TrimSpace(description),
		Position:    position,
	}, nil
}

// Host returns the lowercased hostname of the candidate URL.
func (c Candidate) Host() string {
	return HostOf(c.URL)
}

// Article is the structured plain-text result of a successful retrieval.
// JSON names match the handoff file consumed by the rewrite stage.
type Article struct {
	URL         string    `json:"url"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Body        string    `json:"content"`
	WordCount   int       `json:"wordCount"`
	CharCount   int       `json:"contentLength"`
	Method      Method    `json:"extractionMethod"`
	Category    string    `json:"category,omitempty"`
	SourceRank  int       `json:"originalPosition"`
	ContentHash string    `json:"contentHash,omitempty"`
	ExtractedAt time.Time `json:"extractedAt"`
}

// Empty reports whether the article carries no body text.
func (a Article) Empty() bool {
	return strings.TrimSpace(a.Body) == ""
}

// WithMethod returns a copy tagged with the strategy that produced it.
func (a Article) WithMethod(m Method) Article {
	a.Method = m
	return a
}

// WithCandidate returns a copy carrying the candidate's description and rank.
func (a Article) WithCandidate(c Candidate) Article {
	a.Description = c.Description
	a.SourceRank = c.Position
	return a
}

// WithCategory returns a copy tagged with a topical category.
func (a Article) WithCategory(category string) Article {
	a.Category = category
	return a
}

// FetchRequest captures everything needed to fetch a URL.
type FetchRequest struct {
	URL     string
	Headers http.Header
	Timeout time.Duration
}

// FetchResponse is the result returned by a Fetcher implementation.
type FetchResponse struct {
	URL        string
	StatusCode int
	Headers    http.Header
	Body       []byte
	Duration   time.Duration
}

// OK reports whether the response is a 200 with a body.
func (r FetchResponse) OK() bool {
	return r.StatusCode == http.StatusOK && len(r.Body) > 0
}
