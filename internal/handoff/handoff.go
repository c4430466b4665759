// Package handoff writes the extracted-article artifacts consumed by the
// rewrite stage.
package handoff

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/dadassist/legal-retriever/internal/crawler"
)

// Object names inside a run directory.
const (
	AllArticlesFile = "all_extracted_content.json"
	RewriteInput    = "rewrite_input.json"
	LatestRunFile   = "latest_run.json"
	categorySuffix  = "_articles.json"
	runDirLayout    = "20060102_150405"
	jsonContentType = "application/json"
)

// Writer lays out one run's artifacts in a BlobStore.
type Writer struct {
	store  crawler.BlobStore
	prefix string
	clock  crawler.Clock
}

// NewWriter returns a Writer rooted at prefix.
func NewWriter(store crawler.BlobStore, prefix string, clock crawler.Clock) (*Writer, error) {
	if store == nil {
		return nil, fmt.Errorf("blob store is required")
	}
	if clock == nil {
		return nil, fmt.Errorf("clock is required")
	}
	return &Writer{store: store, prefix: strings.Trim(prefix, "/"), clock: clock}, nil
}

// Batch is the input to Write.
type Batch struct {
	RunID    string
	Query    string
	Articles []crawler.Article
}

// Manifest records where a run's artifacts were written.
type Manifest struct {
	RunID        string            `json:"run_id"`
	ResultsDir   string            `json:"results_dir"`
	AllArticles  string            `json:"all_articles_uri"`
	RewriteInput string            `json:"rewrite_input_uri"`
	Categories   map[string]string `json:"category_uris"`
	Counts       map[string]int    `json:"categories"`
	Total        int               `json:"quality_articles"`
	WrittenAt    time.Time         `json:"written_at"`
}

type rewriteInput struct {
	RunID           string            `json:"run_id"`
	Query           string            `json:"query,omitempty"`
	Articles        []crawler.Article `json:"articles"`
	TotalArticles   int               `json:"total_articles"`
	Categories      map[string]int    `json:"categories"`
	ProcessingDate  time.Time         `json:"processing_date"`
	ReadyForRewrite bool              `json:"ready_for_rewrite"`
}

// Write stores the per-category files, the combined file, the rewrite input
// and finally the latest-run pointer. Articles must already carry a Category.
func (w *Writer) Write(ctx context.Context, batch Batch) (Manifest, error) {
	now := w.clock.Now()
	dir := path.Join(w.prefix, now.Format(runDirLayout))

	groups := make(map[string][]crawler.Article)
	for _, a := range batch.Articles {
		name := a.Category
		if name == "" {
			return Manifest{}, fmt.Errorf("article %s has no category", a.URL)
		}
		groups[name] = append(groups[name], a)
	}

	m := Manifest{
		RunID:      batch.RunID,
		ResultsDir: dir,
		Categories: make(map[string]string, len(groups)),
		Counts:     make(map[string]int, len(groups)),
		Total:      len(batch.Articles),
		WrittenAt:  now,
	}

	names := make([]string, 0, len(groups))
	for name := range groups {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		uri, err := w.putJSON(ctx, path.Join(dir, name+categorySuffix), groups[name])
		if err != nil {
			return Manifest{}, err
		}
		m.Categories[name] = uri
		m.Counts[name] = len(groups[name])
	}

	articles := batch.Articles
	if articles == nil {
		articles = []crawler.Article{}
	}
	uri, err := w.putJSON(ctx, path.Join(dir, AllArticlesFile), articles)
	if err != nil {
		return Manifest{}, err
	}
	m.AllArticles = uri

	uri, err = w.putJSON(ctx, path.Join(dir, RewriteInput), rewriteInput{
		RunID:           batch.RunID,
		Query:           batch.Query,
		Articles:        articles,
		TotalArticles:   len(articles),
		Categories:      m.Counts,
		ProcessingDate:  now,
		ReadyForRewrite: len(articles) > 0,
	})
	if err != nil {
		return Manifest{}, err
	}
	m.RewriteInput = uri

	if _, err := w.putJSON(ctx, path.Join(w.prefix, LatestRunFile), m); err != nil {
		return Manifest{}, err
	}
	return m, nil
}

func (w *Writer) putJSON(ctx context.Context, name string, v any) (string, error) {
	payload, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal %s: %w", name, err)
	}
	uri, err := w.store.PutObject(ctx, name, jsonContentType, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("write %s: %w", name, err)
	}
	return uri, nil
}
