package handoff

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dadassist/legal-retriever/internal/clock"
	"github.com/dadassist/legal-retriever/internal/crawler"
	"github.com/dadassist/legal-retriever/internal/storage/memory"
)

var runTime = clock.Fixed(time.Date(2025, 6, 7, 8, 9, 10, 0, time.UTC))

func TestWriteLaysOutRunDirectory(t *testing.T) {
	t.Parallel()

	store := memory.NewBlobStore()
	w, err := NewWriter(store, "/runs/", runTime)
	require.NoError(t, err)

	articles := []crawler.Article{
		{URL: "https://ag.gov.au/1", Title: "One", Category: "child_support"},
		{URL: "https://ag.gov.au/2", Title: "Two", Category: "general_legal"},
		{URL: "https://ag.gov.au/3", Title: "Three", Category: "child_support"},
	}
	m, err := w.Write(context.Background(), Batch{RunID: "run-1", Query: "child support", Articles: articles})
	require.NoError(t, err)

	assert.Equal(t, "runs/20250607_080910", m.ResultsDir)
	assert.Equal(t, 3, m.Total)
	assert.Equal(t, map[string]int{"child_support": 2, "general_legal": 1}, m.Counts)
	assert.Equal(t, "memory://runs/20250607_080910/all_extracted_content.json", m.AllArticles)
	assert.Equal(t, []string{
		"runs/20250607_080910/all_extracted_content.json",
		"runs/20250607_080910/child_support_articles.json",
		"runs/20250607_080910/general_legal_articles.json",
		"runs/20250607_080910/rewrite_input.json",
		"runs/latest_run.json",
	}, store.Paths())

	raw, ok := store.Get("runs/20250607_080910/child_support_articles.json")
	require.True(t, ok)
	var group []crawler.Article
	require.NoError(t, json.Unmarshal(raw, &group))
	require.Len(t, group, 2)
	assert.Equal(t, "https://ag.gov.au/1", group[0].URL)
	assert.Equal(t, "https://ag.gov.au/3", group[1].URL)

	raw, ok = store.Get("runs/20250607_080910/rewrite_input.json")
	require.True(t, ok)
	var input rewriteInput
	require.NoError(t, json.Unmarshal(raw, &input))
	assert.Equal(t, "run-1", input.RunID)
	assert.Equal(t, 3, input.TotalArticles)
	assert.True(t, input.ReadyForRewrite)
	assert.Equal(t, "application/json", store.ContentType("runs/latest_run.json"))
}

func TestWriteEmptyBatch(t *testing.T) {
	t.Parallel()

	store := memory.NewBlobStore()
	w, err := NewWriter(store, "", runTime)
	require.NoError(t, err)

	m, err := w.Write(context.Background(), Batch{RunID: "run-2"})
	require.NoError(t, err)
	assert.Empty(t, m.Categories)

	raw, ok := store.Get("20250607_080910/all_extracted_content.json")
	require.True(t, ok)
	assert.JSONEq(t, "[]", string(raw))
}

func TestWriteRejectsUncategorised(t *testing.T) {
	t.Parallel()

	w, err := NewWriter(memory.NewBlobStore(), "runs", runTime)
	require.NoError(t, err)
	_, err = w.Write(context.Background(), Batch{Articles: []crawler.Article{{URL: "https://ag.gov.au"}}})
	require.Error(t, err)
}

type failingStore struct{ err error }

func (f failingStore) PutObject(context.Context, string, string, io.Reader) (string, error) {
	return "", f.err
}

func TestWritePropagatesStoreErrors(t *testing.T) {
	t.Parallel()

	boom := errors.New("disk full")
	w, err := NewWriter(failingStore{err: boom}, "runs", runTime)
	require.NoError(t, err)
	_, err = w.Write(context.Background(), Batch{Articles: []crawler.Article{{URL: "u", Category: "general_legal"}}})
	require.ErrorIs(t, err, boom)
}

func TestNewWriterValidation(t *testing.T) {
	t.Parallel()

	_, err := NewWriter(nil, "runs", runTime)
	require.Error(t, err)
	_, err = NewWriter(memory.NewBlobStore(), "runs", nil)
	require.Error(t, err)
}
