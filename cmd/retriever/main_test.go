package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dadassist/legal-retriever/internal/config"
	"github.com/dadassist/legal-retriever/internal/exclusion"
)

func TestReadCandidates(t *testing.T) {
	t.Parallel()

	_, err := readCandidates("", nil)
	require.Error(t, err)

	data, err := readCandidates("-", strings.NewReader(`[]`))
	require.NoError(t, err)
	assert.Equal(t, "[]", string(data))

	path := filepath.Join(t.TempDir(), "results.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"url":"https://ag.gov.au"}]`), 0o600))
	data, err = readCandidates(path, nil)
	require.NoError(t, err)
	assert.Contains(t, string(data), "ag.gov.au")

	_, err = readCandidates(filepath.Join(t.TempDir(), "missing.json"), nil)
	require.Error(t, err)
}

func TestRunWithOnlyRejectedCandidates(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Output.Dir = filepath.Join(dir, "out")
	cfg.Exclusion.Path = filepath.Join(dir, "scraped_urls.json")
	cfg.Rotation.StatePath = filepath.Join(dir, "query_state.json")

	results := filepath.Join(dir, "results.json")
	require.NoError(t, os.WriteFile(results, []byte(`[
		{"title": "Ten quick dinner recipes", "url": "https://example.com/recipes", "description": "Cook tonight"}
	]`), 0o600))

	err = run(context.Background(), cfg, zap.NewNop(), results, "custody")
	require.ErrorIs(t, err, errNoArticles)
	assert.Equal(t, exitNoArticles, exitCode(zap.NewNop(), err))

	assert.NoFileExists(t, filepath.Join(cfg.Output.Dir, "runs", "latest_run.json"))
	set, err := exclusion.Load(exclusion.Options{Path: cfg.Exclusion.Path})
	require.NoError(t, err)
	assert.Equal(t, 0, set.Len())
}

func TestExitCode(t *testing.T) {
	t.Parallel()

	logger := zap.NewNop()
	assert.Equal(t, exitOK, exitCode(logger, nil))
	assert.Equal(t, exitNoArticles, exitCode(logger, fmt.Errorf("batch: %w", errNoArticles)))
	assert.Equal(t, exitFailure, exitCode(logger, errors.New("write handoff: bucket gone")))
}
