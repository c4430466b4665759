package local_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dadassist/legal-retriever/internal/storage/local"
)

func TestNew(t *testing.T) {
	t.Run("CreatesMissingDir", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "downloads")
		store, err := local.New(local.Config{Dir: dir})
		require.NoError(t, err)
		assert.NotNil(t, store)
		assert.DirExists(t, dir)
	})

	t.Run("MissingDir", func(t *testing.T) {
		_, err := local.New(local.Config{Dir: "  "})
		assert.Error(t, err)
	})

	t.Run("PathIsFile", func(t *testing.T) {
		file := filepath.Join(t.TempDir(), "file")
		require.NoError(t, os.WriteFile(file, []byte("x"), 0o600))
		_, err := local.New(local.Config{Dir: file})
		assert.Error(t, err)
	})
}

func TestPutObject(t *testing.T) {
	dir := t.TempDir()
	store, err := local.New(local.Config{Dir: dir})
	require.NoError(t, err)
	ctx := context.Background()

	t.Run("NestedPath", func(t *testing.T) {
		path := "runs/20250101_000000/all_extracted_content.json"
		data := []byte(`[{"url":"https://ag.gov.au"}]`)
		uri, err := store.PutObject(ctx, path, "application/json", bytes.NewReader(data))
		require.NoError(t, err)
		assert.Equal(t, "file://"+filepath.Join(dir, path), uri)

		// #nosec G304 -- test reads from the controlled temp directory.
		got, err := os.ReadFile(filepath.Join(dir, path))
		require.NoError(t, err)
		assert.Equal(t, data, got)

		entries, err := os.ReadDir(filepath.Dir(filepath.Join(dir, path)))
		require.NoError(t, err)
		assert.Len(t, entries, 1)
	})

	t.Run("Overwrite", func(t *testing.T) {
		_, err := store.PutObject(ctx, "a.json", "", bytes.NewReader([]byte("one")))
		require.NoError(t, err)
		_, err = store.PutObject(ctx, "a.json", "", bytes.NewReader([]byte("two")))
		require.NoError(t, err)
		// #nosec G304 -- test reads from the controlled temp directory.
		got, err := os.ReadFile(filepath.Join(dir, "a.json"))
		require.NoError(t, err)
		assert.Equal(t, "two", string(got))
	})

	t.Run("EmptyPath", func(t *testing.T) {
		_, err := store.PutObject(ctx, "", "text/plain", bytes.NewReader(nil))
		assert.Error(t, err)
	})

	t.Run("Traversal", func(t *testing.T) {
		_, err := store.PutObject(ctx, "../outside.json", "", bytes.NewReader(nil))
		assert.Error(t, err)
	})

	t.Run("ReaderError", func(t *testing.T) {
		_, err := store.PutObject(ctx, "broken.json", "", errReader{})
		assert.Error(t, err)
		assert.NoFileExists(t, filepath.Join(dir, "broken.json"))
	})

	t.Run("CanceledContext", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := store.PutObject(cctx, "late.json", "", bytes.NewReader(nil))
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestPutObjectRelativeRoot(t *testing.T) {
	t.Chdir(t.TempDir())
	dir, err := os.Getwd()
	require.NoError(t, err)
	ctx := context.Background()

	for _, root := range []string{".", "./"} {
		t.Run(root, func(t *testing.T) {
			store, err := local.New(local.Config{Dir: root})
			require.NoError(t, err)

			uri, err := store.PutObject(ctx, "runs/x.json", "application/json", bytes.NewReader([]byte("[]")))
			require.NoError(t, err)
			assert.Equal(t, "file://"+filepath.Join(dir, "runs", "x.json"), uri)
			assert.FileExists(t, filepath.Join(dir, "runs", "x.json"))

			_, err = store.PutObject(ctx, "../x.json", "", bytes.NewReader(nil))
			assert.Error(t, err)
		})
	}
}

type errReader struct{}

func (errReader) Read([]byte) (int, error) { return 0, errors.New("boom") }
