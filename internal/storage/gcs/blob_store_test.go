package gcs

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"cloud.google.com/go/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
)

func newTestStore(t *testing.T, handler http.Handler) *BlobStore {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := storage.NewClient(context.Background(),
		option.WithEndpoint(server.URL),
		option.WithoutAuthentication(),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	store, err := New(client, Config{Bucket: "handoff", Metadata: map[string]string{"run_id": "r1"}})
	require.NoError(t, err)
	return store
}

func TestNewValidates(t *testing.T) {
	_, err := New(nil, Config{Bucket: "b"})
	assert.Error(t, err)

	client, err := storage.NewClient(context.Background(), option.WithoutAuthentication())
	require.NoError(t, err)
	defer func() { _ = client.Close() }()
	_, err = New(client, Config{Bucket: " "})
	assert.Error(t, err)
}

func TestPutObject(t *testing.T) {
	const object = "runs/20250101_000000/all_extracted_content.json"
	payload := []byte(`[{"url":"https://ag.gov.au"}]`)

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "/b/handoff/o")
		assert.Equal(t, object, r.URL.Query().Get("name"))

		body, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		assert.Contains(t, string(body), string(payload))
		assert.Contains(t, string(body), `"run_id":"r1"`)

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"bucket":"handoff","name":%q}`, object)
	})

	store := newTestStore(t, handler)
	uri, err := store.PutObject(context.Background(), "/"+object, "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	assert.Equal(t, "gs://handoff/"+object, uri)
}

func TestPutObjectServerError(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})

	store := newTestStore(t, handler)
	_, err := store.PutObject(context.Background(), "x.json", "", strings.NewReader("{}"))
	assert.Error(t, err)
}

func TestPutObjectEmptyPath(t *testing.T) {
	store := newTestStore(t, http.NotFoundHandler())
	_, err := store.PutObject(context.Background(), "  ", "", strings.NewReader("{}"))
	assert.Error(t, err)
}

func TestCheckBucket(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/b/handoff") {
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{"name":"handoff"}`)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	})

	store := newTestStore(t, handler)
	require.NoError(t, store.CheckBucket(context.Background()))

	missing := newTestStore(t, http.NotFoundHandler())
	require.Error(t, missing.CheckBucket(context.Background()))
}
