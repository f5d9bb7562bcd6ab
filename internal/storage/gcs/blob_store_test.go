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

	"github.com/JakeFAU/eventwatch/internal/store"
)

func newTestBlobStore(t *testing.T, handler http.Handler) *BlobStore {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := storage.NewClient(context.Background(), option.WithEndpoint(server.URL), option.WithoutAuthentication())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	blobs, err := New(client, Config{Bucket: "test-bucket", Prefix: "/eventwatch/"})
	require.NoError(t, err)
	return blobs
}

func TestNewValidation(t *testing.T) {
	t.Parallel()

	_, err := New(nil, Config{Bucket: "b"})
	assert.Error(t, err)

	client, err := storage.NewClient(context.Background(), option.WithoutAuthentication())
	require.NoError(t, err)
	defer func() { _ = client.Close() }()
	_, err = New(client, Config{})
	assert.Error(t, err)
}

func TestPutObjectUploadsWithPrefix(t *testing.T) {
	t.Parallel()

	payload := `["https://example.com/a"]`
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "/upload/storage/v1/b/test-bucket/o")
		assert.Equal(t, "eventwatch/notified_event_urls.json", r.URL.Query().Get("name"))

		body, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		assert.Contains(t, string(body), payload)

		fmt.Fprintln(w, `{"name": "eventwatch/notified_event_urls.json", "bucket": "test-bucket"}`)
	})
	blobs := newTestBlobStore(t, handler)

	uri, err := blobs.PutObject(context.Background(), "notified_event_urls.json", "application/json", bytes.NewReader([]byte(payload)))
	require.NoError(t, err)
	assert.Equal(t, "gs://test-bucket/eventwatch/notified_event_urls.json", uri)
}

func TestPutObjectServerError(t *testing.T) {
	t.Parallel()

	blobs := newTestBlobStore(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))

	_, err := blobs.PutObject(context.Background(), "snapshot.json", "application/json", strings.NewReader("[]"))
	assert.Error(t, err)
}

func TestGetObjectMissingMapsToNotFound(t *testing.T) {
	t.Parallel()

	blobs := newTestBlobStore(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	_, err := blobs.GetObject(context.Background(), "notified_event_urls.json")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestGetObjectReadsBody(t *testing.T) {
	t.Parallel()

	blobs := newTestBlobStore(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/test-bucket/eventwatch/notified_event_urls.json"), r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `["https://example.com/a"]`)
	}))

	data, err := blobs.GetObject(context.Background(), "notified_event_urls.json")
	require.NoError(t, err)
	assert.JSONEq(t, `["https://example.com/a"]`, string(data))
}
