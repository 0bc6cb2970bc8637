package blobs

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, data, 0644))
	return p
}

func TestValidKey(t *testing.T) {
	for key, want := range map[string]bool{
		"0123abcd":  true,
		"model.lyf": true,
		"":          false,
		".":         false,
		"..":        false,
		".hidden":   false,
		"a/b":       false,
		`a\b`:       false,
		"../escape": false,
	} {
		require.Equal(t, want, ValidKey(key), "key %q", key)
	}
}

func TestLocalBlobstore(t *testing.T) {
	ctx := context.Background()
	store := &LocalBlobstore{Dir: filepath.Join(t.TempDir(), "store")}
	work := t.TempDir()

	err := store.Download(ctx, BlobInfo{Key: "missing"}, filepath.Join(work, "out"))
	require.True(t, errors.Is(err, os.ErrNotExist), "got %v", err)

	src := writeFile(t, work, "src", []byte("first"))
	require.NoError(t, store.Upload(ctx, src, BlobInfo{Key: "abc"}))

	// A second upload under the same key keeps the first program.
	other := writeFile(t, work, "other", []byte("second"))
	require.NoError(t, store.Upload(ctx, other, BlobInfo{Key: "abc"}))

	dest := filepath.Join(work, "dest")
	require.NoError(t, store.Download(ctx, BlobInfo{Key: "abc"}, dest))
	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	require.Equal(t, "first", string(got))

	require.Error(t, store.Upload(ctx, src, BlobInfo{Key: "../abc"}))
}

func TestProgramServer(t *testing.T) {
	ctx := context.Background()
	backing := &LocalBlobstore{Dir: t.TempDir()}
	server := httptest.NewServer(&Handler{CacheDir: t.TempDir(), Store: backing})
	defer server.Close()

	u, err := url.Parse(server.URL)
	require.NoError(t, err)
	client := &ProgramServer{URL: u, Client: server.Client()}
	work := t.TempDir()

	err = client.Download(ctx, BlobInfo{Key: "feed"}, filepath.Join(work, "missing"))
	require.True(t, errors.Is(err, os.ErrNotExist), "got %v", err)

	src := writeFile(t, work, "program", []byte{1, 2, 3, 4})
	require.NoError(t, client.Upload(ctx, src, BlobInfo{Key: "feed"}))

	// The backing store received the program.
	stored, err := os.ReadFile(filepath.Join(backing.Dir, "feed"))
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2, 3, 4}, stored)

	dest := filepath.Join(work, "downloaded")
	require.NoError(t, client.Download(ctx, BlobInfo{Key: "feed"}, dest))
	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2, 3, 4}, got)
}

func TestHandlerFetchesFromStore(t *testing.T) {
	ctx := context.Background()
	backing := &LocalBlobstore{Dir: t.TempDir()}
	src := writeFile(t, t.TempDir(), "program", []byte("cached"))
	require.NoError(t, backing.Upload(ctx, src, BlobInfo{Key: "k1"}))

	cacheDir := t.TempDir()
	handler := &Handler{CacheDir: cacheDir, Store: backing}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/k1", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "cached", rec.Body.String())

	_, err := os.Stat(filepath.Join(cacheDir, "k1"))
	require.NoError(t, err)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/k1", nil))
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/a/b", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
}
