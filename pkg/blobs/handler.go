package blobs

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"k8s.io/klog/v2"
)

// maxProgramBytes bounds the size of an uploaded program.
const maxProgramBytes = 1 << 30

// Handler serves programs over HTTP: GET /<key> and PUT /<key>.
// Programs are staged in CacheDir and backed by Store.
type Handler struct {
	CacheDir string
	Store    Blobstore
}

func (s *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	tokens := strings.Split(strings.TrimPrefix(r.URL.Path, "/"), "/")
	if len(tokens) != 1 || !ValidKey(tokens[0]) {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	key := tokens[0]

	switch r.Method {
	case http.MethodGet, http.MethodHead:
		s.serveGET(w, r, key)
	case http.MethodPut:
		s.servePUT(w, r, key)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Handler) serveGET(w http.ResponseWriter, r *http.Request, key string) {
	ctx := r.Context()
	log := klog.FromContext(ctx)

	p, err := s.localPath(ctx, key)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		log.Error(err, "error getting program", "key", key)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	log.Info("serving program", "path", p)
	http.ServeFile(w, r, p)
}

func (s *Handler) servePUT(w http.ResponseWriter, r *http.Request, key string) {
	ctx := r.Context()
	log := klog.FromContext(ctx)

	p := filepath.Join(s.CacheDir, key)
	body := http.MaxBytesReader(w, r.Body, maxProgramBytes)
	n, err := writeToFile(ctx, body, p)
	if err != nil {
		log.Error(err, "error receiving program", "key", key)
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	if s.Store != nil {
		if err := s.Store.Upload(ctx, p, BlobInfo{Key: key}); err != nil {
			log.Error(err, "error storing program", "key", key)
			http.Error(w, "internal server error", http.StatusInternalServerError)
			return
		}
	}

	log.Info("stored program", "key", key, "bytes", n)
	w.WriteHeader(http.StatusCreated)
}

// localPath returns the path of key in CacheDir, downloading it from Store
// first if needed.
func (s *Handler) localPath(ctx context.Context, key string) (string, error) {
	p := filepath.Join(s.CacheDir, key)
	if _, err := os.Stat(p); err == nil {
		return p, nil
	} else if !os.IsNotExist(err) {
		return "", fmt.Errorf("checking %q: %w", p, err)
	}

	if s.Store == nil {
		return "", fmt.Errorf("program %q not found: %w", key, os.ErrNotExist)
	}
	if err := s.Store.Download(ctx, BlobInfo{Key: key}, p); err != nil {
		return "", err
	}
	return p, nil
}
