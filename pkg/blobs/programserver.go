package blobs

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"k8s.io/klog/v2"
)

// ProgramServer talks to a program-store over HTTP.
type ProgramServer struct {
	// URL is the base URL of the program-store, typically http://program-store
	URL *url.URL

	// Client is used for requests; http.DefaultClient if nil.
	Client *http.Client
}

var _ Blobstore = &ProgramServer{}

func (l *ProgramServer) client() *http.Client {
	if l.Client != nil {
		return l.Client
	}
	return http.DefaultClient
}

func (l *ProgramServer) Download(ctx context.Context, info BlobInfo, destPath string) error {
	if err := checkKey(info); err != nil {
		return err
	}
	u := l.URL.JoinPath(info.Key).String()

	log := klog.FromContext(ctx)
	log.Info("downloading program", "url", u)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	startedAt := time.Now()

	resp, err := l.client().Do(req)
	if err != nil {
		return fmt.Errorf("doing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		if resp.StatusCode == http.StatusNotFound {
			return fmt.Errorf("program %q not found: %w", info.Key, os.ErrNotExist)
		}
		return fmt.Errorf("unexpected status downloading from %q: %v", u, resp.Status)
	}

	n, err := writeToFile(ctx, resp.Body, destPath)
	if err != nil {
		return fmt.Errorf("downloading from %q: %w", u, err)
	}

	log.Info("downloaded program", "url", u, "bytes", n, "duration", time.Since(startedAt))
	return nil
}

func (l *ProgramServer) Upload(ctx context.Context, sourcePath string, info BlobInfo) error {
	if err := checkKey(info); err != nil {
		return err
	}
	u := l.URL.JoinPath(info.Key).String()

	f, err := os.Open(sourcePath)
	if err != nil {
		return fmt.Errorf("opening source file: %w", err)
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return fmt.Errorf("getting file info for %q: %w", sourcePath, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, u, f)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.ContentLength = stat.Size()
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := l.client().Do(req)
	if err != nil {
		return fmt.Errorf("doing request: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated, http.StatusNoContent:
	default:
		return fmt.Errorf("unexpected status uploading to %q: %v", u, resp.Status)
	}

	klog.FromContext(ctx).Info("uploaded program", "url", u, "bytes", stat.Size())
	return nil
}
