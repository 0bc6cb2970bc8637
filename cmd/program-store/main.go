package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"k8s.io/examples/AI/lyfnpu/pkg/blobs"
	"k8s.io/klog/v2"
)

func main() {
	if err := run(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	log := klog.FromContext(ctx)

	listen := ":8080"
	cacheDir := os.Getenv("CACHE_DIR")
	if cacheDir == "" {
		// We expect CACHE_DIR to be set when running on kubernetes, but default sensibly for local dev
		cacheDir = "~/.cache/program-store/programs"
	}
	cacheBucket := os.Getenv("CACHE_BUCKET")
	storeDir := ""

	klog.InitFlags(nil)
	flag.StringVar(&listen, "listen", listen, "listen address")
	flag.StringVar(&cacheDir, "cache-dir", cacheDir, "cache directory")
	flag.StringVar(&cacheBucket, "cache-bucket", cacheBucket, "GCS bucket holding programs (gs://<bucketName>)")
	flag.StringVar(&storeDir, "store-dir", storeDir, "directory holding programs, used when no bucket is set")
	flag.Parse()

	cacheDir, err := expandHome(cacheDir)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(cacheDir, 0755); err != nil {
		return fmt.Errorf("creating cache directory %q: %w", cacheDir, err)
	}

	var blobstore blobs.Blobstore
	switch {
	case strings.HasPrefix(cacheBucket, "gs://"):
		bucket, prefix, _ := strings.Cut(strings.TrimPrefix(cacheBucket, "gs://"), "/")
		log.Info("using GCS program store", "bucket", bucket, "prefix", prefix)
		blobstore = &blobs.GCSBlobstore{
			Bucket: bucket,
			Prefix: prefix,
		}
	case cacheBucket != "":
		return fmt.Errorf("CACHE_BUCKET must be a GCS bucket URL (gs://<bucketName>)")
	case storeDir != "":
		storeDir, err = expandHome(storeDir)
		if err != nil {
			return err
		}
		log.Info("using local program store", "dir", storeDir)
		blobstore = &blobs.LocalBlobstore{Dir: storeDir}
	default:
		return fmt.Errorf("must specify CACHE_BUCKET env var or --store-dir")
	}

	s := &blobs.Handler{
		CacheDir: cacheDir,
		Store:    blobstore,
	}

	log.Info("serving programs", "listen", listen)
	if err := http.ListenAndServe(listen, s); err != nil {
		return fmt.Errorf("serving on %q: %w", listen, err)
	}

	return nil
}

func expandHome(p string) (string, error) {
	if !strings.HasPrefix(p, "~/") {
		return p, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(homeDir, strings.TrimPrefix(p, "~/")), nil
}
