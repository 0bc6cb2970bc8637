package blobs

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"k8s.io/klog/v2"
)

// LocalBlobstore keeps programs as files in Dir.
type LocalBlobstore struct {
	Dir string
}

var _ Blobstore = &LocalBlobstore{}

func (l *LocalBlobstore) Download(ctx context.Context, info BlobInfo, destPath string) error {
	if err := checkKey(info); err != nil {
		return err
	}
	src, err := os.Open(filepath.Join(l.Dir, info.Key))
	if err != nil {
		// os.ErrNotExist is preserved through the wrap.
		return fmt.Errorf("opening program %q: %w", info.Key, err)
	}
	defer src.Close()

	if _, err := writeToFile(ctx, src, destPath); err != nil {
		return fmt.Errorf("copying program %q: %w", info.Key, err)
	}
	return nil
}

func (l *LocalBlobstore) Upload(ctx context.Context, sourcePath string, info BlobInfo) error {
	if err := checkKey(info); err != nil {
		return err
	}
	destPath := filepath.Join(l.Dir, info.Key)
	if _, err := os.Stat(destPath); err == nil {
		klog.FromContext(ctx).V(2).Info("program already stored", "path", destPath)
		return nil
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("checking %q: %w", destPath, err)
	}

	if err := os.MkdirAll(l.Dir, 0755); err != nil {
		return fmt.Errorf("creating directory %q: %w", l.Dir, err)
	}

	src, err := os.Open(sourcePath)
	if err != nil {
		return fmt.Errorf("opening source file: %w", err)
	}
	defer src.Close()

	if _, err := writeToFile(ctx, src, destPath); err != nil {
		return fmt.Errorf("storing program %q: %w", info.Key, err)
	}
	return nil
}
