package driver

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"k8s.io/examples/AI/lyfnpu/pkg/blobs"
	"k8s.io/examples/AI/lyfnpu/pkg/core"
	"k8s.io/klog/v2"
)

// ProgramCache persists serialized programs by cache token. Programs are
// kept as files in Dir; Store, if set, shares them between hosts.
type ProgramCache struct {
	Dir   string
	Store blobs.Blobstore
}

// Load returns the program stored under token. found is false if no
// program is stored under that token, locally or in Store.
func (c *ProgramCache) Load(ctx context.Context, token string) (buffer []byte, found bool, err error) {
	if !blobs.ValidKey(token) {
		return nil, false, status.Errorf(codes.InvalidArgument, "invalid cache token %q", token)
	}
	log := klog.FromContext(ctx)

	p := filepath.Join(c.Dir, token)
	b, err := os.ReadFile(p)
	if err == nil {
		log.Info("found program in local cache", "path", p)
		return b, true, nil
	}
	if !os.IsNotExist(err) {
		return nil, false, fmt.Errorf("reading %q: %w", p, err)
	}

	if c.Store == nil {
		return nil, false, nil
	}
	if err := os.MkdirAll(c.Dir, 0755); err != nil {
		return nil, false, fmt.Errorf("creating cache directory %q: %w", c.Dir, err)
	}
	if err := c.Store.Download(ctx, blobs.BlobInfo{Key: token}, p); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("downloading program %q: %w", token, err)
	}

	b, err = os.ReadFile(p)
	if err != nil {
		return nil, false, fmt.Errorf("reading %q: %w", p, err)
	}
	return b, true, nil
}

// Save stores buffer under token in Dir and then in Store.
func (c *ProgramCache) Save(ctx context.Context, token string, buffer []byte) error {
	if !blobs.ValidKey(token) {
		return status.Errorf(codes.InvalidArgument, "invalid cache token %q", token)
	}
	if len(buffer) == 0 {
		return status.Errorf(codes.InvalidArgument, "refusing to cache an empty program")
	}
	if err := os.MkdirAll(c.Dir, 0755); err != nil {
		return fmt.Errorf("creating cache directory %q: %w", c.Dir, err)
	}

	p := filepath.Join(c.Dir, token)
	tmp, err := os.CreateTemp(c.Dir, ".program")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	_, writeErr := tmp.Write(buffer)
	closeErr := tmp.Close()
	if err := errors.Join(writeErr, closeErr); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("writing program: %w", err)
	}
	if err := os.Rename(tmp.Name(), p); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("renaming temp file: %w", err)
	}
	klog.FromContext(ctx).Info("saved program to local cache", "path", p, "bytes", len(buffer))

	if c.Store != nil {
		if err := c.Store.Upload(ctx, p, blobs.BlobInfo{Key: token}); err != nil {
			return fmt.Errorf("uploading program %q: %w", token, err)
		}
	}
	return nil
}

// CreateProgram creates a program for model, loading it from the cache when
// a program is stored under the model's fingerprint. A stored program that
// fails to load is replaced by converting model again; a freshly converted
// program is saved. Failures to read or write the cache are logged and
// otherwise ignored.
func (c *ProgramCache) CreateProgram(ctx context.Context, dc *Context, model *core.Model) (*Program, error) {
	if model == nil {
		return nil, status.Errorf(codes.InvalidArgument, "model is required")
	}
	log := klog.FromContext(ctx)
	token := core.Fingerprint(model)

	buffer, found, err := c.Load(ctx, token)
	if err != nil {
		log.Error(err, "ignoring program cache", "token", token)
	}
	if found {
		program, err := CreateProgram(ctx, dc, model, &core.Cache{Token: token, Buffer: buffer})
		if err == nil {
			return program, nil
		}
		log.Error(err, "discarding cached program", "token", token)
	}

	cache := &core.Cache{Token: token}
	program, err := CreateProgram(ctx, dc, model, cache)
	if err != nil {
		return nil, err
	}
	if err := c.Save(ctx, token, cache.Buffer); err != nil {
		log.Error(err, "saving program to cache", "token", token)
	}
	return program, nil
}
