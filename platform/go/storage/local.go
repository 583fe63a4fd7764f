package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// LocalBucket stores objects under {root}/{name}. The API serves the root at
// /files, so public URLs are {publicBaseURL}/files/{name}/{path}.
type LocalBucket struct {
	root          string
	name          string
	publicBaseURL string
}

func NewLocalBucket(root, name, publicBaseURL string) *LocalBucket {
	if root == "" {
		panic("local bucket requires root path")
	}
	if name == "" {
		panic("local bucket requires name")
	}
	return &LocalBucket{root: root, name: name, publicBaseURL: strings.TrimSuffix(publicBaseURL, "/")}
}

func (b *LocalBucket) Name() string { return b.name }

func (b *LocalBucket) Upload(_ context.Context, objectPath string, r io.Reader, _ string, upsert bool) error {
	full, err := b.resolve(objectPath)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return fmt.Errorf("create object dir: %w", err)
	}

	if !upsert {
		if _, err := os.Stat(full); err == nil {
			return ErrObjectExists
		}
	}

	tmp, err := os.CreateTemp(filepath.Dir(full), ".upload-*")
	if err != nil {
		return fmt.Errorf("create temp object: %w", err)
	}
	defer os.Remove(tmp.Name()) // nolint:errcheck

	if _, err := io.Copy(tmp, r); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write object: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close object: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("chmod object: %w", err)
	}
	return os.Rename(tmp.Name(), full)
}

func (b *LocalBucket) Delete(_ context.Context, objectPath string) error {
	full, err := b.resolve(objectPath)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete object: %w", err)
	}
	return nil
}

func (b *LocalBucket) PublicURL(objectPath string) string {
	return fmt.Sprintf("%s/files/%s/%s", b.publicBaseURL, b.name, strings.TrimPrefix(objectPath, "/"))
}

// Check creates the bucket directory if needed; this is idempotent for local dev.
func (b *LocalBucket) Check(context.Context) error {
	if err := os.MkdirAll(filepath.Join(b.root, b.name), 0o755); err != nil {
		return fmt.Errorf("create bucket path: %w", err)
	}
	return nil
}

func (b *LocalBucket) resolve(objectPath string) (string, error) {
	loc, err := ResolveObjectLocation(b.name, objectPath)
	if err != nil {
		return "", err
	}
	return filepath.Join(b.root, loc.Bucket, filepath.FromSlash(loc.FullPath)), nil
}

var _ Bucket = (*LocalBucket)(nil)
