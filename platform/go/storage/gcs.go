package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
)

// GCSBucket stores objects in a Google Cloud Storage bucket.
type GCSBucket struct {
	client  *storage.Client
	name    string
	bucket  string
	baseURL string
}

// NewGCSBucket maps the logical bucket name onto a physical GCS bucket.
// Objects are served from https://storage.googleapis.com/{bucket}/.
func NewGCSBucket(client *storage.Client, name, bucket string) *GCSBucket {
	if client == nil {
		panic("gcs bucket requires client")
	}
	if bucket == "" {
		panic("gcs bucket requires bucket name")
	}
	return &GCSBucket{
		client:  client,
		name:    name,
		bucket:  bucket,
		baseURL: "https://storage.googleapis.com/" + bucket,
	}
}

func (b *GCSBucket) Name() string { return b.name }

func (b *GCSBucket) Upload(ctx context.Context, objectPath string, r io.Reader, contentType string, upsert bool) error {
	loc, err := ResolveObjectLocation(b.bucket, objectPath)
	if err != nil {
		return err
	}

	obj := b.client.Bucket(loc.Bucket).Object(loc.FullPath)
	if !upsert {
		obj = obj.If(storage.Conditions{DoesNotExist: true})
	}

	w := obj.NewWriter(ctx)
	w.ContentType = contentType
	w.CacheControl = "public, max-age=3600"

	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return fmt.Errorf("write object %s: %w", loc.FullPath, err)
	}
	if err := w.Close(); err != nil {
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) && apiErr.Code == http.StatusPreconditionFailed {
			return ErrObjectExists
		}
		return fmt.Errorf("close object %s: %w", loc.FullPath, err)
	}
	return nil
}

func (b *GCSBucket) Delete(ctx context.Context, objectPath string) error {
	loc, err := ResolveObjectLocation(b.bucket, objectPath)
	if err != nil {
		return err
	}
	if err := b.client.Bucket(loc.Bucket).Object(loc.FullPath).Delete(ctx); err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("delete object %s: %w", loc.FullPath, err)
	}
	return nil
}

func (b *GCSBucket) PublicURL(objectPath string) string {
	return b.baseURL + "/" + strings.TrimPrefix(objectPath, "/")
}

// Check reads the bucket attributes and lists at most one object.
func (b *GCSBucket) Check(ctx context.Context) error {
	bkt := b.client.Bucket(b.bucket)
	if _, err := bkt.Attrs(ctx); err != nil {
		return fmt.Errorf("bucket attrs: %w", err)
	}

	it := bkt.Objects(ctx, &storage.Query{})
	if _, err := it.Next(); err != nil && err != iterator.Done {
		return fmt.Errorf("list bucket: %w", err)
	}
	return nil
}

var _ Bucket = (*GCSBucket)(nil)
