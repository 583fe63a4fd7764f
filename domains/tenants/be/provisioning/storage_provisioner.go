package provisioning

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/wilsonllucena/igreja-conciliada/platform/go/gcp"
	"github.com/wilsonllucena/igreja-conciliada/platform/go/storage"
)

const (
	StorageLocal = "local"
	StorageGCS   = "gcs"
)

// StorageConfig selects the blob backend. For gcs the two physical bucket
// names are required; for local, Dir holds both buckets.
type StorageConfig struct {
	Backend       string
	BannersBucket string
	LogosBucket   string
	Dir           string
	PublicBaseURL string
	GCP           gcp.Config
}

// Buckets are the two logical buckets of the application.
type Buckets struct {
	Banners storage.Bucket
	Logos   storage.Bucket

	close func() error
}

// NewBuckets opens the configured backend.
func NewBuckets(ctx context.Context, cfg StorageConfig) (*Buckets, error) {
	switch cfg.Backend {
	case StorageLocal, "":
		return newLocalBuckets(cfg)
	case StorageGCS:
		return newGCSBuckets(ctx, cfg)
	default:
		return nil, fmt.Errorf("unsupported storage backend %q", cfg.Backend)
	}
}

// Check verifies both buckets concurrently.
func (b *Buckets) Check(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, bucket := range []storage.Bucket{b.Banners, b.Logos} {
		g.Go(func() error {
			if err := bucket.Check(ctx); err != nil {
				return fmt.Errorf("bucket %s: %w", bucket.Name(), err)
			}
			return nil
		})
	}
	return g.Wait()
}

// Close releases the backend client, if any.
func (b *Buckets) Close() error {
	if b == nil || b.close == nil {
		return nil
	}
	return b.close()
}
