package provisioning

import (
	"context"
	"errors"

	"github.com/wilsonllucena/igreja-conciliada/platform/go/gcp"
	"github.com/wilsonllucena/igreja-conciliada/platform/go/storage"
)

func newGCSBuckets(ctx context.Context, cfg StorageConfig) (*Buckets, error) {
	if cfg.BannersBucket == "" || cfg.LogosBucket == "" {
		return nil, errors.New("gcs storage requires banners and logos bucket names")
	}

	client, err := gcp.NewStorageClient(ctx, cfg.GCP)
	if err != nil {
		return nil, err
	}
	return &Buckets{
		Banners: storage.NewGCSBucket(client, storage.BannersBucket, cfg.BannersBucket),
		Logos:   storage.NewGCSBucket(client, storage.LogosBucket, cfg.LogosBucket),
		close:   client.Close,
	}, nil
}
