package provisioning

import (
	"errors"
	"net/http"
	"strings"

	"github.com/wilsonllucena/igreja-conciliada/platform/go/storage"
)

func newLocalBuckets(cfg StorageConfig) (*Buckets, error) {
	if strings.TrimSpace(cfg.Dir) == "" {
		return nil, errors.New("local storage requires a directory")
	}
	return &Buckets{
		Banners: storage.NewLocalBucket(cfg.Dir, storage.BannersBucket, cfg.PublicBaseURL),
		Logos:   storage.NewLocalBucket(cfg.Dir, storage.LogosBucket, cfg.PublicBaseURL),
	}, nil
}

// FileServer serves a local storage directory. Mount it under /files/.
func FileServer(dir string) http.Handler {
	return http.StripPrefix("/files/", http.FileServer(http.Dir(dir)))
}
