package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/wilsonllucena/igreja-conciliada/platform/go/gcp"
	"github.com/wilsonllucena/igreja-conciliada/platform/go/telemetry"
)

type config struct {
	Port            string        `env:"PORT" envDefault:"8080"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	RequestTimeout  time.Duration `env:"REQUEST_TIMEOUT" envDefault:"15s"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
	CORSOrigins     []string      `env:"CORS_ALLOWED_ORIGINS" envSeparator:","`

	DatabaseURL      string `env:"DATABASE_URL,required"`
	MigrateOnStart   bool   `env:"DB_MIGRATE_ON_START" envDefault:"false"`
	DatabaseMaxConns int32  `env:"DB_MAX_CONNS" envDefault:"10"`

	AuthProvider             string        `env:"AUTH_PROVIDER" envDefault:"local"` // local | firebase
	AuthJWTSecret            string        `env:"AUTH_JWT_SECRET"`
	AuthTokenTTL             time.Duration `env:"AUTH_TOKEN_TTL" envDefault:"1h"`
	RequireEmailConfirmation bool          `env:"AUTH_REQUIRE_EMAIL_CONFIRMATION" envDefault:"false"`
	FirebaseAPIKey           string        `env:"FIREBASE_API_KEY"`
	GCP                      gcp.Config

	StorageBackend       string `env:"STORAGE_BACKEND" envDefault:"local"` // gcs | local
	StorageBannersBucket string `env:"STORAGE_BANNERS_BUCKET"`
	StorageLogosBucket   string `env:"STORAGE_LOGOS_BUCKET"`
	StorageLocalDir      string `env:"STORAGE_LOCAL_DIR" envDefault:"./.data/storage"`

	PublicBaseURL   string `env:"PUBLIC_BASE_URL" envDefault:"http://localhost:8080"`
	NATSURL         string `env:"NATS_URL"`
	NATSSubject     string `env:"NATS_TENANT_UPDATES_SUBJECT" envDefault:"igreja.tenants.updated"`
	Telemetry       telemetry.Config
	MetricsPrefix   string        `env:"METRICS_PREFIX" envDefault:"igreja"`
	ProfileCacheTTL time.Duration `env:"PROFILE_CACHE_TTL" envDefault:"5m"`
	ProfileCacheMax int64         `env:"PROFILE_CACHE_MAX" envDefault:"10000"`
}

// loadConfig reads .env when present and then the process environment.
func loadConfig() (config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return config{}, fmt.Errorf("load .env: %w", err)
	}

	var cfg config
	if err := env.Parse(&cfg); err != nil {
		return config{}, err
	}
	cfg.Telemetry.ServiceName = "igreja-api"
	return cfg, cfg.validate()
}

func (c config) validate() error {
	switch c.AuthProvider {
	case "local":
		if len(c.AuthJWTSecret) < 32 {
			return errors.New("AUTH_JWT_SECRET must be at least 32 bytes when AUTH_PROVIDER=local")
		}
	case "firebase":
		if c.FirebaseAPIKey == "" {
			return errors.New("FIREBASE_API_KEY is required when AUTH_PROVIDER=firebase")
		}
	default:
		return fmt.Errorf("invalid AUTH_PROVIDER %q (use local or firebase)", c.AuthProvider)
	}

	switch c.StorageBackend {
	case "gcs":
		if c.StorageBannersBucket == "" || c.StorageLogosBucket == "" {
			return errors.New("STORAGE_BANNERS_BUCKET and STORAGE_LOGOS_BUCKET are required when STORAGE_BACKEND=gcs")
		}
	case "local":
		if strings.TrimSpace(c.StorageLocalDir) == "" {
			return errors.New("STORAGE_LOCAL_DIR is required when STORAGE_BACKEND=local")
		}
	default:
		return fmt.Errorf("invalid STORAGE_BACKEND %q (use gcs or local)", c.StorageBackend)
	}
	return nil
}
