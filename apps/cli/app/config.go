package app

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/wilsonllucena/igreja-conciliada/domains/tenants/be/provisioning"
	"github.com/wilsonllucena/igreja-conciliada/platform/go/gcp"
)

// Config is read from .env and the environment, with the same variable names
// the API server uses.
type Config struct {
	LogLevel    string `env:"LOG_LEVEL" envDefault:"warn"`
	SessionFile string `env:"IGREJA_SESSION_FILE"`

	DatabaseURL      string `env:"DATABASE_URL,required"`
	DatabaseMaxConns int32  `env:"DB_MAX_CONNS" envDefault:"4"`

	AuthProvider             string        `env:"AUTH_PROVIDER" envDefault:"local"`
	AuthJWTSecret            string        `env:"AUTH_JWT_SECRET"`
	AuthTokenTTL             time.Duration `env:"AUTH_TOKEN_TTL" envDefault:"1h"`
	RequireEmailConfirmation bool          `env:"AUTH_REQUIRE_EMAIL_CONFIRMATION" envDefault:"false"`
	FirebaseAPIKey           string        `env:"FIREBASE_API_KEY"`
	GCP                      gcp.Config

	StorageBackend       string `env:"STORAGE_BACKEND" envDefault:"local"`
	StorageBannersBucket string `env:"STORAGE_BANNERS_BUCKET"`
	StorageLogosBucket   string `env:"STORAGE_LOGOS_BUCKET"`
	StorageLocalDir      string `env:"STORAGE_LOCAL_DIR" envDefault:"./.data/storage"`

	PublicBaseURL string `env:"PUBLIC_BASE_URL" envDefault:"http://localhost:8080"`
	NATSURL       string `env:"NATS_URL"`
	NATSSubject   string `env:"NATS_TENANT_UPDATES_SUBJECT" envDefault:"igreja.tenants.updated"`
}

// LoadConfig reads .env when present and then the process environment.
func LoadConfig() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) authConfig() provisioning.AuthConfig {
	return provisioning.AuthConfig{
		Provider:                 c.AuthProvider,
		JWTSecret:                c.AuthJWTSecret,
		TokenTTL:                 c.AuthTokenTTL,
		RequireEmailConfirmation: c.RequireEmailConfirmation,
		FirebaseAPIKey:           c.FirebaseAPIKey,
		GCP:                      c.GCP,
	}
}

func (c Config) storageConfig() provisioning.StorageConfig {
	return provisioning.StorageConfig{
		Backend:       c.StorageBackend,
		BannersBucket: c.StorageBannersBucket,
		LogosBucket:   c.StorageLogosBucket,
		Dir:           c.StorageLocalDir,
		PublicBaseURL: c.PublicBaseURL,
		GCP:           c.GCP,
	}
}
