// Package provisioning builds the backends a deployment runs on: the identity
// provider, the blob buckets and the migrated database. The API and the CLI
// share it so both processes talk to the same infrastructure.
package provisioning

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/wilsonllucena/igreja-conciliada/platform/go/auth"
	"github.com/wilsonllucena/igreja-conciliada/platform/go/auth/firebase"
	"github.com/wilsonllucena/igreja-conciliada/platform/go/auth/local"
	"github.com/wilsonllucena/igreja-conciliada/platform/go/gcp"
)

const (
	AuthLocal    = "local"
	AuthFirebase = "firebase"
)

// AuthConfig selects and configures the identity provider.
type AuthConfig struct {
	Provider                 string
	JWTSecret                string
	TokenTTL                 time.Duration
	RequireEmailConfirmation bool
	FirebaseAPIKey           string
	GCP                      gcp.Config
}

// NewAuthProvider returns the configured provider. identities is only used by
// the local provider.
func NewAuthProvider(ctx context.Context, cfg AuthConfig, identities local.IdentityStore, logger *zap.Logger) (auth.Provider, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	switch cfg.Provider {
	case AuthLocal, "":
		p, err := local.New(identities, local.Config{
			Secret:                   []byte(cfg.JWTSecret),
			TokenTTL:                 cfg.TokenTTL,
			RequireEmailConfirmation: cfg.RequireEmailConfirmation,
		})
		if err != nil {
			return nil, fmt.Errorf("init local auth: %w", err)
		}
		logger.Info("auth provider ready", zap.String("provider", AuthLocal))
		return p, nil

	case AuthFirebase:
		if cfg.FirebaseAPIKey == "" {
			return nil, errors.New("firebase api key is required")
		}
		client, err := gcp.InitFirebaseAuth(ctx, cfg.GCP)
		if err != nil {
			return nil, err
		}
		verifier, err := firebase.NewToolkitVerifier(ctx, cfg.FirebaseAPIKey)
		if err != nil {
			return nil, err
		}
		p, err := firebase.New(client, verifier, firebase.Config{RequireEmailConfirmation: cfg.RequireEmailConfirmation}, logger)
		if err != nil {
			return nil, fmt.Errorf("init firebase auth: %w", err)
		}
		logger.Info("auth provider ready", zap.String("provider", AuthFirebase))
		return p, nil

	default:
		return nil, fmt.Errorf("unsupported auth provider %q", cfg.Provider)
	}
}
