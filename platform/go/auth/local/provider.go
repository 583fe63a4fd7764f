// Package local implements the auth provider on top of the identities table:
// bcrypt password hashes and HS256 access tokens carrying a session epoch.
package local

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/wilsonllucena/igreja-conciliada/platform/go/auth"
	"github.com/wilsonllucena/igreja-conciliada/platform/go/persistence"
)

const issuer = "igreja-local"

// IdentityStore is the persistence surface the provider needs.
type IdentityStore interface {
	CreateIdentity(ctx context.Context, params persistence.CreateIdentityParams) (persistence.Identity, error)
	GetIdentity(ctx context.Context, id uuid.UUID) (persistence.Identity, error)
	GetIdentityByEmail(ctx context.Context, email string) (persistence.Identity, error)
	UpdatePasswordHash(ctx context.Context, id uuid.UUID, hash string) error
	BumpSessionEpoch(ctx context.Context, id uuid.UUID) error
	ConfirmEmail(ctx context.Context, id uuid.UUID) error
	DeleteIdentity(ctx context.Context, id uuid.UUID) error
}

// Config controls token signing and sign-up behaviour.
type Config struct {
	Secret                   []byte
	TokenTTL                 time.Duration
	RequireEmailConfirmation bool
	BcryptCost               int
	Now                      func() time.Time
}

// Provider implements auth.Provider.
type Provider struct {
	store IdentityStore
	cfg   Config
}

var _ auth.Provider = (*Provider)(nil)

// New constructs a Provider. The secret must be at least 32 bytes.
func New(store IdentityStore, cfg Config) (*Provider, error) {
	if store == nil {
		return nil, errors.New("identity store is required")
	}
	if len(cfg.Secret) < 32 {
		return nil, errors.New("jwt secret must be at least 32 bytes")
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = time.Hour
	}
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = bcrypt.DefaultCost
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Provider{store: store, cfg: cfg}, nil
}

func (p *Provider) SignUp(ctx context.Context, params auth.SignUpParams) (auth.Identity, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(params.Password), p.cfg.BcryptCost)
	if err != nil {
		return auth.Identity{}, auth.NewError(auth.KindUnknown, fmt.Errorf("hash password: %w", err))
	}

	create := persistence.CreateIdentityParams{
		ID:           uuid.New(),
		Email:        params.Email,
		Name:         params.Name,
		PasswordHash: string(hash),
	}
	if !p.cfg.RequireEmailConfirmation {
		now := p.cfg.Now().UTC()
		create.EmailConfirmedAt = &now
	}

	record, err := p.store.CreateIdentity(ctx, create)
	if err != nil {
		if errors.Is(err, persistence.ErrConflict) {
			return auth.Identity{}, auth.NewError(auth.KindAlreadyRegistered, err)
		}
		return auth.Identity{}, auth.NewError(auth.KindUnknown, err)
	}

	return toIdentity(record), nil
}

func (p *Provider) SignIn(ctx context.Context, email, password string) (auth.Session, error) {
	record, err := p.store.GetIdentityByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return auth.Session{}, auth.NewError(auth.KindInvalidCredentials, err)
		}
		return auth.Session{}, auth.NewError(auth.KindUnknown, err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(record.PasswordHash), []byte(password)); err != nil {
		return auth.Session{}, auth.NewError(auth.KindInvalidCredentials, err)
	}

	if p.cfg.RequireEmailConfirmation && record.EmailConfirmedAt == nil {
		return auth.Session{}, auth.NewError(auth.KindEmailUnconfirmed, nil)
	}

	token, expiresAt, err := p.issue(record)
	if err != nil {
		return auth.Session{}, auth.NewError(auth.KindUnknown, err)
	}

	return auth.Session{AccessToken: token, ExpiresAt: expiresAt, Identity: toIdentity(record)}, nil
}

// SignOut revokes every session of the token's identity. Invalid tokens are already signed out.
func (p *Provider) SignOut(ctx context.Context, accessToken string) error {
	identity, err := p.Verify(ctx, accessToken)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidToken) {
			return nil
		}
		return err
	}
	if err := p.store.BumpSessionEpoch(ctx, identity.ID); err != nil {
		return fmt.Errorf("revoke sessions: %w", err)
	}
	return nil
}

func (p *Provider) Verify(ctx context.Context, accessToken string) (auth.Identity, error) {
	claims := &tokenClaims{}
	_, err := jwt.ParseWithClaims(accessToken, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return p.cfg.Secret, nil
	}, jwt.WithIssuer(issuer), jwt.WithTimeFunc(p.cfg.Now))
	if err != nil {
		return auth.Identity{}, fmt.Errorf("%w: %v", auth.ErrInvalidToken, err)
	}

	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return auth.Identity{}, fmt.Errorf("%w: subject", auth.ErrInvalidToken)
	}

	record, err := p.store.GetIdentity(ctx, id)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return auth.Identity{}, fmt.Errorf("%w: identity removed", auth.ErrInvalidToken)
		}
		return auth.Identity{}, err
	}
	if record.SessionEpoch != claims.SessionEpoch {
		return auth.Identity{}, fmt.Errorf("%w: session revoked", auth.ErrInvalidToken)
	}

	return toIdentity(record), nil
}

func (p *Provider) UpdatePassword(ctx context.Context, identityID uuid.UUID, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), p.cfg.BcryptCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	return p.store.UpdatePasswordHash(ctx, identityID, string(hash))
}

// DeleteIdentity is idempotent so it can serve as a compensation step.
func (p *Provider) DeleteIdentity(ctx context.Context, identityID uuid.UUID) error {
	if err := p.store.DeleteIdentity(ctx, identityID); err != nil && !errors.Is(err, persistence.ErrNotFound) {
		return err
	}
	return nil
}

// ConfirmEmail marks the identity's email as confirmed.
func (p *Provider) ConfirmEmail(ctx context.Context, identityID uuid.UUID) error {
	return p.store.ConfirmEmail(ctx, identityID)
}

type tokenClaims struct {
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name,omitempty"`
	SessionEpoch  int    `json:"sev"`
	jwt.RegisteredClaims
}

func (p *Provider) issue(record persistence.Identity) (string, time.Time, error) {
	now := p.cfg.Now()
	expiresAt := now.Add(p.cfg.TokenTTL)

	claims := tokenClaims{
		Email:         record.Email,
		EmailVerified: record.EmailConfirmedAt != nil,
		Name:          record.Name,
		SessionEpoch:  record.SessionEpoch,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   record.ID.String(),
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.cfg.Secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expiresAt, nil
}

func toIdentity(record persistence.Identity) auth.Identity {
	return auth.Identity{
		ID:             record.ID,
		Email:          record.Email,
		EmailConfirmed: record.EmailConfirmedAt != nil,
		Name:           record.Name,
	}
}
