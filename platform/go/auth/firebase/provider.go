// Package firebase implements the auth provider on Firebase Authentication.
// Account management goes through the Admin SDK; password sign-in goes
// through the Identity Toolkit REST API with the project's web API key.
package firebase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	firebaseauth "firebase.google.com/go/v4/auth"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/identitytoolkit/v3"
	"google.golang.org/api/option"

	"github.com/wilsonllucena/igreja-conciliada/platform/go/auth"
)

// AdminClient is the subset of *firebaseauth.Client the provider uses.
type AdminClient interface {
	CreateUser(ctx context.Context, user *firebaseauth.UserToCreate) (*firebaseauth.UserRecord, error)
	GetUser(ctx context.Context, uid string) (*firebaseauth.UserRecord, error)
	UpdateUser(ctx context.Context, uid string, user *firebaseauth.UserToUpdate) (*firebaseauth.UserRecord, error)
	DeleteUser(ctx context.Context, uid string) error
	RevokeRefreshTokens(ctx context.Context, uid string) error
	VerifyIDTokenAndCheckRevoked(ctx context.Context, idToken string) (*firebaseauth.Token, error)
	EmailVerificationLinkWithSettings(ctx context.Context, email string, settings *firebaseauth.ActionCodeSettings) (string, error)
}

// PasswordVerifier exchanges email and password for an ID token.
type PasswordVerifier interface {
	VerifyPassword(ctx context.Context, email, password string) (*identitytoolkit.VerifyPasswordResponse, error)
}

// LinkSink receives email verification links. The default logs them.
type LinkSink func(ctx context.Context, email, link string) error

type Config struct {
	RequireEmailConfirmation bool
	Links                    LinkSink
}

// Provider implements auth.Provider.
type Provider struct {
	client   AdminClient
	password PasswordVerifier
	cfg      Config
	logger   *zap.Logger
	now      func() time.Time
}

var _ auth.Provider = (*Provider)(nil)

func New(client AdminClient, password PasswordVerifier, cfg Config, logger *zap.Logger) (*Provider, error) {
	if client == nil {
		return nil, errors.New("firebase auth client is required")
	}
	if password == nil {
		return nil, errors.New("password verifier is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Links == nil {
		cfg.Links = func(_ context.Context, email, link string) error {
			logger.Info("email verification link generated", zap.String("email", email), zap.String("link", link))
			return nil
		}
	}
	return &Provider{client: client, password: password, cfg: cfg, logger: logger, now: time.Now}, nil
}

// NewToolkitVerifier builds a PasswordVerifier on the Identity Toolkit API.
func NewToolkitVerifier(ctx context.Context, apiKey string) (PasswordVerifier, error) {
	if apiKey == "" {
		return nil, errors.New("firebase api key is required")
	}
	svc, err := identitytoolkit.NewService(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("init identity toolkit: %w", err)
	}
	return toolkitVerifier{svc: svc}, nil
}

type toolkitVerifier struct {
	svc *identitytoolkit.Service
}

func (v toolkitVerifier) VerifyPassword(ctx context.Context, email, password string) (*identitytoolkit.VerifyPasswordResponse, error) {
	return v.svc.Relyingparty.VerifyPassword(&identitytoolkit.IdentitytoolkitRelyingpartyVerifyPasswordRequest{
		Email:             email,
		Password:          password,
		ReturnSecureToken: true,
	}).Context(ctx).Do()
}

// SignUp creates the Firebase user with a UUID uid so profiles can share the id.
func (p *Provider) SignUp(ctx context.Context, params auth.SignUpParams) (auth.Identity, error) {
	id := uuid.New()
	user := (&firebaseauth.UserToCreate{}).
		UID(id.String()).
		Email(strings.ToLower(strings.TrimSpace(params.Email))).
		Password(params.Password).
		EmailVerified(!p.cfg.RequireEmailConfirmation)
	if params.Name != "" {
		user = user.DisplayName(params.Name)
	}

	record, err := p.client.CreateUser(ctx, user)
	if err != nil {
		if firebaseauth.IsEmailAlreadyExists(err) {
			return auth.Identity{}, auth.NewError(auth.KindAlreadyRegistered, err)
		}
		return auth.Identity{}, auth.NewError(auth.KindUnknown, err)
	}

	if p.cfg.RequireEmailConfirmation {
		var settings *firebaseauth.ActionCodeSettings
		if params.RedirectURL != "" {
			settings = &firebaseauth.ActionCodeSettings{URL: params.RedirectURL}
		}
		link, err := p.client.EmailVerificationLinkWithSettings(ctx, record.Email, settings)
		if err != nil {
			p.logger.Warn("email verification link failed", zap.String("uid", record.UID), zap.Error(err))
		} else if err := p.cfg.Links(ctx, record.Email, link); err != nil {
			p.logger.Warn("email verification link not delivered", zap.String("uid", record.UID), zap.Error(err))
		}
	}

	return toIdentity(id, record), nil
}

func (p *Provider) SignIn(ctx context.Context, email, password string) (auth.Session, error) {
	resp, err := p.password.VerifyPassword(ctx, strings.ToLower(strings.TrimSpace(email)), password)
	if err != nil {
		return auth.Session{}, auth.NewError(classifySignInError(err), err)
	}

	id, err := uuid.Parse(resp.LocalId)
	if err != nil {
		return auth.Session{}, auth.NewError(auth.KindUnknown, fmt.Errorf("firebase uid %q is not a uuid", resp.LocalId))
	}

	record, err := p.client.GetUser(ctx, resp.LocalId)
	if err != nil {
		return auth.Session{}, auth.NewError(auth.KindUnknown, err)
	}
	if p.cfg.RequireEmailConfirmation && !record.EmailVerified {
		return auth.Session{}, auth.NewError(auth.KindEmailUnconfirmed, nil)
	}

	expiresIn := int(resp.ExpiresIn)
	if expiresIn <= 0 {
		expiresIn = 3600
	}

	return auth.Session{
		AccessToken: resp.IdToken,
		ExpiresAt:   p.now().Add(time.Duration(expiresIn) * time.Second),
		Identity:    toIdentity(id, record),
	}, nil
}

// SignOut revokes the refresh tokens of the token's user.
func (p *Provider) SignOut(ctx context.Context, accessToken string) error {
	identity, err := p.Verify(ctx, accessToken)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidToken) {
			return nil
		}
		return err
	}
	if err := p.client.RevokeRefreshTokens(ctx, identity.ID.String()); err != nil {
		return fmt.Errorf("revoke refresh tokens: %w", err)
	}
	return nil
}

func (p *Provider) Verify(ctx context.Context, accessToken string) (auth.Identity, error) {
	token, err := p.client.VerifyIDTokenAndCheckRevoked(ctx, accessToken)
	if err != nil {
		return auth.Identity{}, fmt.Errorf("%w: %v", auth.ErrInvalidToken, err)
	}

	id, err := uuid.Parse(token.UID)
	if err != nil {
		return auth.Identity{}, fmt.Errorf("%w: uid", auth.ErrInvalidToken)
	}

	identity := auth.Identity{ID: id}
	if v, ok := token.Claims["email"].(string); ok {
		identity.Email = v
	}
	if v, ok := token.Claims["email_verified"].(bool); ok {
		identity.EmailConfirmed = v
	}
	if v, ok := token.Claims["name"].(string); ok {
		identity.Name = v
	}
	return identity, nil
}

func (p *Provider) UpdatePassword(ctx context.Context, identityID uuid.UUID, password string) error {
	if _, err := p.client.UpdateUser(ctx, identityID.String(), (&firebaseauth.UserToUpdate{}).Password(password)); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}

// DeleteIdentity is idempotent so it can serve as a compensation step.
func (p *Provider) DeleteIdentity(ctx context.Context, identityID uuid.UUID) error {
	if err := p.client.DeleteUser(ctx, identityID.String()); err != nil && !firebaseauth.IsUserNotFound(err) {
		return fmt.Errorf("delete user: %w", err)
	}
	return nil
}

// classifySignInError maps Identity Toolkit error messages to auth kinds.
func classifySignInError(err error) auth.ErrorKind {
	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) {
		return auth.KindUnknown
	}
	message := apiErr.Message
	if i := strings.IndexAny(message, " :"); i > 0 {
		message = message[:i]
	}
	switch message {
	case "INVALID_PASSWORD", "EMAIL_NOT_FOUND", "INVALID_LOGIN_CREDENTIALS", "INVALID_EMAIL", "USER_DISABLED":
		return auth.KindInvalidCredentials
	case "EMAIL_NOT_VERIFIED":
		return auth.KindEmailUnconfirmed
	default:
		return auth.KindUnknown
	}
}

func toIdentity(id uuid.UUID, record *firebaseauth.UserRecord) auth.Identity {
	identity := auth.Identity{ID: id}
	if record != nil && record.UserInfo != nil {
		identity.Email = record.Email
		identity.Name = record.DisplayName
	}
	if record != nil {
		identity.EmailConfirmed = record.EmailVerified
	}
	return identity
}
