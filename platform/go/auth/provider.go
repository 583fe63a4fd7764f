package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Identity is an authenticated account as known by the identity provider.
type Identity struct {
	ID             uuid.UUID
	Email          string
	EmailConfirmed bool
	Name           string
}

// Session is the result of a successful sign-in.
type Session struct {
	AccessToken string
	ExpiresAt   time.Time
	Identity    Identity
}

// SignUpParams carries the data needed to register a new identity.
type SignUpParams struct {
	Email       string
	Password    string
	Name        string
	RedirectURL string
	Metadata    map[string]string
}

// Provider is the backend auth interface. Implementations classify failures as *Error.
type Provider interface {
	SignUp(ctx context.Context, params SignUpParams) (Identity, error)
	SignIn(ctx context.Context, email, password string) (Session, error)
	SignOut(ctx context.Context, accessToken string) error
	Verify(ctx context.Context, accessToken string) (Identity, error)
	UpdatePassword(ctx context.Context, identityID uuid.UUID, password string) error
	DeleteIdentity(ctx context.Context, identityID uuid.UUID) error
}

// ErrorKind classifies auth failures independently of provider wording.
type ErrorKind string

const (
	KindInvalidCredentials ErrorKind = "invalid_credentials"
	KindEmailUnconfirmed   ErrorKind = "email_unconfirmed"
	KindAlreadyRegistered  ErrorKind = "already_registered"
	KindUnknown            ErrorKind = "unknown"
)

// Message returns the user-facing (pt-BR) text for the kind.
func (k ErrorKind) Message() string {
	switch k {
	case KindInvalidCredentials:
		return "Email ou senha incorretos."
	case KindEmailUnconfirmed:
		return "Confirme seu email antes de entrar."
	case KindAlreadyRegistered:
		return "Este email já está cadastrado."
	default:
		return "Não foi possível concluir a autenticação. Tente novamente."
	}
}

// Error is returned by providers for every classified auth failure.
type Error struct {
	Kind ErrorKind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("auth: %s", e.Kind)
	}
	return fmt.Sprintf("auth: %s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// NewError wraps cause with the given kind.
func NewError(kind ErrorKind, cause error) *Error {
	return &Error{Kind: kind, Err: cause}
}

// KindOf returns the kind carried by err, or KindUnknown.
func KindOf(err error) ErrorKind {
	var authErr *Error
	if errors.As(err, &authErr) {
		return authErr.Kind
	}
	return KindUnknown
}

// ErrInvalidToken is returned by Verify for missing, expired or revoked sessions.
var ErrInvalidToken = errors.New("invalid session token")
