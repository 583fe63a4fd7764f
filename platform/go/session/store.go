// Package session holds the signed-in identity, its profile and the resolved
// church for a client process. A Store is created per workspace and is never
// shared through package state.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wilsonllucena/igreja-conciliada/platform/go/access"
	"github.com/wilsonllucena/igreja-conciliada/platform/go/auth"
	"github.com/wilsonllucena/igreja-conciliada/platform/go/notify"
	"github.com/wilsonllucena/igreja-conciliada/platform/go/pubsub"
)

var (
	// ErrUnauthenticated is returned when an operation needs a signed-in identity.
	ErrUnauthenticated = errors.New("not signed in")
	// ErrMalformedProfile is returned when the profile row is missing or unusable.
	ErrMalformedProfile = errors.New("malformed profile")
)

// Profile is the application record of the signed-in identity.
type Profile struct {
	ID       uuid.UUID
	TenantID *uuid.UUID
	Name     string
	Email    string
	Phone    *string
	Role     access.Role
}

// Account is a backend session. Profile is nil when no profile row exists.
type Account struct {
	AccessToken string
	ExpiresAt   time.Time
	Identity    auth.Identity
	Profile     *Profile
}

// SignUpInput registers an identity. A non-empty OrganizationName also creates
// the church, with the new user as its admin.
type SignUpInput struct {
	Email            string
	Password         string
	Name             string
	OrganizationName string
}

// Backend is the account surface driven by the store.
type Backend interface {
	SignIn(ctx context.Context, email, password string) (Account, error)
	SignUp(ctx context.Context, input SignUpInput) error
	SignOut(ctx context.Context, accessToken string) error
	Session(ctx context.Context, accessToken string) (Account, error)
}

// ChangeKind names a session transition.
type ChangeKind string

const (
	SignedIn      ChangeKind = "signed_in"
	SignedOut     ChangeKind = "signed_out"
	ProfileLoaded ChangeKind = "profile_loaded"
)

// Change is delivered to subscribers after every transition.
type Change struct {
	Kind     ChangeKind
	Identity *auth.Identity
	Profile  *Profile
}

// Options carries the optional collaborators of a Store.
type Options struct {
	Notifier notify.Notifier
	Logger   *zap.Logger
}

// Store tracks the identity and profile of one client.
type Store struct {
	backend  Backend
	tokens   TokenStore
	notifier notify.Notifier
	logger   *zap.Logger
	changes  *pubsub.Topic[Change]
	unsub    func()

	mu       sync.RWMutex
	token    string
	identity *auth.Identity
	profile  *Profile
}

// NewStore wires a Store. A nil TokenStore keeps the token in memory only.
func NewStore(backend Backend, tokens TokenStore, opts Options) *Store {
	if backend == nil {
		panic("session backend is required")
	}
	if tokens == nil {
		tokens = &MemoryTokenStore{}
	}
	if opts.Notifier == nil {
		opts.Notifier = notify.Nop{}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	s := &Store{
		backend:  backend,
		tokens:   tokens,
		notifier: opts.Notifier,
		logger:   opts.Logger.With(zap.String("component", "session")),
		changes:  pubsub.NewTopic[Change](),
	}
	s.unsub = s.changes.Subscribe(s.onChange)
	return s
}

// onChange loads the profile whenever a new identity is established.
func (s *Store) onChange(ctx context.Context, c Change) {
	if c.Kind != SignedIn {
		return
	}
	// RefreshProfile notifies its own failures.
	_ = s.RefreshProfile(ctx)
}

// RestoreSession resumes a persisted session. Failures are logged and leave
// the store signed out.
func (s *Store) RestoreSession(ctx context.Context) {
	stored, err := s.tokens.Load(ctx)
	if err != nil {
		s.logger.Warn("load stored session", zap.Error(err))
		return
	}
	if stored.AccessToken == "" {
		return
	}

	account, err := s.backend.Session(ctx, stored.AccessToken)
	if err != nil {
		if errors.Is(err, ErrUnauthenticated) || errors.Is(err, auth.ErrInvalidToken) {
			s.logger.Info("stored session expired")
			if err := s.tokens.Clear(ctx); err != nil {
				s.logger.Warn("clear stored session", zap.Error(err))
			}
			return
		}
		s.logger.Warn("restore session", zap.Error(err))
		return
	}

	s.establish(ctx, stored.AccessToken, account.Identity)
}

// SignIn authenticates and persists the token. The profile is loaded by the
// change stream. Failures are returned as *auth.Error.
func (s *Store) SignIn(ctx context.Context, email, password string) error {
	account, err := s.backend.SignIn(ctx, email, password)
	if err != nil {
		return err
	}

	if err := s.tokens.Save(ctx, Token{
		AccessToken: account.AccessToken,
		ExpiresAt:   account.ExpiresAt,
		Email:       account.Identity.Email,
	}); err != nil {
		s.logger.Warn("persist session token", zap.Error(err))
	}

	s.establish(ctx, account.AccessToken, account.Identity)
	return nil
}

// SignUp registers a new identity. It does not sign in.
func (s *Store) SignUp(ctx context.Context, email, password, name, organizationName string) error {
	return s.backend.SignUp(ctx, SignUpInput{
		Email:            email,
		Password:         password,
		Name:             name,
		OrganizationName: organizationName,
	})
}

// SignOut revokes the backend session and clears local state. Local state is
// cleared even when revocation fails.
func (s *Store) SignOut(ctx context.Context) error {
	s.mu.Lock()
	token := s.token
	s.token = ""
	s.identity = nil
	s.profile = nil
	s.mu.Unlock()

	var revokeErr error
	if token != "" {
		if err := s.backend.SignOut(ctx, token); err != nil {
			s.logger.Warn("revoke session", zap.Error(err))
			revokeErr = fmt.Errorf("sign out: %w", err)
		}
	}
	if err := s.tokens.Clear(ctx); err != nil {
		s.logger.Warn("clear stored session", zap.Error(err))
	}

	s.changes.Publish(ctx, Change{Kind: SignedOut})
	return revokeErr
}

// RefreshProfile reloads the profile of the current identity. On failure the
// previous profile is kept and an error is notified.
func (s *Store) RefreshProfile(ctx context.Context) error {
	s.mu.RLock()
	token := s.token
	identity := s.identity
	s.mu.RUnlock()
	if identity == nil {
		return ErrUnauthenticated
	}

	account, err := s.backend.Session(ctx, token)
	if err != nil {
		s.logger.Error("load profile", zap.String("user_id", identity.ID.String()), zap.Error(err))
		s.notifier.Error("Erro ao carregar perfil")
		return fmt.Errorf("refresh profile: %w", err)
	}
	if !wellFormed(account.Profile, identity.ID) {
		s.logger.Warn("malformed profile", zap.String("user_id", identity.ID.String()))
		s.notifier.Error("Perfil incompleto. Contate o administrador.")
		return ErrMalformedProfile
	}

	profile := *account.Profile
	s.mu.Lock()
	if s.identity == nil || s.identity.ID != identity.ID {
		// signed out or switched while loading
		s.mu.Unlock()
		return nil
	}
	s.profile = &profile
	s.mu.Unlock()

	s.changes.Publish(ctx, Change{Kind: ProfileLoaded, Identity: identity, Profile: &profile})
	return nil
}

func (s *Store) establish(ctx context.Context, token string, identity auth.Identity) {
	s.mu.Lock()
	s.token = token
	s.identity = &identity
	s.profile = nil
	s.mu.Unlock()

	s.changes.Publish(ctx, Change{Kind: SignedIn, Identity: &identity})
}

func wellFormed(p *Profile, identityID uuid.UUID) bool {
	if p == nil || p.ID != identityID {
		return false
	}
	_, ok := access.ParseRole(string(p.Role))
	return ok
}

// Subscribe delivers every later change to fn until unsubscribe is called.
func (s *Store) Subscribe(fn func(context.Context, Change)) (unsubscribe func()) {
	return s.changes.Subscribe(fn)
}

// Identity returns the signed-in identity.
func (s *Store) Identity() (auth.Identity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.identity == nil {
		return auth.Identity{}, false
	}
	return *s.identity, true
}

// Profile returns the loaded profile.
func (s *Store) Profile() (Profile, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.profile == nil {
		return Profile{}, false
	}
	return *s.profile, true
}

// AccessToken returns the current token, or "" when signed out.
func (s *Store) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// Role is the profile role, empty until a profile is loaded.
func (s *Store) Role() access.Role {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.profile == nil {
		return ""
	}
	return s.profile.Role
}

func (s *Store) IsAdmin() bool  { return s.Role().IsAdmin() }
func (s *Store) IsLeader() bool { return s.Role().IsLeader() }
func (s *Store) IsMember() bool { return s.Role().IsMember() }

// HasPermission is advisory; the API enforces authorization on its own.
func (s *Store) HasPermission(capability access.Capability) bool {
	return access.HasPermission(s.Role(), capability)
}

// Close drops the store's own subscription. Other subscribers are released by
// their owners.
func (s *Store) Close() {
	s.unsub()
}
