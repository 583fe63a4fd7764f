// Package service implements sign-up, sign-in and account provisioning on top
// of the configured auth provider and the profiles table.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wilsonllucena/igreja-conciliada/domains/accounts/be/repo"
	tenantsservice "github.com/wilsonllucena/igreja-conciliada/domains/tenants/be/service"
	"github.com/wilsonllucena/igreja-conciliada/platform/go/access"
	platformauth "github.com/wilsonllucena/igreja-conciliada/platform/go/auth"
	"github.com/wilsonllucena/igreja-conciliada/platform/go/metrics"
	"github.com/wilsonllucena/igreja-conciliada/platform/go/persistence"
	"github.com/wilsonllucena/igreja-conciliada/platform/go/saga"
	"github.com/wilsonllucena/igreja-conciliada/platform/go/tenant"
	"github.com/wilsonllucena/igreja-conciliada/platform/go/validation"
)

// Domain sentinel errors.
var (
	ErrUnauthenticated = errors.New("sign in required")
	ErrForbidden       = errors.New("admin role required")
	ErrTenantRequired  = errors.New("tenant required")
	ErrConflict        = errors.New("profile already exists")
)

// Profile is the application user attached to an identity.
type Profile struct {
	ID        uuid.UUID
	TenantID  *uuid.UUID
	Name      string
	Email     string
	Phone     *string
	Role      access.Role
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Account pairs an identity with its profile.
type Account struct {
	Identity platformauth.Identity
	Profile  Profile
}

// Session is a signed-in account. Profile is nil when the identity has no
// profile row yet.
type Session struct {
	AccessToken string
	ExpiresAt   time.Time
	Identity    platformauth.Identity
	Profile     *Profile
}

// SignUpInput is validated against the sign-up schema. Without an
// OrganizationName the profile is created as a member with no tenant.
type SignUpInput struct {
	Email            string `json:"email,omitempty"`
	Password         string `json:"password,omitempty"`
	Name             string `json:"name,omitempty"`
	OrganizationName string `json:"organization_name,omitempty"`
}

// CreateUserInput is the admin request to add a user to the current tenant.
type CreateUserInput struct {
	Name     string
	Email    string
	Password string
	Role     string
	Phone    *string
}

// ProvisionInput creates an identity and a profile pinned to TenantID.
type ProvisionInput struct {
	TenantID uuid.UUID
	Name     string
	Email    string
	Password string
	Phone    *string
	Role     access.Role
}

// TenantCreator creates the church during sign-up and removes it on rollback.
type TenantCreator interface {
	Create(ctx context.Context, input tenantsservice.CreateInput) (tenantsservice.Tenant, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// Service defines the account operations.
type Service interface {
	SignUp(ctx context.Context, input SignUpInput) (Account, error)
	SignIn(ctx context.Context, email, password string) (Session, error)
	SignOut(ctx context.Context, accessToken string) error
	Session(ctx context.Context, accessToken string) (Session, error)
	UpdatePassword(ctx context.Context, password string) error
	CreateUser(ctx context.Context, input CreateUserInput) (Account, error)
	Provision(ctx context.Context, input ProvisionInput) (Account, error)
	Deprovision(ctx context.Context, userID uuid.UUID) error
}

// Options carries the optional collaborators.
type Options struct {
	Logger  *zap.Logger
	Metrics *metrics.Metrics
	// RedirectURL is sent with sign-up for the email confirmation link.
	RedirectURL string
}

type service struct {
	provider platformauth.Provider
	profiles repo.Repository
	tenants  TenantCreator
	opts     Options
}

// New constructs the accounts Service.
func New(provider platformauth.Provider, profiles repo.Repository, tenants TenantCreator, opts Options) Service {
	if provider == nil {
		panic("auth provider is required")
	}
	if profiles == nil {
		panic("accounts repository is required")
	}
	if tenants == nil {
		panic("tenant creator is required")
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &service{provider: provider, profiles: profiles, tenants: tenants, opts: opts}
}

// SignUp creates the identity, the church (when named) and the profile. Each
// step is undone if a later one fails.
func (s *service) SignUp(ctx context.Context, input SignUpInput) (Account, error) {
	input.Email = normalizeEmail(input.Email)
	input.Name = strings.TrimSpace(input.Name)
	input.OrganizationName = strings.TrimSpace(input.OrganizationName)

	verr := &validation.Error{}
	verr.Merge(validation.Validate(validation.SignUp, input))
	verr.CheckPassword("password", input.Password)
	if err := verr.OrNil(); err != nil {
		return Account{}, err
	}

	var (
		identity platformauth.Identity
		tenantID *uuid.UUID
		profile  persistence.Profile
	)
	role := access.RoleMember
	if input.OrganizationName != "" {
		role = access.RoleAdmin
	}

	steps := []saga.Step{{
		Name: "create_identity",
		Do: func(ctx context.Context) (err error) {
			identity, err = s.provider.SignUp(ctx, platformauth.SignUpParams{
				Email:       input.Email,
				Password:    input.Password,
				Name:        input.Name,
				RedirectURL: s.opts.RedirectURL,
				Metadata:    map[string]string{"organization_name": input.OrganizationName},
			})
			return err
		},
		Compensate: func(ctx context.Context) error {
			return s.provider.DeleteIdentity(ctx, identity.ID)
		},
	}}

	if input.OrganizationName != "" {
		steps = append(steps, saga.Step{
			Name: "create_tenant",
			Do: func(ctx context.Context) error {
				created, err := s.tenants.Create(ctx, tenantsservice.CreateInput{Name: input.OrganizationName})
				if err != nil {
					return err
				}
				tenantID = &created.ID
				return nil
			},
			Compensate: func(ctx context.Context) error {
				return s.tenants.Delete(ctx, *tenantID)
			},
		})
	}

	steps = append(steps, saga.Step{
		Name: "create_profile",
		Do: func(ctx context.Context) (err error) {
			profile, err = s.profiles.CreateProfile(ctx, persistence.CreateProfileParams{
				ID:       identity.ID,
				TenantID: tenantID,
				Name:     input.Name,
				Email:    input.Email,
				Role:     string(role),
			})
			return mapPersistenceError(err)
		},
	})

	result := saga.Run(ctx, s.opts.Logger, steps...)
	s.opts.Metrics.ObserveSaga("signup", string(result.Outcome))
	if err := result.Err(); err != nil {
		s.observeAuth("signup", err)
		return Account{}, err
	}

	s.opts.Metrics.ObserveAuth("signup", "success")
	return Account{Identity: identity, Profile: mapProfile(profile)}, nil
}

func (s *service) SignIn(ctx context.Context, email, password string) (Session, error) {
	session, err := s.provider.SignIn(ctx, normalizeEmail(email), password)
	if err != nil {
		s.observeAuth("signin", err)
		return Session{}, err
	}
	s.opts.Metrics.ObserveAuth("signin", "success")

	out := Session{AccessToken: session.AccessToken, ExpiresAt: session.ExpiresAt, Identity: session.Identity}
	out.Profile, err = s.lookupProfile(ctx, session.Identity.ID)
	if err != nil {
		return Session{}, err
	}
	return out, nil
}

func (s *service) SignOut(ctx context.Context, accessToken string) error {
	if err := s.provider.SignOut(ctx, accessToken); err != nil {
		s.opts.Metrics.ObserveAuth("signout", "error")
		return fmt.Errorf("sign out: %w", err)
	}
	s.opts.Metrics.ObserveAuth("signout", "success")
	return nil
}

// Session restores a session from a stored access token.
func (s *service) Session(ctx context.Context, accessToken string) (Session, error) {
	identity, err := s.provider.Verify(ctx, accessToken)
	if err != nil {
		if errors.Is(err, platformauth.ErrInvalidToken) {
			return Session{}, ErrUnauthenticated
		}
		return Session{}, err
	}

	out := Session{AccessToken: accessToken, Identity: identity}
	out.Profile, err = s.lookupProfile(ctx, identity.ID)
	if err != nil {
		return Session{}, err
	}
	return out, nil
}

// UpdatePassword changes the password of the signed-in identity.
func (s *service) UpdatePassword(ctx context.Context, password string) error {
	creds, ok := platformauth.UserFromContext(ctx)
	if !ok || creds == nil {
		return ErrUnauthenticated
	}
	id, err := uuid.Parse(creds.Id)
	if err != nil {
		return ErrUnauthenticated
	}

	verr := &validation.Error{}
	verr.CheckPassword("password", password)
	if err := verr.OrNil(); err != nil {
		return err
	}

	if err := s.provider.UpdatePassword(ctx, id, password); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	s.opts.Metrics.ObserveAuth("password", "success")
	return nil
}

// CreateUser adds a user to the caller's tenant. Admin only.
func (s *service) CreateUser(ctx context.Context, input CreateUserInput) (Account, error) {
	scope, ok := tenant.FromContext(ctx)
	if !ok {
		return Account{}, ErrTenantRequired
	}
	if callerRole, _ := access.ParseRole(scope.Role); !callerRole.IsAdmin() {
		return Account{}, ErrForbidden
	}

	input.Name = strings.TrimSpace(input.Name)
	input.Email = normalizeEmail(input.Email)

	verr := &validation.Error{}
	verr.Merge(validation.Validate(validation.SignUp, SignUpInput{Email: input.Email, Password: input.Password, Name: input.Name}))
	verr.CheckPassword("password", input.Password)
	role, ok := access.ParseRole(input.Role)
	if !ok {
		verr.Add("role", "must be one of admin, leader, member")
	}
	if err := verr.OrNil(); err != nil {
		return Account{}, err
	}

	return s.Provision(ctx, ProvisionInput{
		TenantID: scope.TenantID,
		Name:     input.Name,
		Email:    input.Email,
		Password: input.Password,
		Phone:    input.Phone,
		Role:     role,
	})
}

// Provision creates an identity and its profile. A failed profile insert
// deletes the identity again.
func (s *service) Provision(ctx context.Context, input ProvisionInput) (Account, error) {
	if input.TenantID == uuid.Nil {
		return Account{}, ErrTenantRequired
	}

	var (
		identity platformauth.Identity
		profile  persistence.Profile
	)
	result := saga.Run(ctx, s.opts.Logger,
		saga.Step{
			Name: "create_identity",
			Do: func(ctx context.Context) (err error) {
				identity, err = s.provider.SignUp(ctx, platformauth.SignUpParams{
					Email:       normalizeEmail(input.Email),
					Password:    input.Password,
					Name:        input.Name,
					RedirectURL: s.opts.RedirectURL,
				})
				return err
			},
			Compensate: func(ctx context.Context) error {
				return s.provider.DeleteIdentity(ctx, identity.ID)
			},
		},
		saga.Step{
			Name: "create_profile",
			Do: func(ctx context.Context) (err error) {
				tenantID := input.TenantID
				profile, err = s.profiles.CreateProfile(ctx, persistence.CreateProfileParams{
					ID:       identity.ID,
					TenantID: &tenantID,
					Name:     input.Name,
					Email:    normalizeEmail(input.Email),
					Phone:    input.Phone,
					Role:     string(input.Role),
				})
				return mapPersistenceError(err)
			},
		},
	)
	s.opts.Metrics.ObserveSaga("provision_account", string(result.Outcome))
	if err := result.Err(); err != nil {
		return Account{}, err
	}
	return Account{Identity: identity, Profile: mapProfile(profile)}, nil
}

// Deprovision removes the profile and the identity. Both removals are
// attempted; a missing identity is not an error.
func (s *service) Deprovision(ctx context.Context, userID uuid.UUID) error {
	return errors.Join(
		s.profiles.RemoveProfile(ctx, userID),
		s.provider.DeleteIdentity(ctx, userID),
	)
}

func (s *service) lookupProfile(ctx context.Context, id uuid.UUID) (*Profile, error) {
	record, err := s.profiles.GetProfile(ctx, id)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("load profile: %w", err)
	}
	p := mapProfile(record)
	return &p, nil
}

func (s *service) observeAuth(operation string, err error) {
	var authErr *platformauth.Error
	if errors.As(err, &authErr) {
		s.opts.Metrics.ObserveAuth(operation, string(authErr.Kind))
		if authErr.Kind == platformauth.KindUnknown {
			s.opts.Logger.Warn("auth provider failure", zap.String("operation", operation), zap.Error(err))
		}
		return
	}
	s.opts.Metrics.ObserveAuth(operation, "error")
}

func mapProfile(record persistence.Profile) Profile {
	role, _ := access.ParseRole(record.Role)
	return Profile{
		ID:        record.ID,
		TenantID:  record.TenantID,
		Name:      record.Name,
		Email:     record.Email,
		Phone:     record.Phone,
		Role:      role,
		CreatedAt: record.CreatedAt,
		UpdatedAt: record.UpdatedAt,
	}
}

func mapPersistenceError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, persistence.ErrConflict):
		return ErrConflict
	default:
		return err
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
