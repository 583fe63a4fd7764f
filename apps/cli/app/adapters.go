package app

import (
	"context"
	"errors"

	"github.com/google/uuid"

	accountsservice "github.com/wilsonllucena/igreja-conciliada/domains/accounts/be/service"
	tenantsservice "github.com/wilsonllucena/igreja-conciliada/domains/tenants/be/service"
	"github.com/wilsonllucena/igreja-conciliada/platform/go/session"
)

// SessionBackend drives a session.Store with the accounts service in-process.
type SessionBackend struct {
	Accounts accountsservice.Service
}

var _ session.Backend = SessionBackend{}

func (b SessionBackend) SignIn(ctx context.Context, email, password string) (session.Account, error) {
	s, err := b.Accounts.SignIn(ctx, email, password)
	if err != nil {
		return session.Account{}, sessionError(err)
	}
	return toAccount(s), nil
}

func (b SessionBackend) SignUp(ctx context.Context, input session.SignUpInput) error {
	_, err := b.Accounts.SignUp(ctx, accountsservice.SignUpInput{
		Email:            input.Email,
		Password:         input.Password,
		Name:             input.Name,
		OrganizationName: input.OrganizationName,
	})
	return err
}

func (b SessionBackend) SignOut(ctx context.Context, accessToken string) error {
	return sessionError(b.Accounts.SignOut(ctx, accessToken))
}

func (b SessionBackend) Session(ctx context.Context, accessToken string) (session.Account, error) {
	s, err := b.Accounts.Session(ctx, accessToken)
	if err != nil {
		return session.Account{}, sessionError(err)
	}
	return toAccount(s), nil
}

func sessionError(err error) error {
	if errors.Is(err, accountsservice.ErrUnauthenticated) {
		return session.ErrUnauthenticated
	}
	return err
}

func toAccount(s accountsservice.Session) session.Account {
	out := session.Account{
		AccessToken: s.AccessToken,
		ExpiresAt:   s.ExpiresAt,
		Identity:    s.Identity,
	}
	if s.Profile != nil {
		out.Profile = &session.Profile{
			ID:       s.Profile.ID,
			TenantID: s.Profile.TenantID,
			Name:     s.Profile.Name,
			Email:    s.Profile.Email,
			Phone:    s.Profile.Phone,
			Role:     s.Profile.Role,
		}
	}
	return out
}

// TenantGetter is the part of the tenants service the resolver needs.
type TenantGetter interface {
	Get(ctx context.Context, id uuid.UUID) (tenantsservice.Tenant, error)
}

// TenantSource adapts the tenants service to session.TenantSource.
type TenantSource struct {
	Tenants TenantGetter
}

var _ session.TenantSource = TenantSource{}

func (s TenantSource) Tenant(ctx context.Context, id uuid.UUID) (session.Tenant, error) {
	t, err := s.Tenants.Get(ctx, id)
	if err != nil {
		if errors.Is(err, tenantsservice.ErrNotFound) {
			return session.Tenant{}, session.ErrTenantNotFound
		}
		return session.Tenant{}, err
	}
	return ToSessionTenant(t), nil
}

// ToSessionTenant converts a tenants service record for the resolver.
func ToSessionTenant(t tenantsservice.Tenant) session.Tenant {
	return session.Tenant{
		ID:      t.ID,
		Name:    t.Name,
		Slug:    t.Slug,
		Logo:    t.Logo,
		Address: t.Address,
		Phone:   t.Phone,
		Email:   t.Email,
		Website: t.Website,
	}
}
