package app

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	accountsservice "github.com/wilsonllucena/igreja-conciliada/domains/accounts/be/service"
	tenantsservice "github.com/wilsonllucena/igreja-conciliada/domains/tenants/be/service"
	"github.com/wilsonllucena/igreja-conciliada/platform/go/access"
	"github.com/wilsonllucena/igreja-conciliada/platform/go/auth"
	"github.com/wilsonllucena/igreja-conciliada/platform/go/session"
)

type mockAccounts struct {
	accountsservice.Service
	signInFn  func(ctx context.Context, email, password string) (accountsservice.Session, error)
	signUpFn  func(ctx context.Context, input accountsservice.SignUpInput) (accountsservice.Account, error)
	sessionFn func(ctx context.Context, token string) (accountsservice.Session, error)
}

func (m *mockAccounts) SignIn(ctx context.Context, email, password string) (accountsservice.Session, error) {
	if m.signInFn == nil {
		panic("signInFn not configured")
	}
	return m.signInFn(ctx, email, password)
}

func (m *mockAccounts) SignUp(ctx context.Context, input accountsservice.SignUpInput) (accountsservice.Account, error) {
	if m.signUpFn == nil {
		panic("signUpFn not configured")
	}
	return m.signUpFn(ctx, input)
}

func (m *mockAccounts) Session(ctx context.Context, token string) (accountsservice.Session, error) {
	if m.sessionFn == nil {
		panic("sessionFn not configured")
	}
	return m.sessionFn(ctx, token)
}

type mockTenants struct {
	getFn func(ctx context.Context, id uuid.UUID) (tenantsservice.Tenant, error)
}

func (m mockTenants) Get(ctx context.Context, id uuid.UUID) (tenantsservice.Tenant, error) {
	return m.getFn(ctx, id)
}

func TestSessionBackendConvertsProfile(t *testing.T) {
	t.Parallel()

	id, tenantID := uuid.New(), uuid.New()
	backend := SessionBackend{Accounts: &mockAccounts{
		signInFn: func(_ context.Context, email, _ string) (accountsservice.Session, error) {
			return accountsservice.Session{
				AccessToken: "tok",
				Identity:    auth.Identity{ID: id, Email: email},
				Profile:     &accountsservice.Profile{ID: id, TenantID: &tenantID, Name: "Ana", Email: email, Role: access.RoleLeader},
			}, nil
		},
	}}

	got, err := backend.SignIn(context.Background(), "ana@igreja.org", "Secret123")
	require.NoError(t, err)
	require.Equal(t, "tok", got.AccessToken)
	require.NotNil(t, got.Profile)
	require.Equal(t, access.RoleLeader, got.Profile.Role)
	require.Equal(t, tenantID, *got.Profile.TenantID)
}

func TestSessionBackendWithoutProfile(t *testing.T) {
	t.Parallel()

	backend := SessionBackend{Accounts: &mockAccounts{
		sessionFn: func(context.Context, string) (accountsservice.Session, error) {
			return accountsservice.Session{AccessToken: "tok", Identity: auth.Identity{ID: uuid.New()}}, nil
		},
	}}

	got, err := backend.Session(context.Background(), "tok")
	require.NoError(t, err)
	require.Nil(t, got.Profile)
}

func TestSessionBackendMapsUnauthenticated(t *testing.T) {
	t.Parallel()

	backend := SessionBackend{Accounts: &mockAccounts{
		sessionFn: func(context.Context, string) (accountsservice.Session, error) {
			return accountsservice.Session{}, accountsservice.ErrUnauthenticated
		},
	}}

	_, err := backend.Session(context.Background(), "expired")
	require.ErrorIs(t, err, session.ErrUnauthenticated)
}

func TestSessionBackendKeepsAuthErrors(t *testing.T) {
	t.Parallel()

	backend := SessionBackend{Accounts: &mockAccounts{
		signInFn: func(context.Context, string, string) (accountsservice.Session, error) {
			return accountsservice.Session{}, &auth.Error{Kind: auth.KindInvalidCredentials}
		},
	}}

	_, err := backend.SignIn(context.Background(), "ana@igreja.org", "wrong")
	var authErr *auth.Error
	require.ErrorAs(t, err, &authErr)
	require.Equal(t, auth.KindInvalidCredentials, authErr.Kind)
}

func TestSessionBackendSignUpPassesOrganization(t *testing.T) {
	t.Parallel()

	var got accountsservice.SignUpInput
	backend := SessionBackend{Accounts: &mockAccounts{
		signUpFn: func(_ context.Context, input accountsservice.SignUpInput) (accountsservice.Account, error) {
			got = input
			return accountsservice.Account{}, nil
		},
	}}

	require.NoError(t, backend.SignUp(context.Background(), session.SignUpInput{
		Email:            "ana@igreja.org",
		Password:         "Secret123",
		Name:             "Ana",
		OrganizationName: "Igreja Central",
	}))
	require.Equal(t, "Igreja Central", got.OrganizationName)
	require.Equal(t, "ana@igreja.org", got.Email)
}

func TestTenantSourceMapsNotFound(t *testing.T) {
	t.Parallel()

	source := TenantSource{Tenants: mockTenants{getFn: func(context.Context, uuid.UUID) (tenantsservice.Tenant, error) {
		return tenantsservice.Tenant{}, tenantsservice.ErrNotFound
	}}}

	_, err := source.Tenant(context.Background(), uuid.New())
	require.ErrorIs(t, err, session.ErrTenantNotFound)
}

func TestTenantSourcePassesOtherErrors(t *testing.T) {
	t.Parallel()

	boom := errors.New("connection reset")
	source := TenantSource{Tenants: mockTenants{getFn: func(context.Context, uuid.UUID) (tenantsservice.Tenant, error) {
		return tenantsservice.Tenant{}, boom
	}}}

	_, err := source.Tenant(context.Background(), uuid.New())
	require.ErrorIs(t, err, boom)
	require.NotErrorIs(t, err, session.ErrTenantNotFound)
}

func TestTenantSourceCopiesBranding(t *testing.T) {
	t.Parallel()

	logo := "http://localhost:8080/files/church-logos/x.png"
	id := uuid.New()
	source := TenantSource{Tenants: mockTenants{getFn: func(_ context.Context, got uuid.UUID) (tenantsservice.Tenant, error) {
		return tenantsservice.Tenant{ID: got, Name: "Igreja Central", Slug: "igreja-central", Logo: &logo}, nil
	}}}

	church, err := source.Tenant(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, id, church.ID)
	require.Equal(t, "igreja-central", church.Slug)
	require.Equal(t, &logo, church.Logo)
}
