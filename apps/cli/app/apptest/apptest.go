// Package apptest builds an app.App over in-memory services for command tests.
package apptest

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap/zaptest"

	"github.com/wilsonllucena/igreja-conciliada/apps/cli/app"
	accountsservice "github.com/wilsonllucena/igreja-conciliada/domains/accounts/be/service"
	tenantsservice "github.com/wilsonllucena/igreja-conciliada/domains/tenants/be/service"
	"github.com/wilsonllucena/igreja-conciliada/platform/go/access"
	"github.com/wilsonllucena/igreja-conciliada/platform/go/auth"
	"github.com/wilsonllucena/igreja-conciliada/platform/go/notify"
	"github.com/wilsonllucena/igreja-conciliada/platform/go/session"
)

// Token is the access token of the fixture session.
const Token = "test-token"

// Accounts serves one fixed session.
type Accounts struct {
	accountsservice.Service
	Current accountsservice.Session

	UpdatePasswordFn func(ctx context.Context, password string) error
}

func (a *Accounts) SignIn(_ context.Context, email, password string) (accountsservice.Session, error) {
	if email != a.Current.Identity.Email || password == "" {
		return accountsservice.Session{}, &auth.Error{Kind: auth.KindInvalidCredentials}
	}
	return a.Current, nil
}

func (a *Accounts) SignOut(context.Context, string) error { return nil }

func (a *Accounts) Session(_ context.Context, token string) (accountsservice.Session, error) {
	if token != a.Current.AccessToken {
		return accountsservice.Session{}, accountsservice.ErrUnauthenticated
	}
	return a.Current, nil
}

func (a *Accounts) UpdatePassword(ctx context.Context, password string) error {
	if a.UpdatePasswordFn == nil {
		panic("UpdatePasswordFn not configured")
	}
	return a.UpdatePasswordFn(ctx, password)
}

// Tenants serves one church. Methods other than Get panic unless overridden
// by embedding.
type Tenants struct {
	app.TenantService
	Church tenantsservice.Tenant
}

func (t *Tenants) Get(_ context.Context, id uuid.UUID) (tenantsservice.Tenant, error) {
	if id != t.Church.ID {
		return tenantsservice.Tenant{}, tenantsservice.ErrNotFound
	}
	return t.Church, nil
}

// Fixture is a signed-in user of one church.
type Fixture struct {
	UserID   uuid.UUID
	TenantID uuid.UUID
	Role     access.Role
	Notifier *notify.Recorder
	Tokens   *session.MemoryTokenStore
	Accounts *Accounts
	Tenants  *Tenants
}

// NewFixture signs in a user with role in the church "Igreja Central".
func NewFixture(t testing.TB, role access.Role) *Fixture {
	t.Helper()

	userID, tenantID := uuid.New(), uuid.New()
	tokens := &session.MemoryTokenStore{}
	if err := tokens.Save(context.Background(), session.Token{AccessToken: Token}); err != nil {
		t.Fatalf("save token: %v", err)
	}

	return &Fixture{
		UserID:   userID,
		TenantID: tenantID,
		Role:     role,
		Notifier: &notify.Recorder{},
		Tokens:   tokens,
		Accounts: &Accounts{Current: accountsservice.Session{
			AccessToken: Token,
			ExpiresAt:   time.Now().Add(time.Hour),
			Identity:    auth.Identity{ID: userID, Email: "ana@igreja.org", Name: "Ana"},
			Profile: &accountsservice.Profile{
				ID:       userID,
				TenantID: &tenantID,
				Name:     "Ana Souza",
				Email:    "ana@igreja.org",
				Role:     role,
			},
		}},
		Tenants: &Tenants{Church: tenantsservice.Tenant{ID: tenantID, Name: "Igreja Central", Slug: "igreja-central"}},
	}
}

// SignOut forgets the stored token so the next App starts signed out.
func (f *Fixture) SignOut(t testing.TB) {
	t.Helper()
	if err := f.Tokens.Clear(context.Background()); err != nil {
		t.Fatalf("clear token: %v", err)
	}
}

// Opener returns an app.Opener over svc. Accounts and Tenants default to the
// fixture's.
func (f *Fixture) Opener(t testing.TB, svc app.Services) app.Opener {
	t.Helper()
	if svc.Accounts == nil {
		svc.Accounts = f.Accounts
	}
	if svc.Tenants == nil {
		svc.Tenants = f.Tenants
	}
	logger := zaptest.NewLogger(t)

	return func(ctx context.Context) (*app.App, error) {
		return app.New(ctx, svc, app.Options{
			Tokens:   f.Tokens,
			Notifier: f.Notifier,
			Logger:   logger,
		})
	}
}
