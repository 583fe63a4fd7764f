// Package app wires the CLI: configuration, the in-process services and the
// workspace every command runs against.
package app

import (
	"context"
	"errors"
	"io"

	"go.uber.org/zap"

	accountsservice "github.com/wilsonllucena/igreja-conciliada/domains/accounts/be/service"
	appointmentsservice "github.com/wilsonllucena/igreja-conciliada/domains/appointments/be/service"
	eventsservice "github.com/wilsonllucena/igreja-conciliada/domains/events/be/service"
	leadersservice "github.com/wilsonllucena/igreja-conciliada/domains/leaders/be/service"
	membersservice "github.com/wilsonllucena/igreja-conciliada/domains/members/be/service"
	profilesservice "github.com/wilsonllucena/igreja-conciliada/domains/profiles/be/service"
	tenantsservice "github.com/wilsonllucena/igreja-conciliada/domains/tenants/be/service"
	"github.com/wilsonllucena/igreja-conciliada/platform/go/notify"
	"github.com/wilsonllucena/igreja-conciliada/platform/go/pubsub"
	"github.com/wilsonllucena/igreja-conciliada/platform/go/session"
	"github.com/wilsonllucena/igreja-conciliada/platform/go/tenant"
	"github.com/wilsonllucena/igreja-conciliada/platform/go/workspace"
)

// TenantService is the part of the tenants service the CLI drives.
type TenantService interface {
	TenantGetter
	Current(ctx context.Context) (tenantsservice.Tenant, error)
	Stats(ctx context.Context) (tenantsservice.Stats, error)
	UpdateSettings(ctx context.Context, input tenantsservice.SettingsInput) (tenantsservice.Tenant, error)
	UploadLogo(ctx context.Context, filename, contentType string, r io.Reader) (tenantsservice.Tenant, error)
}

// Services are the domain services a command can call.
type Services struct {
	Accounts     accountsservice.Service
	Members      membersservice.Service
	Leaders      leadersservice.Service
	Appointments appointmentsservice.Service
	Events       eventsservice.Service
	Profiles     profilesservice.Service
	Tenants      TenantService
	// Updates carries tenant.Updated between the tenants service and the
	// workspace's resolver.
	Updates *pubsub.Topic[tenant.Updated]
}

// Options configures New.
type Options struct {
	Tokens   session.TokenStore
	Notifier notify.Notifier
	Logger   *zap.Logger
	// Close releases whatever backs Services.
	Close func() error
}

// App is one CLI invocation: the services and the restored workspace.
type App struct {
	Services
	Workspace *workspace.Workspace
	Logger    *zap.Logger

	close func() error
}

// Opener builds the App for a command.
type Opener func(ctx context.Context) (*App, error)

// New opens a workspace over svc and restores the persisted session.
func New(ctx context.Context, svc Services, opts Options) (*App, error) {
	if svc.Accounts == nil || svc.Tenants == nil {
		return nil, errors.New("accounts and tenants services are required")
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	ws, err := workspace.Open(ctx, workspace.Config{
		Backend:  SessionBackend{Accounts: svc.Accounts},
		Tenants:  TenantSource{Tenants: svc.Tenants},
		Tokens:   opts.Tokens,
		Updates:  svc.Updates,
		Notifier: opts.Notifier,
		Logger:   opts.Logger,
	})
	if err != nil {
		return nil, err
	}
	return &App{Services: svc, Workspace: ws, Logger: opts.Logger, close: opts.Close}, nil
}

// Context is the workspace context of the signed-in user.
func (a *App) Context(ctx context.Context) (context.Context, error) {
	return a.Workspace.Context(ctx)
}

// Close releases the workspace and then the backend.
func (a *App) Close() error {
	a.Workspace.Close()
	if a.close == nil {
		return nil
	}
	return a.close()
}

// Fail shows err the way collections do and marks it as reported.
func (a *App) Fail(err error, fallback string) error {
	a.Workspace.Notifier().Error(workspace.Message(err, fallback))
	return Reported(err)
}

// Succeed shows a success message.
func (a *App) Succeed(message string) {
	a.Workspace.Notifier().Success(message)
}
