// Package workspace is the application context of a client process: one
// session store, one tenant resolver and the collections built on them.
package workspace

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wilsonllucena/igreja-conciliada/platform/go/auth"
	"github.com/wilsonllucena/igreja-conciliada/platform/go/notify"
	"github.com/wilsonllucena/igreja-conciliada/platform/go/pubsub"
	"github.com/wilsonllucena/igreja-conciliada/platform/go/requesttrace"
	"github.com/wilsonllucena/igreja-conciliada/platform/go/session"
	"github.com/wilsonllucena/igreja-conciliada/platform/go/tenant"
)

// ErrUnauthenticated is returned by RequireSession and by collections used
// while signed out.
var ErrUnauthenticated = session.ErrUnauthenticated

// Config wires a Workspace.
type Config struct {
	Backend session.Backend
	Tenants session.TenantSource
	// Tokens persists the session between runs; nil keeps it in memory.
	Tokens session.TokenStore
	// Updates is shared with whatever publishes tenant changes (logo uploads).
	Updates  *pubsub.Topic[tenant.Updated]
	Notifier notify.Notifier
	Logger   *zap.Logger
}

// Workspace owns the session lifecycle of one client.
type Workspace struct {
	session  *session.Store
	tenants  *session.TenantResolver
	notifier notify.Notifier
	logger   *zap.Logger
}

// Open builds the workspace and restores any persisted session.
func Open(ctx context.Context, cfg Config) (*Workspace, error) {
	if cfg.Backend == nil {
		return nil, errors.New("workspace: session backend is required")
	}
	if cfg.Tenants == nil {
		return nil, errors.New("workspace: tenant source is required")
	}
	if cfg.Notifier == nil {
		cfg.Notifier = notify.Nop{}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	store := session.NewStore(cfg.Backend, cfg.Tokens, session.Options{Notifier: cfg.Notifier, Logger: cfg.Logger})
	resolver := session.NewTenantResolver(store, cfg.Tenants, cfg.Updates, cfg.Logger)

	w := &Workspace{
		session:  store,
		tenants:  resolver,
		notifier: cfg.Notifier,
		logger:   cfg.Logger.With(zap.String("component", "workspace")),
	}
	store.RestoreSession(ctx)
	return w, nil
}

func (w *Workspace) Session() *session.Store          { return w.session }
func (w *Workspace) Tenants() *session.TenantResolver { return w.tenants }
func (w *Workspace) Notifier() notify.Notifier        { return w.notifier }
func (w *Workspace) Logger() *zap.Logger              { return w.logger }

// RequireSession guards every view that needs a signed-in identity.
func (w *Workspace) RequireSession() error {
	if _, ok := w.session.Identity(); !ok {
		return ErrUnauthenticated
	}
	return nil
}

// Context attaches the caller's credentials, tenant scope and audit record to
// ctx, the way the API middleware chain does for a request. A profile without a
// church yields a scope with a nil tenant.
func (w *Workspace) Context(ctx context.Context) (context.Context, error) {
	identity, ok := w.session.Identity()
	if !ok {
		return ctx, ErrUnauthenticated
	}

	creds := auth.Credentials(identity, w.session.AccessToken())
	ctx = auth.WithUser(ctx, creds)

	if profile, ok := w.session.Profile(); ok {
		scope := tenant.Scope{UserID: profile.ID, Role: string(profile.Role)}
		if profile.TenantID != nil {
			scope.TenantID = *profile.TenantID
		}
		ctx = tenant.WithScope(ctx, scope)
	}

	audit, err := requesttrace.FromCredentials(ctx, creds, uuid.NewString())
	if err != nil {
		return ctx, err
	}
	return requesttrace.IntoContext(ctx, audit), nil
}

// Close releases the resolver and the store.
func (w *Workspace) Close() {
	w.tenants.Close()
	w.session.Close()
}
