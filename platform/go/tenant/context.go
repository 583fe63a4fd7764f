package tenant

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Scope captures the resolved tenant for a request or workspace.
// It is attached to the context once the caller's profile has been resolved,
// and every tenant-owned query is filtered by Scope.TenantID.
type Scope struct {
	TenantID uuid.UUID
	UserID   uuid.UUID
	Role     string
}

type ctxKey string

const scopeKey ctxKey = "IGREJA_TENANT_SCOPE"

// WithScope returns a derived context carrying the tenant Scope.
func WithScope(ctx context.Context, scope Scope) context.Context {
	return context.WithValue(ctx, scopeKey, scope)
}

// FromContext extracts the tenant Scope and a boolean indicating presence.
// A scope without a tenant id is reported as absent.
func FromContext(ctx context.Context) (Scope, bool) {
	v := ctx.Value(scopeKey)
	if v == nil {
		return Scope{}, false
	}

	scope, ok := v.(Scope)
	if !ok || scope.TenantID == uuid.Nil {
		return Scope{}, false
	}
	return scope, true
}

// CallerFromContext returns the attached Scope even when it carries no tenant,
// as for a member who signed up without a church.
func CallerFromContext(ctx context.Context) (Scope, bool) {
	scope, ok := ctx.Value(scopeKey).(Scope)
	return scope, ok
}

// Updated is published after tenant branding or settings change (e.g. a new logo).
type Updated struct {
	TenantID  uuid.UUID `json:"tenantId"`
	Logo      *string   `json:"logo,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
}
