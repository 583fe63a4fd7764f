// Package requesttrace records who is acting on a request so services can
// attribute the changes they log.
package requesttrace

import (
	"context"
	"errors"

	"go.uber.org/zap"

	platformauth "github.com/wilsonllucena/igreja-conciliada/platform/go/auth"
	"github.com/wilsonllucena/igreja-conciliada/platform/go/tenant"
)

type contextKey string

const (
	ctxAuditInfo contextKey = "IGREJA_REQUEST_TRACE"
)

// ActorKind represents who initiated a request.
type ActorKind string

const (
	ActorKindUser      ActorKind = "user"
	ActorKindAnonymous ActorKind = "anonymous"
	ActorKindSystem    ActorKind = "system"
)

// AuditInfo captures request-scoped metadata needed for traceability.
// UserID is set only when ActorKind is user; TenantID and Role only once the
// caller's profile has been resolved.
type AuditInfo struct {
	ActorKind ActorKind
	UserID    *string
	TenantID  *string
	Role      string
	RequestID string
}

// IntoContext stores the AuditInfo in the provided context.
func IntoContext(ctx context.Context, audit AuditInfo) context.Context {
	return context.WithValue(ctx, ctxAuditInfo, audit)
}

// FromContext extracts the AuditInfo from context, returning false when not present.
func FromContext(ctx context.Context) (AuditInfo, bool) {
	if ctx == nil {
		return AuditInfo{}, false
	}
	v := ctx.Value(ctxAuditInfo)
	if v == nil {
		return AuditInfo{}, false
	}

	audit, ok := v.(AuditInfo)
	return audit, ok
}

// FromContextOrAnonymous returns the AuditInfo stored on the context, or an anonymous record when absent.
func FromContextOrAnonymous(ctx context.Context) AuditInfo {
	if audit, ok := FromContext(ctx); ok {
		return audit
	}
	return Anonymous("")
}

// FromCredentials builds an AuditInfo from authenticated user credentials and a request ID.
// The tenant and role are taken from ctx when a scope has been attached.
func FromCredentials(ctx context.Context, creds *platformauth.UserCredentials, requestID string) (AuditInfo, error) {
	if creds == nil {
		return AuditInfo{}, errors.New("credentials are required to build audit info")
	}
	if creds.Id == "" {
		return AuditInfo{}, errors.New("user id is required to build audit info")
	}

	audit := AuditInfo{
		ActorKind: ActorKindUser,
		UserID:    &creds.Id,
		RequestID: requestID,
	}
	if scope, ok := tenant.FromContext(ctx); ok {
		tid := scope.TenantID.String()
		audit.TenantID = &tid
		audit.Role = scope.Role
	}
	return audit, nil
}

// Anonymous builds an AuditInfo for unauthenticated requests (e.g., signup) where no user ID exists yet.
func Anonymous(requestID string) AuditInfo {
	return AuditInfo{ActorKind: ActorKindAnonymous, RequestID: requestID}
}

// System builds an AuditInfo for background/system operations.
func System(requestID string) AuditInfo {
	return AuditInfo{ActorKind: ActorKindSystem, RequestID: requestID}
}

// Fields renders the audit info as log fields.
func (a AuditInfo) Fields() []zap.Field {
	fields := []zap.Field{zap.String("actor_kind", string(a.ActorKind))}
	if a.UserID != nil && *a.UserID != "" {
		fields = append(fields, zap.String("user_id", *a.UserID))
	}
	if a.TenantID != nil {
		fields = append(fields, zap.String("tenant_id", *a.TenantID))
	}
	if a.Role != "" {
		fields = append(fields, zap.String("role", a.Role))
	}
	return fields
}
