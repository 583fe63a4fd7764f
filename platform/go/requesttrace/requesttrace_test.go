package requesttrace

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	platformauth "github.com/wilsonllucena/igreja-conciliada/platform/go/auth"
	"github.com/wilsonllucena/igreja-conciliada/platform/go/tenant"
)

func TestIntoContextAndFromContext(t *testing.T) {
	audit := AuditInfo{ActorKind: ActorKindUser, UserID: ptr("user-123"), RequestID: "req-abc"}

	ctx := IntoContext(context.Background(), audit)

	got, ok := FromContext(ctx)
	require.True(t, ok)
	require.Equal(t, audit, got)
}

func TestFromContextMissing(t *testing.T) {
	_, ok := FromContext(context.Background())
	require.False(t, ok)
	require.Equal(t, ActorKindAnonymous, FromContextOrAnonymous(context.Background()).ActorKind)
}

func TestFromCredentialsWithScope(t *testing.T) {
	tenantID := uuid.New()
	ctx := tenant.WithScope(context.Background(), tenant.Scope{TenantID: tenantID, Role: "admin"})
	creds := &platformauth.UserCredentials{Id: "user-456"}

	audit, err := FromCredentials(ctx, creds, "req-xyz")
	require.NoError(t, err)
	require.Equal(t, ActorKindUser, audit.ActorKind)
	require.Equal(t, "user-456", *audit.UserID)
	require.Equal(t, tenantID.String(), *audit.TenantID)
	require.Equal(t, "admin", audit.Role)
	require.Equal(t, "req-xyz", audit.RequestID)
	require.Len(t, audit.Fields(), 4)
}

func TestFromCredentialsWithoutScope(t *testing.T) {
	audit, err := FromCredentials(context.Background(), &platformauth.UserCredentials{Id: "user-1"}, "")
	require.NoError(t, err)
	require.Nil(t, audit.TenantID)
	require.Len(t, audit.Fields(), 2)
}

func TestFromCredentialsMissingUser(t *testing.T) {
	_, err := FromCredentials(context.Background(), &platformauth.UserCredentials{}, "req-1")
	require.Error(t, err)
}

func TestSystem(t *testing.T) {
	audit := System("req-sys")
	require.Equal(t, ActorKindSystem, audit.ActorKind)
	require.Nil(t, audit.UserID)
}

func ptr[T any](v T) *T { return &v }
