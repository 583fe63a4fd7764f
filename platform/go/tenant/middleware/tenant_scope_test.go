package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	platformauth "github.com/wilsonllucena/igreja-conciliada/platform/go/auth"
	"github.com/wilsonllucena/igreja-conciliada/platform/go/tenant"
)

type resolverFunc func(ctx context.Context, userID uuid.UUID) (tenant.Scope, error)

func (f resolverFunc) ResolveScope(ctx context.Context, userID uuid.UUID) (tenant.Scope, error) {
	return f(ctx, userID)
}

func serveAs(t *testing.T, h func(http.Handler) http.Handler, userID string) (*httptest.ResponseRecorder, *tenant.Scope) {
	t.Helper()

	var seen *tenant.Scope
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if scope, ok := tenant.CallerFromContext(r.Context()); ok {
			seen = &scope
		}
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if userID != "" {
		req = req.WithContext(platformauth.WithUser(req.Context(), &platformauth.UserCredentials{Id: userID}))
	}
	rec := httptest.NewRecorder()
	h(inner).ServeHTTP(rec, req)
	return rec, seen
}

func TestWithTenantScopeAttachesAndCaches(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	tenantID := uuid.New()
	var calls atomic.Int32
	resolver := resolverFunc(func(_ context.Context, got uuid.UUID) (tenant.Scope, error) {
		calls.Add(1)
		require.Equal(t, userID, got)
		return tenant.Scope{TenantID: tenantID, Role: "admin"}, nil
	})

	scopeCache, err := NewScopeCache(100, time.Minute)
	require.NoError(t, err)
	t.Cleanup(scopeCache.Close)

	mw := WithTenantScope(resolver, Config{Cache: scopeCache})

	for i := 0; i < 2; i++ {
		rec, scope := serveAs(t, mw, userID.String())
		require.Equal(t, http.StatusOK, rec.Code)
		require.NotNil(t, scope)
		require.Equal(t, tenantID, scope.TenantID)
		require.Equal(t, userID, scope.UserID)
	}
	require.EqualValues(t, 1, calls.Load())

	scopeCache.Invalidate(userID)
	_, _ = serveAs(t, mw, userID.String())
	require.EqualValues(t, 2, calls.Load())
}

func TestWithTenantScopePassThrough(t *testing.T) {
	t.Parallel()

	mw := WithTenantScope(resolverFunc(func(context.Context, uuid.UUID) (tenant.Scope, error) {
		return tenant.Scope{}, ErrNoProfile
	}), Config{})

	rec, scope := serveAs(t, mw, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Nil(t, scope)

	rec, scope = serveAs(t, mw, uuid.NewString())
	require.Equal(t, http.StatusOK, rec.Code)
	require.Nil(t, scope)
}

func TestWithTenantScopeErrors(t *testing.T) {
	t.Parallel()

	mw := WithTenantScope(resolverFunc(func(context.Context, uuid.UUID) (tenant.Scope, error) {
		return tenant.Scope{}, errors.New("db down")
	}), Config{})

	rec, _ := serveAs(t, mw, "not-a-uuid")
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = serveAs(t, mw, uuid.NewString())
	require.Equal(t, http.StatusInternalServerError, rec.Code)
}
