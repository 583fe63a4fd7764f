package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/wilsonllucena/igreja-conciliada/contracts"
	accountshandler "github.com/wilsonllucena/igreja-conciliada/domains/accounts/be/handler"
	accountsservice "github.com/wilsonllucena/igreja-conciliada/domains/accounts/be/service"
	appointmentshandler "github.com/wilsonllucena/igreja-conciliada/domains/appointments/be/handler"
	appointmentsservice "github.com/wilsonllucena/igreja-conciliada/domains/appointments/be/service"
	discoveryhandler "github.com/wilsonllucena/igreja-conciliada/domains/discovery/be/handler"
	discoveryservice "github.com/wilsonllucena/igreja-conciliada/domains/discovery/be/service"
	eventshandler "github.com/wilsonllucena/igreja-conciliada/domains/events/be/handler"
	eventsservice "github.com/wilsonllucena/igreja-conciliada/domains/events/be/service"
	leadershandler "github.com/wilsonllucena/igreja-conciliada/domains/leaders/be/handler"
	leadersservice "github.com/wilsonllucena/igreja-conciliada/domains/leaders/be/service"
	membershandler "github.com/wilsonllucena/igreja-conciliada/domains/members/be/handler"
	membersservice "github.com/wilsonllucena/igreja-conciliada/domains/members/be/service"
	profileshandler "github.com/wilsonllucena/igreja-conciliada/domains/profiles/be/handler"
	profilesservice "github.com/wilsonllucena/igreja-conciliada/domains/profiles/be/service"
	tenantshandler "github.com/wilsonllucena/igreja-conciliada/domains/tenants/be/handler"
	tenantsrepo "github.com/wilsonllucena/igreja-conciliada/domains/tenants/be/repo"
	tenantsservice "github.com/wilsonllucena/igreja-conciliada/domains/tenants/be/service"
	platformauth "github.com/wilsonllucena/igreja-conciliada/platform/go/auth"
	"github.com/wilsonllucena/igreja-conciliada/platform/go/tenant"
	tenantmiddleware "github.com/wilsonllucena/igreja-conciliada/platform/go/tenant/middleware"
)

var (
	churchID = uuid.MustParse("6f1c2a9e-8d4b-4b1e-9a57-3c2d1e0f9a10")
	adminID  = uuid.MustParse("1a2b3c4d-0000-4000-8000-000000000001")
	memberID = uuid.MustParse("1a2b3c4d-0000-4000-8000-000000000002")
)

type stubMembers struct {
	membersservice.Service
	listFn func(ctx context.Context) ([]membersservice.Member, error)
}

func (s stubMembers) List(ctx context.Context) ([]membersservice.Member, error) {
	if s.listFn == nil {
		panic("listFn not configured")
	}
	return s.listFn(ctx)
}

type stubDiscovery struct {
	discoveryservice.Service
	eventsFn func(ctx context.Context) ([]discoveryservice.Event, error)
}

func (s stubDiscovery) ListPublicEvents(ctx context.Context) ([]discoveryservice.Event, error) {
	if s.eventsFn == nil {
		panic("eventsFn not configured")
	}
	return s.eventsFn(ctx)
}

type stubLeaders struct {
	leadersservice.Service
	createUserFn func(ctx context.Context, id uuid.UUID, password string) (leadersservice.Leader, error)
}

func (s stubLeaders) CreateUserForLeader(ctx context.Context, id uuid.UUID, password string) (leadersservice.Leader, error) {
	if s.createUserFn == nil {
		panic("createUserFn not configured")
	}
	return s.createUserFn(ctx, id, password)
}

type stubScopes map[uuid.UUID]tenant.Scope

func (s stubScopes) ResolveScope(_ context.Context, userID uuid.UUID) (tenant.Scope, error) {
	scope, ok := s[userID]
	if !ok {
		return tenant.Scope{}, tenantmiddleware.ErrNoProfile
	}
	return scope, nil
}

func verifyTestToken(_ context.Context, token string) (platformauth.Identity, error) {
	switch token {
	case "admin-token":
		return platformauth.Identity{ID: adminID, Email: "admin@igreja.app"}, nil
	case "member-token":
		return platformauth.Identity{ID: memberID, Email: "membro@igreja.app"}, nil
	default:
		return platformauth.Identity{}, errors.New("invalid token")
	}
}

type routerOptions struct {
	members   stubMembers
	discovery stubDiscovery
	leaders   stubLeaders
	ready     func(ctx context.Context) error
}

func newTestRouter(t *testing.T, opts routerOptions) http.Handler {
	t.Helper()

	logger := zaptest.NewLogger(t)
	contract, err := contracts.Load()
	require.NoError(t, err)

	scopes := stubScopes{
		adminID:  {TenantID: churchID, UserID: adminID, Role: "admin"},
		memberID: {TenantID: churchID, UserID: memberID, Role: "member"},
	}

	return newRouter(routerConfig{
		Logger:       logger,
		Contract:     contract,
		Authenticate: platformauth.Authenticate(platformauth.VerifierFunc(verifyTestToken)),
		Scope:        tenantmiddleware.WithTenantScope(scopes, tenantmiddleware.Config{}),
		Ready:        opts.ready,
	}, handlers{
		accounts:     accountshandler.New(struct{ accountsservice.Service }{}, logger),
		members:      membershandler.New(opts.members, logger),
		leaders:      leadershandler.New(opts.leaders, logger),
		appointments: appointmentshandler.New(struct{ appointmentsservice.Service }{}, logger),
		events:       eventshandler.New(struct{ eventsservice.Service }{}, logger),
		profiles:     profileshandler.New(struct{ profilesservice.Service }{}, logger),
		discovery:    discoveryhandler.New(opts.discovery, logger),
		tenants:      tenantshandler.New(tenantsservice.New(tenantsrepo.NewMemoryRepository(), tenantsservice.Deps{}), logger),
	})
}

func serve(h http.Handler, method, target, token string, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthAndReadiness(t *testing.T) {
	t.Parallel()

	healthy := newTestRouter(t, routerOptions{ready: func(context.Context) error { return nil }})
	require.Equal(t, http.StatusOK, serve(healthy, http.MethodGet, "/healthz", "", "").Code)
	require.Equal(t, http.StatusOK, serve(healthy, http.MethodGet, "/readyz", "", "").Code)

	degraded := newTestRouter(t, routerOptions{ready: func(context.Context) error { return errors.New("database: connection refused") }})
	rec := serve(degraded, http.MethodGet, "/readyz", "", "")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.NotContains(t, rec.Body.String(), "connection refused")
}

func TestDocsServeEmbeddedContract(t *testing.T) {
	t.Parallel()

	h := newTestRouter(t, routerOptions{})

	rec := serve(h, http.MethodGet, "/openapi/api.json", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	require.Equal(t, "Igreja Conciliada API", doc["info"].(map[string]any)["title"])

	require.Equal(t, http.StatusNotFound, serve(h, http.MethodGet, "/openapi/other.json", "", "").Code)

	ui := serve(h, http.MethodGet, "/docs", "", "")
	require.Equal(t, http.StatusOK, ui.Code)
	require.Contains(t, ui.Body.String(), "/openapi/api.json")
}

func TestProtectedRouteRequiresBearerToken(t *testing.T) {
	t.Parallel()

	h := newTestRouter(t, routerOptions{})

	require.Equal(t, http.StatusUnauthorized, serve(h, http.MethodGet, "/api/v1/members", "", "").Code)
	require.Equal(t, http.StatusUnauthorized, serve(h, http.MethodGet, "/api/v1/members", "forged", "").Code)
}

func TestMembersListRunsInCallerTenant(t *testing.T) {
	t.Parallel()

	h := newTestRouter(t, routerOptions{members: stubMembers{
		listFn: func(ctx context.Context) ([]membersservice.Member, error) {
			scope, ok := tenant.FromContext(ctx)
			require.True(t, ok)
			require.Equal(t, churchID, scope.TenantID)
			return []membersservice.Member{{ID: uuid.New(), TenantID: churchID, Name: "Ana", Status: membersservice.StatusActive}}, nil
		},
	}})

	rec := serve(h, http.MethodGet, "/api/v1/members", "admin-token", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Items []membershandler.Member `json:"items"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Items, 1)
	require.Equal(t, "Ana", body.Items[0].Name)
}

func TestAdminRoutesRejectMembers(t *testing.T) {
	t.Parallel()

	h := newTestRouter(t, routerOptions{})

	for _, target := range []string{"/api/v1/users", "/api/v1/users/" + adminID.String()} {
		rec := serve(h, http.MethodGet, target, "member-token", "")
		require.Equal(t, http.StatusForbidden, rec.Code, target)
	}
	rec := serve(h, http.MethodPatch, "/api/v1/tenant/settings", "member-token", `{"name":"Outra"}`)
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestLeaderLoginRequiresAdmin(t *testing.T) {
	t.Parallel()

	leaderID := uuid.New()
	calls := 0
	h := newTestRouter(t, routerOptions{leaders: stubLeaders{
		createUserFn: func(_ context.Context, id uuid.UUID, password string) (leadersservice.Leader, error) {
			calls++
			require.Equal(t, leaderID, id)
			require.Equal(t, "Secret123", password)
			linked := uuid.New()
			return leadersservice.Leader{ID: id, TenantID: churchID, Name: "Pr. Paulo", UserID: &linked}, nil
		},
	}})

	target := "/api/v1/leaders/" + leaderID.String() + "/user"
	rec := serve(h, http.MethodPost, target, "member-token", `{"password":"Secret123"}`)
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Zero(t, calls)

	rec = serve(h, http.MethodPost, target, "admin-token", `{"password":"Secret123"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Equal(t, 1, calls)
}

func TestPublicRoutesAllowAnonymousCallers(t *testing.T) {
	t.Parallel()

	h := newTestRouter(t, routerOptions{discovery: stubDiscovery{
		eventsFn: func(ctx context.Context) ([]discoveryservice.Event, error) {
			_, ok := tenant.FromContext(ctx)
			require.False(t, ok)
			return nil, nil
		},
	}})

	rec := serve(h, http.MethodGet, "/api/v1/public/events", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"items":[]}`, rec.Body.String())
}

func TestContractRejectsMalformedRequests(t *testing.T) {
	t.Parallel()

	h := newTestRouter(t, routerOptions{})

	rec := serve(h, http.MethodPost, "/api/v1/auth/signin", "", `{"email":1,"password":"Secret123"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Header().Get("Content-Type"), "application/problem+json")

	require.Equal(t, http.StatusNotFound, serve(h, http.MethodGet, "/api/v1/sermons", "admin-token", "").Code)
}
