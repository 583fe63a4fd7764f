package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/wilsonllucena/igreja-conciliada/domains/accounts/be/service"
	"github.com/wilsonllucena/igreja-conciliada/platform/go/access"
	platformauth "github.com/wilsonllucena/igreja-conciliada/platform/go/auth"
	"github.com/wilsonllucena/igreja-conciliada/platform/go/problem"
	"github.com/wilsonllucena/igreja-conciliada/platform/go/saga"
	"github.com/wilsonllucena/igreja-conciliada/platform/go/validation"
)

type mockService struct {
	signUpFn         func(ctx context.Context, input service.SignUpInput) (service.Account, error)
	signInFn         func(ctx context.Context, email, password string) (service.Session, error)
	signOutFn        func(ctx context.Context, token string) error
	sessionFn        func(ctx context.Context, token string) (service.Session, error)
	updatePasswordFn func(ctx context.Context, password string) error
	createUserFn     func(ctx context.Context, input service.CreateUserInput) (service.Account, error)
}

func (m *mockService) SignUp(ctx context.Context, input service.SignUpInput) (service.Account, error) {
	if m.signUpFn == nil {
		panic("signUpFn not configured")
	}
	return m.signUpFn(ctx, input)
}

func (m *mockService) SignIn(ctx context.Context, email, password string) (service.Session, error) {
	if m.signInFn == nil {
		panic("signInFn not configured")
	}
	return m.signInFn(ctx, email, password)
}

func (m *mockService) SignOut(ctx context.Context, token string) error {
	if m.signOutFn == nil {
		panic("signOutFn not configured")
	}
	return m.signOutFn(ctx, token)
}

func (m *mockService) Session(ctx context.Context, token string) (service.Session, error) {
	if m.sessionFn == nil {
		panic("sessionFn not configured")
	}
	return m.sessionFn(ctx, token)
}

func (m *mockService) UpdatePassword(ctx context.Context, password string) error {
	if m.updatePasswordFn == nil {
		panic("updatePasswordFn not configured")
	}
	return m.updatePasswordFn(ctx, password)
}

func (m *mockService) CreateUser(ctx context.Context, input service.CreateUserInput) (service.Account, error) {
	if m.createUserFn == nil {
		panic("createUserFn not configured")
	}
	return m.createUserFn(ctx, input)
}

func (m *mockService) Provision(context.Context, service.ProvisionInput) (service.Account, error) {
	panic("Provision not used by handlers")
}

func (m *mockService) Deprovision(context.Context, uuid.UUID) error {
	panic("Deprovision not used by handlers")
}

func newRouter(t *testing.T, svc service.Service) http.Handler {
	t.Helper()
	h := New(svc, zaptest.NewLogger(t))
	r := chi.NewRouter()
	r.Post("/auth/signup", h.SignUp)
	r.Post("/auth/signin", h.SignIn)
	r.Post("/auth/signout", h.SignOut)
	r.Get("/auth/session", h.Session)
	r.Put("/auth/password", h.UpdatePassword)
	r.Post("/users", h.CreateUser)
	return r
}

func do(t *testing.T, router http.Handler, method, path, body, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeProblem(t *testing.T, rec *httptest.ResponseRecorder) problem.Details {
	t.Helper()
	var p problem.Details
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
	return p
}

func TestSignUp(t *testing.T) {
	t.Parallel()

	tenantID := uuid.New()
	svc := &mockService{
		signUpFn: func(_ context.Context, input service.SignUpInput) (service.Account, error) {
			require.Equal(t, "Igreja Luz", input.OrganizationName)
			id := uuid.New()
			return service.Account{
				Identity: platformauth.Identity{ID: id, Email: input.Email},
				Profile:  service.Profile{ID: id, TenantID: &tenantID, Name: input.Name, Email: input.Email, Role: access.RoleAdmin},
			}, nil
		},
	}

	rec := do(t, newRouter(t, svc), http.MethodPost, "/auth/signup",
		`{"email":"a@example.com","password":"Senha123","name":"Ana Luz","organizationName":"Igreja Luz"}`, "")
	require.Equal(t, http.StatusCreated, rec.Code)

	var body Account
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "admin", body.Profile.Role)
	require.Equal(t, tenantID, *body.Profile.TenantID)
}

func TestSignUpErrors(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{
			name:   "already registered",
			err:    &saga.Error{Result: saga.Result{Outcome: saga.OutcomeFailed, FailedStep: "create_identity", Cause: platformauth.NewError(platformauth.KindAlreadyRegistered, nil)}},
			status: http.StatusConflict,
			code:   "already_registered",
		},
		{
			name:   "validation",
			err:    &validation.Error{Fields: map[string][]string{"password": {"must contain a digit"}}},
			status: http.StatusBadRequest,
		},
		{
			name:   "cleanup required",
			err:    &saga.Error{Result: saga.Result{Outcome: saga.OutcomeCleanupRequired, FailedStep: "create_profile", Cause: context.DeadlineExceeded}},
			status: http.StatusInternalServerError,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			svc := &mockService{
				signUpFn: func(context.Context, service.SignUpInput) (service.Account, error) {
					return service.Account{}, tc.err
				},
			}
			rec := do(t, newRouter(t, svc), http.MethodPost, "/auth/signup", `{"email":"a@example.com","password":"x","name":"Ana"}`, "")
			require.Equal(t, tc.status, rec.Code)
			p := decodeProblem(t, rec)
			require.Equal(t, tc.code, p.Code)
			if tc.code == "already_registered" {
				require.Equal(t, platformauth.KindAlreadyRegistered.Message(), p.Detail)
			}
		})
	}
}

func TestSignUpRejectsUnknownFields(t *testing.T) {
	t.Parallel()

	rec := do(t, newRouter(t, &mockService{}), http.MethodPost, "/auth/signup", `{"email":"a@example.com","admin":true}`, "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSignIn(t *testing.T) {
	t.Parallel()

	expires := time.Now().Add(time.Hour).UTC().Truncate(time.Second)
	svc := &mockService{
		signInFn: func(_ context.Context, email, password string) (service.Session, error) {
			if password != "Senha123" {
				return service.Session{}, platformauth.NewError(platformauth.KindInvalidCredentials, nil)
			}
			return service.Session{AccessToken: "tok", ExpiresAt: expires, Identity: platformauth.Identity{ID: uuid.New(), Email: email}}, nil
		},
	}
	router := newRouter(t, svc)

	rec := do(t, router, http.MethodPost, "/auth/signin", `{"email":"a@example.com","password":"Senha123"}`, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var body Session
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "tok", body.AccessToken)
	require.Nil(t, body.Profile)
	require.True(t, expires.Equal(*body.ExpiresAt))

	rec = do(t, router, http.MethodPost, "/auth/signin", `{"email":"a@example.com","password":"nope"}`, "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "invalid_credentials", decodeProblem(t, rec).Code)
}

func TestSignOutAndSessionNeedToken(t *testing.T) {
	t.Parallel()

	var signedOut string
	svc := &mockService{
		signOutFn: func(_ context.Context, token string) error {
			signedOut = token
			return nil
		},
		sessionFn: func(context.Context, string) (service.Session, error) {
			return service.Session{}, service.ErrUnauthenticated
		},
	}
	router := newRouter(t, svc)

	require.Equal(t, http.StatusUnauthorized, do(t, router, http.MethodPost, "/auth/signout", "", "").Code)
	require.Equal(t, http.StatusNoContent, do(t, router, http.MethodPost, "/auth/signout", "", "abc").Code)
	require.Equal(t, "abc", signedOut)

	require.Equal(t, http.StatusUnauthorized, do(t, router, http.MethodGet, "/auth/session", "", "expired").Code)
}

func TestUpdatePassword(t *testing.T) {
	t.Parallel()

	svc := &mockService{
		updatePasswordFn: func(_ context.Context, password string) error {
			if password == "fraca" {
				verr := &validation.Error{}
				verr.CheckPassword("password", password)
				return verr
			}
			return nil
		},
	}
	router := newRouter(t, svc)

	rec := do(t, router, http.MethodPut, "/auth/password", `{"password":"fraca"}`, "tok")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, decodeProblem(t, rec).Errors, "password")

	require.Equal(t, http.StatusNoContent, do(t, router, http.MethodPut, "/auth/password", `{"password":"Nova12345"}`, "tok").Code)
}

func TestCreateUser(t *testing.T) {
	t.Parallel()

	t.Run("forbidden", func(t *testing.T) {
		t.Parallel()
		svc := &mockService{
			createUserFn: func(context.Context, service.CreateUserInput) (service.Account, error) {
				return service.Account{}, service.ErrForbidden
			},
		}
		rec := do(t, newRouter(t, svc), http.MethodPost, "/users", `{"name":"Novo","email":"n@example.com","password":"Senha123","role":"member"}`, "tok")
		require.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("created", func(t *testing.T) {
		t.Parallel()
		id := uuid.New()
		svc := &mockService{
			createUserFn: func(_ context.Context, input service.CreateUserInput) (service.Account, error) {
				require.Equal(t, "leader", input.Role)
				return service.Account{
					Identity: platformauth.Identity{ID: id, Email: input.Email},
					Profile:  service.Profile{ID: id, Name: input.Name, Email: input.Email, Role: access.RoleLeader},
				}, nil
			},
		}
		rec := do(t, newRouter(t, svc), http.MethodPost, "/users", `{"name":"Novo Lider","email":"n@example.com","password":"Senha123","role":"leader"}`, "tok")
		require.Equal(t, http.StatusCreated, rec.Code)
		require.Equal(t, "/api/v1/users/"+id.String(), rec.Header().Get("Location"))
	})
}
