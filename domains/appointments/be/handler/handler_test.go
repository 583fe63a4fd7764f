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

	"github.com/wilsonllucena/igreja-conciliada/domains/appointments/be/service"
	"github.com/wilsonllucena/igreja-conciliada/platform/go/problem"
	"github.com/wilsonllucena/igreja-conciliada/platform/go/validation"
)

type mockService struct {
	listFn         func(ctx context.Context) ([]service.Appointment, error)
	listRangeFn    func(ctx context.Context, r service.Range) ([]service.Appointment, error)
	createFn       func(ctx context.Context, input service.CreateInput) (service.Appointment, error)
	getFn          func(ctx context.Context, id uuid.UUID) (service.Appointment, error)
	updateFn       func(ctx context.Context, id uuid.UUID, input service.UpdateInput) (service.Appointment, error)
	completeFn     func(ctx context.Context, id uuid.UUID) (service.Appointment, error)
	updateStatusFn func(ctx context.Context, ids []uuid.UUID, status string) (int, error)
	deleteFn       func(ctx context.Context, id uuid.UUID) error
}

func (m *mockService) List(ctx context.Context) ([]service.Appointment, error) {
	if m.listFn == nil {
		panic("listFn not configured")
	}
	return m.listFn(ctx)
}

func (m *mockService) ListByDateRange(ctx context.Context, r service.Range) ([]service.Appointment, error) {
	if m.listRangeFn == nil {
		panic("listRangeFn not configured")
	}
	return m.listRangeFn(ctx, r)
}

func (m *mockService) Create(ctx context.Context, input service.CreateInput) (service.Appointment, error) {
	if m.createFn == nil {
		panic("createFn not configured")
	}
	return m.createFn(ctx, input)
}

func (m *mockService) Get(ctx context.Context, id uuid.UUID) (service.Appointment, error) {
	if m.getFn == nil {
		panic("getFn not configured")
	}
	return m.getFn(ctx, id)
}

func (m *mockService) Update(ctx context.Context, id uuid.UUID, input service.UpdateInput) (service.Appointment, error) {
	if m.updateFn == nil {
		panic("updateFn not configured")
	}
	return m.updateFn(ctx, id, input)
}

func (m *mockService) Complete(ctx context.Context, id uuid.UUID) (service.Appointment, error) {
	if m.completeFn == nil {
		panic("completeFn not configured")
	}
	return m.completeFn(ctx, id)
}

func (m *mockService) UpdateStatus(ctx context.Context, ids []uuid.UUID, status string) (int, error) {
	if m.updateStatusFn == nil {
		panic("updateStatusFn not configured")
	}
	return m.updateStatusFn(ctx, ids, status)
}

func (m *mockService) Delete(ctx context.Context, id uuid.UUID) error {
	if m.deleteFn == nil {
		panic("deleteFn not configured")
	}
	return m.deleteFn(ctx, id)
}

func newRouter(t *testing.T, svc service.Service) http.Handler {
	t.Helper()
	h := New(svc, zaptest.NewLogger(t))
	r := chi.NewRouter()
	r.Get("/appointments", h.List)
	r.Post("/appointments", h.Create)
	r.Put("/appointments/status", h.UpdateStatus)
	r.Get("/appointments/{id}", h.Get)
	r.Patch("/appointments/{id}", h.Update)
	r.Delete("/appointments/{id}", h.Delete)
	r.Post("/appointments/{id}/complete", h.Complete)
	return r
}

func do(t *testing.T, router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(method, path, strings.NewReader(body)))
	return rec
}

func TestListWithoutRange(t *testing.T) {
	t.Parallel()

	svc := &mockService{
		listFn: func(context.Context) ([]service.Appointment, error) {
			return []service.Appointment{{ID: uuid.New(), Title: "Visita", Duration: 60, Status: service.StatusScheduled}}, nil
		},
	}
	rec := do(t, newRouter(t, svc), http.MethodGet, "/appointments", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Items []Appointment `json:"items"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Items, 1)
	require.Equal(t, "scheduled", body.Items[0].Status)
}

func TestListWithRange(t *testing.T) {
	t.Parallel()

	leader := uuid.New()
	svc := &mockService{
		listRangeFn: func(_ context.Context, r service.Range) ([]service.Appointment, error) {
			require.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), r.From.UTC())
			require.Equal(t, leader, *r.LeaderID)
			return nil, nil
		},
	}
	router := newRouter(t, svc)

	rec := do(t, router, http.MethodGet, "/appointments?from=2026-03-01T00:00:00Z&to=2026-03-31T23:59:59Z&leaderId="+leader.String(), "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"items":[]}`, rec.Body.String())

	rec = do(t, router, http.MethodGet, "/appointments?from=ontem", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	var p problem.Details
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
	require.Contains(t, p.Errors, "from")
	require.Contains(t, p.Errors, "to")
}

func TestCreateValidationFailure(t *testing.T) {
	t.Parallel()

	svc := &mockService{
		createFn: func(context.Context, service.CreateInput) (service.Appointment, error) {
			return service.Appointment{}, &validation.Error{Fields: map[string][]string{"duration": {"must be >= 15"}}}
		},
	}
	rec := do(t, newRouter(t, svc), http.MethodPost, "/appointments",
		`{"leaderId":"`+uuid.NewString()+`","memberId":"`+uuid.NewString()+`","title":"Visita","scheduledAt":"2026-03-01T10:00:00Z","duration":5}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCompleteAndBulkStatus(t *testing.T) {
	t.Parallel()

	id := uuid.New()
	svc := &mockService{
		completeFn: func(_ context.Context, got uuid.UUID) (service.Appointment, error) {
			if got != id {
				return service.Appointment{}, service.ErrNotFound
			}
			return service.Appointment{ID: id, Status: service.StatusCompleted}, nil
		},
		updateStatusFn: func(_ context.Context, ids []uuid.UUID, status string) (int, error) {
			require.Equal(t, "cancelled", status)
			return len(ids), nil
		},
	}
	router := newRouter(t, svc)

	rec := do(t, router, http.MethodPost, "/appointments/"+id.String()+"/complete", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, router, http.MethodPost, "/appointments/"+uuid.NewString()+"/complete", "")
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, router, http.MethodPut, "/appointments/status", `{"ids":["`+id.String()+`","`+uuid.NewString()+`"],"status":"cancelled"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"updated":2}`, rec.Body.String())
}

func TestUpdateDecodesTypedFields(t *testing.T) {
	t.Parallel()

	id := uuid.New()
	svc := &mockService{
		updateFn: func(_ context.Context, _ uuid.UUID, input service.UpdateInput) (service.Appointment, error) {
			require.NotNil(t, input.ScheduledAt)
			require.Equal(t, 90, *input.Duration)
			return service.Appointment{ID: id, ScheduledAt: *input.ScheduledAt, Duration: *input.Duration}, nil
		},
		deleteFn: func(context.Context, uuid.UUID) error { return service.ErrTenantRequired },
	}
	router := newRouter(t, svc)

	rec := do(t, router, http.MethodPatch, "/appointments/"+id.String(), `{"scheduledAt":"2026-04-01T15:00:00-03:00","duration":90}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, router, http.MethodDelete, "/appointments/"+id.String(), "")
	require.Equal(t, http.StatusForbidden, rec.Code)
}
