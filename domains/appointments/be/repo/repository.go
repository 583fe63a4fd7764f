package repo

import (
	"context"

	"github.com/google/uuid"

	"github.com/wilsonllucena/igreja-conciliada/platform/go/persistence"
	"github.com/wilsonllucena/igreja-conciliada/platform/go/tenant"
)

// Repository defines the persistence operations required by the appointments service.
type Repository interface {
	List(ctx context.Context) ([]persistence.Appointment, error)
	ListBetween(ctx context.Context, r persistence.AppointmentRange) ([]persistence.Appointment, error)
	Create(ctx context.Context, params persistence.CreateAppointmentParams) (persistence.Appointment, error)
	Get(ctx context.Context, id uuid.UUID) (persistence.Appointment, error)
	Update(ctx context.Context, id uuid.UUID, params persistence.UpdateAppointmentParams) (persistence.Appointment, error)
	UpdateStatus(ctx context.Context, ids []uuid.UUID, status string) (int, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type postgresRepository struct {
	store *persistence.AppointmentStore
}

// NewPostgresRepository constructs a repository backed by the shared persistence layer.
func NewPostgresRepository(store *persistence.AppointmentStore) Repository {
	if store == nil {
		panic("appointment store is required")
	}
	return &postgresRepository{store: store}
}

func (r *postgresRepository) List(ctx context.Context) ([]persistence.Appointment, error) {
	scope, err := requireTenantScope(ctx)
	if err != nil {
		return nil, err
	}
	return r.store.ListAppointments(ctx, scope)
}

func (r *postgresRepository) ListBetween(ctx context.Context, rng persistence.AppointmentRange) ([]persistence.Appointment, error) {
	scope, err := requireTenantScope(ctx)
	if err != nil {
		return nil, err
	}
	return r.store.ListAppointmentsBetween(ctx, scope, rng)
}

func (r *postgresRepository) Create(ctx context.Context, params persistence.CreateAppointmentParams) (persistence.Appointment, error) {
	scope, err := requireTenantScope(ctx)
	if err != nil {
		return persistence.Appointment{}, err
	}
	return r.store.CreateAppointment(ctx, scope, params)
}

func (r *postgresRepository) Get(ctx context.Context, id uuid.UUID) (persistence.Appointment, error) {
	scope, err := requireTenantScope(ctx)
	if err != nil {
		return persistence.Appointment{}, err
	}
	return r.store.GetAppointment(ctx, scope, id)
}

func (r *postgresRepository) Update(ctx context.Context, id uuid.UUID, params persistence.UpdateAppointmentParams) (persistence.Appointment, error) {
	scope, err := requireTenantScope(ctx)
	if err != nil {
		return persistence.Appointment{}, err
	}
	return r.store.UpdateAppointment(ctx, scope, id, params)
}

func (r *postgresRepository) UpdateStatus(ctx context.Context, ids []uuid.UUID, status string) (int, error) {
	scope, err := requireTenantScope(ctx)
	if err != nil {
		return 0, err
	}
	return r.store.UpdateAppointmentStatus(ctx, scope, ids, status)
}

func (r *postgresRepository) Delete(ctx context.Context, id uuid.UUID) error {
	scope, err := requireTenantScope(ctx)
	if err != nil {
		return err
	}
	return r.store.DeleteAppointment(ctx, scope, id)
}

func requireTenantScope(ctx context.Context) (tenant.Scope, error) {
	scope, ok := tenant.FromContext(ctx)
	if !ok {
		return tenant.Scope{}, persistence.ErrTenantRequired
	}
	return scope, nil
}
