package repo

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/wilsonllucena/igreja-conciliada/platform/go/persistence"
	"github.com/wilsonllucena/igreja-conciliada/platform/go/tenant"
)

// Repository defines the persistence operations required by the events service.
type Repository interface {
	List(ctx context.Context) ([]persistence.Event, error)
	ListUpcoming(ctx context.Context, now time.Time, limit int) ([]persistence.Event, error)
	Create(ctx context.Context, params persistence.CreateEventParams) (persistence.Event, error)
	Get(ctx context.Context, id uuid.UUID) (persistence.Event, error)
	Update(ctx context.Context, id uuid.UUID, params persistence.UpdateEventParams) (persistence.Event, error)
	Delete(ctx context.Context, id uuid.UUID) error
	ListRegistrations(ctx context.Context, eventID uuid.UUID) ([]persistence.Registration, error)
}

type postgresRepository struct {
	events        *persistence.EventStore
	registrations *persistence.RegistrationStore
}

// NewPostgresRepository constructs a repository backed by the shared persistence layer.
func NewPostgresRepository(events *persistence.EventStore, registrations *persistence.RegistrationStore) Repository {
	if events == nil {
		panic("event store is required")
	}
	if registrations == nil {
		panic("registration store is required")
	}
	return &postgresRepository{events: events, registrations: registrations}
}

func (r *postgresRepository) List(ctx context.Context) ([]persistence.Event, error) {
	scope, err := requireTenantScope(ctx)
	if err != nil {
		return nil, err
	}
	return r.events.ListEvents(ctx, scope)
}

func (r *postgresRepository) ListUpcoming(ctx context.Context, now time.Time, limit int) ([]persistence.Event, error) {
	scope, err := requireTenantScope(ctx)
	if err != nil {
		return nil, err
	}
	return r.events.ListUpcomingEvents(ctx, scope, now, limit)
}

func (r *postgresRepository) Create(ctx context.Context, params persistence.CreateEventParams) (persistence.Event, error) {
	scope, err := requireTenantScope(ctx)
	if err != nil {
		return persistence.Event{}, err
	}
	return r.events.CreateEvent(ctx, scope, params)
}

func (r *postgresRepository) Get(ctx context.Context, id uuid.UUID) (persistence.Event, error) {
	scope, err := requireTenantScope(ctx)
	if err != nil {
		return persistence.Event{}, err
	}
	return r.events.GetEvent(ctx, scope, id)
}

func (r *postgresRepository) Update(ctx context.Context, id uuid.UUID, params persistence.UpdateEventParams) (persistence.Event, error) {
	scope, err := requireTenantScope(ctx)
	if err != nil {
		return persistence.Event{}, err
	}
	return r.events.UpdateEvent(ctx, scope, id, params)
}

func (r *postgresRepository) Delete(ctx context.Context, id uuid.UUID) error {
	scope, err := requireTenantScope(ctx)
	if err != nil {
		return err
	}
	return r.events.DeleteEvent(ctx, scope, id)
}

func (r *postgresRepository) ListRegistrations(ctx context.Context, eventID uuid.UUID) ([]persistence.Registration, error) {
	scope, err := requireTenantScope(ctx)
	if err != nil {
		return nil, err
	}
	return r.registrations.ListRegistrations(ctx, scope, eventID)
}

func requireTenantScope(ctx context.Context) (tenant.Scope, error) {
	scope, ok := tenant.FromContext(ctx)
	if !ok {
		return tenant.Scope{}, persistence.ErrTenantRequired
	}
	return scope, nil
}
