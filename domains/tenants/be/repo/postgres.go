package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/wilsonllucena/igreja-conciliada/domains/tenants/be/service"
	"github.com/wilsonllucena/igreja-conciliada/platform/go/persistence"
	"github.com/wilsonllucena/igreja-conciliada/platform/go/tenant"
)

// PostgresRepository implements the tenant repository on top of TenantStore.
type PostgresRepository struct {
	store *persistence.TenantStore
}

// NewPostgresRepository constructs a repository backed by TenantStore.
func NewPostgresRepository(store *persistence.TenantStore) *PostgresRepository {
	if store == nil {
		panic("tenant store is required")
	}
	return &PostgresRepository{store: store}
}

func (r *PostgresRepository) Create(ctx context.Context, t service.Tenant) (service.Tenant, error) {
	rec, err := r.store.CreateTenant(ctx, persistence.CreateTenantParams{ID: t.ID, Name: t.Name, Slug: t.Slug})
	if err != nil {
		return service.Tenant{}, mapError(err)
	}
	return toServiceTenant(rec), nil
}

func (r *PostgresRepository) Get(ctx context.Context, id uuid.UUID) (service.Tenant, error) {
	rec, err := r.store.GetTenant(ctx, id)
	if err != nil {
		return service.Tenant{}, mapError(err)
	}
	return toServiceTenant(rec), nil
}

func (r *PostgresRepository) SlugTaken(ctx context.Context, slug string) (bool, error) {
	return r.store.SlugTaken(ctx, slug)
}

func (r *PostgresRepository) Update(ctx context.Context, id uuid.UUID, params persistence.UpdateTenantParams) (service.Tenant, error) {
	rec, err := r.store.UpdateTenant(ctx, id, params)
	if err != nil {
		return service.Tenant{}, mapError(err)
	}
	return toServiceTenant(rec), nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return mapError(r.store.DeleteTenant(ctx, id))
}

func toServiceTenant(rec persistence.Tenant) service.Tenant {
	return service.Tenant{
		ID:        rec.ID,
		Name:      rec.Name,
		Slug:      rec.Slug,
		Logo:      rec.Logo,
		Address:   rec.Address,
		Phone:     rec.Phone,
		Email:     rec.Email,
		Website:   rec.Website,
		CreatedAt: rec.CreatedAt,
		UpdatedAt: rec.UpdatedAt,
	}
}

func mapError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, persistence.ErrNotFound):
		return service.ErrNotFound
	case errors.Is(err, persistence.ErrConflict):
		return service.ErrConflictSlug
	default:
		return err
	}
}

// StatsCounter answers the dashboard counters from the entity stores.
type StatsCounter struct {
	Members      *persistence.MemberStore
	Leaders      *persistence.LeaderStore
	Events       *persistence.EventStore
	Appointments *persistence.AppointmentStore
}

func (c StatsCounter) CountActiveMembers(ctx context.Context, scope tenant.Scope) (int, error) {
	return c.Members.CountActiveMembers(ctx, scope)
}

func (c StatsCounter) CountLeaders(ctx context.Context, scope tenant.Scope) (int, error) {
	return c.Leaders.CountLeaders(ctx, scope)
}

func (c StatsCounter) CountUpcomingEvents(ctx context.Context, scope tenant.Scope, now time.Time) (int, error) {
	return c.Events.CountUpcomingEvents(ctx, scope, now)
}

func (c StatsCounter) CountUpcomingAppointments(ctx context.Context, scope tenant.Scope, now time.Time) (int, error) {
	return c.Appointments.CountUpcomingAppointments(ctx, scope, now)
}

var (
	_ service.Repository   = (*PostgresRepository)(nil)
	_ service.StatsCounter = StatsCounter{}
)
