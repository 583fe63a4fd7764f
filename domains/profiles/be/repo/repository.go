package repo

import (
	"context"

	"github.com/google/uuid"

	"github.com/wilsonllucena/igreja-conciliada/platform/go/persistence"
	"github.com/wilsonllucena/igreja-conciliada/platform/go/tenant"
)

// Repository defines the persistence operations required by the profiles service.
type Repository interface {
	List(ctx context.Context) ([]persistence.Profile, error)
	Get(ctx context.Context, id uuid.UUID) (persistence.Profile, error)
	Update(ctx context.Context, id uuid.UUID, params persistence.UpdateProfileParams) (persistence.Profile, error)
	UpdateOwn(ctx context.Context, id uuid.UUID, name, phone *string) (persistence.Profile, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type postgresRepository struct {
	store *persistence.ProfileStore
}

// NewPostgresRepository constructs a repository backed by the shared persistence layer.
func NewPostgresRepository(store *persistence.ProfileStore) Repository {
	if store == nil {
		panic("profile store is required")
	}
	return &postgresRepository{store: store}
}

func (r *postgresRepository) List(ctx context.Context) ([]persistence.Profile, error) {
	scope, err := requireTenantScope(ctx)
	if err != nil {
		return nil, err
	}
	return r.store.ListProfiles(ctx, scope)
}

// Get looks a profile up by identity id without tenant restriction; callers
// resolving their own scope have no tenant yet.
func (r *postgresRepository) Get(ctx context.Context, id uuid.UUID) (persistence.Profile, error) {
	return r.store.GetProfile(ctx, id)
}

func (r *postgresRepository) Update(ctx context.Context, id uuid.UUID, params persistence.UpdateProfileParams) (persistence.Profile, error) {
	scope, err := requireTenantScope(ctx)
	if err != nil {
		return persistence.Profile{}, err
	}
	return r.store.UpdateProfile(ctx, scope, id, params)
}

func (r *postgresRepository) UpdateOwn(ctx context.Context, id uuid.UUID, name, phone *string) (persistence.Profile, error) {
	return r.store.UpdateOwnProfile(ctx, id, name, phone)
}

func (r *postgresRepository) Delete(ctx context.Context, id uuid.UUID) error {
	scope, err := requireTenantScope(ctx)
	if err != nil {
		return err
	}
	return r.store.DeleteProfile(ctx, scope, id)
}

func requireTenantScope(ctx context.Context) (tenant.Scope, error) {
	scope, ok := tenant.FromContext(ctx)
	if !ok {
		return tenant.Scope{}, persistence.ErrTenantRequired
	}
	return scope, nil
}
