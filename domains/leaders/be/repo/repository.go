package repo

import (
	"context"

	"github.com/google/uuid"

	"github.com/wilsonllucena/igreja-conciliada/platform/go/persistence"
	"github.com/wilsonllucena/igreja-conciliada/platform/go/tenant"
)

// Repository defines the persistence operations required by the leaders service.
type Repository interface {
	List(ctx context.Context) ([]persistence.Leader, error)
	ListAvailable(ctx context.Context) ([]persistence.Leader, error)
	Create(ctx context.Context, params persistence.CreateLeaderParams) (persistence.Leader, error)
	Get(ctx context.Context, id uuid.UUID) (persistence.Leader, error)
	Update(ctx context.Context, id uuid.UUID, params persistence.UpdateLeaderParams) (persistence.Leader, error)
	LinkUser(ctx context.Context, id, userID uuid.UUID) (persistence.Leader, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type postgresRepository struct {
	store *persistence.LeaderStore
}

// NewPostgresRepository constructs a repository backed by the shared persistence layer.
func NewPostgresRepository(store *persistence.LeaderStore) Repository {
	if store == nil {
		panic("leader store is required")
	}
	return &postgresRepository{store: store}
}

func (r *postgresRepository) List(ctx context.Context) ([]persistence.Leader, error) {
	scope, err := requireTenantScope(ctx)
	if err != nil {
		return nil, err
	}
	return r.store.ListLeaders(ctx, scope)
}

func (r *postgresRepository) ListAvailable(ctx context.Context) ([]persistence.Leader, error) {
	scope, err := requireTenantScope(ctx)
	if err != nil {
		return nil, err
	}
	return r.store.ListAvailableLeaders(ctx, scope)
}

func (r *postgresRepository) Create(ctx context.Context, params persistence.CreateLeaderParams) (persistence.Leader, error) {
	scope, err := requireTenantScope(ctx)
	if err != nil {
		return persistence.Leader{}, err
	}
	return r.store.CreateLeader(ctx, scope, params)
}

func (r *postgresRepository) Get(ctx context.Context, id uuid.UUID) (persistence.Leader, error) {
	scope, err := requireTenantScope(ctx)
	if err != nil {
		return persistence.Leader{}, err
	}
	return r.store.GetLeader(ctx, scope, id)
}

func (r *postgresRepository) Update(ctx context.Context, id uuid.UUID, params persistence.UpdateLeaderParams) (persistence.Leader, error) {
	scope, err := requireTenantScope(ctx)
	if err != nil {
		return persistence.Leader{}, err
	}
	return r.store.UpdateLeader(ctx, scope, id, params)
}

func (r *postgresRepository) LinkUser(ctx context.Context, id, userID uuid.UUID) (persistence.Leader, error) {
	scope, err := requireTenantScope(ctx)
	if err != nil {
		return persistence.Leader{}, err
	}
	return r.store.LinkUser(ctx, scope, id, userID)
}

func (r *postgresRepository) Delete(ctx context.Context, id uuid.UUID) error {
	scope, err := requireTenantScope(ctx)
	if err != nil {
		return err
	}
	return r.store.DeleteLeader(ctx, scope, id)
}

func requireTenantScope(ctx context.Context) (tenant.Scope, error) {
	scope, ok := tenant.FromContext(ctx)
	if !ok {
		return tenant.Scope{}, persistence.ErrTenantRequired
	}
	return scope, nil
}
