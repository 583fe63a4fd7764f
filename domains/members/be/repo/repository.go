package repo

import (
	"context"

	"github.com/google/uuid"

	"github.com/wilsonllucena/igreja-conciliada/platform/go/persistence"
	"github.com/wilsonllucena/igreja-conciliada/platform/go/tenant"
)

// Repository defines the persistence operations required by the members service.
type Repository interface {
	List(ctx context.Context) ([]persistence.Member, error)
	Create(ctx context.Context, params persistence.CreateMemberParams) (persistence.Member, error)
	CreateMany(ctx context.Context, params []persistence.CreateMemberParams) ([]persistence.Member, error)
	Get(ctx context.Context, id uuid.UUID) (persistence.Member, error)
	Update(ctx context.Context, id uuid.UUID, params persistence.UpdateMemberParams) (persistence.Member, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type postgresRepository struct {
	store *persistence.MemberStore
}

// NewPostgresRepository constructs a repository backed by the shared persistence layer.
func NewPostgresRepository(store *persistence.MemberStore) Repository {
	if store == nil {
		panic("member store is required")
	}
	return &postgresRepository{store: store}
}

func (r *postgresRepository) List(ctx context.Context) ([]persistence.Member, error) {
	scope, err := requireTenantScope(ctx)
	if err != nil {
		return nil, err
	}
	return r.store.ListMembers(ctx, scope)
}

func (r *postgresRepository) Create(ctx context.Context, params persistence.CreateMemberParams) (persistence.Member, error) {
	scope, err := requireTenantScope(ctx)
	if err != nil {
		return persistence.Member{}, err
	}
	return r.store.CreateMember(ctx, scope, params)
}

func (r *postgresRepository) CreateMany(ctx context.Context, params []persistence.CreateMemberParams) ([]persistence.Member, error) {
	scope, err := requireTenantScope(ctx)
	if err != nil {
		return nil, err
	}
	return r.store.CreateMembers(ctx, scope, params)
}

func (r *postgresRepository) Get(ctx context.Context, id uuid.UUID) (persistence.Member, error) {
	scope, err := requireTenantScope(ctx)
	if err != nil {
		return persistence.Member{}, err
	}
	return r.store.GetMember(ctx, scope, id)
}

func (r *postgresRepository) Update(ctx context.Context, id uuid.UUID, params persistence.UpdateMemberParams) (persistence.Member, error) {
	scope, err := requireTenantScope(ctx)
	if err != nil {
		return persistence.Member{}, err
	}
	return r.store.UpdateMember(ctx, scope, id, params)
}

func (r *postgresRepository) Delete(ctx context.Context, id uuid.UUID) error {
	scope, err := requireTenantScope(ctx)
	if err != nil {
		return err
	}
	return r.store.DeleteMember(ctx, scope, id)
}

func requireTenantScope(ctx context.Context) (tenant.Scope, error) {
	scope, ok := tenant.FromContext(ctx)
	if !ok {
		return tenant.Scope{}, persistence.ErrTenantRequired
	}
	return scope, nil
}
