package repo

import (
	"context"

	"github.com/google/uuid"

	"github.com/wilsonllucena/igreja-conciliada/platform/go/persistence"
)

// Repository defines the profile operations the accounts service needs. They
// run unrestricted: sign-up creates the profile before any tenant scope exists.
type Repository interface {
	CreateProfile(ctx context.Context, params persistence.CreateProfileParams) (persistence.Profile, error)
	GetProfile(ctx context.Context, id uuid.UUID) (persistence.Profile, error)
	RemoveProfile(ctx context.Context, id uuid.UUID) error
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

func (r *postgresRepository) CreateProfile(ctx context.Context, params persistence.CreateProfileParams) (persistence.Profile, error) {
	return r.store.CreateProfile(ctx, params)
}

func (r *postgresRepository) GetProfile(ctx context.Context, id uuid.UUID) (persistence.Profile, error) {
	return r.store.GetProfile(ctx, id)
}

func (r *postgresRepository) RemoveProfile(ctx context.Context, id uuid.UUID) error {
	return r.store.RemoveProfile(ctx, id)
}
