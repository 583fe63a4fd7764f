package repo

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wilsonllucena/igreja-conciliada/domains/tenants/be/service"
	"github.com/wilsonllucena/igreja-conciliada/platform/go/persistence"
)

// MemoryRepository is a simple in-memory implementation suitable for tests and local tooling.
type MemoryRepository struct {
	mu     sync.RWMutex
	byID   map[uuid.UUID]service.Tenant
	bySlug map[string]uuid.UUID
	now    func() time.Time
}

// NewMemoryRepository constructs a MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		byID:   make(map[uuid.UUID]service.Tenant),
		bySlug: make(map[string]uuid.UUID),
		now:    time.Now,
	}
}

func (r *MemoryRepository) Create(ctx context.Context, t service.Tenant) (service.Tenant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.bySlug[t.Slug]; exists {
		return service.Tenant{}, service.ErrConflictSlug
	}

	now := r.now().UTC()
	t.CreatedAt, t.UpdatedAt = now, now
	r.byID[t.ID] = t
	r.bySlug[t.Slug] = t.ID
	return t, nil
}

func (r *MemoryRepository) Get(ctx context.Context, id uuid.UUID) (service.Tenant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.byID[id]
	if !ok {
		return service.Tenant{}, service.ErrNotFound
	}
	return t, nil
}

func (r *MemoryRepository) SlugTaken(ctx context.Context, slug string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, taken := r.bySlug[slug]
	return taken, nil
}

func (r *MemoryRepository) Update(ctx context.Context, id uuid.UUID, params persistence.UpdateTenantParams) (service.Tenant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.byID[id]
	if !ok {
		return service.Tenant{}, service.ErrNotFound
	}

	if params.Name != nil {
		t.Name = *params.Name
	}
	if params.Address != nil {
		t.Address = params.Address
	}
	if params.Phone != nil {
		t.Phone = params.Phone
	}
	if params.Email != nil {
		t.Email = params.Email
	}
	if params.Website != nil {
		t.Website = params.Website
	}
	if params.Logo != nil {
		t.Logo = params.Logo
	}
	t.UpdatedAt = r.now().UTC()

	r.byID[id] = t
	return t, nil
}

func (r *MemoryRepository) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.byID[id]
	if !ok {
		return service.ErrNotFound
	}
	delete(r.byID, id)
	delete(r.bySlug, t.Slug)
	return nil
}

// Ensure interface compliance.
var _ service.Repository = (*MemoryRepository)(nil)
