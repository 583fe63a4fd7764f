package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wilsonllucena/igreja-conciliada/platform/go/pubsub"
	"github.com/wilsonllucena/igreja-conciliada/platform/go/tenant"
)

// ErrTenantNotFound is returned by a TenantSource for a missing row.
var ErrTenantNotFound = errors.New("tenant not found")

// Tenant is the church record shown as branding.
type Tenant struct {
	ID      uuid.UUID
	Name    string
	Slug    string
	Logo    *string
	Address *string
	Phone   *string
	Email   *string
	Website *string
}

// TenantSource loads one church by id.
type TenantSource interface {
	Tenant(ctx context.Context, id uuid.UUID) (Tenant, error)
}

// TenantResolver keeps the church of the current profile loaded. It refetches
// on profile changes and on tenant.Updated, and forgets it on sign-out or when
// a different identity signs in.
type TenantResolver struct {
	store   *Store
	source  TenantSource
	updates *pubsub.Topic[tenant.Updated]
	logger  *zap.Logger
	unsubs  []func()

	mu      sync.RWMutex
	current *Tenant
	// owner is the profile the current church was resolved for.
	owner uuid.UUID
}

// NewTenantResolver subscribes to store and updates. A nil updates topic is
// replaced by a private one.
func NewTenantResolver(store *Store, source TenantSource, updates *pubsub.Topic[tenant.Updated], logger *zap.Logger) *TenantResolver {
	if store == nil {
		panic("session store is required")
	}
	if source == nil {
		panic("tenant source is required")
	}
	if updates == nil {
		updates = pubsub.NewTopic[tenant.Updated]()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	r := &TenantResolver{
		store:   store,
		source:  source,
		updates: updates,
		logger:  logger.With(zap.String("component", "tenant_resolver")),
	}
	r.unsubs = append(r.unsubs,
		store.Subscribe(r.onSessionChange),
		updates.Subscribe(r.onTenantUpdated),
	)
	return r
}

// Updates is the tenant-updated topic. Publishing to it forces a refetch.
func (r *TenantResolver) Updates() *pubsub.Topic[tenant.Updated] {
	return r.updates
}

// Tenant returns the resolved church.
func (r *TenantResolver) Tenant() (Tenant, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.current == nil {
		return Tenant{}, false
	}
	return *r.current, true
}

// FetchTenant loads the church of the current profile. A profile without a
// church, or a missing row, clears the resolved church; other errors are
// logged, returned, and leave it as it was.
func (r *TenantResolver) FetchTenant(ctx context.Context) error {
	profile, ok := r.store.Profile()
	if !ok || profile.TenantID == nil {
		r.set(nil, uuid.Nil)
		return nil
	}

	t, err := r.source.Tenant(ctx, *profile.TenantID)
	if err != nil {
		if errors.Is(err, ErrTenantNotFound) {
			r.set(nil, uuid.Nil)
			return nil
		}
		r.logger.Error("fetch tenant", zap.String("tenant_id", profile.TenantID.String()), zap.Error(err))
		return fmt.Errorf("fetch tenant: %w", err)
	}

	r.set(&t, profile.ID)
	return nil
}

func (r *TenantResolver) set(t *Tenant, owner uuid.UUID) {
	r.mu.Lock()
	r.current = t
	r.owner = owner
	r.mu.Unlock()
}

// clearUnlessOwnedBy drops the church unless it was resolved for userID. The
// store loads the profile before SignedIn reaches the resolver, so the church
// of the new identity may already be in place.
func (r *TenantResolver) clearUnlessOwnedBy(userID uuid.UUID) {
	r.mu.Lock()
	if r.owner != userID {
		r.current = nil
		r.owner = uuid.Nil
	}
	r.mu.Unlock()
}

func (r *TenantResolver) onSessionChange(ctx context.Context, c Change) {
	switch c.Kind {
	case ProfileLoaded:
		_ = r.FetchTenant(ctx)
	case SignedIn:
		if c.Identity != nil {
			r.clearUnlessOwnedBy(c.Identity.ID)
		}
	case SignedOut:
		r.set(nil, uuid.Nil)
	}
}

func (r *TenantResolver) onTenantUpdated(ctx context.Context, u tenant.Updated) {
	profile, ok := r.store.Profile()
	if !ok || profile.TenantID == nil || *profile.TenantID != u.TenantID {
		return
	}
	_ = r.FetchTenant(ctx)
}

// Close releases the resolver's subscriptions.
func (r *TenantResolver) Close() {
	for _, unsub := range r.unsubs {
		unsub()
	}
	r.unsubs = nil
}
