package middleware

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	platformauth "github.com/wilsonllucena/igreja-conciliada/platform/go/auth"
	"github.com/wilsonllucena/igreja-conciliada/platform/go/cache"
	platformlogging "github.com/wilsonllucena/igreja-conciliada/platform/go/logging"
	"github.com/wilsonllucena/igreja-conciliada/platform/go/metrics"
	"github.com/wilsonllucena/igreja-conciliada/platform/go/problem"
	"github.com/wilsonllucena/igreja-conciliada/platform/go/tenant"
)

// ErrNoProfile is returned by resolvers when the caller has no profile row yet.
var ErrNoProfile = errors.New("profile not found")

// Resolver maps an authenticated user to their tenant scope (tenant and role
// from the profile row). Implemented by the profiles service.
type Resolver interface {
	ResolveScope(ctx context.Context, userID uuid.UUID) (tenant.Scope, error)
}

// ScopeCache memoises resolved scopes per user.
type ScopeCache struct {
	entries *cache.TTLCache[tenant.Scope]
}

// NewScopeCache builds a cache holding up to maxUsers scopes for ttl.
func NewScopeCache(maxUsers int64, ttl time.Duration) (*ScopeCache, error) {
	entries, err := cache.New[tenant.Scope](maxUsers, ttl)
	if err != nil {
		return nil, err
	}
	return &ScopeCache{entries: entries}, nil
}

// Invalidate drops the cached scope of a user; called after profile changes. Nil-safe.
func (c *ScopeCache) Invalidate(userID uuid.UUID) {
	if c == nil {
		return
	}
	c.entries.Delete(userID.String())
}

func (c *ScopeCache) get(userID uuid.UUID) (tenant.Scope, bool) {
	if c == nil {
		return tenant.Scope{}, false
	}
	return c.entries.Get(userID.String())
}

func (c *ScopeCache) put(scope tenant.Scope) {
	if c == nil {
		return
	}
	c.entries.Set(scope.UserID.String(), scope)
}

func (c *ScopeCache) Close() {
	if c == nil {
		return
	}
	c.entries.Close()
}

// Config controls middleware behavior. Both fields are optional.
type Config struct {
	Cache   *ScopeCache
	Metrics *metrics.Metrics
}

// WithTenantScope resolves the caller's profile and attaches tenant.Scope to the context.
// Anonymous requests and callers without a profile pass through without a scope;
// route guards decide whether that is allowed.
func WithTenantScope(resolver Resolver, cfg Config) func(http.Handler) http.Handler {
	if resolver == nil {
		panic("tenant middleware: resolver is required")
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			creds, ok := platformauth.UserFromContext(r.Context())
			if !ok || creds == nil {
				next.ServeHTTP(w, r)
				return
			}

			userID, err := uuid.Parse(creds.Id)
			if err != nil {
				problem.Write(w, problem.New(http.StatusUnauthorized, "Unauthorized", "invalid user id", problem.TypeUnauthorized, nil))
				return
			}

			if cached, hit := cfg.Cache.get(userID); hit {
				next.ServeHTTP(w, r.WithContext(tenant.WithScope(r.Context(), cached)))
				return
			}

			scope, err := resolver.ResolveScope(r.Context(), userID)
			switch {
			case errors.Is(err, ErrNoProfile):
				if cfg.Metrics != nil {
					cfg.Metrics.TenantScopeMissing.Inc()
				}
				next.ServeHTTP(w, r)
				return
			case err != nil:
				platformlogging.FromContextOr(r.Context(), nil).Error("resolve tenant scope", zap.String("user_id", userID.String()), zap.Error(err))
				problem.Write(w, problem.New(http.StatusInternalServerError, "Internal Server Error", "unexpected error", problem.TypeInternal, nil))
				return
			}

			scope.UserID = userID
			cfg.Cache.put(scope)
			next.ServeHTTP(w, r.WithContext(tenant.WithScope(r.Context(), scope)))
		})
	}
}
