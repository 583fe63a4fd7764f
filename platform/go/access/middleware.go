package access

import (
	"fmt"
	"net/http"

	platformauth "github.com/wilsonllucena/igreja-conciliada/platform/go/auth"
	"github.com/wilsonllucena/igreja-conciliada/platform/go/problem"
	"github.com/wilsonllucena/igreja-conciliada/platform/go/tenant"
)

// RequireAuthenticated rejects requests that carry no verified credentials.
func RequireAuthenticated(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if creds, ok := platformauth.UserFromContext(r.Context()); !ok || creds == nil {
			w.Header().Set("WWW-Authenticate", `Bearer realm="api"`)
			problem.Write(w, problem.New(http.StatusUnauthorized, "Unauthorized", "sign in to continue", problem.TypeUnauthorized, nil))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireRole gates a route on the resolved profile role (cumulative hierarchy).
func RequireRole(min Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			scope, ok := tenant.FromContext(r.Context())
			if !ok {
				problem.Write(w, problem.New(http.StatusForbidden, "Forbidden", "tenant required", problem.TypeForbidden, nil))
				return
			}
			role, _ := ParseRole(scope.Role)
			if !role.AtLeast(min) {
				problem.Write(w, problem.New(http.StatusForbidden, "Forbidden", fmt.Sprintf("role %s required", min), problem.TypeForbidden, nil))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireCapability gates a route on a single capability.
func RequireCapability(capability Capability) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			scope, _ := tenant.FromContext(r.Context())
			role, _ := ParseRole(scope.Role)
			if !HasPermission(role, capability) {
				problem.Write(w, problem.New(http.StatusForbidden, "Forbidden", fmt.Sprintf("capability %s required", capability), problem.TypeForbidden, nil))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
