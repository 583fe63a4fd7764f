package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/wilsonllucena/igreja-conciliada/platform/go/problem"
)

type ctxKey string

const (
	ctxUserCredentials ctxKey = "IGREJA_USER_CREDENTIALS"
)

// UserCredentials is the verified identity attached to a request.
// Role and tenant are not part of the token; they come from the profile row.
type UserCredentials struct {
	Id            string
	Email         string
	EmailVerified bool
	Name          *string
	Token         string
}

func UserFromContext(ctx context.Context) (*UserCredentials, bool) {
	v := ctx.Value(ctxUserCredentials)
	if v == nil {
		return nil, false
	}
	u, ok := v.(*UserCredentials)
	return u, ok
}

// WithUser stores credentials on the context. Used by the workspace and tests.
func WithUser(ctx context.Context, creds *UserCredentials) context.Context {
	return context.WithValue(ctx, ctxUserCredentials, creds)
}

// Verifier resolves an access token to the identity it was issued for.
// Every Provider is a Verifier.
type Verifier interface {
	Verify(ctx context.Context, accessToken string) (Identity, error)
}

// VerifierFunc adapts a plain function to Verifier.
type VerifierFunc func(ctx context.Context, accessToken string) (Identity, error)

func (f VerifierFunc) Verify(ctx context.Context, accessToken string) (Identity, error) {
	return f(ctx, accessToken)
}

// Credentials converts a verified identity into request credentials.
func Credentials(identity Identity, accessToken string) *UserCredentials {
	creds := &UserCredentials{
		Id:            identity.ID.String(),
		Email:         identity.Email,
		EmailVerified: identity.EmailConfirmed,
		Token:         accessToken,
	}
	if identity.Name != "" {
		name := identity.Name
		creds.Name = &name
	}
	return creds
}

// Authenticate verifies the bearer token of each request and stores the
// resulting credentials on the context. Requests without a bearer token pass
// through anonymously; route guards decide whether that is allowed.
func Authenticate(v Verifier) func(http.Handler) http.Handler {
	if v == nil {
		panic("auth.Authenticate: verifier must not be nil")
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			token, found := BearerToken(r)
			if !found {
				next.ServeHTTP(w, r)
				return
			}

			identity, err := v.Verify(r.Context(), token)
			if err != nil {
				description := "invalid or expired session"
				if KindOf(err) == KindEmailUnconfirmed {
					description = "email not confirmed"
				}
				w.Header().Set("WWW-Authenticate", `Bearer realm="igreja", error="invalid_token", error_description="`+description+`"`)
				problem.Write(w, problem.New(http.StatusUnauthorized, "Unauthorized", description, problem.TypeUnauthorized, nil))
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), Credentials(identity, token))))
		})
	}
}

// BearerToken returns the token of a "Bearer" Authorization header. The scheme
// is matched case-insensitively and an empty token counts as absent.
func BearerToken(r *http.Request) (string, bool) {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
