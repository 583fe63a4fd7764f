package middleware

import (
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	platformauth "github.com/wilsonllucena/igreja-conciliada/platform/go/auth"
	platformlogging "github.com/wilsonllucena/igreja-conciliada/platform/go/logging"
	"github.com/wilsonllucena/igreja-conciliada/platform/go/problem"
	"github.com/wilsonllucena/igreja-conciliada/platform/go/requesttrace"
)

// RequestIDHeader echoes the request id so a user can quote it in a support request.
const RequestIDHeader = "X-Request-Id"

// RequestTrace attaches the AuditInfo of the caller to the context and to the
// request logger. Mount it after Authenticate and the tenant scope middleware.
func RequestTrace(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		requestID := middleware.GetReqID(ctx)
		if requestID != "" {
			w.Header().Set(RequestIDHeader, requestID)
		}

		audit := requesttrace.Anonymous(requestID)
		if creds, ok := platformauth.UserFromContext(ctx); ok && creds != nil {
			var err error
			if audit, err = requesttrace.FromCredentials(ctx, creds, requestID); err != nil {
				platformlogging.FromContextOr(ctx, zap.NewNop()).Error("build audit info", zap.Error(err))
				problem.Write(w, problem.New(http.StatusUnauthorized, "Unauthorized", "invalid credentials", problem.TypeUnauthorized, nil))
				return
			}
		}

		ctx = requesttrace.IntoContext(ctx, audit)
		if logger := platformlogging.FromRequest(r, nil); logger != nil {
			ctx = platformlogging.WithLogger(ctx, logger.With(audit.Fields()...))
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
