package authz

import (
	"log/slog"
	"net/http"

	"github.com/meridian-crm/meridian-crm/internal/shared"
)

// Middleware wires authorization checks into HTTP handlers. Denials from any
// layer render the same fixed message; only infrastructure failures answer
// with a 5xx.
type Middleware struct {
	Resolver *Resolver
	Logger   *slog.Logger
}

// Require ensures the current user holds the given capability on a module.
func (m Middleware) Require(moduleCode string, action Action) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess := shared.SessionFromContext(r.Context())
			if sess == nil || sess.User() == "" {
				shared.RespondError(w, shared.ErrUnauthenticated)
				return
			}

			allowed, err := m.Resolver.HasPermission(r.Context(), sess.User(), moduleCode, action)
			if err != nil {
				if m.Logger != nil {
					m.Logger.Error("authorization check",
						slog.String("module", moduleCode),
						slog.String("action", string(action)),
						slog.Any("error", err))
				}
				shared.RespondError(w, err)
				return
			}
			if !allowed {
				shared.RespondError(w, shared.ErrForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
