package access

import (
	"net/http"

	"github.com/kazz187/timeguild/internal/identity"
	"github.com/kazz187/timeguild/internal/user"
	"github.com/kazz187/timeguild/pkg/cerr"
	"github.com/kazz187/timeguild/pkg/clog"
)

// Middleware resolves the caller's user record. It must run after
// identity.Middleware.
func (c *Composer) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			id, ok := identity.FromContext(ctx)
			if !ok {
				cerr.SetNewJSONError(ctx, cerr.Unauthenticated, "unauthenticated", nil)
				return
			}
			u, err := c.Resolve(ctx, *id)
			if err != nil {
				cerr.SetJSONError(ctx, err)
				return
			}
			clog.AddAttribute(ctx, "role", string(u.Role))
			next.ServeHTTP(w, r.WithContext(user.ContextWithUser(ctx, u)))
		})
	}
}

// Require rejects callers whose role does not allow view.
func Require(view View) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			u, ok := user.FromContext(ctx)
			if !ok {
				cerr.SetNewJSONError(ctx, cerr.Unauthenticated, "unauthenticated", nil)
				return
			}
			if !Allows(u.Role, view) {
				cerr.SetNewJSONError(ctx, cerr.PermissionDenied, "not allowed", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
