package identity

import (
	"net/http"

	"github.com/kazz187/timeguild/pkg/cerr"
	"github.com/kazz187/timeguild/pkg/clog"
)

// Middleware authenticates the bearer token of every request and stores
// the identity in the request context. It must run inside the cerr
// middleware.
func Middleware(p Provider) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			token, ok := BearerToken(r.Header.Get("Authorization"))
			if !ok {
				cerr.SetNewJSONError(ctx, cerr.Unauthenticated, "missing bearer token", ErrAuth)
				return
			}
			id, err := p.Authenticate(ctx, token)
			if err != nil {
				cerr.SetJSONError(ctx, err)
				return
			}
			clog.AddAttribute(ctx, "identity_id", id.ID)
			next.ServeHTTP(w, r.WithContext(ContextWithIdentity(ctx, id)))
		})
	}
}
