package access

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kazz187/timeguild/internal/user"
	"github.com/kazz187/timeguild/pkg/cerr"
)

type Server struct {
	composer *Composer
}

func NewServer(c *Composer) *Server {
	return &Server{composer: c}
}

type MeResponse struct {
	User  *user.User `json:"user"`
	Views []View     `json:"views"`
}

type ChangeRoleRequest struct {
	Role user.Role `json:"role"`
}

func (s *Server) Me(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	u, ok := user.FromContext(ctx)
	if !ok {
		cerr.SetNewJSONError(ctx, cerr.Unauthenticated, "unauthenticated", nil)
		return
	}
	cerr.SetJSONResponse(ctx, &MeResponse{User: u, Views: Views(u.Role)})
}

// ChangeRole handles PUT /api/users/{userID}/role.
func (s *Server) ChangeRole(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := user.FromContext(ctx)
	if !ok {
		cerr.SetNewJSONError(ctx, cerr.Unauthenticated, "unauthenticated", nil)
		return
	}
	var req ChangeRoleRequest
	if err := cerr.DecodeJSON(r, &req); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	u, err := s.composer.ChangeRole(ctx, actor, chi.URLParam(r, "userID"), req.Role)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, u)
}
