package user

import (
	"net/http"
	"sort"

	"github.com/kazz187/timeguild/pkg/cerr"
)

type Server struct {
	repo Repository
}

func NewServer(repo Repository) *Server {
	return &Server{repo: repo}
}

type ListUsersResponse struct {
	Users []*User `json:"users"`
}

// ListUsers returns every user ordered by email.
func (s *Server) ListUsers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	users, err := s.repo.List(ctx)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Email < users[j].Email })
	cerr.SetJSONResponse(ctx, &ListUsersResponse{Users: users})
}
