package assistant

import (
	"net/http"

	"github.com/kazz187/timeguild/pkg/cerr"
)

type Server struct {
	service *Service
}

func NewServer(s *Service) *Server {
	return &Server{service: s}
}

func (s *Server) Suggest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req SuggestInput
	if err := cerr.DecodeJSON(r, &req); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	sug, err := s.service.Suggest(ctx, req)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, sug)
}

func (s *Server) Verify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req VerifyInput
	if err := cerr.DecodeJSON(r, &req); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	res, err := s.service.Verify(ctx, req)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, res)
}
