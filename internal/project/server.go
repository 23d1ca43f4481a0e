package project

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/oklog/ulid/v2"

	"github.com/kazz187/timeguild/internal/eventbus"
	"github.com/kazz187/timeguild/pkg/cerr"
)

type Server struct {
	repo Repository
	bus  *eventbus.Bus
}

func NewServer(repo Repository, bus *eventbus.Bus) *Server {
	return &Server{repo: repo, bus: bus}
}

type CreateProjectRequest struct {
	Name   string `json:"name"`
	Client string `json:"client"`
}

type ListProjectsResponse struct {
	Projects []*Project `json:"projects"`
}

func (s *Server) CreateProject(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req CreateProjectRequest
	if err := cerr.DecodeJSON(r, &req); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	name, client := strings.TrimSpace(req.Name), strings.TrimSpace(req.Client)
	if name == "" || client == "" {
		cerr.SetNewJSONError(ctx, cerr.InvalidArgument, "project name and client are required", nil)
		return
	}
	now := time.Now()
	p := &Project{
		ID:        ulid.Make().String(),
		Name:      name,
		Client:    client,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Create(ctx, p); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	s.bus.PublishNew(eventbus.EventProjectCreated, p.ID, nil)
	cerr.SetCreatedJSONResponse(ctx, p)
}

func (s *Server) GetProject(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, err := s.repo.Get(ctx, chi.URLParam(r, "projectID"))
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, p)
}

func (s *Server) ListProjects(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	projects, err := s.repo.List(ctx)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, &ListProjectsResponse{Projects: projects})
}
