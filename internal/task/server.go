package task

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/oklog/ulid/v2"

	"github.com/kazz187/timeguild/internal/eventbus"
	"github.com/kazz187/timeguild/internal/project"
	"github.com/kazz187/timeguild/internal/user"
	"github.com/kazz187/timeguild/pkg/cerr"
)

type Server struct {
	repo     Repository
	projects project.Repository
	users    user.Repository
	bus      *eventbus.Bus
}

func NewServer(repo Repository, projects project.Repository, users user.Repository, bus *eventbus.Bus) *Server {
	return &Server{repo: repo, projects: projects, users: users, bus: bus}
}

type AssignTaskRequest struct {
	ProjectID   string `json:"project_id"`
	AssignedTo  string `json:"assigned_to"`
	Description string `json:"description"`
}

type UpdateStatusRequest struct {
	Status Status `json:"status"`
}

type ListTasksResponse struct {
	Tasks []*Task `json:"tasks"`
}

// AssignTask creates a todo task for a known user.
func (s *Server) AssignTask(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req AssignTaskRequest
	if err := cerr.DecodeJSON(r, &req); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	req.ProjectID = strings.TrimSpace(req.ProjectID)
	req.AssignedTo = strings.TrimSpace(req.AssignedTo)
	req.Description = strings.TrimSpace(req.Description)
	if missing := missingFields(req); len(missing) > 0 {
		e := cerr.NewError(cerr.InvalidArgument, "missing required fields", nil)
		for _, f := range missing {
			e.AddDetailMessage(f + " is required")
		}
		cerr.SetJSONError(ctx, e)
		return
	}
	if _, err := s.projects.Get(ctx, req.ProjectID); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	assignee, err := s.users.FindByEmail(ctx, req.AssignedTo)
	if err != nil {
		if cerr.IsCode(err, cerr.NotFound) {
			cerr.SetNewJSONError(ctx, cerr.InvalidArgument, "assignee is not a known user", err)
			return
		}
		cerr.SetJSONError(ctx, err)
		return
	}

	now := time.Now()
	t := &Task{
		ID:          ulid.Make().String(),
		ProjectID:   req.ProjectID,
		AssignedTo:  assignee.Email,
		Description: req.Description,
		Status:      StatusTodo,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Create(ctx, t); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	s.bus.PublishNew(eventbus.EventTaskCreated, t.ID, map[string]string{"assigned_to": t.AssignedTo})
	cerr.SetCreatedJSONResponse(ctx, t)
}

func missingFields(req AssignTaskRequest) []string {
	var missing []string
	if req.ProjectID == "" {
		missing = append(missing, "project_id")
	}
	if req.AssignedTo == "" {
		missing = append(missing, "assigned_to")
	}
	if req.Description == "" {
		missing = append(missing, "description")
	}
	return missing
}

// ListTasks lists every task for admins (optionally filtered by
// ?assigned_to=) and the caller's unverified tasks for workers.
func (s *Server) ListTasks(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := user.FromContext(ctx)
	if !ok {
		cerr.SetNewJSONError(ctx, cerr.Unauthenticated, "unauthenticated", nil)
		return
	}
	if caller.Role == user.RoleAdmin {
		tasks, err := s.repo.List(ctx, r.URL.Query().Get("assigned_to"))
		if err != nil {
			cerr.SetJSONError(ctx, err)
			return
		}
		cerr.SetJSONResponse(ctx, &ListTasksResponse{Tasks: tasks})
		return
	}

	tasks, err := s.repo.List(ctx, caller.Email)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	open := make([]*Task, 0, len(tasks))
	for _, t := range tasks {
		if t.Status != StatusVerified {
			open = append(open, t)
		}
	}
	cerr.SetJSONResponse(ctx, &ListTasksResponse{Tasks: open})
}

func (s *Server) GetTask(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	t, err := s.visibleTask(r)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, t)
}

// UpdateStatus is a plain document write; transition rules are enforced by
// the client that owns the timer. Only admins may set verified.
func (s *Server) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req UpdateStatusRequest
	if err := cerr.DecodeJSON(r, &req); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	if !req.Status.Valid() {
		cerr.SetNewJSONError(ctx, cerr.InvalidArgument, "unknown task status", nil)
		return
	}
	t, err := s.visibleTask(r)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	caller, _ := user.FromContext(ctx)
	if req.Status == StatusVerified && caller.Role != user.RoleAdmin {
		cerr.SetNewJSONError(ctx, cerr.PermissionDenied, "only admins can verify tasks", nil)
		return
	}

	prev := t.Status
	t.Status = req.Status
	t.UpdatedAt = time.Now()
	if err := s.repo.Update(ctx, t); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	s.bus.PublishNew(eventbus.EventTaskStatusChanged, t.ID, map[string]string{
		"assigned_to": t.AssignedTo,
		"from":        string(prev),
		"status":      string(t.Status),
	})
	cerr.SetJSONResponse(ctx, t)
}

// visibleTask loads the task of the URL; workers only see their own.
func (s *Server) visibleTask(r *http.Request) (*Task, error) {
	ctx := r.Context()
	caller, ok := user.FromContext(ctx)
	if !ok {
		return nil, cerr.NewError(cerr.Unauthenticated, "unauthenticated", nil)
	}
	t, err := s.repo.Get(ctx, chi.URLParam(r, "taskID"))
	if err != nil {
		return nil, err
	}
	if caller.Role != user.RoleAdmin && !strings.EqualFold(t.AssignedTo, caller.Email) {
		return nil, cerr.NewError(cerr.NotFound, "task not found", nil)
	}
	return t, nil
}
