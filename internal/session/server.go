package session

import (
	"net/http"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/kazz187/timeguild/internal/eventbus"
	"github.com/kazz187/timeguild/internal/user"
	"github.com/kazz187/timeguild/pkg/cerr"
)

type Server struct {
	repo  Repository
	users user.Repository
	bus   *eventbus.Bus
}

func NewServer(repo Repository, users user.Repository, bus *eventbus.Bus) *Server {
	return &Server{repo: repo, users: users, bus: bus}
}

type CreateSessionRequest struct {
	ProjectID       string    `json:"project_id"`
	Project         string    `json:"project"`
	TaskID          string    `json:"task_id,omitempty"`
	TaskDescription string    `json:"task_description,omitempty"`
	StartTime       time.Time `json:"start_time"`
	StopTime        time.Time `json:"stop_time"`
	Duration        int64     `json:"duration_ms"`
}

type ListSessionsResponse struct {
	Sessions []*Session `json:"sessions"`
}

// CreateSession stores a session for the caller. The duration must match
// the interval exactly.
func (s *Server) CreateSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := user.FromContext(ctx)
	if !ok {
		cerr.SetNewJSONError(ctx, cerr.Unauthenticated, "unauthenticated", nil)
		return
	}
	var req CreateSessionRequest
	if err := cerr.DecodeJSON(r, &req); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	if strings.TrimSpace(req.ProjectID) == "" {
		cerr.SetNewJSONError(ctx, cerr.InvalidArgument, "project is required", nil)
		return
	}
	if req.StopTime.Before(req.StartTime) {
		cerr.SetNewJSONError(ctx, cerr.InvalidArgument, "stop time is before start time", nil)
		return
	}
	if req.Duration != DurationMillis(req.StartTime, req.StopTime) {
		cerr.SetNewJSONError(ctx, cerr.InvalidArgument, "duration does not match the interval", nil)
		return
	}

	sess := &Session{
		ID:              ulid.Make().String(),
		UserID:          caller.ID,
		UserEmail:       caller.Email,
		ProjectID:       req.ProjectID,
		Project:         req.Project,
		TaskID:          req.TaskID,
		TaskDescription: req.TaskDescription,
		StartTime:       req.StartTime,
		StopTime:        req.StopTime,
		Duration:        req.Duration,
	}
	if err := s.repo.Create(ctx, sess); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	s.bus.PublishNew(eventbus.EventSessionCreated, sess.ID, map[string]string{"user_id": sess.UserID})
	cerr.SetCreatedJSONResponse(ctx, sess)
}

func (s *Server) ListOwnSessions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := user.FromContext(ctx)
	if !ok {
		cerr.SetNewJSONError(ctx, cerr.Unauthenticated, "unauthenticated", nil)
		return
	}
	sessions, err := s.repo.ListByUser(ctx, caller.ID)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, &ListSessionsResponse{Sessions: sessions})
}

func (s *Server) ListAllSessions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	users, err := s.users.List(ctx)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	ids := make([]string, len(users))
	for i, u := range users {
		ids[i] = u.ID
	}
	sessions, err := s.repo.ListAll(ctx, ids)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, &ListSessionsResponse{Sessions: sessions})
}
