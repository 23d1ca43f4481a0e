package verification

import (
	"net/http"
	"strconv"
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

type AppendEntryRequest struct {
	TaskID       string    `json:"task_id"`
	PhotoDataURI string    `json:"photo_data_uri"`
	Result       Result    `json:"result"`
	Timestamp    time.Time `json:"timestamp"`
}

type ListEntriesResponse struct {
	Entries []*Entry `json:"entries"`
}

func (s *Server) AppendEntry(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := user.FromContext(ctx)
	if !ok {
		cerr.SetNewJSONError(ctx, cerr.Unauthenticated, "unauthenticated", nil)
		return
	}
	var req AppendEntryRequest
	if err := cerr.DecodeJSON(r, &req); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	if !req.Result.Valid() {
		cerr.SetNewJSONError(ctx, cerr.InvalidArgument, "confidence must be between 0 and 1", nil)
		return
	}
	if req.Timestamp.IsZero() {
		req.Timestamp = time.Now()
	}
	e := &Entry{
		ID:           ulid.Make().String(),
		UserID:       caller.ID,
		UserEmail:    caller.Email,
		TaskID:       req.TaskID,
		PhotoDataURI: req.PhotoDataURI,
		Result:       req.Result,
		Timestamp:    req.Timestamp,
	}
	if err := s.repo.Append(ctx, e); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	s.bus.PublishNew(eventbus.EventVerificationLogged, e.ID, map[string]string{
		"user_id":    e.UserID,
		"user_email": e.UserEmail,
		"task_id":    e.TaskID,
		"is_working": strconv.FormatBool(e.Result.IsWorking),
	})
	cerr.SetCreatedJSONResponse(ctx, e)
}

// ListEntries returns the verification log of every user, newest first.
func (s *Server) ListEntries(w http.ResponseWriter, r *http.Request) {
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
	entries, err := s.repo.ListAll(ctx, ids)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, &ListEntriesResponse{Entries: entries})
}
