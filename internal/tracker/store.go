package tracker

import (
	"context"

	"github.com/kazz187/timeguild/internal/project"
	"github.com/kazz187/timeguild/internal/session"
	"github.com/kazz187/timeguild/internal/task"
	"github.com/kazz187/timeguild/internal/verification"
)

// The tracker reaches the document store and the AI endpoints only through
// these interfaces. internal/client implements all of them over HTTP.

type TaskStore interface {
	GetTask(ctx context.Context, id string) (*task.Task, error)
	UpdateTaskStatus(ctx context.Context, id string, status task.Status) (*task.Task, error)
}

type ProjectStore interface {
	GetProject(ctx context.Context, id string) (*project.Project, error)
	ListProjects(ctx context.Context) ([]*project.Project, error)
}

type SessionStore interface {
	CreateSession(ctx context.Context, s *session.Session) (*session.Session, error)
	// ListOwnSessions returns the caller's sessions, newest first.
	ListOwnSessions(ctx context.Context) ([]*session.Session, error)
}

type VerificationLog interface {
	AppendVerification(ctx context.Context, e *verification.Entry) (*verification.Entry, error)
}

type Verifier interface {
	Verify(ctx context.Context, photoDataURI string, previousTasks []string) (*verification.Result, error)
}

// KnownProject is a project offered to the suggestion model.
type KnownProject struct {
	Name   string `json:"name"`
	Client string `json:"client"`
	Date   string `json:"date"`
}

type Suggestion struct {
	ProjectName string `json:"suggestedProjectName"`
	Reason      string `json:"reason"`
}

type SuggestionModel interface {
	Suggest(ctx context.Context, description string, known []KnownProject) (*Suggestion, error)
}
