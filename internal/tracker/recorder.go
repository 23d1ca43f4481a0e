package tracker

import (
	"context"
	"fmt"
	"time"

	"github.com/kazz187/timeguild/internal/project"
	"github.com/kazz187/timeguild/internal/session"
	"github.com/kazz187/timeguild/internal/task"
)

type Recorder struct {
	sessions SessionStore
}

func NewRecorder(sessions SessionStore) *Recorder {
	return &Recorder{sessions: sessions}
}

type RecordInput struct {
	UserID    string
	UserEmail string
	Project   *project.Project
	Task      *task.Task // optional
	Start     time.Time
	Stop      time.Time
}

// Record persists one session. It does not retry.
func (r *Recorder) Record(ctx context.Context, in RecordInput) (*session.Session, error) {
	// Durations are taken from wall-clock readings, as the server checks them.
	in.Start, in.Stop = in.Start.Round(0), in.Stop.Round(0)
	if in.Stop.Before(in.Start) {
		return nil, ErrInvalidInterval
	}
	if in.Project == nil {
		return nil, ErrNoProjectResolved
	}
	s := &session.Session{
		UserID:    in.UserID,
		UserEmail: in.UserEmail,
		ProjectID: in.Project.ID,
		Project:   in.Project.Name,
		StartTime: in.Start,
		StopTime:  in.Stop,
		Duration:  session.DurationMillis(in.Start, in.Stop),
	}
	if in.Task != nil {
		s.TaskID = in.Task.ID
		s.TaskDescription = in.Task.Description
	}
	created, err := r.sessions.CreateSession(ctx, s)
	if err != nil {
		return nil, fmt.Errorf("failed to record session: %w", err)
	}
	return created, nil
}
