package tracker

import (
	"context"
	"fmt"
	"strings"

	"github.com/kazz187/timeguild/pkg/cerr"
)

// Suggester asks the suggestion model which project a free-text
// description belongs to.
type Suggester struct {
	model    SuggestionModel
	projects ProjectStore
	sessions SessionStore
}

func NewSuggester(model SuggestionModel, projects ProjectStore, sessions SessionStore) *Suggester {
	return &Suggester{model: model, projects: projects, sessions: sessions}
}

func (s *Suggester) Suggest(ctx context.Context, description string, known []KnownProject) (*Suggestion, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return nil, ErrEmptyInput
	}
	sug, err := s.model.Suggest(ctx, description, known)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSuggestionFailed, err)
	}
	return sug, nil
}

// KnownProjects lists every project together with the last day the caller
// worked on it.
func (s *Suggester) KnownProjects(ctx context.Context) ([]KnownProject, error) {
	projects, err := s.projects.ListProjects(ctx)
	if err != nil {
		return nil, err
	}
	sessions, err := s.sessions.ListOwnSessions(ctx)
	if err != nil {
		return nil, err
	}
	// sessions are newest first, so the first hit per project wins
	lastWorked := make(map[string]string, len(projects))
	for _, sess := range sessions {
		if _, ok := lastWorked[sess.ProjectID]; !ok {
			lastWorked[sess.ProjectID] = sess.StartTime.Local().Format(dateLayout)
		}
	}
	out := make([]KnownProject, 0, len(projects))
	for _, p := range projects {
		out = append(out, KnownProject{Name: p.Name, Client: p.Client, Date: lastWorked[p.ID]})
	}
	return out, nil
}

// SuggestForDescription combines KnownProjects and Suggest.
func (s *Suggester) SuggestForDescription(ctx context.Context, description string) (*Suggestion, error) {
	if strings.TrimSpace(description) == "" {
		return nil, ErrEmptyInput
	}
	known, err := s.KnownProjects(ctx)
	if err != nil {
		return nil, cerr.NewError(cerr.Unavailable, "failed to load projects", err)
	}
	return s.Suggest(ctx, description, known)
}
