package session

import "context"

type Repository interface {
	Create(ctx context.Context, s *Session) error
	// ListByUser returns the user's sessions, newest first.
	ListByUser(ctx context.Context, userID string) ([]*Session, error)
	// ListAll merges the sessions of userIDs, newest first.
	ListAll(ctx context.Context, userIDs []string) ([]*Session, error)
}
