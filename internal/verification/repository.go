package verification

import "context"

type Repository interface {
	Append(ctx context.Context, e *Entry) error
	// ListByUser returns the user's entries, newest first.
	ListByUser(ctx context.Context, userID string) ([]*Entry, error)
	ListAll(ctx context.Context, userIDs []string) ([]*Entry, error)
}
