package pushsubscription

import "context"

type Repository interface {
	// Save creates the subscription or replaces the one with the same endpoint.
	Save(ctx context.Context, s *Subscription) error
	ListByUsers(ctx context.Context, userIDs []string) ([]*Subscription, error)
	Delete(ctx context.Context, id string) error
	DeleteByEndpoint(ctx context.Context, userID, endpoint string) error
}
